package calendar

import (
	"context"
	"errors"
	"strconv"
	"time"

	"hiveboard/internal/core"
	"hiveboard/internal/schedule"
	"hiveboard/pkg/logx"
)

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "calendar",
			Aliases:     []string{"cal"},
			Description: "Open the scheduling board",
			Usage:       "/calendar",
			Access:      core.AccessEveryone,
			Handle:      p.cmdCalendar,
		},
		{
			Route:       "today",
			Description: "Open today's day sheet",
			Usage:       "/today",
			Access:      core.AccessEveryone,
			Handle:      p.cmdToday,
		},
	}
}

func (p *Plugin) Callbacks() []core.CallbackRoute {
	return []core.CallbackRoute{
		{Plugin: p.Name(), Action: "noop", Handle: p.cbNoop},
		{Plugin: p.Name(), Action: "month", Handle: p.cbMonth},
		{Plugin: p.Name(), Action: "day", Handle: p.cbDay},
		{Plugin: p.Name(), Action: "task", Handle: p.cbTask},
		{Plugin: p.Name(), Action: "submit", Handle: p.cbSubmit, Timeout: 45 * time.Second},
		{Plugin: p.Name(), Action: "cancel", Handle: p.cbCancel},
		{Plugin: p.Name(), Action: "promote", Handle: p.cbPromote},
	}
}

func (p *Plugin) cmdCalendar(ctx context.Context, req *core.Request) error {
	now := time.Now()
	v := chatView{mode: viewMonth, year: now.Year(), month: now.Month()}
	return p.show(ctx, req.Chat, v, p.monthMessage(v.year, v.month))
}

func (p *Plugin) cmdToday(ctx context.Context, req *core.Request) error {
	d := schedule.DateOf(time.Now())
	req.Services.Board.Activate(d)
	v := chatView{mode: viewDay, day: d}
	return p.show(ctx, req.Chat, v, p.dayMessage(d))
}

func (p *Plugin) cbNoop(ctx context.Context, req *core.Request, payload string) error {
	return nil
}

// cbMonth renders a month grid. It is also the Back button on the day
// sheet, so any open draft is dismissed first.
func (p *Plugin) cbMonth(ctx context.Context, req *core.Request, payload string) error {
	ym, err := parseMonthPayload(payload)
	if err != nil {
		return err
	}
	if req.Services.Board.View().Phase == schedule.PhaseOpen {
		req.Services.Board.Cancel()
	}
	v, _ := p.viewFor(req.Chat.ChatID)
	v.mode = viewMonth
	v.year, v.month = ym.year, ym.month
	return p.show(ctx, req.Chat, v, p.monthMessage(ym.year, ym.month))
}

func (p *Plugin) cbDay(ctx context.Context, req *core.Request, payload string) error {
	d, err := schedule.ParseDate(payload)
	if err != nil {
		return err
	}
	req.Services.Board.Activate(d)
	v, _ := p.viewFor(req.Chat.ChatID)
	v.mode = viewDay
	v.day = d
	v.year, v.month = d.Year, d.Month
	return p.show(ctx, req.Chat, v, p.dayMessage(d))
}

func (p *Plugin) cbTask(ctx context.Context, req *core.Request, payload string) error {
	idx, err := strconv.Atoi(payload)
	if err != nil {
		return err
	}
	tasks := req.Services.CandidateTasks()
	if idx < 0 || idx >= len(tasks) {
		return p.answer(ctx, req, "That task sheet is outdated, reopen the day.")
	}
	if _, err := req.Services.Board.Toggle(tasks[idx]); err != nil {
		return p.answer(ctx, req, "No draft open, pick a day first.")
	}
	draft := req.Services.Board.View()
	return p.refreshDay(ctx, req, draft.TargetDate)
}

func (p *Plugin) cbSubmit(ctx context.Context, req *core.Request, payload string) error {
	board := req.Services.Board
	draft := board.View()
	if draft.Phase != schedule.PhaseOpen {
		return p.answer(ctx, req, "No draft open, pick a day first.")
	}
	if len(draft.Selected) == 0 {
		return p.answer(ctx, req, "Select at least one task first.")
	}
	date := draft.TargetDate

	// Freeze the buttons while the request is in flight.
	if v, ok := p.viewFor(req.Chat.ChatID); ok {
		_ = p.show(ctx, req.Chat, v, p.submittingMessage(date))
	}

	err := board.Submit(ctx)
	switch {
	case err == nil:
		_ = p.answer(ctx, req, "Schedule saved.")
	case errors.Is(err, schedule.ErrNothingSelected):
		_ = p.answer(ctx, req, "Select at least one task first.")
	case errors.Is(err, schedule.ErrAlreadySubmitting):
		_ = p.answer(ctx, req, "Already submitting, hold on.")
	case errors.Is(err, schedule.ErrNotOpen):
		_ = p.answer(ctx, req, "No draft open, pick a day first.")
	default:
		// Transport or malformed response: the draft is back in Open with
		// the selection intact, so the sheet re-renders ready to retry.
		req.Logger.Warn("submit failed", logx.String("date", date.String()), logx.Err(err))
		_ = p.answer(ctx, req, "Couldn't reach the scheduler, draft kept.")
	}
	return p.refreshDay(ctx, req, date)
}

func (p *Plugin) cbCancel(ctx context.Context, req *core.Request, payload string) error {
	draft := req.Services.Board.View()
	if !req.Services.Board.Cancel() {
		return p.answer(ctx, req, "Nothing to cancel.")
	}
	return p.refreshDay(ctx, req, draft.TargetDate)
}

// cbPromote flips a provisional entry to confirmed locally. The payload
// is "<date>:<index into the day's entry list>".
func (p *Plugin) cbPromote(ctx context.Context, req *core.Request, payload string) error {
	dateStr, idxStr, ok := splitPromotePayload(payload)
	if !ok {
		return errors.New("malformed promote payload")
	}
	d, err := schedule.ParseDate(dateStr)
	if err != nil {
		return err
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return err
	}
	entries := req.Services.Store.EntriesFor(d)
	if idx < 0 || idx >= len(entries) {
		return p.answer(ctx, req, "That sheet is outdated, reopening.")
	}
	if !entries[idx].Provisional {
		return p.answer(ctx, req, "Already confirmed.")
	}
	if req.Services.Store.PromoteLocally(d, entries[idx].Task) {
		_ = p.answer(ctx, req, "Confirmed.")
	}
	// The store event re-renders tracked views; nothing else to do here.
	return nil
}

func splitPromotePayload(payload string) (date, idx string, ok bool) {
	// payload is "YYYY-MM-DD:<n>"; the date itself contains no colons.
	for i := len(payload) - 1; i >= 0; i-- {
		if payload[i] == ':' {
			return payload[:i], payload[i+1:], true
		}
	}
	return "", "", false
}

func (p *Plugin) refreshDay(ctx context.Context, req *core.Request, d schedule.Date) error {
	v, _ := p.viewFor(req.Chat.ChatID)
	v.mode = viewDay
	if !d.IsZero() {
		v.day = d
		v.year, v.month = d.Year, d.Month
	}
	return p.show(ctx, req.Chat, v, p.dayMessage(v.day))
}

func (p *Plugin) answer(ctx context.Context, req *core.Request, text string) error {
	if req.Update.Callback == nil {
		return nil
	}
	return req.Adapter.AnswerCallback(ctx, req.Update.Callback.ID, text)
}
