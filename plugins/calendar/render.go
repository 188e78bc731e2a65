package calendar

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"hiveboard/internal/schedule"
	kit "hiveboard/internal/transport"
	"hiveboard/pkg/tgui"
)

const (
	markConfirmed   = "•"
	markProvisional = "◦"
)

// renderView re-renders a tracked message in place.
func (p *Plugin) renderView(ctx context.Context, v chatView) error {
	var msg tgui.Message
	switch v.mode {
	case viewDay:
		msg = p.dayMessage(v.day)
	default:
		msg = p.monthMessage(v.year, v.month)
	}
	return msg.Edit(ctx, p.Deps.Adapter, v.ref)
}

// monthMessage builds the month grid: a nav row, weekday headers, one
// button per day (marked when the day has entries) and a Today shortcut.
func (p *Plugin) monthMessage(year int, month time.Month) tgui.Message {
	store := p.Deps.Services.Store
	byDay := store.MonthEntries(year, month)

	days, provisional := 0, 0
	for _, entries := range byDay {
		days++
		for _, e := range entries {
			if e.Provisional {
				provisional++
			}
		}
	}

	b := tgui.New().
		Title("🗓", fmt.Sprintf("%s %d", month, year))
	if days > 0 {
		line := fmt.Sprintf("%d day(s) scheduled", days)
		if provisional > 0 {
			line += fmt.Sprintf(", %d suggestion(s) %s pending", provisional, markProvisional)
		}
		b.Line(line)
	} else {
		b.Line("Nothing scheduled this month. Pick a day to start a draft.")
	}

	kb := tgui.NewInline()
	kb.Row(
		tgui.Btn("«", tgui.Data(p.Name(), "month", monthPayload(addMonths(year, month, -1)))),
		tgui.Btn(fmt.Sprintf("%s %d", month.String()[:3], year), tgui.Data(p.Name(), "noop", "")),
		tgui.Btn("»", tgui.Data(p.Name(), "month", monthPayload(addMonths(year, month, 1)))),
	)

	kb.Row(weekdayHeader(p.sundayFirst())...)

	for _, row := range dayRows(year, month, p.sundayFirst(), byDay, p.Name()) {
		kb.Row(row...)
	}

	today := schedule.DateOf(time.Now())
	kb.Row(tgui.Btn("Today", tgui.Data(p.Name(), "day", today.String())))

	return b.Inline(kb).Build()
}

// dayMessage builds the day sheet: scheduled entries, the draft task
// toggles when a draft is open for this day, and promote buttons for
// provisional entries.
func (p *Plugin) dayMessage(d schedule.Date) tgui.Message {
	store := p.Deps.Services.Store
	entries := store.EntriesFor(d)
	draft := p.Deps.Services.Board.View()
	draftHere := draft.Phase != schedule.PhaseClosed && draft.TargetDate == d

	b := tgui.New().Title("📅", d.String())

	if len(entries) > 0 {
		b.Section("Scheduled")
		for _, e := range entries {
			if e.Provisional {
				b.Line(markProvisional + " " + e.Task + " (suggested)")
			} else {
				b.Line(markConfirmed + " " + e.Task)
			}
		}
	} else {
		b.Line("Nothing scheduled yet.")
	}

	kb := tgui.NewInline()

	switch {
	case draftHere && draft.Phase == schedule.PhaseSubmitting:
		b.Blank().Line("Submitting…")
		kb.Row(tgui.Btn("⏳ Submitting…", tgui.Data(p.Name(), "noop", "")))

	case draftHere:
		b.Blank().Line(fmt.Sprintf("Draft: %d task(s) selected.", len(draft.Selected)))

		tasks := p.Deps.Services.CandidateTasks()
		for _, row := range taskRows(tasks, draft, p.Name()) {
			kb.Row(row...)
		}
		kb.Row(
			tgui.Btn(fmt.Sprintf("📤 Submit (%d)", len(draft.Selected)), tgui.Data(p.Name(), "submit", "")),
			tgui.Btn("✖ Cancel", tgui.Data(p.Name(), "cancel", "")),
		)

	default:
		kb.Row(tgui.Btn("✏️ Plan this day", tgui.Data(p.Name(), "day", d.String())))
	}

	for i, e := range entries {
		if !e.Provisional {
			continue
		}
		kb.Row(tgui.Btn(
			"✅ Confirm "+tgui.TruncRunes(e.Task, 24),
			tgui.Data(p.Name(), "promote", d.String()+":"+strconv.Itoa(i)),
		))
	}

	kb.Row(tgui.Btn("↩ Back", tgui.Data(p.Name(), "month", monthPayload(yearMonth{d.Year, d.Month}))))

	return b.Inline(kb).Build()
}

// submittingMessage is the frozen sheet shown while a submit is in
// flight. In-flight submissions cannot be cancelled, so no buttons.
func (p *Plugin) submittingMessage(d schedule.Date) tgui.Message {
	kb := tgui.NewInline()
	kb.Row(tgui.Btn("⏳ Submitting…", tgui.Data(p.Name(), "noop", "")))
	return tgui.New().
		Title("📅", d.String()).
		Blank().
		Line("Submitting…").
		Inline(kb).
		Build()
}

// ---- grid helpers ----

type yearMonth struct {
	year  int
	month time.Month
}

func addMonths(year int, month time.Month, n int) yearMonth {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return yearMonth{t.Year(), t.Month()}
}

func monthPayload(ym yearMonth) string {
	return fmt.Sprintf("%04d-%02d", ym.year, int(ym.month))
}

func parseMonthPayload(s string) (yearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return yearMonth{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return yearMonth{t.Year(), t.Month()}, nil
}

func weekdayHeader(sundayFirst bool) []tele.Btn {
	names := []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}
	if sundayFirst {
		names = []string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}
	}
	row := make([]tele.Btn, len(names))
	for i, n := range names {
		row[i] = tgui.Btn(n, tgui.Data("calendar", "noop", ""))
	}
	return row
}

// dayRows lays the month's days out in 7-wide rows with inert padding
// cells before the 1st and after the last day.
func dayRows(year int, month time.Month, sundayFirst bool, byDay map[schedule.Date][]schedule.Entry, plugin string) [][]tele.Btn {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	lead := int(first.Weekday()) // Sunday == 0
	if !sundayFirst {
		lead = (lead + 6) % 7 // Monday == 0
	}

	pad := tgui.Btn("·", tgui.Data(plugin, "noop", ""))

	var rows [][]tele.Btn
	row := make([]tele.Btn, 0, 7)
	for i := 0; i < lead; i++ {
		row = append(row, pad)
	}
	for day := 1; day <= daysInMonth; day++ {
		d := schedule.Date{Year: year, Month: month, Day: day}
		row = append(row, tgui.Btn(dayCellLabel(day, byDay[d]), tgui.Data(plugin, "day", d.String())))
		if len(row) == 7 {
			rows = append(rows, row)
			row = make([]tele.Btn, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, pad)
		}
		rows = append(rows, row)
	}
	return rows
}

func dayCellLabel(day int, entries []schedule.Entry) string {
	if len(entries) == 0 {
		return strconv.Itoa(day)
	}
	for _, e := range entries {
		if e.Provisional {
			return strconv.Itoa(day) + markProvisional
		}
	}
	return strconv.Itoa(day) + markConfirmed
}

// taskRows renders the candidate task sheet as toggle buttons, two per
// row, checkmarked from the draft selection. Callback payloads carry the
// task index, not the name, to stay inside the callback_data size cap.
func taskRows(tasks []string, draft schedule.DraftView, plugin string) [][]tele.Btn {
	var rows [][]tele.Btn
	row := make([]tele.Btn, 0, 2)
	for i, task := range tasks {
		box := "☐"
		if draft.IsSelected(task) {
			box = "☑"
		}
		row = append(row, tgui.Btn(
			box+" "+tgui.TruncRunes(task, 24),
			tgui.Data(plugin, "task", strconv.Itoa(i)),
		))
		if len(row) == 2 || i == len(tasks)-1 {
			rows = append(rows, row)
			row = make([]tele.Btn, 0, 2)
		}
	}
	return rows
}

// show edits the tracked message for the chat, or sends a fresh one when
// there is nothing to edit (first open, or the old message is gone).
func (p *Plugin) show(ctx context.Context, chat kit.ChatTarget, v chatView, msg tgui.Message) error {
	if v.ref.MessageID != 0 {
		if err := msg.Edit(ctx, p.Deps.Adapter, v.ref); err == nil {
			p.trackView(chat.ChatID, v)
			return nil
		}
	}
	ref, err := msg.Send(ctx, p.Deps.Adapter, chat)
	if err != nil {
		return err
	}
	v.ref = ref
	p.trackView(chat.ChatID, v)
	return nil
}
