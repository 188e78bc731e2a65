// Package status exposes owner-only operator views: board counters,
// scheduled jobs and the recent submit audit trail.
package status

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hiveboard/internal/core"
	"hiveboard/pkg/tgui"
)

type Plugin struct {
	core.PluginBase
	startedAt time.Time
}

func New() *Plugin             { return &Plugin{} }
func (p *Plugin) Name() string { return "status" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	if p.startedAt.IsZero() {
		p.startedAt = time.Now()
	}
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "ping",
			Description: "health check",
			Usage:       "/ping",
			Access:      core.AccessEveryone,
			Handle: func(ctx context.Context, req *core.Request) error {
				_, _ = req.Adapter.SendText(ctx, req.Chat, "pong", nil)
				return nil
			},
		},
		{
			Route:       "status",
			Description: "board and service status (owner only)",
			Usage:       "/status",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdStatus,
		},
		{
			Route:       "status jobs",
			Aliases:     []string{"jobs"},
			Description: "list scheduled jobs (owner only)",
			Usage:       "/jobs",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdJobs,
		},
		{
			Route:       "status audit",
			Aliases:     []string{"audit"},
			Description: "recent submissions (owner only)",
			Usage:       "/audit [n]",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdAudit,
		},
	}
}

func (p *Plugin) cmdStatus(ctx context.Context, req *core.Request) error {
	store := req.Services.Store
	draft := req.Services.Board.View()

	b := tgui.New().
		Title("🐝", "hiveboard").
		KV("uptime", durRel(time.Since(p.startedAt))).
		KV("scheduled days", fmt.Sprintf("%d", store.Len())).
		KV("draft", draft.Phase.String())
	if !draft.TargetDate.IsZero() {
		b.KV("draft date", draft.TargetDate.String()).
			KV("draft tasks", fmt.Sprintf("%d", len(draft.Selected)))
	}
	b.KV("task sheet", fmt.Sprintf("%d entries", len(req.Services.CandidateTasks())))

	if req.Services.Scheduler != nil && req.Services.Scheduler.Enabled() {
		snap := req.Services.Scheduler.Snapshot()
		b.KV("scheduler", fmt.Sprintf("%d job(s), %d queued", len(snap.Schedules), snap.QueueLen))
	} else {
		b.KV("scheduler", "disabled")
	}
	if req.Services.Audit == nil {
		b.KV("audit", "disabled")
	}

	msg := b.Build()
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (p *Plugin) cmdJobs(ctx context.Context, req *core.Request) error {
	s := req.Services.Scheduler
	if s == nil || !s.Enabled() {
		_, _ = req.Adapter.SendText(ctx, req.Chat, "scheduler is disabled", nil)
		return nil
	}

	snap := s.Snapshot()
	if len(snap.Schedules) == 0 {
		_, _ = req.Adapter.SendText(ctx, req.Chat, "no scheduled jobs", nil)
		return nil
	}
	sort.Slice(snap.Schedules, func(i, j int) bool { return snap.Schedules[i].Name < snap.Schedules[j].Name })

	now := time.Now()
	b := tgui.New().Title("⏱", fmt.Sprintf("scheduled jobs (%s)", snap.Timezone)).
		Line(fmt.Sprintf("workers: %d, queue: %d", snap.Workers, snap.QueueLen)).
		Blank()
	for _, t := range snap.Schedules {
		next := "-"
		if !t.Next.IsZero() {
			next = t.Next.Local().Format("2006-01-02 15:04")
			if t.Next.After(now) {
				next += " (in " + durRel(t.Next.Sub(now)) + ")"
			}
		}
		b.KV(t.Name, fmt.Sprintf("spec=%s next=%s", t.Spec, next))
	}

	msg := b.Build()
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (p *Plugin) cmdAudit(ctx context.Context, req *core.Request) error {
	if req.Services.Audit == nil {
		_, _ = req.Adapter.SendText(ctx, req.Chat, "audit trail is disabled", nil)
		return nil
	}

	n := 10
	if len(req.Args) > 0 {
		if v, err := parsePositive(req.Args[0]); err == nil {
			n = v
		}
	}

	recs, err := req.Services.Audit.RecentSubmits(ctx, n)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		_, _ = req.Adapter.SendText(ctx, req.Chat, "no submissions recorded yet", nil)
		return nil
	}

	b := tgui.New().Title("📤", fmt.Sprintf("last %d submission(s)", len(recs)))
	for _, r := range recs {
		line := fmt.Sprintf("%s → %s: %d task(s)", r.At.Local().Format("01-02 15:04"), r.Date, r.Tasks)
		if r.Error != "" {
			line += ", failed: " + tgui.TruncRunes(r.Error, 60)
		} else {
			line += fmt.Sprintf(", %d entr(ies), %d provisional, %dms", r.Entries, r.Provisional, r.TookMS)
		}
		b.Line(line)
	}

	msg := b.Build()
	_, err = msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func parsePositive(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, err
	}
	if v <= 0 || v > 100 {
		return 0, fmt.Errorf("out of range")
	}
	return v, nil
}

func durRel(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
