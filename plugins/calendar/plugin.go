// Package calendar renders the scheduling board as an inline-keyboard
// month grid: pick a day, toggle tasks from the sheet, submit, and
// acknowledge provisional entries the predictor added.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"hiveboard/internal/core"
	"hiveboard/internal/schedule"
	"hiveboard/pkg/logx"
)

type Config struct {
	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `json:"week_start,omitempty"`
}

type Plugin struct {
	core.PluginBase

	mu    sync.Mutex
	cfg   Config
	views map[int64]*chatView
}

func New() *Plugin {
	return &Plugin{views: map[int64]*chatView{}}
}

func (p *Plugin) Name() string { return "calendar" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)

	// Re-render tracked messages when the store changes (submits from
	// another chat, prefetch passes, local promotes).
	events, unsub := p.Deps.Services.Bus.Subscribe(16)
	p.Runner.Go0("calendar.render", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Type != schedule.EventUpdated {
					continue
				}
				upd, ok := ev.Data.(schedule.UpdatedEvent)
				if !ok {
					continue
				}
				p.redrawAffected(c, upd.Dates)
			}
		}
	})
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error {
	return p.StopBase(ctx)
}

func (p *Plugin) OnConfigChange(ctx context.Context, raw json.RawMessage) error {
	c, err := core.DecodePluginConfig[Config](raw)
	if err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(c); err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = c
	p.mu.Unlock()
	return nil
}

// ValidateConfig rejects bad config before it is committed.
func (p *Plugin) ValidateConfig(ctx context.Context, raw json.RawMessage) error {
	c, err := core.DecodePluginConfig[Config](raw)
	if err != nil {
		return err
	}
	return validate(c)
}

func validate(c Config) error {
	switch strings.ToLower(strings.TrimSpace(c.WeekStart)) {
	case "", "monday", "sunday":
		return nil
	}
	return fmt.Errorf("week_start: must be %q or %q", "monday", "sunday")
}

func (p *Plugin) sundayFirst() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.EqualFold(strings.TrimSpace(p.cfg.WeekStart), "sunday")
}

// redrawAffected re-renders every tracked message whose visible month or
// day intersects the changed dates. Failures are logged and dropped; the
// next event tries again.
func (p *Plugin) redrawAffected(ctx context.Context, dates []schedule.Date) {
	if len(dates) == 0 {
		return
	}
	p.mu.Lock()
	targets := make([]chatView, 0, len(p.views))
	for _, v := range p.views {
		if v.affectedBy(dates) {
			targets = append(targets, *v)
		}
	}
	p.mu.Unlock()

	for _, v := range targets {
		if err := p.renderView(ctx, v); err != nil {
			p.Log.Debug("redraw skipped", logx.Int64("chat_id", v.ref.ChatID), logx.Err(err))
		}
	}
}
