package calendar

import (
	"time"

	"hiveboard/internal/schedule"
	kit "hiveboard/internal/transport"
)

type viewMode int

const (
	viewMonth viewMode = iota
	viewDay
)

// chatView tracks the one board message rendered per chat: which message
// to edit and what it currently shows. Opening /calendar again replaces
// the tracked message rather than juggling several live boards.
type chatView struct {
	ref  kit.MessageRef
	mode viewMode

	// month grid
	year  int
	month time.Month

	// day sheet
	day schedule.Date
}

func (v *chatView) affectedBy(dates []schedule.Date) bool {
	for _, d := range dates {
		switch v.mode {
		case viewMonth:
			if d.Year == v.year && d.Month == v.month {
				return true
			}
		case viewDay:
			if d == v.day {
				return true
			}
		}
	}
	return false
}

func (p *Plugin) trackView(chatID int64, v chatView) {
	p.mu.Lock()
	cp := v
	p.views[chatID] = &cp
	p.mu.Unlock()
}

func (p *Plugin) viewFor(chatID int64) (chatView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.views[chatID]
	if !ok {
		return chatView{}, false
	}
	return *v, true
}
