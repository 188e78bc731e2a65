package schedule

import (
	"testing"

	"hiveboard/internal/eventbus"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestReplaceForDatesScopedToInputDates(t *testing.T) {
	s := NewStore(nil)
	d1 := mustDate(t, "2025-10-05")
	d2 := mustDate(t, "2025-10-06")

	s.ReplaceForDates([]Entry{
		{Date: d1, Task: "Hive Inspection"},
		{Date: d2, Task: "Harvest Honey"},
	})

	// A response covering only d1 must rebuild d1 and leave d2 alone.
	s.ReplaceForDates([]Entry{
		{Date: d1, Task: "Queen Check", Provisional: true},
	})

	got := s.EntriesFor(d1)
	if len(got) != 1 || got[0].Task != "Queen Check" || !got[0].Provisional {
		t.Fatalf("d1 bucket not rebuilt: %+v", got)
	}
	if got := s.EntriesFor(d2); len(got) != 1 || got[0].Task != "Harvest Honey" {
		t.Fatalf("d2 bucket was touched: %+v", got)
	}
}

func TestReplaceForDatesEmptyIsNoOp(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	s := NewStore(bus)
	s.ReplaceForDates(nil)
	s.ReplaceForDates([]Entry{})
	s.ReplaceForDates([]Entry{{Task: "no date"}}) // zero-date entries are dropped

	if s.Len() != 0 {
		t.Fatalf("store not empty: %d", s.Len())
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %q", ev.Type)
	default:
	}
}

func TestReplaceForDatesPublishesUpdated(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	s := NewStore(bus)
	d := mustDate(t, "2025-10-05")
	s.ReplaceForDates([]Entry{{Date: d, Task: "Hive Inspection"}})

	select {
	case ev := <-events:
		if ev.Type != EventUpdated {
			t.Fatalf("event type = %q, want %q", ev.Type, EventUpdated)
		}
		upd, ok := ev.Data.(UpdatedEvent)
		if !ok || len(upd.Dates) != 1 || upd.Dates[0] != d {
			t.Fatalf("event data = %#v", ev.Data)
		}
	default:
		t.Fatalf("no event published")
	}
}

func TestPromoteLocally(t *testing.T) {
	s := NewStore(nil)
	d := mustDate(t, "2025-10-05")
	s.ReplaceForDates([]Entry{
		{Date: d, Task: "Hive Inspection"},
		{Date: d, Task: "Varroa Mite Treatment", Provisional: true},
	})

	if !s.PromoteLocally(d, "Varroa Mite Treatment") {
		t.Fatalf("promote reported miss")
	}
	for _, e := range s.EntriesFor(d) {
		if e.Provisional {
			t.Fatalf("entry still provisional: %+v", e)
		}
	}

	// Second promote of the same entry is a miss: nothing provisional left.
	if s.PromoteLocally(d, "Varroa Mite Treatment") {
		t.Fatalf("promote of confirmed entry reported hit")
	}
	if s.PromoteLocally(d, "Harvest Honey") {
		t.Fatalf("promote of unknown task reported hit")
	}
	if s.PromoteLocally(mustDate(t, "2025-10-09"), "Hive Inspection") {
		t.Fatalf("promote on unknown date reported hit")
	}
}

func TestMonthEntriesAndDates(t *testing.T) {
	s := NewStore(nil)
	oct := mustDate(t, "2025-10-05")
	nov := mustDate(t, "2025-11-01")
	s.ReplaceForDates([]Entry{
		{Date: nov, Task: "Winter Preparation"},
		{Date: oct, Task: "Harvest Honey"},
	})

	month := s.MonthEntries(2025, 10)
	if len(month) != 1 {
		t.Fatalf("MonthEntries = %v", month)
	}
	if _, ok := month[oct]; !ok {
		t.Fatalf("october bucket missing")
	}

	dates := s.Dates()
	if len(dates) != 2 || !dates[0].Before(dates[1]) {
		t.Fatalf("Dates not ascending: %v", dates)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestEntriesForReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	d := mustDate(t, "2025-10-05")
	s.ReplaceForDates([]Entry{{Date: d, Task: "Hive Inspection"}})

	got := s.EntriesFor(d)
	got[0].Task = "mutated"
	if s.EntriesFor(d)[0].Task != "Hive Inspection" {
		t.Fatalf("bucket aliased by caller slice")
	}
}
