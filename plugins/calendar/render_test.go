package calendar

import (
	"testing"
	"time"

	"hiveboard/internal/schedule"
)

func TestMonthPayloadRoundTrip(t *testing.T) {
	ym := yearMonth{2025, time.October}
	got, err := parseMonthPayload(monthPayload(ym))
	if err != nil || got != ym {
		t.Fatalf("round trip = %+v, %v", got, err)
	}
	if _, err := parseMonthPayload("2025-13"); err == nil {
		t.Fatalf("bad month accepted")
	}
	if _, err := parseMonthPayload("october"); err == nil {
		t.Fatalf("garbage accepted")
	}
}

func TestAddMonths(t *testing.T) {
	if got := addMonths(2025, time.December, 1); got != (yearMonth{2026, time.January}) {
		t.Fatalf("dec+1 = %+v", got)
	}
	if got := addMonths(2025, time.January, -1); got != (yearMonth{2024, time.December}) {
		t.Fatalf("jan-1 = %+v", got)
	}
}

func TestDayRowsLayout(t *testing.T) {
	// October 2025 starts on a Wednesday and has 31 days.
	rows := dayRows(2025, time.October, false, nil, "calendar")
	if len(rows) != 5 {
		t.Fatalf("rows = %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != 7 {
			t.Fatalf("row %d width = %d", i, len(row))
		}
	}
	// Monday-first: Wednesday means two leading pads.
	if rows[0][2].Text != "1" {
		t.Fatalf("first day cell = %q", rows[0][2].Text)
	}
	if rows[0][0].Data != "calendar:noop" {
		t.Fatalf("pad cell data = %q", rows[0][0].Data)
	}
	last := rows[4][6-2] // 31st lands on Friday
	if last.Text != "31" || last.Data != "calendar:day:2025-10-31" {
		t.Fatalf("last day cell = %+v", last)
	}

	// Sunday-first shifts the lead by one.
	rows = dayRows(2025, time.October, true, nil, "calendar")
	if rows[0][3].Text != "1" {
		t.Fatalf("sunday-first day cell = %q", rows[0][3].Text)
	}
}

func TestDayCellLabel(t *testing.T) {
	d := schedule.Date{Year: 2025, Month: 10, Day: 5}
	if got := dayCellLabel(5, nil); got != "5" {
		t.Fatalf("empty = %q", got)
	}
	confirmed := []schedule.Entry{{Date: d, Task: "Hive Inspection"}}
	if got := dayCellLabel(5, confirmed); got != "5"+markConfirmed {
		t.Fatalf("confirmed = %q", got)
	}
	mixed := append(confirmed, schedule.Entry{Date: d, Task: "Queen Check", Provisional: true})
	if got := dayCellLabel(5, mixed); got != "5"+markProvisional {
		t.Fatalf("provisional = %q", got)
	}
}

func TestTaskRows(t *testing.T) {
	tasks := []string{"Hive Inspection", "Queen Check", "Harvest Honey"}
	draft := schedule.DraftView{
		Phase:      schedule.PhaseOpen,
		TargetDate: schedule.Date{Year: 2025, Month: 10, Day: 5},
		Selected:   []string{"Queen Check"},
	}
	rows := taskRows(tasks, draft, "calendar")
	if len(rows) != 2 || len(rows[0]) != 2 || len(rows[1]) != 1 {
		t.Fatalf("row shape = %v", rows)
	}
	if rows[0][0].Text[:len("☐")] != "☐" {
		t.Fatalf("unselected marker = %q", rows[0][0].Text)
	}
	if rows[0][1].Text[:len("☑")] != "☑" {
		t.Fatalf("selected marker = %q", rows[0][1].Text)
	}
	if rows[1][0].Data != "calendar:task:2" {
		t.Fatalf("task payload = %q", rows[1][0].Data)
	}
}

func TestSplitPromotePayload(t *testing.T) {
	date, idx, ok := splitPromotePayload("2025-10-05:3")
	if !ok || date != "2025-10-05" || idx != "3" {
		t.Fatalf("split = %q %q %v", date, idx, ok)
	}
	if _, _, ok := splitPromotePayload("nodatehere"); ok {
		t.Fatalf("malformed payload accepted")
	}
}
