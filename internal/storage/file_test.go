package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hiveboard/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", "  NONE "} {
		s, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || s != nil {
			t.Fatalf("Open(%q) = %v, %v", driver, s, err)
		}
	}
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("file driver without path accepted")
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		r := SubmitRecord{
			At:    now.Add(time.Duration(i) * time.Minute),
			Date:  "2025-10-05",
			Tasks: i + 1,
		}
		if err := s.AppendSubmit(ctx, r); err != nil {
			t.Fatalf("AppendSubmit: %v", err)
		}
	}

	recs, err := s.RecentSubmits(ctx, 3)
	if err != nil {
		t.Fatalf("RecentSubmits: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d", len(recs))
	}
	// Newest first.
	if recs[0].Tasks != 5 || recs[2].Tasks != 3 {
		t.Fatalf("order wrong: %+v", recs)
	}

	// n <= 0 returns everything.
	all, err := s.RecentSubmits(ctx, 0)
	if err != nil || len(all) != 5 {
		t.Fatalf("all = %d, %v", len(all), err)
	}
}

func TestAppendFillsTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.AppendSubmit(ctx, SubmitRecord{Date: "2025-10-05"}); err != nil {
		t.Fatalf("AppendSubmit: %v", err)
	}
	recs, err := s.RecentSubmits(ctx, 1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("RecentSubmits: %v %v", recs, err)
	}
	if recs[0].At.IsZero() {
		t.Fatalf("At not filled")
	}
}

func TestCompactDropsOldAndCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	old := SubmitRecord{At: time.Now().Add(-auditMaxAge - time.Hour), Date: "2024-01-01"}
	fresh := SubmitRecord{At: time.Now(), Date: "2025-10-05", Tasks: 2}
	if err := s.AppendSubmit(ctx, old); err != nil {
		t.Fatalf("append old: %v", err)
	}
	if err := s.AppendSubmit(ctx, fresh); err != nil {
		t.Fatalf("append fresh: %v", err)
	}

	// A corrupt line is skipped on read and dropped by compaction.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open for corrupt line: %v", err)
	}
	if _, err := f.WriteString("{garbage\n"); err != nil {
		t.Fatalf("write corrupt line: %v", err)
	}
	_ = f.Close()

	removed, err := s.Compact(ctx)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}

	recs, err := s.RecentSubmits(ctx, 0)
	if err != nil || len(recs) != 1 || recs[0].Date != "2025-10-05" {
		t.Fatalf("after compact: %+v %v", recs, err)
	}

	// Appends still work against the swapped-in file.
	if err := s.AppendSubmit(ctx, SubmitRecord{At: time.Now(), Date: "2025-10-06"}); err != nil {
		t.Fatalf("append after compact: %v", err)
	}
	recs, _ = s.RecentSubmits(ctx, 0)
	if len(recs) != 2 {
		t.Fatalf("len after post-compact append = %d", len(recs))
	}
}

func TestCompactRecordsBounds(t *testing.T) {
	now := time.Now()
	records := make([]SubmitRecord, 0, auditMaxRecords+50)
	for i := 0; i < auditMaxRecords+50; i++ {
		records = append(records, SubmitRecord{At: now.Add(-time.Duration(i) * time.Minute)})
	}

	kept := compactRecords(records)
	if len(kept) != auditMaxRecords {
		t.Fatalf("kept = %d, want %d", len(kept), auditMaxRecords)
	}
	if !kept[0].At.Before(kept[len(kept)-1].At) {
		t.Fatalf("not ascending")
	}
}

func TestAppendAfterClose(t *testing.T) {
	s := openTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.AppendSubmit(context.Background(), SubmitRecord{}); err == nil {
		t.Fatalf("append after close succeeded")
	}
}
