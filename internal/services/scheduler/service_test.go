package scheduler

import (
	"context"
	"testing"
	"time"

	"hiveboard/pkg/logx"
)

func noopJob(ctx context.Context) error { return nil }

func newTestService() *Service {
	return New(Config{Enabled: true, Workers: 1, DefaultTimeout: 5 * time.Second, HistorySize: 10}, logx.Nop())
}

func TestAddCronUpsertsByName(t *testing.T) {
	s := newTestService()

	id1, err := s.AddCron("board:prefetch", "@every 6h", 0, noopJob)
	if err != nil || id1 == "" {
		t.Fatalf("AddCron: %q %v", id1, err)
	}
	id2, err := s.AddCron("board:prefetch", "@every 1h", 0, noopJob)
	if err != nil {
		t.Fatalf("AddCron upsert: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("upsert reused id %q", id1)
	}

	s.mu.Lock()
	defs := append([]scheduleDef(nil), s.defs...)
	s.mu.Unlock()
	if len(defs) != 1 {
		t.Fatalf("defs = %d, want 1 after upsert", len(defs))
	}
	if defs[0].spec != "@every 1h" {
		t.Fatalf("spec = %q", defs[0].spec)
	}
}

func TestAddCronRequiresName(t *testing.T) {
	s := newTestService()
	if _, err := s.AddCron("  ", "@every 1h", 0, noopJob); err == nil {
		t.Fatalf("blank name accepted")
	}
}

func TestAddIntervalAndDaily(t *testing.T) {
	s := newTestService()

	if _, err := s.AddInterval("tick", 0, 0, noopJob); err == nil {
		t.Fatalf("zero interval accepted")
	}
	if _, err := s.AddInterval("tick", time.Minute, 0, noopJob); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}
	if _, err := s.AddDaily("compact", "03:30", 0, noopJob); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	if _, err := s.AddDaily("bad", "25:00", 0, noopJob); err == nil {
		t.Fatalf("bad hour accepted")
	}
	if _, err := s.AddDaily("bad", "12:61", 0, noopJob); err == nil {
		t.Fatalf("bad minute accepted")
	}
	if _, err := s.AddDaily("bad", "noon", 0, noopJob); err == nil {
		t.Fatalf("garbage time accepted")
	}

	s.mu.Lock()
	var tickSpec, compactSpec string
	for _, d := range s.defs {
		switch d.name {
		case "tick":
			tickSpec = d.spec
		case "compact":
			compactSpec = d.spec
		}
	}
	s.mu.Unlock()
	if tickSpec != "@every 1m0s" {
		t.Fatalf("interval spec = %q", tickSpec)
	}
	if compactSpec != "30 3 * * *" {
		t.Fatalf("daily spec = %q", compactSpec)
	}
}

func TestRemove(t *testing.T) {
	s := newTestService()
	if s.Remove("nothing") {
		t.Fatalf("remove of unknown name reported true")
	}
	if _, err := s.AddCron("job", "@hourly", 0, noopJob); err != nil {
		t.Fatalf("AddCron: %v", err)
	}
	if !s.Remove("job") {
		t.Fatalf("remove reported false")
	}
	if s.Remove("job") {
		t.Fatalf("double remove reported true")
	}
}

func TestResolveTimeout(t *testing.T) {
	s := newTestService()
	if got := s.resolveTimeout(0); got != 5*time.Second {
		t.Fatalf("default timeout = %v", got)
	}
	if got := s.resolveTimeout(time.Minute); got != time.Minute {
		t.Fatalf("explicit timeout = %v", got)
	}
}

func TestStartRunsRegisteredJobs(t *testing.T) {
	s := newTestService()
	ran := make(chan struct{}, 1)
	if _, err := s.AddInterval("tick", 50*time.Millisecond, time.Second, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		s.Stop(stopCtx)
	}()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never ran")
	}

	snap := s.Snapshot()
	if !snap.Enabled || len(snap.Schedules) != 1 || snap.Schedules[0].Name != "tick" {
		t.Fatalf("snapshot = %+v", snap)
	}
}
