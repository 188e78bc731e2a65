package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hiveboard/pkg/logx"
)

// fakeClient scripts Submit/FetchMonth responses. A non-nil gate makes
// Submit block until the gate closes, for in-flight scenarios.
type fakeClient struct {
	mu      sync.Mutex
	submits int

	entries []Entry
	err     error
	gate    chan struct{}

	lastDate  Date
	lastTasks []string
}

func (f *fakeClient) Submit(ctx context.Context, date Date, tasks []string) ([]Entry, error) {
	f.mu.Lock()
	f.submits++
	f.lastDate = date
	f.lastTasks = append([]string(nil), tasks...)
	gate := f.gate
	entries, err := f.entries, f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return entries, err
}

func (f *fakeClient) FetchMonth(ctx context.Context, year int, month time.Month) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, f.err
}

func newTestBoard(client Submitter) *Board {
	return NewBoard(NewStore(nil), client, logx.Nop())
}

func TestDraftLifecycle(t *testing.T) {
	b := newTestBoard(&fakeClient{})
	d := mustDate(t, "2025-10-05")

	if v := b.View(); v.Phase != PhaseClosed {
		t.Fatalf("initial phase = %v", v.Phase)
	}
	if _, err := b.Toggle("Hive Inspection"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("toggle on closed draft: %v", err)
	}
	if b.Cancel() {
		t.Fatalf("cancel on closed draft reported work")
	}

	b.Activate(d)
	v := b.View()
	if v.Phase != PhaseOpen || v.TargetDate != d {
		t.Fatalf("after activate: %+v", v)
	}

	on, err := b.Toggle("Hive Inspection")
	if err != nil || !on {
		t.Fatalf("toggle on: %v %v", on, err)
	}
	on, err = b.Toggle("Hive Inspection")
	if err != nil || on {
		t.Fatalf("toggle off: %v %v", on, err)
	}

	// Selection preserves insertion order.
	for _, task := range []string{"Queen Check", "Harvest Honey", "Hive Cleaning"} {
		if _, err := b.Toggle(task); err != nil {
			t.Fatalf("toggle %q: %v", task, err)
		}
	}
	v = b.View()
	want := []string{"Queen Check", "Harvest Honey", "Hive Cleaning"}
	if len(v.Selected) != len(want) {
		t.Fatalf("selected = %v", v.Selected)
	}
	for i := range want {
		if v.Selected[i] != want[i] {
			t.Fatalf("selection order = %v, want %v", v.Selected, want)
		}
	}
	if !v.IsSelected("Queen Check") || v.IsSelected("Winter Preparation") {
		t.Fatalf("IsSelected wrong: %v", v.Selected)
	}

	if !b.Cancel() {
		t.Fatalf("cancel reported no-op")
	}
	if v := b.View(); v.Phase != PhaseClosed || len(v.Selected) != 0 {
		t.Fatalf("after cancel: %+v", v)
	}
}

func TestActivateReplacesOpenDraft(t *testing.T) {
	b := newTestBoard(&fakeClient{})
	b.Activate(mustDate(t, "2025-10-05"))
	if _, err := b.Toggle("Hive Inspection"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	d2 := mustDate(t, "2025-10-06")
	b.Activate(d2)
	v := b.View()
	if v.TargetDate != d2 || len(v.Selected) != 0 {
		t.Fatalf("reactivation kept old state: %+v", v)
	}
}

func TestSubmitSuccess(t *testing.T) {
	d := Date{Year: 2025, Month: 10, Day: 5}
	client := &fakeClient{entries: []Entry{
		{Date: d, Task: "Hive Inspection"},
		{Date: d, Task: "Pollen Patty Feeding", Provisional: true},
	}}
	b := newTestBoard(client)

	b.Activate(d)
	if _, err := b.Toggle("Hive Inspection"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	var outcomes []SubmitOutcome
	b.SetAudit(func(ctx context.Context, o SubmitOutcome) { outcomes = append(outcomes, o) })

	if err := b.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if client.lastDate != d || len(client.lastTasks) != 1 || client.lastTasks[0] != "Hive Inspection" {
		t.Fatalf("payload = %v %v", client.lastDate, client.lastTasks)
	}

	// Response installed, provisional flag carried through.
	got := b.Store().EntriesFor(d)
	if len(got) != 2 || !got[1].Provisional {
		t.Fatalf("store after submit: %+v", got)
	}
	if v := b.View(); v.Phase != PhaseClosed {
		t.Fatalf("draft not closed after success: %+v", v)
	}
	if len(outcomes) != 1 || outcomes[0].Entries != 2 || outcomes[0].Provisional != 1 || outcomes[0].Error != "" {
		t.Fatalf("outcome = %+v", outcomes)
	}
}

func TestSubmitRefusals(t *testing.T) {
	client := &fakeClient{}
	b := newTestBoard(client)

	if err := b.Submit(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("submit with no draft: %v", err)
	}

	b.Activate(mustDate(t, "2025-10-05"))
	if err := b.Submit(context.Background()); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("submit with empty selection: %v", err)
	}
	if v := b.View(); v.Phase != PhaseOpen {
		t.Fatalf("empty-selection refusal should keep draft open: %+v", v)
	}
	if client.submits != 0 {
		t.Fatalf("refusals must not reach the client, got %d calls", client.submits)
	}
}

func TestSubmitFailureReturnsToOpen(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	b := newTestBoard(client)
	d := mustDate(t, "2025-10-05")

	b.Activate(d)
	if _, err := b.Toggle("Harvest Honey"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	var outcomes []SubmitOutcome
	b.SetAudit(func(ctx context.Context, o SubmitOutcome) { outcomes = append(outcomes, o) })

	if err := b.Submit(context.Background()); err == nil {
		t.Fatalf("expected submit error")
	}

	v := b.View()
	if v.Phase != PhaseOpen || !v.IsSelected("Harvest Honey") {
		t.Fatalf("failure must reopen the draft with selection intact: %+v", v)
	}
	if b.Store().Len() != 0 {
		t.Fatalf("failed submit touched the store")
	}
	if len(outcomes) != 1 || outcomes[0].Error == "" {
		t.Fatalf("failure outcome = %+v", outcomes)
	}
}

func TestSubmitWhileSubmitting(t *testing.T) {
	gate := make(chan struct{})
	d := Date{Year: 2025, Month: 10, Day: 5}
	client := &fakeClient{entries: []Entry{{Date: d, Task: "Hive Inspection"}}, gate: gate}
	b := newTestBoard(client)

	b.Activate(d)
	if _, err := b.Toggle("Hive Inspection"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- b.Submit(context.Background()) }()

	waitForPhase(t, b, PhaseSubmitting)
	if err := b.Submit(context.Background()); !errors.Is(err, ErrAlreadySubmitting) {
		t.Fatalf("duplicate submit: %v", err)
	}
	if _, err := b.Toggle("Queen Check"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("toggle while submitting: %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
}

// A result that lands after the user moved on still updates the store
// (keyed by date), but must not disturb the newer draft.
func TestStaleSubmitResultAppliesToStoreOnly(t *testing.T) {
	gate := make(chan struct{})
	stale := Date{Year: 2025, Month: 10, Day: 5}
	client := &fakeClient{entries: []Entry{{Date: stale, Task: "Hive Inspection"}}, gate: gate}
	b := newTestBoard(client)

	b.Activate(stale)
	if _, err := b.Toggle("Hive Inspection"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- b.Submit(context.Background()) }()
	waitForPhase(t, b, PhaseSubmitting)

	// User abandons the in-flight draft and starts a new one.
	next := mustDate(t, "2025-10-09")
	b.Activate(next)
	if _, err := b.Toggle("Winter Preparation"); err != nil {
		t.Fatalf("toggle on new draft: %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("late submit: %v", err)
	}

	if got := b.Store().EntriesFor(stale); len(got) != 1 || got[0].Task != "Hive Inspection" {
		t.Fatalf("late result not installed: %+v", got)
	}
	v := b.View()
	if v.Phase != PhaseOpen || v.TargetDate != next || !v.IsSelected("Winter Preparation") {
		t.Fatalf("newer draft disturbed by late result: %+v", v)
	}
}

func TestPrefetchBestEffort(t *testing.T) {
	d := Date{Year: 2025, Month: 11, Day: 2}
	client := &fakeClient{entries: []Entry{{Date: d, Task: "Winter Preparation", Provisional: true}}}
	b := newTestBoard(client)

	if n := b.Prefetch(context.Background(), 2025, time.November); n != 1 {
		t.Fatalf("prefetch count = %d", n)
	}
	if got := b.Store().EntriesFor(d); len(got) != 1 {
		t.Fatalf("prefetch not installed: %+v", got)
	}

	client.mu.Lock()
	client.err = errors.New("boom")
	client.mu.Unlock()
	if n := b.Prefetch(context.Background(), 2025, time.December); n != 0 {
		t.Fatalf("failed prefetch count = %d", n)
	}
}

func waitForPhase(t *testing.T, b *Board, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.View().Phase == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("phase never reached %v", want)
}
