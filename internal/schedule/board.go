package schedule

import (
	"context"
	"sync"
	"time"

	"hiveboard/pkg/logx"
)

// Submitter is the sync-protocol port the board drives. Implemented by
// syncapi.Client; tests substitute their own.
type Submitter interface {
	// Submit posts the draft payload and returns the authoritative entry
	// list for the affected dates. Implementations must not retry.
	Submit(ctx context.Context, date Date, tasks []string) ([]Entry, error)
	// FetchMonth reads the existing schedule for a month.
	FetchMonth(ctx context.Context, year int, month time.Month) ([]Entry, error)
}

// SubmitOutcome summarizes one settled submission for the audit trail.
type SubmitOutcome struct {
	At          time.Time
	Date        Date
	Tasks       int
	Entries     int
	Provisional int
	Took        time.Duration
	Error       string
}

// AuditFunc receives settled submission outcomes. It must not block for
// long; failures are the sink's problem, never the board's.
type AuditFunc func(ctx context.Context, o SubmitOutcome)

// Board owns the store, the single draft, and the submitter, and
// enforces the one-submission-at-a-time rule. All methods are safe for
// concurrent use.
type Board struct {
	mu     sync.Mutex
	draft  Draft
	store  *Store
	client Submitter

	log   logx.Logger
	audit AuditFunc
}

func NewBoard(store *Store, client Submitter, log logx.Logger) *Board {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Board{store: store, client: client, log: log}
}

// SetAudit installs an optional audit sink for settled submissions.
func (b *Board) SetAudit(fn AuditFunc) {
	b.mu.Lock()
	b.audit = fn
	b.mu.Unlock()
}

// SetClient swaps the submitter. Used when the endpoint changes via config
// hot-reload; an in-flight submission keeps the client it started with.
func (b *Board) SetClient(c Submitter) {
	b.mu.Lock()
	b.client = c
	b.mu.Unlock()
}

// Store exposes the underlying entry table for renderers.
func (b *Board) Store() *Store { return b.store }

// Activate opens a draft for d, abandoning any previous one without
// warning (last activation wins). The caller is responsible for not
// activating padding cells; the board accepts any real date.
func (b *Board) Activate(d Date) {
	b.mu.Lock()
	prev := b.draft.phase
	b.draft.activate(d)
	b.mu.Unlock()

	if prev != PhaseClosed {
		b.log.Debug("draft abandoned by reactivation",
			logx.String("phase", prev.String()), logx.String("date", d.String()))
	}
}

// Toggle flips task membership in the open draft and reports the
// resulting selection state.
func (b *Board) Toggle(task string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draft.toggle(task)
}

// Cancel dismisses an open draft. It reports whether anything was open.
func (b *Board) Cancel() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draft.cancel()
}

// View snapshots the draft for rendering.
func (b *Board) View() DraftView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return DraftView{
		Phase:      b.draft.phase,
		TargetDate: b.draft.target,
		Selected:   b.draft.selected(),
	}
}

// Submit sends the open draft to the scheduling endpoint and settles the
// state machine on the outcome.
//
// Refusals (empty selection, no draft, duplicate submit) come back as the
// draft sentinel errors with no network call made. A transport or
// malformed-response error returns the draft to Open with the selection
// preserved and leaves the store untouched.
//
// Success installs the response entries via ReplaceForDates and closes
// the draft. If the draft was abandoned while the call was in flight the
// entries are still installed (the store is keyed by date, not by draft
// identity) but the newer draft is left alone.
func (b *Board) Submit(ctx context.Context) error {
	b.mu.Lock()
	if err := b.draft.beginSubmit(); err != nil {
		b.mu.Unlock()
		return err
	}
	date := b.draft.target
	tasks := b.draft.selected()
	gen := b.draft.gen
	client := b.client
	b.mu.Unlock()

	start := time.Now()
	entries, err := client.Submit(ctx, date, tasks)
	took := time.Since(start)

	if err != nil {
		b.mu.Lock()
		if b.draft.gen == gen && b.draft.phase == PhaseSubmitting {
			b.draft.fail()
		}
		b.mu.Unlock()

		b.log.Warn("submit failed",
			logx.String("date", date.String()), logx.Int("tasks", len(tasks)),
			logx.Duration("took", took), logx.Err(err))
		b.recordOutcome(ctx, SubmitOutcome{
			At: start, Date: date, Tasks: len(tasks), Took: took, Error: err.Error(),
		})
		return err
	}

	// Install first, then settle the draft: store replacement is keyed by
	// date and must happen even for a stale draft.
	b.store.ReplaceForDates(entries)

	provisional := 0
	for _, e := range entries {
		if e.Provisional {
			provisional++
		}
	}

	b.mu.Lock()
	stale := b.draft.gen != gen || b.draft.phase != PhaseSubmitting
	if !stale {
		b.draft.complete()
	}
	b.mu.Unlock()

	if stale {
		b.log.Debug("late submit result applied to store only",
			logx.String("date", date.String()), logx.Int("entries", len(entries)))
	} else {
		b.log.Info("schedule submitted",
			logx.String("date", date.String()), logx.Int("tasks", len(tasks)),
			logx.Int("entries", len(entries)), logx.Int("provisional", provisional),
			logx.Duration("took", took))
	}
	b.recordOutcome(ctx, SubmitOutcome{
		At: start, Date: date, Tasks: len(tasks),
		Entries: len(entries), Provisional: provisional, Took: took,
	})
	return nil
}

// Prefetch pulls the existing schedule for a month and feeds it through
// the store. It is best-effort: failures are logged and swallowed, and no
// draft state is involved. It returns the number of entries applied.
func (b *Board) Prefetch(ctx context.Context, year int, month time.Month) int {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	entries, err := client.FetchMonth(ctx, year, month)
	if err != nil {
		b.log.Warn("schedule prefetch failed",
			logx.Int("year", year), logx.Int("month", int(month)), logx.Err(err))
		return 0
	}
	b.store.ReplaceForDates(entries)
	if len(entries) > 0 {
		b.log.Debug("schedule prefetched",
			logx.Int("year", year), logx.Int("month", int(month)), logx.Int("entries", len(entries)))
	}
	return len(entries)
}

func (b *Board) recordOutcome(ctx context.Context, o SubmitOutcome) {
	b.mu.Lock()
	fn := b.audit
	b.mu.Unlock()
	if fn == nil {
		return
	}
	fn(ctx, o)
}
