package schedule

import "errors"

// Phase is the draft lifecycle state.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpen
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpen:
		return "open"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

var (
	// ErrNotOpen is returned when a toggle or submit is attempted with no
	// draft open.
	ErrNotOpen = errors.New("no draft open")
	// ErrNothingSelected refuses a submit with an empty selection. The
	// draft stays open; this is a no-op signal, not a failure.
	ErrNothingSelected = errors.New("no tasks selected")
	// ErrAlreadySubmitting rejects a duplicate submit while one is in
	// flight. In-flight submissions cannot be cancelled.
	ErrAlreadySubmitting = errors.New("submission already in flight")
)

// Draft is the single in-progress selection of tasks for one date.
// The selection preserves insertion order so the submission payload is
// stable. Draft itself is not goroutine-safe; the Board serializes access.
type Draft struct {
	phase  Phase
	target Date
	tasks  []string

	// gen is bumped every time the draft is (re)activated or reset.
	// The Board uses it to recognize late submission results that belong
	// to an abandoned draft.
	gen uint64
}

// activate opens a fresh empty-selection draft for d. Any existing draft,
// open or submitting, is silently abandoned: last activation wins.
func (dr *Draft) activate(d Date) {
	dr.phase = PhaseOpen
	dr.target = d
	dr.tasks = dr.tasks[:0]
	dr.gen++
}

// toggle flips membership of task in the selection and reports whether it
// is selected afterwards. Only legal while open.
func (dr *Draft) toggle(task string) (bool, error) {
	if dr.phase != PhaseOpen {
		return false, ErrNotOpen
	}
	for i, t := range dr.tasks {
		if t == task {
			dr.tasks = append(dr.tasks[:i], dr.tasks[i+1:]...)
			return false, nil
		}
	}
	dr.tasks = append(dr.tasks, task)
	return true, nil
}

// cancel closes an open draft. A submitting draft cannot be cancelled.
func (dr *Draft) cancel() bool {
	if dr.phase != PhaseOpen {
		return false
	}
	dr.reset()
	return true
}

// beginSubmit moves Open -> Submitting. Refusals keep the current state.
func (dr *Draft) beginSubmit() error {
	switch dr.phase {
	case PhaseSubmitting:
		return ErrAlreadySubmitting
	case PhaseClosed:
		return ErrNotOpen
	}
	if len(dr.tasks) == 0 {
		return ErrNothingSelected
	}
	dr.phase = PhaseSubmitting
	return nil
}

// complete closes the draft after a successful submission.
func (dr *Draft) complete() { dr.reset() }

// fail returns a submitting draft to Open with the selection intact so
// the user can retry without re-selecting.
func (dr *Draft) fail() {
	if dr.phase == PhaseSubmitting {
		dr.phase = PhaseOpen
	}
}

func (dr *Draft) reset() {
	dr.phase = PhaseClosed
	dr.target = Date{}
	dr.tasks = nil
	dr.gen++
}

func (dr *Draft) selected() []string {
	out := make([]string, len(dr.tasks))
	copy(out, dr.tasks)
	return out
}

// DraftView is an immutable snapshot of the draft for renderers.
type DraftView struct {
	Phase      Phase
	TargetDate Date
	Selected   []string
}

// IsSelected reports membership of task in the snapshot's selection.
func (v DraftView) IsSelected(task string) bool {
	for _, t := range v.Selected {
		if t == task {
			return true
		}
	}
	return false
}
