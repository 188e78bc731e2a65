package schedule

import (
	"sort"
	"sync"
	"time"

	"hiveboard/internal/eventbus"
)

// EventUpdated is published on the bus after every store mutation.
// Data is an UpdatedEvent.
const EventUpdated = "schedule.updated"

// UpdatedEvent lists the dates whose buckets changed.
type UpdatedEvent struct {
	Dates []Date
}

// Store is the authoritative in-memory table of schedule entries, keyed
// by calendar date. It is created empty and rebuilt in bulk from server
// responses; replacement is scoped to the dates present in a response.
//
// Invariant: every entry in the bucket for date D has Entry.Date == D
// (ReplaceForDates groups by each entry's own date, so this holds by
// construction).
type Store struct {
	mu      sync.RWMutex
	buckets map[Date][]Entry

	bus eventbus.Bus // optional; nil disables notifications
}

// NewStore creates an empty store. bus may be nil.
func NewStore(bus eventbus.Bus) *Store {
	return &Store{buckets: map[Date][]Entry{}, bus: bus}
}

// ReplaceForDates installs entries bucket-by-bucket: for each distinct
// date present in the input the existing bucket is discarded and rebuilt
// in input order; dates absent from the input are left untouched.
// An empty input is a no-op (no event either).
func (s *Store) ReplaceForDates(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	grouped := map[Date][]Entry{}
	order := make([]Date, 0, 4)
	for _, e := range entries {
		if e.Date.IsZero() {
			continue
		}
		if _, ok := grouped[e.Date]; !ok {
			order = append(order, e.Date)
		}
		grouped[e.Date] = append(grouped[e.Date], e)
	}
	if len(grouped) == 0 {
		return
	}

	s.mu.Lock()
	for d, bucket := range grouped {
		s.buckets[d] = bucket
	}
	s.mu.Unlock()

	s.notify(order)
}

// EntriesFor returns a copy of the bucket for d, in arrival order.
// It never fails; an unknown date yields an empty slice.
func (s *Store) EntriesFor(d Date) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.buckets[d]
	out := make([]Entry, len(bucket))
	copy(out, bucket)
	return out
}

// PromoteLocally flips Provisional to false for the first matching
// (date, task) entry without contacting the server. This models the user
// acknowledging a predictor entry directly on the calendar. It reports
// whether an entry was promoted; a miss is a silent no-op.
func (s *Store) PromoteLocally(d Date, task string) bool {
	s.mu.Lock()
	bucket := s.buckets[d]
	promoted := false
	for i := range bucket {
		if bucket[i].Task == task && bucket[i].Provisional {
			bucket[i].Provisional = false
			promoted = true
			break
		}
	}
	s.mu.Unlock()

	if promoted {
		s.notify([]Date{d})
	}
	return promoted
}

// MonthEntries returns copies of all buckets falling in the given month,
// keyed by date. Handy for grid renderers.
func (s *Store) MonthEntries(year int, month time.Month) map[Date][]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[Date][]Entry{}
	for d, bucket := range s.buckets {
		if d.Year != year || d.Month != month {
			continue
		}
		cp := make([]Entry, len(bucket))
		copy(cp, bucket)
		out[d] = cp
	}
	return out
}

// Dates returns all dates with a non-empty bucket, ascending.
func (s *Store) Dates() []Date {
	s.mu.RLock()
	out := make([]Date, 0, len(s.buckets))
	for d, bucket := range s.buckets {
		if len(bucket) > 0 {
			out = append(out, d)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Len returns the total entry count across all buckets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, bucket := range s.buckets {
		n += len(bucket)
	}
	return n
}

func (s *Store) notify(dates []Date) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: EventUpdated, Data: UpdatedEvent{Dates: dates}})
}
