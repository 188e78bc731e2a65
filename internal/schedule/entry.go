package schedule

// Entry is one scheduled task on one date.
//
// Task is an opaque, human-readable label. Uniqueness is per (date, task)
// pair only by server convention; the store does not deduplicate.
//
// Provisional marks entries injected by the external predictor rather
// than explicitly chosen by the user in this session. Renderers must
// distinguish them visually; a user can acknowledge one locally via
// Store.PromoteLocally without a server round-trip.
type Entry struct {
	Date        Date   `json:"date"`
	Task        string `json:"task"`
	Provisional bool   `json:"provisional"`
}
