// Package schedule holds the scheduling board core: the in-memory entry
// store keyed by calendar date, the single-active-draft selection state
// machine, and the Board that drives submissions through the sync client.
//
// # Overview
//
// The Store is the authoritative day-bucketed table of entries. It is
// rebuilt wholesale from server responses, scoped to the dates a response
// actually contains. Consumers (renderers) are expected to clear and
// rebuild from EntriesFor on every mutation; the store offers no
// incremental diff.
//
// The Draft is the one in-progress selection of tasks for one date.
// Opening a new date silently abandons the previous draft (last activation
// wins). An empty selection cannot be submitted; a failed submission
// returns the draft to an editable state with the selection intact.
//
// The Board owns both plus a submitter port and enforces the one
// submission at a time rule. A submission result that arrives after its
// draft was abandoned is still applied to the store (buckets are keyed by
// date, not by draft identity) but never touches the newer draft.
//
// This package is UI-agnostic: it never imports the transport layer.
package schedule
