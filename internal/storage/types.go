package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": JSON Lines file backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SubmitRecord is one settled submission. Keep it compact and
// schema-stable.
type SubmitRecord struct {
	At          time.Time `json:"at"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Tasks       int       `json:"tasks"`
	Entries     int       `json:"entries"`
	Provisional int       `json:"provisional"`
	Error       string    `json:"error,omitempty"`
	TookMS      int64     `json:"took_ms"`
}
