package syncapi

import (
	"errors"
	"fmt"
)

// Kind classifies a sync failure. The two kinds settle identically for
// the submit path (draft back to Open, store untouched) but are kept
// distinct for logging and tests.
type Kind int

const (
	// KindTransport covers network errors and non-2xx statuses.
	KindTransport Kind = iota + 1
	// KindMalformed covers a 2xx response whose body is missing the
	// expected entry list or cannot be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// SyncError is the failure type surfaced by Client. It wraps the
// underlying cause so errors.Is/As keep working.
type SyncError struct {
	Kind   Kind
	Op     string // "submit" or "fetch"
	Status int    // HTTP status when one was received, else 0
	cause  error
}

func (e *SyncError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sync %s: %s (http=%d): %v", e.Op, e.Kind, e.Status, e.cause)
	}
	return fmt.Sprintf("sync %s: %s: %v", e.Op, e.Kind, e.cause)
}

func (e *SyncError) Unwrap() error { return e.cause }

func transportErr(op string, status int, cause error) *SyncError {
	return &SyncError{Kind: KindTransport, Op: op, Status: status, cause: cause}
}

func malformedErr(op string, cause error) *SyncError {
	return &SyncError{Kind: KindMalformed, Op: op, cause: cause}
}

// IsTransport reports whether err is a transport-kind sync error.
func IsTransport(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Kind == KindTransport
}

// IsMalformed reports whether err is a malformed-response sync error.
func IsMalformed(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Kind == KindMalformed
}
