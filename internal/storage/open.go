package storage

import (
	"context"
	"errors"
	"strings"

	"hiveboard/pkg/logx"
)

// Store is the minimal audit API used by the board wiring.
type Store interface {
	AppendSubmit(ctx context.Context, r SubmitRecord) error
	RecentSubmits(ctx context.Context, n int) ([]SubmitRecord, error)
	// Compact trims old records; wired to a scheduler job.
	Compact(ctx context.Context) (removed int, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
