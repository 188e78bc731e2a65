//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hiveboard/pkg/logx"
)

const submitSchema = `
CREATE TABLE IF NOT EXISTS submits (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          TEXT NOT NULL,
	date        TEXT NOT NULL,
	tasks       INTEGER NOT NULL,
	entries     INTEGER NOT NULL,
	provisional INTEGER NOT NULL,
	err         TEXT,
	took_ms     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS submits_at ON submits(at);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(submitSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendSubmit(ctx context.Context, r SubmitRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submits(at, date, tasks, entries, provisional, err, took_ms)
		 VALUES(?,?,?,?,?,?,?)`,
		r.At.Format(time.RFC3339Nano), r.Date, r.Tasks, r.Entries, r.Provisional,
		nullStr(r.Error), r.TookMS,
	)
	return err
}

func (s *sqliteStore) RecentSubmits(ctx context.Context, n int) ([]SubmitRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, date, tasks, entries, provisional, COALESCE(err, ''), took_ms
		 FROM submits ORDER BY at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubmitRecord
	for rows.Next() {
		var r SubmitRecord
		var at string
		if err := rows.Scan(&at, &r.Date, &r.Tasks, &r.Entries, &r.Provisional, &r.Error, &r.TookMS); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			r.At = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Compact(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	cutoff := time.Now().Add(-auditMaxAge).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM submits WHERE at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	// Cap by count as well, oldest first.
	res2, err := s.db.ExecContext(ctx,
		`DELETE FROM submits WHERE id NOT IN (SELECT id FROM submits ORDER BY at DESC LIMIT ?)`,
		auditMaxRecords)
	if err != nil {
		return int(n), err
	}
	n2, _ := res2.RowsAffected()
	return int(n + n2), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
