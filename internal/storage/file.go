package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hiveboard/pkg/logx"
)

// Keep the audit file small and readable: trim by age and count so it
// never grows unbounded.
const (
	auditMaxRecords = 1000
	auditMaxAge     = 180 * 24 * time.Hour
)

// fileStore is a dependency-free audit backend: a single append-only
// JSON Lines file, rewritten in place on Compact.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
	f    *os.File

	// appends since the last compaction; used for opportunistic compacts.
	appends int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, f: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendSubmit(ctx context.Context, r SubmitRecord) error {
	_ = ctx
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("audit file closed")
	}
	if err := json.NewEncoder(s.f).Encode(r); err != nil {
		return err
	}
	s.appends++
	if s.appends%500 == 0 {
		if _, err := s.compactLocked(); err != nil {
			s.log.Debug("audit compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentSubmits(ctx context.Context, n int) ([]SubmitRecord, error) {
	_ = ctx
	s.mu.Lock()
	records, err := s.readAllLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].At.After(records[j].At) })
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

func (s *fileStore) Compact(ctx context.Context) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactLocked()
}

func (s *fileStore) readAllLocked() ([]SubmitRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []SubmitRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r SubmitRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// skip corrupt lines; compaction drops them for good
			continue
		}
		out = append(out, r)
	}
	return out, sc.Err()
}

func (s *fileStore) compactLocked() (int, error) {
	records, err := s.readAllLocked()
	if err != nil {
		return 0, err
	}
	kept := compactRecords(records)
	removed := len(records) - len(kept)

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(f)
	for _, r := range kept {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return 0, err
		}
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	// Swap in the compacted file and reopen the append handle.
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return 0, err
	}
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return removed, err
	}
	s.f = nf
	s.appends = 0
	return removed, nil
}

func compactRecords(records []SubmitRecord) []SubmitRecord {
	if len(records) == 0 {
		return records
	}
	cutoff := time.Now().Add(-auditMaxAge)
	kept := make([]SubmitRecord, 0, len(records))
	for _, r := range records {
		if r.At.IsZero() || r.At.Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].At.Before(kept[j].At) })
	if len(kept) > auditMaxRecords {
		kept = kept[len(kept)-auditMaxRecords:]
	}
	return kept
}
