package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Board controls the scheduling board core: the sync endpoint the board
	// submits drafts to, and the task sheet offered when a day is opened.
	Board BoardConfig `json:"board"`

	Scheduler SchedulerConfig `json:"scheduler"`

	Storage *StorageConfig             `json:"storage,omitempty"`
	Plugins map[string]PluginConfigRaw `json:"plugins"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// BoardConfig controls the scheduling board and its sync client.
type BoardConfig struct {
	// Endpoint is the base URL of the sync service, e.g. "https://api.example.com/schedule".
	Endpoint string `json:"endpoint"`
	// Timeout is a Go duration string applied to each sync request.
	Timeout string `json:"timeout,omitempty"`

	// CandidateTasks is the task sheet offered when a day is opened for
	// drafting. Empty means the built-in beekeeping defaults.
	CandidateTasks []string `json:"candidate_tasks,omitempty"`

	Prefetch PrefetchConfig `json:"prefetch,omitempty"`
}

// PrefetchConfig controls the best-effort background fetch of existing
// schedules. Failures never surface to users; the board works without it.
type PrefetchConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec for the recurring fetch. Default: "@every 6h".
	Schedule string `json:"schedule,omitempty"`
	// MonthsAhead extends the fetch past the current month. Default 1.
	MonthsAhead int `json:"months_ahead,omitempty"`
}

// SchedulerConfig controls the background job service.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	Workers int  `json:"workers"`
	// DefaultTimeout is a Go duration string (e.g. "10s", "1m").
	// Use "0s" to disable a global default timeout.
	DefaultTimeout string `json:"default_timeout"`
	HistorySize    int    `json:"history_size"`
	Timezone       string `json:"timezone,omitempty"`
}

// StorageConfig controls the optional submit audit trail.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./hiveboard_audit" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type PluginConfigRaw struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON disallows unknown fields so typos in per-plugin blocks are
// caught during config reload rather than silently ignored.
func (p *PluginConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled bool            `json:"enabled"`
		Config  json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*p = PluginConfigRaw{Enabled: t.Enabled, Config: t.Config}
	return nil
}
