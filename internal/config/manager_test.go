package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const minimalJSON = `{
  "telegram": {"token": "t", "owner_user_ids": [1], "poll_timeout": "10s"},
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "thread_id": 0, "min_level": "warn", "rate_per_sec": 1}},
  "board": {"endpoint": "http://localhost:8000/api/calendar/schedule", "timeout": "30s", "prefetch": {"enabled": true, "schedule": "@every 6h", "months_ahead": 1}},
  "scheduler": {"enabled": true, "workers": 2, "default_timeout": "30s", "history_size": 100},
  "plugins": {"calendar": {"enabled": true}}
}`

const minimalYAML = `
telegram:
  token: t
  owner_user_ids: [1]
  poll_timeout: 10s
logging:
  level: info
  console: true
  file: {enabled: false, path: ""}
  telegram: {enabled: false, thread_id: 0, min_level: warn, rate_per_sec: 1}
board:
  endpoint: http://localhost:8000/api/calendar/schedule
  timeout: 30s
  prefetch: {enabled: true, schedule: "@every 6h", months_ahead: 1}
scheduler:
  enabled: true
  workers: 2
  default_timeout: 30s
  history_size: 100
plugins:
  calendar: {enabled: true}
`

func TestLoadJSONAndYAMLParity(t *testing.T) {
	jm := NewManager(writeConfig(t, "config.json", minimalJSON))
	jc, err := jm.Load()
	if err != nil {
		t.Fatalf("load json: %v", err)
	}

	ym := NewManager(writeConfig(t, "config.yaml", minimalYAML))
	yc, err := ym.Load()
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	if hashConfig(jc) != hashConfig(yc) {
		t.Fatalf("json and yaml configs differ:\n%+v\n%+v", jc, yc)
	}
	if jc.Board.Endpoint != "http://localhost:8000/api/calendar/schedule" {
		t.Fatalf("endpoint = %q", jc.Board.Endpoint)
	}
	if !jc.Plugins["calendar"].Enabled {
		t.Fatalf("plugin block lost")
	}
	if jm.Get() != jc {
		t.Fatalf("Get did not return committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", `{"telegram": {"token": "t", "tokne_typo": "x"}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("unknown field accepted")
	}

	m = NewManager(writeConfig(t, "config.json", `{"plugins": {"calendar": {"enabled": true, "enbaled": false}}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("unknown plugin field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", `{"plugins": {}} {"more": true}`))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("trailing data accepted")
	}
}

func TestParseMissingFile(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.json"))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	m := NewManager(writeConfig(t, "config.json", minimalJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ch := m.Subscribe(1)
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatalf("published wrong config")
		}
	default:
		t.Fatalf("nothing published")
	}

	// Full buffer: oldest dropped, newest kept.
	m.publish(cfg)
	next := &Config{}
	m.publish(next)
	if got := <-ch; got != next {
		t.Fatalf("drop-oldest policy broken")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed on unsubscribe")
	}
}

func TestParseDurations(t *testing.T) {
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatalf("garbage accepted")
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatalf("negative accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", 42); err != nil || d != 42 {
		t.Fatalf("default: %v %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "5s", 42); err != nil || d.Seconds() != 5 {
		t.Fatalf("explicit: %v %v", d, err)
	}
}
