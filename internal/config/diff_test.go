package config

import (
	"encoding/json"
	"testing"
)

func hasSection(sections []string, name string) bool {
	for _, s := range sections {
		if s == name {
			return true
		}
	}
	return false
}

func TestSummarizeChangeNoChanges(t *testing.T) {
	cfg := &Config{}
	sections, attrs, plugins := SummarizeChange(cfg, cfg)
	if len(sections) != 0 || len(attrs) != 0 || len(plugins) != 0 {
		t.Fatalf("identical configs reported changes: %v", sections)
	}
}

func TestSummarizeChangeSections(t *testing.T) {
	oldCfg := &Config{}
	newCfg := &Config{}
	newCfg.Board.Endpoint = "http://localhost:8000"
	newCfg.Scheduler.Enabled = true
	newCfg.Telegram.OwnerUserIDs = []int64{7}

	sections, _, _ := SummarizeChange(oldCfg, newCfg)
	for _, want := range []string{"telegram", "board", "scheduler"} {
		if !hasSection(sections, want) {
			t.Fatalf("section %q missing from %v", want, sections)
		}
	}
	if hasSection(sections, "logging") {
		t.Fatalf("logging falsely reported: %v", sections)
	}
}

func TestSummarizeChangeNilOld(t *testing.T) {
	newCfg := &Config{}
	newCfg.Logging.Level = "debug"
	sections, _, _ := SummarizeChange(nil, newCfg)
	if !hasSection(sections, "logging") {
		t.Fatalf("nil old config not treated as empty: %v", sections)
	}
}

func TestSummarizeChangePlugins(t *testing.T) {
	oldCfg := &Config{Plugins: map[string]PluginConfigRaw{
		"calendar": {Enabled: true},
		"status":   {Enabled: true},
	}}
	newCfg := &Config{Plugins: map[string]PluginConfigRaw{
		"calendar": {Enabled: true, Config: json.RawMessage(`{"week_start":"sunday"}`)},
		"status":   {Enabled: true},
	}}

	sections, _, changedPlugins := SummarizeChange(oldCfg, newCfg)
	if !hasSection(sections, "plugins") {
		t.Fatalf("plugins section missing: %v", sections)
	}
	if len(changedPlugins) != 1 || changedPlugins[0] != "calendar" {
		t.Fatalf("changed plugins = %v", changedPlugins)
	}
}
