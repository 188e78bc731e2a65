package core

import (
	"testing"
)

func TestTokenizeCommandLine(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"/cal", []string{"/cal"}},
		{`/audit 5 --json`, []string{"/audit", "5", "--json"}},
		{`say "hello world" now`, []string{"say", "hello world", "now"}},
		{`say 'single quoted'`, []string{"say", "single quoted"}},
		{`esc \"quote`, []string{"esc", `"quote`}},
		{"tabs\tand  spaces", []string{"tabs", "and", "spaces"}},
	}
	for _, tc := range cases {
		got := tokenizeCommandLine(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("tokenize(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestParseFlags(t *testing.T) {
	pos, flags, bools := parseFlags([]string{"10", "--format=json", "--limit", "5", "--all", "-v", "-xy"})

	if len(pos) != 1 || pos[0] != "10" {
		t.Fatalf("pos = %v", pos)
	}
	if flags["format"] != "json" || flags["limit"] != "5" {
		t.Fatalf("flags = %v", flags)
	}
	if !bools["all"] || !bools["v"] || !bools["x"] || !bools["y"] {
		t.Fatalf("bools = %v", bools)
	}

	// "--key value" only consumes a non-flag value.
	_, flags, bools = parseFlags([]string{"--limit", "--all"})
	if _, ok := flags["limit"]; ok {
		t.Fatalf("flag consumed another flag: %v", flags)
	}
	if !bools["limit"] || !bools["all"] {
		t.Fatalf("bools = %v", bools)
	}
}

func TestCommandTree(t *testing.T) {
	root := newRoot()
	root.add(splitRoute("status"), Command{Route: "status"})
	root.add(splitRoute("status audit"), Command{Route: "status audit"})
	root.add(splitRoute("calendar"), Command{Route: "calendar"})

	n := root.find([]string{"status", "audit"})
	if n == nil || n.cmd == nil || n.cmd.Route != "status audit" {
		t.Fatalf("find status audit = %+v", n)
	}
	if n := root.find([]string{"status"}); n == nil || n.cmd == nil {
		t.Fatalf("intermediate node lost its command")
	}
	if root.find([]string{"nope"}) != nil {
		t.Fatalf("unknown route resolved")
	}

	names := root.childNames()
	if len(names) != 2 || names[0] != "calendar" || names[1] != "status" {
		t.Fatalf("childNames = %v", names)
	}
}

func TestNewReqIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newReqID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
