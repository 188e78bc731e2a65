package logx

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestZeroAndNopLoggers(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero value not IsZero")
	}
	// Must not panic.
	zero.Info("dropped", String("k", "v"))

	nop := Nop()
	if nop.IsZero() {
		t.Fatalf("Nop() reported IsZero")
	}
	nop.Error("dropped too", Err(errors.New("x")))
}

func TestWithDerivesWithoutMutatingParent(t *testing.T) {
	parent := Nop()
	child := parent.With(String("comp", "test"))
	if len(parent.fields) != 0 {
		t.Fatalf("parent mutated: %d fields", len(parent.fields))
	}
	if len(child.fields) != 1 {
		t.Fatalf("child fields = %d", len(child.fields))
	}
	grand := child.With(String("sub", "x"), Int("n", 1))
	if len(child.fields) != 1 || len(grand.fields) != 3 {
		t.Fatalf("derivation broken: %d/%d", len(child.fields), len(grand.fields))
	}
}

func TestServiceApplySwapsLevel(t *testing.T) {
	svc, log := New(Config{Level: "error", Console: false}, nil)
	defer svc.Close()

	if log.Enabled(LevelInfo) {
		t.Fatalf("info enabled at error level")
	}
	svc.Apply(Config{Level: "debug", Console: false})
	if !log.Enabled(LevelInfo) {
		t.Fatalf("logger did not follow Apply")
	}
}
