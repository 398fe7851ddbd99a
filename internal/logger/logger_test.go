package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}

	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestNamedReturnsChild(t *testing.T) {
	if Named("") != Get() {
		t.Error("expected empty component to return the root logger")
	}
	if Named("crawler") == nil {
		t.Error("expected child logger")
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	if l.GetLevel() != zerolog.Disabled {
		t.Errorf("expected disabled level, got %v", l.GetLevel())
	}
}
