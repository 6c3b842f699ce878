package shared

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestNormalizeKey(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "basic normalization", in: "Kind Of Blue", want: "kind of blue"},
		{name: "extra whitespace", in: "  Kind   Of\tBlue  ", want: "kind of blue"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeKey(tt.in); got != tt.want {
				t.Errorf("NormalizeKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("0 74646-93892 1"); got != "074646938921" {
		t.Errorf("DigitsOnly() = %q", got)
	}
	if got := DigitsOnly("no digits"); got != "" {
		t.Errorf("DigitsOnly() = %q, want empty", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("abc", 3); got != "abc" {
		t.Errorf("Truncate() = %q", got)
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState(32)
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		t.Fatalf("state is not base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(raw))
	}

	other, _ := GenerateState(32)
	if other == state {
		t.Error("two states should differ")
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	if err := SetLogLevel(logger, "warn"); err != nil {
		t.Fatalf("SetLogLevel() error = %v", err)
	}
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	if err := SetLogLevel(logger, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
