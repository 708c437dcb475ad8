package shared

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("cyc_")
	if !strings.HasPrefix(id, "cyc_") {
		t.Errorf("expected prefix 'cyc_', got %q", id)
	}
	if len(id) != len("cyc_")+32 {
		t.Errorf("expected 32 hex chars after prefix, got %q", id)
	}
	if NewID("cyc_") == id {
		t.Error("expected unique ids")
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", DefaultPageSize},
		{"abc", DefaultPageSize},
		{"0", DefaultPageSize},
		{"-5", DefaultPageSize},
		{"7", 7},
		{"100000", MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseLimit(tt.raw); got != tt.want {
				t.Errorf("ParseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
