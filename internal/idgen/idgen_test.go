package idgen

import (
	"regexp"
	"strings"
	"testing"
)

func TestTurnID(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(TurnPrefix) + `[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := TurnID()
		if err != nil {
			t.Fatalf("TurnID() error on iteration %d: %v", i, err)
		}
		if len(id) != len(TurnPrefix)+Length {
			t.Fatalf("TurnID() length = %d, want %d (id=%q)", len(id), len(TurnPrefix)+Length, id)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("TurnID() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestSimSessionID(t *testing.T) {
	id, err := SimSessionID()
	if err != nil {
		t.Fatalf("SimSessionID() error: %v", err)
	}
	if !strings.HasPrefix(id, SimSessionPrefix) {
		t.Errorf("SimSessionID() = %q, want prefix %q", id, SimSessionPrefix)
	}
}

func TestUniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := TurnID()
		if err != nil {
			t.Fatalf("TurnID() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	prefix := "test-"
	id, err := GenerateWithPrefix(prefix)
	if err != nil {
		t.Fatalf("GenerateWithPrefix(%q) error: %v", prefix, err)
	}
	if !strings.HasPrefix(id, prefix) {
		t.Errorf("GenerateWithPrefix(%q) = %q, want prefix %q", prefix, id, prefix)
	}
}
