package retrieve

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/compass/internal/model"
)

func TestNormalizedKey(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"  Hello World  ", 200, "hello world"},
		{"ABCDEF", 3, "abc"},
		{"Straße", 200, "strasse"},
		{"éclair", 2, "éc"},
		{"", 10, ""},
	}
	for _, tt := range tests {
		if got := NormalizedKey(tt.in, tt.n); got != tt.want {
			t.Errorf("NormalizedKey(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestDedup_FirstSeenWins(t *testing.T) {
	in := []model.Passage{
		{Text: "Same text", Source: "low", Relevance: 0.1},
		{Text: "Other", Source: "x", Relevance: 0.5},
		{Text: "SAME TEXT", Source: "high", Relevance: 0.99},
	}

	out, removed := Dedup(in, 200)
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
	if out[0].Source != "low" {
		t.Errorf("Expected first occurrence to survive regardless of relevance, got %s", out[0].Source)
	}
	if out[1].Source != "x" {
		t.Errorf("Expected relative order preserved, got %v", out)
	}
}

func TestDedup_PrefixOnly(t *testing.T) {
	prefix := strings.Repeat("a", 10)
	in := []model.Passage{{Text: prefix + " tail one"}, {Text: prefix + " tail two"}}

	if out, _ := Dedup(in, 10); len(out) != 1 {
		t.Errorf("Expected texts sharing the prefix to collapse, got %d", len(out))
	}
	if out, _ := Dedup(in, 200); len(out) != 2 {
		t.Errorf("Expected distinct texts with a long prefix, got %d", len(out))
	}
}

func TestDedup_Idempotent(t *testing.T) {
	in := []model.Passage{
		{Text: "One"}, {Text: " one "}, {Text: "Two"}, {Text: "two"}, {Text: "Three"},
	}

	once, _ := Dedup(in, 200)
	twice, removed := Dedup(once, 200)
	if removed != 0 {
		t.Errorf("Expected no further removals, got %d", removed)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Dedup not idempotent (-once +twice):\n%s", diff)
	}
}

func TestDedup_Empty(t *testing.T) {
	out, removed := Dedup(nil, 200)
	if len(out) != 0 || removed != 0 {
		t.Errorf("Expected empty result, got %v, %d", out, removed)
	}
}
