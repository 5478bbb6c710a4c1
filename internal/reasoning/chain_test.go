package reasoning

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestChain_AddStepNumbersInOrder(t *testing.T) {
	c := New("Test Chain")
	c.AddStep("first", []string{"a"}, "one").
		AddStep("second", nil, "two").
		AddStep("third", []string{"b", "c"}, "three")

	rec, err := c.SetConclusion("done", ConfidenceHigh)
	if err != nil {
		t.Fatalf("SetConclusion failed: %v", err)
	}

	want := []Step{
		{Number: 1, Description: "first", Findings: []string{"a"}, Conclusion: "one"},
		{Number: 2, Description: "second", Findings: []string{}, Conclusion: "two"},
		{Number: 3, Description: "third", Findings: []string{"b", "c"}, Conclusion: "three"},
	}
	if diff := cmp.Diff(want, rec.Steps()); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	if rec.FinalConclusion() != "done" || rec.Confidence() != ConfidenceHigh {
		t.Errorf("unexpected terminal fields: %q %q", rec.FinalConclusion(), rec.Confidence())
	}
	if !rec.Complete() {
		t.Error("expected record to be complete")
	}
}

func TestChain_FindingsAreCopied(t *testing.T) {
	findings := []string{"original"}
	c := New("Copy")
	c.AddStep("step", findings, "")
	findings[0] = "mutated"

	rec, err := c.SetConclusion("ok", ConfidenceLow)
	if err != nil {
		t.Fatalf("SetConclusion failed: %v", err)
	}
	if got := rec.Steps()[0].Findings[0]; got != "original" {
		t.Errorf("expected appended findings to be immutable, got %q", got)
	}

	steps := rec.Steps()
	steps[0].Findings[0] = "changed"
	if got := rec.Steps()[0].Findings[0]; got != "original" {
		t.Errorf("expected record steps to be immutable, got %q", got)
	}
}

func TestChain_SetConclusionTwice(t *testing.T) {
	c := New("Twice")
	if _, err := c.SetConclusion("first", ConfidenceHigh); err != nil {
		t.Fatalf("first SetConclusion failed: %v", err)
	}
	_, err := c.SetConclusion("second", ConfidenceHigh)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestChain_SetConclusionUnknownConfidence(t *testing.T) {
	c := New("Confidence")
	if _, err := c.SetConclusion("x", Confidence("VERY HIGH")); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	// A rejected conclusion leaves the chain open.
	if _, err := c.SetConclusion("x", ConfidenceMedium); err != nil {
		t.Fatalf("expected valid conclusion to succeed, got %v", err)
	}
}

func TestChain_StepAfterConclusionIsMalformed(t *testing.T) {
	c := New("Late")
	c.AddStep("only", nil, "")
	rec, err := c.SetConclusion("done", ConfidenceHigh)
	if err != nil {
		t.Fatalf("SetConclusion failed: %v", err)
	}

	c.AddStep("late", nil, "")

	if _, err := c.Render(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected Render to fail with ErrInvalidState, got %v", err)
	}
	if _, err := c.Serialize(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected Serialize to fail with ErrInvalidState, got %v", err)
	}
	if len(rec.Steps()) != 1 {
		t.Errorf("expected record to keep 1 step, got %d", len(rec.Steps()))
	}
}

func TestChain_RenderIncomplete(t *testing.T) {
	c := New("Pending")
	c.AddStep("Scanning", []string{"finding one"}, "partial")

	out, err := c.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "[incomplete]") {
		t.Errorf("expected incomplete marker, got:\n%s", out)
	}
	if strings.Contains(out, "Confidence:") {
		t.Errorf("incomplete chain should not render confidence:\n%s", out)
	}
}

func TestRecord_Render(t *testing.T) {
	c := New("Risk Level Assessment")
	c.AddStep("Cataloging", []string{"SSN: 1 instance(s) [CRITICAL tier]"}, "1 detection")
	rec, err := c.SetConclusion("CRITICAL", ConfidenceHigh)
	if err != nil {
		t.Fatalf("SetConclusion failed: %v", err)
	}

	want := rule + "\n" +
		"Risk Level Assessment\n" +
		rule + "\n\n" +
		"Step 1: Cataloging\n" +
		"  - SSN: 1 instance(s) [CRITICAL tier]\n" +
		"  → Conclusion: 1 detection\n\n" +
		"Final Conclusion: CRITICAL\n" +
		"Confidence: HIGH\n"

	if diff := cmp.Diff(want, rec.Render()); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
	if rec.Render() != rec.Render() {
		t.Error("expected deterministic render")
	}
}
