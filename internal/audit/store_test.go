package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/compass/internal/model"
	"github.com/ppiankov/compass/internal/reasoning"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func concluded(t *testing.T, title, conclusion string) reasoning.Record {
	t.Helper()
	record, err := reasoning.New(title).
		AddStep("Scanning", []string{"finding one", "finding two"}, "done").
		SetConclusion(conclusion, reasoning.ConfidenceHigh)
	if err != nil {
		t.Fatalf("SetConclusion failed: %v", err)
	}
	return record
}

func sampleReport(t *testing.T, id string, at time.Time) *model.Report {
	return &model.Report{
		ID:          id,
		Message:     "Customer jane@example.com called",
		ProcessedAt: at,
		Classification: model.Classification{
			Category: model.CategoryPersonalInformation,
			Chain:    concluded(t, "Message Classification", "PERSONAL_INFORMATION_TICKET"),
		},
		Risk: &model.RiskSummary{
			Severity: model.SeverityHigh,
			Chain:    concluded(t, "Risk Assessment", "HIGH"),
		},
		Retrieval: model.Retrieval{
			Passages: []model.Passage{{Text: "t", Source: "s"}},
			Chain:    concluded(t, "Multi-Step Retrieval", "Retrieval complete with 1 unique passages"),
		},
	}
}

func TestStore_SaveAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	report := sampleReport(t, "r-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	saved, err := s.SaveReport(ctx, report)
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	if len(saved) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(saved))
	}

	entries, err := s.List(ctx, "r-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = e.Title
		if e.Position != i {
			t.Errorf("Expected position %d, got %d", i, e.Position)
		}
	}
	want := []string{"Message Classification", "Risk Assessment", "Multi-Step Retrieval"}
	if diff := cmp.Diff(want, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(report.Risk.Chain, entries[1].Record, cmp.AllowUnexported(reasoning.Record{}, reasoning.Step{})); diff != "" {
		t.Errorf("replayed record differs (-want +got):\n%s", diff)
	}
	if entries[1].Record.Render() != report.Risk.Chain.Render() {
		t.Error("Expected identical transcript on replay")
	}
}

func TestStore_Get(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	saved, err := s.SaveReport(ctx, sampleReport(t, "r-1", time.Now()))
	if err != nil {
		t.Fatal(err)
	}

	entry, err := s.Get(ctx, saved[0].ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Digest != saved[0].Digest || entry.ReportID != "r-1" {
		t.Errorf("Unexpected entry %+v", entry)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := s.List(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_DetectsTampering(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	saved, err := s.SaveReport(ctx, sampleReport(t, "r-1", time.Now()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.db.Exec(`UPDATE chains SET canonical = replace(canonical, 'HIGH', 'LOW') WHERE entry_id = ?`, saved[1].ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, saved[1].ID); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("Expected ErrDigestMismatch, got %v", err)
	}
}

func TestStore_DuplicateReportRejected(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.SaveReport(ctx, sampleReport(t, "r-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveReport(ctx, sampleReport(t, "r-1", time.Now())); err == nil {
		t.Error("Expected error for duplicate report id")
	}

	entries, err := s.List(ctx, "r-1")
	if err != nil || len(entries) != 3 {
		t.Errorf("Expected original entries untouched, got %d, %v", len(entries), err)
	}
}

func TestStore_RejectsIncompleteChain(t *testing.T) {
	s := openStore(t)
	report := sampleReport(t, "r-1", time.Now())
	report.Retrieval.Chain = reasoning.Record{}

	if _, err := s.SaveReport(context.Background(), report); !errors.Is(err, reasoning.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
	if _, err := s.List(context.Background(), "r-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected rollback, got %v", err)
	}
}

func TestStore_Reports(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	older := sampleReport(t, "r-old", base)
	newer := sampleReport(t, "r-new", base.Add(time.Hour))
	newer.Risk = nil
	newer.Classification.Category = model.CategoryGeneralQuestion

	for _, r := range []*model.Report{older, newer} {
		if _, err := s.SaveReport(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	summaries, err := s.Reports(ctx, 10)
	if err != nil {
		t.Fatalf("Reports failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ReportID != "r-new" || summaries[0].Severity != "" {
		t.Errorf("Unexpected newest summary %+v", summaries[0])
	}
	if summaries[1].Severity != "HIGH" || summaries[1].Category != model.CategoryPersonalInformation {
		t.Errorf("Unexpected older summary %+v", summaries[1])
	}
	if summaries[1].MessageDigest == "" || summaries[1].MessageDigest == older.Message {
		t.Error("Expected message digest, never the message")
	}
}

func TestStore_ReportsOrderedWithinOneSecond(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Whole-second and fractional timestamps in the same second
	for _, r := range []*model.Report{
		sampleReport(t, "r-0ms", base),
		sampleReport(t, "r-100ms", base.Add(100*time.Millisecond)),
		sampleReport(t, "r-120ms", base.Add(120*time.Millisecond)),
	} {
		if _, err := s.SaveReport(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	summaries, err := s.Reports(ctx, 10)
	if err != nil {
		t.Fatalf("Reports failed: %v", err)
	}
	var got []string
	for _, r := range summaries {
		got = append(got, r.ReportID)
	}
	want := []string{"r-120ms", "r-100ms", "r-0ms"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report order mismatch (-want +got):\n%s", diff)
	}
	if !summaries[2].ProcessedAt.Equal(base) {
		t.Errorf("ProcessedAt = %v, want %v", summaries[2].ProcessedAt, base)
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := s.SaveReport(context.Background(), sampleReport(t, "r-1", time.Now())); err != nil {
		t.Errorf("SaveReport failed: %v", err)
	}
}
