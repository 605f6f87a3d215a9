package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(id string, createdAt time.Time) *domain.Snapshot {
	return &domain.Snapshot{
		ID:        id,
		Title:     "Dashboard Snapshot",
		ImagePath: "media/snapshots/" + id + ".png",
		ImageURL:  "/media/snapshots/" + id + ".png",
		CreatedAt: createdAt,
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestSaveAndGetSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("snap-42", time.Now())
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "snap-42")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.ID != "snap-42" {
		t.Errorf("expected id snap-42, got %s", got.ID)
	}
	if got.AIAnalyzed {
		t.Error("new snapshot should not be analyzed")
	}
	if got.ImagePath != snap.ImagePath {
		t.Errorf("image path mismatch: %s", got.ImagePath)
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetSnapshot(context.Background(), "missing")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.SaveSnapshot(ctx, testSnapshot(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveSnapshot(%s): %v", id, err)
		}
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest.ID != "new" {
		t.Errorf("expected latest snapshot 'new', got %s", latest.ID)
	}
}

func TestLatestSnapshot_Empty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestSnapshot(context.Background())
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}
}

func TestListSnapshots_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := s.SaveSnapshot(ctx, testSnapshot(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveSnapshot(%s): %v", id, err)
		}
	}

	snaps, err := s.ListSnapshots(ctx, 2)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].ID != "c" || snaps[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", snaps[0].ID, snaps[1].ID)
	}
}

func TestUpdateSummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, testSnapshot("snap-1", time.Now())); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if err := s.UpdateSummary(ctx, "snap-1", "Gold rose sharply while oil fell.", ""); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "snap-1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if !got.AIAnalyzed {
		t.Error("expected snapshot to be marked analyzed")
	}
	if !got.HasAISummary() {
		t.Error("expected a non-blank summary")
	}
}

func TestUpdateSummary_RecordsFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveSnapshot(ctx, testSnapshot("snap-2", time.Now())); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if err := s.UpdateSummary(ctx, "snap-2", "", "Cannot connect to Ollama. Is it running? Start with: ollama serve"); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "snap-2")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if !got.AIAnalyzed {
		t.Error("failed analysis should still mark the snapshot analyzed")
	}
	if got.HasAISummary() {
		t.Error("failed analysis should leave summary blank")
	}
	if got.AIAnalysisError == "" {
		t.Error("expected analysis error to be recorded")
	}
}

func TestUpdateSummary_NotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateSummary(context.Background(), "missing", "summary", "")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
