package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fidlab/quadmatch/internal/geometry"
	"github.com/fidlab/quadmatch/internal/match"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "matches.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(ref, other string, createdAtNs int64) *Record {
	return &Record{
		RefPath:     ref,
		OtherPath:   other,
		Ratio:       14.2,
		Inliers:     9,
		OtherPoints: 12,
		Residual:    0.37,
		Transform:   geometry.Translation(3, -4).Coefficients(),
		DurationMs:  18,
		CreatedAtNs: createdAtNs,
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestOpenCreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := s.Insert(testRecord("r.csv", "m.csv", 0)); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Reopening must keep the existing rows.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()

	n, err := s2.Count()
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestInsertAssignsIDAndCreatedAt(t *testing.T) {
	s := openTestStore(t)

	rec := testRecord("r.csv", "m.csv", 0)
	id, err := s.Insert(rec)
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if id <= 0 {
		t.Errorf("Insert() id = %d, want > 0", id)
	}
	if rec.ID != id {
		t.Errorf("record ID = %d, want %d", rec.ID, id)
	}
	if rec.CreatedAtNs == 0 {
		t.Error("CreatedAtNs was not filled")
	}

	id2, err := s.Insert(testRecord("r.csv", "m2.csv", 0))
	if err != nil {
		t.Fatalf("second Insert() error: %v", err)
	}
	if id2 <= id {
		t.Errorf("second id = %d, want > %d", id2, id)
	}
}

func TestInsertAndListRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := testRecord("frames/t0.csv", "frames/t1.csv", 1000)
	if _, err := s.Insert(want); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	records, err := s.List(0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(records))
	}

	got := records[0]
	if got.RefPath != want.RefPath {
		t.Errorf("RefPath = %q, want %q", got.RefPath, want.RefPath)
	}
	if got.OtherPath != want.OtherPath {
		t.Errorf("OtherPath = %q, want %q", got.OtherPath, want.OtherPath)
	}
	if got.Ratio != want.Ratio {
		t.Errorf("Ratio = %g, want %g", got.Ratio, want.Ratio)
	}
	if got.Inliers != want.Inliers {
		t.Errorf("Inliers = %d, want %d", got.Inliers, want.Inliers)
	}
	if got.OtherPoints != want.OtherPoints {
		t.Errorf("OtherPoints = %d, want %d", got.OtherPoints, want.OtherPoints)
	}
	if got.Residual != want.Residual {
		t.Errorf("Residual = %g, want %g", got.Residual, want.Residual)
	}
	if got.Transform != want.Transform {
		t.Errorf("Transform = %v, want %v", got.Transform, want.Transform)
	}
	if got.DurationMs != want.DurationMs {
		t.Errorf("DurationMs = %d, want %d", got.DurationMs, want.DurationMs)
	}
	if got.CreatedAtNs != want.CreatedAtNs {
		t.Errorf("CreatedAtNs = %d, want %d", got.CreatedAtNs, want.CreatedAtNs)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)

	for i, ns := range []int64{3000, 1000, 2000} {
		rec := testRecord("r.csv", "m.csv", ns)
		rec.Inliers = i
		if _, err := s.Insert(rec); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	records, err := s.List(0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(records))
	}
	for i, wantNs := range []int64{3000, 2000, 1000} {
		if records[i].CreatedAtNs != wantNs {
			t.Errorf("records[%d].CreatedAtNs = %d, want %d", i, records[i].CreatedAtNs, wantNs)
		}
	}
}

func TestListLimit(t *testing.T) {
	s := openTestStore(t)

	for i := range 5 {
		if _, err := s.Insert(testRecord("r.csv", "m.csv", int64(i+1)*1000)); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	records, err := s.List(2)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List(2) returned %d records, want 2", len(records))
	}
	if records[0].CreatedAtNs != 5000 || records[1].CreatedAtNs != 4000 {
		t.Errorf("List(2) returned %d, %d, want 5000, 4000",
			records[0].CreatedAtNs, records[1].CreatedAtNs)
	}
}

func TestListEmpty(t *testing.T) {
	s := openTestStore(t)

	records, err := s.List(10)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List() on empty store returned %d records", len(records))
	}
}

func TestNewRecord(t *testing.T) {
	res := &match.Result{
		Transform:       geometry.Similarity(1.01, 0.02, 256, 256, 5, -3),
		Ratio:           27.5,
		Correspondences: make([]match.Correspondence, 11),
		MeanResidual:    0.58,
		Stats: match.Stats{
			OtherPoints: 14,
			Duration:    1500 * time.Millisecond,
		},
	}

	rec := NewRecord("ref.csv", "mov.csv", res)
	if rec.RefPath != "ref.csv" || rec.OtherPath != "mov.csv" {
		t.Errorf("paths = %q, %q", rec.RefPath, rec.OtherPath)
	}
	if rec.Ratio != 27.5 {
		t.Errorf("Ratio = %g, want 27.5", rec.Ratio)
	}
	if rec.Inliers != 11 {
		t.Errorf("Inliers = %d, want 11", rec.Inliers)
	}
	if rec.OtherPoints != 14 {
		t.Errorf("OtherPoints = %d, want 14", rec.OtherPoints)
	}
	if rec.Residual != 0.58 {
		t.Errorf("Residual = %g, want 0.58", rec.Residual)
	}
	if rec.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", rec.DurationMs)
	}
	if rec.Transform != res.Transform.Coefficients() {
		t.Errorf("Transform = %v, want %v", rec.Transform, res.Transform.Coefficients())
	}
	if rec.CreatedAtNs != 0 {
		t.Errorf("CreatedAtNs = %d, want 0 before Insert", rec.CreatedAtNs)
	}
}
