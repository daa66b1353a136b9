package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/banshee-data/loadcycle.report/internal/count"
)

// newTestDB opens a migrated database in a temp directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// createTestRun inserts a pending run and returns its ID.
func createTestRun(t *testing.T, database *DB, videoName string) string {
	t.Helper()
	runID, err := database.CreateRun(context.Background(), videoName)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	return runID
}

// testEvent builds a counter event with a fresh ID.
func testEvent(typ count.EventType, seq, frame int, trackID string) count.Event {
	return count.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Seq:        seq,
		FrameIndex: frame,
		Seconds:    float64(frame) / 30.0,
		Confidence: 0.95,
		TrackID:    trackID,
		ClassName:  "truck_full",
	}
}
