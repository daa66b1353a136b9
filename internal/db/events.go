package db

import (
	"context"
	"fmt"

	"github.com/banshee-data/loadcycle.report/internal/count"
)

// RecordEvent persists one counter event for a run. Replays of the same
// (run, type, seq) are idempotent.
func (db *DB) RecordEvent(ctx context.Context, runID string, ev count.Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO count_events (
			event_id, run_id, event_type, seq, frame_index,
			seconds, confidence, track_id, class_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, event_type, seq) DO UPDATE SET
			frame_index = excluded.frame_index,
			seconds = excluded.seconds,
			confidence = excluded.confidence,
			track_id = excluded.track_id,
			class_name = excluded.class_name`,
		ev.ID, runID, string(ev.Type), ev.Seq, ev.FrameIndex,
		ev.Seconds, ev.Confidence, ev.TrackID, ev.ClassName,
	)
	if err != nil {
		return fmt.Errorf("record %s event #%d for run %s: %w", ev.Type, ev.Seq, runID, err)
	}
	return nil
}

// RunEvents returns all events for a run in frame order.
func (db *DB) RunEvents(ctx context.Context, runID string) ([]count.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_id, event_type, seq, frame_index, seconds, confidence, track_id, class_name
		FROM count_events
		WHERE run_id = ?
		ORDER BY frame_index, event_type, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("events for run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []count.Event
	for rows.Next() {
		var (
			ev  count.Event
			typ string
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.Seq, &ev.FrameIndex,
			&ev.Seconds, &ev.Confidence, &ev.TrackID, &ev.ClassName); err != nil {
			return nil, fmt.Errorf("events for run %s: %w", runID, err)
		}
		ev.Type = count.EventType(typ)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events for run %s: %w", runID, err)
	}
	return events, nil
}

// EventRecorder adapts the store to the pipeline's event sink for one run.
type EventRecorder struct {
	db    *DB
	runID string
}

// NewEventRecorder returns a sink that persists events under runID.
func (db *DB) NewEventRecorder(runID string) *EventRecorder {
	return &EventRecorder{db: db, runID: runID}
}

func (r *EventRecorder) RecordEvent(ev count.Event) error {
	return r.db.RecordEvent(context.Background(), r.runID, ev)
}

// ReplaceRunEvents atomically replaces every stored event for a run, used
// when a recount rewrites history with different thresholds.
func (db *DB) ReplaceRunEvents(ctx context.Context, runID string, events []count.Event) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace events for run %s: %w", runID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM count_events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("replace events for run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO count_events (
			event_id, run_id, event_type, seq, frame_index,
			seconds, confidence, track_id, class_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("replace events for run %s: %w", runID, err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, ev.ID, runID, string(ev.Type), ev.Seq,
			ev.FrameIndex, ev.Seconds, ev.Confidence, ev.TrackID, ev.ClassName); err != nil {
			return fmt.Errorf("replace %s event #%d for run %s: %w", ev.Type, ev.Seq, runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace events for run %s: %w", runID, err)
	}
	return nil
}
