package db

import (
	"context"
	"fmt"

	"github.com/banshee-data/loadcycle.report/internal/report"
)

// defaultObservationBatch is the number of buffered rows flushed per
// transaction. One row lands per active track per frame, so a run produces
// tens of thousands; row-at-a-time inserts would dominate the run time.
const defaultObservationBatch = 500

// InsertObservations writes a batch of track observations in one
// transaction. Re-inserting a (run, track, frame) key replaces the row, so
// replays and re-runs are idempotent.
func (db *DB) InsertObservations(ctx context.Context, runID string, rows []report.TrackingRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert observations: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO track_observations (
			run_id, track_id, frame_index, seconds, class_name,
			confidence, x1, y1, x2, y2, state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("insert observations: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, runID, r.TrackID, r.Frame, r.Seconds,
			r.Class, r.Confidence, r.X1, r.Y1, r.X2, r.Y2, r.State)
		if err != nil {
			return fmt.Errorf("insert observation run=%s track=%s frame=%d: %w",
				runID, r.TrackID, r.Frame, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert observations: %w", err)
	}
	return nil
}

// RunObservations returns a run's observations ordered by frame then track.
// Track ids are "track_<n>" text, so within a frame the sort is length then
// lexicographic, which is creation order; plain text ordering would put
// track_10 before track_2 and change replay results.
func (db *DB) RunObservations(ctx context.Context, runID string) ([]report.TrackingRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT frame_index, seconds, track_id, class_name, confidence,
		       x1, y1, x2, y2, state
		FROM track_observations
		WHERE run_id = ?
		ORDER BY frame_index, LENGTH(track_id), track_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("observations for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []report.TrackingRow
	for rows.Next() {
		var r report.TrackingRow
		if err := rows.Scan(&r.Frame, &r.Seconds, &r.TrackID, &r.Class,
			&r.Confidence, &r.X1, &r.Y1, &r.X2, &r.Y2, &r.State); err != nil {
			return nil, fmt.Errorf("observations for run %s: %w", runID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("observations for run %s: %w", runID, err)
	}
	return out, nil
}

// ObservationWriter buffers tracking rows and flushes them in batches. It
// satisfies the pipeline's row sink; call Flush once the run is over.
type ObservationWriter struct {
	db        *DB
	runID     string
	batchSize int
	buf       []report.TrackingRow
}

// NewObservationWriter returns a batched row sink for runID.
func (db *DB) NewObservationWriter(runID string) *ObservationWriter {
	return &ObservationWriter{db: db, runID: runID, batchSize: defaultObservationBatch}
}

func (w *ObservationWriter) WriteRow(r report.TrackingRow) error {
	w.buf = append(w.buf, r)
	if len(w.buf) >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// Flush writes any buffered rows.
func (w *ObservationWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.db.InsertObservations(context.Background(), w.runID, w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	return nil
}
