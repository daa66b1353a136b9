package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RollupWorker periodically aggregates recent count_events into hourly_rollups.
// Designed to run every 15 minutes and reprocess the last 2 hours (the overlap
// lets late-finishing runs update their buckets).
type RollupWorker struct {
	DB       *DB
	Interval time.Duration // how often to run (e.g., 15m)
	Window   time.Duration // lookback window (e.g., 2h)
	StopChan chan struct{}
}

func NewRollupWorker(db *DB, interval time.Duration) *RollupWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &RollupWorker{
		DB:       db,
		Interval: interval,
		Window:   2 * time.Hour,
		StopChan: make(chan struct{}),
	}
}

// Start runs the periodic worker loop in a goroutine.
func (w *RollupWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					log.Printf("rollup worker run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *RollupWorker) Stop() {
	close(w.StopChan)
}

// RunOnce recomputes the rollups for the last w.Window.
func (w *RollupWorker) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	end := float64(now.Unix())
	start := float64(now.Add(-w.Window).Unix())
	return w.RunRange(ctx, start, end)
}

// RunFullHistory recomputes rollups over every recorded event.
func (w *RollupWorker) RunFullHistory(ctx context.Context) error {
	var start, end float64
	err := w.DB.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(created_at), 0), COALESCE(MAX(created_at), 0) FROM count_events`,
	).Scan(&start, &end)
	if err != nil {
		return err
	}
	if start == 0 && end == 0 {
		log.Printf("Rollup worker full-history run skipped (no events)")
		return nil
	}
	return w.RunRange(ctx, start, end+1)
}

// RunRange recomputes the hourly buckets intersecting [start, end] (unix
// seconds). Buckets are recomputed from scratch, so reprocessing a window is
// idempotent.
func (w *RollupWorker) RunRange(ctx context.Context, start, end float64) error {
	// Align to hour boundaries so partially-covered buckets are recomputed
	// whole rather than from a truncated slice of their events.
	startHour := int64(start) / 3600 * 3600
	endHour := (int64(end)/3600 + 1) * 3600

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT
			CAST(created_at / 3600 AS INTEGER) * 3600 AS hour_unix,
			event_type,
			COUNT(*) AS event_count,
			COUNT(DISTINCT run_id) AS run_count
		FROM count_events
		WHERE created_at >= ? AND created_at < ?
		GROUP BY hour_unix, event_type`,
		float64(startHour), float64(endHour))
	if err != nil {
		return err
	}
	defer rows.Close()

	type bucket struct {
		hour      int64
		eventType string
		events    int64
		runs      int64
	}
	var buckets []bucket
	for rows.Next() {
		var b bucket
		if err := rows.Scan(&b.hour, &b.eventType, &b.events, &b.runs); err != nil {
			return err
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Clear buckets in range first: an hour whose events were all deleted
	// must not keep a stale rollup.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM hourly_rollups WHERE hour_unix >= ? AND hour_unix < ?`,
		startHour, endHour); err != nil {
		return fmt.Errorf("clear rollup range: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hourly_rollups (hour_unix, event_type, event_count, run_count, updated_at)
		VALUES (?, ?, ?, ?, UNIXEPOCH('subsec'))
		ON CONFLICT (hour_unix, event_type) DO UPDATE SET
			event_count = excluded.event_count,
			run_count = excluded.run_count,
			updated_at = UNIXEPOCH('subsec')`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range buckets {
		if _, err := stmt.ExecContext(ctx, b.hour, b.eventType, b.events, b.runs); err != nil {
			return fmt.Errorf("upsert rollup hour=%d type=%s: %w", b.hour, b.eventType, err)
		}
	}

	return tx.Commit()
}

// HourlyRollup is one aggregated bucket.
type HourlyRollup struct {
	HourUnix   int64  `json:"hour_unix"`
	EventType  string `json:"event_type"`
	EventCount int64  `json:"event_count"`
	RunCount   int64  `json:"run_count"`
}

// HourlyRollups returns the stored buckets, oldest first.
func (db *DB) HourlyRollups(ctx context.Context, limit int) ([]HourlyRollup, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.QueryContext(ctx, `
		SELECT hour_unix, event_type, event_count, run_count
		FROM hourly_rollups
		ORDER BY hour_unix, event_type
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("hourly rollups: %w", err)
	}
	defer rows.Close()

	var out []HourlyRollup
	for rows.Next() {
		var r HourlyRollup
		if err := rows.Scan(&r.HourUnix, &r.EventType, &r.EventCount, &r.RunCount); err != nil {
			return nil, fmt.Errorf("hourly rollups: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hourly rollups: %w", err)
	}
	return out, nil
}
