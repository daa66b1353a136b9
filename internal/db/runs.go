package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/media"
)

// Run status values. A run moves pending → running → completed or failed.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRun is one processing job for one input video.
type AnalysisRun struct {
	RunID               string   `json:"run_id"`
	VideoName           string   `json:"video_name"`
	Status              string   `json:"status"`
	Error               *string  `json:"error,omitempty"`
	FPS                 float64  `json:"fps"`
	Width               int      `json:"width"`
	Height              int      `json:"height"`
	FrameCount          int      `json:"frame_count"`
	FramesProcessed     int      `json:"frames_processed"`
	RitaseTotal         int      `json:"ritase_total"`
	PassingTotal        int      `json:"passing_total"`
	CyclesCompleted     int      `json:"cycles_completed"`
	PreventedDuplicates int      `json:"prevented_duplicates"`
	TotalTruckFull      int      `json:"total_truck_full"`
	CreatedAt           float64  `json:"created_at"`
	StartedAt           *float64 `json:"started_at,omitempty"`
	FinishedAt          *float64 `json:"finished_at,omitempty"`
}

// CreateRun inserts a pending run for the named video and returns its ID.
func (db *DB) CreateRun(ctx context.Context, videoName string) (string, error) {
	runID := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO analysis_runs (run_id, video_name, status)
		VALUES (?, ?, ?)`,
		runID, videoName, RunStatusPending,
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return runID, nil
}

// StartRun marks the run running and records the probed video properties.
func (db *DB) StartRun(ctx context.Context, runID string, info media.VideoInfo) error {
	res, err := db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status = ?, fps = ?, width = ?, height = ?, frame_count = ?,
		    started_at = UNIXEPOCH('subsec')
		WHERE run_id = ?`,
		RunStatusRunning, info.FPS, info.Width, info.Height, info.FrameCount, runID,
	)
	if err != nil {
		return fmt.Errorf("start run %s: %w", runID, err)
	}
	return requireRowAffected(res, runID)
}

// UpdateRunProgress refreshes the live counters for a running job.
func (db *DB) UpdateRunProgress(ctx context.Context, runID string, framesProcessed, ritase, passing int) error {
	res, err := db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET frames_processed = ?, ritase_total = ?, passing_total = ?
		WHERE run_id = ?`,
		framesProcessed, ritase, passing, runID,
	)
	if err != nil {
		return fmt.Errorf("update run %s progress: %w", runID, err)
	}
	return requireRowAffected(res, runID)
}

// CompleteRun records the final tallies and marks the run completed.
func (db *DB) CompleteRun(ctx context.Context, runID string, framesProcessed int, stats count.Stats, passingTotal int) error {
	res, err := db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status = ?, frames_processed = ?, ritase_total = ?, passing_total = ?,
		    cycles_completed = ?, prevented_duplicates = ?, total_truck_full = ?,
		    finished_at = UNIXEPOCH('subsec')
		WHERE run_id = ?`,
		RunStatusCompleted, framesProcessed, stats.Total, passingTotal,
		stats.CyclesCompleted, stats.PreventedDuplicates, stats.TotalTruckFull, runID,
	)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	return requireRowAffected(res, runID)
}

// FailRun marks the run failed with the given error message.
func (db *DB) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := runErr.Error()
	res, err := db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status = ?, error = ?, finished_at = UNIXEPOCH('subsec')
		WHERE run_id = ?`,
		RunStatusFailed, msg, runID,
	)
	if err != nil {
		return fmt.Errorf("fail run %s: %w", runID, err)
	}
	return requireRowAffected(res, runID)
}

const runColumns = `run_id, video_name, status, error, fps, width, height,
	frame_count, frames_processed, ritase_total, passing_total,
	cycles_completed, prevented_duplicates, total_truck_full,
	created_at, started_at, finished_at`

// GetRun returns one run by ID, or ErrRunNotFound.
func (db *DB) GetRun(ctx context.Context, runID string) (*AnalysisRun, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]AnalysisRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM analysis_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*AnalysisRun, error) {
	var (
		run        AnalysisRun
		errMsg     sql.NullString
		fps        sql.NullFloat64
		width      sql.NullInt64
		height     sql.NullInt64
		frameCount sql.NullInt64
		startedAt  sql.NullFloat64
		finishedAt sql.NullFloat64
	)
	err := row.Scan(
		&run.RunID, &run.VideoName, &run.Status, &errMsg,
		&fps, &width, &height, &frameCount,
		&run.FramesProcessed, &run.RitaseTotal, &run.PassingTotal,
		&run.CyclesCompleted, &run.PreventedDuplicates, &run.TotalTruckFull,
		&run.CreatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	run.FPS = fps.Float64
	run.Width = int(width.Int64)
	run.Height = int(height.Int64)
	run.FrameCount = int(frameCount.Int64)
	if startedAt.Valid {
		run.StartedAt = &startedAt.Float64
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Float64
	}
	return &run, nil
}

func requireRowAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// UpdateRunTotals rewrites a run's tallies without touching its status or
// timestamps. Used after a recount.
func (db *DB) UpdateRunTotals(ctx context.Context, runID string, stats count.Stats, passingTotal int) error {
	res, err := db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET ritase_total = ?, passing_total = ?, cycles_completed = ?,
		    prevented_duplicates = ?, total_truck_full = ?
		WHERE run_id = ?`,
		stats.Total, passingTotal, stats.CyclesCompleted,
		stats.PreventedDuplicates, stats.TotalTruckFull, runID,
	)
	if err != nil {
		return fmt.Errorf("update run %s totals: %w", runID, err)
	}
	return requireRowAffected(res, runID)
}
