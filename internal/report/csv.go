// Package report generates the per-run artifacts: the tracking CSV, the
// summary workbook, the rolling master workbook, the interactive charts
// page, and the timeline PNG.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// TrackingRow is one track observation in the tracking CSV and the Tracking
// workbook sheet. One row is written per active track per frame, including
// coasted (occluded) frames, which carry the predicted box.
type TrackingRow struct {
	Frame      int
	Seconds    float64
	TrackID    string
	Class      string
	Confidence float32
	X1, Y1     float32
	X2, Y2     float32
	State      string
}

var trackingHeader = []string{
	"frame", "seconds", "track_id", "class", "confidence",
	"x1", "y1", "x2", "y2", "state",
}

// TrackingCSVWriter streams TrackingRows to a CSV file.
type TrackingCSVWriter struct {
	w      *csv.Writer
	close  io.Closer
	rows   int
	closed bool
}

// NewTrackingCSVWriter writes the header and returns a row writer. The
// underlying writer is closed by Close when it implements io.Closer.
func NewTrackingCSVWriter(w io.Writer) (*TrackingCSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(trackingHeader); err != nil {
		return nil, fmt.Errorf("write tracking CSV header: %w", err)
	}
	t := &TrackingCSVWriter{w: cw}
	if c, ok := w.(io.Closer); ok {
		t.close = c
	}
	return t, nil
}

// WriteRow appends one observation row.
func (t *TrackingCSVWriter) WriteRow(r TrackingRow) error {
	rec := []string{
		strconv.Itoa(r.Frame),
		strconv.FormatFloat(r.Seconds, 'f', 2, 64),
		r.TrackID,
		r.Class,
		strconv.FormatFloat(float64(r.Confidence), 'f', 4, 32),
		formatCoord(r.X1),
		formatCoord(r.Y1),
		formatCoord(r.X2),
		formatCoord(r.Y2),
		r.State,
	}
	if err := t.w.Write(rec); err != nil {
		return fmt.Errorf("write tracking CSV row: %w", err)
	}
	t.rows++
	return nil
}

// Rows returns the number of data rows written so far.
func (t *TrackingCSVWriter) Rows() int { return t.rows }

// Close flushes buffered rows and closes the underlying file.
func (t *TrackingCSVWriter) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("flush tracking CSV: %w", err)
	}
	if t.close != nil {
		return t.close.Close()
	}
	return nil
}

func formatCoord(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 1, 32)
}
