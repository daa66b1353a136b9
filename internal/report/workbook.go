package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/units"
)

// Summary workbook sheet names.
const (
	sheetSummary  = "Summary"
	sheetRitase   = "Ritase Events"
	sheetPassing  = "Passing Events"
	sheetTracking = "Tracking"
	sheetStats    = "Detailed Statistics"
)

// WriteSummaryWorkbook builds the per-run summary workbook at path.
func WriteSummaryWorkbook(fs fsutil.FileSystem, path string, s RunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("summary workbook: %w", err)
	}
	if err := writeSummarySheet(f, s); err != nil {
		return err
	}
	if err := writeEventSheet(f, sheetRitase, s.RitaseEvents); err != nil {
		return err
	}
	if err := writeEventSheet(f, sheetPassing, s.PassingEvents); err != nil {
		return err
	}
	if err := writeTrackingSheet(f, s); err != nil {
		return err
	}
	if err := writeStatsSheet(f, s); err != nil {
		return err
	}

	return saveWorkbook(fs, f, path)
}

func writeSummarySheet(f *excelize.File, s RunSummary) error {
	duration := units.FrameToSeconds(s.Info.FrameCount, s.Info.FPS)
	rows := [][]interface{}{
		{"Video", s.VideoName},
		{"Generated", s.DisplayTime(s.GeneratedAt).Format(time.RFC3339)},
		{"Resolution", fmt.Sprintf("%dx%d", s.Info.Width, s.Info.Height)},
		{"FPS", s.Info.FPS},
		{"Frames", s.Info.FrameCount},
		{"Duration", units.FormatTimecode(duration)},
		{},
		{"Ritase total", s.RitaseStats.Total},
		{"Passing total", len(s.PassingEvents)},
		{"Cycles completed", s.RitaseStats.CyclesCompleted},
		{"Duplicate fulls suppressed", s.RitaseStats.PreventedDuplicates},
		{"Truck-full observations", s.RitaseStats.TotalTruckFull},
		{},
		{"Detection confidence", s.DetectConfidence},
		{"Passing confidence", s.PassingConfidence},
		{"Ritase confidence", s.RitaseConfidence},
	}
	return writeRows(f, sheetSummary, rows)
}

func writeEventSheet(f *excelize.File, sheet string, events []count.Event) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	rows := [][]interface{}{
		{"Seq", "Frame", "Seconds", "Timecode", "Confidence", "Track", "Class"},
	}
	for _, ev := range events {
		rows = append(rows, []interface{}{
			ev.Seq, ev.FrameIndex, ev.Seconds,
			units.FormatTimecode(ev.Seconds),
			float64(ev.Confidence), ev.TrackID, ev.ClassName,
		})
	}
	return writeRows(f, sheet, rows)
}

func writeTrackingSheet(f *excelize.File, s RunSummary) error {
	if _, err := f.NewSheet(sheetTracking); err != nil {
		return fmt.Errorf("sheet %s: %w", sheetTracking, err)
	}
	rows := [][]interface{}{
		{"Class", "Detections", "Tracks", "Avg confidence"},
	}
	if s.Tracking != nil {
		for _, cs := range s.Tracking.Classes() {
			rows = append(rows, []interface{}{
				cs.Class, cs.Detections, cs.Tracks, cs.AvgConfidence,
			})
		}
		rows = append(rows, []interface{}{}, []interface{}{"Total rows", s.Tracking.Rows()})
	}
	return writeRows(f, sheetTracking, rows)
}

func writeStatsSheet(f *excelize.File, s RunSummary) error {
	if _, err := f.NewSheet(sheetStats); err != nil {
		return fmt.Errorf("sheet %s: %w", sheetStats, err)
	}

	rows := [][]interface{}{
		{"Cycle durations (seconds between ritase events)"},
	}
	rows = append(rows, distributionRows(NewDistribution(CycleDurations(s.RitaseEvents)))...)
	rows = append(rows, []interface{}{}, []interface{}{"Ritase event confidence"})
	rows = append(rows, distributionRows(NewDistribution(EventConfidences(s.RitaseEvents)))...)
	rows = append(rows, []interface{}{}, []interface{}{"Passing event confidence"})
	rows = append(rows, distributionRows(NewDistribution(EventConfidences(s.PassingEvents)))...)

	if s.Tracking != nil {
		rows = append(rows, []interface{}{}, []interface{}{"Tracked detection confidence histogram"})
		hist := s.Tracking.ConfidenceHistogram()
		for i, n := range hist {
			rows = append(rows, []interface{}{ConfidenceBinLabel(i), n})
		}
	}
	return writeRows(f, sheetStats, rows)
}

func distributionRows(d Distribution) [][]interface{} {
	if d.Count == 0 {
		return [][]interface{}{{"Samples", 0}}
	}
	return [][]interface{}{
		{"Samples", d.Count},
		{"Min", d.Min},
		{"Mean", d.Mean},
		{"Median", d.Median},
		{"P90", d.P90},
		{"Max", d.Max},
		{"StdDev", d.StdDev},
	}
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func saveWorkbook(fs fsutil.FileSystem, f *excelize.File, path string) error {
	w, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook %s: %w", path, err)
	}
	if err := f.Write(w); err != nil {
		w.Close()
		return fmt.Errorf("write workbook %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close workbook %s: %w", path, err)
	}
	return nil
}
