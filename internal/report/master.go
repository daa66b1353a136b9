package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/units"
)

// masterSheet is the single sheet of the rolling master workbook.
const masterSheet = "Runs"

var masterHeader = []interface{}{
	"Video", "Date", "Ritase", "Passing", "Cycles completed", "Duration", "Frames",
}

// AppendMasterRow appends one run's summary line to the master workbook at
// path, creating the workbook if it does not exist yet.
func AppendMasterRow(fs fsutil.FileSystem, path string, s RunSummary) error {
	f, nextRow, err := openMasterWorkbook(fs, path)
	if err != nil {
		return err
	}
	defer f.Close()

	duration := units.FrameToSeconds(s.Info.FrameCount, s.Info.FPS)
	row := []interface{}{
		s.VideoName,
		s.DisplayTime(s.GeneratedAt).Format(time.RFC3339),
		s.RitaseStats.Total,
		len(s.PassingEvents),
		s.RitaseStats.CyclesCompleted,
		units.FormatTimecode(duration),
		s.Info.FrameCount,
	}
	cell, err := excelize.CoordinatesToCellName(1, nextRow)
	if err != nil {
		return fmt.Errorf("master workbook: %w", err)
	}
	if err := f.SetSheetRow(masterSheet, cell, &row); err != nil {
		return fmt.Errorf("master workbook append: %w", err)
	}
	return saveWorkbook(fs, f, path)
}

// ResetMasterWorkbook replaces the master workbook with a header-only file.
func ResetMasterWorkbook(fs fsutil.FileSystem, path string) error {
	f, err := newMasterWorkbook()
	if err != nil {
		return err
	}
	defer f.Close()
	return saveWorkbook(fs, f, path)
}

// openMasterWorkbook loads the existing workbook or creates a fresh one, and
// returns the 1-based row index the next run line should land on.
func openMasterWorkbook(fs fsutil.FileSystem, path string) (*excelize.File, int, error) {
	if !fs.Exists(path) {
		f, err := newMasterWorkbook()
		if err != nil {
			return nil, 0, err
		}
		return f, 2, nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read master workbook %s: %w", path, err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("open master workbook %s: %w", path, err)
	}
	rows, err := f.GetRows(masterSheet)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("master workbook %s has no %q sheet: %w", path, masterSheet, err)
	}
	return f, len(rows) + 1, nil
}

func newMasterWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", masterSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("master workbook: %w", err)
	}
	header := append([]interface{}{}, masterHeader...)
	if err := f.SetSheetRow(masterSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("master workbook header: %w", err)
	}
	return f, nil
}
