// Command report-export regenerates the report artifacts for a completed run
// from the database alone: summary workbook, charts page, and timeline PNG.
// Useful after a recount or when the output directory was cleaned out; the
// annotated video and CSV need a full re-run, since pixels are not stored.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/db"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/media"
	"github.com/banshee-data/loadcycle.report/internal/report"
)

func main() {
	var (
		dbPath      = flag.String("db", "loadcycle.db", "path to sqlite db")
		runID       = flag.String("run", "", "run ID to export")
		mediaDir    = flag.String("media-dir", "data", "base directory for input/output media")
		detectConf  = flag.Float64("detect-confidence", 0.85, "detection threshold to record on the summary sheet")
		ritaseConf  = flag.Float64("ritase-confidence", 0.90, "ritase threshold to record on the summary sheet")
		passingConf = flag.Float64("passing-confidence", 0.80, "passing threshold to record on the summary sheet")
		timezone    = flag.String("timezone", "UTC", "IANA timezone for display times on the reports")
	)
	flag.Parse()

	if *runID == "" {
		log.Fatal("run ID must be provided")
	}

	fs := fsutil.OSFileSystem{}
	files, err := media.NewFileManager(fs, *mediaDir)
	if err != nil {
		log.Fatalf("prepare media directories: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	ctx := context.Background()

	run, err := database.GetRun(ctx, *runID)
	if err != nil {
		log.Fatalf("load run: %v", err)
	}

	events, err := database.RunEvents(ctx, *runID)
	if err != nil {
		log.Fatalf("load events: %v", err)
	}
	var ritaseEvents, passingEvents []count.Event
	for _, ev := range events {
		switch ev.Type {
		case count.EventRitase:
			ritaseEvents = append(ritaseEvents, ev)
		case count.EventPassing:
			passingEvents = append(passingEvents, ev)
		}
	}

	rows, err := database.RunObservations(ctx, *runID)
	if err != nil {
		log.Fatalf("load observations: %v", err)
	}
	tracking := report.NewTrackingSummary()
	for _, r := range rows {
		if err := tracking.WriteRow(r); err != nil {
			log.Fatalf("rebuild tracking summary: %v", err)
		}
	}

	info := media.VideoInfo{
		Path:       run.VideoName,
		Width:      run.Width,
		Height:     run.Height,
		FPS:        run.FPS,
		FrameCount: run.FrameCount,
	}
	if run.FPS > 0 {
		info.Duration = float64(run.FrameCount) / run.FPS
	}

	summary := report.RunSummary{
		VideoName:     run.VideoName,
		Info:          info,
		GeneratedAt:   time.Now(),
		Timezone:      *timezone,
		RitaseEvents:  ritaseEvents,
		PassingEvents: passingEvents,
		RitaseStats: count.Stats{
			Total:               run.RitaseTotal,
			CyclesCompleted:     run.CyclesCompleted,
			PreventedDuplicates: run.PreventedDuplicates,
			TotalTruckFull:      run.TotalTruckFull,
		},
		Tracking:          tracking,
		DetectConfidence:  *detectConf,
		PassingConfidence: *passingConf,
		RitaseConfidence:  *ritaseConf,
	}

	outputs := files.Outputs(filepath.Join(files.InputDir(), run.VideoName))

	if err := report.WriteSummaryWorkbook(fs, outputs.Workbook, summary); err != nil {
		log.Fatalf("write workbook: %v", err)
	}
	if err := report.WriteChartsPage(fs, outputs.Charts, summary); err != nil {
		log.Fatalf("write charts: %v", err)
	}
	if err := report.WriteTimelinePNG(fs, outputs.Timeline, summary); err != nil {
		log.Fatalf("write timeline: %v", err)
	}

	fmt.Printf("Workbook: %s\n", outputs.Workbook)
	fmt.Printf("Charts:   %s\n", outputs.Charts)
	fmt.Printf("Timeline: %s\n", outputs.Timeline)
}
