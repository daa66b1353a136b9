// Command recount replays a run's stored track observations through fresh
// counters with different confidence thresholds, without re-running ffmpeg
// or the detector. By default it only prints the old and new totals; -apply
// rewrites the run's events and tallies in place.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/banshee-data/loadcycle.report/internal/db"
	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/pipeline"
)

func main() {
	var (
		dbPath      = flag.String("db", "loadcycle.db", "path to sqlite db")
		runID       = flag.String("run", "", "run ID to recount")
		classesPath = flag.String("classes", "classes.json", "path to the class manifest JSON file")
		ritaseConf  = flag.Float64("ritase-confidence", 0.90, "minimum truck_full confidence to open a cycle")
		passingConf = flag.Float64("passing-confidence", 0.80, "minimum bucket_dumping confidence to count a pass")
		apply       = flag.Bool("apply", false, "rewrite the run's events and totals instead of just printing")
	)
	flag.Parse()

	if *runID == "" {
		log.Fatal("run ID must be provided")
	}

	manifest, err := detect.LoadClassManifest(*classesPath)
	if err != nil {
		log.Fatalf("load class manifest: %v", err)
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
	if run.FPS <= 0 {
		log.Fatalf("run %s has no recorded fps; was it ever started?", *runID)
	}

	rows, err := database.RunObservations(ctx, *runID)
	if err != nil {
		log.Fatalf("load observations: %v", err)
	}
	if len(rows) == 0 {
		log.Fatalf("run %s has no stored observations to recount", *runID)
	}

	result := pipeline.RecountObservations(rows, manifest.IDsByName(), *ritaseConf, *passingConf, run.FPS)

	fmt.Printf("Run:       %s (%s)\n", run.RunID, run.VideoName)
	fmt.Printf("Rows:      %d observations over %d frames\n", len(rows), run.FramesProcessed)
	fmt.Printf("Ritase:    %d -> %d (cycles %d -> %d, duplicates prevented %d -> %d)\n",
		run.RitaseTotal, result.RitaseStats.Total,
		run.CyclesCompleted, result.RitaseStats.CyclesCompleted,
		run.PreventedDuplicates, result.RitaseStats.PreventedDuplicates)
	fmt.Printf("Passing:   %d -> %d\n", run.PassingTotal, result.PassingTotal)

	if !*apply {
		fmt.Println("Dry run; pass -apply to rewrite the stored events and totals.")
		return
	}

	if err := database.ReplaceRunEvents(ctx, *runID, result.Events()); err != nil {
		log.Fatalf("replace events: %v", err)
	}
	if err := database.UpdateRunTotals(ctx, *runID, result.RitaseStats, result.PassingTotal); err != nil {
		log.Fatalf("update totals: %v", err)
	}
	fmt.Println("Recount applied.")
}
