// Command rollup-backfill rebuilds the hourly event rollups from stored
// count events, either for a time range or for the full history. The server
// maintains rollups incrementally; this exists for databases that predate
// the rollup table or were restored from backup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/loadcycle.report/internal/db"
)

func main() {
	var (
		dbPath   = flag.String("db", "loadcycle.db", "path to sqlite db")
		startStr = flag.String("start", "", "start time (RFC3339, empty for full history)")
		endStr   = flag.String("end", "", "end time (RFC3339, empty for full history)")
	)
	flag.Parse()

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer database.Close()

	w := db.NewRollupWorker(database, 0)
	ctx := context.Background()

	if *startStr == "" && *endStr == "" {
		if err := w.RunFullHistory(ctx); err != nil {
			log.Fatalf("full history backfill failed: %v", err)
		}
		fmt.Println("backfill complete")
		return
	}
	if *startStr == "" || *endStr == "" {
		log.Fatal("start and end must both be provided for a ranged backfill")
	}

	startT, err := time.Parse(time.RFC3339, *startStr)
	if err != nil {
		log.Fatalf("invalid start: %v", err)
	}
	endT, err := time.Parse(time.RFC3339, *endStr)
	if err != nil {
		log.Fatalf("invalid end: %v", err)
	}

	// Walk the range in worker-sized windows so a long backfill holds the
	// write lock in short bursts.
	t := startT.UTC()
	for t.Before(endT.UTC()) {
		windowEnd := t.Add(w.Window)
		if windowEnd.After(endT.UTC()) {
			windowEnd = endT.UTC()
		}
		fmt.Printf("backfilling window %s -> %s\n", t, windowEnd)
		if err := w.RunRange(ctx, float64(t.Unix()), float64(windowEnd.Unix())); err != nil {
			log.Fatalf("runrange failed: %v", err)
		}
		t = windowEnd
	}

	fmt.Println("backfill complete")
}
