package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/loadcycle.report/internal/api"
	"github.com/banshee-data/loadcycle.report/internal/config"
	"github.com/banshee-data/loadcycle.report/internal/db"
	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/media"
	"github.com/banshee-data/loadcycle.report/internal/pipeline"
	"github.com/banshee-data/loadcycle.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	dbFile      = flag.String("db", "loadcycle.db", "Path to the SQLite database file")
	mediaDir    = flag.String("media-dir", "data", "Base directory for input/output media")
	classesPath = flag.String("classes", "classes.json", "Path to the class manifest JSON file")
	configPath  = flag.String("config", "", "Path to a tuning config JSON file (optional)")
	detectorURL = flag.String("detector-url", "http://localhost:8501", "Inference service base URL")
	replayPath  = flag.String("replay", "", "Replay detections from a JSONL file instead of calling the inference service")
	recordPath  = flag.String("record", "", "Record detections to a JSONL file while processing")
	videoName   = flag.String("video", "", "Analyse one input video and exit instead of serving")
)

func main() {
	// The migrate subcommand runs before flag parsing so its own argument
	// list (up, down, status, ...) doesn't collide with the server flags.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		args, dbPath := migrateArgs(os.Args[2:])
		db.RunMigrateCommand(args, dbPath)
		return
	}

	flag.Parse()

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	// Pipeline warnings (detector failures, dropped rows) go to stderr; the
	// diag and trace streams stay off outside debugging sessions.
	pipeline.SetLogWriters(os.Stderr, nil, nil)

	fs := fsutil.OSFileSystem{}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}
	if err := tuning.Validate(); err != nil {
		log.Fatalf("Invalid tuning config: %v", err)
	}

	manifest, err := detect.LoadClassManifest(*classesPath)
	if err != nil {
		log.Fatalf("Failed to load class manifest: %v", err)
	}

	var detector detect.Detector
	if *replayPath != "" {
		detector, err = detect.NewReplayDetector(fs, *replayPath)
		if err != nil {
			log.Fatalf("Failed to open replay file: %v", err)
		}
		log.Printf("Replaying detections from %s", *replayPath)
	} else {
		detector = detect.NewHTTPDetector(*detectorURL, nil, manifest, tuning.GetDetectConfidence())
	}
	if *recordPath != "" {
		recorder, err := detect.NewRecorder(detector, fs, *recordPath)
		if err != nil {
			log.Fatalf("Failed to open recording file: %v", err)
		}
		defer recorder.Close()
		detector = recorder
		log.Printf("Recording detections to %s", *recordPath)
	}

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), 10*time.Second)
	if err := detector.CheckHealth(healthCtx); err != nil {
		cancelHealth()
		log.Fatalf("Detector health check failed: %v", err)
	}
	cancelHealth()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	files, err := media.NewFileManager(fs, *mediaDir)
	if err != nil {
		log.Fatalf("Failed to prepare media directories: %v", err)
	}

	if *videoName != "" {
		runOnce(files, fs, detector, tuning, database, *videoName)
		return
	}

	jobs := api.NewJobRunner(files, fs, detector, tuning, database, 0)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs.Start(ctx)

	rollups := db.NewRollupWorker(database, tuning.GetRollupInterval())
	rollups.Start()
	defer rollups.Stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(files, fs, database, jobs).ServeMux()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("loadcycle.report %s listening on %s", version.Version, *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	jobs.Wait()
	log.Printf("Graceful shutdown complete")
}

// runOnce analyses a single input video from the command line and prints the
// totals, skipping the HTTP server entirely.
func runOnce(files *media.FileManager, fs fsutil.FileSystem, detector detect.Detector, tuning *config.TuningConfig, database *db.DB, video string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcome, err := pipeline.RunVideo(ctx, pipeline.RunOptions{
		VideoName: video,
		Files:     files,
		FS:        fs,
		Detector:  detector,
		Tuning:    tuning,
		DB:        database,
		Progress: func(p pipeline.Progress) {
			log.Printf("frame %d/%d (%.1f%%) ritase=%d passing=%d",
				p.Frame, p.FrameCount, p.Percent, p.Ritase, p.Passing)
		},
	})
	if err != nil {
		log.Fatalf("Analysis of %s failed: %v", video, err)
	}

	fmt.Printf("Video:    %s\n", video)
	fmt.Printf("Frames:   %d\n", outcome.Result.Frames)
	fmt.Printf("Ritase:   %d\n", outcome.Result.Ritase)
	fmt.Printf("Passing:  %d\n", outcome.Result.Passing)
	fmt.Printf("Outputs:  %s\n", outcome.Outputs.Video)
	fmt.Printf("Workbook: %s\n", outcome.Outputs.Workbook)
}

// migrateArgs splits an optional -db flag out of the migrate argument list,
// leaving just the subcommand arguments.
func migrateArgs(args []string) ([]string, string) {
	path := "loadcycle.db"
	var rest []string
	for i := 0; i < len(args); i++ {
		if (args[i] == "-db" || args[i] == "--db") && i+1 < len(args) {
			path = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return rest, path
}
