package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/loadcycle.report/internal/config"
	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/db"
	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/media"
	"github.com/banshee-data/loadcycle.report/internal/report"
	"github.com/banshee-data/loadcycle.report/internal/track"
)

// RunOptions wires one end-to-end analysis of a single input video.
type RunOptions struct {
	VideoName string
	Files     *media.FileManager
	FS        fsutil.FileSystem
	Detector  detect.Detector
	Tuning    *config.TuningConfig

	DB       *db.DB       // optional; runs and events are persisted when set
	Progress ProgressFunc // optional
}

// RunOutcome summarises a finished analysis and where its artifacts landed.
type RunOutcome struct {
	RunID   string
	Result  Result
	Outputs media.OutputSet
	Summary report.RunSummary
}

// multiRowSink fans one tracking row out to several sinks.
type multiRowSink []RowSink

func (m multiRowSink) WriteRow(r report.TrackingRow) error {
	for _, s := range m {
		if err := s.WriteRow(r); err != nil {
			return err
		}
	}
	return nil
}

// multiEventSink fans one event out to several sinks.
type multiEventSink []EventSink

func (m multiEventSink) RecordEvent(ev count.Event) error {
	for _, s := range m {
		if err := s.RecordEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// eventCollector keeps the per-type event streams for the report artifacts.
type eventCollector struct {
	ritase  []count.Event
	passing []count.Event
}

func (c *eventCollector) RecordEvent(ev count.Event) error {
	switch ev.Type {
	case count.EventRitase:
		c.ritase = append(c.ritase, ev)
	case count.EventPassing:
		c.passing = append(c.passing, ev)
	}
	return nil
}

// RunVideo processes one input video end to end: probe, decode, detect,
// track, count, annotate, encode, and write every report artifact. The run
// row and its events are persisted when a database is configured.
func RunVideo(ctx context.Context, opts RunOptions) (*RunOutcome, error) {
	inputPath, err := opts.Files.InputPath(opts.VideoName)
	if err != nil {
		return nil, err
	}
	if !opts.FS.Exists(inputPath) {
		return nil, fmt.Errorf("input video %s not found", opts.VideoName)
	}

	var runID string
	if opts.DB != nil {
		runID, err = opts.DB.CreateRun(ctx, opts.VideoName)
		if err != nil {
			return nil, err
		}
	}

	outcome, err := runVideo(ctx, opts, runID, inputPath)
	if err != nil && opts.DB != nil && runID != "" {
		if dbErr := opts.DB.FailRun(context.Background(), runID, err); dbErr != nil {
			opsf("record run failure for %s: %v", runID, dbErr)
		}
	}
	return outcome, err
}

func runVideo(ctx context.Context, opts RunOptions, runID, inputPath string) (*RunOutcome, error) {
	info, err := media.Probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	if opts.DB != nil {
		if err := opts.DB.StartRun(ctx, runID, info); err != nil {
			return nil, err
		}
	}

	outputs := opts.Files.Outputs(inputPath)

	decoder, err := media.NewDecoder(ctx, info)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	encoder, err := media.NewEncoder(ctx, outputs.Video, info.Width, info.Height, info.FPS)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	csvFile, err := opts.FS.Create(outputs.CSV)
	if err != nil {
		return nil, fmt.Errorf("create tracking CSV: %w", err)
	}
	csvWriter, err := report.NewTrackingCSVWriter(csvFile)
	if err != nil {
		csvFile.Close()
		return nil, err
	}
	defer csvWriter.Close()

	tracking := report.NewTrackingSummary()
	rows := multiRowSink{csvWriter, tracking}
	var obsWriter *db.ObservationWriter
	if opts.DB != nil {
		obsWriter = opts.DB.NewObservationWriter(runID)
		rows = append(rows, obsWriter)
	}

	collector := &eventCollector{}
	events := multiEventSink{collector}
	if opts.DB != nil {
		events = append(events, opts.DB.NewEventRecorder(runID))
	}

	detectConf := opts.Tuning.GetDetectConfidence()
	ritase := count.NewCycleCounter(opts.Tuning.GetRitaseConfidence(), info.FPS)
	passing := count.NewPassCounter(opts.Tuning.GetPassingConfidence(), info.FPS)

	progress := opts.Progress
	if opts.DB != nil {
		inner := progress
		progress = func(p Progress) {
			if err := opts.DB.UpdateRunProgress(context.Background(), runID, p.Frame, p.Ritase, p.Passing); err != nil {
				opsf("update run %s progress: %v", runID, err)
			}
			if inner != nil {
				inner(p)
			}
		}
	}

	p, err := New(Config{
		Info:          info,
		Detector:      opts.Detector,
		BucketTracker: track.NewTracker(track.TrackerConfigFromTuning(opts.Tuning, detectConf)),
		TruckTracker:  track.NewTracker(track.TrackerConfigFromTuning(opts.Tuning, detectConf)),
		Passing:       passing,
		Ritase:        ritase,
		Video:         encoder,
		Rows:          rows,
		Events:        events,
		Progress:      progress,
		DetectAhead:   opts.Tuning.GetDetectAhead(),
		JPEGQuality:   opts.Tuning.GetJPEGQuality(),
		ProgressEvery: opts.Tuning.GetProgressEveryFrames(),
		LogEvery:      opts.Tuning.GetLogEveryFrames(),
	})
	if err != nil {
		return nil, err
	}

	result, err := p.Run(ctx, decoder)
	if err != nil {
		return nil, err
	}

	// Flush the streaming sinks before building artifacts from them.
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	if err := csvWriter.Close(); err != nil {
		return nil, err
	}
	if obsWriter != nil {
		if err := obsWriter.Flush(); err != nil {
			opsf("flush observations for run %s: %v", runID, err)
		}
	}

	summary := report.RunSummary{
		VideoName:         opts.VideoName,
		Info:              info,
		GeneratedAt:       time.Now(),
		Timezone:          opts.Tuning.GetReportTimezone(),
		RitaseEvents:      collector.ritase,
		PassingEvents:     collector.passing,
		RitaseStats:       result.RitaseStats,
		Tracking:          tracking,
		DetectConfidence:  detectConf,
		PassingConfidence: opts.Tuning.GetPassingConfidence(),
		RitaseConfidence:  opts.Tuning.GetRitaseConfidence(),
	}

	if err := report.WriteSummaryWorkbook(opts.FS, outputs.Workbook, summary); err != nil {
		return nil, err
	}
	if err := report.WriteChartsPage(opts.FS, outputs.Charts, summary); err != nil {
		return nil, err
	}
	if err := report.WriteTimelinePNG(opts.FS, outputs.Timeline, summary); err != nil {
		return nil, err
	}

	// The master workbook is shared state; a bad copy on disk must not fail
	// the run that tried to append to it.
	if err := report.AppendMasterRow(opts.FS, opts.Files.MasterWorkbookPath(), summary); err != nil {
		opsf("append master workbook: %v", err)
	}

	if opts.DB != nil {
		if err := opts.DB.CompleteRun(ctx, runID, result.Frames, result.RitaseStats, result.Passing); err != nil {
			opsf("complete run %s: %v", runID, err)
		}
	}

	return &RunOutcome{
		RunID:   runID,
		Result:  result,
		Outputs: outputs,
		Summary: summary,
	}, nil
}
