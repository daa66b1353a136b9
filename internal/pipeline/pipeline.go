// Package pipeline runs the per-frame analysis loop: decode → detect →
// track → count → annotate → encode, with persistence and progress hooks.
// Detection requests can run ahead of the serial stages on a bounded worker
// pool; results are consumed strictly in frame order, so counter output is
// identical at any read-ahead depth.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/media"
	"github.com/banshee-data/loadcycle.report/internal/report"
	"github.com/banshee-data/loadcycle.report/internal/track"
)

// FrameSource yields decoded frames in order. ReadFrame returns io.EOF
// after the last frame.
type FrameSource interface {
	ReadFrame() (*media.Frame, error)
}

// FrameSink receives annotated frames, typically the MP4 encoder.
type FrameSink interface {
	WriteFrame(*media.Frame) error
}

// RowSink receives one tracking row per active track per frame.
type RowSink interface {
	WriteRow(report.TrackingRow) error
}

// EventSink receives counter events as they are emitted.
type EventSink interface {
	RecordEvent(count.Event) error
}

// Progress is a point-in-time view of a running analysis.
type Progress struct {
	Frame      int     `json:"frame"`
	FrameCount int     `json:"frame_count"`
	Percent    float64 `json:"percent"`
	Ritase     int     `json:"ritase"`
	Passing    int     `json:"passing"`
	Done       bool    `json:"done"`
}

// ProgressFunc observes pipeline progress. Called from the pipeline
// goroutine; implementations must not block.
type ProgressFunc func(Progress)

// Config wires one pipeline run. Video, Rows, Events, and Progress are
// optional; everything else is required.
type Config struct {
	Info     media.VideoInfo
	Detector detect.Detector

	BucketTracker *track.Tracker
	TruckTracker  *track.Tracker
	Passing       *count.PassCounter
	Ritase        *count.CycleCounter

	Video    FrameSink
	Rows     RowSink
	Events   EventSink
	Progress ProgressFunc

	DetectAhead   int // 0 disables read-ahead
	JPEGQuality   int
	ProgressEvery int
	LogEvery      int

	Stats *FrameStats
}

// Result summarises a completed run.
type Result struct {
	Frames      int
	Ritase      int
	Passing     int
	RitaseStats count.Stats
	Stats       Snapshot
}

// Pipeline executes the analysis loop for one video.
type Pipeline struct {
	cfg Config
}

// New validates the configuration and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Detector == nil {
		return nil, errors.New("pipeline: detector is required")
	}
	if cfg.BucketTracker == nil || cfg.TruckTracker == nil {
		return nil, errors.New("pipeline: both trackers are required")
	}
	if cfg.Passing == nil || cfg.Ritase == nil {
		return nil, errors.New("pipeline: both counters are required")
	}
	if cfg.Info.FPS <= 0 {
		return nil, fmt.Errorf("pipeline: invalid FPS %v", cfg.Info.FPS)
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 5
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 200
	}
	if cfg.Stats == nil {
		cfg.Stats = NewFrameStats()
	}
	return &Pipeline{cfg: cfg}, nil
}

// detectResult carries one frame's detections from the read-ahead stage.
type detectResult struct {
	frame *media.Frame
	dets  []detect.Detection
	err   error // detector error; the frame still flows downstream
}

// Run processes the source to completion or context cancellation.
func (p *Pipeline) Run(ctx context.Context, src FrameSource) (Result, error) {
	results, readErr := p.startDetectStage(ctx, src)

	var processed int
	for res := range results {
		if res.err != nil {
			// A failed detection downgrades to an empty frame; the
			// run continues and the failure is tallied.
			opsf("detector failed on frame %d: %v", res.frame.Index, res.err)
			p.cfg.Stats.AddDetectFailure()
			res.dets = nil
		}
		if err := p.processFrame(res.frame, res.dets); err != nil {
			return p.result(processed), err
		}
		processed++

		if processed%p.cfg.LogEvery == 0 {
			diagf("frame %d: ritase=%d passing=%d",
				res.frame.Index, p.cfg.Ritase.Total(), p.cfg.Passing.Total())
		}
		if p.cfg.Progress != nil && processed%p.cfg.ProgressEvery == 0 {
			p.cfg.Progress(p.progress(processed, false))
		}
	}

	if err := ctx.Err(); err != nil {
		return p.result(processed), err
	}
	if err := *readErr; err != nil && err != io.EOF {
		return p.result(processed), fmt.Errorf("read frames: %w", err)
	}

	if p.cfg.Progress != nil {
		p.cfg.Progress(p.progress(processed, true))
	}
	diagf("run complete: %d frames, ritase=%d passing=%d",
		processed, p.cfg.Ritase.Total(), p.cfg.Passing.Total())
	return p.result(processed), nil
}

// startDetectStage launches the bounded read-ahead. Frames are read and
// detected by up to DetectAhead workers, but delivered on the returned
// channel strictly in frame order. With DetectAhead <= 0 a single goroutine
// detects inline, which keeps the consumption path identical.
func (p *Pipeline) startDetectStage(ctx context.Context, src FrameSource) (<-chan detectResult, *error) {
	depth := p.cfg.DetectAhead
	if depth < 0 {
		depth = 0
	}

	readErr := new(error)

	type pendingJob struct {
		resCh chan detectResult
	}

	if depth == 0 {
		out := make(chan detectResult)
		go func() {
			defer close(out)
			for {
				frame, err := src.ReadFrame()
				if err != nil {
					*readErr = err
					return
				}
				res := p.detectFrame(ctx, frame)
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, readErr
	}

	jobs := make(chan *orderedJob, depth)
	pending := make(chan pendingJob, depth)
	out := make(chan detectResult)

	// Workers run detections concurrently.
	var wg sync.WaitGroup
	for i := 0; i < depth; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				job.resCh <- p.detectFrame(ctx, job.frame)
			}
		}()
	}

	// Reader feeds workers and records delivery order.
	go func() {
		defer close(jobs)
		defer close(pending)
		for {
			frame, err := src.ReadFrame()
			if err != nil {
				*readErr = err
				return
			}
			// Submit the job before announcing it on pending: every
			// pending entry must have a worker that will fill its resCh,
			// or the collector would block on a cancelled run. A job
			// whose pending send loses to cancellation leaves its result
			// unread in the buffered resCh, which is fine.
			job := &orderedJob{frame: frame, resCh: make(chan detectResult, 1)}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
			select {
			case pending <- pendingJob{resCh: job.resCh}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Collector re-serialises results in submission order.
	go func() {
		defer close(out)
		for pj := range pending {
			res := <-pj.resCh
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
		wg.Wait()
	}()

	return out, readErr
}

type orderedJob struct {
	frame *media.Frame
	resCh chan detectResult
}

// detectFrame encodes one frame as JPEG and queries the detector.
func (p *Pipeline) detectFrame(ctx context.Context, frame *media.Frame) detectResult {
	jpeg, err := frame.EncodeJPEG(p.cfg.JPEGQuality)
	if err != nil {
		return detectResult{frame: frame, err: err}
	}
	dets, err := p.cfg.Detector.Detect(ctx, frame.Index, jpeg)
	return detectResult{frame: frame, dets: dets, err: err}
}

// processFrame runs the serial stages for one frame: trackers, counters,
// persistence, annotation, encode.
func (p *Pipeline) processFrame(frame *media.Frame, dets []detect.Detection) error {
	tracef("frame %d: %d detections", frame.Index, len(dets))
	p.cfg.Stats.AddFrame(len(dets))

	var bucketDets, truckDets []detect.Detection
	for _, d := range dets {
		if detect.IsTruckClass(d.ClassID) {
			truckDets = append(truckDets, d)
		} else {
			bucketDets = append(bucketDets, d)
		}
	}

	p.cfg.BucketTracker.Update(bucketDets, frame.Index)
	p.cfg.TruckTracker.Update(truckDets, frame.Index)

	// Bucket observations feed the passing counter first; dumps are kept
	// to close the ritase cycle after the trucks are processed, matching
	// the order dig/dump → truck_full → cycle close within a frame.
	var sawDump bool
	for _, tr := range p.cfg.BucketTracker.GetConfirmedTracks() {
		if tr.Misses != 0 || tr.LastFrame != frame.Index {
			continue
		}
		obs := observationFromTrack(tr, frame.Index)
		if ev, counted := p.cfg.Passing.Observe(obs); counted {
			p.cfg.Stats.AddEvent(false)
			if err := p.recordEvent(ev); err != nil {
				return err
			}
		}
		if tr.ClassID == detect.ClassBucketDumping {
			sawDump = true
		}
	}

	for _, tr := range p.cfg.TruckTracker.GetConfirmedTracks() {
		if tr.Misses != 0 || tr.LastFrame != frame.Index {
			continue
		}
		obs := observationFromTrack(tr, frame.Index)
		if ev, counted := p.cfg.Ritase.Observe(obs); counted {
			p.cfg.Stats.AddEvent(true)
			if err := p.recordEvent(ev); err != nil {
				return err
			}
		}
	}

	if sawDump {
		p.cfg.Ritase.CloseCycle()
	}

	if p.cfg.Rows != nil {
		if err := p.writeRows(frame); err != nil {
			return err
		}
	}

	if p.cfg.Video != nil {
		media.Annotate(frame, dets, media.HUD{
			Ritase:  p.cfg.Ritase.Total(),
			Passing: p.cfg.Passing.Total(),
		})
		if err := p.cfg.Video.WriteFrame(frame); err != nil {
			return fmt.Errorf("write annotated frame %d: %w", frame.Index, err)
		}
	}

	return nil
}

// writeRows emits one tracking row per active track, coasting included.
func (p *Pipeline) writeRows(frame *media.Frame) error {
	for _, tracker := range []*track.Tracker{p.cfg.BucketTracker, p.cfg.TruckTracker} {
		for _, tr := range tracker.GetActiveTracks() {
			box := tr.LastBox
			state := string(tr.State)
			if tr.Misses > 0 {
				box = tr.PredictedBox()
				state = "coasting"
			}
			row := report.TrackingRow{
				Frame:      frame.Index,
				Seconds:    frame.Seconds,
				TrackID:    tr.TrackID,
				Class:      tr.ClassName,
				Confidence: tr.Confidence,
				X1:         box.X1,
				Y1:         box.Y1,
				X2:         box.X2,
				Y2:         box.Y2,
				State:      state,
			}
			if err := p.cfg.Rows.WriteRow(row); err != nil {
				return fmt.Errorf("write tracking row: %w", err)
			}
		}
	}
	return nil
}

func (p *Pipeline) recordEvent(ev count.Event) error {
	diagf("%s #%d at frame %d (%.2fs) track=%s conf=%.4f",
		ev.Type, ev.Seq, ev.FrameIndex, ev.Seconds, ev.TrackID, ev.Confidence)
	if p.cfg.Events == nil {
		return nil
	}
	if err := p.cfg.Events.RecordEvent(ev); err != nil {
		return fmt.Errorf("record %s event #%d: %w", ev.Type, ev.Seq, err)
	}
	return nil
}

func observationFromTrack(tr *track.TrackedObject, frameIndex int) count.Observation {
	return count.Observation{
		TrackID:    tr.TrackID,
		ClassID:    tr.ClassID,
		ClassName:  tr.ClassName,
		FrameIndex: frameIndex,
		Confidence: tr.Confidence,
	}
}

func (p *Pipeline) progress(processed int, done bool) Progress {
	pr := Progress{
		Frame:      processed,
		FrameCount: p.cfg.Info.FrameCount,
		Ritase:     p.cfg.Ritase.Total(),
		Passing:    p.cfg.Passing.Total(),
		Done:       done,
	}
	if pr.FrameCount > 0 {
		pr.Percent = float64(processed) / float64(pr.FrameCount) * 100
		if pr.Percent > 100 {
			pr.Percent = 100
		}
	}
	if done {
		pr.Percent = 100
	}
	return pr
}

func (p *Pipeline) result(frames int) Result {
	return Result{
		Frames:      frames,
		Ritase:      p.cfg.Ritase.Total(),
		Passing:     p.cfg.Passing.Total(),
		RitaseStats: p.cfg.Ritase.GetStats(),
		Stats:       p.cfg.Stats.Get(),
	}
}
