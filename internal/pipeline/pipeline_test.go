package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/loadcycle.report/internal/config"
	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/media"
	"github.com/banshee-data/loadcycle.report/internal/report"
	"github.com/banshee-data/loadcycle.report/internal/track"
)

const (
	testW   = 64
	testH   = 48
	testFPS = 30.0
)

// sliceSource serves pre-built frames.
type sliceSource struct {
	frames []*media.Frame
	next   int
}

func (s *sliceSource) ReadFrame() (*media.Frame, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func makeFrames(n int) []*media.Frame {
	frames := make([]*media.Frame, n)
	for i := range frames {
		f := media.NewFrame(i, testW, testH)
		f.Seconds = float64(i) / testFPS
		frames[i] = f
	}
	return frames
}

// scriptedDetector returns canned detections per frame index, optionally
// failing on chosen frames.
type scriptedDetector struct {
	mu      sync.Mutex
	byFrame map[int][]detect.Detection
	failOn  map[int]bool
	calls   int
}

func (s *scriptedDetector) Detect(_ context.Context, frameIndex int, _ []byte) ([]detect.Detection, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.failOn[frameIndex] {
		return nil, errors.New("inference backend unavailable")
	}
	return s.byFrame[frameIndex], nil
}

func (s *scriptedDetector) CheckHealth(context.Context) error { return nil }

type memEvents struct {
	mu     sync.Mutex
	events []count.Event
}

func (m *memEvents) RecordEvent(ev count.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

type countingSinks struct {
	frames int
	rows   int
}

func (c *countingSinks) WriteFrame(*media.Frame) error { c.frames++; return nil }

func bucketDet(classID int, conf float32) detect.Detection {
	name := "bucket_digging"
	if classID == detect.ClassBucketDumping {
		name = "bucket_dumping"
	}
	return detect.Detection{
		Box:        detect.Box{X1: 5, Y1: 5, X2: 20, Y2: 20},
		ClassID:    classID,
		ClassName:  name,
		Confidence: conf,
	}
}

func truckDet(conf float32) detect.Detection {
	return detect.Detection{
		Box:        detect.Box{X1: 35, Y1: 25, X2: 60, Y2: 45},
		ClassID:    detect.ClassTruckFull,
		ClassName:  "truck_full",
		Confidence: conf,
	}
}

// haulScript builds two load cycles: dig → truck arrives full → dump
// (closes cycle), twice.
func haulScript() map[int][]detect.Detection {
	byFrame := make(map[int][]detect.Detection)
	add := func(from, to int, d detect.Detection) {
		for f := from; f <= to; f++ {
			byFrame[f] = append(byFrame[f], d)
		}
	}

	add(0, 9, bucketDet(detect.ClassBucketDigging, 0.90))
	add(5, 14, truckDet(0.95))
	add(15, 24, bucketDet(detect.ClassBucketDumping, 0.92))
	add(25, 34, bucketDet(detect.ClassBucketDigging, 0.90))
	add(28, 37, truckDet(0.93))
	add(38, 47, bucketDet(detect.ClassBucketDumping, 0.91))
	return byFrame
}

func newTestPipeline(t *testing.T, det detect.Detector, depth int, events EventSink) *Pipeline {
	t.Helper()
	cfg := config.EmptyTuningConfig()
	p, err := New(Config{
		Info:          media.VideoInfo{Width: testW, Height: testH, FPS: testFPS, FrameCount: 60},
		Detector:      det,
		BucketTracker: track.NewTracker(track.TrackerConfigFromTuning(cfg, 0.85)),
		TruckTracker:  track.NewTracker(track.TrackerConfigFromTuning(cfg, 0.85)),
		Passing:       count.NewPassCounter(0.80, testFPS),
		Ritase:        count.NewCycleCounter(0.90, testFPS),
		Events:        events,
		DetectAhead:   depth,
		LogEvery:      1000,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestPipelineCountsTwoLoadCycles(t *testing.T) {
	events := &memEvents{}
	p := newTestPipeline(t, &scriptedDetector{byFrame: haulScript()}, 0, events)

	res, err := p.Run(context.Background(), &sliceSource{frames: makeFrames(60)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Frames != 60 {
		t.Errorf("Frames = %d, want 60", res.Frames)
	}
	if res.Ritase != 2 {
		t.Errorf("Ritase = %d, want 2", res.Ritase)
	}
	if res.Passing != 2 {
		t.Errorf("Passing = %d, want 2", res.Passing)
	}
	if res.RitaseStats.CyclesCompleted != 2 {
		t.Errorf("CyclesCompleted = %d, want 2", res.RitaseStats.CyclesCompleted)
	}
	if res.RitaseStats.PreventedDuplicates == 0 {
		t.Error("PreventedDuplicates = 0, want suppressed duplicate fulls")
	}

	if len(events.events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events.events), events.events)
	}
	// Per-type sequence numbers are dense.
	seqs := map[count.EventType][]int{}
	for _, ev := range events.events {
		seqs[ev.Type] = append(seqs[ev.Type], ev.Seq)
	}
	if diff := cmp.Diff([]int{1, 2}, seqs[count.EventRitase]); diff != "" {
		t.Errorf("ritase seqs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, seqs[count.EventPassing]); diff != "" {
		t.Errorf("passing seqs (-want +got):\n%s", diff)
	}
}

func TestPipelineDeterministicAcrossDetectAheadDepths(t *testing.T) {
	run := func(depth int) []string {
		events := &memEvents{}
		p := newTestPipeline(t, &scriptedDetector{byFrame: haulScript()}, depth, events)
		if _, err := p.Run(context.Background(), &sliceSource{frames: makeFrames(60)}); err != nil {
			t.Fatalf("Run(depth=%d) error = %v", depth, err)
		}
		var out []string
		for _, ev := range events.events {
			out = append(out, fmt.Sprintf("%s/%d@%d:%s", ev.Type, ev.Seq, ev.FrameIndex, ev.TrackID))
		}
		return out
	}

	baseline := run(0)
	for _, depth := range []int{1, 2, 4, 8} {
		if diff := cmp.Diff(baseline, run(depth)); diff != "" {
			t.Errorf("depth %d diverged from serial run (-serial +depth):\n%s", depth, diff)
		}
	}
}

func TestPipelineDetectorFailureDowngradesToEmptyFrame(t *testing.T) {
	det := &scriptedDetector{
		byFrame: haulScript(),
		failOn:  map[int]bool{3: true, 20: true, 21: true},
	}
	events := &memEvents{}
	p := newTestPipeline(t, det, 2, events)

	res, err := p.Run(context.Background(), &sliceSource{frames: makeFrames(60)})
	if err != nil {
		t.Fatalf("Run() error = %v, failures must not abort the run", err)
	}
	if res.Frames != 60 {
		t.Errorf("Frames = %d, want 60", res.Frames)
	}
	if res.Stats.DetectFailures != 3 {
		t.Errorf("DetectFailures = %d, want 3", res.Stats.DetectFailures)
	}
	// The two cycles still resolve despite dropped frames.
	if res.Ritase != 2 {
		t.Errorf("Ritase = %d, want 2", res.Ritase)
	}
}

func TestPipelineWritesRowsAndFrames(t *testing.T) {
	sinks := &countingSinks{}
	events := &memEvents{}
	cfg := config.EmptyTuningConfig()
	p, err := New(Config{
		Info:          media.VideoInfo{Width: testW, Height: testH, FPS: testFPS, FrameCount: 30},
		Detector:      &scriptedDetector{byFrame: haulScript()},
		BucketTracker: track.NewTracker(track.TrackerConfigFromTuning(cfg, 0.85)),
		TruckTracker:  track.NewTracker(track.TrackerConfigFromTuning(cfg, 0.85)),
		Passing:       count.NewPassCounter(0.80, testFPS),
		Ritase:        count.NewCycleCounter(0.90, testFPS),
		Video:         sinks,
		Rows:          rowCounter{sinks},
		Events:        events,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Run(context.Background(), &sliceSource{frames: makeFrames(30)}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sinks.frames != 30 {
		t.Errorf("encoded frames = %d, want 30", sinks.frames)
	}
	if sinks.rows == 0 {
		t.Error("no tracking rows written")
	}
}

type rowCounter struct{ c *countingSinks }

func (r rowCounter) WriteRow(report.TrackingRow) error {
	r.c.rows++
	return nil
}

func TestPipelineProgressReporting(t *testing.T) {
	var progress []Progress
	cfg := config.EmptyTuningConfig()
	p, err := New(Config{
		Info:          media.VideoInfo{Width: testW, Height: testH, FPS: testFPS, FrameCount: 20},
		Detector:      &scriptedDetector{byFrame: map[int][]detect.Detection{}},
		BucketTracker: track.NewTracker(track.TrackerConfigFromTuning(cfg, 0.85)),
		TruckTracker:  track.NewTracker(track.TrackerConfigFromTuning(cfg, 0.85)),
		Passing:       count.NewPassCounter(0.80, testFPS),
		Ritase:        count.NewCycleCounter(0.90, testFPS),
		Progress:      func(pr Progress) { progress = append(progress, pr) },
		ProgressEvery: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Run(context.Background(), &sliceSource{frames: makeFrames(20)}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 20 frames / every 5 = 4 periodic updates, plus the final one.
	if len(progress) != 5 {
		t.Fatalf("got %d progress updates, want 5: %+v", len(progress), progress)
	}
	last := progress[len(progress)-1]
	if !last.Done || last.Percent != 100 {
		t.Errorf("final progress = %+v, want done at 100%%", last)
	}
	if progress[0].Percent != 25 {
		t.Errorf("first progress percent = %v, want 25", progress[0].Percent)
	}
}

func TestPipelineContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	det := &scriptedDetector{byFrame: map[int][]detect.Detection{}}
	p := newTestPipeline(t, det, 2, nil)

	src := &cancellingSource{frames: makeFrames(100), cancelAt: 10, cancel: cancel}
	_, err := p.Run(ctx, src)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

type cancellingSource struct {
	frames   []*media.Frame
	next     int
	cancelAt int
	cancel   context.CancelFunc
}

func (s *cancellingSource) ReadFrame() (*media.Frame, error) {
	if s.next == s.cancelAt {
		s.cancel()
	}
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func TestPipelineValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New with empty config should fail")
	}
}
