package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/banshee-data/loadcycle.report/internal/fsutil"
)

// replayLine is one JSONL record: the detections for a single frame. Frames
// with no detections may be omitted from the file entirely.
type replayLine struct {
	Frame      int         `json:"frame"`
	Detections []Detection `json:"detections"`
}

// ReplayDetector serves detections from a recorded JSONL file instead of a
// live inference service. Replays are deterministic, which makes them the
// backbone of pipeline tests and of threshold re-runs on archived footage.
type ReplayDetector struct {
	byFrame map[int][]Detection
}

// NewReplayDetector loads a detection recording from path.
func NewReplayDetector(fs fsutil.FileSystem, path string) (*ReplayDetector, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	byFrame := make(map[int][]Detection)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line replayLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("replay file %s line %d: %w", path, lineNo, err)
		}
		byFrame[line.Frame] = append(byFrame[line.Frame], line.Detections...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay file %s: %w", path, err)
	}

	return &ReplayDetector{byFrame: byFrame}, nil
}

// Detect returns the recorded detections for frameIndex, or none.
func (r *ReplayDetector) Detect(_ context.Context, frameIndex int, _ []byte) ([]Detection, error) {
	dets := r.byFrame[frameIndex]
	out := make([]Detection, len(dets))
	copy(out, dets)
	return out, nil
}

// CheckHealth always succeeds; the recording was validated at load time.
func (r *ReplayDetector) CheckHealth(context.Context) error { return nil }

// FrameCount returns the number of frames with recorded detections.
func (r *ReplayDetector) FrameCount() int { return len(r.byFrame) }

// Recorder wraps a Detector and appends every result to a JSONL recording
// that ReplayDetector can play back. Frames with no detections are skipped to
// keep recordings small.
type Recorder struct {
	mu        sync.Mutex
	inner     Detector
	enc       *json.Encoder
	closeFn   func() error
	closeOnce sync.Once
}

// NewRecorder creates a recording detector writing to path via fs.
func NewRecorder(inner Detector, fs fsutil.FileSystem, path string) (*Recorder, error) {
	w, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}
	return &Recorder{inner: inner, enc: json.NewEncoder(w), closeFn: w.Close}, nil
}

// Detect delegates to the wrapped detector and records the result.
func (r *Recorder) Detect(ctx context.Context, frameIndex int, jpeg []byte) ([]Detection, error) {
	dets, err := r.inner.Detect(ctx, frameIndex, jpeg)
	if err != nil {
		return nil, err
	}
	if len(dets) > 0 {
		r.mu.Lock()
		encErr := r.enc.Encode(replayLine{Frame: frameIndex, Detections: dets})
		r.mu.Unlock()
		if encErr != nil {
			return nil, fmt.Errorf("record detections for frame %d: %w", frameIndex, encErr)
		}
	}
	return dets, nil
}

// CheckHealth delegates to the wrapped detector.
func (r *Recorder) CheckHealth(ctx context.Context) error {
	return r.inner.CheckHealth(ctx)
}

// Close flushes and closes the recording file.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() { err = r.closeFn() })
	return err
}
