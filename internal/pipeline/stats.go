package pipeline

import (
	"sync"
	"time"
)

// FrameStats tracks per-run processing statistics with thread-safe operations.
type FrameStats struct {
	mu             sync.Mutex
	frameCount     int64
	detectionCount int64
	detectFailures int64
	ritaseEvents   int64
	passingEvents  int64
	lastReset      time.Time
}

// NewFrameStats creates a new FrameStats instance.
func NewFrameStats() *FrameStats {
	return &FrameStats{lastReset: time.Now()}
}

// AddFrame increments the processed frame count and the detection tally.
func (fs *FrameStats) AddFrame(detections int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frameCount++
	fs.detectionCount += int64(detections)
}

// AddDetectFailure increments the detector failure count.
func (fs *FrameStats) AddDetectFailure() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.detectFailures++
}

// AddEvent tallies one emitted counter event.
func (fs *FrameStats) AddEvent(ritase bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if ritase {
		fs.ritaseEvents++
	} else {
		fs.passingEvents++
	}
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Frames         int64         `json:"frames"`
	Detections     int64         `json:"detections"`
	DetectFailures int64         `json:"detect_failures"`
	RitaseEvents   int64         `json:"ritase_events"`
	PassingEvents  int64         `json:"passing_events"`
	Window         time.Duration `json:"window"`
}

// GetAndReset returns current stats and resets counters.
func (fs *FrameStats) GetAndReset() Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		Frames:         fs.frameCount,
		Detections:     fs.detectionCount,
		DetectFailures: fs.detectFailures,
		RitaseEvents:   fs.ritaseEvents,
		PassingEvents:  fs.passingEvents,
		Window:         now.Sub(fs.lastReset),
	}
	fs.frameCount = 0
	fs.detectionCount = 0
	fs.detectFailures = 0
	fs.ritaseEvents = 0
	fs.passingEvents = 0
	fs.lastReset = now
	return snap
}

// Get returns current stats without resetting.
func (fs *FrameStats) Get() Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return Snapshot{
		Frames:         fs.frameCount,
		Detections:     fs.detectionCount,
		DetectFailures: fs.detectFailures,
		RitaseEvents:   fs.ritaseEvents,
		PassingEvents:  fs.passingEvents,
		Window:         time.Since(fs.lastReset),
	}
}
