package count

import (
	"strconv"
	"sync"

	"github.com/banshee-data/loadcycle.report/internal/detect"
)

// PassCounter counts bucket passes: each dump (bucket_dumping) by a tracked
// bucket is one passing. Within a dig-dump cycle the bucket may be detected
// dumping across many consecutive frames; only the first dump per cycle is
// counted, and a later higher-confidence dump merely replaces the stored
// candidate without incrementing. A digging detection closes the cycle so
// the next dump counts again.
type PassCounter struct {
	mu sync.Mutex

	minConfidence float32
	fps           float64

	total    int
	perTrack map[string]int

	// best holds the highest-confidence dump seen in the current cycle,
	// per bucket track. A nil entry means the track is mid-dig.
	best map[string]*dumpCandidate

	// counted dedupes (track, frame) pairs so replaying a frame range is
	// idempotent.
	counted map[string]bool

	events []Event
}

type dumpCandidate struct {
	frameIndex int
	confidence float32
}

// NewPassCounter creates a passing counter. Dumps below minConfidence are
// ignored entirely.
func NewPassCounter(minConfidence float64, fps float64) *PassCounter {
	return &PassCounter{
		minConfidence: float32(minConfidence),
		fps:           fps,
		perTrack:      make(map[string]int),
		best:          make(map[string]*dumpCandidate),
		counted:       make(map[string]bool),
	}
}

// Observe processes one bucket-track observation. It returns the emitted
// event and true when the observation incremented the passing total.
func (c *PassCounter) Observe(obs Observation) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch obs.ClassID {
	case detect.ClassBucketDigging:
		// Digging means the previous dump is finished; clear the
		// candidate so the next dump starts a new passing.
		delete(c.best, obs.TrackID)
		return Event{}, false
	case detect.ClassBucketDumping:
		// Handled below.
	default:
		return Event{}, false
	}

	if obs.Confidence < c.minConfidence {
		return Event{}, false
	}

	dumpID := dedupKey(obs.TrackID, obs.FrameIndex)
	if c.counted[dumpID] {
		return Event{}, false
	}
	c.counted[dumpID] = true

	if cand, ok := c.best[obs.TrackID]; ok {
		// Already counted a dump this cycle. A higher-confidence frame
		// replaces the candidate but never counts twice.
		if obs.Confidence > cand.confidence {
			c.best[obs.TrackID] = &dumpCandidate{
				frameIndex: obs.FrameIndex,
				confidence: obs.Confidence,
			}
		}
		return Event{}, false
	}

	c.best[obs.TrackID] = &dumpCandidate{
		frameIndex: obs.FrameIndex,
		confidence: obs.Confidence,
	}
	c.total++
	c.perTrack[obs.TrackID]++

	ev := newEvent(EventPassing, c.total, obs, c.fps)
	c.events = append(c.events, ev)
	return ev, true
}

// Total returns the passing count so far. Totals are monotonic: nothing
// ever decrements them.
func (c *PassCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// PerTrack returns a copy of the per-bucket-track passing counts.
func (c *PassCounter) PerTrack() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.perTrack))
	for k, v := range c.perTrack {
		out[k] = v
	}
	return out
}

// Events returns a copy of all passing events in emission order.
func (c *PassCounter) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func dedupKey(trackID string, frameIndex int) string {
	return trackID + "@" + strconv.Itoa(frameIndex)
}
