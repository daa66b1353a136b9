package count

import (
	"sync"

	"github.com/banshee-data/loadcycle.report/internal/detect"
)

// CycleCounter counts ritase: loaded trucks leaving the loading point. One
// global load cycle is open at a time. The first truck_full at or above the
// confidence floor increments the total and arms the cycle; further
// truck_full sightings inside the same cycle are duplicates. When a
// higher-confidence duplicate comes from a different truck track, the
// per-truck attribution transfers to it, but the total never changes. The
// excavator's bucket_dumping closes the cycle.
type CycleCounter struct {
	mu sync.Mutex

	minConfidence float32
	fps           float64

	total               int
	cyclesCompleted     int
	cycleNumber         int // 1-based; the cycle currently open
	preventedDuplicates int
	totalTruckFull      int // All truck_full observations, counted or not

	perTruck map[string]int

	cycleHasRitase bool
	best           *fullCandidate

	// counted dedupes (track, frame) pairs so replaying a frame range is
	// idempotent.
	counted map[string]bool

	events []Event
}

type fullCandidate struct {
	trackID    string
	frameIndex int
	confidence float32
}

// NewCycleCounter creates a ritase counter. truck_full observations below
// minConfidence never count.
func NewCycleCounter(minConfidence float64, fps float64) *CycleCounter {
	return &CycleCounter{
		minConfidence: float32(minConfidence),
		fps:           fps,
		cycleNumber:   1,
		perTruck:      make(map[string]int),
		counted:       make(map[string]bool),
	}
}

// Observe processes one truck-track observation. It returns the emitted
// event and true when the observation incremented the ritase total.
func (c *CycleCounter) Observe(obs Observation) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if obs.ClassID != detect.ClassTruckFull {
		return Event{}, false
	}
	c.totalTruckFull++

	if !c.cycleHasRitase {
		// First truck_full of the cycle. The confidence floor and the
		// (track, frame) dedup only gate this arming count.
		key := dedupKey(obs.TrackID, obs.FrameIndex)
		if obs.Confidence < c.minConfidence || c.counted[key] {
			return Event{}, false
		}
		c.counted[key] = true

		c.cycleHasRitase = true
		c.best = &fullCandidate{
			trackID:    obs.TrackID,
			frameIndex: obs.FrameIndex,
			confidence: obs.Confidence,
		}
		c.total++
		c.perTruck[obs.TrackID]++

		ev := newEvent(EventRitase, c.total, obs, c.fps)
		c.events = append(c.events, ev)
		return ev, true
	}

	// Cycle already counted. A higher-confidence sighting becomes the new
	// candidate and takes over the per-truck attribution; the total stays
	// put either way.
	if obs.Confidence > c.best.confidence {
		c.perTruck[c.best.trackID]--
		if c.perTruck[c.best.trackID] <= 0 {
			delete(c.perTruck, c.best.trackID)
		}
		c.perTruck[obs.TrackID]++
		c.best = &fullCandidate{
			trackID:    obs.TrackID,
			frameIndex: obs.FrameIndex,
			confidence: obs.Confidence,
		}
	}
	c.preventedDuplicates++
	return Event{}, false
}

// CloseCycle ends the open load cycle. Called when the excavator's bucket
// dumps: the loaded truck has been served and the next truck_full belongs to
// a new cycle. Closing an unarmed cycle is a no-op.
func (c *CycleCounter) CloseCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cycleHasRitase {
		return
	}
	c.cyclesCompleted++
	c.cycleNumber++
	c.cycleHasRitase = false
	c.best = nil
}

// Total returns the ritase count so far. Totals are monotonic.
func (c *CycleCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Stats is a snapshot of the counter's internal tallies for reporting.
type Stats struct {
	Total               int            `json:"total"`
	CyclesCompleted     int            `json:"cycles_completed"`
	CycleNumber         int            `json:"cycle_number"`
	PreventedDuplicates int            `json:"prevented_duplicates"`
	TotalTruckFull      int            `json:"total_truck_full"`
	PerTruck            map[string]int `json:"per_truck"`
}

// GetStats returns a snapshot of the counter state.
func (c *CycleCounter) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	perTruck := make(map[string]int, len(c.perTruck))
	for k, v := range c.perTruck {
		perTruck[k] = v
	}
	return Stats{
		Total:               c.total,
		CyclesCompleted:     c.cyclesCompleted,
		CycleNumber:         c.cycleNumber,
		PreventedDuplicates: c.preventedDuplicates,
		TotalTruckFull:      c.totalTruckFull,
		PerTruck:            perTruck,
	}
}

// Events returns a copy of all ritase events in emission order.
func (c *CycleCounter) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
