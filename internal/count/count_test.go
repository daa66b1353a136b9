package count

import (
	"testing"

	"github.com/banshee-data/loadcycle.report/internal/detect"
)

const testFPS = 30.0

func dump(track string, frame int, conf float32) Observation {
	return Observation{
		TrackID: track, ClassID: detect.ClassBucketDumping,
		ClassName: "bucket_dumping", FrameIndex: frame, Confidence: conf,
	}
}

func dig(track string, frame int) Observation {
	return Observation{
		TrackID: track, ClassID: detect.ClassBucketDigging,
		ClassName: "bucket_digging", FrameIndex: frame, Confidence: 0.95,
	}
}

func full(track string, frame int, conf float32) Observation {
	return Observation{
		TrackID: track, ClassID: detect.ClassTruckFull,
		ClassName: "truck_full", FrameIndex: frame, Confidence: conf,
	}
}

func TestPassCounterCountsFirstDumpPerCycle(t *testing.T) {
	c := NewPassCounter(0.80, testFPS)

	ev, counted := c.Observe(dump("track_1", 100, 0.85))
	if !counted {
		t.Fatal("first dump should count")
	}
	if ev.Seq != 1 || ev.Type != EventPassing || ev.TrackID != "track_1" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Seconds != 3.33 {
		t.Errorf("Seconds = %v, want 3.33 (frame 100 at 30fps, 2dp)", ev.Seconds)
	}
	if ev.ID == "" {
		t.Error("event ID should be set")
	}

	// Consecutive dump frames in the same cycle don't count again.
	for frame := 101; frame < 110; frame++ {
		if _, counted := c.Observe(dump("track_1", frame, 0.82)); counted {
			t.Fatalf("dump at frame %d counted twice in one cycle", frame)
		}
	}
	if c.Total() != 1 {
		t.Errorf("Total() = %d, want 1", c.Total())
	}
}

func TestPassCounterHigherConfidenceReplacesWithoutCounting(t *testing.T) {
	c := NewPassCounter(0.80, testFPS)

	c.Observe(dump("track_1", 100, 0.85))
	if _, counted := c.Observe(dump("track_1", 105, 0.97)); counted {
		t.Error("higher-confidence dump should replace the candidate, not count")
	}
	if c.Total() != 1 {
		t.Errorf("Total() = %d, want 1", c.Total())
	}
}

func TestPassCounterDiggingOpensNewCycle(t *testing.T) {
	c := NewPassCounter(0.80, testFPS)

	c.Observe(dump("track_1", 100, 0.85))
	c.Observe(dig("track_1", 200))
	if _, counted := c.Observe(dump("track_1", 300, 0.85)); !counted {
		t.Error("dump after digging should start a new passing")
	}
	if c.Total() != 2 {
		t.Errorf("Total() = %d, want 2", c.Total())
	}

	events := c.Events()
	if len(events) != 2 || events[1].Seq != 2 {
		t.Errorf("events = %+v, want dense Seq 1,2", events)
	}
}

func TestPassCounterIndependentTracks(t *testing.T) {
	c := NewPassCounter(0.80, testFPS)

	c.Observe(dump("track_1", 100, 0.85))
	if _, counted := c.Observe(dump("track_2", 101, 0.85)); !counted {
		t.Error("a different bucket track counts independently")
	}
	per := c.PerTrack()
	if per["track_1"] != 1 || per["track_2"] != 1 {
		t.Errorf("PerTrack() = %v", per)
	}
}

func TestPassCounterBelowThresholdIgnored(t *testing.T) {
	c := NewPassCounter(0.80, testFPS)
	if _, counted := c.Observe(dump("track_1", 100, 0.79)); counted {
		t.Error("below-threshold dump must not count")
	}
	if c.Total() != 0 {
		t.Errorf("Total() = %d, want 0", c.Total())
	}
}

func TestPassCounterReplayIdempotent(t *testing.T) {
	c := NewPassCounter(0.80, testFPS)
	c.Observe(dump("track_1", 100, 0.85))
	// Same (track, frame) again, e.g. a replayed chunk: no double count,
	// no candidate churn.
	if _, counted := c.Observe(dump("track_1", 100, 0.85)); counted {
		t.Error("replayed observation counted twice")
	}
	if c.Total() != 1 {
		t.Errorf("Total() = %d, want 1", c.Total())
	}
}

func TestCycleCounterCountsOnePerCycle(t *testing.T) {
	c := NewCycleCounter(0.90, testFPS)

	ev, counted := c.Observe(full("track_1", 50, 0.95))
	if !counted {
		t.Fatal("first truck_full should count")
	}
	if ev.Seq != 1 || ev.Type != EventRitase {
		t.Errorf("event = %+v", ev)
	}

	// Same cycle: every further full sighting is a suppressed duplicate.
	for frame := 51; frame < 60; frame++ {
		if _, counted := c.Observe(full("track_1", frame, 0.94)); counted {
			t.Fatalf("duplicate at frame %d counted", frame)
		}
	}

	stats := c.GetStats()
	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1", stats.Total)
	}
	if stats.PreventedDuplicates != 9 {
		t.Errorf("PreventedDuplicates = %d, want 9", stats.PreventedDuplicates)
	}
	if stats.TotalTruckFull != 10 {
		t.Errorf("TotalTruckFull = %d, want 10", stats.TotalTruckFull)
	}
	if stats.CycleNumber != 1 {
		t.Errorf("CycleNumber = %d, want 1 (still open)", stats.CycleNumber)
	}
}

func TestCycleCounterDumpClosesCycle(t *testing.T) {
	c := NewCycleCounter(0.90, testFPS)

	c.Observe(full("track_1", 50, 0.95))
	c.CloseCycle()

	if _, counted := c.Observe(full("track_2", 200, 0.95)); !counted {
		t.Error("truck_full after cycle close should count")
	}

	stats := c.GetStats()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.CyclesCompleted != 1 {
		t.Errorf("CyclesCompleted = %d, want 1", stats.CyclesCompleted)
	}
	if stats.CycleNumber != 2 {
		t.Errorf("CycleNumber = %d, want 2", stats.CycleNumber)
	}
}

func TestCycleCounterCloseWithoutRitaseIsNoop(t *testing.T) {
	c := NewCycleCounter(0.90, testFPS)
	c.CloseCycle()
	stats := c.GetStats()
	if stats.CyclesCompleted != 0 || stats.CycleNumber != 1 {
		t.Errorf("stats = %+v, want untouched", stats)
	}
}

func TestCycleCounterTransfersToBetterCandidate(t *testing.T) {
	c := NewCycleCounter(0.90, testFPS)

	c.Observe(full("track_1", 50, 0.92))
	// A different truck with higher confidence: attribution moves, total
	// does not.
	if _, counted := c.Observe(full("track_2", 55, 0.98)); counted {
		t.Error("transfer must not increment the total")
	}

	stats := c.GetStats()
	if stats.Total != 1 {
		t.Errorf("Total = %d, want 1", stats.Total)
	}
	if stats.PerTruck["track_2"] != 1 {
		t.Errorf("PerTruck = %v, want attribution on track_2", stats.PerTruck)
	}
	if _, ok := stats.PerTruck["track_1"]; ok {
		t.Errorf("PerTruck = %v, track_1 should have been vacated", stats.PerTruck)
	}
	if stats.PreventedDuplicates != 1 {
		t.Errorf("PreventedDuplicates = %d, want 1", stats.PreventedDuplicates)
	}
}

func TestCycleCounterBelowThresholdNeverArms(t *testing.T) {
	c := NewCycleCounter(0.90, testFPS)

	if _, counted := c.Observe(full("track_1", 50, 0.89)); counted {
		t.Error("below-threshold truck_full must not count")
	}
	stats := c.GetStats()
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
	if stats.TotalTruckFull != 1 {
		t.Errorf("TotalTruckFull = %d, want 1 (observed but uncounted)", stats.TotalTruckFull)
	}

	// The cycle stayed unarmed, so a good sighting still counts.
	if _, counted := c.Observe(full("track_1", 51, 0.95)); !counted {
		t.Error("good truck_full after weak one should count")
	}
}

func TestCycleCounterIgnoresNonFullClasses(t *testing.T) {
	c := NewCycleCounter(0.90, testFPS)
	obs := Observation{TrackID: "track_1", ClassID: detect.ClassTruckEmpty,
		ClassName: "truck_empty", FrameIndex: 10, Confidence: 0.99}
	if _, counted := c.Observe(obs); counted {
		t.Error("truck_empty must not count")
	}
	if c.GetStats().TotalTruckFull != 0 {
		t.Error("truck_empty must not increment TotalTruckFull")
	}
}

func TestTotalsAreMonotonic(t *testing.T) {
	pass := NewPassCounter(0.80, testFPS)
	cycle := NewCycleCounter(0.90, testFPS)

	lastPass, lastRitase := 0, 0
	frame := 0
	for round := 0; round < 5; round++ {
		for _, obs := range []Observation{
			dig("track_1", frame),
			dump("track_1", frame+10, 0.85),
			full("track_9", frame+20, 0.95),
			dump("track_1", frame+30, 0.99),
		} {
			pass.Observe(obs)
			cycle.Observe(obs)
			if obs.ClassID == detect.ClassBucketDumping {
				cycle.CloseCycle()
			}
			if pass.Total() < lastPass || cycle.Total() < lastRitase {
				t.Fatal("totals decreased")
			}
			lastPass, lastRitase = pass.Total(), cycle.Total()
		}
		frame += 100
	}
	if lastPass != 5 {
		t.Errorf("passing total = %d, want 5 (one per dig-dump round)", lastPass)
	}
	if lastRitase != 5 {
		t.Errorf("ritase total = %d, want 5 (one per cycle)", lastRitase)
	}
}
