package track

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/loadcycle.report/internal/config"
	"github.com/banshee-data/loadcycle.report/internal/detect"
)

func testConfig() TrackerConfig {
	cfg := TrackerConfigFromTuning(config.EmptyTuningConfig(), 0.5)
	return cfg
}

func det(cx, cy float32, classID int, conf float32) detect.Detection {
	return detect.Detection{
		Box:        detect.Box{X1: cx - 20, Y1: cy - 15, X2: cx + 20, Y2: cy + 15},
		ClassID:    classID,
		ClassName:  fmt.Sprintf("class_%d", classID),
		Confidence: conf,
	}
}

func TestTrackerCreatesAndConfirmsTrack(t *testing.T) {
	tr := NewTracker(testConfig())

	for frame := 0; frame < 5; frame++ {
		tr.Update([]detect.Detection{det(100+float32(frame)*2, 200, 6, 0.95)}, frame)
	}

	active := tr.GetActiveTracks()
	if len(active) != 1 {
		t.Fatalf("got %d active tracks, want 1", len(active))
	}
	track := active[0]
	if track.TrackID != "track_1" {
		t.Errorf("TrackID = %q, want track_1", track.TrackID)
	}
	if track.State != TrackConfirmed {
		t.Errorf("State = %q, want confirmed after %d hits", track.State, track.Hits)
	}
	if track.ObservationCount != 5 {
		t.Errorf("ObservationCount = %d, want 5", track.ObservationCount)
	}
	if track.ClassID != 6 {
		t.Errorf("ClassID = %d, want 6", track.ClassID)
	}
}

func TestTrackerIgnoresLowConfidenceDetections(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]detect.Detection{det(100, 100, 1, 0.2)}, 0)
	if total, _, _, _ := tr.GetTrackCount(); total != 0 {
		t.Errorf("got %d tracks from below-floor detection, want 0", total)
	}
}

func TestTrackerKeepsIDThroughShortOcclusion(t *testing.T) {
	tr := NewTracker(testConfig())

	// Confirm a track moving right at 2 px/frame.
	frame := 0
	for ; frame < 5; frame++ {
		tr.Update([]detect.Detection{det(100+float32(frame)*2, 200, 6, 0.95)}, frame)
	}

	// Occlude for fewer frames than the confirmed miss budget.
	for ; frame < 5+10; frame++ {
		tr.Update(nil, frame)
	}

	// Reappear near the coasted position.
	tr.Update([]detect.Detection{det(100+float32(frame)*2, 200, 6, 0.95)}, frame)

	active := tr.GetActiveTracks()
	if len(active) != 1 {
		t.Fatalf("got %d active tracks, want 1", len(active))
	}
	if active[0].TrackID != "track_1" {
		t.Errorf("TrackID = %q after occlusion, want track_1", active[0].TrackID)
	}
	if active[0].Misses != 0 {
		t.Errorf("Misses = %d after re-association, want 0", active[0].Misses)
	}
}

func TestTrackerRetiresTrackAfterMissBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMissesConfirmed = 5
	cfg.DeletedGraceFrames = 2
	tr := NewTracker(cfg)

	frame := 0
	for ; frame < 5; frame++ {
		tr.Update([]detect.Detection{det(100, 200, 6, 0.95)}, frame)
	}
	for ; frame < 5+cfg.MaxMissesConfirmed+cfg.DeletedGraceFrames+2; frame++ {
		tr.Update(nil, frame)
	}

	if total, _, _, _ := tr.GetTrackCount(); total != 0 {
		t.Errorf("got %d tracks after retirement and grace period, want 0", total)
	}

	// A fresh detection in the same place starts a new track ID.
	tr.Update([]detect.Detection{det(100, 200, 6, 0.95)}, frame)
	active := tr.GetActiveTracks()
	if len(active) != 1 || active[0].TrackID == "track_1" {
		t.Errorf("expected a new track ID after retirement, got %+v", active)
	}
}

func TestTrackerSeparatesTwoObjects(t *testing.T) {
	tr := NewTracker(testConfig())

	for frame := 0; frame < 6; frame++ {
		tr.Update([]detect.Detection{
			det(100, 100, 6, 0.95),
			det(600, 400, 1, 0.95),
		}, frame)
	}

	_, _, confirmed, _ := tr.GetTrackCount()
	if confirmed != 2 {
		t.Fatalf("confirmed = %d, want 2", confirmed)
	}
	for _, track := range tr.GetConfirmedTracks() {
		if track.ObservationCount != 6 {
			t.Errorf("track %s ObservationCount = %d, want 6 (identity swap?)",
				track.TrackID, track.ObservationCount)
		}
	}
}

func TestTrackerRejectsImplausibleJump(t *testing.T) {
	cfg := testConfig()
	tr := NewTracker(cfg)

	for frame := 0; frame < 5; frame++ {
		tr.Update([]detect.Detection{det(100, 100, 6, 0.95)}, frame)
	}

	// A detection far beyond MaxPositionJumpPx must not capture the track.
	tr.Update([]detect.Detection{det(100+cfg.MaxPositionJumpPx*2, 100, 6, 0.95)}, 5)

	active := tr.GetActiveTracks()
	if len(active) != 2 {
		t.Fatalf("got %d active tracks, want 2 (old + new)", len(active))
	}
	if active[0].Misses != 1 {
		t.Errorf("original track Misses = %d, want 1 (coasting)", active[0].Misses)
	}
}

func TestTrackerDeterministicAcrossRuns(t *testing.T) {
	// Same detection stream twice must give identical track assignments,
	// including ambiguous frames where two detections straddle two tracks.
	run := func() []string {
		tr := NewTracker(testConfig())
		for frame := 0; frame < 10; frame++ {
			tr.Update([]detect.Detection{
				det(100+float32(frame)*3, 100, 6, 0.95),
				det(130+float32(frame)*3, 100, 6, 0.94),
				det(500, 300, 1, 0.9),
			}, frame)
		}
		var out []string
		for _, track := range tr.GetAllTracks() {
			out = append(out, fmt.Sprintf("%s:%d:%.1f,%.1f",
				track.TrackID, track.ObservationCount, track.CX, track.CY))
		}
		return out
	}

	first := run()
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, run()); diff != "" {
			t.Fatalf("run %d diverged (-first +rerun):\n%s", i+1, diff)
		}
	}
}

func TestTrackerClassLabelFollowsLatestDetection(t *testing.T) {
	tr := NewTracker(testConfig())

	tr.Update([]detect.Detection{det(100, 100, detect.ClassBucketDigging, 0.95)}, 0)
	tr.Update([]detect.Detection{det(102, 100, detect.ClassBucketDumping, 0.92)}, 1)

	active := tr.GetActiveTracks()
	if len(active) != 1 {
		t.Fatalf("got %d active tracks, want 1", len(active))
	}
	if active[0].ClassID != detect.ClassBucketDumping {
		t.Errorf("ClassID = %d, want %d (latest match wins)",
			active[0].ClassID, detect.ClassBucketDumping)
	}
}

func TestTrackerResetClearsState(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]detect.Detection{det(100, 100, 6, 0.95)}, 0)
	tr.Reset()

	if total, _, _, _ := tr.GetTrackCount(); total != 0 {
		t.Errorf("got %d tracks after Reset, want 0", total)
	}
	tr.Update([]detect.Detection{det(100, 100, 6, 0.95)}, 0)
	if got := tr.GetActiveTracks()[0].TrackID; got != "track_1" {
		t.Errorf("TrackID after Reset = %q, want track_1", got)
	}
}

func TestPredictedBoxUsesAveragedDimensions(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]detect.Detection{det(100, 100, 6, 0.95)}, 0)

	track := tr.GetActiveTracks()[0]
	box := track.PredictedBox()
	if box.Width() != 40 || box.Height() != 30 {
		t.Errorf("PredictedBox() = %+v, want 40x30", box)
	}
	if cx := box.CenterX(); cx != track.CX {
		t.Errorf("PredictedBox center X = %v, want %v", cx, track.CX)
	}
}
