package pipeline

import (
	"sort"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/report"
	"github.com/banshee-data/loadcycle.report/internal/track"
)

// RecountResult holds the events produced by replaying stored observations
// through fresh counters.
type RecountResult struct {
	Ritase       []count.Event
	Passing      []count.Event
	RitaseStats  count.Stats
	PassingTotal int
}

// Events returns all recounted events, ritase first.
func (r RecountResult) Events() []count.Event {
	out := make([]count.Event, 0, len(r.Ritase)+len(r.Passing))
	out = append(out, r.Ritase...)
	out = append(out, r.Passing...)
	return out
}

// RecountObservations replays stored tracking rows through fresh counters,
// reproducing the per-frame ordering of a live run: bucket classes feed the
// passing counter first, trucks feed the ritase counter second, and a dump
// sighting closes the cycle at the end of its frame. Rows must be ordered by
// frame; only fresh confirmed sightings take part, matching what the
// counters saw live.
func RecountObservations(rows []report.TrackingRow, classIDs map[string]int, ritaseConf, passingConf, fps float64) RecountResult {
	ritase := count.NewCycleCounter(ritaseConf, fps)
	passing := count.NewPassCounter(passingConf, fps)

	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].Frame == rows[i].Frame {
			j++
		}
		frameRows := make([]report.TrackingRow, j-i)
		copy(frameRows, rows[i:j])
		i = j

		// The tracker feeds counters in track creation order. Ids are
		// "track_<n>", so length-then-lex reproduces it regardless of how
		// the rows were ordered on the way in.
		sort.Slice(frameRows, func(a, b int) bool {
			x, y := frameRows[a].TrackID, frameRows[b].TrackID
			if len(x) != len(y) {
				return len(x) < len(y)
			}
			return x < y
		})

		var sawDump bool
		for _, r := range frameRows {
			if r.State != string(track.TrackConfirmed) {
				continue
			}
			classID := classIDs[r.Class]
			if detect.IsTruckClass(classID) {
				continue
			}
			passing.Observe(observationFromRow(r, classID))
			if classID == detect.ClassBucketDumping {
				sawDump = true
			}
		}
		for _, r := range frameRows {
			if r.State != string(track.TrackConfirmed) {
				continue
			}
			classID := classIDs[r.Class]
			if !detect.IsTruckClass(classID) {
				continue
			}
			ritase.Observe(observationFromRow(r, classID))
		}
		if sawDump {
			ritase.CloseCycle()
		}
	}

	return RecountResult{
		Ritase:       ritase.Events(),
		Passing:      passing.Events(),
		RitaseStats:  ritase.GetStats(),
		PassingTotal: passing.Total(),
	}
}

func observationFromRow(r report.TrackingRow, classID int) count.Observation {
	return count.Observation{
		TrackID:    r.TrackID,
		ClassID:    classID,
		ClassName:  r.Class,
		FrameIndex: r.Frame,
		Confidence: r.Confidence,
	}
}
