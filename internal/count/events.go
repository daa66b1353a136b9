// Package count implements the haul-cycle counters. A "passing" is one
// bucket dump by the excavator; a "ritase" is one loaded truck leaving with
// a full tray. Counters consume confirmed track observations in frame order
// and emit numbered events.
package count

import (
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/loadcycle.report/internal/units"
)

// EventType distinguishes the two counter streams.
type EventType string

const (
	EventRitase  EventType = "ritase"
	EventPassing EventType = "passing"
)

// Event is one counted occurrence. Seq is dense per event type, starting at
// 1, so the Nth ritase event always has Seq == N regardless of interleaving
// with passing events.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Seq        int       `json:"seq"`
	FrameIndex int       `json:"frame"`
	Seconds    float64   `json:"seconds"`
	Confidence float32   `json:"confidence"`
	TrackID    string    `json:"track_id"`
	ClassName  string    `json:"class_name"`
}

// Observation is one confirmed-track sighting handed to a counter.
type Observation struct {
	TrackID    string
	ClassID    int
	ClassName  string
	FrameIndex int
	Confidence float32
}

func newEvent(typ EventType, seq int, obs Observation, fps float64) Event {
	seconds := units.FrameToSeconds(obs.FrameIndex, fps)
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Seq:        seq,
		FrameIndex: obs.FrameIndex,
		Seconds:    math.Round(seconds*100) / 100,
		Confidence: obs.Confidence,
		TrackID:    obs.TrackID,
		ClassName:  obs.ClassName,
	}
}
