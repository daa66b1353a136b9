// Package detect defines detection types and the detector clients used by the
// analysis pipeline. Detections come from an external inference service over
// HTTP, or from a recorded JSONL file for deterministic replay.
package detect

import (
	"context"
	"fmt"
)

// Known class IDs from the excavator model manifest. The manifest file is the
// source of truth for names; these constants exist for counter routing.
const (
	ClassBucketDigging = 1
	ClassBucketDumping = 2
	ClassTruckEmpty    = 5
	ClassTruckFull     = 6
)

// IsTruckClass reports whether a class ID belongs to the truck tracker.
// Everything else is routed to the bucket tracker.
func IsTruckClass(classID int) bool {
	return classID == ClassTruckEmpty || classID == ClassTruckFull
}

// Box is an axis-aligned bounding box in pixel coordinates.
// (X1, Y1) is the top-left corner, (X2, Y2) the bottom-right.
type Box struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() float32 { return (b.X1 + b.X2) / 2 }

// CenterY returns the vertical center of the box.
func (b Box) CenterY() float32 { return (b.Y1 + b.Y2) / 2 }

// Width returns the box width.
func (b Box) Width() float32 { return b.X2 - b.X1 }

// Height returns the box height.
func (b Box) Height() float32 { return b.Y2 - b.Y1 }

// Area returns the box area in square pixels.
func (b Box) Area() float32 { return b.Width() * b.Height() }

// IsValid reports whether the box has positive extent.
func (b Box) IsValid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Detection is a single model detection in one frame.
type Detection struct {
	Box        Box     `json:"box"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float32 `json:"confidence"`
}

func (d Detection) String() string {
	return fmt.Sprintf("%s(%d) %.4f [%.0f,%.0f,%.0f,%.0f]",
		d.ClassName, d.ClassID, d.Confidence, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
}

// Detector produces detections for one video frame. The frame is handed over
// as encoded JPEG bytes so implementations never depend on the media layer.
//
// Implementations must be safe for concurrent use: the pipeline's read-ahead
// stage calls Detect from multiple goroutines.
type Detector interface {
	// Detect returns the detections for the frame at frameIndex.
	Detect(ctx context.Context, frameIndex int, jpeg []byte) ([]Detection, error)

	// CheckHealth verifies the detector is ready to serve requests.
	CheckHealth(ctx context.Context) error
}
