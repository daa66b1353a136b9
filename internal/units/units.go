// Package units provides shared constants and conversions for video time display
package units

import (
	"fmt"
	"math"
)

// Unit constants
const (
	Frames   = "frames"
	Seconds  = "seconds"
	Timecode = "timecode"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Frames, Seconds, Timecode}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "frames, seconds, timecode"
}

// FrameToSeconds converts a frame index to video time in seconds.
// Reports and the database store positions as frame indices; display converts.
func FrameToSeconds(frame int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frame) / fps
}

// SecondsToFrame converts video time in seconds to the nearest frame index.
func SecondsToFrame(seconds, fps float64) int {
	if fps <= 0 || seconds < 0 {
		return 0
	}
	return int(math.Round(seconds * fps))
}

// FormatTimecode renders seconds as HH:MM:SS.mmm.
func FormatTimecode(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	ms := int(math.Round((seconds - math.Floor(seconds)) * 1000))
	if ms >= 1000 {
		ms -= 1000
		s++
		if s >= 60 {
			s = 0
			m++
			if m >= 60 {
				m = 0
				h++
			}
		}
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// FormatPosition renders a frame position in the requested unit.
// Unknown units fall back to frames.
func FormatPosition(frame int, fps float64, unit string) string {
	switch unit {
	case Seconds:
		return fmt.Sprintf("%.2f", FrameToSeconds(frame, fps))
	case Timecode:
		return FormatTimecode(FrameToSeconds(frame, fps))
	default:
		return fmt.Sprintf("%d", frame)
	}
}
