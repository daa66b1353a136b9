package units

import (
	"math"
	"testing"
)

func TestFrameToSeconds(t *testing.T) {
	tests := []struct {
		name     string
		frame    int
		fps      float64
		expected float64
	}{
		{"frame 0", 0, 30.0, 0.0},
		{"one second at 30fps", 30, 30.0, 1.0},
		{"half second at 30fps", 15, 30.0, 0.5},
		{"one second at 25fps", 25, 25.0, 1.0},
		{"ntsc fps", 30, 29.97, 1.001001},
		{"zero fps yields zero", 100, 0.0, 0.0},
		{"negative fps yields zero", 100, -1.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FrameToSeconds(tt.frame, tt.fps)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("FrameToSeconds(%d, %f) = %f, want %f", tt.frame, tt.fps, result, tt.expected)
			}
		})
	}
}

func TestSecondsToFrame(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		fps      float64
		expected int
	}{
		{"zero", 0.0, 30.0, 0},
		{"one second at 30fps", 1.0, 30.0, 30},
		{"rounds to nearest", 0.49, 30.0, 15},
		{"negative clamps", -2.0, 30.0, 0},
		{"zero fps", 10.0, 0.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SecondsToFrame(tt.seconds, tt.fps)
			if result != tt.expected {
				t.Errorf("SecondsToFrame(%f, %f) = %d, want %d", tt.seconds, tt.fps, result, tt.expected)
			}
		})
	}
}

func TestFormatTimecode(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected string
	}{
		{"zero", 0.0, "00:00:00.000"},
		{"sub-second", 0.25, "00:00:00.250"},
		{"minute boundary", 60.0, "00:01:00.000"},
		{"hour boundary", 3600.0, "01:00:00.000"},
		{"mixed", 3723.5, "01:02:03.500"},
		{"millisecond rounding carries", 59.9999, "00:01:00.000"},
		{"negative clamps", -5.0, "00:00:00.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatTimecode(tt.seconds)
			if result != tt.expected {
				t.Errorf("FormatTimecode(%f) = %s, want %s", tt.seconds, result, tt.expected)
			}
		})
	}
}

func TestFormatPosition(t *testing.T) {
	tests := []struct {
		name     string
		frame    int
		fps      float64
		unit     string
		expected string
	}{
		{"frames", 42, 30.0, Frames, "42"},
		{"seconds", 45, 30.0, Seconds, "1.50"},
		{"timecode", 90, 30.0, Timecode, "00:00:03.000"},
		{"unknown unit falls back to frames", 7, 30.0, "bogus", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatPosition(tt.frame, tt.fps, tt.unit)
			if result != tt.expected {
				t.Errorf("FormatPosition(%d, %f, %s) = %s, want %s", tt.frame, tt.fps, tt.unit, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid frames", Frames, true},
		{"valid seconds", Seconds, true},
		{"valid timecode", Timecode, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "Frames", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "frames, seconds, timecode"
	result := GetValidUnitsString()
	if result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}
