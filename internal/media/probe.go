package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoInfo describes one input video as reported by ffprobe.
type VideoInfo struct {
	Path       string  `json:"path"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"` // 0 when the container doesn't carry it
	Duration   float64 `json:"duration_sec"`
}

// ffprobe's -of json shape for the fields we request.
type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe against path and returns the video stream metadata.
func Probe(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames,duration",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return VideoInfo{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	info, err := parseProbeOutput(out)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	info.Path = path
	return info, nil
}

func parseProbeOutput(data []byte) (VideoInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("parse probe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("no video stream found")
	}
	s := probe.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("invalid dimensions %dx%d", s.Width, s.Height)
	}

	fps, err := parseRational(s.RFrameRate)
	if err != nil || fps <= 0 {
		fps, err = parseRational(s.AvgFrameRate)
		if err != nil || fps <= 0 {
			return VideoInfo{}, fmt.Errorf("no usable frame rate (r=%q avg=%q)", s.RFrameRate, s.AvgFrameRate)
		}
	}

	info := VideoInfo{Width: s.Width, Height: s.Height, FPS: fps}

	if s.NbFrames != "" {
		if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
			info.FrameCount = n
		}
	}

	durStr := s.Duration
	if durStr == "" {
		durStr = probe.Format.Duration
	}
	if durStr != "" {
		if d, err := strconv.ParseFloat(durStr, 64); err == nil && d > 0 {
			info.Duration = d
		}
	}

	// Streams without nb_frames (e.g. fragmented mp4) get an estimate from
	// duration so progress percentages still work.
	if info.FrameCount == 0 && info.Duration > 0 {
		info.FrameCount = int(info.Duration * fps)
	}

	return info, nil
}

// parseRational parses ffprobe rationals like "30000/1001" or "25/1".
func parseRational(s string) (float64, error) {
	if s == "" || s == "0/0" {
		return 0, fmt.Errorf("empty rational")
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		return strconv.ParseFloat(s, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rational %q: %w", s, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("parse rational %q: bad denominator", s)
	}
	return n / d, nil
}
