package media

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
}

// A dead ffmpeg must be reaped before its stderr is read, and Close after a
// failed write must not wait a second time.
func TestEncoderWriteFrameAfterFFmpegExit(t *testing.T) {
	requireFFmpeg(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// An output path inside a missing directory makes ffmpeg exit
	// immediately, before it consumes any input.
	outPath := filepath.Join(t.TempDir(), "missing", "out.mp4")
	enc, err := NewEncoder(ctx, outPath, 16, 16, 30)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	frame := NewFrame(0, 16, 16)
	var writeErr error
	for i := 0; i < 1000; i++ {
		frame.Index = i
		if writeErr = enc.WriteFrame(frame); writeErr != nil {
			break
		}
	}
	if writeErr == nil {
		t.Fatal("WriteFrame never failed against a dead encoder")
	}

	if err := enc.Close(); err != nil {
		t.Errorf("Close after failed write = %v, want nil", err)
	}
}

func TestDecoderRejectsGarbageInput(t *testing.T) {
	requireFFmpeg(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "garbage.mp4")
	if err := os.WriteFile(path, []byte("this is not a video"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	dec, err := NewDecoder(ctx, VideoInfo{Path: path, Width: 16, Height: 16, FPS: 30})
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}

	if _, err := dec.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame on garbage = %v, want io.EOF", err)
	}
	if err := dec.Close(); err == nil {
		t.Error("Close after zero decoded frames should surface the ffmpeg error")
	}
}
