package media

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Encoder streams raw RGB24 frames into ffmpeg, producing an H.264 MP4.
type Encoder struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  *strings.Builder
	width   int
	height  int
	written int
	path    string
	closed  bool
	waitErr error
}

// NewEncoder starts an ffmpeg process encoding to outPath. Frames must
// match the given dimensions and arrive in display order.
func NewEncoder(ctx context.Context, outPath string, width, height int, fps float64) (*Encoder, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%g", fps),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		outPath,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encoder for %s: %w", outPath, err)
	}

	return &Encoder{
		cmd:    cmd,
		stdin:  stdin,
		stderr: &stderr,
		width:  width,
		height: height,
		path:   outPath,
	}, nil
}

// WriteFrame appends one frame to the output video.
func (e *Encoder) WriteFrame(f *Frame) error {
	if f.Width != e.width || f.Height != e.height {
		return fmt.Errorf("frame %d is %dx%d, encoder expects %dx%d",
			f.Index, f.Width, f.Height, e.width, e.height)
	}
	if _, err := e.stdin.Write(f.Pix); err != nil {
		// A write error means ffmpeg died; reap it before touching the
		// stderr builder, which exec's copier goroutine owns until Wait
		// returns.
		e.reap()
		if msg := strings.TrimSpace(e.stderr.String()); msg != "" {
			return fmt.Errorf("encode frame %d: %w: %s", f.Index, err, msg)
		}
		return fmt.Errorf("encode frame %d: %w", f.Index, err)
	}
	e.written++
	return nil
}

// FramesWritten returns how many frames have been encoded so far.
func (e *Encoder) FramesWritten() int { return e.written }

// reap closes ffmpeg's stdin and waits for it to exit, at most once. Only
// after Wait returns is the stderr builder safe to read.
func (e *Encoder) reap() error {
	if !e.closed {
		e.closed = true
		e.stdin.Close()
		e.waitErr = e.cmd.Wait()
	}
	return e.waitErr
}

// Close flushes the stream and waits for ffmpeg to finalise the file.
func (e *Encoder) Close() error {
	first := !e.closed
	if err := e.reap(); err != nil && first {
		if msg := strings.TrimSpace(e.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg encoder for %s: %w: %s", e.path, err, msg)
		}
		return fmt.Errorf("ffmpeg encoder for %s: %w", e.path, err)
	}
	return nil
}
