package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Decoder streams decoded frames from ffmpeg as raw RGB24 over a pipe.
type Decoder struct {
	info    VideoInfo
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	reader  *bufio.Reader
	stderr  *strings.Builder
	nextIdx int
	waited  bool
	waitErr error
}

// NewDecoder starts an ffmpeg process decoding the video described by info.
// Close must be called to reap the process.
func NewDecoder(ctx context.Context, info VideoInfo) (*Decoder, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", info.Path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg decoder for %s: %w", info.Path, err)
	}

	return &Decoder{
		info:   info,
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, ByteSize(info.Width, info.Height)),
		stderr: &stderr,
	}, nil
}

// ReadFrame returns the next decoded frame, or io.EOF after the last one.
func (d *Decoder) ReadFrame() (*Frame, error) {
	frame := NewFrame(d.nextIdx, d.info.Width, d.info.Height)
	if _, err := io.ReadFull(d.reader, frame.Pix); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		// A short read mid-frame means ffmpeg died or the file is
		// truncated; reap it, then surface its stderr. The builder is not
		// safe to read until Wait returns.
		if err == io.ErrUnexpectedEOF {
			d.reap()
			if msg := strings.TrimSpace(d.stderr.String()); msg != "" {
				return nil, fmt.Errorf("decode frame %d: truncated stream: %s", d.nextIdx, msg)
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode frame %d: %w", d.nextIdx, err)
	}
	frame.Seconds = float64(frame.Index) / d.info.FPS
	d.nextIdx++
	return frame, nil
}

// FramesRead returns how many frames have been decoded so far.
func (d *Decoder) FramesRead() int { return d.nextIdx }

// reap closes the output pipe and waits for ffmpeg to exit, at most once.
func (d *Decoder) reap() error {
	if !d.waited {
		d.waited = true
		d.stdout.Close()
		d.waitErr = d.cmd.Wait()
	}
	return d.waitErr
}

// Close stops the decoder and reaps the ffmpeg process.
func (d *Decoder) Close() error {
	err := d.reap()
	// Wait fails when we close stdout before EOF (early stop); that is
	// expected and not an error for the caller.
	if err != nil && d.nextIdx == 0 {
		if msg := strings.TrimSpace(d.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg decoder: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg decoder: %w", err)
	}
	return nil
}
