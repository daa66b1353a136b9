// Package media handles video I/O and frame annotation. Decoding and
// encoding shell out to ffmpeg with raw RGB24 frames over pipes; probing
// uses ffprobe's JSON output. The FileManager owns the data/input and
// data/output directory layout.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Frame is one decoded video frame in packed RGB24 layout (3 bytes per
// pixel, row-major, no padding).
type Frame struct {
	Index   int
	Seconds float64
	Width   int
	Height  int
	Pix     []byte
}

// NewFrame allocates a black frame of the given dimensions.
func NewFrame(index, width, height int) *Frame {
	return &Frame{
		Index:  index,
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*3),
	}
}

// ByteSize returns the expected Pix length for one frame at w×h.
func ByteSize(width, height int) int { return width * height * 3 }

// RGBA converts the frame to an *image.RGBA for drawing.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		src := y * f.Width * 3
		dst := y * img.Stride
		for x := 0; x < f.Width; x++ {
			img.Pix[dst+0] = f.Pix[src+0]
			img.Pix[dst+1] = f.Pix[src+1]
			img.Pix[dst+2] = f.Pix[src+2]
			img.Pix[dst+3] = 0xff
			src += 3
			dst += 4
		}
	}
	return img
}

// SetRGBA copies an *image.RGBA of matching dimensions back into the frame.
func (f *Frame) SetRGBA(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != f.Width || b.Dy() != f.Height {
		return fmt.Errorf("image is %dx%d, frame is %dx%d", b.Dx(), b.Dy(), f.Width, f.Height)
	}
	for y := 0; y < f.Height; y++ {
		src := y * img.Stride
		dst := y * f.Width * 3
		for x := 0; x < f.Width; x++ {
			f.Pix[dst+0] = img.Pix[src+0]
			f.Pix[dst+1] = img.Pix[src+1]
			f.Pix[dst+2] = img.Pix[src+2]
			src += 4
			dst += 3
		}
	}
	return nil
}

// EncodeJPEG returns the frame as JPEG bytes at the given quality, for
// handing frames to the detector service.
func (f *Frame) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.RGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame %d as JPEG: %w", f.Index, err)
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Index: f.Index, Seconds: f.Seconds, Width: f.Width, Height: f.Height, Pix: pix}
}
