package media

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/units"
)

// HUD carries the running totals rendered in the frame corner.
type HUD struct {
	Ritase  int
	Passing int
}

// Per-class box colors. Unknown classes fall back to grey.
var classColors = map[int]color.RGBA{
	detect.ClassBucketDigging: {R: 255, G: 165, B: 0, A: 255},   // orange
	detect.ClassBucketDumping: {R: 255, G: 64, B: 64, A: 255},   // red
	detect.ClassTruckEmpty:    {R: 64, G: 160, B: 255, A: 255},  // light blue
	detect.ClassTruckFull:     {R: 0, G: 200, B: 80, A: 255},    // green
}

var fallbackColor = color.RGBA{R: 180, G: 180, B: 180, A: 255}

const boxBorderPx = 3

// Annotate draws detection boxes, labels, and the HUD totals onto the frame
// in place.
func Annotate(f *Frame, detections []detect.Detection, hud HUD) {
	img := f.RGBA()

	for _, d := range detections {
		col, ok := classColors[d.ClassID]
		if !ok {
			col = fallbackColor
		}
		drawBox(img, d.Box, col)
		label := fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
		drawLabel(img, int(d.Box.X1), int(d.Box.Y1)-4, label, col)
	}

	hudText := fmt.Sprintf("ritase: %d  passing: %d  t: %s",
		hud.Ritase, hud.Passing, units.FormatTimecode(f.Seconds))
	drawLabel(img, 8, 18, hudText, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	// Dimensions match, so SetRGBA cannot fail.
	_ = f.SetRGBA(img)
}

// drawBox draws a rectangle outline clamped to the image bounds.
func drawBox(img *image.RGBA, box detect.Box, col color.RGBA) {
	x1, y1 := int(box.X1), int(box.Y1)
	x2, y2 := int(box.X2), int(box.Y2)

	for t := 0; t < boxBorderPx; t++ {
		drawHLine(img, x1, x2, y1+t, col)
		drawHLine(img, x1, x2, y2-t, col)
		drawVLine(img, x1+t, y1, y2, col)
		drawVLine(img, x2-t, y1, y2, col)
	}
}

func drawHLine(img *image.RGBA, x1, x2, y int, col color.RGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x1, b.Min.X); x <= min(x2, b.Max.X-1); x++ {
		img.SetRGBA(x, y, col)
	}
}

func drawVLine(img *image.RGBA, x, y1, y2 int, col color.RGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y1, b.Min.Y); y <= min(y2, b.Max.Y-1); y++ {
		img.SetRGBA(x, y, col)
	}
}

// drawLabel renders text with a dark backing strip for legibility.
func drawLabel(img *image.RGBA, x, y int, text string, col color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	if y-height < 0 {
		y = height
	}
	if x < 0 {
		x = 0
	}

	// Backing strip.
	bg := color.RGBA{A: 200}
	for yy := y - height; yy <= y+2; yy++ {
		for xx := x - 2; xx <= x+width+2; xx++ {
			if (image.Point{X: xx, Y: yy}).In(img.Bounds()) {
				img.SetRGBA(xx, yy, bg)
			}
		}
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
