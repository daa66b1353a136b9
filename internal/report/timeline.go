package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/units"
)

// WriteTimelinePNG renders the cumulative ritase/passing step lines over
// video time to a PNG at path.
func WriteTimelinePNG(fs fsutil.FileSystem, path string, s RunSummary) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Load cycles: %s", s.VideoName)
	p.X.Label.Text = "Video time (s)"
	p.Y.Label.Text = "Cumulative count"

	duration := units.FrameToSeconds(s.Info.FrameCount, s.Info.FPS)

	ritaseLine, err := plotter.NewLine(stepPoints(s.RitaseEvents, duration))
	if err != nil {
		return fmt.Errorf("timeline ritase line: %w", err)
	}
	ritaseLine.Color = color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	ritaseLine.Width = vg.Points(1.5)
	p.Add(ritaseLine)
	p.Legend.Add("ritase", ritaseLine)

	passingLine, err := plotter.NewLine(stepPoints(s.PassingEvents, duration))
	if err != nil {
		return fmt.Errorf("timeline passing line: %w", err)
	}
	passingLine.Color = color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}
	passingLine.Width = vg.Points(1.5)
	p.Add(passingLine)
	p.Legend.Add("passing", passingLine)

	p.Legend.Top = true
	p.Y.Min = 0

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("timeline renderer: %w", err)
	}
	w, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create timeline %s: %w", path, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("write timeline %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close timeline %s: %w", path, err)
	}
	return nil
}

// stepPoints builds a step trace: the count holds between events and jumps
// at each event time.
func stepPoints(events []count.Event, duration float64) plotter.XYs {
	pts := plotter.XYs{{X: 0, Y: 0}}
	for i, ev := range events {
		pts = append(pts,
			plotter.XY{X: ev.Seconds, Y: float64(i)},
			plotter.XY{X: ev.Seconds, Y: float64(i + 1)},
		)
	}
	end := duration
	if len(events) > 0 && events[len(events)-1].Seconds > end {
		end = events[len(events)-1].Seconds
	}
	pts = append(pts, plotter.XY{X: end, Y: float64(len(events))})
	return pts
}
