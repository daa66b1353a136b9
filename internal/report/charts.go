package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
	"github.com/banshee-data/loadcycle.report/internal/units"
)

// WriteChartsPage renders the per-run interactive charts HTML at path.
func WriteChartsPage(fs fsutil.FileSystem, path string, s RunSummary) error {
	w, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create charts page %s: %w", path, err)
	}
	if err := RenderCharts(w, s); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close charts page %s: %w", path, err)
	}
	return nil
}

// RenderCharts writes the charts HTML to w. Exposed separately so the API
// can serve the same page without touching disk.
func RenderCharts(w io.Writer, s RunSummary) error {
	page := components.NewPage()
	page.AddCharts(
		cumulativeCountsChart(s),
		classDetectionsChart(s),
		confidenceHistogramChart(s),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}

// cumulativeCountsChart plots running ritase/passing totals per minute of
// video time.
func cumulativeCountsChart(s RunSummary) *charts.Line {
	duration := units.FrameToSeconds(s.Info.FrameCount, s.Info.FPS)
	minutes := int(math.Ceil(duration/60)) + 1
	if minutes < 1 {
		minutes = 1
	}

	x := make([]string, minutes)
	ritase := make([]opts.LineData, minutes)
	passing := make([]opts.LineData, minutes)
	for m := 0; m < minutes; m++ {
		x[m] = fmt.Sprintf("%dm", m)
		ritase[m] = opts.LineData{Value: countThroughMinute(s.RitaseEvents, m)}
		passing[m] = opts.LineData{Value: countThroughMinute(s.PassingEvents, m)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Load Cycle Counts", Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cumulative counts", Subtitle: s.VideoName}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Video time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count"}),
	)
	line.SetXAxis(x).
		AddSeries("ritase", ritase).
		AddSeries("passing", passing)
	return line
}

func countThroughMinute(events []count.Event, minute int) int {
	limit := float64(minute+1) * 60
	n := 0
	for _, ev := range events {
		if ev.Seconds < limit {
			n++
		}
	}
	return n
}

// classDetectionsChart shows tracked detections per class.
func classDetectionsChart(s RunSummary) *charts.Bar {
	var x []string
	var y []opts.BarData
	if s.Tracking != nil {
		for _, cs := range s.Tracking.Classes() {
			x = append(x, cs.Class)
			y = append(y, opts.BarData{Value: cs.Detections})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tracked detections by class"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("detections", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// confidenceHistogramChart buckets tracked-detection confidences.
func confidenceHistogramChart(s RunSummary) *charts.Bar {
	var x []string
	var y []opts.BarData
	if s.Tracking != nil {
		hist := s.Tracking.ConfidenceHistogram()
		for i, n := range hist {
			x = append(x, ConfidenceBinLabel(i))
			y = append(y, opts.BarData{Value: n})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Detection confidence distribution"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("detections", y)
	return bar
}
