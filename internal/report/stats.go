package report

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/loadcycle.report/internal/count"
	"github.com/banshee-data/loadcycle.report/internal/media"
	"github.com/banshee-data/loadcycle.report/internal/units"
)

// RunSummary carries everything the report artifacts need about one
// completed run.
type RunSummary struct {
	VideoName   string
	Info        media.VideoInfo
	GeneratedAt time.Time
	Timezone    string // IANA name for display times; empty means UTC

	RitaseEvents  []count.Event
	PassingEvents []count.Event
	RitaseStats   count.Stats

	Tracking *TrackingSummary

	DetectConfidence  float64
	PassingConfidence float64
	RitaseConfidence  float64
}

// DisplayTime converts a stored UTC time into the summary's report timezone.
// Conversion failures fall back to UTC.
func (s RunSummary) DisplayTime(t time.Time) time.Time {
	converted, err := units.ConvertTime(t.UTC(), s.Timezone)
	if err != nil {
		return t.UTC()
	}
	return converted
}

// ClassStats aggregates one class's tracked detections across a run.
type ClassStats struct {
	Class         string
	Detections    int
	Tracks        int
	AvgConfidence float64
}

// confidence histogram bins: [0.50,0.55) … [0.95,1.00]; everything below
// 0.50 lands in the first bin (detections that low are already filtered).
const confidenceBins = 10

type classAccum struct {
	detections int
	tracks     map[string]bool
	confSum    float64
}

// TrackingSummary accumulates per-class statistics from tracking rows as
// they stream through the pipeline. It satisfies the pipeline's row sink so
// it can ride alongside the CSV writer.
type TrackingSummary struct {
	byClass  map[string]*classAccum
	rows     int
	confHist [confidenceBins]int
}

func NewTrackingSummary() *TrackingSummary {
	return &TrackingSummary{byClass: make(map[string]*classAccum)}
}

func (s *TrackingSummary) WriteRow(r TrackingRow) error {
	s.rows++
	acc := s.byClass[r.Class]
	if acc == nil {
		acc = &classAccum{tracks: make(map[string]bool)}
		s.byClass[r.Class] = acc
	}
	acc.detections++
	acc.tracks[r.TrackID] = true
	acc.confSum += float64(r.Confidence)

	bin := int((float64(r.Confidence) - 0.50) / 0.05)
	if bin < 0 {
		bin = 0
	}
	if bin >= confidenceBins {
		bin = confidenceBins - 1
	}
	s.confHist[bin]++
	return nil
}

// Rows returns the total row count seen.
func (s *TrackingSummary) Rows() int { return s.rows }

// Classes returns per-class statistics sorted by class name.
func (s *TrackingSummary) Classes() []ClassStats {
	out := make([]ClassStats, 0, len(s.byClass))
	for class, acc := range s.byClass {
		cs := ClassStats{
			Class:      class,
			Detections: acc.detections,
			Tracks:     len(acc.tracks),
		}
		if acc.detections > 0 {
			cs.AvgConfidence = acc.confSum / float64(acc.detections)
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}

// ConfidenceHistogram returns the bin counts; bin i covers
// [0.50+0.05*i, 0.55+0.05*i).
func (s *TrackingSummary) ConfidenceHistogram() [confidenceBins]int {
	return s.confHist
}

// ConfidenceBinLabel names histogram bin i.
func ConfidenceBinLabel(i int) string {
	lo := 0.50 + 0.05*float64(i)
	return fmt.Sprintf("%.2f-%.2f", lo, lo+0.05)
}

// Distribution summarises a sample of values.
type Distribution struct {
	Count  int
	Min    float64
	Mean   float64
	Median float64
	P90    float64
	Max    float64
	StdDev float64
}

// NewDistribution computes summary statistics over values. A nil or empty
// sample yields the zero Distribution.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	d := Distribution{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		d.StdDev = stat.StdDev(sorted, nil)
	}
	return d
}

// CycleDurations returns the seconds between consecutive ritase events: the
// observed haul-cycle cadence. Fewer than two events yields nil.
func CycleDurations(ritase []count.Event) []float64 {
	if len(ritase) < 2 {
		return nil
	}
	out := make([]float64, 0, len(ritase)-1)
	for i := 1; i < len(ritase); i++ {
		out = append(out, ritase[i].Seconds-ritase[i-1].Seconds)
	}
	return out
}

// EventConfidences extracts the confidence of each event as float64.
func EventConfidences(events []count.Event) []float64 {
	if len(events) == 0 {
		return nil
	}
	out := make([]float64, len(events))
	for i, ev := range events {
		out[i] = float64(ev.Confidence)
	}
	return out
}
