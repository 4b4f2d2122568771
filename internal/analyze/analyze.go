// Package analyze computes statistical summaries, trends and chart
// downsampling over slices of Samples. All functions are pure; no I/O.
package analyze

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/threshold"
)

// ─── Summary ──────────────────────────────────────────────────────────────────

// Summary holds descriptive statistics for a filtered series.
type Summary struct {
	Metric    model.MetricID `json:"metric"`
	Label     string         `json:"label"`
	Unit      string         `json:"unit"`
	Count     int            `json:"count"`
	Mean      float64        `json:"mean"`
	Std       float64        `json:"std"`
	Min       float64        `json:"min"`
	P25       float64        `json:"p25"`
	Median    float64        `json:"median"`
	P75       float64        `json:"p75"`
	Max       float64        `json:"max"`
	First     float64        `json:"first"`
	Last      float64        `json:"last"`
	Change    float64        `json:"change"`     // Last - First
	ChangePct float64        `json:"change_pct"` // (Last-First)/|First| * 100
	FirstAt   time.Time      `json:"first_at"`
	LastAt    time.Time      `json:"last_at"`
	Warning   int            `json:"warning"`  // samples classified warning
	Critical  int            `json:"critical"` // samples classified critical
}

// Summarize computes descriptive statistics over samples for def, counting
// how many samples fell outside the normal band under policy p.
func Summarize(def metric.Definition, samples []model.Sample, p threshold.Policy) Summary {
	s := Summary{Metric: def.ID, Label: def.Label, Unit: def.Unit, Count: len(samples)}
	if len(samples) == 0 {
		s.Mean = math.NaN()
		s.Std = math.NaN()
		s.Min = math.NaN()
		s.Max = math.NaN()
		s.Median = math.NaN()
		s.P25 = math.NaN()
		s.P75 = math.NaN()
		s.First = math.NaN()
		s.Last = math.NaN()
		s.Change = math.NaN()
		s.ChangePct = math.NaN()
		return s
	}

	vals := make([]float64, len(samples))
	for i, smp := range samples {
		vals[i] = smp.Value
		switch threshold.ClassifyValue(def, smp.Value, p) {
		case model.StatusWarning:
			s.Warning++
		case model.StatusCritical:
			s.Critical++
		}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Mean = sumF(vals) / float64(len(vals))
	s.Std = stddevF(vals, s.Mean)
	s.Median = percentile(sorted, 50)
	s.P25 = percentile(sorted, 25)
	s.P75 = percentile(sorted, 75)

	s.First, s.FirstAt = samples[0].Value, samples[0].Timestamp
	last := samples[len(samples)-1]
	s.Last, s.LastAt = last.Value, last.Timestamp
	s.Change = s.Last - s.First
	if s.First != 0 {
		s.ChangePct = s.Change / math.Abs(s.First) * 100
	} else {
		s.ChangePct = math.NaN()
	}
	return s
}

// ─── Trend ────────────────────────────────────────────────────────────────────

// TrendMethod selects the regression algorithm.
type TrendMethod string

const (
	TrendLinear   TrendMethod = "linear"
	TrendTheilSen TrendMethod = "theil-sen"
)

// TrendResult holds the output of a trend analysis.
type TrendResult struct {
	Metric      model.MetricID `json:"metric"`
	Method      TrendMethod    `json:"method"`
	Slope       float64        `json:"slope"` // units per hour
	Intercept   float64        `json:"intercept"`
	R2          float64        `json:"r2"`
	Direction   string         `json:"direction"` // "up", "down", "flat"
	SlopePerDay float64        `json:"slope_per_day"`
}

// flatPerDay is the daily change below which a trend counts as flat.
const flatPerDay = 0.01

// Trend fits a trend line to samples. X values are hours since the first
// sample.
func Trend(id model.MetricID, samples []model.Sample, method TrendMethod) (TrendResult, error) {
	tr := TrendResult{Metric: id, Method: method}
	if len(samples) < 2 {
		return tr, fmt.Errorf("trend: need at least 2 samples, got %d", len(samples))
	}

	t0 := samples[0].Timestamp
	pts := make([]point, len(samples))
	for i, s := range samples {
		pts[i] = point{s.Timestamp.Sub(t0).Hours(), s.Value}
	}

	switch method {
	case TrendTheilSen:
		tr.Slope = theilSenSlope(pts)
		xMean := meanPts(pts, func(p point) float64 { return p.x })
		yMean := meanPts(pts, func(p point) float64 { return p.y })
		tr.Intercept = yMean - tr.Slope*xMean
	default:
		tr.Method = TrendLinear
		tr.Slope, tr.Intercept = olsRegress(pts)
	}

	tr.R2 = r2(pts, tr.Slope, tr.Intercept)
	tr.SlopePerDay = tr.Slope * 24

	switch {
	case tr.SlopePerDay > flatPerDay:
		tr.Direction = "up"
	case tr.SlopePerDay < -flatPerDay:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, nil
}

// ─── Downsampling ─────────────────────────────────────────────────────────────

// Downsample reduces samples to at most maxPoints by averaging consecutive
// buckets of equal size. Each bucket is stamped with its last sample's
// timestamp. maxPoints <= 0 or a short series returns samples unchanged.
func Downsample(samples []model.Sample, maxPoints int) []model.Sample {
	if maxPoints <= 0 || len(samples) <= maxPoints {
		return samples
	}
	size := int(math.Ceil(float64(len(samples)) / float64(maxPoints)))
	out := make([]model.Sample, 0, maxPoints)
	for i := 0; i < len(samples); i += size {
		end := i + size
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[i:end] {
			sum += s.Value
		}
		out = append(out, model.Sample{
			Timestamp: samples[end-1].Timestamp,
			Value:     sum / float64(end-i),
		})
	}
	return out
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func sumF(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func stddevF(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)-1))
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p / 100 * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

type point struct{ x, y float64 }

func olsRegress(pts []point) (slope, intercept float64) {
	n := float64(len(pts))
	var xSum, ySum, xySum, x2Sum float64
	for _, p := range pts {
		xSum += p.x
		ySum += p.y
		xySum += p.x * p.y
		x2Sum += p.x * p.x
	}
	denom := n*x2Sum - xSum*xSum
	if denom == 0 {
		return 0, ySum / n
	}
	slope = (n*xySum - xSum*ySum) / denom
	intercept = (ySum - slope*xSum) / n
	return
}

func theilSenSlope(pts []point) float64 {
	var slopes []float64
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			dx := pts[j].x - pts[i].x
			if dx == 0 {
				continue
			}
			slopes = append(slopes, (pts[j].y-pts[i].y)/dx)
		}
	}
	if len(slopes) == 0 {
		return 0
	}
	sort.Float64s(slopes)
	return percentile(slopes, 50)
}

func r2(pts []point, slope, intercept float64) float64 {
	var yMean float64
	for _, p := range pts {
		yMean += p.y
	}
	yMean /= float64(len(pts))

	var ssTot, ssRes float64
	for _, p := range pts {
		pred := slope*p.x + intercept
		ssTot += (p.y - yMean) * (p.y - yMean)
		ssRes += (p.y - pred) * (p.y - pred)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}

func meanPts(pts []point, f func(point) float64) float64 {
	var s float64
	for _, p := range pts {
		s += f(p)
	}
	return s / float64(len(pts))
}
