// Package chart renders metric series for the terminal and to image files.
// Three renderers are available:
//
//   - Plot: multi-line ASCII chart with labeled axes
//   - Bar:  horizontal bar chart, one bar per sample, for short windows
//   - PNG:  line chart image via go-chart, in the light or dark theme
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ugagro/greenwatch/internal/metric"
	"github.com/ugagro/greenwatch/internal/model"
)

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars keeps only the most recent MaxBars samples. 0 means no limit.
	MaxBars int
}

// Bar renders a horizontal bar chart of samples to w, one bar per sample.
//
//	Температура (°C)  14:00 – 16:00
//	14:00  21.5  ████████████
//	15:00  24.1  ████████████████████
func Bar(w io.Writer, title string, samples []model.Sample, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}
	if len(samples) < 1 {
		return fmt.Errorf("chart bar: no samples to render")
	}
	if opts.MaxBars > 0 && len(samples) > opts.MaxBars {
		samples = samples[len(samples)-opts.MaxBars:]
	}

	minVal, maxVal := bounds(samples)
	layout := timeLayout(samples)
	dateWidth := len(samples[0].Timestamp.Format(layout))

	valWidth := 0
	for _, s := range samples {
		if l := len(formatFloat(s.Value)); l > valWidth {
			valWidth = l
		}
	}

	barAreaWidth := totalWidth - dateWidth - valWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}

	valRange := maxVal - minVal
	if valRange == 0 {
		valRange = 1
	}

	hasNeg := minVal < 0
	var zeroPos int
	if hasNeg {
		zeroPos = int(math.Round((-minVal / valRange) * float64(barAreaWidth-1)))
	}

	fmt.Fprintf(w, "%s  %s – %s\n", title,
		samples[0].Timestamp.Format(layout),
		samples[len(samples)-1].Timestamp.Format(layout))

	for _, s := range samples {
		var bar string
		if hasNeg {
			bar = buildBiBar(s.Value, minVal, maxVal, barAreaWidth, zeroPos)
		} else {
			barLen := int(math.Round((s.Value - minVal) / valRange * float64(barAreaWidth)))
			if barLen < 1 {
				barLen = 1
			}
			if barLen > barAreaWidth {
				barLen = barAreaWidth
			}
			bar = strings.Repeat("█", barLen)
		}
		fmt.Fprintf(w, "%-*s  %*s  %s\n",
			dateWidth, s.Timestamp.Format(layout),
			valWidth, formatFloat(s.Value),
			bar,
		)
	}
	return nil
}

// buildBiBar renders a bar that may extend left (negative) or right (positive)
// from a zero baseline at zeroPos within a field of width barAreaWidth.
func buildBiBar(val, minVal, maxVal float64, barAreaWidth, zeroPos int) string {
	valRange := maxVal - minVal
	buf := []rune(strings.Repeat(" ", barAreaWidth))

	if zeroPos >= 0 && zeroPos < barAreaWidth {
		buf[zeroPos] = '│'
	}

	if val >= 0 {
		end := zeroPos + int(math.Round(val/valRange*float64(barAreaWidth-1)))
		for i := zeroPos + 1; i <= end && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	} else {
		start := zeroPos - int(math.Round((-val)/valRange*float64(barAreaWidth-1)))
		if start < 0 {
			start = 0
		}
		for i := start; i < zeroPos && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	}
	return string(buf)
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart (including Y-axis label).
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of data rows in the chart body. If 0, defaults to 12.
	Height int
	// Title overrides the default title. Empty uses the metric ID.
	Title string
}

// Plot renders a multi-line ASCII chart of samples to w.
func Plot(w io.Writer, id model.MetricID, samples []model.Sample, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}
	title := opts.Title
	if title == "" {
		title = string(id)
	}
	if len(samples) < 2 {
		return fmt.Errorf("chart plot: need at least 2 samples (got %d)", len(samples))
	}

	minVal, maxVal := bounds(samples)

	ticks := yTicks(minVal, maxVal, height)
	yLabelWidth := 0
	for _, t := range ticks {
		if l := len(formatFloat(t)); l > yLabelWidth {
			yLabelWidth = l
		}
	}
	yAxisWidth := yLabelWidth + 2

	plotWidth := width - yAxisWidth
	if plotWidth < 10 {
		plotWidth = 10
	}

	cols := sampleCols(samples, plotWidth)
	grid := buildGrid(cols, minVal, maxVal, height)

	layout := timeLayout(samples)
	fmt.Fprintf(w, "%s  (%s to %s)\n", title,
		samples[0].Timestamp.Format(layout),
		samples[len(samples)-1].Timestamp.Format(layout))

	for row := 0; row < height; row++ {
		label := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		axisCh := "┤"
		if label != "" && math.Abs(minVal) < 1e-9 && row == height-1 {
			axisCh = "┼"
		} else if label == "" {
			axisCh = " "
		}
		fmt.Fprintf(w, "%*s%s%s\n", yLabelWidth, label, axisCh, string(grid[row]))
	}

	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", yLabelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", yLabelWidth), xAxisLabels(samples, plotWidth, layout))
	return nil
}

// ─── Grid building ────────────────────────────────────────────────────────────

// sampleCols reduces samples to exactly n columns. Each column holds the
// average of its bucket, or NaN if the bucket is empty.
func sampleCols(samples []model.Sample, n int) []float64 {
	total := len(samples)
	cols := make([]float64, n)
	for col := 0; col < n; col++ {
		lo := col * total / n
		hi := (col+1)*total/n - 1
		if hi >= total {
			hi = total - 1
		}
		sum, count := 0.0, 0
		for i := lo; i <= hi; i++ {
			sum += samples[i].Value
			count++
		}
		if count == 0 {
			cols[col] = math.NaN()
		} else {
			cols[col] = sum / float64(count)
		}
	}
	return cols
}

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

// buildGrid renders columns into a height×width rune grid using
// box-drawing characters to connect adjacent points.
func buildGrid(cols []float64, minVal, maxVal float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	rowOf := make([]int, len(cols))
	for col, v := range cols {
		if math.IsNaN(v) {
			rowOf[col] = -1
			continue
		}
		r := int(math.Round(rowForValue(v, minVal, maxVal, height)))
		if r < 0 {
			r = 0
		}
		if r >= height {
			r = height - 1
		}
		rowOf[col] = r
	}

	for col := 0; col < len(cols); col++ {
		r := rowOf[col]
		if r < 0 {
			continue
		}
		prevRow := -2
		if col > 0 {
			prevRow = rowOf[col-1]
		}
		nextRow := -2
		if col < len(cols)-1 {
			nextRow = rowOf[col+1]
		}

		switch {
		case prevRow == -2 && nextRow == -2:
			grid[r][col] = '·'
		case (prevRow < 0 || prevRow == r) && (nextRow < 0 || nextRow == r):
			grid[r][col] = '─'
		case prevRow >= 0 && prevRow < r && nextRow >= 0 && nextRow < r,
			prevRow >= 0 && prevRow > r && nextRow >= 0 && nextRow > r:
			grid[r][col] = '─'
		case (prevRow < 0 || prevRow < r) && nextRow >= 0 && nextRow > r:
			grid[r][col] = '╭'
		case (prevRow < 0 || prevRow > r) && nextRow >= 0 && nextRow < r:
			grid[r][col] = '╰'
		case prevRow >= 0 && prevRow < r:
			grid[r][col] = '╮'
		case prevRow >= 0 && prevRow > r:
			grid[r][col] = '╯'
		default:
			grid[r][col] = '─'
		}

		if prevRow >= 0 && prevRow != r {
			lo, hi := r, prevRow
			if lo > hi {
				lo, hi = hi, lo
			}
			for fill := lo + 1; fill < hi; fill++ {
				if grid[fill][col] == ' ' {
					grid[fill][col] = '│'
				}
			}
		}
	}
	return grid
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// yTicks returns 3–4 evenly-spaced tick values for the Y axis.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	nTicks := 4
	if height <= 6 {
		nTicks = 3
	}
	ticks := make([]float64, nTicks)
	for i := 0; i < nTicks; i++ {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(nTicks-1)
	}
	return ticks
}

// xAxisLabels builds a padded string with start, middle and end time labels.
func xAxisLabels(samples []model.Sample, plotWidth int, layout string) string {
	if len(samples) == 0 {
		return ""
	}
	startLabel := samples[0].Timestamp.Format(layout)
	midLabel := samples[len(samples)/2].Timestamp.Format(layout)
	endLabel := samples[len(samples)-1].Timestamp.Format(layout)

	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range []rune(s) {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	writeAt(0, startLabel)
	writeAt(plotWidth/2-len(midLabel)/2, midLabel)
	writeAt(plotWidth-len(endLabel), endLabel)
	return string(buf)
}

// timeLayout picks a label layout from the span of samples: clock time
// within a day, day and time within a week, the date beyond that.
func timeLayout(samples []model.Sample) string {
	if len(samples) < 2 {
		return "02.01 15:04"
	}
	span := samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp)
	switch {
	case span <= 24*time.Hour:
		return "15:04"
	case span <= 7*24*time.Hour:
		return "02.01 15:04"
	default:
		return "02.01.2006"
	}
}

// ─── PNG ──────────────────────────────────────────────────────────────────────

// PNGOptions controls image rendering.
type PNGOptions struct {
	Width  int // pixels; 0 means 1024
	Height int // pixels; 0 means 480
	Dark   bool
	Title  string // empty uses the metric label
}

var (
	darkBackground = drawing.Color{R: 0x21, G: 0x25, B: 0x29, A: 0xff}
	darkForeground = drawing.Color{R: 0xe9, G: 0xec, B: 0xef, A: 0xff}
	darkGrid       = drawing.Color{R: 0x49, G: 0x50, B: 0x57, A: 0xff}
)

// PNG renders samples for def as a line chart image. The line takes the
// metric's colour with a translucent fill; the normal range is drawn as
// dashed guide lines.
func PNG(w io.Writer, def metric.Definition, samples []model.Sample, opts PNGOptions) error {
	if len(samples) == 0 {
		return fmt.Errorf("chart png: no samples to render")
	}
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 480
	}
	title := opts.Title
	if title == "" {
		title = def.Label
	}

	xs := make([]time.Time, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Timestamp
		ys[i] = s.Value
	}
	// go-chart needs two distinct X values to build a range.
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(time.Minute))
		ys = append(ys, ys[0])
	}

	r, g, b := def.RGB()
	line := drawing.Color{R: r, G: g, B: b, A: 0xff}

	layout := timeLayout(samples)
	ch := gochart.Chart{
		Title:  title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatterWithFormat(layout),
		},
		YAxis: gochart.YAxis{
			Name: def.Unit,
		},
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    def.Label,
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: line,
					StrokeWidth: 2,
					FillColor:   line.WithAlpha(0x33),
				},
			},
			guide("min", xs, def.Min),
			guide("max", xs, def.Max),
		},
	}
	if opts.Dark {
		applyDark(&ch)
	}
	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("chart png: %w", err)
	}
	return nil
}

// guide is a flat dashed line at v across the X range of xs.
func guide(name string, xs []time.Time, v float64) gochart.TimeSeries {
	return gochart.TimeSeries{
		Name:    name,
		XValues: []time.Time{xs[0], xs[len(xs)-1]},
		YValues: []float64{v, v},
		Style: gochart.Style{
			StrokeColor:     gochart.ColorAlternateGray,
			StrokeWidth:     1,
			StrokeDashArray: []float64{4, 4},
		},
	}
}

func applyDark(ch *gochart.Chart) {
	ch.Background.FillColor = darkBackground
	ch.Canvas.FillColor = darkBackground
	ch.TitleStyle.FontColor = darkForeground
	axis := gochart.Style{FontColor: darkForeground, StrokeColor: darkGrid}
	ch.XAxis.Style = axis
	ch.YAxis.Style = axis
	ch.YAxis.NameStyle = gochart.Style{FontColor: darkForeground}
}

// ─── Utilities ────────────────────────────────────────────────────────────────

func bounds(samples []model.Sample) (lo, hi float64) {
	lo, hi = samples[0].Value, samples[0].Value
	for _, s := range samples[1:] {
		if s.Value < lo {
			lo = s.Value
		}
		if s.Value > hi {
			hi = s.Value
		}
	}
	return lo, hi
}

// formatFloat formats a float for axis labels: no unnecessary trailing zeros,
// at least one decimal place, compact notation for large numbers.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "--"
	}
	abs := math.Abs(v)
	var s string
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e4:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	case abs >= 100:
		s = strconv.FormatFloat(v, 'f', 1, 64)
	case abs >= 1:
		s = strconv.FormatFloat(v, 'f', 2, 64)
	default:
		s = strconv.FormatFloat(v, 'f', 4, 64)
	}
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
