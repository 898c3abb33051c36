package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dkalashnik/telegram-session-log/pkg/stats"
)

var ErrNoData = errors.New("chart: series is empty")

const (
	width         = 1200
	height        = 600
	maxDenseTicks = 10
	targetTicks   = 8
	countFloor    = 10
	barOffset     = 0.15
)

var (
	colorCumulative = drawing.Color{R: 31, G: 119, B: 180, A: 255}
	colorErrors     = drawing.Color{R: 214, G: 39, B: 40, A: 200}
	colorCallMucks  = drawing.Color{R: 255, G: 127, B: 14, A: 200}
)

// Renderer draws session series as PNG charts.
type Renderer struct {
	dir  string
	unit string
}

func NewRenderer(dir, unit string) (*Renderer, error) {
	if dir == "" {
		return nil, fmt.Errorf("chart: output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chart: create %s: %w", dir, err)
	}
	return &Renderer{dir: dir, unit: unit}, nil
}

// WriteFile renders s into stats_<userID>.png under the renderer's directory and returns its path.
func (r *Renderer) WriteFile(userID int64, title string, s stats.Series) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, title, s); err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, fmt.Sprintf("stats_%d.png", userID))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("chart: write %s: %w", path, err)
	}
	log.Printf("[chart] Wrote %s (%d points)", path, s.Len())
	return path, nil
}

// Render draws the cumulative result line on the left axis and per-session mistake and call-muck
// markers on the right axis.
func (r *Renderer) Render(w io.Writer, title string, s stats.Series) error {
	n := s.Len()
	if n == 0 {
		return ErrNoData
	}

	xs := make([]float64, n)
	xsErrors := make([]float64, n)
	xsMucks := make([]float64, n)
	errs := make([]float64, n)
	mucks := make([]float64, n)
	maxCount := 0
	for i := 0; i < n; i++ {
		xs[i] = float64(i)
		xsErrors[i] = float64(i) - barOffset
		xsMucks[i] = float64(i) + barOffset
		errs[i] = float64(s.Errors[i])
		mucks[i] = float64(s.CallMucks[i])
		maxCount = max(maxCount, s.Errors[i], s.CallMucks[i])
	}

	lo, hi := valueRange(s.Cumulative)
	cumulativeName := "Cumulative result"
	if r.unit != "" {
		cumulativeName = fmt.Sprintf("Cumulative result (%s)", r.unit)
	}

	graph := gochart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			Name:  "Date",
			Range: &gochart.ContinuousRange{Min: -0.5, Max: float64(n) - 0.5},
			Ticks: dateTicks(s.Dates),
			Style: gochart.Style{TextRotationDegrees: 45},
		},
		YAxis: gochart.YAxis{
			Name:  cumulativeName,
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
		},
		YAxisSecondary: gochart.YAxis{
			Name:  "Mistakes / Call mucks",
			Range: &gochart.ContinuousRange{Min: 0, Max: float64(max(maxCount+1, countFloor))},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    cumulativeName,
				XValues: xs,
				YValues: s.Cumulative,
				Style: gochart.Style{
					StrokeColor: colorCumulative,
					StrokeWidth: 2,
					DotColor:    colorCumulative,
					DotWidth:    4,
				},
			},
			gochart.ContinuousSeries{
				Name:    "Big mistakes",
				YAxis:   gochart.YAxisSecondary,
				XValues: xsErrors,
				YValues: errs,
				Style: gochart.Style{
					StrokeWidth: gochart.Disabled,
					DotColor:    colorErrors,
					DotWidth:    6,
				},
			},
			gochart.ContinuousSeries{
				Name:    "Call mucks",
				YAxis:   gochart.YAxisSecondary,
				XValues: xsMucks,
				YValues: mucks,
				Style: gochart.Style{
					StrokeWidth: gochart.Disabled,
					DotColor:    colorCallMucks,
					DotWidth:    6,
				},
			},
		},
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("chart: render: %w", err)
	}
	return nil
}

// dateTicks labels every session, or about eight evenly spaced ones when there are more than ten.
// go-chart derives the x range from the ticks, so unlabelled ticks at -0.5 and n-0.5 bracket the
// sessions; without them a single session yields a zero-width range.
func dateTicks(dates []string) []gochart.Tick {
	n := len(dates)
	step := 1
	if n > maxDenseTicks {
		step = max(1, n/targetTicks)
	}
	ticks := make([]gochart.Tick, 0, n/step+3)
	ticks = append(ticks, gochart.Tick{Value: -0.5})
	for i := 0; i < n; i += step {
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: dates[i]})
	}
	return append(ticks, gochart.Tick{Value: float64(n) - 0.5})
}

// valueRange pads the data range so flat or single-point series still get a usable axis.
func valueRange(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = math.Max(1, math.Abs(hi)*0.1)
	}
	return lo - pad, hi + pad
}
