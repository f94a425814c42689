// Package hydrograph renders a gage's recent series as a fixed-size PNG.
package hydrograph

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// topBuffer leaves 5% headroom above the series maximum.
const topBuffer = 1.05

// Image dimensions match the dashboard's fixed slot.
const (
	imageWidth  = 576
	imageHeight = 384
)

// Renderer plots hydrographs.
type Renderer struct {
	logger *slog.Logger
}

// New creates a Renderer.
func New(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// Render writes a PNG of the series' last windowDays to path. Points outside
// the window (measured from the newest timestamp) and unknown values are
// dropped; one corrupt data point must not prevent plotting the rest. With
// fewer than two plottable points it logs a warning and writes nothing,
// leaving any previous image in place.
func (r *Renderer) Render(g domain.Gage, s domain.Series, windowDays int, path string) error {
	xs, ys := windowed(s, windowDays)
	if len(xs) < 2 {
		r.logger.Warn("no data to plot", "gage", g.ID, "points", len(xs))
		return nil
	}

	maxY := ys[0]
	for _, y := range ys {
		if y > maxY {
			maxY = y
		}
	}

	graph := chart.Chart{
		Width:  imageWidth,
		Height: imageHeight,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 02"),
			GridMajorStyle: chart.Style{StrokeColor: chart.ColorAlternateGray, StrokeWidth: 1.0},
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY * topBuffer},
			GridMajorStyle: chart.Style{StrokeColor: chart.ColorAlternateGray, StrokeWidth: 1.0},
		},
		Series: []chart.Series{
			chart.TimeSeries{XValues: xs, YValues: ys},
		},
	}

	// Render to memory first so a failure can never leave a truncated image
	// behind for the dashboard.
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render hydrograph for %s: %w", g.ID, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write hydrograph for %s: %w", g.ID, err)
	}
	return nil
}

// windowed filters the series to known readings within windowDays of the
// newest timestamp.
func windowed(s domain.Series, windowDays int) ([]time.Time, []float64) {
	if len(s) == 0 {
		return nil, nil
	}

	newest := s[len(s)-1].Timestamp
	window := time.Duration(windowDays) * 24 * time.Hour

	var xs []time.Time
	var ys []float64
	for _, r := range s {
		if !r.Known || newest.Sub(r.Timestamp) > window {
			continue
		}
		xs = append(xs, r.Timestamp)
		ys = append(ys, r.Value)
	}
	return xs, ys
}
