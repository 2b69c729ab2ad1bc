// Package monitor renders debugging charts for the tracker state using
// go-echarts. These are unauthenticated debug-only endpoints for quick
// visual checks without a frontend.
package monitor

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sightline-data/facetrack/internal/httputil"
	"github.com/sightline-data/facetrack/internal/track"
)

// Charts serves debug chart endpoints over a live track manager.
type Charts struct {
	Manager *track.Manager

	// Frame dimensions for axis ranges.
	FrameWidth  float64
	FrameHeight float64
}

// RegisterRoutes registers the debug chart routes on the provided mux.
func (c *Charts) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/charts/tracks", c.handleTrackScatter)
	mux.HandleFunc("/debug/charts/speeds", c.handleSpeedBars)
}

// handleTrackScatter renders the current track positions as a scatter
// plot (HTML). Colour encodes the track's consecutive miss count so
// coasting tracks stand out.
func (c *Charts) handleTrackScatter(w http.ResponseWriter, r *http.Request) {
	views := c.Manager.ActiveTracks()

	data := make([]opts.ScatterData, 0, len(views))
	maxMisses := 1.0
	for _, v := range views {
		if float64(v.Misses) > maxMisses {
			maxMisses = float64(v.Misses)
		}
		data = append(data, opts.ScatterData{
			Value: []interface{}{v.Box.CenterX(), v.Box.CenterY(), v.Misses},
			Name:  fmt.Sprintf("track %d (%s)", v.ID, v.State),
		})
	}

	width, height := c.FrameWidth, c.FrameHeight
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Face Tracks", Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Live Face Tracks", Subtitle: fmt.Sprintf("tracks=%d", len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: width, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: height, Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxMisses),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#35b779", "#fde725", "#d73027"}},
		}),
	)
	scatter.AddSeries("tracks", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	renderChart(w, scatter)
}

// handleSpeedBars renders per-track speed as a bar chart (HTML).
func (c *Charts) handleSpeedBars(w http.ResponseWriter, r *http.Request) {
	views := c.Manager.ActiveTracks()

	labels := make([]string, 0, len(views))
	values := make([]opts.BarData, 0, len(views))
	for _, v := range views {
		labels = append(labels, fmt.Sprintf("%d", v.ID))
		values = append(values, opts.BarData{Value: v.Speed()})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Speeds", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Track Speeds", Subtitle: "pixels per frame"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "track ID"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "speed (px/frame)"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("speed", values)

	renderChart(w, bar)
}

type renderer interface {
	Render(w io.Writer) error
}

func renderChart(w http.ResponseWriter, chart renderer) {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
