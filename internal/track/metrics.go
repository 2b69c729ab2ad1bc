package track

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Metrics holds aggregate tracking quality metrics across the manager's
// lifetime. Used by the API, the monitor charts, and the algo-compare
// tool to evaluate parameter configurations.
type Metrics struct {
	// Live track counts at snapshot time.
	ActiveTracks    int `json:"active_tracks"`
	TentativeTracks int `json:"tentative_tracks"`
	ConfirmedTracks int `json:"confirmed_tracks"`

	// Totals since construction (or Reset).
	TracksCreated   int `json:"tracks_created"`
	TracksConfirmed int `json:"tracks_confirmed"`
	TracksRemoved   int `json:"tracks_removed"`

	// FragmentationRatio is the fraction of created tracks that never
	// confirmed, in [0, 1]. Lower is better: a high value means spurious
	// detections spawning one-frame tracks.
	FragmentationRatio float64 `json:"fragmentation_ratio"`

	// MeanRemovedAgeFrames is the mean final age of removed tracks.
	MeanRemovedAgeFrames float64 `json:"mean_removed_age_frames"`

	// Speed percentiles across live tracks, pixels per frame.
	SpeedP50 float64 `json:"speed_p50"`
	SpeedP85 float64 `json:"speed_p85"`
	SpeedP95 float64 `json:"speed_p95"`
}

// Metrics computes the aggregate metrics snapshot. Safe to call
// concurrently with Update.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Metrics{
		TracksCreated:   m.tracksCreated,
		TracksConfirmed: m.tracksConfirmed,
		TracksRemoved:   m.deadTracks,
	}

	speeds := make([]float64, 0, len(m.tracks))
	for _, tr := range m.tracks {
		out.ActiveTracks++
		switch tr.state {
		case TrackTentative:
			out.TentativeTracks++
		case TrackConfirmed:
			out.ConfirmedTracks++
		}
		speeds = append(speeds, hypot(tr.vx, tr.vy))
	}

	if m.tracksCreated > 0 {
		out.FragmentationRatio = 1 - float64(m.tracksConfirmed)/float64(m.tracksCreated)
		if out.FragmentationRatio < 0 {
			out.FragmentationRatio = 0
		}
	}
	if m.deadTracks > 0 {
		out.MeanRemovedAgeFrames = float64(m.deadAgeSum) / float64(m.deadTracks)
	}

	out.SpeedP50, out.SpeedP85, out.SpeedP95 = speedPercentiles(speeds)
	return out
}

// speedPercentiles returns the p50/p85/p95 quantiles of the given speed
// samples. Empty input yields zeros.
func speedPercentiles(speeds []float64) (p50, p85, p95 float64) {
	if len(speeds) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(speeds))
	copy(sorted, speeds)
	sort.Float64s(sorted)

	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p85 = stat.Quantile(0.85, stat.Empirical, sorted, nil)
	p95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return p50, p85, p95
}
