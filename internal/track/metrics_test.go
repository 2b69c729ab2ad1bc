package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsAndFragmentation(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func(c *ManagerConfig) {
		c.MinHits = 2
		c.MaxAge = 1
		c.CoastUnmatched = false
	})

	// Track 1: confirmed (two consecutive matches).
	m.Update([]Detection{det(0, 0, 20, 20)}, 1)
	m.Update([]Detection{det(1, 0, 20, 20)}, 2)

	// Track 2: spawned far away, then both miss on an empty frame and die.
	m.Update([]Detection{det(1, 0, 20, 20), det(500, 500, 20, 20)}, 3)
	m.Update(nil, 4)

	got := m.Metrics()
	assert.Equal(t, 0, got.ActiveTracks)
	assert.Equal(t, 2, got.TracksCreated)
	assert.Equal(t, 1, got.TracksConfirmed)
	assert.Equal(t, 2, got.TracksRemoved)
	assert.InDelta(t, 0.5, got.FragmentationRatio, 1e-9)
	// Track 1 lived frames 1-4 (age 4), track 2 frames 3-4 (age 2).
	assert.InDelta(t, 3.0, got.MeanRemovedAgeFrames, 1e-9)
}

func TestMetrics_LiveStateBreakdown(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, func(c *ManagerConfig) { c.MinHits = 2 })

	m.Update([]Detection{det(0, 0, 20, 20)}, 1)
	m.Update([]Detection{det(0, 0, 20, 20), det(500, 500, 20, 20)}, 2)

	got := m.Metrics()
	assert.Equal(t, 2, got.ActiveTracks)
	assert.Equal(t, 1, got.ConfirmedTracks)
	assert.Equal(t, 1, got.TentativeTracks)
}

func TestSpeedPercentiles(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		p50, p85, p95 := speedPercentiles(nil)
		assert.Zero(t, p50)
		assert.Zero(t, p85)
		assert.Zero(t, p95)
	})

	t.Run("ordered samples", func(t *testing.T) {
		t.Parallel()
		speeds := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		p50, p85, p95 := speedPercentiles(speeds)
		require.LessOrEqual(t, p50, p85)
		require.LessOrEqual(t, p85, p95)
		assert.InDelta(t, 5.0, p50, 1.0)
		assert.InDelta(t, 9.0, p85, 1.0)
		assert.InDelta(t, 10.0, p95, 1.0)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		t.Parallel()
		speeds := []float64{3, 1, 2}
		speedPercentiles(speeds)
		assert.Equal(t, []float64{3, 1, 2}, speeds)
	})
}
