package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	assert.InDelta(t, 0.3, cfg.GetIoUThreshold(), 1e-12)
	assert.Equal(t, 3, cfg.GetMinHits())
	assert.Equal(t, 10, cfg.GetMaxAge())
	assert.Equal(t, 256, cfg.GetMaxTracks())
	assert.Equal(t, "greedy", cfg.GetMatcher())
	assert.InDelta(t, 0.6, cfg.GetVelocitySmoothingAlpha(), 1e-12)
	assert.True(t, cfg.GetCoastUnmatched())
	assert.Equal(t, 1, cfg.GetDetectionSkipFrames())
	assert.True(t, cfg.GetEventLogging())
	assert.InDelta(t, 0.0, cfg.GetMinScore(), 1e-12)
}

func TestLoadTuningConfig(t *testing.T) {
	t.Run("partial config keeps defaults", func(t *testing.T) {
		path := writeTempConfig(t, `{"min_hits": 5, "matcher": "hungarian"}`)
		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.GetMinHits())
		assert.Equal(t, "hungarian", cfg.GetMatcher())
		assert.Equal(t, 10, cfg.GetMaxAge(), "unset field falls back to default")
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, ".json extension")
	})

	t.Run("rejects missing file", func(t *testing.T) {
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		path := writeTempConfig(t, `{"min_hits": `)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "parse")
	})

	t.Run("rejects out-of-range values", func(t *testing.T) {
		path := writeTempConfig(t, `{"iou_threshold": 1.5}`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "iou_threshold")
	})
}

func TestValidate(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }
	s := func(v string) *string { return &v }

	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr string
	}{
		{"empty is valid", TuningConfig{}, ""},
		{"iou zero", TuningConfig{IoUThreshold: f(0)}, "iou_threshold"},
		{"iou one", TuningConfig{IoUThreshold: f(1)}, "iou_threshold"},
		{"min_hits zero", TuningConfig{MinHits: i(0)}, "min_hits"},
		{"max_age negative", TuningConfig{MaxAge: i(-1)}, "max_age"},
		{"max_tracks zero", TuningConfig{MaxTracks: i(0)}, "max_tracks"},
		{"unknown matcher", TuningConfig{Matcher: s("bipartite")}, "matcher"},
		{"alpha above one", TuningConfig{VelocitySmoothingAlpha: f(1.1)}, "velocity_smoothing_alpha"},
		{"skip zero", TuningConfig{DetectionSkipFrames: i(0)}, "detection_skip_frames"},
		{"min_score above one", TuningConfig{MinScore: f(2)}, "min_score"},
		{"all valid", TuningConfig{IoUThreshold: f(0.5), MinHits: i(1), Matcher: s("hungarian")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }

	base := EmptyTuningConfig()
	base.MinHits = i(2)
	base.IoUThreshold = f(0.4)

	base.Merge(&TuningConfig{MinHits: i(5)})
	assert.Equal(t, 5, base.GetMinHits(), "set field overlaid")
	assert.InDelta(t, 0.4, base.GetIoUThreshold(), 1e-12, "unset field untouched")

	base.Merge(nil) // must not panic
	assert.Equal(t, 5, base.GetMinHits())
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	require.NoError(t, cfg.Validate())

	// The defaults file must agree with the compiled-in fallbacks.
	assert.InDelta(t, 0.3, cfg.GetIoUThreshold(), 1e-12)
	assert.Equal(t, 3, cfg.GetMinHits())
	assert.Equal(t, 10, cfg.GetMaxAge())
	assert.Equal(t, "greedy", cfg.GetMatcher())
}
