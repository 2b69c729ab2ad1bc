package monitor

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-data/facetrack/internal/track"
)

func newTestCharts(t *testing.T) (*Charts, *http.ServeMux) {
	t.Helper()
	mgr, err := track.NewManager(track.DefaultManagerConfig())
	require.NoError(t, err)
	mgr.Update([]track.Detection{
		{Box: track.Box{X: 100, Y: 100, W: 80, H: 80}, Score: 0.9},
		{Box: track.Box{X: 500, Y: 300, W: 60, H: 60}, Score: 0.8},
	}, 0)

	c := &Charts{Manager: mgr, FrameWidth: 1280, FrameHeight: 720}
	mux := http.NewServeMux()
	c.RegisterRoutes(mux)
	return c, mux
}

func TestTrackScatter(t *testing.T) {
	_, mux := newTestCharts(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/charts/tracks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
	assert.Contains(t, rec.Body.String(), "Live Face Tracks")
}

func TestSpeedBars(t *testing.T) {
	_, mux := newTestCharts(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/charts/speeds", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Track Speeds")
}

func TestChartsEmptyManager(t *testing.T) {
	mgr, err := track.NewManager(track.DefaultManagerConfig())
	require.NoError(t, err)
	c := &Charts{Manager: mgr}
	mux := http.NewServeMux()
	c.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/charts/tracks", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "empty track set still renders")
}
