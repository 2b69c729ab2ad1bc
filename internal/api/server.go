// Package api exposes the tracking service over HTTP: live track and
// metric queries, stored event history, and runtime tuning.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sightline-data/facetrack/internal/config"
	"github.com/sightline-data/facetrack/internal/httputil"
	"github.com/sightline-data/facetrack/internal/live"
	"github.com/sightline-data/facetrack/internal/monitoring"
	"github.com/sightline-data/facetrack/internal/storage/sqlite"
	"github.com/sightline-data/facetrack/internal/track"
)

// Server holds the handlers' shared dependencies. Store, Hub and RunID
// are optional: endpoints needing an absent dependency answer 404.
type Server struct {
	Manager *track.Manager
	Store   *sqlite.Store
	Hub     *live.Hub

	// RunID returns the current run's ID for event queries that do not
	// name one. May be nil when no run is active.
	RunID func() string
}

// RegisterRoutes registers all API routes on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/tracks", s.handleTracks)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/visitors", s.handleVisitors)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.Hub != nil {
		mux.Handle("/live", s.Hub)
	}
}

// handleTracks handles GET /api/tracks: snapshots of all live tracks.
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	views := s.Manager.ActiveTracks()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"count":  len(views),
		"tracks": views,
	})
}

// handleMetrics handles GET /api/metrics: aggregate tracker metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.Manager.Metrics())
}

// handleParams handles GET/POST /api/params.
//
// GET returns the live tracker configuration. POST accepts a partial
// tuning document; set fields are validated and applied hot, unset
// fields keep their current values.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.Manager.Config())
	case http.MethodPost:
		s.handleSetParams(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleSetParams(w http.ResponseWriter, r *http.Request) {
	var patch config.TuningConfig
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if err := patch.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	err := s.Manager.UpdateConfig(func(cfg *track.ManagerConfig) {
		if patch.IoUThreshold != nil {
			cfg.IoUThreshold = *patch.IoUThreshold
		}
		if patch.MinHits != nil {
			cfg.MinHits = *patch.MinHits
		}
		if patch.MaxAge != nil {
			cfg.MaxAge = *patch.MaxAge
		}
		if patch.MaxTracks != nil {
			cfg.MaxTracks = *patch.MaxTracks
		}
		if patch.Matcher != nil {
			cfg.Matcher = track.MatcherKind(*patch.Matcher)
		}
		if patch.VelocitySmoothingAlpha != nil {
			cfg.VelocitySmoothingAlpha = *patch.VelocitySmoothingAlpha
		}
		if patch.CoastUnmatched != nil {
			cfg.CoastUnmatched = *patch.CoastUnmatched
		}
	})
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	monitoring.Logf("api: tuning updated: %+v", s.Manager.Config())
	httputil.WriteJSONOK(w, s.Manager.Config())
}

// handleEvents handles GET /api/events?run=<id>&limit=<n>. Without an
// explicit run the current run is used.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.Store == nil {
		httputil.NotFound(w, "event storage not enabled")
		return
	}
	runID, ok := s.resolveRun(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := s.Store.ListEvents(runID, limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"run_id": runID,
		"count":  len(events),
		"events": events,
	})
}

// handleVisitors handles GET /api/visitors?run=<id>: the number of
// distinct confirmed tracks in the run.
func (s *Server) handleVisitors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.Store == nil {
		httputil.NotFound(w, "event storage not enabled")
		return
	}
	runID, ok := s.resolveRun(w, r)
	if !ok {
		return
	}

	n, err := s.Store.VisitorCount(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"run_id":   runID,
		"visitors": n,
	})
}

func (s *Server) resolveRun(w http.ResponseWriter, r *http.Request) (string, bool) {
	runID := r.URL.Query().Get("run")
	if runID == "" && s.RunID != nil {
		runID = s.RunID()
	}
	if runID == "" {
		httputil.BadRequest(w, "no run in progress; pass ?run=<id>")
		return "", false
	}
	return runID, true
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}
