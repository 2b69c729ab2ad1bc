// Package pipeline runs the frame loop: it pulls frames from a
// detection source, feeds them through the track manager, persists
// entry/exit events, and publishes live output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sightline-data/facetrack/internal/config"
	"github.com/sightline-data/facetrack/internal/detect"
	"github.com/sightline-data/facetrack/internal/live"
	"github.com/sightline-data/facetrack/internal/monitoring"
	"github.com/sightline-data/facetrack/internal/storage/sqlite"
	"github.com/sightline-data/facetrack/internal/track"
)

// Pipeline owns one tracking run over a detection source.
type Pipeline struct {
	Manager *track.Manager
	Source  detect.Source

	// SourceName labels the run in storage ("synthetic", log path, ...).
	SourceName string

	// Optional sinks.
	Store     *sqlite.Store
	Publisher *live.Publisher

	// Tuning (see config.TuningConfig).
	SkipFrames   int     // run association on every Nth source frame
	MinScore     float64 // drop detections scoring below this
	EventLogging bool

	mu     sync.RWMutex
	runID  string
	frames int64

	// Live views from the previous update, for transition detection.
	prev map[int64]track.TrackView
}

// New assembles a pipeline from a tuning config. Store and Publisher
// may be nil; the corresponding outputs are skipped.
func New(mgr *track.Manager, src detect.Source, sourceName string, tc *config.TuningConfig) *Pipeline {
	if tc == nil {
		tc = config.EmptyTuningConfig()
	}
	return &Pipeline{
		Manager:      mgr,
		Source:       src,
		SourceName:   sourceName,
		SkipFrames:   tc.GetDetectionSkipFrames(),
		MinScore:     tc.GetMinScore(),
		EventLogging: tc.GetEventLogging(),
		prev:         make(map[int64]track.TrackView),
	}
}

// RunID returns the storage run ID, or "" before Run starts (or when
// storage is disabled).
func (p *Pipeline) RunID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.runID
}

// Frames returns the number of frames processed so far.
func (p *Pipeline) Frames() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frames
}

// Run processes the source until EOF or ctx cancellation. On normal
// completion remaining live tracks are rolled up and the run is closed.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.prev == nil {
		p.prev = make(map[int64]track.TrackView)
	}
	if p.Store != nil {
		runID, err := p.Store.CreateRun(p.SourceName, p.Manager.Config())
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		p.mu.Lock()
		p.runID = runID
		p.mu.Unlock()
		monitoring.Logf("pipeline: run %s started (source %s)", runID, p.SourceName)
	}

	skip := p.SkipFrames
	if skip <= 0 {
		skip = 1
	}

	var seen int64
	for {
		frame, err := p.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}

		// Frames between detector runs are dropped wholesale; the
		// tracker never sees them, so they do not age tracks.
		if seen%int64(skip) != 0 {
			seen++
			continue
		}
		seen++

		p.step(frame)
	}

	return p.finish()
}

// step runs one frame through the manager and fans out the results.
func (p *Pipeline) step(frame detect.Frame) {
	dets := frame.Detections
	if p.MinScore > 0 {
		kept := dets[:0]
		for _, d := range dets {
			if d.Score >= p.MinScore {
				kept = append(kept, d)
			}
		}
		dets = kept
	}

	views, rejected := p.Manager.Update(dets, frame.Index)
	for _, err := range rejected {
		monitoring.Logf("pipeline: frame %d: rejected detection: %v", frame.Index, err)
	}

	p.recordTransitions(views, frame.Index)

	if p.Publisher != nil {
		metrics := p.Manager.Metrics()
		p.Publisher.Publish(frame.Index, views, &metrics)
	}

	p.mu.Lock()
	p.frames++
	p.prev = make(map[int64]track.TrackView, len(views))
	for _, v := range views {
		p.prev[v.ID] = v
	}
	p.mu.Unlock()
}

// recordTransitions emits an entry event when a track is first
// confirmed and an exit event (plus its rollup) when it leaves the
// live set.
func (p *Pipeline) recordTransitions(views []track.TrackView, frameIndex int64) {
	if p.Store == nil || !p.EventLogging {
		return
	}

	current := make(map[int64]track.TrackView, len(views))
	for _, v := range views {
		current[v.ID] = v
		old, existed := p.prev[v.ID]
		if v.State == track.TrackConfirmed && (!existed || old.State != track.TrackConfirmed) {
			if err := p.Store.RecordEvent(p.runID, v.ID, sqlite.EventEntry, frameIndex, v.Box); err != nil {
				monitoring.Logf("pipeline: record entry for track %d: %v", v.ID, err)
			}
		}
	}

	for id, old := range p.prev {
		if _, stillLive := current[id]; stillLive {
			continue
		}
		if err := p.Store.RecordEvent(p.runID, id, sqlite.EventExit, frameIndex, old.Box); err != nil {
			monitoring.Logf("pipeline: record exit for track %d: %v", id, err)
		}
		p.recordSummary(old, frameIndex)
	}
}

func (p *Pipeline) recordSummary(v track.TrackView, lastFrame int64) {
	err := p.Store.RecordSummary(sqlite.Summary{
		RunID:       p.runID,
		TrackID:     v.ID,
		FirstFrame:  v.FirstFrame,
		LastFrame:   v.LastFrame,
		AgeFrames:   lastFrame - v.FirstFrame + 1,
		Confirmed:   v.State == track.TrackConfirmed,
		AvgSpeedPxF: v.Speed(),
	})
	if err != nil {
		monitoring.Logf("pipeline: record summary for track %d: %v", v.ID, err)
	}
}

// finish rolls up tracks still live at end of input and closes the run.
func (p *Pipeline) finish() error {
	if p.Store == nil {
		return nil
	}
	if p.EventLogging {
		for _, v := range p.Manager.ActiveTracks() {
			p.recordSummary(v, v.LastFrame)
		}
	}
	if err := p.Store.FinishRun(p.runID, p.Frames()); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	monitoring.Logf("pipeline: run %s finished after %d frames", p.runID, p.Frames())
	return nil
}
