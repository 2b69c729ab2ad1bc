package live

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sightline-data/facetrack/internal/monitoring"
	"github.com/sightline-data/facetrack/internal/track"
)

// FrameBundle is one frame of tracking output as sent to clients.
type FrameBundle struct {
	FrameIndex     int64             `json:"frame"`
	TimestampNanos int64             `json:"ts_ns"`
	Tracks         []track.TrackView `json:"tracks"`
	Metrics        *track.Metrics    `json:"metrics,omitempty"`
}

// Publisher serialises frame bundles and broadcasts them through a Hub.
// Publish never blocks the frame loop: when no client can accept the
// frame it is counted as dropped and skipped.
type Publisher struct {
	hub *Hub

	// Metrics ride along every MetricsInterval-th frame rather than all
	// of them; the full struct is an order of magnitude bigger than the
	// track list.
	MetricsInterval int64

	frameCount    atomic.Uint64
	droppedFrames atomic.Uint64

	lastStatsAt     time.Time
	lastStatsFrames uint64
}

func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{
		hub:             hub,
		MetricsInterval: 30,
		lastStatsAt:     time.Now(),
	}
}

// Publish broadcasts one frame of tracker output.
func (p *Publisher) Publish(frameIndex int64, views []track.TrackView, metrics *track.Metrics) {
	bundle := FrameBundle{
		FrameIndex:     frameIndex,
		TimestampNanos: time.Now().UnixNano(),
		Tracks:         views,
	}
	if p.MetricsInterval > 0 && frameIndex%p.MetricsInterval == 0 {
		bundle.Metrics = metrics
	}

	msg, err := json.Marshal(bundle)
	if err != nil {
		monitoring.Logf("live: marshal frame %d: %v", frameIndex, err)
		return
	}

	if p.hub.Broadcast(msg) {
		p.frameCount.Add(1)
	} else {
		p.droppedFrames.Add(1)
	}

	p.maybeLogStats()
}

// Stats returns the cumulative published and dropped frame counts.
func (p *Publisher) Stats() (published, dropped uint64) {
	return p.frameCount.Load(), p.droppedFrames.Load()
}

func (p *Publisher) maybeLogStats() {
	now := time.Now()
	if now.Sub(p.lastStatsAt) < 30*time.Second {
		return
	}
	published := p.frameCount.Load()
	fps := float64(published-p.lastStatsFrames) / now.Sub(p.lastStatsAt).Seconds()
	monitoring.Logf("live: %d clients, %.1f frames/s published, %d dropped total",
		p.hub.ClientCount(), fps, p.droppedFrames.Load())
	p.lastStatsAt = now
	p.lastStatsFrames = published
}
