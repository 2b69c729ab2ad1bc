package track

import (
	"sort"
	"sync"
)

// ManagerConfig holds configuration parameters for the track manager.
type ManagerConfig struct {
	// IoUThreshold is the minimum overlap for association, exclusive:
	// a detection matches a track only when IoU is strictly greater.
	IoUThreshold float64 `json:"iou_threshold"`

	// MinHits is the number of consecutive matched frames before a
	// tentative track is confirmed. Creation counts as the first hit.
	MinHits int `json:"min_hits"`

	// MaxAge is the number of consecutive missed frames tolerated before
	// a track is removed from the live set.
	MaxAge int `json:"max_age"`

	// MaxTracks caps concurrent live tracks; unmatched detections beyond
	// the cap do not spawn new tracks that frame.
	MaxTracks int `json:"max_tracks"`

	// Matcher selects the assignment algorithm (default greedy).
	Matcher MatcherKind `json:"matcher"`

	// VelocitySmoothingAlpha is the EMA weight of the newest centre
	// displacement when updating a track's velocity estimate, in [0, 1].
	VelocitySmoothingAlpha float64 `json:"velocity_smoothing_alpha"`

	// CoastUnmatched advances an unmatched track's box by its velocity
	// estimate each missed frame, so re-association after a brief
	// occlusion gates against the predicted position.
	CoastUnmatched bool `json:"coast_unmatched"`
}

// DefaultManagerConfig returns production-default tracking parameters.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IoUThreshold:           0.3,
		MinHits:                3,
		MaxAge:                 10,
		MaxTracks:              256,
		Matcher:                MatcherGreedy,
		VelocitySmoothingAlpha: 0.6,
		CoastUnmatched:         true,
	}
}

func (c ManagerConfig) validate() error {
	if c.IoUThreshold <= 0 || c.IoUThreshold >= 1 {
		return &InvalidConfigError{Field: "IoUThreshold", Reason: "must be in (0, 1)"}
	}
	if c.MinHits <= 0 {
		return &InvalidConfigError{Field: "MinHits", Reason: "must be positive"}
	}
	if c.MaxAge <= 0 {
		return &InvalidConfigError{Field: "MaxAge", Reason: "must be positive"}
	}
	if c.MaxTracks <= 0 {
		return &InvalidConfigError{Field: "MaxTracks", Reason: "must be positive"}
	}
	switch c.Matcher {
	case MatcherGreedy, MatcherHungarian:
	default:
		return &InvalidConfigError{Field: "Matcher", Reason: "must be \"greedy\" or \"hungarian\""}
	}
	if c.VelocitySmoothingAlpha < 0 || c.VelocitySmoothingAlpha > 1 {
		return &InvalidConfigError{Field: "VelocitySmoothingAlpha", Reason: "must be in [0, 1]"}
	}
	return nil
}

// record is the manager-private state of one track. External consumers
// only ever see TrackView copies.
type record struct {
	id         int64
	box        Box
	vx, vy     float64
	hits       int
	misses     int
	firstFrame int64
	lastFrame  int64
	state      TrackState
}

// Manager maintains the correspondence between per-frame detections and
// a stable set of identity-tagged tracks.
//
// Update must be called from exactly one frame-processing goroutine at a
// time; the internal lock only makes the read accessors safe to call
// concurrently with Update.
type Manager struct {
	mu  sync.RWMutex
	cfg ManagerConfig

	tracks map[int64]*record
	nextID int64

	// Lifecycle counters for metrics.
	tracksCreated   int
	tracksConfirmed int
	deadTracks      int
	deadAgeSum      int64 // Sum of final ages of removed tracks
}

// NewManager creates a track manager. Invalid configuration fails fast
// with *InvalidConfigError.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:    cfg,
		tracks: make(map[int64]*record),
		nextID: 1,
	}, nil
}

// UpdateConfig applies fn to the manager's configuration under the lock.
// The resulting configuration is validated; on error the previous
// configuration is kept. This is the safe way to mutate tuning fields
// from outside the frame loop (e.g. HTTP tuning handlers).
func (m *Manager) UpdateConfig(fn func(*ManagerConfig)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.cfg
	fn(&next)
	if err := next.validate(); err != nil {
		return err
	}
	m.cfg = next
	return nil
}

// Config returns a copy of the current configuration.
func (m *Manager) Config() ManagerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Reset clears all tracks and restarts ID allocation. Used between
// replay permutations so each run starts from a clean manager.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks = make(map[int64]*record)
	m.nextID = 1
	m.tracksCreated = 0
	m.tracksConfirmed = 0
	m.deadTracks = 0
	m.deadAgeSum = 0
}

// Update processes one frame of detections and returns snapshots of all
// live (tentative and confirmed) tracks in ascending ID order.
//
// Malformed detections (width or height ≤ 0) are rejected per item: each
// yields an *InvalidDetectionError in the second return value and the
// remaining detections are still processed. An empty detection list ages
// every live track exactly like a frame where nothing matched.
//
// frameIndex must increase monotonically across calls; it drives track
// ages and first/last-seen bookkeeping.
func (m *Manager) Update(detections []Detection, frameIndex int64) ([]TrackView, []error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Step 0: per-item validation.
	var rejected []error
	valid := make([]Detection, 0, len(detections))
	for i, d := range detections {
		if d.Box.W <= 0 {
			rejected = append(rejected, &InvalidDetectionError{Index: i, Reason: "non-positive width"})
			continue
		}
		if d.Box.H <= 0 {
			rejected = append(rejected, &InvalidDetectionError{Index: i, Reason: "non-positive height"})
			continue
		}
		valid = append(valid, d)
	}

	// Step 1: coast live tracks to the current frame. The constant
	// velocity estimate stands in for the Kalman predict step; matched
	// tracks get their box replaced by the detection below, so coasting
	// only persists through missed frames.
	liveIDs := m.liveIDsAscending()
	if m.cfg.CoastUnmatched {
		for _, id := range liveIDs {
			tr := m.tracks[id]
			tr.box.X += tr.vx
			tr.box.Y += tr.vy
		}
	}

	// Step 2: associate detections to tracks on the IoU gate.
	assignments := m.associate(valid, liveIDs)

	// Step 3: update matched tracks.
	matched := make(map[int64]bool, len(liveIDs))
	for d, col := range assignments {
		if col < 0 {
			continue
		}
		tr := m.tracks[liveIDs[col]]
		m.applyMatch(tr, valid[d], frameIndex)
		matched[tr.id] = true
	}

	// Step 4: age unmatched tracks; remove those past their miss budget.
	for _, id := range liveIDs {
		tr := m.tracks[id]
		if matched[id] {
			continue
		}
		tr.misses++
		tr.hits = 0
		if tr.misses >= m.cfg.MaxAge {
			tr.state = TrackDead
			m.deadTracks++
			m.deadAgeSum += frameIndex - tr.firstFrame + 1
			delete(m.tracks, id)
		}
	}

	// Step 5: spawn tentative tracks from unmatched detections.
	for d, col := range assignments {
		if col >= 0 {
			continue
		}
		if len(m.tracks) >= m.cfg.MaxTracks {
			break
		}
		m.initTrack(valid[d], frameIndex)
	}

	return m.snapshotLocked(frameIndex), rejected
}

// associate builds the IoU matrix between valid detections (rows) and
// live tracks (columns, ascending ID) and runs the configured matcher.
func (m *Manager) associate(detections []Detection, liveIDs []int64) []int {
	if len(detections) == 0 {
		return nil
	}
	iou := make([][]float64, len(detections))
	for d := range detections {
		iou[d] = make([]float64, len(liveIDs))
		for t, id := range liveIDs {
			iou[d][t] = IoU(detections[d].Box, m.tracks[id].box)
		}
	}
	if m.cfg.Matcher == MatcherHungarian {
		return hungarianGatedAssign(iou, m.cfg.IoUThreshold)
	}
	return greedyAssign(iou, m.cfg.IoUThreshold)
}

func (m *Manager) applyMatch(tr *record, det Detection, frameIndex int64) {
	// Velocity EMA from the centre displacement. The displacement is
	// measured against the pre-match box so coasting does not double
	// count into the estimate on the frame a track re-associates.
	dx := det.Box.CenterX() - tr.box.CenterX()
	dy := det.Box.CenterY() - tr.box.CenterY()
	alpha := m.cfg.VelocitySmoothingAlpha
	tr.vx = alpha*dx + (1-alpha)*tr.vx
	tr.vy = alpha*dy + (1-alpha)*tr.vy

	tr.box = det.Box
	tr.hits++
	tr.misses = 0
	tr.lastFrame = frameIndex

	if tr.state == TrackTentative && tr.hits >= m.cfg.MinHits {
		tr.state = TrackConfirmed
		m.tracksConfirmed++
	}
}

// initTrack creates a tentative track with a freshly allocated ID.
// IDs are monotonic for the lifetime of the manager and never reused,
// even after a track dies.
func (m *Manager) initTrack(det Detection, frameIndex int64) *record {
	tr := &record{
		id:         m.nextID,
		box:        det.Box,
		hits:       1,
		firstFrame: frameIndex,
		lastFrame:  frameIndex,
		state:      TrackTentative,
	}
	m.nextID++
	m.tracksCreated++

	// MinHits of 1 confirms on the creation frame.
	if tr.hits >= m.cfg.MinHits {
		tr.state = TrackConfirmed
		m.tracksConfirmed++
	}

	m.tracks[tr.id] = tr
	return tr
}

func (m *Manager) liveIDsAscending() []int64 {
	ids := make([]int64, 0, len(m.tracks))
	for id := range m.tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) snapshotLocked(frameIndex int64) []TrackView {
	views := make([]TrackView, 0, len(m.tracks))
	for _, id := range m.liveIDsAscending() {
		tr := m.tracks[id]
		views = append(views, TrackView{
			ID:         tr.id,
			Box:        tr.box,
			State:      tr.state,
			Age:        frameIndex - tr.firstFrame + 1,
			Hits:       tr.hits,
			Misses:     tr.misses,
			VX:         tr.vx,
			VY:         tr.vy,
			FirstFrame: tr.firstFrame,
			LastFrame:  tr.lastFrame,
		})
	}
	return views
}

// ActiveTracks returns snapshots of all live tracks in ascending ID
// order, aged relative to each track's last matched frame. Safe to call
// concurrently with Update.
func (m *Manager) ActiveTracks() []TrackView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	views := make([]TrackView, 0, len(m.tracks))
	for _, id := range m.liveIDsAscending() {
		tr := m.tracks[id]
		views = append(views, TrackView{
			ID:         tr.id,
			Box:        tr.box,
			State:      tr.state,
			Age:        tr.lastFrame - tr.firstFrame + 1,
			Hits:       tr.hits,
			Misses:     tr.misses,
			VX:         tr.vx,
			VY:         tr.vy,
			FirstFrame: tr.firstFrame,
			LastFrame:  tr.lastFrame,
		})
	}
	return views
}

// TrackCount returns counts of live tracks by state.
func (m *Manager) TrackCount() (total, tentative, confirmed int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tr := range m.tracks {
		total++
		switch tr.state {
		case TrackTentative:
			tentative++
		case TrackConfirmed:
			confirmed++
		}
	}
	return
}
