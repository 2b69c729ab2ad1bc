package track

// TrackState represents the lifecycle state of a track.
type TrackState string

const (
	TrackTentative TrackState = "tentative" // New track, needs confirmation
	TrackConfirmed TrackState = "confirmed" // Stable track with sufficient history
	TrackDead      TrackState = "dead"      // Track removed from the live set
)

// Box is an axis-aligned bounding box in pixel coordinates.
// X, Y is the top-left corner; W, H are width and height.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// CenterX returns the horizontal centre of the box.
func (b Box) CenterX() float64 { return b.X + b.W/2 }

// CenterY returns the vertical centre of the box.
func (b Box) CenterY() float64 { return b.Y + b.H/2 }

// Area returns the box area. Negative dimensions yield zero.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Detection is one observed face in one frame. Detections are produced
// fresh each frame by the detector and consumed immediately by the
// manager; they are never retained across frames.
type Detection struct {
	Box   Box     `json:"box"`
	Score float64 `json:"score"`
	Frame int64   `json:"frame"` // Source frame index, informational; Update's frameIndex governs aging
}

// TrackView is a read-only snapshot of one live track, emitted once per
// Update call. Views are deep copies; mutating a view has no effect on
// the manager's state.
type TrackView struct {
	ID    int64      `json:"id"`
	Box   Box        `json:"box"`
	State TrackState `json:"state"`

	// Age is the number of frames since the track was created, inclusive
	// of the creation frame.
	Age int64 `json:"age"`

	Hits   int `json:"hits"`   // Consecutive matched frames
	Misses int `json:"misses"` // Consecutive missed frames

	// Smoothed velocity estimate in pixels per frame.
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`

	FirstFrame int64 `json:"first_frame"`
	LastFrame  int64 `json:"last_frame"` // Last frame with a matched detection
}

// Speed returns the velocity magnitude in pixels per frame.
func (v TrackView) Speed() float64 {
	return hypot(v.VX, v.VY)
}
