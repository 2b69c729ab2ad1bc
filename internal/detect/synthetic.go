package detect

import (
	"context"
	"io"
	"math"
	"math/rand"

	"github.com/sightline-data/facetrack/internal/track"
)

// SyntheticSource generates frames of synthetic face detections moving
// through a virtual camera view. Each subject follows a circular path;
// per-frame jitter, detector dropouts and occlusion windows exercise the
// tracker's miss handling. A fixed seed makes runs reproducible.
type SyntheticSource struct {
	// Configuration
	SubjectCount int     // number of moving faces
	FrameCount   int     // frames to emit before EOF; 0 means unbounded
	FrameWidth   float64 // pixels
	FrameHeight  float64 // pixels
	FaceSize     float64 // nominal box edge, pixels
	PathRadius   float64 // pixels, radius of circular paths
	SpeedPxF     float64 // path speed in pixels per frame
	Jitter       float64 // uniform positional noise, pixels
	DropoutRate  float64 // probability a subject is missed on a frame

	// Occlusion windows: every OccludeEvery frames each subject goes
	// undetected for OccludeFor frames. Zero disables occlusion.
	OccludeEvery int
	OccludeFor   int

	frame int64
	rng   *rand.Rand
}

// NewSyntheticSource creates a generator with demo-friendly defaults.
func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{
		SubjectCount: 4,
		FrameCount:   0,
		FrameWidth:   1280,
		FrameHeight:  720,
		FaceSize:     80,
		PathRadius:   200,
		SpeedPxF:     4.0,
		Jitter:       2.0,
		DropoutRate:  0.05,
		OccludeEvery: 120,
		OccludeFor:   5,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

func (s *SyntheticSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.FrameCount > 0 && s.frame >= int64(s.FrameCount) {
		return Frame{}, io.EOF
	}

	frame := Frame{Index: s.frame}
	cx := s.FrameWidth / 2
	cy := s.FrameHeight / 2

	for i := 0; i < s.SubjectCount; i++ {
		if s.occluded(i) || s.rng.Float64() < s.DropoutRate {
			continue
		}

		baseAngle := float64(i) * 2 * math.Pi / float64(s.SubjectCount)
		angle := baseAngle + float64(s.frame)*s.SpeedPxF/s.PathRadius

		x := cx + s.PathRadius*math.Cos(angle) - s.FaceSize/2
		y := cy + s.PathRadius*math.Sin(angle) - s.FaceSize/2
		x += (s.rng.Float64()*2 - 1) * s.Jitter
		y += (s.rng.Float64()*2 - 1) * s.Jitter

		frame.Detections = append(frame.Detections, track.Detection{
			Box:   track.Box{X: x, Y: y, W: s.FaceSize, H: s.FaceSize},
			Score: 0.8 + s.rng.Float64()*0.2,
			Frame: s.frame,
		})
	}

	s.frame++
	return frame, nil
}

// occluded reports whether subject i is inside an occlusion window on
// the current frame. Windows are staggered per subject so tracks do not
// all coast at once.
func (s *SyntheticSource) occluded(i int) bool {
	if s.OccludeEvery <= 0 || s.OccludeFor <= 0 {
		return false
	}
	phase := (s.frame + int64(i)*int64(s.OccludeEvery)/int64(max(s.SubjectCount, 1))) % int64(s.OccludeEvery)
	return phase < int64(s.OccludeFor)
}

func (s *SyntheticSource) Close() error { return nil }
