package detect

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-data/facetrack/internal/track"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detections.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(t *testing.T, src Source) []Frame {
	t.Helper()
	var frames []Frame
	for {
		frame, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, frame)
	}
}

func TestJSONLSource_Replay(t *testing.T) {
	log := `{"frame":0,"detections":[{"box":{"x":10,"y":20,"w":50,"h":60},"score":0.9}]}

{"frame":1,"detections":[]}
{"frame":3,"detections":[{"box":{"x":12,"y":22,"w":50,"h":60},"score":0.85},{"box":{"x":200,"y":40,"w":40,"h":40},"score":0.7}]}
`
	src, err := OpenJSONL(writeLog(t, log))
	require.NoError(t, err)
	defer src.Close()

	frames := drain(t, src)
	require.Len(t, frames, 3, "blank lines skipped")

	assert.Equal(t, int64(0), frames[0].Index)
	require.Len(t, frames[0].Detections, 1)
	assert.Equal(t, track.Box{X: 10, Y: 20, W: 50, H: 60}, frames[0].Detections[0].Box)
	assert.InDelta(t, 0.9, frames[0].Detections[0].Score, 1e-12)

	assert.Empty(t, frames[1].Detections)
	assert.Equal(t, int64(3), frames[2].Index, "recorded frame gaps preserved")
	assert.Len(t, frames[2].Detections, 2)
}

func TestJSONLSource_MalformedLine(t *testing.T) {
	src, err := OpenJSONL(writeLog(t, "{\"frame\":0,\"detections\":[]}\n{not json}\n"))
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.ErrorContains(t, err, "line 2")
}

func TestJSONLSource_ContextCancelled(t *testing.T) {
	src, err := OpenJSONL(writeLog(t, "{\"frame\":0,\"detections\":[]}\n"))
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteJSONL_RoundTrip(t *testing.T) {
	in := []Frame{
		{Index: 0, Detections: []track.Detection{{Box: track.Box{X: 1, Y: 2, W: 3, H: 4}, Score: 0.5}}},
		{Index: 1},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, in))

	path := writeLog(t, buf.String())
	src, err := OpenJSONL(path)
	require.NoError(t, err)
	defer src.Close()

	out := drain(t, src)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].Detections, out[0].Detections)
	assert.Equal(t, int64(1), out[1].Index)
}

func TestSyntheticSource(t *testing.T) {
	t.Run("deterministic for a seed", func(t *testing.T) {
		a := NewSyntheticSource(42)
		a.FrameCount = 50
		b := NewSyntheticSource(42)
		b.FrameCount = 50
		assert.Equal(t, drain(t, a), drain(t, b))
	})

	t.Run("boxes are valid and indices sequential", func(t *testing.T) {
		src := NewSyntheticSource(7)
		src.FrameCount = 100
		src.DropoutRate = 0
		src.OccludeEvery = 0

		frames := drain(t, src)
		require.Len(t, frames, 100)
		for i, frame := range frames {
			assert.Equal(t, int64(i), frame.Index)
			assert.Len(t, frame.Detections, src.SubjectCount)
			for _, d := range frame.Detections {
				assert.Greater(t, d.Box.W, 0.0)
				assert.Greater(t, d.Box.H, 0.0)
				assert.GreaterOrEqual(t, d.Score, 0.8)
				assert.LessOrEqual(t, d.Score, 1.0)
			}
		}
	})

	t.Run("occlusion windows drop subjects", func(t *testing.T) {
		src := NewSyntheticSource(7)
		src.FrameCount = 40
		src.DropoutRate = 0
		src.OccludeEvery = 20
		src.OccludeFor = 3

		missing := 0
		for _, frame := range drain(t, src) {
			if len(frame.Detections) < src.SubjectCount {
				missing++
			}
		}
		assert.Greater(t, missing, 0, "some frames must have occluded subjects")
	})
}
