package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sightline-data/facetrack/internal/track"
)

// Frame is one frame of detector output.
type Frame struct {
	Index          int64             `json:"frame"`
	TimestampNanos int64             `json:"ts_ns,omitempty"`
	Detections     []track.Detection `json:"detections"`
}

// Source yields frames in order. Next returns io.EOF when the source is
// exhausted, or ctx.Err() when the context is cancelled first.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// JSONLSource replays a recorded detection log: one JSON-encoded Frame
// per line. Blank lines are skipped. Frames are returned in file order;
// the recorded frame indices are preserved so replays reproduce the
// original aging behaviour, gaps included.
type JSONLSource struct {
	f       *os.File
	scanner *bufio.Scanner
	line    int
}

// OpenJSONL opens a detection log for replay.
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detection log: %w", err)
	}
	scanner := bufio.NewScanner(f)
	// Frames with many detections can exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &JSONLSource{f: f, scanner: scanner}, nil
}

func (s *JSONLSource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, fmt.Errorf("read detection log: %w", err)
			}
			return Frame{}, io.EOF
		}
		s.line++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return Frame{}, fmt.Errorf("detection log line %d: %w", s.line, err)
		}
		return frame, nil
	}
}

func (s *JSONLSource) Close() error {
	return s.f.Close()
}

// WriteJSONL appends frames to w in the log format OpenJSONL reads.
func WriteJSONL(w io.Writer, frames []Frame) error {
	enc := json.NewEncoder(w)
	for _, frame := range frames {
		if err := enc.Encode(frame); err != nil {
			return fmt.Errorf("write detection log: %w", err)
		}
	}
	return nil
}
