package track

import "fmt"

// InvalidConfigError reports a bad construction parameter. It is fatal:
// NewManager returns it once at startup and the manager is never built.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid tracker config: %s: %s", e.Field, e.Reason)
}

// InvalidDetectionError reports a malformed detection within one Update
// call. It is per-item: the offending detection is skipped and the rest
// of the frame is still processed. The manager rejects but does not log;
// callers decide whether rejection is worth reporting.
type InvalidDetectionError struct {
	Index  int // Position in the detections slice passed to Update
	Reason string
}

func (e *InvalidDetectionError) Error() string {
	return fmt.Sprintf("invalid detection at index %d: %s", e.Index, e.Reason)
}
