// Package track owns the multi-face tracking layer.
//
// Responsibilities: per-frame detection-to-track association via IoU
// gating, track lifecycle (creation, confirmation, coasting, removal),
// monotonic track identity, and aggregate tracking metrics.
// Key types: Detection, Manager, TrackView.
//
// The package performs no I/O. Detections come from an external detector
// (see internal/detect); consumers receive read-only TrackView snapshots
// and never hold references into the manager's internal storage.
package track
