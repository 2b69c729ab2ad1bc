// Package detect provides frame sources for the tracking pipeline:
// recorded detection logs (JSON Lines) for deterministic replay, and a
// synthetic generator for demos and load testing. A Source yields frames
// in order; the pipeline owns the pacing.
package detect
