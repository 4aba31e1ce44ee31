// Package smoothing cleans landmark time series.
//
// Responsibilities: Savitzky-Golay polynomial smoothing, per-landmark
// constant-velocity Kalman filtering, the combined strategy that chains
// them, and interpolation of frames the detector missed.
//
// Every stage returns a new pose.Sequence and never mutates its input.
// Kalman state lives in an Engine keyed by landmark name; one Engine
// belongs to one pipeline run and must not be shared between runs.
package smoothing
