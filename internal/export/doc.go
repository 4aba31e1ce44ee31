// Package export serialises a cleaned pose.Sequence and computes summary
// statistics.
//
// Formats: generic JSON (round-trippable through LoadJSON), CSV in wide and
// long form, rig animation JSON, BVH motion hierarchy text and statistics
// JSON. Every write goes to a temporary sibling that is renamed into place,
// so a failed export never leaves a partial file behind.
//
// Export operations return nil on success. On failure the returned error
// carries the human-readable message and the cause is logged through
// monitoring.Logf.
package export
