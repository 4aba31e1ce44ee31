// Package source adapts an external pose detector's output into pose frames.
//
// The detector itself runs outside this module. It hands over a detections
// document with normalised landmark coordinates per video frame; this
// package validates it, converts coordinates to pixel scale and lays the
// frames out by index so missed frames show up as gaps.
package source
