// Package report renders diagnostic charts for a pipeline run: PNG
// trajectory plots of raw against cleaned landmark positions, and an HTML
// chart of per-frame detection confidence.
package report
