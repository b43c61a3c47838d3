// Package report defines the surface consumed by chart and HTML
// renderers. Rendering itself lives outside this module; the collector
// only hands over finished snapshots.
package report

import "codeberg.org/mutker/mperf/internal/store"

// Renderer turns a finished run into a human-facing artifact under dir.
type Renderer interface {
	Render(results store.Results, summaries map[string]map[string]store.Summary, dir string) error
}
