// Package align registers everything that happens to a scanned page
// before bubbles are measured: pluggable image preprocessors such as
// marker-based perspective correction, the perspective warp itself, and
// the per-block horizontal auto-alignment that compensates for printer
// drift.
package align

import (
	"image"

	"github.com/omr-tools/omr-scan/internal/geometry"
)

// Result is the outcome of one preprocessing step. Image is the
// transformed page; Transform, when non-nil, is the homography that maps
// coordinates of the input page onto the output page, so callers can
// carry point annotations across the step.
type Result struct {
	Image     *image.Gray
	Transform *geometry.Homography
}

// Preprocessor transforms a grayscale page before measurement. Apply
// receives the page plus its source path (for logging and for locating
// sibling resources) and must not retain or mutate the input image.
type Preprocessor interface {
	// Apply runs the step. Implementations return the input unchanged
	// inside a Result only when the step is a no-op for this page.
	Apply(g *image.Gray, path string) (Result, error)

	// ExcludedPaths lists auxiliary files the step consumes from the
	// input directory, such as a marker reference image, so batch
	// drivers can skip them instead of scanning them as sheets.
	ExcludedPaths() []string

	// Name identifies the step in logs and debug image stacks.
	Name() string
}
