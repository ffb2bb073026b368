package align

import (
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"path/filepath"

	"github.com/anthonynsimon/bild/blur"

	"github.com/omr-tools/omr-scan/internal/geometry"
	imagingx "github.com/omr-tools/omr-scan/internal/imaging"
)

// ErrMarkersNotFound reports that one or more corner markers could not
// be located with enough confidence. Callers must treat the page as
// unalignable; no partial correction is ever produced.
var ErrMarkersNotFound = errors.New("alignment markers not found")

// MarkerOptions configures marker-based perspective correction. The
// field names track the CropOnMarkers options block of sheet layouts.
type MarkerOptions struct {
	// RelativePath locates the marker reference image next to the
	// scanned sheets.
	RelativePath string
	// SheetToMarkerWidthRatio is how many marker widths fit across the
	// sheet; the reference is rescaled to sheetWidth / ratio.
	SheetToMarkerWidthRatio float64
	// RescaleRange brackets the marker scale sweep, in percent of the
	// reference size.
	RescaleRange [2]int
	// ScaleSteps is the number of sweep steps across RescaleRange.
	ScaleSteps int
	// MinMatchingThreshold is the lowest acceptable correlation for any
	// single marker.
	MinMatchingThreshold float64
	// MaxMatchingVariation caps how far a quadrant's score may fall
	// below the sheet-wide best before the marker counts as missing.
	MaxMatchingVariation float64
	// ApplyErodeSubtract enables background flattening of both the
	// search image and the reference before matching.
	ApplyErodeSubtract bool
	// MatchStride is the coarse scan step during the scale sweep.
	MatchStride int
}

// DefaultMarkerOptions returns the tuning that works for typical
// laser-printed sheets photographed at arm's length.
func DefaultMarkerOptions() MarkerOptions {
	return MarkerOptions{
		RelativePath:            "omr_marker.jpg",
		SheetToMarkerWidthRatio: 17,
		RescaleRange:            [2]int{35, 100},
		ScaleSteps:              10,
		MinMatchingThreshold:    0.3,
		MaxMatchingVariation:    0.41,
		ApplyErodeSubtract:      true,
		MatchStride:             2,
	}
}

// LoadMarker reads the marker reference from dir, scales it relative to
// the sheet width and preconditions it for matching: a light Gaussian
// blur to shed print noise, a contrast stretch, and optionally the same
// erode-subtract flattening applied to pages.
func LoadMarker(dir string, opts MarkerOptions, sheetWidth int) (*image.Gray, error) {
	path := filepath.Join(dir, opts.RelativePath)
	g, err := imagingx.LoadGray(path)
	if err != nil {
		return nil, fmt.Errorf("load marker %s: %w", path, err)
	}
	ratio := opts.SheetToMarkerWidthRatio
	if ratio <= 0 {
		ratio = DefaultMarkerOptions().SheetToMarkerWidthRatio
	}
	w := int(float64(sheetWidth) / ratio)
	if w < 1 {
		w = 1
	}
	g = imagingx.ResizeToWidth(g, w)
	g = imagingx.ToGray(blur.Gaussian(g, 2))
	g = imagingx.Normalize(g)
	if opts.ApplyErodeSubtract {
		g = imagingx.Normalize(imagingx.ErodeSubtract(g, 5))
	}
	return g, nil
}

// MarkerAligner locates the four corner markers of a sheet and warps the
// page so the marker centers form an axis-aligned rectangle. It
// implements Preprocessor.
type MarkerAligner struct {
	opts   MarkerOptions
	marker *image.Gray

	// Diagnostics from the most recent successful Apply.
	corners   [4]geometry.Point
	bestScale float64
	bestScore float64
}

// NewMarkerAligner builds an aligner around a preconditioned marker
// reference, typically from LoadMarker.
func NewMarkerAligner(marker *image.Gray, opts MarkerOptions) *MarkerAligner {
	if opts.MatchStride < 1 {
		opts.MatchStride = 1
	}
	if opts.ScaleSteps < 1 {
		opts.ScaleSteps = 1
	}
	return &MarkerAligner{opts: opts, marker: marker}
}

// Name implements Preprocessor.
func (m *MarkerAligner) Name() string { return "CropOnMarkers" }

// ExcludedPaths implements Preprocessor: the marker reference lives in
// the input directory and must not be scanned as a sheet.
func (m *MarkerAligner) ExcludedPaths() []string {
	return []string{m.opts.RelativePath}
}

// Corners returns the marker centers found by the last successful
// Apply, in top-left, top-right, bottom-right, bottom-left order.
func (m *MarkerAligner) Corners() [4]geometry.Point { return m.corners }

// BestScale returns the winning marker scale of the last Apply, as a
// fraction of the reference size.
func (m *MarkerAligner) BestScale() float64 { return m.bestScale }

// Apply implements Preprocessor. It sweeps marker scales over the whole
// page to pick the scale, then demands a confident match in each page
// quadrant; a single weak or inconsistent quadrant fails the page with
// ErrMarkersNotFound rather than guessing a partial correction.
func (m *MarkerAligner) Apply(g *image.Gray, path string) (Result, error) {
	search := g
	if m.opts.ApplyErodeSubtract {
		search = imagingx.Normalize(imagingx.ErodeSubtract(g, 5))
	}
	b := search.Bounds()
	w, h := b.Dx(), b.Dy()
	full := image.Rect(0, 0, w, h)

	bestPct, allMax := 0, math.Inf(-1)
	r0, r1 := m.opts.RescaleRange[0], m.opts.RescaleRange[1]
	descale := (r1 - r0) / m.opts.ScaleSteps
	if descale < 1 {
		descale = 1
	}
	for pct := r1; pct > r0; pct -= descale {
		tpl := m.scaledMarker(pct)
		if tpl == nil {
			continue
		}
		res := MatchTemplate(search, tpl, full, m.opts.MatchStride)
		if res.Score > allMax {
			allMax = res.Score
			bestPct = pct
		}
	}
	if bestPct == 0 || allMax < m.opts.MinMatchingThreshold {
		return Result{}, fmt.Errorf("%s: best correlation %.3f below %.3f at any scale: %w",
			path, allMax, m.opts.MinMatchingThreshold, ErrMarkersNotFound)
	}
	bestScale := float64(bestPct) / 100

	tpl := m.scaledMarker(bestPct)
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	midX, midY := w/2, h/2
	quadrants := [4]image.Rectangle{
		image.Rect(0, 0, midX, midY),
		image.Rect(midX, 0, w, midY),
		image.Rect(0, midY, midX, h),
		image.Rect(midX, midY, w, h),
	}

	var centers [4]geometry.Point
	for i, q := range quadrants {
		res := MatchTemplate(search, tpl, q, 1)
		if res.Score < m.opts.MinMatchingThreshold ||
			math.Abs(allMax-res.Score) >= m.opts.MaxMatchingVariation {
			return Result{}, fmt.Errorf("%s: marker %d score %.3f (sheet best %.3f): %w",
				path, i, res.Score, allMax, ErrMarkersNotFound)
		}
		centers[i] = geometry.Pt(float64(res.X)+float64(tw)/2, float64(res.Y)+float64(th)/2)
	}

	ordered := geometry.OrderCorners(centers)
	outW := math.Max(ordered[0].Distance(ordered[1]), ordered[3].Distance(ordered[2]))
	outH := math.Max(ordered[0].Distance(ordered[3]), ordered[1].Distance(ordered[2]))
	dst := [4]geometry.Point{
		{X: 0, Y: 0},
		{X: outW - 1, Y: 0},
		{X: outW - 1, Y: outH - 1},
		{X: 0, Y: outH - 1},
	}
	hom, err := geometry.Compute(ordered, dst)
	if err != nil {
		return Result{}, fmt.Errorf("%s: marker homography: %w", path, err)
	}
	warped, err := WarpPerspective(g, hom, int(outW), int(outH))
	if err != nil {
		return Result{}, fmt.Errorf("%s: perspective warp: %w", path, err)
	}

	m.corners = ordered
	m.bestScale = bestScale
	m.bestScore = allMax
	log.Printf("markers located in %s at scale %.2f (correlation %.3f)", path, bestScale, allMax)
	return Result{Image: warped, Transform: &hom}, nil
}

// scaledMarker resizes the reference to pct percent; nil when the
// result would be degenerate.
func (m *MarkerAligner) scaledMarker(pct int) *image.Gray {
	mb := m.marker.Bounds()
	tw := mb.Dx() * pct / 100
	th := mb.Dy() * pct / 100
	if tw < 2 || th < 2 {
		return nil
	}
	return imagingx.Resize(m.marker, tw, th)
}
