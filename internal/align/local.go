package align

import (
	"image"
	"log"

	imagingx "github.com/omr-tools/omr-scan/internal/imaging"
	"github.com/omr-tools/omr-scan/internal/template"
)

// AlignParams tunes the per-block horizontal shift search.
type AlignParams struct {
	// MatchCol is the width in pixels of the edge windows probed on each
	// side of a block.
	MatchCol int
	// MaxSteps bounds the number of shift iterations per block.
	MaxSteps int
	// Stride is the pixel step applied per iteration.
	Stride int
	// Thickness offsets the edge windows outward to sit on the printed
	// block border rather than the bubbles.
	Thickness int
}

// DefaultAlignParams returns the shift-search tuning suited to
// phone-photographed sheets.
func DefaultAlignParams() AlignParams {
	return AlignParams{MatchCol: 5, MaxSteps: 20, Stride: 1, Thickness: 3}
}

// edgeMeanThreshold decides whether an edge window contains border ink
// in the vertical profile, where borders are bright.
const edgeMeanThreshold = 100

// BuildVerticalProfile reduces a normalized page to a binary map of its
// vertical strokes. Gamma compression darkens the printed column
// borders, a tall thin morphological opening suppresses everything that
// is not a vertical stroke, and the inverted, binarized, eroded result
// leaves the block borders as solid bright bars that BlockShift can
// probe.
func BuildVerticalProfile(g *image.Gray, gammaLow float64) *image.Gray {
	m := imagingx.AdjustGamma(g, gammaLow)
	m = imagingx.TruncateAbove(m, 220)
	m = imagingx.Normalize(m)
	m = imagingx.OpenRect(m, 2, 10, 3)
	m = imagingx.TruncateAbove(m, 200)
	m = imagingx.Invert(imagingx.Normalize(m))
	m = imagingx.BinarizeAbove(m, 60)
	m = imagingx.ErodeRect(m, 5, 5)
	m = imagingx.ErodeRect(m, 5, 5)
	return m
}

// BlockShift finds the horizontal offset that centers a block between
// its printed borders. Starting at zero shift it probes a narrow window
// just outside each vertical edge of the block: ink in exactly one
// window means the block is drifted toward that side, so the shift steps
// the other way. Ink in both windows, or in neither, ends the search.
func BlockShift(profile *image.Gray, block *template.FieldBlock, p AlignParams) int {
	sx := int(block.Origin[0])
	sy := int(block.Origin[1])
	dx := int(block.Dimensions[0])
	dy := int(block.Dimensions[1])

	shift := 0
	for steps := 0; steps < p.MaxSteps; steps++ {
		leftMean := imagingx.RegionMean(profile, image.Rect(
			sx+shift-p.Thickness, sy,
			sx+shift+p.MatchCol-p.Thickness, sy+dy))
		rightMean := imagingx.RegionMean(profile, image.Rect(
			sx+shift+dx-p.MatchCol+p.Thickness, sy,
			sx+shift+dx+p.Thickness, sy+dy))

		leftInk := leftMean > edgeMeanThreshold
		rightInk := rightMean > edgeMeanThreshold
		switch {
		case leftInk && rightInk:
			return shift
		case leftInk:
			shift -= p.Stride
		case rightInk:
			shift += p.Stride
		default:
			return shift
		}
	}
	return shift
}

// AlignBlocks computes and stores the shift of every field block of t
// against the page's vertical profile. t is expected to be a per-page
// clone; the stored shifts are page-specific state.
func AlignBlocks(g *image.Gray, t *template.Template, gammaLow float64, p AlignParams) *image.Gray {
	profile := BuildVerticalProfile(g, gammaLow)
	for _, block := range t.FieldBlocks {
		shift := BlockShift(profile, block, p)
		block.Shift = float64(shift)
		if shift != 0 {
			log.Printf("block %s aligned with shift %+d", block.Name, shift)
		}
	}
	return profile
}
