package align

import (
	"image"
	"math"

	imagingx "github.com/omr-tools/omr-scan/internal/imaging"
)

// MatchResult is the best template position found by MatchTemplate.
// X, Y locate the top-left corner of the window; Score is the
// normalized cross-correlation there, in [-1, 1].
type MatchResult struct {
	X, Y  int
	Score float64
}

// coarseCandidates is how many coarse placements survive into the
// stride-1 refinement. Repetitive patterns score near-identically on
// neighboring correlation lobes, so refining only the single coarse
// winner can settle one lobe away from the true peak.
const coarseCandidates = 8

// MatchTemplate slides tpl over g inside region and returns the
// placement with the highest normalized cross-correlation. Window sums
// come from integral images so each candidate costs one pass over the
// template rather than a full re-scan of statistics.
//
// stride controls the coarse scan step; any stride above 1 keeps the
// highest-scoring coarse placements and rescans a stride-1
// neighborhood around each of them. A flat window or a flat template
// scores zero.
func MatchTemplate(g, tpl *image.Gray, region image.Rectangle, stride int) MatchResult {
	if stride < 1 {
		stride = 1
	}
	gb := g.Bounds()
	tb := tpl.Bounds()
	tw, th := tb.Dx(), tb.Dy()

	region = region.Intersect(gb)
	// Last valid top-left corner so the window stays inside the image.
	maxX := region.Max.X - tw
	maxY := region.Max.Y - th
	if maxX < region.Min.X || maxY < region.Min.Y {
		return MatchResult{X: region.Min.X, Y: region.Min.Y, Score: -1}
	}

	integral := imagingx.NewIntegral(g)
	tplMean, tplEnergy := templateStats(tpl)

	best := MatchResult{X: region.Min.X, Y: region.Min.Y, Score: math.Inf(-1)}
	var top []MatchResult
	scan := func(x0, y0, x1, y1, step int, keep bool) {
		for y := y0; y <= y1; y += step {
			for x := x0; x <= x1; x += step {
				s := nccAt(g, tpl, integral, x, y, tw, th, tplMean, tplEnergy)
				if s > best.Score {
					best = MatchResult{X: x, Y: y, Score: s}
				}
				if keep {
					top = insertCandidate(top, MatchResult{X: x, Y: y, Score: s})
				}
			}
		}
	}

	scan(region.Min.X, region.Min.Y, maxX, maxY, stride, stride > 1)
	for _, c := range top {
		x0 := max(region.Min.X, c.X-stride+1)
		y0 := max(region.Min.Y, c.Y-stride+1)
		x1 := min(maxX, c.X+stride-1)
		y1 := min(maxY, c.Y+stride-1)
		scan(x0, y0, x1, y1, 1, false)
	}
	if math.IsInf(best.Score, -1) {
		best.Score = -1
	}
	return best
}

// insertCandidate keeps top sorted by descending score, capped at
// coarseCandidates entries.
func insertCandidate(top []MatchResult, c MatchResult) []MatchResult {
	i := len(top)
	for i > 0 && top[i-1].Score < c.Score {
		i--
	}
	if i >= coarseCandidates {
		return top
	}
	if len(top) < coarseCandidates {
		top = append(top, MatchResult{})
	}
	copy(top[i+1:], top[i:])
	top[i] = c
	return top
}

// nccAt scores one window placement. The zero-mean cross term is
// accumulated directly; the window mean and variance come from the
// integral tables.
func nccAt(g, tpl *image.Gray, integral *imagingx.Integral, x, y, tw, th int, tplMean, tplEnergy float64) float64 {
	n := float64(tw * th)
	winSum := integral.Sum(x, y, x+tw-1, y+th-1)
	winSq := integral.SumSq(x, y, x+tw-1, y+th-1)
	winEnergy := winSq - winSum*winSum/n
	if winEnergy <= 0 || tplEnergy <= 0 {
		return 0
	}

	tb := tpl.Bounds()
	var cross float64
	for ty := 0; ty < th; ty++ {
		grow := g.Pix[(y+ty)*g.Stride:]
		trow := tpl.Pix[(tb.Min.Y+ty)*tpl.Stride:]
		for tx := 0; tx < tw; tx++ {
			cross += float64(grow[x+tx]) * float64(trow[tb.Min.X+tx])
		}
	}
	cross -= winSum * tplMean

	return cross / math.Sqrt(winEnergy*tplEnergy)
}

func templateStats(tpl *image.Gray) (mean, energy float64) {
	tb := tpl.Bounds()
	n := float64(tb.Dx() * tb.Dy())
	var sum, sq float64
	for y := tb.Min.Y; y < tb.Max.Y; y++ {
		row := tpl.Pix[y*tpl.Stride:]
		for x := tb.Min.X; x < tb.Max.X; x++ {
			v := float64(row[x])
			sum += v
			sq += v * v
		}
	}
	mean = sum / n
	energy = sq - sum*sum/n
	return mean, energy
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
