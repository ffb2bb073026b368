// Package threshold implements the two-tier adaptive intensity cutoff
// deciding marked vs unmarked bubbles.
//
// A photographed or xeroxed sheet rarely has a uniform background, so a
// single fixed cutoff is unreliable. Instead the engine sorts bubble
// mean intensities and looks for the largest gap in the sorted sequence:
// genuinely marked bubbles cluster well below the paper background, so
// the widest jump separates the two populations and its midpoint makes a
// robust threshold. The search runs once globally over every bubble on
// the sheet and again locally within each question strip, with the
// global value backing up strips whose own evidence is too weak.
package threshold

import (
	"math"
	"sort"
)

// Default thresholds used when no sufficiently large gap exists,
// selected by the configured page polarity.
const (
	GlobalPageThresholdWhite = 200
	GlobalPageThresholdBlack = 100
)

// Params are the tuning knobs for the gap search. They mirror the
// threshold_params configuration section.
type Params struct {
	// PageTypeWhite selects the white-page fallback default; otherwise
	// the black-page default applies.
	PageTypeWhite bool
	// MinJump is the smallest sorted-value gap considered a real split
	// between marked and unmarked populations.
	MinJump float64
	// JumpDelta is the minimum separation between the primary threshold
	// and the tracked secondary candidate.
	JumpDelta float64
	// MinGap is the smallest strip spread treated as containing both
	// populations; below it a short strip is all-blank or all-filled.
	MinGap float64
	// ConfidentSurplus widens MinJump for the local search; a local gap
	// must clear MinJump+ConfidentSurplus to stand on its own.
	ConfidentSurplus float64
}

// GlobalResult carries the global threshold and its diagnostics.
type GlobalResult struct {
	// Threshold is the primary cutoff: the midpoint of the largest
	// qualifying gap, or the page-polarity default when none qualifies.
	Threshold float64
	// Low and High bound the winning gap.
	Low, High float64
	// Second is the best JumpDelta-separated secondary candidate, kept
	// for diagnostics only.
	Second float64
}

// Global finds the sheet-wide threshold by sliding a symmetric window of
// half-width (looseness+1)/2 across the sorted intensity array and
// taking the midpoint of the largest window gap exceeding MinJump.
//
// With one gap (plain white background) the search finds the ink/paper
// split; with two gaps (gray boxed columns plus white margins) the
// larger, safer jump wins.
func Global(vals []float64, looseness int, p Params) GlobalResult {
	fallback := float64(GlobalPageThresholdBlack)
	if p.PageTypeWhite {
		fallback = GlobalPageThresholdWhite
	}

	q := append([]float64(nil), vals...)
	sort.Float64s(q)

	ls := (looseness + 1) / 2
	res := GlobalResult{Threshold: fallback, Second: fallback}
	maxJump := p.MinJump
	for i := ls; i < len(q)-ls; i++ {
		jump := q[i+ls] - q[i-ls]
		if jump > maxJump {
			maxJump = jump
			res.Threshold = q[i-ls] + jump/2
			res.Low = q[i-ls]
			res.High = q[i+ls]
		}
	}

	secondJump := p.MinJump
	for i := ls; i < len(q)-ls; i++ {
		jump := q[i+ls] - q[i-ls]
		candidate := q[i-ls] + jump/2
		if jump > secondJump && math.Abs(res.Threshold-candidate) > p.JumpDelta {
			secondJump = jump
			res.Second = candidate
		}
	}
	return res
}

// Local finds a per-strip threshold.
//
// Strips with fewer than three bubbles carry too little structure for a
// gap search: when the strip's spread stays under MinGap it is uniformly
// blank or filled and the global threshold applies; otherwise both
// populations are present and the strip mean splits them. Larger strips
// run the
// plain largest-gap search (window of 1); when the best local gap is not
// confident (under MinJump+ConfidentSurplus) and the strip was flagged
// low-variance by the caller, the global threshold takes over so a
// uniformly blank strip cannot invent a spurious split.
func Local(vals []float64, globalThr float64, noOutliers bool, p Params) float64 {
	q := append([]float64(nil), vals...)
	sort.Float64s(q)

	if len(q) < 3 {
		if len(q) == 0 {
			return globalThr
		}
		if q[len(q)-1]-q[0] < p.MinGap {
			return globalThr
		}
		return Mean(q)
	}

	thr := 255.0
	maxJump := p.MinJump
	for i := 1; i < len(q)-1; i++ {
		jump := q[i+1] - q[i-1]
		if jump > maxJump {
			maxJump = jump
			thr = q[i-1] + jump/2
		}
	}

	if maxJump < p.MinJump+p.ConfidentSurplus && noOutliers {
		thr = globalThr
	}
	return thr
}

// Mean returns the arithmetic mean of vals (0 for an empty slice).
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Std returns the population standard deviation of vals.
func Std(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := Mean(vals)
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)))
}
