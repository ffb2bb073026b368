package threshold

import (
	"math"
	"testing"
)

func defaultParams() Params {
	return Params{
		PageTypeWhite:    true,
		MinJump:          25,
		JumpDelta:        30,
		MinGap:           30,
		ConfidentSurplus: 5,
	}
}

func TestGlobalFindsGapMidpoint(t *testing.T) {
	// Two clear populations: marked around 60, unmarked around 200.
	vals := []float64{58, 60, 62, 198, 200, 202, 204}
	res := Global(vals, 1, defaultParams())

	// looseness 1 gives a window half-width of 1; the first window to
	// straddle the split is q[1]..q[3] = 60..198 and its midpoint wins.
	want := 60 + (198-60)/2.0
	if math.Abs(res.Threshold-want) > 1e-9 {
		t.Errorf("Threshold = %v, want %v", res.Threshold, want)
	}
	if res.Low != 60 || res.High != 198 {
		t.Errorf("gap bounds = (%v, %v), want (60, 198)", res.Low, res.High)
	}
}

func TestGlobalDefaultWhenNoJump(t *testing.T) {
	// A tight cluster has no gap over MinJump.
	vals := []float64{200, 201, 202, 203, 204}

	p := defaultParams()
	res := Global(vals, 4, p)
	if res.Threshold != GlobalPageThresholdWhite {
		t.Errorf("white page Threshold = %v, want %v", res.Threshold, float64(GlobalPageThresholdWhite))
	}

	p.PageTypeWhite = false
	res = Global(vals, 4, p)
	if res.Threshold != GlobalPageThresholdBlack {
		t.Errorf("black page Threshold = %v, want %v", res.Threshold, float64(GlobalPageThresholdBlack))
	}
}

func TestGlobalSecondCandidate(t *testing.T) {
	// Three populations produce two large gaps far enough apart for the
	// secondary candidate to register.
	vals := []float64{20, 22, 24, 120, 122, 124, 230, 232, 234}
	res := Global(vals, 1, defaultParams())

	if res.Second == res.Threshold {
		t.Fatalf("Second = Threshold = %v, want distinct candidates", res.Second)
	}
	if math.Abs(res.Threshold-res.Second) <= defaultParams().JumpDelta {
		t.Errorf("|Threshold-Second| = %v, want > %v",
			math.Abs(res.Threshold-res.Second), defaultParams().JumpDelta)
	}
}

func TestLocalShortStrip(t *testing.T) {
	p := defaultParams()
	global := 150.0

	// Two near-identical values: uniform strip, global wins.
	if got := Local([]float64{200, 205}, global, false, p); got != global {
		t.Errorf("uniform short strip = %v, want global %v", got, global)
	}

	// Two well-separated values: mean splits them.
	got := Local([]float64{60, 200}, global, false, p)
	if got != 130 {
		t.Errorf("split short strip = %v, want 130", got)
	}

	// No values at all falls back to global.
	if got := Local(nil, global, false, p); got != global {
		t.Errorf("empty strip = %v, want global %v", got, global)
	}
}

func TestLocalGapSearch(t *testing.T) {
	vals := []float64{55, 60, 190, 200, 210}
	got := Local(vals, 150, false, defaultParams())

	// Largest neighbor-pair gap is q[1]..q[3] around the 60/190 split.
	want := 60 + (200-60)/2.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Local = %v, want %v", got, want)
	}
}

func TestLocalFallsBackWhenUnconfident(t *testing.T) {
	p := defaultParams()
	global := 150.0
	// All-blank strip; its tiny gaps stay below MinJump+ConfidentSurplus.
	vals := []float64{198, 200, 202, 204, 206}

	if got := Local(vals, global, true, p); got != global {
		t.Errorf("low-variance strip = %v, want global %v", got, global)
	}

	// Without the low-variance flag the unconfident default stands.
	if got := Local(vals, global, false, p); got != 255 {
		t.Errorf("unflagged strip = %v, want 255", got)
	}
}

func TestMeanStd(t *testing.T) {
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := Mean(vals); got != 5 {
		t.Errorf("Mean = %v, want 5", got)
	}
	if got := Std(vals); math.Abs(got-2) > 1e-9 {
		t.Errorf("Std = %v, want 2", got)
	}
}
