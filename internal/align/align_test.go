package align

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/omr-tools/omr-scan/internal/geometry"
	imagingx "github.com/omr-tools/omr-scan/internal/imaging"
	"github.com/omr-tools/omr-scan/internal/template"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// checkerboard builds a high-contrast pattern with a sharp correlation
// peak.
func checkerboard(w, h, cell int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				g.Pix[y*g.Stride+x] = 255
			}
		}
	}
	return g
}

func paste(dst, src *image.Gray, x, y int) {
	sb := src.Bounds()
	for sy := 0; sy < sb.Dy(); sy++ {
		for sx := 0; sx < sb.Dx(); sx++ {
			dst.Pix[(y+sy)*dst.Stride+x+sx] = src.Pix[sy*src.Stride+sx]
		}
	}
}

func TestMatchTemplateFindsPeak(t *testing.T) {
	page := uniformGray(80, 80, 200)
	tpl := checkerboard(10, 10, 3)
	// Off the stride-3 grid, so only the refinement pass can land on it.
	paste(page, tpl, 32, 26)

	res := MatchTemplate(page, tpl, page.Bounds(), 3)
	if res.X != 32 || res.Y != 26 {
		t.Errorf("peak at (%d, %d), want (32, 26)", res.X, res.Y)
	}
	if res.Score < 0.99 {
		t.Errorf("Score = %v, want > 0.99", res.Score)
	}
}

func TestMatchTemplateFlatWindowScoresZero(t *testing.T) {
	page := uniformGray(40, 40, 128)
	tpl := checkerboard(8, 8, 2)

	res := MatchTemplate(page, tpl, page.Bounds(), 1)
	if res.Score != 0 {
		t.Errorf("Score on flat page = %v, want 0", res.Score)
	}
}

func TestWarpIdentityPreservesImage(t *testing.T) {
	src := checkerboard(20, 16, 4)
	out, err := WarpPerspective(src, geometry.Identity(), 20, 16)
	if err != nil {
		t.Fatalf("WarpPerspective: %v", err)
	}
	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel %d = %d, want %d", i, out.Pix[i], src.Pix[i])
		}
	}
}

func TestWarpTranslation(t *testing.T) {
	src := uniformGray(30, 30, 0)
	src.Pix[10*src.Stride+10] = 255

	// Translate +5 in x: the bright pixel lands at (15, 10).
	h := geometry.Homography{1, 0, 5, 0, 1, 0, 0, 0, 1}
	out, err := WarpPerspective(src, h, 30, 30)
	if err != nil {
		t.Fatalf("WarpPerspective: %v", err)
	}
	if got := out.Pix[10*out.Stride+15]; got != 255 {
		t.Errorf("translated pixel = %d, want 255", got)
	}
	if got := out.Pix[10*out.Stride+10]; got != 0 {
		t.Errorf("origin pixel = %d, want 0", got)
	}
}

func markerTestOptions() MarkerOptions {
	opts := DefaultMarkerOptions()
	opts.ApplyErodeSubtract = false
	opts.RescaleRange = [2]int{90, 100}
	return opts
}

func TestMarkerAlignerFindsFourMarkers(t *testing.T) {
	marker := checkerboard(12, 12, 3)
	page := uniformGray(200, 240, 255)
	paste(page, marker, 10, 10)
	paste(page, marker, 178, 10)
	paste(page, marker, 10, 218)
	paste(page, marker, 178, 218)

	m := NewMarkerAligner(marker, markerTestOptions())
	res, err := m.Apply(page, "sheet.png")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Marker centers span 168x208; the warp output matches.
	b := res.Image.Bounds()
	if b.Dx() != 168 || b.Dy() != 208 {
		t.Errorf("warped size = %dx%d, want 168x208", b.Dx(), b.Dy())
	}
	if res.Transform == nil {
		t.Fatal("Transform = nil, want homography")
	}
	got := res.Transform.ApplyPoint(geometry.Pt(16, 16))
	if math.Abs(got.X) > 1e-6 || math.Abs(got.Y) > 1e-6 {
		t.Errorf("top-left center maps to (%v, %v), want (0, 0)", got.X, got.Y)
	}

	corners := m.Corners()
	want := [4]geometry.Point{{X: 16, Y: 16}, {X: 184, Y: 16}, {X: 184, Y: 224}, {X: 16, Y: 224}}
	if corners != want {
		t.Errorf("Corners() = %v, want %v", corners, want)
	}
	if m.BestScale() != 1.0 {
		t.Errorf("BestScale() = %v, want 1.0", m.BestScale())
	}
}

func TestMarkerAlignerUsesSweepScaleForQuadrants(t *testing.T) {
	ref := checkerboard(100, 100, 50)
	// 58 percent wins the sweep. Converting the winning scale through a
	// float and back truncates 58 to 57, so the quadrant pass would run
	// with a 57 pixel marker and shift every center by half a pixel.
	small := imagingx.Resize(ref, 58, 58)

	page := uniformGray(300, 300, 255)
	paste(page, small, 20, 20)
	paste(page, small, 222, 20)
	paste(page, small, 20, 222)
	paste(page, small, 222, 222)

	opts := DefaultMarkerOptions()
	opts.ApplyErodeSubtract = false
	opts.RescaleRange = [2]int{55, 60}
	opts.ScaleSteps = 5

	m := NewMarkerAligner(ref, opts)
	res, err := m.Apply(page, "sheet.png")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.BestScale() != 0.58 {
		t.Errorf("BestScale() = %v, want 0.58", m.BestScale())
	}
	want := [4]geometry.Point{{X: 49, Y: 49}, {X: 251, Y: 49}, {X: 251, Y: 251}, {X: 49, Y: 251}}
	if m.Corners() != want {
		t.Errorf("Corners() = %v, want %v", m.Corners(), want)
	}
	if b := res.Image.Bounds(); b.Dx() != 202 || b.Dy() != 202 {
		t.Errorf("warped size = %dx%d, want 202x202", b.Dx(), b.Dy())
	}
}

func TestMarkerAlignerRejectsMissingMarker(t *testing.T) {
	marker := checkerboard(12, 12, 3)
	page := uniformGray(200, 240, 255)
	paste(page, marker, 10, 10)
	paste(page, marker, 178, 10)
	paste(page, marker, 10, 218)
	// Bottom-right marker missing.

	m := NewMarkerAligner(marker, markerTestOptions())
	_, err := m.Apply(page, "sheet.png")
	if !errors.Is(err, ErrMarkersNotFound) {
		t.Fatalf("Apply error = %v, want ErrMarkersNotFound", err)
	}
}

func TestMarkerAlignerRejectsBlankPage(t *testing.T) {
	marker := checkerboard(12, 12, 3)
	page := uniformGray(200, 240, 255)

	m := NewMarkerAligner(marker, markerTestOptions())
	_, err := m.Apply(page, "sheet.png")
	if !errors.Is(err, ErrMarkersNotFound) {
		t.Fatalf("Apply error = %v, want ErrMarkersNotFound", err)
	}
}

// drawBar paints a full-height bright vertical bar covering columns
// [x0, x1).
func drawBar(g *image.Gray, x0, x1 int) {
	b := g.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := x0; x < x1; x++ {
			g.Pix[y*g.Stride+x] = 255
		}
	}
}

func shiftTestBlock() *template.FieldBlock {
	return &template.FieldBlock{
		Name:       "Block1",
		Origin:     [2]float64{50, 10},
		Dimensions: [2]float64{60, 40},
	}
}

func TestBlockShiftAligned(t *testing.T) {
	profile := image.NewGray(image.Rect(0, 0, 200, 100))
	// Borders where the zero-shift windows expect them.
	drawBar(profile, 47, 52)
	drawBar(profile, 108, 113)

	if got := BlockShift(profile, shiftTestBlock(), DefaultAlignParams()); got != 0 {
		t.Errorf("shift = %d, want 0", got)
	}
}

func TestBlockShiftDriftedRight(t *testing.T) {
	profile := image.NewGray(image.Rect(0, 0, 200, 100))
	// Left border sits four pixels right of the zero-shift window; the
	// right border region stays covered so only the left side pulls.
	drawBar(profile, 54, 59)
	drawBar(profile, 108, 118)

	if got := BlockShift(profile, shiftTestBlock(), DefaultAlignParams()); got != 4 {
		t.Errorf("shift = %d, want 4", got)
	}
}

func TestBlockShiftDriftedLeft(t *testing.T) {
	profile := image.NewGray(image.Rect(0, 0, 200, 100))
	drawBar(profile, 40, 52)
	drawBar(profile, 102, 107)

	if got := BlockShift(profile, shiftTestBlock(), DefaultAlignParams()); got != -3 {
		t.Errorf("shift = %d, want -3", got)
	}
}

func TestBlockShiftEmptyProfile(t *testing.T) {
	profile := image.NewGray(image.Rect(0, 0, 200, 100))
	if got := BlockShift(profile, shiftTestBlock(), DefaultAlignParams()); got != 0 {
		t.Errorf("shift = %d, want 0", got)
	}
}

func TestBuildVerticalProfileKeepsVerticalBars(t *testing.T) {
	page := uniformGray(60, 80, 255)
	// Two wide dark vertical bars, as printed block borders appear after
	// page normalization.
	for y := 0; y < 80; y++ {
		for x := 10; x < 22; x++ {
			page.Pix[y*page.Stride+x] = 0
		}
		for x := 40; x < 52; x++ {
			page.Pix[y*page.Stride+x] = 0
		}
	}

	profile := BuildVerticalProfile(page, 0.7)
	if got := profile.Pix[40*profile.Stride+18]; got != 255 {
		t.Errorf("bar center = %d, want 255", got)
	}
	if got := profile.Pix[40*profile.Stride+34]; got != 0 {
		t.Errorf("gap between bars = %d, want 0", got)
	}
	if got := profile.Pix[40*profile.Stride+5]; got != 0 {
		t.Errorf("margin = %d, want 0", got)
	}
}
