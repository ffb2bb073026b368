package align

import (
	"image"

	"github.com/omr-tools/omr-scan/internal/geometry"
)

// WarpPerspective renders g through h into a w by h canvas. h maps
// source coordinates to destination coordinates; each destination pixel
// is traced back through the inverse and sampled bilinearly, with
// out-of-bounds samples clamped to the nearest edge pixel.
func WarpPerspective(g *image.Gray, hom geometry.Homography, w, ht int) (*image.Gray, error) {
	inv, err := hom.Invert()
	if err != nil {
		return nil, err
	}

	out := image.NewGray(image.Rect(0, 0, w, ht))
	b := g.Bounds()
	sw, sh := b.Dx(), b.Dy()
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			sx, sy := inv.Apply(float64(x), float64(y))
			out.Pix[y*out.Stride+x] = sampleBilinear(g, sw, sh, sx, sy)
		}
	}
	return out, nil
}

func sampleBilinear(g *image.Gray, w, h int, x, y float64) uint8 {
	x0 := int(x)
	y0 := int(y)
	if x < 0 {
		x0 = -1
	}
	if y < 0 {
		y0 = -1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	p00 := float64(pixClamped(g, w, h, x0, y0))
	p10 := float64(pixClamped(g, w, h, x0+1, y0))
	p01 := float64(pixClamped(g, w, h, x0, y0+1))
	p11 := float64(pixClamped(g, w, h, x0+1, y0+1))

	top := p00 + (p10-p00)*fx
	bot := p01 + (p11-p01)*fx
	v := top + (bot-top)*fy
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func pixClamped(g *image.Gray, w, h, x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= w {
		x = w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= h {
		y = h - 1
	}
	return g.Pix[y*g.Stride+x]
}
