package imaging

import "image"

// ErodeRect applies a rectangular minimum filter of size kw x kh.
// The kernel is anchored at its center; pixels outside the image are
// ignored rather than padded.
func ErodeRect(g *image.Gray, kw, kh int) *image.Gray {
	return rankFilter(g, kw, kh, true)
}

// DilateRect applies a rectangular maximum filter of size kw x kh.
func DilateRect(g *image.Gray, kw, kh int) *image.Gray {
	return rankFilter(g, kw, kh, false)
}

// OpenRect erodes then dilates with the same rectangular kernel, repeated
// iterations times. A tall thin kernel isolates vertical strokes such as
// field block borders.
func OpenRect(g *image.Gray, kw, kh, iterations int) *image.Gray {
	out := g
	for i := 0; i < iterations; i++ {
		out = ErodeRect(out, kw, kh)
	}
	for i := 0; i < iterations; i++ {
		out = DilateRect(out, kw, kh)
	}
	return out
}

func rankFilter(g *image.Gray, kw, kh int, min bool) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	ox, oy := kw/2, kh/2

	// Horizontal pass then vertical pass; a rectangular min/max filter is
	// separable.
	mid := image.NewGray(g.Bounds())
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x := 0; x < w; x++ {
			x0, x1 := x-ox, x-ox+kw
			if x0 < 0 {
				x0 = 0
			}
			if x1 > w {
				x1 = w
			}
			best := row[x0]
			for i := x0 + 1; i < x1; i++ {
				if (min && row[i] < best) || (!min && row[i] > best) {
					best = row[i]
				}
			}
			mid.Pix[y*mid.Stride+x] = best
		}
	}
	out := image.NewGray(g.Bounds())
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			y0, y1 := y-oy, y-oy+kh
			if y0 < 0 {
				y0 = 0
			}
			if y1 > h {
				y1 = h
			}
			best := mid.Pix[y0*mid.Stride+x]
			for i := y0 + 1; i < y1; i++ {
				if v := mid.Pix[i*mid.Stride+x]; (min && v < best) || (!min && v > best) {
					best = v
				}
			}
			out.Pix[y*out.Stride+x] = best
		}
	}
	return out
}
