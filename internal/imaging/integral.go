package imaging

import "image"

// Integral holds summed-area tables of an image and of its squared
// intensities, allowing O(1) window sum and variance queries during
// template matching.
type Integral struct {
	W, H int
	sum  []float64
	sq   []float64
}

// NewIntegral builds the summed-area tables for g.
func NewIntegral(g *image.Gray) *Integral {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	it := &Integral{W: w, H: h, sum: make([]float64, w*h), sq: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		var rowSum, rowSq float64
		for x := 0; x < w; x++ {
			v := float64(g.Pix[y*g.Stride+x])
			rowSum += v
			rowSq += v * v
			off := y*w + x
			if y == 0 {
				it.sum[off] = rowSum
				it.sq[off] = rowSq
			} else {
				it.sum[off] = it.sum[off-w] + rowSum
				it.sq[off] = it.sq[off-w] + rowSq
			}
		}
	}
	return it
}

// Sum returns the intensity sum over the inclusive rectangle
// [x0,x1] x [y0,y1].
func (it *Integral) Sum(x0, y0, x1, y1 int) float64 {
	return tableSum(it.sum, it.W, x0, y0, x1, y1)
}

// SumSq returns the squared-intensity sum over the inclusive rectangle.
func (it *Integral) SumSq(x0, y0, x1, y1 int) float64 {
	return tableSum(it.sq, it.W, x0, y0, x1, y1)
}

func tableSum(t []float64, w, x0, y0, x1, y1 int) float64 {
	if x0 > x1 || y0 > y1 {
		return 0
	}
	at := func(x, y int) float64 {
		if x < 0 || y < 0 {
			return 0
		}
		return t[y*w+x]
	}
	return at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
}

// RegionMean returns the mean intensity of g over r, clamped to the image
// bounds. An empty intersection yields 0.
func RegionMean(g *image.Gray, r image.Rectangle) float64 {
	r = r.Intersect(g.Bounds())
	if r.Empty() {
		return 0
	}
	var sum float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g.Pix[y*g.Stride+r.Min.X : y*g.Stride+r.Max.X]
		for _, v := range row {
			sum += float64(v)
		}
	}
	return sum / float64(r.Dx()*r.Dy())
}
