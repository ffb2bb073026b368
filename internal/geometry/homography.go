package geometry

import (
	"fmt"
	"math"
)

// Point is a 2D point in pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for constructing a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance to q.
func (p Point) Distance(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Homography is a 3x3 projective transform stored row-major with the
// bottom-right element fixed to 1 by construction.
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Compute solves for the 3x3 matrix H mapping src[i] -> dst[i] for four
// point correspondences. It builds the standard 8x8 linear system for the
// eight unknowns (h22 = 1) and solves it with Gaussian elimination.
//
// Returns an error when the four source points are degenerate (three or
// more collinear), which makes the system singular.
func Compute(src, dst [4]Point) (Homography, error) {
	var a [8][8]float64
	var b [8]float64
	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y
		r := 2 * i
		// x' = (h00 sx + h01 sy + h02) / (h20 sx + h21 sy + 1)
		a[r][0] = sx
		a[r][1] = sy
		a[r][2] = 1
		a[r][6] = -sx * dx
		a[r][7] = -sy * dx
		b[r] = dx
		// y' = (h10 sx + h11 sy + h12) / (h20 sx + h21 sy + 1)
		a[r+1][3] = sx
		a[r+1][4] = sy
		a[r+1][5] = 1
		a[r+1][6] = -sx * dy
		a[r+1][7] = -sy * dy
		b[r+1] = dy
	}

	h, ok := solve8x8(a, b)
	if !ok {
		return Identity(), fmt.Errorf("degenerate point configuration")
	}
	return Homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, nil
}

// Apply maps (x, y) through the transform.
func (h Homography) Apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

// ApplyPoint maps p through the transform.
func (h Homography) ApplyPoint(p Point) Point {
	x, y := h.Apply(p.X, p.Y)
	return Point{X: x, Y: y}
}

// Invert returns the inverse transform, normalized so the bottom-right
// element is 1. Returns an error for a singular matrix.
func (h Homography) Invert() (Homography, error) {
	// Cofactor expansion of the 3x3 inverse.
	c00 := h[4]*h[8] - h[5]*h[7]
	c01 := h[5]*h[6] - h[3]*h[8]
	c02 := h[3]*h[7] - h[4]*h[6]
	det := h[0]*c00 + h[1]*c01 + h[2]*c02
	if det == 0 {
		return Identity(), fmt.Errorf("singular homography")
	}
	inv := Homography{
		c00, h[2]*h[7] - h[1]*h[8], h[1]*h[5] - h[2]*h[4],
		c01, h[0]*h[8] - h[2]*h[6], h[2]*h[3] - h[0]*h[5],
		c02, h[1]*h[6] - h[0]*h[7], h[0]*h[4] - h[1]*h[3],
	}
	for i := range inv {
		inv[i] /= det
	}
	if inv[8] != 0 && inv[8] != 1 {
		s := inv[8]
		for i := range inv {
			inv[i] /= s
		}
	}
	return inv, nil
}

// OrderCorners orders four corner points into the canonical
// (top-left, top-right, bottom-right, bottom-left) sequence. The top-left
// corner minimizes x+y and the bottom-right maximizes it; the remaining
// two are separated by the sign of y-x.
func OrderCorners(pts [4]Point) [4]Point {
	var out [4]Point
	tl, br := 0, 0
	for i, p := range pts {
		if p.X+p.Y < pts[tl].X+pts[tl].Y {
			tl = i
		}
		if p.X+p.Y > pts[br].X+pts[br].Y {
			br = i
		}
	}
	tr, bl := -1, -1
	for i, p := range pts {
		if i == tl || i == br {
			continue
		}
		if tr == -1 || p.Y-p.X < pts[tr].Y-pts[tr].X {
			if tr != -1 {
				bl = tr
			}
			tr = i
		} else {
			bl = i
		}
	}
	out[0], out[1], out[2], out[3] = pts[tl], pts[tr], pts[br], pts[bl]
	return out
}

func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	// Forward elimination with partial pivoting.
	for col := 0; col < 8; col++ {
		pivot := col
		maxAbs := math.Abs(a[col][col])
		for r := col + 1; r < 8; r++ {
			if v := math.Abs(a[r][col]); v > maxAbs {
				maxAbs = v
				pivot = r
			}
		}
		if maxAbs == 0 {
			return [8]float64{}, false
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}
		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div
		for r := 0; r < 8; r++ {
			if r == col {
				continue
			}
			f := a[r][col]
			if f == 0 {
				continue
			}
			for c := col; c < 8; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	return b, true
}
