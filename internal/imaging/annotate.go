package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay drawing colors for the audit annotation.
var (
	ColorBlack    = color.NRGBA{0, 0, 0, 255}
	ColorDarkGray = color.NRGBA{70, 70, 70, 255}
	ColorGray     = color.NRGBA{130, 130, 130, 255}
	ColorInk      = color.NRGBA{20, 20, 10, 255}
)

// GrayToNRGBA expands a grayscale buffer into an NRGBA canvas for
// annotation drawing.
func GrayToNRGBA(g *image.Gray) *image.NRGBA {
	out := image.NewNRGBA(g.Bounds())
	for y := 0; y < g.Bounds().Dy(); y++ {
		for x := 0; x < g.Bounds().Dx(); x++ {
			v := g.Pix[y*g.Stride+x]
			i := y*out.Stride + x*4
			out.Pix[i] = v
			out.Pix[i+1] = v
			out.Pix[i+2] = v
			out.Pix[i+3] = 255
		}
	}
	return out
}

// DrawRect draws a rectangle outline of the given border thickness, or a
// filled rectangle when thickness is negative.
func DrawRect(dst *image.NRGBA, r image.Rectangle, col color.NRGBA, thickness int) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	if thickness < 0 {
		draw.Draw(dst, r, image.NewUniform(col), image.Point{}, draw.Src)
		return
	}
	for t := 0; t < thickness; t++ {
		inner := image.Rect(r.Min.X+t, r.Min.Y+t, r.Max.X-t, r.Max.Y-t)
		if inner.Dx() <= 0 || inner.Dy() <= 0 {
			return
		}
		for x := inner.Min.X; x < inner.Max.X; x++ {
			dst.SetNRGBA(x, inner.Min.Y, col)
			dst.SetNRGBA(x, inner.Max.Y-1, col)
		}
		for y := inner.Min.Y; y < inner.Max.Y; y++ {
			dst.SetNRGBA(inner.Min.X, y, col)
			dst.SetNRGBA(inner.Max.X-1, y, col)
		}
	}
}

// DrawPolyline connects pts with line segments of the given thickness,
// closing the shape back to the first point when closed is true.
func DrawPolyline(dst *image.NRGBA, pts []image.Point, closed bool, col color.NRGBA, thickness int) {
	if len(pts) < 2 {
		return
	}
	n := len(pts)
	last := n - 1
	if closed {
		last = n
	}
	for i := 0; i < last; i++ {
		drawLine(dst, pts[i], pts[(i+1)%n], col, thickness)
	}
}

func drawLine(dst *image.NRGBA, a, b image.Point, col color.NRGBA, thickness int) {
	// Bresenham with a square brush.
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	x, y := a.X, a.Y
	half := thickness / 2
	for {
		brush := image.Rect(x-half, y-half, x-half+thickness, y-half+thickness)
		DrawRect(dst, brush, col, -1)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// DrawString renders s at the baseline position (x, y) using a compact
// bitmap face. Good enough for bubble values and short previews on the
// audit image.
func DrawString(dst *image.NRGBA, x, y int, s string, col color.NRGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// BlendOver composites overlay onto base at the given opacity
// (0 = base only, 1 = overlay only) and returns a new image. Both images
// must share bounds.
func BlendOver(overlay, base *image.NRGBA, alpha float64) *image.NRGBA {
	out := image.NewNRGBA(base.Bounds())
	for i := range out.Pix {
		if i%4 == 3 {
			out.Pix[i] = 255
			continue
		}
		v := alpha*float64(overlay.Pix[i]) + (1-alpha)*float64(base.Pix[i])
		out.Pix[i] = uint8(v + 0.5)
	}
	return out
}

// BlockPalette returns n visually distinct, stable colors for the
// template layout rendering, spread around the HCL hue circle at fixed
// chroma and lightness.
func BlockPalette(n int) []color.NRGBA {
	out := make([]color.NRGBA, n)
	for i := 0; i < n; i++ {
		h := float64(i) * 360.0 / float64(n)
		c := colorful.Hcl(h, 0.6, 0.55).Clamped()
		r, g, b := c.RGB255()
		out[i] = color.NRGBA{r, g, b, 255}
	}
	return out
}

// HStack lays out images left to right, each resized to the given
// height. Used by the debug image stacks.
func HStack(images []image.Image, height int) *image.NRGBA {
	resized := make([]image.Image, len(images))
	total := 0
	for i, img := range images {
		w := img.Bounds().Dx() * height / max(1, img.Bounds().Dy())
		resized[i] = imaging.Resize(img, w, height, imaging.Lanczos)
		total += w
	}
	out := image.NewNRGBA(image.Rect(0, 0, total, height))
	x := 0
	for _, img := range resized {
		r := image.Rect(x, 0, x+img.Bounds().Dx(), height)
		draw.Draw(out, r, img, img.Bounds().Min, draw.Src)
		x += img.Bounds().Dx()
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
