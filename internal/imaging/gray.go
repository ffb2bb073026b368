package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// ToGray converts any image to an 8-bit grayscale buffer using the
// standard luminance weights.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.SetGray(x-bounds.Min.X, y-bounds.Min.Y,
				color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return out
}

// CloneGray returns an independent copy of g.
func CloneGray(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Bounds())
	copy(out.Pix, g.Pix)
	return out
}

// Normalize stretches intensities linearly so the darkest pixel maps to 0
// and the brightest to 255. A constant image is returned unchanged.
func Normalize(g *image.Gray) *image.Gray {
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return CloneGray(g)
	}
	out := image.NewGray(g.Bounds())
	scale := 255.0 / float64(hi-lo)
	for i, v := range g.Pix {
		out.Pix[i] = uint8(float64(v-lo)*scale + 0.5)
	}
	return out
}

// Invert flips intensities (255 - v).
func Invert(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}

// TruncateAbove caps every intensity at max, leaving darker pixels
// untouched.
func TruncateAbove(g *image.Gray, max uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if v > max {
			v = max
		}
		out.Pix[i] = v
	}
	return out
}

// BinarizeAbove maps intensities strictly above thr to 255 and the rest
// to 0.
func BinarizeAbove(g *image.Gray, thr uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if v > thr {
			out.Pix[i] = 255
		}
	}
	return out
}

// ErodeSubtract flattens background shading by subtracting an eroded copy
// of the image from itself, saturating at 0. The erosion approximates a
// repeated 5x5 minimum filter; iterations controls how aggressively the
// background is estimated.
func ErodeSubtract(g *image.Gray, iterations int) *image.Gray {
	eroded := image.Image(g)
	for i := 0; i < iterations; i++ {
		eroded = effect.Erode(eroded, 2)
	}
	eg := ToGray(eroded)
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		e := eg.Pix[i]
		if v > e {
			out.Pix[i] = v - e
		}
	}
	return out
}

// AdjustGamma applies gamma correction; values below 1 darken midtones,
// which makes grid lines and column borders stand out before morphology.
func AdjustGamma(g *image.Gray, gamma float64) *image.Gray {
	return ToGray(imaging.AdjustGamma(g, gamma))
}

// Resize scales g to exactly width x height.
func Resize(g *image.Gray, width, height int) *image.Gray {
	if g.Bounds().Dx() == width && g.Bounds().Dy() == height {
		return g
	}
	return ToGray(imaging.Resize(g, width, height, imaging.Lanczos))
}

// ResizeToHeight scales g to the given height preserving aspect ratio.
func ResizeToHeight(g *image.Gray, height int) *image.Gray {
	if g.Bounds().Dy() == height {
		return g
	}
	return ToGray(imaging.Resize(g, 0, height, imaging.Lanczos))
}

// ResizeToWidth scales g to the given width preserving aspect ratio.
func ResizeToWidth(g *image.Gray, width int) *image.Gray {
	if g.Bounds().Dx() == width {
		return g
	}
	return ToGray(imaging.Resize(g, width, 0, imaging.Lanczos))
}
