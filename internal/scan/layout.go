package scan

import (
	"image"
	"strconv"

	imagingx "github.com/omr-tools/omr-scan/internal/imaging"
	"github.com/omr-tools/omr-scan/internal/template"
)

// DrawTemplateLayout renders the block and bubble geometry of t over the
// page for visual inspection. Each block gets a stable palette color;
// shifted selects whether block shifts are applied, and drawVals prints
// the measured mean intensity inside every bubble box.
func DrawTemplateLayout(g *image.Gray, t *template.Template, shifted, drawVals bool) *image.NRGBA {
	out := imagingx.GrayToNRGBA(g)
	palette := imagingx.BlockPalette(len(t.FieldBlocks))
	for i, block := range t.FieldBlocks {
		col := palette[i]
		shift := 0.0
		if shifted {
			shift = block.Shift
		}
		x0 := int(block.Origin[0] + shift)
		y0 := int(block.Origin[1])
		imagingx.DrawRect(out, image.Rect(
			x0, y0,
			x0+int(block.Dimensions[0]), y0+int(block.Dimensions[1])), col, 3)

		bw := int(block.BubbleDimensions[0])
		bh := int(block.BubbleDimensions[1])
		for _, strip := range block.Strips {
			for _, b := range strip {
				bx := int(b.X + shift)
				by := int(b.Y)
				imagingx.DrawRect(out, image.Rect(
					bx+bw/10, by+bh/10,
					bx+bw-bw/10, by+bh-bh/10), imagingx.ColorGray, -1)
				if drawVals {
					mean := imagingx.RegionMean(g, image.Rect(bx, by, bx+bw, by+bh))
					imagingx.DrawString(out, bx+2, by+bh*2/3,
						strconv.Itoa(int(mean)), imagingx.ColorBlack)
				}
			}
		}
		if shifted {
			imagingx.DrawString(out, x0, y0-4, block.Name, col)
		}
	}
	return out
}
