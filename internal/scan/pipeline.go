package scan

import (
	"fmt"
	"image"
	"log"
	"math"
	"os"

	"github.com/omr-tools/omr-scan/internal/align"
	"github.com/omr-tools/omr-scan/internal/config"
	"github.com/omr-tools/omr-scan/internal/geometry"
	imagingx "github.com/omr-tools/omr-scan/internal/imaging"
	"github.com/omr-tools/omr-scan/internal/template"
	"github.com/omr-tools/omr-scan/internal/threshold"
)

// overlayAlpha blends the annotation layer over the clean page.
const overlayAlpha = 0.65

var debugEnabled = os.Getenv("OMR_SCAN_LOG_LEVEL") == "debug"

func debugf(format string, args ...any) {
	if debugEnabled {
		log.Printf(format, args...)
	}
}

// Pipeline reads sheets against one template and tuning configuration.
// The template is treated as read-only; every Process call works on a
// clone.
type Pipeline struct {
	cfg *config.Config
	tpl *template.Template
	pre []align.Preprocessor
	qr  QRDecoder
}

// NewPipeline assembles a pipeline. pre is the ordered preprocessor
// chain (may be empty); a nil qr falls back to the default zxing-backed
// decoder.
func NewPipeline(cfg *config.Config, tpl *template.Template, pre []align.Preprocessor, qr QRDecoder) *Pipeline {
	if qr == nil {
		qr = NewQRDecoder()
	}
	return &Pipeline{cfg: cfg, tpl: tpl, pre: pre, qr: qr}
}

// ExcludedPaths aggregates the auxiliary files consumed by the
// preprocessor chain, relative to the input directory.
func (p *Pipeline) ExcludedPaths() []string {
	var out []string
	for _, pr := range p.pre {
		out = append(out, pr.ExcludedPaths()...)
	}
	return out
}

// ProcessFile loads the image at path and runs Process on it.
func (p *Pipeline) ProcessFile(path string, run *Run) (*Result, error) {
	img, err := imagingx.Load(path)
	if err != nil {
		return nil, err
	}
	return p.Process(img, path, run)
}

// Process reads one sheet image and returns its responses together with
// the annotated page. run may be nil when no debug output is wanted.
func (p *Pipeline) Process(img image.Image, path string, run *Run) (*Result, error) {
	g := imagingx.ToGray(img)
	g = imagingx.Resize(g, p.cfg.Dimensions.ProcessingWidth, p.cfg.Dimensions.ProcessingHeight)

	var transform *geometry.Homography
	for _, pr := range p.pre {
		res, err := pr.Apply(g, path)
		if err != nil {
			return nil, fmt.Errorf("preprocessor %s: %w", pr.Name(), err)
		}
		g = res.Image
		if res.Transform != nil {
			transform = res.Transform
		}
		run.Append(4, g)
	}

	warpW, warpH := g.Bounds().Dx(), g.Bounds().Dy()
	pageW := int(p.tpl.PageDimensions[0])
	pageH := int(p.tpl.PageDimensions[1])
	g = imagingx.Resize(g, pageW, pageH)
	g = imagingx.Normalize(g)
	run.Append(5, g)

	tpl := p.tpl.Clone()
	if transform != nil {
		sx := float64(pageW) / float64(warpW)
		sy := float64(pageH) / float64(warpH)
		transformTemplate(tpl, *transform, sx, sy)
	}

	if p.cfg.AlignmentParams.AutoAlign {
		profile := align.AlignBlocks(g, tpl, p.cfg.ThresholdParams.GammaLow, align.AlignParams{
			MatchCol:  p.cfg.AlignmentParams.MatchCol,
			MaxSteps:  p.cfg.AlignmentParams.MaxSteps,
			Stride:    p.cfg.AlignmentParams.Stride,
			Thickness: p.cfg.AlignmentParams.Thickness,
		})
		run.Append(3, profile)
	}
	if run != nil && p.cfg.Outputs.SaveImageLevel >= 2 {
		run.Append(2, DrawTemplateLayout(g, tpl, false, false))
		run.Append(2, DrawTemplateLayout(g, tpl, true, true))
	}

	stripVals, stripStds, allVals := measureBubbles(g, tpl)

	params := threshold.Params{
		PageTypeWhite:    p.cfg.ThresholdParams.PageTypeForThreshold == config.PageTypeWhite,
		MinJump:          p.cfg.ThresholdParams.MinJump,
		JumpDelta:        p.cfg.ThresholdParams.JumpDelta,
		MinGap:           p.cfg.ThresholdParams.MinGap,
		ConfidentSurplus: p.cfg.ThresholdParams.ConfidentSurplus,
	}
	globalStd := threshold.Global(stripStds, 1, params).Threshold
	global := threshold.Global(allVals, 4, params)
	debugf("thresholding %s: global %.2f, std threshold %.2f", path, global.Threshold, globalStd)

	marked := imagingx.GrayToNRGBA(g)
	responses := make(map[string]string)
	multiMarked, multiRoll := false, false

	stripIdx := 0
	for _, block := range tpl.FieldBlocks {
		if block.IsQR() {
			p.decodeQRField(g, marked, block, tpl.EmptyVal, responses)
			continue
		}
		bw := block.BubbleDimensions[0]
		bh := block.BubbleDimensions[1]
		for _, strip := range block.Strips {
			vals := stripVals[stripIdx]
			noOutliers := stripStds[stripIdx] < globalStd
			local := threshold.Local(vals, global.Threshold, noOutliers, params)
			stripIdx++

			var detected []template.Bubble
			for bi, b := range strip {
				x := b.X + block.Shift
				y := b.Y
				if local > vals[bi] {
					detected = append(detected, b)
					imagingx.DrawRect(marked, image.Rect(
						int(x+bw/12), int(y+bh/12),
						int(x+bw-bw/12), int(y+bh-bh/12)), imagingx.ColorDarkGray, 3)
					imagingx.DrawString(marked, int(x), int(y), b.FieldValue, imagingx.ColorInk)
				} else {
					imagingx.DrawRect(marked, image.Rect(
						int(x+bw/10), int(y+bh/10),
						int(x+bw-bw/10), int(y+bh-bh/10)), imagingx.ColorGray, -1)
				}
			}

			for _, b := range detected {
				if prev, ok := responses[b.FieldLabel]; ok {
					responses[b.FieldLabel] = prev + b.FieldValue
					multiMarked = true
					if block.IsRoll() {
						multiRoll = true
					}
				} else {
					responses[b.FieldLabel] = b.FieldValue
				}
			}
			if len(detected) == 0 {
				responses[strip[0].FieldLabel] = tpl.EmptyVal
			}
		}
	}

	mergeCustomLabels(responses, tpl.CustomLabels)

	final := imagingx.BlendOver(marked, imagingx.GrayToNRGBA(g), overlayAlpha)
	run.Append(2, final)

	return &Result{
		File:            path,
		Responses:       responses,
		MultiMarked:     multiMarked,
		MultiRoll:       multiRoll,
		GlobalThreshold: global.Threshold,
		Marked:          final,
	}, nil
}

// measureBubbles samples the mean intensity under every bubble of every
// non-QR block, strip by strip, applying the block shifts. It returns
// the per-strip value lists, the per-strip standard deviations, and the
// flattened values for the global threshold.
func measureBubbles(g *image.Gray, t *template.Template) (stripVals [][]float64, stripStds, allVals []float64) {
	for _, block := range t.FieldBlocks {
		if block.IsQR() {
			continue
		}
		bw := int(block.BubbleDimensions[0])
		bh := int(block.BubbleDimensions[1])
		for _, strip := range block.Strips {
			vals := make([]float64, 0, len(strip))
			for _, b := range strip {
				x := int(b.X + block.Shift)
				y := int(b.Y)
				vals = append(vals, imagingx.RegionMean(g, image.Rect(x, y, x+bw, y+bh)))
			}
			stripVals = append(stripVals, vals)
			stripStds = append(stripStds, threshold.Std(vals))
			allVals = append(allVals, vals...)
		}
	}
	return stripVals, stripStds, allVals
}

// transformTemplate maps every block origin and bubble point of t
// through the preprocessor homography and then into page space via the
// resize scale factors. Block dimensions are left as authored.
func transformTemplate(t *template.Template, h geometry.Homography, sx, sy float64) {
	for _, block := range t.FieldBlocks {
		origin := h.ApplyPoint(geometry.Pt(block.Origin[0], block.Origin[1]))
		block.Origin = [2]float64{origin.X * sx, origin.Y * sy}
		for _, strip := range block.Strips {
			for i := range strip {
				pt := h.ApplyPoint(geometry.Pt(strip[i].X, strip[i].Y))
				strip[i].X = pt.X * sx
				strip[i].Y = pt.Y * sy
			}
		}
		if block.IsQR() {
			log.Printf("qr block %s origin transformed to (%.1f, %.1f)",
				block.Name, block.Origin[0], block.Origin[1])
		}
	}
}

// decodeQRField resolves a QR identity block: a padded square window
// around the (shifted) block origin is decoded, the result drawn on the
// annotation. Decode failure degrades to the empty value with a warning,
// never an error.
func (p *Pipeline) decodeQRField(g *image.Gray, marked *image.NRGBA, block *template.FieldBlock, emptyVal string, responses map[string]string) {
	label := "qr_id"
	if len(block.FieldLabels) > 0 {
		label = block.FieldLabels[0]
	}
	if p.qr == nil {
		log.Printf("warning: no QR decoder available, skipping field %s", label)
		responses[label] = emptyVal
		return
	}

	size := int(math.Max(block.BubbleDimensions[0], block.BubbleDimensions[1])) * qrRegionScale
	x := int(block.Origin[0] + block.Shift)
	y := int(block.Origin[1])
	rect := image.Rect(x-size/2, y-size/2, x+size/2, y+size/2).Intersect(g.Bounds())
	if rect.Empty() {
		rect = image.Rect(x, y,
			x+int(block.BubbleDimensions[0]), y+int(block.BubbleDimensions[1])).Intersect(g.Bounds())
	}
	if rect.Empty() {
		log.Printf("warning: qr field %s region outside page", label)
		responses[label] = emptyVal
		return
	}

	region, ok := g.SubImage(rect).(*image.Gray)
	if !ok {
		responses[label] = emptyVal
		return
	}
	res, err := p.qr.Decode(region)
	if err != nil || res.Text == "" {
		log.Printf("warning: qr field %s not decoded: %v", label, err)
		responses[label] = emptyVal
		return
	}

	responses[label] = res.Text
	debugf("qr field %s decoded: %s", label, res.Text)
	if len(res.Corners) >= 4 {
		pts := make([]image.Point, 0, len(res.Corners))
		for _, c := range res.Corners[:4] {
			pts = append(pts, image.Pt(int(c.X)+rect.Min.X, int(c.Y)+rect.Min.Y))
		}
		imagingx.DrawPolyline(marked, pts, true, imagingx.ColorDarkGray, 3)
	}
	preview := res.Text
	if len(preview) > 10 {
		preview = preview[:10] + "..."
	}
	imagingx.DrawString(marked, x, y-10, preview, imagingx.ColorInk)
}
