// Package template models the geometric description of a bubble sheet
// layout: field blocks, their bubble grids, and the preprocessor chain
// declared alongside them.
//
// A Template is built once per sheet layout and treated as read-only by
// the pipeline, which clones it before applying the per-image coordinate
// transform and block shifts. Sharing one Template across concurrent
// workers is therefore safe.
package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Field block direction values.
const (
	DirectionHorizontal = "horizontal"
	DirectionVertical   = "vertical"
)

// Known field types and the bubble values they imply.
const (
	TypeMCQ4     = "QTYPE_MCQ4"
	TypeMCQ5     = "QTYPE_MCQ5"
	TypeInt      = "QTYPE_INT"
	TypeIntFrom1 = "QTYPE_INT_FROM_1"
	TypeCustom   = "QTYPE_CUSTOM"
)

// LegacyQRBlockName marks the pre-fieldType convention for QR identity
// blocks: a block with this name and a single placeholder bubble value.
const LegacyQRBlockName = "QR_Code"

// Bubble is one selectable mark position tied to exactly one answer
// value of one field label.
type Bubble struct {
	X, Y       float64
	FieldLabel string
	FieldValue string
}

// FieldBlock is a named group of bubbles sharing geometry rules.
//
// Shift is transient per-image state: the local aligner writes it on the
// pipeline's clone and bubble reads add it on the fly; stored bubble
// coordinates are never shifted in place.
type FieldBlock struct {
	Name             string
	Origin           [2]float64
	Dimensions       [2]float64
	BubbleDimensions [2]float64
	Direction        string
	FieldType        string
	FieldLabels      []string
	BubbleValues     []string
	BubblesGap       float64
	LabelsGap        float64

	Shift float64

	// Strips holds one ordered bubble strip per field label.
	Strips [][]Bubble
}

// Template is the full geometric description of a sheet layout.
type Template struct {
	PageDimensions   [2]float64
	BubbleDimensions [2]float64
	FieldBlocks      []*FieldBlock
	PreProcessors    []PreProcessorSpec
	CustomLabels     map[string][]string
	EmptyVal         string
}

// PreProcessorSpec names a preprocessor from the template file together
// with its raw options.
type PreProcessorSpec struct {
	Name    string
	Options map[string]any
}

// IsQR reports whether the block is a QR identity field, either via
// fieldType or the legacy single-placeholder naming convention.
func (b *FieldBlock) IsQR() bool {
	if b.FieldType == TypeCustom {
		return true
	}
	return b.Name == LegacyQRBlockName && len(b.BubbleValues) == 1
}

// IsRoll reports whether the block holds roll-number/identity digits,
// which routes multi-marks on it to the manual review bucket.
func (b *FieldBlock) IsRoll() bool {
	return len(b.Name) >= 4 && strings.EqualFold(b.Name[:4], "roll")
}

// buildStrips generates the bubble grid from the block geometry: one
// strip per field label, bubbles spaced by BubblesGap along the block
// direction and labels spaced by LabelsGap across it.
func (b *FieldBlock) buildStrips() {
	b.Strips = make([][]Bubble, 0, len(b.FieldLabels))
	for li, label := range b.FieldLabels {
		strip := make([]Bubble, 0, len(b.BubbleValues))
		for vi, value := range b.BubbleValues {
			var x, y float64
			if b.Direction == DirectionVertical {
				x = b.Origin[0]
				y = b.Origin[1] + float64(li)*b.LabelsGap + float64(vi)*b.BubblesGap
			} else {
				x = b.Origin[0] + float64(vi)*b.BubblesGap
				y = b.Origin[1] + float64(li)*b.LabelsGap
			}
			strip = append(strip, Bubble{X: x, Y: y, FieldLabel: label, FieldValue: value})
		}
		b.Strips = append(b.Strips, strip)
	}

	// Block extent derives from the grid when not given explicitly.
	if b.Dimensions[0] == 0 && b.Dimensions[1] == 0 {
		var spanAlong, spanAcross float64
		if n := len(b.BubbleValues); n > 1 {
			spanAlong = float64(n-1) * b.BubblesGap
		}
		if n := len(b.FieldLabels); n > 1 {
			spanAcross = float64(n-1) * b.LabelsGap
		}
		if b.Direction == DirectionVertical {
			b.Dimensions = [2]float64{b.BubbleDimensions[0], spanAlong + spanAcross + b.BubbleDimensions[1]}
		} else {
			b.Dimensions = [2]float64{spanAlong + b.BubbleDimensions[0], spanAcross + b.BubbleDimensions[1]}
		}
	}
}

// Clone deep-copies the template so one sheet's coordinate transform and
// shifts cannot leak into the next.
func (t *Template) Clone() *Template {
	out := &Template{
		PageDimensions:   t.PageDimensions,
		BubbleDimensions: t.BubbleDimensions,
		EmptyVal:         t.EmptyVal,
		PreProcessors:    t.PreProcessors,
	}
	if t.CustomLabels != nil {
		out.CustomLabels = make(map[string][]string, len(t.CustomLabels))
		for k, v := range t.CustomLabels {
			out.CustomLabels[k] = append([]string(nil), v...)
		}
	}
	out.FieldBlocks = make([]*FieldBlock, len(t.FieldBlocks))
	for i, b := range t.FieldBlocks {
		nb := *b
		nb.FieldLabels = append([]string(nil), b.FieldLabels...)
		nb.BubbleValues = append([]string(nil), b.BubbleValues...)
		nb.Strips = make([][]Bubble, len(b.Strips))
		for j, strip := range b.Strips {
			nb.Strips[j] = append([]Bubble(nil), strip...)
		}
		out.FieldBlocks[i] = &nb
	}
	return out
}

// bubbleValuesForType maps a field type to its implied value set.
func bubbleValuesForType(fieldType string) ([]string, bool) {
	switch fieldType {
	case TypeMCQ4:
		return []string{"A", "B", "C", "D"}, true
	case TypeMCQ5:
		return []string{"A", "B", "C", "D", "E"}, true
	case TypeInt:
		return []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}, true
	case TypeIntFrom1:
		return []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "0"}, true
	default:
		return nil, false
	}
}

// expandLabelRange expands the "q1..q10" shorthand into the full label
// list; plain labels pass through unchanged.
func expandLabelRange(label string) ([]string, error) {
	idx := strings.Index(label, "..")
	if idx < 0 {
		return []string{label}, nil
	}
	lo, hi := label[:idx], label[idx+2:]
	prefix := strings.TrimRight(lo, "0123456789")
	if !strings.HasPrefix(hi, prefix) {
		return nil, fmt.Errorf("label range %q: mismatched prefixes", label)
	}
	start, err := strconv.Atoi(lo[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("label range %q: %w", label, err)
	}
	end, err := strconv.Atoi(hi[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("label range %q: %w", label, err)
	}
	if end < start {
		return nil, fmt.Errorf("label range %q: descending", label)
	}
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out, nil
}
