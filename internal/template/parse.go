package template

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

type templateJSON struct {
	PageDimensions   [2]float64                `json:"pageDimensions"`
	BubbleDimensions [2]float64                `json:"bubbleDimensions"`
	FieldBlocks      map[string]fieldBlockJSON `json:"fieldBlocks"`
	PreProcessors    []preProcessorJSON        `json:"preProcessors"`
	CustomLabels     map[string][]string       `json:"customLabels"`
	EmptyVal         *string                   `json:"emptyVal"`
}

type fieldBlockJSON struct {
	Origin           [2]float64  `json:"origin"`
	Dimensions       *[2]float64 `json:"dimensions"`
	BubbleDimensions *[2]float64 `json:"bubbleDimensions"`
	BubblesGap       float64     `json:"bubblesGap"`
	LabelsGap        float64     `json:"labelsGap"`
	Direction        string      `json:"direction"`
	FieldType        string      `json:"fieldType"`
	FieldLabels      []string    `json:"fieldLabels"`
	BubbleValues     []string    `json:"bubbleValues"`
}

type preProcessorJSON struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options"`
}

// Load reads and validates a template JSON file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Parse(data)
}

// Parse builds a Template from template JSON, expanding field types into
// bubble values, label ranges into label lists, and block geometry into
// bubble grids.
//
// Field blocks are ordered by name for deterministic iteration; JSON
// objects carry no usable ordering.
func Parse(data []byte) (*Template, error) {
	var tj templateJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if tj.PageDimensions[0] <= 0 || tj.PageDimensions[1] <= 0 {
		return nil, fmt.Errorf("template: pageDimensions must be positive, got %v", tj.PageDimensions)
	}
	if len(tj.FieldBlocks) == 0 {
		return nil, fmt.Errorf("template: no fieldBlocks defined")
	}

	t := &Template{
		PageDimensions:   tj.PageDimensions,
		BubbleDimensions: tj.BubbleDimensions,
		CustomLabels:     tj.CustomLabels,
	}
	if tj.EmptyVal != nil {
		t.EmptyVal = *tj.EmptyVal
	}
	for _, p := range tj.PreProcessors {
		t.PreProcessors = append(t.PreProcessors, PreProcessorSpec(p))
	}

	names := make([]string, 0, len(tj.FieldBlocks))
	for name := range tj.FieldBlocks {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]string)
	for _, name := range names {
		bj := tj.FieldBlocks[name]
		b, err := buildBlock(name, bj, t)
		if err != nil {
			return nil, err
		}
		for _, label := range b.FieldLabels {
			if prev, ok := seen[label]; ok {
				return nil, fmt.Errorf("template: field label %q appears in blocks %q and %q", label, prev, name)
			}
			seen[label] = name
		}
		t.FieldBlocks = append(t.FieldBlocks, b)
	}
	return t, nil
}

func buildBlock(name string, bj fieldBlockJSON, t *Template) (*FieldBlock, error) {
	b := &FieldBlock{
		Name:             name,
		Origin:           bj.Origin,
		BubblesGap:       bj.BubblesGap,
		LabelsGap:        bj.LabelsGap,
		Direction:        bj.Direction,
		FieldType:        bj.FieldType,
		BubbleDimensions: t.BubbleDimensions,
	}
	if bj.Dimensions != nil {
		b.Dimensions = *bj.Dimensions
	}
	if bj.BubbleDimensions != nil {
		b.BubbleDimensions = *bj.BubbleDimensions
	}
	if b.Direction == "" {
		b.Direction = DirectionHorizontal
	}
	if b.Direction != DirectionHorizontal && b.Direction != DirectionVertical {
		return nil, fmt.Errorf("template: block %q: unknown direction %q", name, b.Direction)
	}

	for _, label := range bj.FieldLabels {
		expanded, err := expandLabelRange(label)
		if err != nil {
			return nil, fmt.Errorf("template: block %q: %w", name, err)
		}
		b.FieldLabels = append(b.FieldLabels, expanded...)
	}
	if len(b.FieldLabels) == 0 {
		return nil, fmt.Errorf("template: block %q: no fieldLabels", name)
	}

	if values, ok := bubbleValuesForType(b.FieldType); ok {
		b.BubbleValues = values
	} else {
		b.BubbleValues = bj.BubbleValues
	}
	if len(b.BubbleValues) == 0 {
		if b.FieldType == TypeCustom {
			// QR blocks carry a placeholder value; the grid is unused.
			b.BubbleValues = []string{LegacyQRBlockName}
		} else {
			return nil, fmt.Errorf("template: block %q: no bubbleValues and no known fieldType", name)
		}
	}

	b.buildStrips()
	return b, nil
}
