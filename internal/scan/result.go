package scan

import (
	"image"
	"sort"
)

// Result is the outcome of reading one sheet.
type Result struct {
	// File is the source path the pipeline was given.
	File string `json:"file"`
	// Responses maps every field label (and combined custom label) to
	// its detected value. Unanswered fields carry the template's empty
	// value; multi-marked fields carry the concatenated values.
	Responses map[string]string `json:"responses"`
	// MultiMarked is set when any strip had more than one marked bubble.
	MultiMarked bool `json:"multi_marked"`
	// MultiRoll is set when a multi-mark occurred on a roll/identity
	// block, which routes the sheet to manual review.
	MultiRoll bool `json:"multi_roll"`
	// GlobalThreshold is the sheet-wide intensity cutoff, kept for
	// diagnostics.
	GlobalThreshold float64 `json:"global_threshold"`

	// Marked is the annotated sheet image.
	Marked *image.NRGBA `json:"-"`
}

// mergeCustomLabels fills each combined label with the concatenation of
// its member responses, in declared member order. Labels are merged in
// sorted order so repeated runs produce identical maps.
func mergeCustomLabels(responses map[string]string, custom map[string][]string) {
	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var combined string
		for _, member := range custom[name] {
			combined += responses[member]
		}
		responses[name] = combined
	}
}
