package scan

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/omr-tools/omr-scan/internal/config"
	imagingx "github.com/omr-tools/omr-scan/internal/imaging"
)

// Run collects the debug image stacks of a single sheet read, keyed by
// save level. A fresh Run (or a Reset one) is required per image; the
// pipeline never stores stack state anywhere else.
type Run struct {
	cfg    *config.Config
	stacks map[int][]image.Image
}

// NewRun prepares an empty debug collection for one sheet.
func NewRun(cfg *config.Config) *Run {
	r := &Run{cfg: cfg}
	r.Reset()
	return r
}

// Reset drops all collected images so the Run can serve the next sheet.
func (r *Run) Reset() {
	if r == nil {
		return
	}
	r.stacks = make(map[int][]image.Image)
}

// Append records img at the given level. Images above the configured
// save level are dropped immediately; a nil Run discards everything.
func (r *Run) Append(level int, img image.Image) {
	if r == nil || level > r.cfg.Outputs.SaveImageLevel {
		return
	}
	r.stacks[level] = append(r.stacks[level], img)
}

// SaveStacks writes one horizontally stacked image per populated level
// up to the configured save level, named after the sheet.
func (r *Run) SaveStacks(dir, name string) error {
	if r == nil {
		return nil
	}
	for level := 1; level <= r.cfg.Outputs.SaveImageLevel; level++ {
		imgs := r.stacks[level]
		if len(imgs) == 0 {
			continue
		}
		stack := imagingx.HStack(imgs, r.cfg.Dimensions.DisplayHeight)
		path := filepath.Join(dir, fmt.Sprintf("%s_stack_%d.png", name, level))
		if err := imagingx.Save(path, stack); err != nil {
			return fmt.Errorf("save stack level %d: %w", level, err)
		}
	}
	return nil
}
