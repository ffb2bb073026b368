// Package config holds the tuning configuration consumed by the sheet
// detection pipeline. Values load from a JSON file layered over the
// defaults, mirroring the shape of the original tuning documents.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Page polarity values for PageTypeForThreshold.
const (
	PageTypeWhite = "white"
	PageTypeBlack = "black"
)

// AlignmentParams tune the optional per-block shift search.
type AlignmentParams struct {
	AutoAlign bool `json:"auto_align"`
	MatchCol  int  `json:"match_col"`
	MaxSteps  int  `json:"max_steps"`
	Stride    int  `json:"stride"`
	Thickness int  `json:"thickness"`
}

// ThresholdParams tune the global and local intensity thresholds.
type ThresholdParams struct {
	PageTypeForThreshold string  `json:"PAGE_TYPE_FOR_THRESHOLD"`
	MinJump              float64 `json:"MIN_JUMP"`
	JumpDelta            float64 `json:"JUMP_DELTA"`
	MinGap               float64 `json:"MIN_GAP"`
	ConfidentSurplus     float64 `json:"CONFIDENT_SURPLUS"`
	GammaLow             float64 `json:"GAMMA_LOW"`
}

// Dimensions control processing and display sizes.
type Dimensions struct {
	ProcessingWidth  int `json:"processing_width"`
	ProcessingHeight int `json:"processing_height"`
	DisplayWidth     int `json:"display_width"`
	DisplayHeight    int `json:"display_height"`
}

// Outputs control annotation and debug image persistence.
type Outputs struct {
	ShowImageLevel int  `json:"show_image_level"`
	SaveImageLevel int  `json:"save_image_level"`
	SaveDetections bool `json:"save_detections"`
}

// Config is the full tuning configuration.
type Config struct {
	AlignmentParams AlignmentParams `json:"alignment_params"`
	ThresholdParams ThresholdParams `json:"threshold_params"`
	Dimensions      Dimensions      `json:"dimensions"`
	Outputs         Outputs         `json:"outputs"`
}

// Default returns the tuning defaults used when no overrides are given.
func Default() *Config {
	return &Config{
		AlignmentParams: AlignmentParams{
			AutoAlign: false,
			MatchCol:  5,
			MaxSteps:  20,
			Stride:    1,
			Thickness: 3,
		},
		ThresholdParams: ThresholdParams{
			PageTypeForThreshold: PageTypeWhite,
			MinJump:              25,
			JumpDelta:            30,
			MinGap:               30,
			ConfidentSurplus:     5,
			GammaLow:             0.7,
		},
		Dimensions: Dimensions{
			ProcessingWidth:  666,
			ProcessingHeight: 820,
			DisplayWidth:     640,
			DisplayHeight:    480,
		},
		Outputs: Outputs{
			ShowImageLevel: 0,
			SaveImageLevel: 0,
			SaveDetections: true,
		},
	}
}

// Load reads a JSON tuning file and merges it over the defaults: fields
// absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if p := c.ThresholdParams.PageTypeForThreshold; p != PageTypeWhite && p != PageTypeBlack {
		return fmt.Errorf("PAGE_TYPE_FOR_THRESHOLD must be %q or %q, got %q", PageTypeWhite, PageTypeBlack, p)
	}
	if c.Dimensions.ProcessingWidth <= 0 || c.Dimensions.ProcessingHeight <= 0 {
		return fmt.Errorf("processing dimensions must be positive")
	}
	if c.AlignmentParams.Stride <= 0 {
		return fmt.Errorf("alignment stride must be positive")
	}
	return nil
}
