package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/omr-tools/omr-scan/internal/align"
	"github.com/omr-tools/omr-scan/internal/config"
	imagingx "github.com/omr-tools/omr-scan/internal/imaging"
	"github.com/omr-tools/omr-scan/internal/scan"
	"github.com/omr-tools/omr-scan/internal/template"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("omr-scan %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		}
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime)

	fs := flag.NewFlagSet("omr-scan", flag.ExitOnError)
	templatePath := fs.String("template", "template.json", "sheet layout template JSON")
	configPath := fs.String("config", "", "tuning config JSON (defaults apply when empty)")
	outputDir := fs.String("output", "outputs", "directory for response JSON and annotated images")
	fs.Usage = func() { usage(fs) }
	fs.Parse(os.Args[1:])

	inputs := fs.Args()
	if len(inputs) == 0 {
		usage(fs)
		os.Exit(2)
	}

	if os.Getenv("OMR_SCAN_LOG_LEVEL") == "debug" {
		log.Printf("omr-scan v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	tpl, err := template.Load(*templatePath)
	if err != nil {
		log.Fatalf("template: %v", err)
	}

	pre, err := buildPreprocessors(tpl, cfg, filepath.Dir(*templatePath))
	if err != nil {
		log.Fatalf("preprocessors: %v", err)
	}
	pipeline := scan.NewPipeline(cfg, tpl, pre, nil)

	excluded := make(map[string]bool)
	for _, p := range pipeline.ExcludedPaths() {
		excluded[filepath.Base(p)] = true
	}

	files, err := collectImages(inputs, excluded)
	if err != nil {
		log.Fatalf("inputs: %v", err)
	}
	if len(files) == 0 {
		log.Fatal("no sheet images found in the given inputs")
	}

	cache := imagingx.NewCache()
	run := scan.NewRun(cfg)
	processed, failed := 0, 0
	for _, path := range files {
		run.Reset()
		img, err := cache.Load(path)
		if err != nil {
			log.Printf("error: %s: %v", path, err)
			failed++
			continue
		}
		res, err := pipeline.Process(img, path, run)
		cache.Evict(path)
		if err != nil {
			log.Printf("error: %s: %v", path, err)
			failed++
			continue
		}
		if err := writeOutputs(res, *outputDir, cfg, run); err != nil {
			log.Printf("error: %s: %v", path, err)
			failed++
			continue
		}
		processed++
	}

	log.Printf("processed %d sheet(s), %d failed", processed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "omr-scan - bubble sheet reader")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage: omr-scan [options] <image-or-directory>...")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	fs.PrintDefaults()
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Environment variables:")
	fmt.Fprintln(os.Stderr, "  OMR_SCAN_LOG_LEVEL=debug    Enable debug logging")
}

// collectImages expands directories into their image files, skipping
// preprocessor resources such as the marker reference.
func collectImages(inputs []string, excluded map[string]bool) ([]string, error) {
	var out []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, in)
			continue
		}
		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || excluded[e.Name()] || !isImageFile(e.Name()) {
				continue
			}
			out = append(out, filepath.Join(in, e.Name()))
		}
	}
	return out, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

// buildPreprocessors instantiates the chain declared in the template.
// Marker resources resolve relative to the template's directory.
func buildPreprocessors(tpl *template.Template, cfg *config.Config, baseDir string) ([]align.Preprocessor, error) {
	var out []align.Preprocessor
	for _, spec := range tpl.PreProcessors {
		switch spec.Name {
		case "CropOnMarkers":
			opts := markerOptions(spec.Options)
			marker, err := align.LoadMarker(baseDir, opts, cfg.Dimensions.ProcessingWidth)
			if err != nil {
				return nil, err
			}
			out = append(out, align.NewMarkerAligner(marker, opts))
		default:
			return nil, fmt.Errorf("unknown preprocessor %q", spec.Name)
		}
	}
	return out, nil
}

// markerOptions overlays the template's options block on the defaults.
func markerOptions(raw map[string]any) align.MarkerOptions {
	opts := align.DefaultMarkerOptions()
	if v, ok := optString(raw, "relativePath"); ok {
		opts.RelativePath = v
	}
	if v, ok := optFloat(raw, "sheetToMarkerWidthRatio"); ok {
		opts.SheetToMarkerWidthRatio = v
	}
	if v, ok := optFloat(raw, "min_matching_threshold"); ok {
		opts.MinMatchingThreshold = v
	}
	if v, ok := optFloat(raw, "max_matching_variation"); ok {
		opts.MaxMatchingVariation = v
	}
	if v, ok := optFloat(raw, "marker_rescale_steps"); ok {
		opts.ScaleSteps = int(v)
	}
	if v, ok := optBool(raw, "apply_erode_subtract"); ok {
		opts.ApplyErodeSubtract = v
	}
	if v, ok := raw["marker_rescale_range"].([]any); ok && len(v) == 2 {
		lo, okLo := v[0].(float64)
		hi, okHi := v[1].(float64)
		if okLo && okHi {
			opts.RescaleRange = [2]int{int(lo), int(hi)}
		}
	}
	return opts
}

func optString(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key].(string)
	return v, ok
}

func optFloat(raw map[string]any, key string) (float64, bool) {
	v, ok := raw[key].(float64)
	return v, ok
}

func optBool(raw map[string]any, key string) (bool, bool) {
	v, ok := raw[key].(bool)
	return v, ok
}

// writeOutputs saves the response JSON, the annotated sheet and any
// debug stacks. Multi-roll sheets land in a _MULTI_ subdirectory for
// manual review.
func writeOutputs(res *scan.Result, outputDir string, cfg *config.Config, run *scan.Run) error {
	dir := outputDir
	if res.MultiRoll {
		dir = filepath.Join(outputDir, "_MULTI_")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(res.File), filepath.Ext(res.File))
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644); err != nil {
		return err
	}
	if cfg.Outputs.SaveDetections {
		if err := imagingx.Save(filepath.Join(dir, name+"_marked.png"), res.Marked); err != nil {
			return err
		}
	}
	return run.SaveStacks(dir, name)
}
