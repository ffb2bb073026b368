// Package scan orchestrates the full read of one sheet image: resizing,
// the preprocessor chain, template coordinate transform, per-block
// alignment, bubble measurement, adaptive thresholding, response
// assembly, QR identity decoding and the annotated output image.
//
// # Pipeline
//
// Process runs the stages in a fixed order:
//
//  1. Grayscale conversion and resize to the processing dimensions.
//  2. Preprocessors from the template (marker alignment and similar);
//     the last homography produced is retained.
//  3. Resize to the template page dimensions and contrast normalize.
//  4. Clone the template and map its coordinates through the retained
//     homography, scaled into page space.
//  5. Optional per-block shift search against the vertical profile.
//  6. Bubble mean measurement, global and per-strip thresholds.
//  7. Response assembly with multi-mark flagging, QR field decoding,
//     and the alpha-blended annotation overlay.
//
// # Thread Safety
//
// A Pipeline is safe for concurrent Process calls as long as each call
// gets its own Run; the shared Template is cloned per image and never
// written. Preprocessors that keep per-image diagnostics (such as the
// marker aligner) should not be shared across goroutines.
package scan
