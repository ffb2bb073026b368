// Package imaging provides the grayscale buffer operations shared by the
// sheet detection pipeline.
//
// All pipeline stages operate on *image.Gray buffers in a coordinate
// system where (0,0) is the top-left corner, X increases rightward and Y
// increases downward. Intensities run 0 (black ink) to 255 (white paper);
// the thresholding stages assume dark marks on a light background unless
// the tuning configuration flips the page polarity.
//
// # Operations
//
// The package groups four concerns:
//
//   - Conditioning: grayscale conversion, min-max normalization,
//     erode-subtract background flattening, gamma adjustment and
//     resizing. These feed the marker aligner and the auto-align
//     morphology profile.
//   - Morphology: rectangular-kernel erode/dilate/open used to build the
//     vertical intensity profile for per-block shift search.
//   - Statistics: integral images (summed-area tables) for O(1) window
//     sums during template matching, and direct region means for bubble
//     intensity reads.
//   - Annotation: rectangle/polyline/text drawing and alpha compositing
//     for the audit overlay, plus a stable per-block color palette for
//     the template layout rendering.
//
// # Thread Safety
//
// The Cache type is safe for concurrent use. All other functions are
// stateless; they never mutate their input images and may be called
// concurrently on distinct buffers.
package imaging
