// Package scanner turns a photographed document into a flat scan.
//
// A [Scanner] runs the pipeline
//
//	corner detection → perspective correction → style enhancement
//
// with the convolution, solve and warp implementations of a [Backend] chosen
// when the scanner is built. The reference backend is plain Go; the
// accelerated backend uses bild and gonum.
//
// # Error Handling
//
// Geometry never fails a scan. When four corners cannot be found, lines are
// parallel, the homography is singular, or warp samples fall outside the
// source, the pipeline applies a documented fallback and records a
// [StageError] in [Result].Recovered. Callers can match those with
// errors.Is against [ErrDegenerateInput], [ErrSingularSystem] and
// [ErrOutOfBoundsSample]. The only input error is raster.ErrEmptyBuffer.
//
// # Batches
//
// [Scanner.ScanBatch] processes images strictly one after another and checks
// its context around each image. On cancellation the image in flight is
// dropped and only images completed before it are returned. [Scanner.ScanAsync] runs one image in the background and
// drops its result if the context is cancelled first.
//
// # Sessions
//
// A [Session] holds user-edited corners and a crop rectangle for one image,
// so corrections can be refined over several calls before being applied.
package scanner
