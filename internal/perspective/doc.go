// Package perspective rectifies a photographed document.
//
// A projective transform (homography) is solved from four point
// correspondences and used to resample the source into an axis-aligned
// rectangle.
//
// # Direction of the Transform
//
// Warping is inverse-mapped: for every destination pixel the matrix gives
// the source position to read. [Correct] therefore solves from the
// destination rectangle (0,0),(W,0),(W,H),(0,H) to the detected corners.
//
// # Degenerate Input
//
// Nothing here fails on bad geometry. A singular system skips the
// offending pivot columns and reports them in [SolveReport]; a pixel whose
// projective denominator vanishes is read from source (0,0); a pixel that
// maps outside the source stays transparent. Counts of both are returned in
// [WarpStats].
//
// # Backends
//
// [Solver] and [Warper] are capabilities. [GaussSolver] and
// [ReferenceWarper] are the plain implementations; faster ones live in
// package accel.
package perspective
