// Package detection finds the four corners of a document in a photo.
//
// # Algorithm Overview
//
//  1. Edge Detection: Canny edges from the imaging package
//  2. Line Extraction: Hough transform over 180 one-degree theta bins
//  3. Filtering: Near-duplicates are dropped and the two strongest
//     near-vertical and near-horizontal lines are kept
//  4. Intersection: Every pair of lines is intersected; parallel pairs are
//     counted and skipped, and points far outside the frame are discarded
//  5. Ordering: Candidates are assigned to quadrants around their centroid and ordered
//     top-left, top-right, bottom-right, bottom-left
//
// When anything other than exactly four points remains, SortCorners returns
// the full image rectangle and reports a fallback. A fallback is not an
// error: the caller still gets a usable quadrilateral.
//
// # Coordinate System
//
// Lines use the Hough normal form x*cos(theta) + y*sin(theta) = rho, with
// theta in [0, pi) and the origin at the top-left pixel.
package detection
