// Package imaging provides the pixel-level operations the scanner is built
// from: separable convolution, Canny edge detection, sharpening and the
// corner overlay drawn for previews.
//
// All operations take and return *raster.Buffer values and never modify
// their input.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Edge points are reported
// in row-major order.
//
// # Convolution
//
// Convolver abstracts a one-dimensional pass along an axis so the Gaussian
// blur can run on either the reference implementation in this package or an
// accelerated one. The reference convolver clamps samples at the image
// border.
//
// # Canny
//
// Detect runs the classic pipeline:
//
//  1. Gaussian blur with DefaultSigma
//  2. Sobel gradients
//  3. Non-maximum suppression along the quantized gradient direction
//  4. Double threshold into strong and weak edges
//  5. Hysteresis: weak edges survive only when 8-connected to a strong one
//
// Images smaller than 3x3 have no interior and yield no edges.
package imaging
