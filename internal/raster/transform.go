package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultMaxWidth is the width large captures are reduced to before
// scanning.
const DefaultMaxWidth = 1920

// Rotate turns b clockwise by degrees. Quarter turns are lossless; any
// other angle expands the canvas to the rotated bounding box and leaves the
// uncovered corners transparent.
func Rotate(b *Buffer, degrees float64) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}

	var out *image.NRGBA
	switch d {
	case 0:
		return b.Clone(), nil
	case 90:
		out = imaging.Rotate270(b.ToImage())
	case 180:
		out = imaging.Rotate180(b.ToImage())
	case 270:
		out = imaging.Rotate90(b.ToImage())
	default:
		// imaging rotates counter-clockwise.
		out = imaging.Rotate(b.ToImage(), -d, color.Transparent)
	}
	return FromImage(out)
}

// Downscale shrinks b to maxWidth pixels wide, preserving the aspect ratio.
// Buffers already narrow enough, or a non-positive maxWidth, yield a copy.
func Downscale(b *Buffer, maxWidth int) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if maxWidth <= 0 || b.Width <= maxWidth {
		return b.Clone(), nil
	}

	height := int(math.Round(float64(b.Height) * float64(maxWidth) / float64(b.Width)))
	if height < 1 {
		height = 1
	}
	return FromImage(imaging.Resize(b.ToImage(), maxWidth, height, imaging.Lanczos))
}

// Crop extracts rect from b. The rectangle is clipped to the buffer; a
// rectangle with no overlap is an error.
func Crop(b *Buffer, rect image.Rectangle) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	clipped := rect.Intersect(image.Rect(0, 0, b.Width, b.Height))
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: crop region %v outside %dx%d image", ErrEmptyBuffer, rect, b.Width, b.Height)
	}
	return FromImage(imaging.Crop(b.ToImage(), clipped))
}
