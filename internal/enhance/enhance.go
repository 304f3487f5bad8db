// Package enhance renders scan-style looks from a corrected document.
//
// Each [Style] is a fixed composition of the filters in this package.
// Filters never modify their input.
package enhance

import (
	"fmt"

	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Preset constants.
const (
	EnhancedContrast   = 1.2
	MagazineContrast   = 1.3
	MagazineSaturation = 1.2

	// The whiteboard threshold is mean+WhiteboardOffset, and pixels are
	// kept white above threshold-WhiteboardSlack.
	WhiteboardOffset = 20
	WhiteboardSlack  = 30
)

// Options tunes presets.
type Options struct {
	// MagazineSaturation enables the HSL saturation boost of the magazine
	// preset. Off by default: only contrast is applied.
	MagazineSaturation bool
}

// Apply renders src in the given style.
func Apply(src *raster.Buffer, style Style, opts Options) (*raster.Buffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	switch style {
	case Original:
		return src.Clone(), nil

	case Grayscale:
		return ToGrayscale(src), nil

	case BlackWhite:
		gray := ToGrayscale(src)
		return Threshold(gray, MeanGray(gray)), nil

	case Enhanced:
		out := Equalize(src)
		out = Contrast(out, EnhancedContrast)
		out = imaging.Sharpen(out)
		return Median3x3(out), nil

	case Magazine:
		out := NormalizedContrast(src, MagazineContrast)
		if opts.MagazineSaturation {
			out = Saturate(out, MagazineSaturation)
		}
		return out, nil

	case Whiteboard:
		gray := ToGrayscale(src)
		threshold := MeanGray(gray) + WhiteboardOffset
		return CleanBinary(Threshold(gray, threshold-WhiteboardSlack)), nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnknownStyle, style)
}
