package scanner

import (
	"github.com/ironsheep/docscan-mcp/internal/detection"
	"github.com/ironsheep/docscan-mcp/internal/enhance"
	"github.com/ironsheep/docscan-mcp/internal/perspective"
)

// Options configures one pipeline run.
type Options struct {
	// Canny thresholds for corner detection.
	EdgeLow  float64
	EdgeHigh float64

	// HoughThreshold is the vote count a line must exceed.
	HoughThreshold int

	// Output size of the corrected document. Ignored when AutoSize is set.
	OutputWidth  int
	OutputHeight int

	// AutoSize derives the output size from the detected corners.
	AutoSize bool

	Style enhance.Style

	// MagazineSaturation enables the saturation boost of the magazine
	// style.
	MagazineSaturation bool

	// MaxInputWidth downscales wider inputs before processing. Zero keeps
	// the input as is.
	MaxInputWidth int
}

// DefaultOptions returns the standard document settings.
func DefaultOptions() Options {
	p := detection.DefaultParams()
	return Options{
		EdgeLow:        p.EdgeLow,
		EdgeHigh:       p.EdgeHigh,
		HoughThreshold: p.HoughThreshold,
		OutputWidth:    perspective.DefaultWidth,
		OutputHeight:   perspective.DefaultHeight,
		Style:          enhance.Original,
	}
}

func (o Options) detectionParams() detection.Params {
	return detection.Params{EdgeLow: o.EdgeLow, EdgeHigh: o.EdgeHigh, HoughThreshold: o.HoughThreshold}
}

func (o Options) enhanceOptions() enhance.Options {
	return enhance.Options{MagazineSaturation: o.MagazineSaturation}
}
