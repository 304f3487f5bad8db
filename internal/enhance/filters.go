package enhance

import (
	"image/color"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Luma returns the BT.601 luma of an RGB triple.
func Luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// mapPixels runs fn over every pixel through bild. Bytes are passed through
// untouched, so alpha stays straight.
func mapPixels(src *raster.Buffer, fn func(color.RGBA) color.RGBA) *raster.Buffer {
	return raster.FromRGBA(adjust.Apply(src.RawRGBA(), fn))
}

// ToneCurve maps each colour channel through curve, evaluated once per
// intensity into a lookup table. Alpha is kept.
func ToneCurve(src *raster.Buffer, curve func(float64) float64) *raster.Buffer {
	var lut [256]uint8
	for i := range lut {
		lut[i] = imaging.ClampByte(curve(float64(i)))
	}
	return mapPixels(src, func(c color.RGBA) color.RGBA {
		return color.RGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

// ToGrayscale replaces R, G and B with the rounded luma.
func ToGrayscale(src *raster.Buffer) *raster.Buffer {
	return mapPixels(src, func(c color.RGBA) color.RGBA {
		v := imaging.ClampByte(Luma(c.R, c.G, c.B))
		return color.RGBA{R: v, G: v, B: v, A: c.A}
	})
}

// grayHistogram counts the R channel of a grayscale buffer.
func grayHistogram(gray *raster.Buffer) []int {
	return histogram.NewRGBAHistogram(gray.RawRGBA()).R.Bins
}

// MeanGray returns the mean R value of a grayscale buffer.
func MeanGray(gray *raster.Buffer) float64 {
	var sum, n float64
	for v, count := range grayHistogram(gray) {
		sum += float64(v * count)
		n += float64(count)
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// Threshold binarizes a grayscale buffer: R > t becomes white, the rest
// black. Alpha is kept.
func Threshold(gray *raster.Buffer, t float64) *raster.Buffer {
	return mapPixels(gray, func(c color.RGBA) color.RGBA {
		var v uint8
		if float64(c.R) > t {
			v = 255
		}
		return color.RGBA{R: v, G: v, B: v, A: c.A}
	})
}

// Equalize spreads the luma histogram over the full range while keeping
// each pixel's hue: channels are scaled by newLuma/oldLuma and capped at
// 255. An image whose luma occupies a single bin is returned unchanged.
func Equalize(src *raster.Buffer) *raster.Buffer {
	bins := grayHistogram(ToGrayscale(src))

	occupied := 0
	for _, c := range bins {
		if c > 0 {
			occupied++
		}
	}
	if occupied <= 1 {
		return src.Clone()
	}

	total := float64(src.Width * src.Height)
	var ratio [256]float64
	cdf := 0
	for g, c := range bins {
		cdf += c
		if g == 0 {
			ratio[g] = 1
			continue
		}
		mapped := math.Floor(float64(cdf)/total*255 + 0.5)
		ratio[g] = mapped / float64(g)
	}

	return mapPixels(src, func(c color.RGBA) color.RGBA {
		k := ratio[imaging.ClampByte(Luma(c.R, c.G, c.B))]
		return color.RGBA{
			R: imaging.ClampByte(math.Min(255, float64(c.R)*k)),
			G: imaging.ClampByte(math.Min(255, float64(c.G)*k)),
			B: imaging.ClampByte(math.Min(255, float64(c.B)*k)),
			A: c.A,
		}
	})
}

// Contrast scales each channel's distance from 128 by factor.
func Contrast(src *raster.Buffer, factor float64) *raster.Buffer {
	return ToneCurve(src, func(v float64) float64 {
		return (v-128)*factor + 128
	})
}

// NormalizedContrast scales each channel's distance from mid-grey on the
// unit scale: ((v/255 - 0.5)·factor + 0.5)·255.
func NormalizedContrast(src *raster.Buffer, factor float64) *raster.Buffer {
	return ToneCurve(src, func(v float64) float64 {
		return ((v/255-0.5)*factor + 0.5) * 255
	})
}

// Saturate multiplies HSL saturation by factor, capped at 1.
func Saturate(src *raster.Buffer, factor float64) *raster.Buffer {
	return mapPixels(src, func(c color.RGBA) color.RGBA {
		col := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
		h, s, l := col.Hsl()
		r, g, b := colorful.Hsl(h, math.Min(1, s*factor), l).Clamped().RGB255()
		return color.RGBA{R: r, G: g, B: b, A: c.A}
	})
}

// Median3x3 replaces each colour channel of interior pixels with the median
// of its 3×3 neighbourhood. Border pixels and alpha keep source values.
func Median3x3(src *raster.Buffer) *raster.Buffer {
	out := src.Clone()
	w, h := src.Width, src.Height
	var window [9]int

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			o := src.Offset(x, y)
			for c := 0; c < 3; c++ {
				n := 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						window[n] = int(src.Pix[src.Offset(x+dx, y+dy)+c])
						n++
					}
				}
				sort.Ints(window[:])
				out.Pix[o+c] = uint8(window[4])
			}
		}
	}
	return out
}

// CleanBinary removes isolated specks from a binarized buffer: an interior
// pixel becomes white when the mean R of its 3×3 neighbourhood exceeds 127
// and black otherwise. Border pixels and alpha keep source values.
func CleanBinary(src *raster.Buffer) *raster.Buffer {
	out := src.Clone()
	w, h := src.Width, src.Height

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			sum := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += int(src.Pix[src.Offset(x+dx, y+dy)])
				}
			}
			var v uint8
			if float64(sum)/9 > 127 {
				v = 255
			}
			o := out.Offset(x, y)
			out.Pix[o], out.Pix[o+1], out.Pix[o+2] = v, v, v
		}
	}
	return out
}
