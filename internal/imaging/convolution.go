package imaging

import (
	"math"

	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Axis selects the direction of a one-dimensional convolution pass.
type Axis int

const (
	// Horizontal convolves along rows.
	Horizontal Axis = iota
	// Vertical convolves along columns.
	Vertical
)

// Kernel is a one-dimensional convolution kernel of odd length whose centre
// tap is at len/2.
type Kernel []float64

// Convolver runs a single separable convolution pass.
//
// Implementations must sample past the border by replicating the nearest
// edge pixel, convolve all four channels, and return a new buffer of the
// same size without touching src.
type Convolver interface {
	Convolve(src *raster.Buffer, k Kernel, axis Axis) *raster.Buffer
}

// GaussianKernel returns a normalized Gaussian kernel for sigma.
//
// The kernel has ceil(3σ)·2+1 taps with weights proportional to
// exp(−x²/2σ²) and sums to 1. A non-positive sigma yields the identity
// kernel.
func GaussianKernel(sigma float64) Kernel {
	if sigma <= 0 {
		return Kernel{1}
	}

	size := int(math.Ceil(sigma*3))*2 + 1
	half := size / 2
	k := make(Kernel, size)

	var sum float64
	for i := range k {
		x := float64(i - half)
		k[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// ReferenceConvolver is the straightforward single-threaded Convolver.
type ReferenceConvolver struct{}

// Convolve implements Convolver.
func (ReferenceConvolver) Convolve(src *raster.Buffer, k Kernel, axis Axis) *raster.Buffer {
	w, h := src.Width, src.Height
	dst := &raster.Buffer{Width: w, Height: h, Pix: make([]uint8, len(src.Pix))}
	half := len(k) / 2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b, a float64
			for i, weight := range k {
				sx, sy := x, y
				if axis == Horizontal {
					sx = clampInt(x+i-half, 0, w-1)
				} else {
					sy = clampInt(y+i-half, 0, h-1)
				}
				o := (sy*w + sx) * 4
				r += float64(src.Pix[o]) * weight
				g += float64(src.Pix[o+1]) * weight
				b += float64(src.Pix[o+2]) * weight
				a += float64(src.Pix[o+3]) * weight
			}
			o := (y*w + x) * 4
			dst.Pix[o] = ClampByte(r)
			dst.Pix[o+1] = ClampByte(g)
			dst.Pix[o+2] = ClampByte(b)
			dst.Pix[o+3] = ClampByte(a)
		}
	}
	return dst
}

// GaussianBlur blurs src with two separable passes, horizontal then
// vertical.
func GaussianBlur(c Convolver, src *raster.Buffer, sigma float64) *raster.Buffer {
	k := GaussianKernel(sigma)
	return c.Convolve(c.Convolve(src, k, Horizontal), k, Vertical)
}

// SharpenKernel is the 3×3 kernel used to crisp up text after
// equalization.
var SharpenKernel = [3][3]float64{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Sharpen applies SharpenKernel to the colour channels of interior pixels.
// Border pixels keep their source values and alpha is never changed.
func Sharpen(src *raster.Buffer) *raster.Buffer {
	return Convolve3x3(src, SharpenKernel)
}

// Convolve3x3 applies k to R, G and B of every pixel that has a full 3×3
// neighbourhood. Border pixels and the alpha channel are copied from src.
func Convolve3x3(src *raster.Buffer, k [3][3]float64) *raster.Buffer {
	dst := src.Clone()
	w, h := src.Width, src.Height

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			o := (y*w + x) * 4
			for c := 0; c < 3; c++ {
				var sum float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						sum += float64(src.Pix[((y+ky)*w+(x+kx))*4+c]) * k[ky+1][kx+1]
					}
				}
				dst.Pix[o+c] = ClampByte(sum)
			}
		}
	}
	return dst
}

// ClampByte rounds v half up and clamps it to [0,255].
func ClampByte(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Floor(v + 0.5))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
