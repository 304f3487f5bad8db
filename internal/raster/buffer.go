package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrEmptyBuffer is returned when a buffer is nil, has zero area, or an
// image could not be converted into one. It is the only input error the
// scanning pipeline reports to its caller.
var ErrEmptyBuffer = errors.New("raster: empty buffer")

// ErrSizeMismatch is returned when pixel data does not match the declared
// dimensions.
var ErrSizeMismatch = errors.New("raster: pixel data does not match dimensions")

// Buffer is an RGBA pixel grid with straight (non-premultiplied) alpha.
//
// Pix holds Width*Height*4 bytes in row-major order, four bytes per pixel
// in R, G, B, A order. Pipeline stages never modify a Buffer they receive;
// each returns a newly allocated one.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a fully transparent buffer of the given size.
func New(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyBuffer, width, height)
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}, nil
}

// Filled allocates a buffer where every pixel is c.
func Filled(width, height int, c color.NRGBA) (*Buffer, error) {
	b, err := New(width, height)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(b.Pix); i += 4 {
		b.Pix[i] = c.R
		b.Pix[i+1] = c.G
		b.Pix[i+2] = c.B
		b.Pix[i+3] = c.A
	}
	return b, nil
}

// FromPix copies pix into a new buffer after checking it matches the size.
func FromPix(width, height int, pix []uint8) (*Buffer, error) {
	b, err := New(width, height)
	if err != nil {
		return nil, err
	}
	if len(pix) != len(b.Pix) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(pix), len(b.Pix))
	}
	copy(b.Pix, pix)
	return b, nil
}

// FromImage converts any decoded image into a straight-alpha RGBA buffer.
// The result always starts at (0,0) regardless of the source bounds.
func FromImage(img image.Image) (*Buffer, error) {
	if img == nil {
		return nil, ErrEmptyBuffer
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: image bounds %v", ErrEmptyBuffer, bounds)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	return &Buffer{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    dst.Pix,
	}, nil
}

// FromRGBA adopts the raw bytes of an *image.RGBA produced by a filter that
// treats channels independently. No alpha conversion is applied.
func FromRGBA(img *image.RGBA) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		copy(pix[y*w*4:(y+1)*w*4], row[:w*4])
	}
	return &Buffer{Width: w, Height: h, Pix: pix}
}

// Validate reports whether b is usable as pipeline input.
func (b *Buffer) Validate() error {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return ErrEmptyBuffer
	}
	if len(b.Pix) != b.Width*b.Height*4 {
		return fmt.Errorf("%w: got %d bytes for %dx%d", ErrSizeMismatch, len(b.Pix), b.Width, b.Height)
	}
	return nil
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Offset returns the index of the first byte of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * 4
}

// NRGBAAt returns the pixel at (x, y). Coordinates must be in bounds.
func (b *Buffer) NRGBAAt(x, y int) color.NRGBA {
	i := b.Offset(x, y)
	return color.NRGBA{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2], A: b.Pix[i+3]}
}

// SetNRGBA writes the pixel at (x, y). Coordinates must be in bounds.
func (b *Buffer) SetNRGBA(x, y int, c color.NRGBA) {
	i := b.Offset(x, y)
	b.Pix[i] = c.R
	b.Pix[i+1] = c.G
	b.Pix[i+2] = c.B
	b.Pix[i+3] = c.A
}

// ToImage returns a copy of b as an *image.NRGBA.
func (b *Buffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	copy(img.Pix, b.Pix)
	return img
}

// RawRGBA returns a copy of b's bytes wrapped as an *image.RGBA without
// premultiplying. It is meant for filters that operate on each channel
// independently and copy pixels with draw.Src; convert the result back
// with FromRGBA.
func (b *Buffer) RawRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	copy(img.Pix, b.Pix)
	return img
}
