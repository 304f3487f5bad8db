package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is the quality used for scanned output (0.9 on a 0-1
// scale).
const DefaultJPEGQuality = 90

// EncodedImage is an encoded buffer ready to embed in a JSON response.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// ParseFormat maps a format name or file extension ("jpeg", ".jpg", "png")
// to an encoder format.
func ParseFormat(name string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(strings.TrimSpace(name))
	if err != nil {
		return 0, fmt.Errorf("unsupported output format %q: %w", name, err)
	}
	return f, nil
}

// MimeType returns the MIME type for an encoder format.
func MimeType(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	}
	return "application/octet-stream"
}

// Encode writes b to w in the given format. quality applies to JPEG only;
// values outside 1..100 fall back to DefaultJPEGQuality.
func Encode(w io.Writer, b *Buffer, format imaging.Format, quality int) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Encode(w, b.ToImage(), format, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// EncodeBase64 encodes b and returns it base64-wrapped with its MIME type.
func EncodeBase64(b *Buffer, format imaging.Format, quality int) (*EncodedImage, error) {
	var out bytes.Buffer
	if err := Encode(&out, b, format, quality); err != nil {
		return nil, err
	}
	return &EncodedImage{
		Width:       b.Width,
		Height:      b.Height,
		ImageBase64: base64.StdEncoding.EncodeToString(out.Bytes()),
		MimeType:    MimeType(format),
	}, nil
}

// Save writes b to path, choosing the format from the file extension.
func Save(b *Buffer, path string, quality int) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Save(b.ToImage(), path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
