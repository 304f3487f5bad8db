package enhance

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStyle is returned when a style name is not recognised.
var ErrUnknownStyle = errors.New("unknown style")

// Style selects a scan look.
type Style int

const (
	// Original returns the corrected image unchanged.
	Original Style = iota
	// Grayscale converts to ITU-R BT.601 luma.
	Grayscale
	// BlackWhite binarizes at the mean luma.
	BlackWhite
	// Enhanced equalizes, boosts contrast, sharpens and denoises.
	Enhanced
	// Magazine boosts contrast for a printed look.
	Magazine
	// Whiteboard binarizes for marker on a light board and cleans specks.
	Whiteboard
)

var styleNames = [...]string{
	Original:   "original",
	Grayscale:  "grayscale",
	BlackWhite: "blackwhite",
	Enhanced:   "enhanced",
	Magazine:   "magazine",
	Whiteboard: "whiteboard",
}

// Styles lists every style name in declaration order.
func Styles() []string {
	return append([]string(nil), styleNames[:]...)
}

func (s Style) String() string {
	if s < 0 || int(s) >= len(styleNames) {
		return fmt.Sprintf("Style(%d)", int(s))
	}
	return styleNames[s]
}

// ParseStyle returns the style with the given name, ignoring case. An empty
// name selects Original.
func ParseStyle(name string) (Style, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Original, nil
	}
	for i, n := range styleNames {
		if n == name {
			return Style(i), nil
		}
	}
	return Original, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownStyle, name, strings.Join(styleNames[:], ", "))
}

// MarshalText encodes the style by name.
func (s Style) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a style name.
func (s *Style) UnmarshalText(text []byte) error {
	v, err := ParseStyle(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
