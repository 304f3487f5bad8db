package imaging

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// DefaultOverlayColor is the outline colour used when none is given.
const DefaultOverlayColor = "#00C853"

// DrawQuad returns a copy of src with q outlined and each corner labelled
// 1-4 in topLeft, topRight, bottomRight, bottomLeft order. It lets a client
// check detected or edited corners before committing to a warp.
func DrawQuad(src *raster.Buffer, q geom.Quad, hexColor string, thickness int) (*raster.Buffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if thickness < 1 {
		thickness = 1
	}

	lineColor, err := ParseHexColor(hexColor)
	if err != nil {
		lineColor, _ = ParseHexColor(DefaultOverlayColor)
	}

	out := src.Clone()
	for i := 0; i < 4; i++ {
		drawLine(out, q[i], q[(i+1)%4], lineColor, thickness)
	}

	fg := color.NRGBA{255, 255, 255, 255}
	bg := color.NRGBA{0, 0, 0, 200}
	for i, p := range q {
		x := int(math.Round(p.X)) + thickness + 1
		y := int(math.Round(p.Y)) + thickness + 1
		// Keep labels inside the frame for corners sitting on the border.
		x = clampInt(x, 1, out.Width-5)
		y = clampInt(y, 1, out.Height-7)
		drawLabel(out, x, y, strconv.Itoa(i+1), fg, bg)
	}
	return out, nil
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(hex string) (color.NRGBA, error) {
	if len(hex) > 0 && hex[0] != '#' {
		hex = "#" + hex
	}

	alpha := uint8(255)
	if len(hex) == 9 {
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:7]
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// drawLine draws a square-brush line from a to b, blending c over the
// buffer.
func drawLine(dst *raster.Buffer, a, b geom.Point, c color.NRGBA, thickness int) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps == 0 {
		steps = 1
	}
	half := thickness / 2
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		cx := int(math.Round(a.X + (b.X-a.X)*t))
		cy := int(math.Round(a.Y + (b.Y-a.Y)*t))
		for dy := -half; dy < thickness-half; dy++ {
			for dx := -half; dx < thickness-half; dx++ {
				blend(dst, cx+dx, cy+dy, c)
			}
		}
	}
}

func blend(dst *raster.Buffer, x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= dst.Width || y >= dst.Height {
		return
	}
	o := dst.Offset(x, y)
	a := float64(c.A) / 255
	dst.Pix[o] = ClampByte(float64(c.R)*a + float64(dst.Pix[o])*(1-a))
	dst.Pix[o+1] = ClampByte(float64(c.G)*a + float64(dst.Pix[o+1])*(1-a))
	dst.Pix[o+2] = ClampByte(float64(c.B)*a + float64(dst.Pix[o+2])*(1-a))
	dst.Pix[o+3] = ClampByte(float64(c.A) + float64(dst.Pix[o+3])*(1-a))
}

// drawLabel draws text with a 3x5 pixel digit font on a background box.
func drawLabel(dst *raster.Buffer, x, y int, text string, fg, bg color.NRGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	const charWidth = 4
	for dy := -1; dy < 6; dy++ {
		for dx := -1; dx < len(text)*charWidth; dx++ {
			blend(dst, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, px := range line {
				if px == '1' {
					blend(dst, cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
