package aggregate

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Default choropleth endpoints: light for low rates, dark for high.
const (
	DefaultLow  = "#f7fbff"
	DefaultHigh = "#08306b"
)

// ColorScale maps a numeric domain linearly onto an RGB ramp. Values outside
// the domain clamp to the nearest endpoint.
type ColorScale struct {
	min, max  float64
	low, high color.RGBA
}

// NewColorScale builds a scale from hex endpoints.
func NewColorScale(minV, maxV float64, low, high string) (ColorScale, error) {
	lo, err := ParseHex(low)
	if err != nil {
		return ColorScale{}, fmt.Errorf("parse low color: %w", err)
	}
	hi, err := ParseHex(high)
	if err != nil {
		return ColorScale{}, fmt.Errorf("parse high color: %w", err)
	}
	return ColorScale{min: minV, max: maxV, low: lo, high: hi}, nil
}

// MustColorScale is NewColorScale for constant endpoints.
func MustColorScale(minV, maxV float64, low, high string) ColorScale {
	s, err := NewColorScale(minV, maxV, low, high)
	if err != nil {
		panic(err)
	}
	return s
}

// At returns the color for v. A zero-width domain returns the low endpoint.
func (s ColorScale) At(v float64) color.RGBA {
	width := s.max - s.min
	if !(width > 0) || math.IsNaN(v) {
		return s.low
	}
	t := (v - s.min) / width
	return Lerp(s.low, s.high, math.Max(0, math.Min(1, t)))
}

// Hex is At formatted as #rrggbb.
func (s ColorScale) Hex(v float64) string {
	return FormatHex(s.At(v))
}

// Lerp interpolates channel-wise in RGB, t in [0, 1].
func Lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// ParseHex accepts #rgb and #rrggbb plus the few named colors the maps use.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := named[s]; ok {
		return c, nil
	}
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// FormatHex renders #rrggbb, dropping alpha.
func FormatHex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var named = map[string]color.RGBA{
	"red":     {R: 0xff, A: 0xff},
	"darkred": {R: 0x8b, A: 0xff},
	"white":   {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	"black":   {A: 0xff},
}
