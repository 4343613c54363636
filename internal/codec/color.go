// Package codec holds the pure value conversions shared by the command encoder
// and the response decoder: color space math, percent/raw scaling, color
// temperature mapping and frame checksums.
package codec

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGB is an additive 8-bit color triple.
type RGB struct {
	R, G, B uint8
}

// Black is the all-zero color, used as the implicit background.
var Black = RGB{}

// IsBlack reports whether every channel is zero.
func (c RGB) IsBlack() bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

// Max returns the largest channel value.
func (c RGB) Max() uint8 {
	m := c.R
	if c.G > m {
		m = c.G
	}
	if c.B > m {
		m = c.B
	}
	return m
}

// HSV is a hue in whole degrees (0-359) with saturation and value in whole
// percent (0-100).
type HSV struct {
	H, S, V int
}

func toColorful(c RGB) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// RGBToHSV converts an RGB triple to integer HSV. Hue 360 wraps to 0.
func RGBToHSV(c RGB) HSV {
	h, s, v := toColorful(c).Hsv()
	hue := int(math.Round(h)) % 360
	return HSV{
		H: hue,
		S: int(math.Round(s * 100)),
		V: int(math.Round(v * 100)),
	}
}

// HSVToRGB converts integer HSV back to an RGB triple. Out-of-range inputs are
// clamped (saturation/value) or wrapped (hue).
func HSVToRGB(hsv HSV) RGB {
	h := float64(((hsv.H % 360) + 360) % 360)
	s := float64(ClampInt(hsv.S, 0, 100)) / 100.0
	v := float64(ClampInt(hsv.V, 0, 100)) / 100.0
	r, g, b := colorful.Hsv(h, s, v).RGB255()
	return RGB{R: r, G: g, B: b}
}

// HueSaturation returns only the brightness-independent part of a color.
func HueSaturation(c RGB) (hue, saturation int) {
	hsv := RGBToHSV(c)
	return hsv.H, hsv.S
}

// BrightnessFromRGB estimates device brightness (0-255) from an RGB triple the
// device has already scaled by its brightness. A lit device never yields 0.
func BrightnessFromRGB(c RGB) uint8 {
	_, _, v := toColorful(c).Hsv()
	b := int(math.Round(v * 255))
	if b == 0 && !c.IsBlack() {
		return 1
	}
	return uint8(ClampInt(b, 0, 255))
}

// PureRGB removes the brightness scaling from a reported triple by stretching
// the largest channel to 255. Black stays black.
func PureRGB(c RGB) RGB {
	m := int(c.Max())
	if m == 0 || m == 255 {
		return c
	}
	stretch := func(v uint8) uint8 {
		return uint8(ClampInt((int(v)*255*2+m)/(2*m), 0, 255))
	}
	return RGB{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B)}
}

// ScaleRGB multiplies every channel by brightness/255.
func ScaleRGB(c RGB, brightness uint8) RGB {
	b := int(brightness)
	scale := func(v uint8) uint8 {
		return uint8((int(v)*b*2 + 255) / 510)
	}
	return RGB{R: scale(c.R), G: scale(c.G), B: scale(c.B)}
}

// ClampInt limits v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
