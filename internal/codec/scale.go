package codec

import (
	"fmt"
	"math"
)

// Scale selects how a percent value (speed, effect brightness) is carried on
// the wire for a given product.
type Scale int

const (
	// ScalePercent carries 0-100 directly.
	ScalePercent Scale = iota
	// ScaleRaw255 carries 0-255.
	ScaleRaw255
	// ScaleInverted31 carries 1-31 where 1 is fastest/brightest.
	ScaleInverted31
)

// String returns the scale name used in capability files.
func (s Scale) String() string {
	switch s {
	case ScalePercent:
		return "percent"
	case ScaleRaw255:
		return "raw255"
	case ScaleInverted31:
		return "inverted31"
	default:
		return fmt.Sprintf("scale(%d)", int(s))
	}
}

// ParseScale is the inverse of Scale.String.
func ParseScale(name string) (Scale, error) {
	switch name {
	case "", "percent":
		return ScalePercent, nil
	case "raw255":
		return ScaleRaw255, nil
	case "inverted31":
		return ScaleInverted31, nil
	default:
		return ScalePercent, fmt.Errorf("unknown scale %q", name)
	}
}

// PercentToRaw converts a 0-100 percent to the wire value of the scale.
func (s Scale) PercentToRaw(pct int) uint8 {
	pct = ClampInt(pct, 0, 100)
	switch s {
	case ScaleRaw255:
		return uint8(math.Round(float64(pct) * 255 / 100))
	case ScaleInverted31:
		return Inverted31FromPercent(pct)
	default:
		return uint8(pct)
	}
}

// RawToPercent converts a wire value of the scale back to 0-100.
func (s Scale) RawToPercent(raw uint8) int {
	switch s {
	case ScaleRaw255:
		return int(math.Round(float64(raw) * 100 / 255))
	case ScaleInverted31:
		return Inverted31ToPercent(raw)
	default:
		return ClampInt(int(raw), 0, 100)
	}
}

// Inverted31FromPercent maps 1..100 percent onto 31..1.
func Inverted31FromPercent(pct int) uint8 {
	pct = ClampInt(pct, 1, 100)
	raw := math.Round(31 - float64(pct-1)*30/99)
	return uint8(ClampInt(int(raw), 1, 31))
}

// Inverted31ToPercent maps a 1..31 delay onto 100..1 percent.
func Inverted31ToPercent(raw uint8) int {
	r := ClampInt(int(raw), 1, 31)
	return ClampInt(int(math.Round(float64(31-r)*99/30+1)), 1, 100)
}

// BrightnessToPercent converts 0-255 brightness to a wire percent. The result
// is never 0 so a color command cannot switch the light off by accident.
func BrightnessToPercent(brightness uint8) uint8 {
	pct := int(math.Round(float64(brightness) * 100 / 255))
	return uint8(ClampInt(pct, 1, 100))
}

// PercentToBrightness converts a reported percent to 0-255 brightness.
func PercentToBrightness(pct int) uint8 {
	return uint8(ClampInt(int(math.Round(float64(ClampInt(pct, 0, 100))*255/100)), 0, 255))
}
