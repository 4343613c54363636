package codec

import "math"

// Supported white range in Kelvin.
const (
	MinKelvin = 2700
	MaxKelvin = 6500
)

// ClampKelvin limits k to the supported white range.
func ClampKelvin(k int) int {
	return ClampInt(k, MinKelvin, MaxKelvin)
}

// KelvinToPercent maps Kelvin onto 0-100. With warmAtZero, 0% is 2700K;
// otherwise 0% is 6500K.
func KelvinToPercent(kelvin int, warmAtZero bool) uint8 {
	k := ClampKelvin(kelvin)
	pct := math.Round(float64(k-MinKelvin) * 100 / float64(MaxKelvin-MinKelvin))
	if !warmAtZero {
		pct = 100 - pct
	}
	return uint8(ClampInt(int(pct), 0, 100))
}

// PercentToKelvin is the inverse of KelvinToPercent.
func PercentToKelvin(pct int, warmAtZero bool) int {
	p := ClampInt(pct, 0, 100)
	if !warmAtZero {
		p = 100 - p
	}
	return MinKelvin + int(math.Round(float64(p)*float64(MaxKelvin-MinKelvin)/100))
}

// SplitWhite divides brightness between warm and cool channels for a color
// temperature. ww+cw equals brightness up to rounding.
func SplitWhite(kelvin int, brightness uint8) (ww, cw uint8) {
	coolShare := float64(KelvinToPercent(kelvin, true)) / 100
	cw = uint8(math.Round(float64(brightness) * coolShare))
	ww = brightness - cw
	return ww, cw
}

// KelvinFromWhite reconstructs color temperature and brightness from raw warm
// and cool channel levels. Both zero yields (MinKelvin, 0).
func KelvinFromWhite(ww, cw uint8) (kelvin int, brightness uint8) {
	total := int(ww) + int(cw)
	if total == 0 {
		return MinKelvin, 0
	}
	pct := int(math.Round(float64(cw) * 100 / float64(total)))
	return PercentToKelvin(pct, true), uint8(ClampInt(total, 0, 255))
}
