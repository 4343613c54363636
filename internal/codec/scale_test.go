package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInverted31_Endpoints(t *testing.T) {
	assert.Equal(t, uint8(31), Inverted31FromPercent(1))
	assert.Equal(t, uint8(1), Inverted31FromPercent(100))
	assert.Equal(t, uint8(31), Inverted31FromPercent(0), "below range clamps to slowest")
	assert.Equal(t, 100, Inverted31ToPercent(1))
	assert.Equal(t, 1, Inverted31ToPercent(31))
	assert.Equal(t, 100, Inverted31ToPercent(0), "raw 0 clamps to fastest")
}

func TestInverted31_StableAfterOneRoundTrip(t *testing.T) {
	for p := 1; p <= 100; p++ {
		once := Inverted31ToPercent(Inverted31FromPercent(p))
		twice := Inverted31ToPercent(Inverted31FromPercent(once))
		require.Equal(t, once, twice, "percent %d must be stable after normalization", p)
	}
}

func TestScale_PercentToRaw(t *testing.T) {
	tests := []struct {
		name     string
		scale    Scale
		pct      int
		expected uint8
	}{
		{name: "percent passthrough", scale: ScalePercent, pct: 50, expected: 50},
		{name: "percent clamps high", scale: ScalePercent, pct: 150, expected: 100},
		{name: "raw255 half", scale: ScaleRaw255, pct: 50, expected: 128},
		{name: "raw255 full", scale: ScaleRaw255, pct: 100, expected: 255},
		{name: "inverted mid", scale: ScaleInverted31, pct: 50, expected: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.scale.PercentToRaw(tt.pct))
		})
	}
}

func TestParseScale(t *testing.T) {
	for _, s := range []Scale{ScalePercent, ScaleRaw255, ScaleInverted31} {
		parsed, err := ParseScale(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseScale("log")
	assert.Error(t, err)
}

func TestBrightnessToPercent_NeverZero(t *testing.T) {
	assert.Equal(t, uint8(1), BrightnessToPercent(0))
	assert.Equal(t, uint8(1), BrightnessToPercent(1))
	assert.Equal(t, uint8(50), BrightnessToPercent(128))
	assert.Equal(t, uint8(100), BrightnessToPercent(255))
}

func TestChecksum(t *testing.T) {
	frame := []byte{0x00, 0x01, 0x80, 0x00, 0x00, 0x04, 0x05, 0x0a, 0x81, 0x8a, 0x8b}
	frame = AppendChecksum(frame, 8)
	assert.Equal(t, byte(0x96), frame[len(frame)-1])
	assert.True(t, VerifyChecksum(frame, 8))

	frame[9]++
	assert.False(t, VerifyChecksum(frame, 8))
	assert.False(t, VerifyChecksum(nil, 0))
	assert.False(t, VerifyChecksum([]byte{0x01}, 4))
}

func TestKelvinPercent(t *testing.T) {
	assert.Equal(t, uint8(0), KelvinToPercent(2700, true))
	assert.Equal(t, uint8(100), KelvinToPercent(6500, true))
	assert.Equal(t, uint8(100), KelvinToPercent(2700, false))
	assert.Equal(t, uint8(0), KelvinToPercent(9000, false), "out of range clamps")
	assert.Equal(t, 4600, PercentToKelvin(50, true))
	assert.Equal(t, 6500, PercentToKelvin(0, false))

	for k := MinKelvin; k <= MaxKelvin; k += 38 {
		pct := KelvinToPercent(k, true)
		assert.InDelta(t, k, PercentToKelvin(int(pct), true), 19, "kelvin %d", k)
	}
}

func TestSplitWhite(t *testing.T) {
	ww, cw := SplitWhite(2700, 200)
	assert.Equal(t, uint8(200), ww)
	assert.Equal(t, uint8(0), cw)

	ww, cw = SplitWhite(4600, 200)
	assert.Equal(t, uint8(100), ww)
	assert.Equal(t, uint8(100), cw)

	k, b := KelvinFromWhite(ww, cw)
	assert.Equal(t, 4600, k)
	assert.Equal(t, uint8(200), b)

	k, b = KelvinFromWhite(0, 0)
	assert.Equal(t, MinKelvin, k)
	assert.Equal(t, uint8(0), b)
}
