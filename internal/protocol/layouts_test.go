package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
)

var familyEffects = map[capability.Family]capability.EffectType{
	capability.FamilySimple:        capability.EffectSimple,
	capability.FamilySymphony:      capability.EffectSymphony,
	capability.FamilyAddressable53: capability.EffectAddressable53,
	capability.FamilyIotbt:         capability.EffectIotbt,
	capability.FamilySwitch:        capability.EffectNone,
}

// fullCaps claims every channel and feature so only the family layout
// decides what is encodable.
func fullCaps(f capability.Family, scale codec.Scale) capability.ProductCapabilities {
	return capability.ProductCapabilities{
		ProductID:       0x01,
		Family:          f,
		HasRGB:          true,
		HasWW:           true,
		HasCW:           true,
		HasBgColor:      true,
		HasICConfig:     true,
		HasColorOrder:   true,
		HasBuiltinMic:   true,
		HasCandleMode:   true,
		Uses0x38Effects: true,
		IsIotbt:         f == capability.FamilyIotbt,
		IsSwitch:        f == capability.FamilySwitch,
		EffectType:      familyEffects[f],
		SpeedScale:      scale,
	}
}

func layoutHas(l fixedLayout, in Intent) bool {
	switch in.(type) {
	case PowerIntent:
		return l.power != nil
	case ColorIntent:
		return l.color != nil
	case WhiteIntent:
		return l.white != nil
	case EffectIntent:
		return l.effect != nil
	case BackgroundIntent:
		return l.background != nil
	case StripConfigIntent:
		return l.strip != nil
	case SoundIntent:
		return l.sound != nil
	case CandleIntent:
		return l.candle != nil
	case LevelsIntent:
		return l.levels != nil
	case StateQuery, LedSettingsQuery:
		return true
	}
	return false
}

type layoutCase struct {
	in   Intent
	snap Snapshot
}

func layoutCases(caps capability.ProductCapabilities) []layoutCase {
	red := codec.RGB{R: 255}
	settled := capability.EffectRef{Kind: capability.EffectSettled, ID: 2}
	settledSnap := Snapshot{Effect: &settled, RGB: &red, Brightness: 180, EffectSpeed: 80}

	cases := []layoutCase{
		{in: PowerIntent{On: true}},
		{in: PowerIntent{On: false}},
		{in: ColorIntent{RGB: codec.RGB{R: 1, G: 2, B: 3}, Brightness: 255}},
		{in: ColorIntent{RGB: codec.RGB{G: 255}, Brightness: 64}, snap: settledSnap},
		{in: WhiteIntent{Kelvin: 2700, Brightness: 255}},
		{in: WhiteIntent{Kelvin: 6500, Brightness: 10}},
		{in: BackgroundIntent{RGB: codec.RGB{B: 200}, Brightness: 255}},
		{in: BackgroundIntent{RGB: codec.RGB{B: 200}, Brightness: 255}, snap: settledSnap},
		{in: StripConfigIntent{LEDCount: 150, Segments: 1, ICType: 2, ColorOrder: 1}},
		{in: SoundIntent{Enabled: true, Sensitivity: 100, Effect: 3, Brightness: 200}},
		{in: SoundIntent{Enabled: false}},
		{in: CandleIntent{RGB: codec.RGB{R: 255, G: 90}, Speed: 100, Brightness: 255}},
		{in: LevelsIntent{R: 0x32, WW: 0x10}},
		{in: StateQuery{}},
		{in: LedSettingsQuery{}},
		{in: ColorIntent{RGB: codec.RGB{B: 255}, Brightness: 255}, snap: Snapshot{Firmware: IotbtWideRingFirmware}},
	}
	for _, name := range capability.EffectList(caps.EffectType) {
		cases = append(cases, layoutCase{in: EffectIntent{Name: name, Speed: 100, Brightness: 255}})
		cases = append(cases, layoutCase{in: EffectIntent{Name: name, Speed: 0, Brightness: 1}, snap: settledSnap})
	}
	return cases
}

func TestLayouts_EveryFrameIsChecksummed(t *testing.T) {
	enc := NewEncoder(nil, nil)

	for family, layout := range layouts {
		for _, scale := range []codec.Scale{codec.ScalePercent, codec.ScaleInverted31} {
			caps := fullCaps(family, scale)
			for i, c := range layoutCases(caps) {
				name := fmt.Sprintf("%s/%d/%s#%d", family, scale, c.in.Op(), i)
				t.Run(name, func(t *testing.T) {
					frame, err := enc.Encode(c.in, caps, c.snap)
					if !layoutHas(layout, c.in) {
						assert.ErrorIs(t, err, ErrUnsupported, "a family without a builder MUST reject the intent")
						assert.Nil(t, frame)
						return
					}
					if _, isLevels := c.in.(LevelsIntent); isLevels && (caps.IsIotbt || caps.IsSwitch) {
						assert.ErrorIs(t, err, ErrUnsupported)
						return
					}

					require.NoError(t, err)
					_, err = ParseFrame(frame)
					require.NoError(t, err)

					n := len(frame) - 1
					require.Greater(t, n, HeaderLen, "frame MUST carry a payload")
					assert.Equal(t, codec.Checksum(frame[HeaderLen:n]), frame[n],
						"trailing byte MUST be the sum of the payload")
				})
			}
		}
	}
}

func TestLayouts_SettledSpeedFollowsProductScale(t *testing.T) {
	enc := NewEncoder(nil, nil)
	in := EffectIntent{Name: "Static Effect 1", Speed: 100, Brightness: 255}

	tests := []struct {
		scale    codec.Scale
		expected byte
	}{
		{scale: codec.ScalePercent, expected: 100},
		{scale: codec.ScaleInverted31, expected: codec.Inverted31FromPercent(100)},
	}
	for _, tt := range tests {
		caps := fullCaps(capability.FamilySymphony, tt.scale)
		frame, err := enc.Encode(in, caps, Snapshot{})
		require.NoError(t, err)

		payload := frame.Payload()
		require.Len(t, payload, 14)
		assert.Equal(t, byte(0x41), payload[0])
		assert.Equal(t, tt.expected, payload[8], "settled speed MUST use the product's speed scale")
	}
}

func TestLayouts_SettledColorOnEveryHSVFamily(t *testing.T) {
	enc := NewEncoder(nil, nil)
	settled := capability.EffectRef{Kind: capability.EffectSettled, ID: 4}
	snap := Snapshot{Effect: &settled, EffectSpeed: 100}

	for _, family := range []capability.Family{capability.FamilySymphony, capability.FamilyAddressable53} {
		caps := fullCaps(family, codec.ScaleInverted31)
		frame, err := enc.Encode(ColorIntent{RGB: codec.RGB{R: 255}, Brightness: 255}, caps, snap)
		require.NoError(t, err, family.String())

		payload := frame.Payload()
		require.Len(t, payload, 14, family.String())
		assert.Equal(t, []byte{0x41, 0x04, 0xFF, 0x00, 0x00}, payload[:5], "%s MUST keep the settled effect", family)
		assert.Equal(t, codec.Inverted31FromPercent(100), payload[8], "%s MUST rescale the stored speed", family)
	}
}
