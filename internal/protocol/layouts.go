package protocol

import (
	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
)

// fixedLayout holds the hardcoded payload builders of one product family. A
// nil builder means the family has no wire format for that operation.
type fixedLayout struct {
	power      func(in PowerIntent) []byte
	color      func(in ColorIntent, c capability.ProductCapabilities, s Snapshot) []byte
	white      func(in WhiteIntent, c capability.ProductCapabilities) []byte
	effect     func(ref capability.EffectRef, in EffectIntent, c capability.ProductCapabilities, s Snapshot) []byte
	background func(in BackgroundIntent, c capability.ProductCapabilities, s Snapshot) []byte
	strip      func(in StripConfigIntent) []byte
	sound      func(in SoundIntent) []byte
	candle     func(in CandleIntent, c capability.ProductCapabilities) []byte
	levels     func(in LevelsIntent) []byte
}

var layouts = map[capability.Family]fixedLayout{
	capability.FamilySimple: {
		power:  simplePower,
		color:  simpleColor,
		white:  simpleWhite,
		effect: simpleEffect,
		sound:  soundPayload,
		candle: simpleCandle,
		levels: levelsPayload,
	},
	capability.FamilySymphony: {
		power:      hsvPower,
		color:      hsvColor,
		white:      hsvWhite,
		effect:     hsvEffect,
		background: hsvBackground,
		strip:      stripPayload,
		sound:      soundPayload,
		levels:     levelsPayload,
	},
	capability.FamilyAddressable53: {
		power:  hsvPower,
		color:  hsvColor,
		white:  hsvWhite,
		effect: hsvEffect,
		strip:  stripPayload,
		sound:  soundPayload,
		levels: levelsPayload,
	},
	capability.FamilyIotbt: {
		power:  iotbtPower,
		color:  iotbtColor,
		white:  iotbtWhite,
		effect: iotbtEffect,
	},
	capability.FamilySwitch: {
		power: simplePower,
	},
}

const (
	powerOn  byte = 0x23
	powerOff byte = 0x24
)

func powerByte(on bool) byte {
	if on {
		return powerOn
	}
	return powerOff
}

func boolByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

func briPercent(b uint8) byte {
	return codec.BrightnessToPercent(b)
}

func speedPercent(speed int) byte {
	return byte(codec.ClampInt(speed, 0, 100))
}

// litBrightness keeps a color command from going dark by accident.
func litBrightness(b uint8) uint8 {
	if b == 0 {
		return 1
	}
	return b
}

// Simple family: classic levels protocol, brightness folded into RGB.

func simplePower(in PowerIntent) []byte {
	return []byte{0x71, powerByte(in.On), 0x0F}
}

func simpleColor(in ColorIntent, _ capability.ProductCapabilities, _ Snapshot) []byte {
	c := codec.ScaleRGB(in.RGB, litBrightness(in.Brightness))
	return []byte{0x31, c.R, c.G, c.B, 0x00, 0x00, 0xF0, 0x0F}
}

func simpleWhite(in WhiteIntent, c capability.ProductCapabilities) []byte {
	bri := litBrightness(in.Brightness)
	var ww, cw uint8
	switch {
	case c.HasWW && c.HasCW:
		ww, cw = codec.SplitWhite(in.Kelvin, bri)
	case c.HasCW:
		cw = bri
	default:
		ww = bri
	}
	return []byte{0x31, 0x00, 0x00, 0x00, ww, cw, 0x0F, 0x0F}
}

func simpleEffect(ref capability.EffectRef, in EffectIntent, c capability.ProductCapabilities, _ Snapshot) []byte {
	return []byte{0x61, ref.ID, c.SpeedScale.PercentToRaw(in.Speed), 0x0F}
}

func simpleCandle(in CandleIntent, c capability.ProductCapabilities) []byte {
	return []byte{0x39, 0xD1, in.RGB.R, in.RGB.G, in.RGB.B,
		c.SpeedScale.PercentToRaw(in.Speed), briPercent(in.Brightness), 0x03}
}

func levelsPayload(in LevelsIntent) []byte {
	return []byte{0x31, in.R, in.G, in.B, in.WW, in.CW, 0xFF, 0x0F}
}

// Symphony and Addressable53: 0x3B HSV protocol.

func hsvPower(in PowerIntent) []byte {
	return []byte{0x3B, powerByte(in.On), 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x32, 0x00, 0x00}
}

func hsvColor(in ColorIntent, c capability.ProductCapabilities, s Snapshot) []byte {
	if s.Effect != nil && s.Effect.Kind == capability.EffectSettled {
		return settledPayload(s.Effect.ID, in.RGB, litBrightness(in.Brightness), s.BgRGB, s.BgBrightness,
			c.SpeedScale.PercentToRaw(s.EffectSpeed))
	}
	hue, sat := codec.HueSaturation(in.RGB)
	return []byte{0x3B, 0xA1, byte(hue / 2), byte(sat), briPercent(in.Brightness),
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
}

func hsvWhite(in WhiteIntent, c capability.ProductCapabilities) []byte {
	temp := codec.KelvinToPercent(in.Kelvin, c.WarmAtZero())
	return []byte{0x3B, 0xB1, 0x00, 0x00, 0x00, temp, briPercent(in.Brightness),
		0x00, 0x00, 0x00, 0x00, 0x00}
}

func hsvEffect(ref capability.EffectRef, in EffectIntent, c capability.ProductCapabilities, s Snapshot) []byte {
	if ref.Kind == capability.EffectSettled {
		fg := codec.RGB{R: 255, G: 255, B: 255}
		if s.RGB != nil {
			fg = *s.RGB
		}
		return settledPayload(ref.ID, fg, litBrightness(in.Brightness), s.BgRGB, s.BgBrightness,
			c.SpeedScale.PercentToRaw(in.Speed))
	}
	op := byte(0x42)
	if c.Uses0x38Effects {
		op = 0x38
	}
	return []byte{op, ref.ID, c.SpeedScale.PercentToRaw(in.Speed), briPercent(in.Brightness)}
}

func hsvBackground(in BackgroundIntent, c capability.ProductCapabilities, s Snapshot) []byte {
	id := uint8(1)
	if s.Effect != nil && s.Effect.Kind == capability.EffectSettled {
		id = s.Effect.ID
	}
	fg := codec.RGB{R: 255, G: 255, B: 255}
	if s.RGB != nil {
		fg = *s.RGB
	}
	bg := in.RGB
	return settledPayload(id, fg, litBrightness(s.Brightness), &bg, in.Brightness, c.SpeedScale.PercentToRaw(s.EffectSpeed))
}

// settledPayload builds the combined foreground/background command. A nil
// background is sent as black. speed is already on the product's scale.
func settledPayload(id uint8, fg codec.RGB, fgBri uint8, bg *codec.RGB, bgBri uint8, speed uint8) []byte {
	f := codec.ScaleRGB(fg, fgBri)
	b := codec.Black
	if bg != nil {
		b = codec.ScaleRGB(*bg, bgBri)
	}
	return []byte{0x41, id, f.R, f.G, f.B, b.R, b.G, b.B, speed, 0x00, 0x00, 0x00, 0xF0}
}

func stripPayload(in StripConfigIntent) []byte {
	count := codec.ClampInt(in.LEDCount, 1, 0xFFFF)
	segments := codec.ClampInt(in.Segments, 1, 0xFFFF)
	return []byte{0x62,
		byte(count >> 8), byte(count),
		byte(segments >> 8), byte(segments),
		in.ICType, in.ColorOrder, in.Direction, 0xF0}
}

func soundPayload(in SoundIntent) []byte {
	effect := in.Effect
	if effect == 0 {
		effect = 0x01
	}
	return []byte{0x73, boolByte(in.Enabled), byte(codec.ClampInt(in.Sensitivity, 1, 100)), effect, briPercent(in.Brightness)}
}

// IOTBT: 0xE0 opcode set with a hue ring instead of RGB.

// IotbtWideRingFirmware is the first firmware with the 240-step hue ring.
const IotbtWideRingFirmware = 11

func iotbtPower(in PowerIntent) []byte {
	return []byte{0xE0, 0x01, 0x00, boolByte(in.On)}
}

func iotbtColor(in ColorIntent, _ capability.ProductCapabilities, s Snapshot) []byte {
	ring := 24
	if s.Firmware >= IotbtWideRingFirmware {
		ring = 240
	}
	hue, sat := codec.HueSaturation(in.RGB)
	idx := IotbtHueIndex(hue, ring)
	return []byte{0xE0, 0x02, byte(ring), byte(idx), byte(sat), briPercent(in.Brightness)}
}

// IotbtHueIndex maps a hue in degrees onto a ring of the given size.
func IotbtHueIndex(hue, ring int) int {
	idx := (hue*ring + 180) / 360
	return idx % ring
}

func iotbtWhite(in WhiteIntent, c capability.ProductCapabilities) []byte {
	return []byte{0xE0, 0x03, codec.KelvinToPercent(in.Kelvin, c.WarmAtZero()), briPercent(in.Brightness)}
}

func iotbtEffect(ref capability.EffectRef, in EffectIntent, _ capability.ProductCapabilities, _ Snapshot) []byte {
	return []byte{0xE0, 0x06, ref.ID, speedPercent(in.Speed), briPercent(in.Brightness)}
}
