package protocol

import (
	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
)

const (
	modeStatic  byte = 0x61
	subRGB      byte = 0xF0
	subWhite    byte = 0x0F
	modeDynamic byte = 0x25
	modeSound   byte = 0x62

	simpleEffectFirst byte = 0x25
	simpleEffectLast  byte = 0x38
)

// modeRule maps one (mode, sub) pattern to an interpretation of the value
// bytes.
type modeRule struct {
	kind      ModeKind
	matches   func(mode, sub byte) bool
	interpret func(d *DecodedState, c capability.ProductCapabilities)
}

var (
	rgbRule = modeRule{
		kind:    ModeRGB,
		matches: func(mode, sub byte) bool { return mode == modeStatic && sub == subRGB },
		interpret: func(d *DecodedState, _ capability.ProductCapabilities) {
			raw := d.RawRGB()
			pure := codec.PureRGB(raw)
			d.RGB = &pure
			d.Brightness = u8ptr(codec.BrightnessFromRGB(raw))
		},
	}

	// Simple devices report white as raw channel levels.
	simpleWhiteRule = modeRule{
		kind:    ModeWhite,
		matches: func(mode, sub byte) bool { return mode == modeStatic && sub == subWhite },
		interpret: func(d *DecodedState, _ capability.ProductCapabilities) {
			k, b := codec.KelvinFromWhite(d.WW, d.CW)
			d.Kelvin = &k
			d.Brightness = &b
		},
	}

	// Extended devices report white as brightness and temperature percents.
	percentWhiteRule = modeRule{
		kind:    ModeWhite,
		matches: func(mode, sub byte) bool { return mode == modeStatic && sub == subWhite },
		interpret: func(d *DecodedState, c capability.ProductCapabilities) {
			k := codec.PercentToKelvin(int(d.Value2), c.WarmAtZero())
			d.Kelvin = &k
			d.Brightness = u8ptr(codec.PercentToBrightness(int(d.Value1)))
		},
	}

	settledRule = modeRule{
		kind: ModeSettled,
		matches: func(mode, sub byte) bool {
			return mode == modeStatic && sub >= 1 && sub <= capability.SettledEffectCount
		},
		interpret: func(d *DecodedState, _ capability.ProductCapabilities) {
			raw := d.RawRGB()
			pure := codec.PureRGB(raw)
			d.RGB = &pure
			d.Brightness = u8ptr(codec.BrightnessFromRGB(raw))
			d.Effect = &capability.EffectRef{Kind: capability.EffectSettled, ID: d.SubMode}
		},
	}

	dynamicRule = modeRule{
		kind:    ModeEffect,
		matches: func(mode, _ byte) bool { return mode == modeDynamic },
		interpret: func(d *DecodedState, c capability.ProductCapabilities) {
			d.Effect = &capability.EffectRef{Kind: capability.EffectDynamic, ID: d.SubMode}
			d.Brightness = u8ptr(codec.PercentToBrightness(int(d.Value1)))
			speed := c.SpeedScale.RawToPercent(d.Value2)
			d.EffectSpeed = &speed
		},
	}

	// Simple effects carry the effect id in the mode byte. Their brightness
	// report is derived from already-scaled output and is not trusted.
	simpleEffectRule = modeRule{
		kind:    ModeEffect,
		matches: func(mode, _ byte) bool { return mode >= simpleEffectFirst && mode <= simpleEffectLast },
		interpret: func(d *DecodedState, c capability.ProductCapabilities) {
			d.Effect = &capability.EffectRef{Kind: capability.EffectDynamic, ID: d.Mode}
			speed := c.SpeedScale.RawToPercent(d.Value1)
			d.EffectSpeed = &speed
		},
	}

	soundRule = modeRule{
		kind:    ModeSound,
		matches: func(mode, _ byte) bool { return mode == modeSound },
		interpret: func(d *DecodedState, _ capability.ProductCapabilities) {
			d.Brightness = u8ptr(codec.PercentToBrightness(int(d.Value1)))
			sens := int(d.Value2)
			d.SoundSensitivity = &sens
		},
	}
)

// modeRules is the mode table, keyed by effect type.
var modeRules = map[capability.EffectType][]modeRule{
	capability.EffectNone:          {rgbRule, percentWhiteRule},
	capability.EffectSimple:        {rgbRule, simpleWhiteRule, simpleEffectRule, soundRule},
	capability.EffectSymphony:      {rgbRule, percentWhiteRule, settledRule, dynamicRule, soundRule},
	capability.EffectAddressable53: {rgbRule, percentWhiteRule, dynamicRule, soundRule},
	capability.EffectIotbt:         {rgbRule, percentWhiteRule, dynamicRule, soundRule},
}

// rulesFor picks the rule set. Simple-family products report white as raw
// levels even without an effect catalogue.
func rulesFor(c capability.ProductCapabilities) []modeRule {
	if c.Family == capability.FamilySimple && c.EffectType == capability.EffectNone {
		return []modeRule{rgbRule, simpleWhiteRule}
	}
	if rules, ok := modeRules[c.EffectType]; ok {
		return rules
	}
	return nil
}

// interpretMode applies the first matching rule and sets the mode flags.
func interpretMode(d *DecodedState, c capability.ProductCapabilities) {
	d.ModeKind = ModeUnknown
	for _, r := range rulesFor(c) {
		if !r.matches(d.Mode, d.SubMode) {
			continue
		}
		d.ModeKind = r.kind
		r.interpret(d, c)
		break
	}

	d.IsRGBMode = d.ModeKind == ModeRGB || d.ModeKind == ModeSettled
	d.IsWhiteMode = d.ModeKind == ModeWhite
	d.IsEffectMode = d.ModeKind == ModeEffect || d.ModeKind == ModeSettled || d.ModeKind == ModeSound
}

func u8ptr(v uint8) *uint8 { return &v }
