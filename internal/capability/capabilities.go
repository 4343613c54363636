// Package capability describes what each LEDnet product variant can do.
//
// The package provides:
//   - ProductCapabilities records for every known product ID
//   - A "needs probing" record for unknown product IDs
//   - Firmware-gated command templates from the capability database
//   - Probed overlays merged over the static table at runtime
//   - Effect catalogues (name <-> id) per effect family
package capability

import (
	"fmt"
	"strings"

	"github.com/srg/lednet/internal/codec"
)

// Family selects the wire sub-protocol used for a product.
type Family int

const (
	FamilySimple        Family = iota // classic 0x31 levels protocol
	FamilySymphony                    // 0x3B HSV protocol, addressable strips
	FamilyAddressable53               // 0x3B protocol, ring/matrix devices
	FamilyIotbt                       // 0xE0 hue-ring protocol
	FamilySwitch                      // on/off only
)

var familyNames = map[Family]string{
	FamilySimple:        "simple",
	FamilySymphony:      "symphony",
	FamilyAddressable53: "addressable53",
	FamilyIotbt:         "iotbt",
	FamilySwitch:        "switch",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// ParseFamily is the inverse of Family.String.
func ParseFamily(name string) (Family, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for f, s := range familyNames {
		if s == n {
			return f, nil
		}
	}
	return FamilySimple, fmt.Errorf("unknown family %q", name)
}

// EffectType selects the effect catalogue and effect-mode decoding rules.
type EffectType int

const (
	EffectNone EffectType = iota
	EffectSimple
	EffectSymphony
	EffectAddressable53
	EffectIotbt
)

var effectTypeNames = map[EffectType]string{
	EffectNone:          "none",
	EffectSimple:        "simple",
	EffectSymphony:      "symphony",
	EffectAddressable53: "addressable53",
	EffectIotbt:         "iotbt",
}

func (t EffectType) String() string {
	if s, ok := effectTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("effect_type(%d)", int(t))
}

// ParseEffectType is the inverse of EffectType.String.
func ParseEffectType(name string) (EffectType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for t, s := range effectTypeNames {
		if s == n {
			return t, nil
		}
	}
	return EffectNone, fmt.Errorf("unknown effect type %q", name)
}

// ProductCapabilities is the immutable capability record of one product ID.
// Records are handed out by value; Functions is shared and must not be mutated.
type ProductCapabilities struct {
	ProductID uint8
	Name      string
	Family    Family

	HasRGB          bool
	HasWW           bool
	HasCW           bool
	HasBgColor      bool
	HasICConfig     bool
	HasColorOrder   bool
	HasBuiltinMic   bool
	HasCandleMode   bool
	Uses0x38Effects bool
	IsSwitch        bool
	IsIotbt         bool

	EffectType EffectType
	SpeedScale codec.Scale

	// NeedsProbing marks a record synthesized for an unknown product ID.
	// Channel flags are not trustworthy until a probe overlay is merged.
	NeedsProbing bool
	// Probed marks a record that has a probe overlay applied.
	Probed bool
	// Generic marks the stand-in used before a device reported its product
	// ID. ProductID is meaningless and no templates apply.
	Generic bool

	Functions FunctionSet
}

// HasWhite reports whether the product has any white channel.
func (c ProductCapabilities) HasWhite() bool {
	return c.HasWW || c.HasCW
}

// HasColorTemp reports whether the product can mix a color temperature.
func (c ProductCapabilities) HasColorTemp() bool {
	return (c.HasWW && c.HasCW) || (c.IsIotbt && c.HasWhite())
}

// WarmAtZero reports the color-temperature percent direction for this
// product: true when 0% is 2700K.
func (c ProductCapabilities) WarmAtZero() bool {
	return c.Family != FamilyIotbt
}

// HasEffects reports whether the product has an effect catalogue.
func (c ProductCapabilities) HasEffects() bool {
	return c.EffectType != EffectNone
}

// String returns a compact one-line description.
func (c ProductCapabilities) String() string {
	var channels []string
	if c.HasRGB {
		channels = append(channels, "rgb")
	}
	if c.HasWW {
		channels = append(channels, "ww")
	}
	if c.HasCW {
		channels = append(channels, "cw")
	}
	if len(channels) == 0 {
		channels = append(channels, "-")
	}
	s := fmt.Sprintf("0x%02X %s family=%s channels=%s effects=%s",
		c.ProductID, c.Name, c.Family, strings.Join(channels, "+"), c.EffectType)
	if c.NeedsProbing {
		s += " (needs probing)"
	}
	return s
}
