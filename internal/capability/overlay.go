package capability

// Overlay holds capability fields learned at runtime, typically by probing.
// Nil fields leave the underlying record untouched. The same struct is the
// persisted form, so field names are part of the stored blob.
type Overlay struct {
	HasRGB        *bool       `cbor:"has_rgb,omitempty" json:"has_rgb,omitempty"`
	HasWW         *bool       `cbor:"has_ww,omitempty" json:"has_ww,omitempty"`
	HasCW         *bool       `cbor:"has_cw,omitempty" json:"has_cw,omitempty"`
	HasBgColor    *bool       `cbor:"has_bg_color,omitempty" json:"has_bg_color,omitempty"`
	HasICConfig   *bool       `cbor:"has_ic_config,omitempty" json:"has_ic_config,omitempty"`
	HasColorOrder *bool       `cbor:"has_color_order,omitempty" json:"has_color_order,omitempty"`
	HasBuiltinMic *bool       `cbor:"has_builtin_mic,omitempty" json:"has_builtin_mic,omitempty"`
	EffectType    *EffectType `cbor:"effect_type,omitempty" json:"effect_type,omitempty"`
}

// ChannelOverlay builds an overlay carrying only the three probed channels.
func ChannelOverlay(rgb, ww, cw bool) Overlay {
	return Overlay{HasRGB: &rgb, HasWW: &ww, HasCW: &cw}
}

// IsEmpty reports whether the overlay changes nothing.
func (o Overlay) IsEmpty() bool {
	return o.HasRGB == nil && o.HasWW == nil && o.HasCW == nil &&
		o.HasBgColor == nil && o.HasICConfig == nil && o.HasColorOrder == nil &&
		o.HasBuiltinMic == nil && o.EffectType == nil
}

// Merge returns o with every non-nil field of newer applied on top.
func (o Overlay) Merge(newer Overlay) Overlay {
	pick := func(old, n *bool) *bool {
		if n != nil {
			return n
		}
		return old
	}
	out := Overlay{
		HasRGB:        pick(o.HasRGB, newer.HasRGB),
		HasWW:         pick(o.HasWW, newer.HasWW),
		HasCW:         pick(o.HasCW, newer.HasCW),
		HasBgColor:    pick(o.HasBgColor, newer.HasBgColor),
		HasICConfig:   pick(o.HasICConfig, newer.HasICConfig),
		HasColorOrder: pick(o.HasColorOrder, newer.HasColorOrder),
		HasBuiltinMic: pick(o.HasBuiltinMic, newer.HasBuiltinMic),
		EffectType:    o.EffectType,
	}
	if newer.EffectType != nil {
		out.EffectType = newer.EffectType
	}
	return out
}

// Apply returns c with the overlay applied. Applying a non-empty overlay
// clears NeedsProbing.
func (o Overlay) Apply(c ProductCapabilities) ProductCapabilities {
	if o.IsEmpty() {
		return c
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.HasRGB, o.HasRGB)
	set(&c.HasWW, o.HasWW)
	set(&c.HasCW, o.HasCW)
	set(&c.HasBgColor, o.HasBgColor)
	set(&c.HasICConfig, o.HasICConfig)
	set(&c.HasColorOrder, o.HasColorOrder)
	set(&c.HasBuiltinMic, o.HasBuiltinMic)
	if o.EffectType != nil {
		c.EffectType = *o.EffectType
	}
	c.NeedsProbing = false
	c.Probed = true
	return c
}
