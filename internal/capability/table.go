package capability

import "github.com/srg/lednet/internal/codec"

// staticProducts returns a fresh copy of the built-in product table.
func staticProducts() map[uint8]ProductCapabilities {
	products := []ProductCapabilities{
		{
			ProductID: 0x00, Name: "IOTBT Light", Family: FamilyIotbt,
			HasRGB: true, HasWW: true, HasCW: true, IsIotbt: true,
			EffectType: EffectIotbt, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x04, Name: "UFO RGBW", Family: FamilySimple,
			HasRGB: true, HasWW: true,
			EffectType: EffectSimple, SpeedScale: codec.ScaleInverted31,
		},
		{
			ProductID: 0x06, Name: "Controller RGBW", Family: FamilySimple,
			HasRGB: true, HasWW: true,
			EffectType: EffectSimple, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x07, Name: "Controller RGBCW", Family: FamilySimple,
			HasRGB: true, HasWW: true, HasCW: true,
			EffectType: EffectSimple, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x08, Name: "Mini RGB Mic", Family: FamilySimple,
			HasRGB: true, HasBuiltinMic: true,
			EffectType: EffectSimple, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x09, Name: "Ceiling Light CCT", Family: FamilySimple,
			HasWW: true, HasCW: true,
			EffectType: EffectNone, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x0E, Name: "Floor Lamp RGBCW", Family: FamilySimple,
			HasRGB: true, HasWW: true, HasCW: true,
			EffectType: EffectSimple, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x1D, Name: "Smart Switch", Family: FamilySwitch,
			IsSwitch:   true,
			EffectType: EffectNone, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x1E, Name: "Ceiling Light RGBCW", Family: FamilySimple,
			HasRGB: true, HasWW: true, HasCW: true,
			EffectType: EffectSimple, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x21, Name: "Bulb Dimmable", Family: FamilySimple,
			HasWW:      true,
			EffectType: EffectNone, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x33, Name: "Mini RGB", Family: FamilySimple,
			HasRGB:     true,
			EffectType: EffectSimple, SpeedScale: codec.ScaleInverted31,
		},
		{
			ProductID: 0x35, Name: "Bulb RGBCW", Family: FamilySimple,
			HasRGB: true, HasWW: true, HasCW: true,
			EffectType: EffectSimple, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x41, Name: "Controller Dimmable", Family: FamilySimple,
			HasWW:      true,
			EffectType: EffectNone, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x44, Name: "Bulb RGBW", Family: FamilySimple,
			HasRGB: true, HasWW: true,
			EffectType: EffectSimple, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x52, Name: "Bulb CCT", Family: FamilySimple,
			HasWW: true, HasCW: true,
			EffectType: EffectNone, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x53, Name: "Ring Light", Family: FamilyAddressable53,
			HasRGB: true, HasWW: true, HasCW: true, Uses0x38Effects: true,
			EffectType: EffectAddressable53, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x54, Name: "Symphony Strip", Family: FamilySymphony,
			HasRGB: true, HasICConfig: true, HasColorOrder: true, Uses0x38Effects: true,
			EffectType: EffectSymphony, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x56, Name: "Symphony Strip Mic", Family: FamilySymphony,
			HasRGB: true, HasBgColor: true, HasICConfig: true, HasColorOrder: true,
			HasBuiltinMic: true, Uses0x38Effects: true,
			EffectType: EffectSymphony, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x5B, Name: "CCT Strip", Family: FamilySymphony,
			HasWW: true, HasCW: true,
			EffectType: EffectNone, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0x62, Name: "RGBW Candle", Family: FamilySimple,
			HasRGB: true, HasWW: true, HasCandleMode: true,
			EffectType: EffectSimple, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0xA1, Name: "Addressable v1", Family: FamilySymphony,
			HasRGB: true, HasICConfig: true,
			EffectType: EffectSymphony, SpeedScale: codec.ScaleInverted31,
		},
		{
			ProductID: 0xA2, Name: "Addressable v2", Family: FamilySymphony,
			HasRGB: true, HasICConfig: true, HasColorOrder: true,
			EffectType: EffectSymphony, SpeedScale: codec.ScalePercent,
		},
		{
			ProductID: 0xA3, Name: "Addressable v3", Family: FamilySymphony,
			HasRGB: true, HasBgColor: true, HasICConfig: true, HasColorOrder: true,
			HasBuiltinMic: true,
			EffectType: EffectSymphony, SpeedScale: codec.ScalePercent,
		},
	}

	table := make(map[uint8]ProductCapabilities, len(products))
	for _, p := range products {
		table[p.ProductID] = p
	}
	return table
}

// unknownProduct is the permissive record returned for product IDs missing
// from the table.
func unknownProduct(productID uint8) ProductCapabilities {
	return ProductCapabilities{
		ProductID:    productID,
		Name:         "Unknown",
		Family:       FamilySymphony,
		EffectType:   EffectSymphony,
		SpeedScale:   codec.ScalePercent,
		NeedsProbing: true,
	}
}

// Generic returns the permissive stand-in for a device whose product ID is
// not known yet.
func Generic() ProductCapabilities {
	c := unknownProduct(0)
	c.Name = "Unidentified"
	c.Generic = true
	return c
}
