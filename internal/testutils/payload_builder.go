package testutils

import (
	"encoding/binary"

	"github.com/srg/lednet/internal/codec"
)

// StateResponseBuilder builds 0x81 state response payloads.
// Fields default to a powered-on device in RGB mode showing black.
type StateResponseBuilder struct {
	productID  byte
	power      byte
	mode       byte
	sub        byte
	v1, v2     byte
	r, g, b    byte
	ww, cw     byte
	ledVersion byte
	badSum     bool
}

// NewStateResponse creates a StateResponseBuilder.
func NewStateResponse() *StateResponseBuilder {
	return &StateResponseBuilder{power: 0x23, mode: 0x61, sub: 0xF0}
}

func (b *StateResponseBuilder) WithProduct(id byte) *StateResponseBuilder {
	b.productID = id
	return b
}

func (b *StateResponseBuilder) WithPower(on bool) *StateResponseBuilder {
	b.power = 0x24
	if on {
		b.power = 0x23
	}
	return b
}

func (b *StateResponseBuilder) WithMode(mode, sub byte) *StateResponseBuilder {
	b.mode, b.sub = mode, sub
	return b
}

func (b *StateResponseBuilder) WithValues(v1, v2 byte) *StateResponseBuilder {
	b.v1, b.v2 = v1, v2
	return b
}

func (b *StateResponseBuilder) WithRGB(r, g, bl byte) *StateResponseBuilder {
	b.r, b.g, b.b = r, g, bl
	return b
}

func (b *StateResponseBuilder) WithWhite(ww, cw byte) *StateResponseBuilder {
	b.ww, b.cw = ww, cw
	return b
}

func (b *StateResponseBuilder) WithLEDVersion(v byte) *StateResponseBuilder {
	b.ledVersion = v
	return b
}

// WithBadChecksum corrupts the trailing checksum.
func (b *StateResponseBuilder) WithBadChecksum() *StateResponseBuilder {
	b.badSum = true
	return b
}

// Build returns the 14-byte payload.
func (b *StateResponseBuilder) Build() []byte {
	p := []byte{0x81, b.productID, b.power, b.mode, b.sub, b.v1, b.r, b.g, b.b, b.ww, b.v2, b.cw, b.ledVersion}
	p = codec.AppendChecksum(p, 0)
	if b.badSum {
		p[len(p)-1]++
	}
	return p
}

// ManufacturerDataBuilder builds LEDnet manufacturer advertisement data,
// company ID first.
type ManufacturerDataBuilder struct {
	companyID  uint16
	bleVersion byte
	mac        [6]byte
	productID  byte
	firmware   byte
	ledVersion byte
	fwFlag     byte
	power      byte
	mode, sub  byte
	v1, v2     byte
	r, g, b    byte
	ww, cw     byte
}

// NewManufacturerData creates a ManufacturerDataBuilder with company ID
// 0x5A00 and a powered-on device in RGB mode.
func NewManufacturerData() *ManufacturerDataBuilder {
	return &ManufacturerDataBuilder{
		companyID:  0x5A00,
		bleVersion: 5,
		mac:        [6]byte{0xC0, 0xFF, 0xEE, 0x00, 0x00, 0x01},
		power:      0x23,
		mode:       0x61,
		sub:        0xF0,
	}
}

func (b *ManufacturerDataBuilder) WithCompanyID(id uint16) *ManufacturerDataBuilder {
	b.companyID = id
	return b
}

func (b *ManufacturerDataBuilder) WithProduct(id byte) *ManufacturerDataBuilder {
	b.productID = id
	return b
}

func (b *ManufacturerDataBuilder) WithVersions(ble, firmware, led byte) *ManufacturerDataBuilder {
	b.bleVersion, b.firmware, b.ledVersion = ble, firmware, led
	return b
}

func (b *ManufacturerDataBuilder) WithFirmwareFlag(flag byte) *ManufacturerDataBuilder {
	b.fwFlag = flag
	return b
}

func (b *ManufacturerDataBuilder) WithPower(on bool) *ManufacturerDataBuilder {
	b.power = 0x24
	if on {
		b.power = 0x23
	}
	return b
}

func (b *ManufacturerDataBuilder) WithMode(mode, sub byte) *ManufacturerDataBuilder {
	b.mode, b.sub = mode, sub
	return b
}

func (b *ManufacturerDataBuilder) WithValues(v1, v2 byte) *ManufacturerDataBuilder {
	b.v1, b.v2 = v1, v2
	return b
}

func (b *ManufacturerDataBuilder) WithRGB(r, g, bl byte) *ManufacturerDataBuilder {
	b.r, b.g, b.b = r, g, bl
	return b
}

func (b *ManufacturerDataBuilder) WithWhite(ww, cw byte) *ManufacturerDataBuilder {
	b.ww, b.cw = ww, cw
	return b
}

// Build returns company ID (little-endian) followed by the 24-byte body and
// two trailing padding bytes.
func (b *ManufacturerDataBuilder) Build() []byte {
	out := make([]byte, 2, 28)
	binary.LittleEndian.PutUint16(out, b.companyID)
	out = append(out, 0x01, b.bleVersion)
	out = append(out, b.mac[:]...)
	out = append(out, 0x00, b.productID, b.firmware, b.ledVersion, b.fwFlag, 0x00)
	out = append(out, b.power, b.mode, b.sub, b.v1, b.r, b.g, b.b, b.ww, b.v2, b.cw)
	return append(out, 0x00, 0x00)
}

// ServiceData builds the 0xFFFF version metadata payload.
func ServiceData(bleVersion, fwMajor, fwMinor, ledVersion, flags byte) []byte {
	return []byte{bleVersion, fwMajor, fwMinor, ledVersion, flags}
}

// LedSettingsResponse builds a 0x63 strip configuration payload.
func LedSettingsResponse(count, segments int, ic, order, direction byte) []byte {
	return []byte{0x63, 0x00,
		byte(count >> 8), byte(count),
		byte(segments >> 8), byte(segments),
		ic, order, direction}
}

// ExtendedStateResponse builds an 0xEA 0x81 payload.
func ExtendedStateResponse(productID, power, mode, sub byte, hue int, sat, val, temp, wbri, speed byte) []byte {
	return []byte{0xEA, 0x81, productID, power, mode, sub,
		byte(hue >> 8), byte(hue), sat, val, temp, wbri, speed}
}
