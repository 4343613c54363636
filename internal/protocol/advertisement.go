package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// UnknownCompanyID tells ParseManufacturerData to read the company ID
	// from the first two bytes of the raw data (little-endian).
	UnknownCompanyID uint16 = 0

	companyIDMin uint16 = 0x5A00
	companyIDMax uint16 = 0x5AFF

	// ServiceDataUUID is the 16-bit service UUID carrying version metadata.
	ServiceDataUUID = "ffff"

	manufacturerBodyLen = 24
	serviceDataLen      = 5
)

// IsLEDnetCompanyID reports whether a manufacturer company ID belongs to the
// LEDnet range.
func IsLEDnetCompanyID(id uint16) bool {
	return id >= companyIDMin && id <= companyIDMax
}

// ManufacturerData is the parsed LEDnet manufacturer advertisement.
//
// Format (after the 2-byte company ID):
//   - Byte 0:     status
//   - Byte 1:     BLE protocol version
//   - Bytes 2-7:  MAC address
//   - Bytes 8-9:  product ID (big-endian, low byte used)
//   - Byte 10:    firmware version
//   - Byte 11:    LED hardware version
//   - Byte 12:    firmware feature flags
//   - Byte 13:    reserved
//   - Bytes 14-23: power mode sub v1 R G B WW v2 CW
type ManufacturerData struct {
	CompanyID    uint16
	Status       uint8
	BLEVersion   uint8
	MAC          [6]byte
	ProductID    uint8
	Firmware     uint8
	LEDVersion   uint8
	FirmwareFlag uint8
	Power        uint8
	Mode         uint8
	SubMode      uint8
	Value1       uint8
	R, G, B      uint8
	WW           uint8
	Value2       uint8
	CW           uint8
}

// MACString formats the advertised MAC address.
func (m *ManufacturerData) MACString() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m.MAC[0], m.MAC[1], m.MAC[2], m.MAC[3], m.MAC[4], m.MAC[5])
}

// ParseManufacturerData parses LEDnet manufacturer data. rawData starts with
// the company ID unless companyID is given explicitly, in which case rawData
// is the body only.
//
// Returns (nil, nil) for company IDs outside the LEDnet range.
func ParseManufacturerData(companyID uint16, rawData []byte) (*ManufacturerData, error) {
	body := rawData
	id := companyID
	if companyID == UnknownCompanyID {
		if len(rawData) < 2 {
			return nil, fmt.Errorf("manufacturer data too short: %d bytes", len(rawData))
		}
		id = binary.LittleEndian.Uint16(rawData[0:2])
		body = rawData[2:]
	}
	if !IsLEDnetCompanyID(id) {
		return nil, nil
	}
	if len(body) < manufacturerBodyLen {
		return nil, fmt.Errorf("manufacturer data too short: %d bytes, need %d", len(body), manufacturerBodyLen)
	}

	m := &ManufacturerData{
		CompanyID:    id,
		Status:       body[0],
		BLEVersion:   body[1],
		ProductID:    body[9],
		Firmware:     body[10],
		LEDVersion:   body[11],
		FirmwareFlag: body[12],
		Power:        body[14],
		Mode:         body[15],
		SubMode:      body[16],
		Value1:       body[17],
		R:            body[18],
		G:            body[19],
		B:            body[20],
		WW:           body[21],
		Value2:       body[22],
		CW:           body[23],
	}
	copy(m.MAC[:], body[2:8])
	return m, nil
}

// ServiceData is the parsed version metadata from the 0xFFFF service data.
type ServiceData struct {
	BLEVersion    uint8
	FirmwareMajor uint8
	FirmwareMinor uint8
	LEDVersion    uint8
	Flags         uint8
}

// ParseServiceData parses the 0xFFFF service data payload.
func ParseServiceData(data []byte) (*ServiceData, error) {
	if len(data) < serviceDataLen {
		return nil, fmt.Errorf("service data too short: %d bytes", len(data))
	}
	return &ServiceData{
		BLEVersion:    data[0],
		FirmwareMajor: data[1],
		FirmwareMinor: data[2],
		LEDVersion:    data[3],
		Flags:         data[4],
	}, nil
}

// DecodeAdvertisement decodes manufacturer data (company ID first) and the
// optional 0xFFFF service data. Service metadata takes priority over the
// manufacturer copy. Returns false when neither payload is usable.
func (d *Decoder) DecodeAdvertisement(manufacturer, service []byte) (*DecodedState, bool) {
	st, err := d.DecodeAdvertisementErr(manufacturer, service)
	if err != nil {
		d.logger.WithError(err).Debug("Advertisement not decoded")
		return nil, false
	}
	return st, true
}

// DecodeAdvertisementErr is DecodeAdvertisement with the rejection reason.
func (d *Decoder) DecodeAdvertisementErr(manufacturer, service []byte) (*DecodedState, error) {
	var st *DecodedState

	if len(manufacturer) > 0 {
		m, err := ParseManufacturerData(UnknownCompanyID, manufacturer)
		switch {
		case err != nil:
			d.logger.WithError(err).Debug("Manufacturer data rejected")
		case m != nil:
			st = d.stateFromManufacturer(m)
		}
	}

	if len(service) > 0 {
		sd, err := ParseServiceData(service)
		if err != nil {
			d.logger.WithError(err).Debug("Service data rejected")
		} else {
			if st == nil {
				st = &DecodedState{Kind: PayloadMetadata, Source: SourceAdvertisement}
			}
			st.Metadata = &Metadata{
				Priority:        PriorityService,
				BLEVersion:      int(sd.BLEVersion),
				FirmwareVersion: int(sd.FirmwareMajor),
				FirmwareMinor:   int(sd.FirmwareMinor),
				LEDVersion:      int(sd.LEDVersion),
				FirmwareFlag:    int(sd.Flags),
				HasBLEVersion:   true,
				HasFirmware:     true,
				HasLEDVersion:   true,
				HasFirmwareFlag: true,
			}
		}
	}

	if st == nil {
		return nil, decodeErr(manufacturer, "no usable advertisement payload")
	}
	return st, nil
}

func (d *Decoder) stateFromManufacturer(m *ManufacturerData) *DecodedState {
	st := &DecodedState{
		Kind:       PayloadState,
		Source:     SourceAdvertisement,
		ProductID:  m.ProductID,
		HasProduct: true,
		Power:      powerFromByte(m.Power),
		Mode:       m.Mode,
		SubMode:    m.SubMode,
		Value1:     m.Value1,
		R:          m.R,
		G:          m.G,
		B:          m.B,
		WW:         m.WW,
		Value2:     m.Value2,
		CW:         m.CW,
		Metadata: &Metadata{
			Priority:        PriorityManufacturer,
			BLEVersion:      int(m.BLEVersion),
			FirmwareVersion: int(m.Firmware),
			LEDVersion:      int(m.LEDVersion),
			FirmwareFlag:    int(m.FirmwareFlag),
			HasBLEVersion:   true,
			HasFirmware:     true,
			HasLEDVersion:   true,
			HasFirmwareFlag: true,
		},
	}
	interpretMode(st, d.db.Lookup(m.ProductID))
	return st
}
