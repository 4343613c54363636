package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
)

// Payload lengths.
const (
	stateResponseLen    = 14
	extendedResponseLen = 13
	ledSettingsLen      = 8
	ackLen              = 3
)

// Decoder parses notification and advertisement payloads. It never panics on
// malformed input: every index is bounds-checked and failures yield "no
// state".
type Decoder struct {
	db     *capability.Database
	logger *logrus.Logger
}

// NewDecoder creates a decoder. db resolves product IDs to effect types for
// mode interpretation; nil uses the built-in table only.
func NewDecoder(db *capability.Database, logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.New()
	}
	if db == nil {
		db = capability.NewDatabase(nil, logger)
	}
	return &Decoder{db: db, logger: logger}
}

// DecodeNotification decodes a GATT notification payload. It returns false
// for anything that is not a recognized, well-formed payload.
func (d *Decoder) DecodeNotification(data []byte) (*DecodedState, bool) {
	st, err := d.DecodeNotificationErr(data)
	if err != nil {
		d.logger.WithError(err).Debug("Notification not decoded")
		return nil, false
	}
	return st, true
}

// DecodeNotificationErr is DecodeNotification with the rejection reason.
func (d *Decoder) DecodeNotificationErr(data []byte) (*DecodedState, error) {
	payload, err := unwrapNotification(data)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, decodeErr(data, "empty payload")
	}

	switch {
	case payload[0] == 0x81:
		return d.decodeStateResponse(payload)
	case payload[0] == 0xEA && len(payload) > 1 && payload[1] == 0x81:
		return d.decodeExtendedResponse(payload)
	case payload[0] == 0x63:
		return decodeLedSettings(payload)
	case payload[0] == 0x00 && len(payload) > 1 && payload[1] == 0x63:
		return decodeLedSettings(payload[1:])
	case payload[0] == 0xF0:
		return decodeAck(payload)
	default:
		return nil, decodeErr(payload, "unknown leading byte 0x%02X", payload[0])
	}
}

// isKnownMagic reports whether b starts a raw (unwrapped) payload.
func isKnownMagic(b byte) bool {
	switch b {
	case 0x81, 0xEA, 0x63, 0x00, 0xF0:
		return true
	}
	return false
}

type wrappedPayload struct {
	Code    int    `json:"code"`
	Payload string `json:"payload"`
}

// unwrapNotification strips the JSON and bare-quoted hex wrappers some
// transports add.
func unwrapNotification(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, decodeErr(data, "empty payload")
	}

	if data[0] == '{' {
		var w wrappedPayload
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, decodeErr(data, "bad json wrapper: %v", err)
		}
		raw, err := hex.DecodeString(strings.ReplaceAll(w.Payload, " ", ""))
		if err != nil {
			return nil, decodeErr(data, "bad hex in json wrapper: %v", err)
		}
		return raw, nil
	}

	if !isKnownMagic(data[0]) {
		if raw, ok := trailingQuotedHex(data); ok {
			return raw, nil
		}
	}
	return data, nil
}

// trailingQuotedHex finds a final "…" run of hex digits and decodes it.
func trailingQuotedHex(data []byte) ([]byte, bool) {
	end := bytes.LastIndexByte(data, '"')
	if end <= 0 {
		return nil, false
	}
	start := bytes.LastIndexByte(data[:end], '"')
	if start < 0 {
		return nil, false
	}
	run := data[start+1 : end]
	if len(run) < 2 || len(run)%2 != 0 {
		return nil, false
	}
	raw, err := hex.DecodeString(string(run))
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (d *Decoder) decodeStateResponse(p []byte) (*DecodedState, error) {
	if len(p) < stateResponseLen {
		return nil, decodeErr(p, "state response too short: %d bytes", len(p))
	}
	p = p[:stateResponseLen]
	if !codec.VerifyChecksum(p, 0) {
		return nil, decodeErr(p, "state response checksum mismatch")
	}

	st := &DecodedState{
		Kind:       PayloadState,
		Source:     SourceNotification,
		ProductID:  p[1],
		HasProduct: true,
		Power:      powerFromByte(p[2]),
		Mode:       p[3],
		SubMode:    p[4],
		Value1:     p[5],
		R:          p[6],
		G:          p[7],
		B:          p[8],
		WW:         p[9],
		Value2:     p[10],
		CW:         p[11],
		Metadata: &Metadata{
			Priority:      PriorityManufacturer,
			LEDVersion:    int(p[12]),
			HasLEDVersion: true,
		},
	}
	interpretMode(st, d.db.Lookup(st.ProductID))
	return st, nil
}

// decodeExtendedResponse reads the HSV-based response and folds it into the
// same raw fields the mode table understands.
func (d *Decoder) decodeExtendedResponse(p []byte) (*DecodedState, error) {
	if len(p) < extendedResponseLen {
		return nil, decodeErr(p, "extended response too short: %d bytes", len(p))
	}

	hue := int(binary.BigEndian.Uint16(p[6:8]))
	sat, val := int(p[8]), int(p[9])
	temp, wbri, speed := p[10], p[11], p[12]

	st := &DecodedState{
		Kind:       PayloadState,
		Source:     SourceNotification,
		ProductID:  p[2],
		HasProduct: true,
		Power:      powerFromByte(p[3]),
		Mode:       p[4],
		SubMode:    p[5],
	}

	if st.Mode == modeStatic && st.SubMode == subWhite {
		st.Value1, st.Value2 = wbri, temp
	} else {
		st.Value1, st.Value2 = byte(codec.ClampInt(val, 0, 100)), speed
		rgb := codec.HSVToRGB(codec.HSV{H: hue, S: sat, V: val})
		st.R, st.G, st.B = rgb.R, rgb.G, rgb.B
	}

	interpretMode(st, d.db.Lookup(st.ProductID))
	return st, nil
}

func decodeLedSettings(p []byte) (*DecodedState, error) {
	if len(p) < ledSettingsLen {
		return nil, decodeErr(p, "led settings too short: %d bytes", len(p))
	}
	ls := &LedSettings{
		LEDCount:   int(binary.BigEndian.Uint16(p[2:4])),
		Segments:   int(binary.BigEndian.Uint16(p[4:6])),
		ICType:     p[6],
		ColorOrder: p[7],
	}
	if len(p) > ledSettingsLen {
		ls.Direction = p[8]
	}
	return &DecodedState{Kind: PayloadLedSettings, Source: SourceNotification, LedSettings: ls}, nil
}

func decodeAck(p []byte) (*DecodedState, error) {
	if len(p) < ackLen {
		return nil, decodeErr(p, "ack too short: %d bytes", len(p))
	}
	return &DecodedState{
		Kind:   PayloadAck,
		Source: SourceNotification,
		Ack:    &Ack{Opcode: p[1], Status: p[2]},
	}, nil
}
