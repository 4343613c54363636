package protocol

import (
	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
)

// PayloadKind tells what a decoded payload carried.
type PayloadKind int

const (
	PayloadState PayloadKind = iota
	PayloadLedSettings
	PayloadAck
	PayloadMetadata
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadState:
		return "state"
	case PayloadLedSettings:
		return "led_settings"
	case PayloadAck:
		return "ack"
	case PayloadMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Source tells where a payload came from.
type Source int

const (
	SourceNotification Source = iota
	SourceAdvertisement
)

// PowerState is a tri-state power flag.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerOn
	PowerOff
)

func powerFromByte(b byte) PowerState {
	switch b {
	case powerOn:
		return PowerOn
	case powerOff:
		return PowerOff
	default:
		return PowerUnknown
	}
}

// ModeKind is the interpreted meaning of a state payload's mode bytes.
type ModeKind int

const (
	ModeUnknown ModeKind = iota
	ModeRGB
	ModeWhite
	ModeEffect
	ModeSettled
	ModeSound
)

func (m ModeKind) String() string {
	switch m {
	case ModeRGB:
		return "rgb"
	case ModeWhite:
		return "white"
	case ModeEffect:
		return "effect"
	case ModeSettled:
		return "settled"
	case ModeSound:
		return "sound"
	default:
		return "unknown"
	}
}

// MetadataPriority orders metadata sources. A field set from a higher
// priority source is never replaced by a lower one.
type MetadataPriority int

const (
	PriorityNone MetadataPriority = iota
	PriorityManufacturer
	PriorityService
)

// Metadata is device identity information carried by advertisements and
// state responses.
type Metadata struct {
	Priority        MetadataPriority
	BLEVersion      int
	FirmwareVersion int
	FirmwareMinor   int
	LEDVersion      int
	FirmwareFlag    int
	HasBLEVersion   bool
	HasFirmware     bool
	HasLEDVersion   bool
	HasFirmwareFlag bool
}

// LedSettings is an addressable strip configuration.
type LedSettings struct {
	LEDCount   int
	Segments   int
	ICType     uint8
	ColorOrder uint8
	Direction  uint8
}

// Ack is a command acknowledgement.
type Ack struct {
	Opcode byte
	Status byte
}

// OK reports a zero status.
func (a Ack) OK() bool { return a.Status == 0 }

// DecodedState is the transient result of decoding one payload.
type DecodedState struct {
	Kind   PayloadKind
	Source Source

	ProductID  uint8
	HasProduct bool

	// Raw state fields.
	Power   PowerState
	Mode    uint8
	SubMode uint8
	Value1  uint8
	Value2  uint8
	R, G, B uint8
	WW, CW  uint8

	// Interpretation from the mode table. Nil pointers mean "not reported
	// or not reliable in this mode".
	ModeKind         ModeKind
	IsRGBMode        bool
	IsWhiteMode      bool
	IsEffectMode     bool
	RGB              *codec.RGB
	Brightness       *uint8
	Kelvin           *int
	Effect           *capability.EffectRef
	EffectSpeed      *int
	SoundSensitivity *int

	LedSettings *LedSettings
	Ack         *Ack
	Metadata    *Metadata
}

// RawRGB returns the reported, brightness-scaled color triple.
func (d *DecodedState) RawRGB() codec.RGB {
	return codec.RGB{R: d.R, G: d.G, B: d.B}
}
