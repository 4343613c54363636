package device

import (
	"fmt"
	"time"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
	"github.com/srg/lednet/internal/protocol"
)

// Effect names used for modes that are not catalogue effects.
const (
	EffectSound  = "Sound Reactive"
	EffectCandle = "Candle"
)

// Phase is the connection/correlation phase of a device.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseIdle
	PhaseAwaitingState
	PhaseAwaitingLedSettings
	PhaseProbing
)

var phaseNames = map[Phase]string{
	PhaseDisconnected:        "disconnected",
	PhaseConnecting:          "connecting",
	PhaseIdle:                "connected_idle",
	PhaseAwaitingState:       "awaiting_state",
	PhaseAwaitingLedSettings: "awaiting_led_settings",
	PhaseProbing:             "probing",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText renders the phase name in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// EventSource tells what caused a state change.
type EventSource int

const (
	SourceNotification EventSource = iota
	SourceAdvertisement
	SourceCommand
	SourceProbe
)

func (s EventSource) String() string {
	switch s {
	case SourceNotification:
		return "notification"
	case SourceAdvertisement:
		return "advertisement"
	case SourceCommand:
		return "command"
	case SourceProbe:
		return "probe"
	default:
		return "unknown"
	}
}

// MarshalText renders the source name in JSON output.
func (s EventSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateChangeEvent is published after every merge that changed the state.
type StateChangeEvent struct {
	Address string      `json:"address"`
	Source  EventSource `json:"source"`
	Changed []string    `json:"changed"`
	State   State       `json:"state"`
	Time    time.Time   `json:"time"`
}

// metaPriorities remembers which source last set each metadata field.
type metaPriorities struct {
	ble, firmware, led, flag protocol.MetadataPriority
}

// State is the last known state of one lamp. Exactly one of RGB, Kelvin
// and Effect describes the current mode, except that a settled effect keeps
// its name while RGB carries the live foreground color.
type State struct {
	Address      string `json:"address"`
	ProductID    uint8  `json:"product_id"`
	ProductKnown bool   `json:"product_known"`

	IsOn             *bool                 `json:"is_on"`
	Brightness       uint8                 `json:"brightness"`
	RGB              *codec.RGB            `json:"rgb,omitempty"`
	Kelvin           *int                  `json:"color_temp_kelvin,omitempty"`
	Effect           string                `json:"effect,omitempty"`
	EffectRef        *capability.EffectRef `json:"-"`
	EffectSpeed      int                   `json:"effect_speed"`
	SoundSensitivity *int                  `json:"sound_sensitivity,omitempty"`
	BgRGB            *codec.RGB            `json:"bg_rgb,omitempty"`
	BgBrightness     uint8                 `json:"bg_brightness"`
	Strip            *protocol.LedSettings `json:"strip,omitempty"`

	BLEVersion      int `json:"ble_version"`
	LEDVersion      int `json:"led_version"`
	FirmwareVersion int `json:"firmware_version"`
	FirmwareMinor   int `json:"firmware_minor"`
	FirmwareFlag    int `json:"firmware_flag"`

	Sequence  uint16    `json:"sequence"`
	Phase     Phase     `json:"phase"`
	UpdatedAt time.Time `json:"updated_at"`

	priorities metaPriorities
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.IsOn != nil {
		v := *s.IsOn
		out.IsOn = &v
	}
	if s.RGB != nil {
		v := *s.RGB
		out.RGB = &v
	}
	if s.Kelvin != nil {
		v := *s.Kelvin
		out.Kelvin = &v
	}
	if s.EffectRef != nil {
		v := *s.EffectRef
		out.EffectRef = &v
	}
	if s.SoundSensitivity != nil {
		v := *s.SoundSensitivity
		out.SoundSensitivity = &v
	}
	if s.BgRGB != nil {
		v := *s.BgRGB
		out.BgRGB = &v
	}
	if s.Strip != nil {
		v := *s.Strip
		out.Strip = &v
	}
	return out
}

// Snapshot returns the fields the encoder reads.
func (s *State) Snapshot() protocol.Snapshot {
	return protocol.Snapshot{
		Firmware:     s.FirmwareVersion,
		RGB:          s.RGB,
		Brightness:   s.Brightness,
		Effect:       s.EffectRef,
		EffectSpeed:  s.EffectSpeed,
		BgRGB:        s.BgRGB,
		BgBrightness: s.BgBrightness,
	}
}

func (s *State) setRGBMode(rgb codec.RGB) {
	s.RGB = &rgb
	s.Kelvin = nil
	s.clearEffect()
}

func (s *State) setWhiteMode(kelvin int) {
	s.Kelvin = &kelvin
	s.RGB = nil
	s.clearEffect()
}

func (s *State) setEffectMode(name string, ref *capability.EffectRef) {
	s.Effect = name
	s.EffectRef = ref
	s.Kelvin = nil
	if ref == nil || ref.Kind != capability.EffectSettled {
		s.RGB = nil
	}
	if name != EffectSound {
		s.SoundSensitivity = nil
	}
}

func (s *State) clearEffect() {
	s.Effect = ""
	s.EffectRef = nil
	s.SoundSensitivity = nil
}

func (s *State) inSettledEffect() bool {
	return s.EffectRef != nil && s.EffectRef.Kind == capability.EffectSettled
}

// Merge applies a decoded payload and returns the names of changed fields.
func (s *State) Merge(d *protocol.DecodedState, caps capability.ProductCapabilities) []string {
	if d == nil {
		return nil
	}
	before := s.Clone()

	if d.HasProduct {
		s.ProductID = d.ProductID
		s.ProductKnown = true
	}

	switch d.Kind {
	case protocol.PayloadState:
		s.mergeState(d, caps)
	case protocol.PayloadLedSettings:
		if d.LedSettings != nil {
			v := *d.LedSettings
			s.Strip = &v
		}
	}

	if d.Metadata != nil {
		s.mergeMetadata(d.Metadata)
	}

	return changedFields(before, *s)
}

func (s *State) mergeState(d *protocol.DecodedState, caps capability.ProductCapabilities) {
	switch d.Power {
	case protocol.PowerOn:
		s.IsOn = boolPtr(true)
	case protocol.PowerOff:
		s.IsOn = boolPtr(false)
	}

	switch d.ModeKind {
	case protocol.ModeRGB:
		if d.RGB != nil {
			s.setRGBMode(*d.RGB)
		}
	case protocol.ModeWhite:
		if d.Kelvin != nil {
			s.setWhiteMode(*d.Kelvin)
		}
	case protocol.ModeSettled, protocol.ModeEffect:
		if d.Effect != nil {
			ref := *d.Effect
			s.setEffectMode(effectName(caps.EffectType, ref), &ref)
			if ref.Kind == capability.EffectSettled && d.RGB != nil {
				rgb := *d.RGB
				s.RGB = &rgb
			}
		}
		if d.EffectSpeed != nil {
			s.EffectSpeed = *d.EffectSpeed
		}
	case protocol.ModeSound:
		s.setEffectMode(EffectSound, nil)
		if d.SoundSensitivity != nil {
			v := *d.SoundSensitivity
			s.SoundSensitivity = &v
		}
	}

	// Nil brightness means the mode does not report it reliably; keep the
	// last commanded value.
	if d.Brightness != nil {
		s.Brightness = *d.Brightness
	}
}

func (s *State) mergeMetadata(m *protocol.Metadata) {
	p := m.Priority
	if m.HasBLEVersion && p >= s.priorities.ble {
		s.BLEVersion = m.BLEVersion
		s.priorities.ble = p
	}
	if m.HasFirmware && p >= s.priorities.firmware {
		s.FirmwareVersion = m.FirmwareVersion
		s.FirmwareMinor = m.FirmwareMinor
		s.priorities.firmware = p
	}
	if m.HasLEDVersion && p >= s.priorities.led {
		s.LEDVersion = m.LEDVersion
		s.priorities.led = p
	}
	if m.HasFirmwareFlag && p >= s.priorities.flag {
		s.FirmwareFlag = m.FirmwareFlag
		s.priorities.flag = p
	}
}

// applyIntent is the optimistic update after a successful write.
func (s *State) applyIntent(in protocol.Intent, caps capability.ProductCapabilities) []string {
	before := s.Clone()

	switch in := in.(type) {
	case protocol.PowerIntent:
		s.IsOn = boolPtr(in.On)
	case protocol.ColorIntent:
		if s.inSettledEffect() {
			rgb := in.RGB
			s.RGB = &rgb
		} else {
			s.setRGBMode(in.RGB)
		}
		s.Brightness = in.Brightness
	case protocol.WhiteIntent:
		s.setWhiteMode(codec.ClampKelvin(in.Kelvin))
		s.Brightness = in.Brightness
	case protocol.EffectIntent:
		ref, ok := capability.EffectIDForName(caps.EffectType, in.Name)
		if ok {
			s.setEffectMode(effectName(caps.EffectType, ref), &ref)
		} else {
			s.setEffectMode(in.Name, nil)
		}
		s.EffectSpeed = codec.ClampInt(in.Speed, 0, 100)
		if caps.EffectType != capability.EffectSimple {
			s.Brightness = in.Brightness
		}
	case protocol.BackgroundIntent:
		rgb := in.RGB
		s.BgRGB = &rgb
		s.BgBrightness = in.Brightness
	case protocol.StripConfigIntent:
		s.Strip = &protocol.LedSettings{
			LEDCount:   in.LEDCount,
			Segments:   in.Segments,
			ICType:     in.ICType,
			ColorOrder: in.ColorOrder,
			Direction:  in.Direction,
		}
	case protocol.SoundIntent:
		if in.Enabled {
			s.setEffectMode(EffectSound, nil)
			v := codec.ClampInt(in.Sensitivity, 1, 100)
			s.SoundSensitivity = &v
			s.Brightness = in.Brightness
		} else if s.Effect == EffectSound {
			s.clearEffect()
		}
	case protocol.CandleIntent:
		s.setEffectMode(EffectCandle, nil)
		rgb := in.RGB
		s.RGB = &rgb
		s.EffectSpeed = codec.ClampInt(in.Speed, 0, 100)
		s.Brightness = in.Brightness
	case protocol.LevelsIntent:
		if in.R|in.G|in.B != 0 {
			s.setRGBMode(codec.RGB{R: in.R, G: in.G, B: in.B})
			s.Brightness = codec.BrightnessFromRGB(*s.RGB)
		} else if in.WW|in.CW != 0 {
			k, bri := codec.KelvinFromWhite(in.WW, in.CW)
			s.setWhiteMode(k)
			s.Brightness = bri
		}
	}

	return changedFields(before, *s)
}

func effectName(t capability.EffectType, ref capability.EffectRef) string {
	if name, ok := capability.NameForEffectID(t, ref); ok {
		return name
	}
	if ref.Kind == capability.EffectSettled {
		return fmt.Sprintf("Static Effect 0x%02X", ref.ID)
	}
	return fmt.Sprintf("Effect 0x%02X", ref.ID)
}

func changedFields(a, b State) []string {
	var out []string
	add := func(cond bool, name string) {
		if cond {
			out = append(out, name)
		}
	}

	add(a.ProductID != b.ProductID || a.ProductKnown != b.ProductKnown, "product_id")
	add(!eqPtr(a.IsOn, b.IsOn), "is_on")
	add(a.Brightness != b.Brightness, "brightness")
	add(!eqPtr(a.RGB, b.RGB), "rgb")
	add(!eqPtr(a.Kelvin, b.Kelvin), "color_temp_kelvin")
	add(a.Effect != b.Effect || !eqPtr(a.EffectRef, b.EffectRef), "effect")
	add(a.EffectSpeed != b.EffectSpeed, "effect_speed")
	add(!eqPtr(a.SoundSensitivity, b.SoundSensitivity), "sound_sensitivity")
	add(!eqPtr(a.BgRGB, b.BgRGB) || a.BgBrightness != b.BgBrightness, "background")
	add(!eqPtr(a.Strip, b.Strip), "strip")
	add(a.BLEVersion != b.BLEVersion || a.LEDVersion != b.LEDVersion ||
		a.FirmwareVersion != b.FirmwareVersion || a.FirmwareMinor != b.FirmwareMinor ||
		a.FirmwareFlag != b.FirmwareFlag, "firmware")
	return out
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boolPtr(v bool) *bool { return &v }
