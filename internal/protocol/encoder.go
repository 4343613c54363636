package protocol

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
)

// Snapshot is the slice of device state the encoder reads. Commands are a
// pure function of (intent, capabilities, snapshot).
type Snapshot struct {
	Firmware     int
	RGB          *codec.RGB
	Brightness   uint8
	Effect       *capability.EffectRef
	EffectSpeed  int
	BgRGB        *codec.RGB
	BgBrightness uint8
}

// Encoder turns intents into frames for a product.
type Encoder struct {
	db     *capability.Database
	logger *logrus.Logger
}

// NewEncoder creates an encoder. db provides firmware-gated templates; with a
// nil db only fixed layouts are used.
func NewEncoder(db *capability.Database, logger *logrus.Logger) *Encoder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Encoder{db: db, logger: logger}
}

// Encode builds the frame for in. Unsupported combinations return an
// *UnsupportedError and never an empty frame.
func (e *Encoder) Encode(in Intent, caps capability.ProductCapabilities, snap Snapshot) (Frame, error) {
	ref, err := e.checkSupported(in, caps)
	if err != nil {
		e.logger.WithError(err).Debug("Encode rejected")
		return nil, err
	}

	switch in.(type) {
	case StateQuery:
		return NewFrame([]byte{0x81, 0x8A, 0x8B}, true, true), nil
	case LedSettingsQuery:
		return NewFrame([]byte{0x63, 0x12, 0x21, 0xF0}, true, true), nil
	}

	if frame, ok := e.encodeWithTemplate(in, ref, caps, snap); ok {
		return frame, nil
	}
	return e.encodeFixed(in, ref, caps, snap)
}

// EncodeFunction renders a named capability-database function directly.
func (e *Encoder) EncodeFunction(code string, params map[string]int, caps capability.ProductCapabilities, firmware int) (Frame, error) {
	if e.db == nil {
		return nil, &TemplateError{Code: code, ProductID: caps.ProductID, Reason: "no capability database"}
	}
	if caps.Generic {
		return nil, &TemplateError{Code: code, ProductID: caps.ProductID, Reason: "product not identified"}
	}
	fn, ok := e.db.Function(caps.ProductID, code)
	if !ok {
		return nil, &TemplateError{Code: code, ProductID: caps.ProductID}
	}
	if !fn.SupportedBy(firmware) {
		return nil, &TemplateError{
			Code:      code,
			ProductID: caps.ProductID,
			Reason:    fmt.Sprintf("needs firmware %d, device has %d", fn.MinFirmware, firmware),
		}
	}
	return renderTemplate(fn, caps.ProductID, params, e.logger)
}

// checkSupported validates in against caps and resolves effect names.
func (e *Encoder) checkSupported(in Intent, caps capability.ProductCapabilities) (capability.EffectRef, error) {
	pid := caps.ProductID
	probing := caps.NeedsProbing

	switch in := in.(type) {
	case PowerIntent, StateQuery:
		return capability.EffectRef{}, nil
	case LevelsIntent:
		if caps.IsSwitch || caps.IsIotbt {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no levels command")
		}
	case ColorIntent:
		if !caps.HasRGB && !probing {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no rgb channel")
		}
	case WhiteIntent:
		if !caps.HasWhite() && !probing {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no white channel")
		}
	case EffectIntent:
		if !caps.HasEffects() {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no effects")
		}
		ref, ok := capability.EffectIDForName(caps.EffectType, in.Name)
		if !ok {
			return capability.EffectRef{}, unsupported(in.Op(), pid, fmt.Sprintf("unknown effect %q", in.Name))
		}
		return ref, nil
	case BackgroundIntent:
		if !caps.HasBgColor {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no background color")
		}
	case StripConfigIntent:
		if !caps.HasICConfig {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no strip configuration")
		}
	case SoundIntent:
		if !caps.HasBuiltinMic {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no microphone")
		}
	case CandleIntent:
		if !caps.HasCandleMode {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no candle mode")
		}
	case LedSettingsQuery:
		if !caps.HasICConfig && !probing {
			return capability.EffectRef{}, unsupported(in.Op(), pid, "no strip configuration")
		}
	}
	return capability.EffectRef{}, nil
}

// encodeWithTemplate tries the newest capability-database function for
// operations that have a preference list.
func (e *Encoder) encodeWithTemplate(in Intent, ref capability.EffectRef, caps capability.ProductCapabilities, snap Snapshot) (Frame, bool) {
	if e.db == nil || caps.Generic {
		return nil, false
	}

	var prefs []string
	params := map[string]int{}
	switch in := in.(type) {
	case PowerIntent:
		prefs = capability.PowerPreferences
		params[ParamState] = int(boolByte(in.On))
	case ColorIntent:
		if snap.Effect != nil && snap.Effect.Kind == capability.EffectSettled {
			return nil, false
		}
		prefs = capability.ColorPreferences
		hue, sat := codec.HueSaturation(in.RGB)
		params[ParamHue] = hue
		params[ParamHue2] = hue / 2
		params[ParamSat] = sat
		params[ParamBri] = int(briPercent(in.Brightness))
	case WhiteIntent:
		prefs = capability.WhitePreferences
		params[ParamTemp] = int(codec.KelvinToPercent(in.Kelvin, caps.WarmAtZero()))
		params[ParamBri] = int(briPercent(in.Brightness))
	case EffectIntent:
		if ref.Kind == capability.EffectSettled {
			return nil, false
		}
		prefs = capability.EffectPreferences
		params[ParamID] = int(ref.ID)
		params[ParamSpeed] = codec.ClampInt(in.Speed, 0, 100)
		params[ParamBri] = int(briPercent(in.Brightness))
	default:
		return nil, false
	}

	code, ok := e.db.BestFunction(caps.ProductID, snap.Firmware, prefs)
	if !ok {
		return nil, false
	}
	frame, err := e.EncodeFunction(code, params, caps, snap.Firmware)
	if err != nil {
		e.logger.WithError(err).WithField("function", code).Debug("Template encode failed, using fixed layout")
		return nil, false
	}
	return frame, true
}

func (e *Encoder) encodeFixed(in Intent, ref capability.EffectRef, caps capability.ProductCapabilities, snap Snapshot) (Frame, error) {
	layout := layouts[caps.Family]

	var payload []byte
	switch in := in.(type) {
	case PowerIntent:
		if layout.power != nil {
			payload = layout.power(in)
		}
	case ColorIntent:
		if layout.color != nil {
			payload = layout.color(in, caps, snap)
		}
	case WhiteIntent:
		if layout.white != nil {
			payload = layout.white(in, caps)
		}
	case EffectIntent:
		if layout.effect != nil {
			payload = layout.effect(ref, in, caps, snap)
		}
	case BackgroundIntent:
		if layout.background != nil {
			payload = layout.background(in, caps, snap)
		}
	case StripConfigIntent:
		if layout.strip != nil {
			payload = layout.strip(in)
		}
	case SoundIntent:
		if layout.sound != nil {
			payload = layout.sound(in)
		}
	case CandleIntent:
		if layout.candle != nil {
			payload = layout.candle(in, caps)
		}
	case LevelsIntent:
		if layout.levels != nil {
			payload = layout.levels(in)
		}
	}

	if payload == nil {
		err := unsupported(in.Op(), caps.ProductID, "no wire format for family "+caps.Family.String())
		e.logger.WithError(err).Debug("Encode rejected")
		return nil, err
	}
	return NewFrame(payload, false, true), nil
}
