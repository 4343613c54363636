package protocol

import "github.com/srg/lednet/internal/codec"

// Intent is a user request the encoder can turn into a frame. The set is
// closed: only types in this package implement it.
type Intent interface {
	Op() string
	isIntent()
}

// Operation names, used in errors and logs.
const (
	OpPower       = "power"
	OpColor       = "color"
	OpWhite       = "white"
	OpEffect      = "effect"
	OpBackground  = "background"
	OpStripConfig = "strip_config"
	OpSound       = "sound"
	OpCandle      = "candle"
	OpLevels      = "levels"
	OpQueryState  = "query_state"
	OpQueryLed    = "query_led_settings"
)

// PowerIntent switches the light on or off.
type PowerIntent struct {
	On bool
}

// ColorIntent sets a foreground color. RGB is the unscaled color and
// Brightness (0-255) is applied by the encoder.
type ColorIntent struct {
	RGB        codec.RGB
	Brightness uint8
}

// WhiteIntent sets a color temperature.
type WhiteIntent struct {
	Kelvin     int
	Brightness uint8
}

// EffectIntent starts a named effect. Speed is 0-100 percent.
type EffectIntent struct {
	Name       string
	Speed      int
	Brightness uint8
}

// BackgroundIntent sets the background color used by settled effects.
type BackgroundIntent struct {
	RGB        codec.RGB
	Brightness uint8
}

// StripConfigIntent configures an addressable strip.
type StripConfigIntent struct {
	LEDCount   int
	Segments   int
	ICType     uint8
	ColorOrder uint8
	Direction  uint8
}

// SoundIntent toggles sound-reactive mode. Sensitivity is 1-100. Effect
// selects the music pattern; 0 means the default pattern.
type SoundIntent struct {
	Enabled     bool
	Sensitivity int
	Effect      uint8
	Brightness  uint8
}

// CandleIntent starts candle flicker mode.
type CandleIntent struct {
	RGB        codec.RGB
	Speed      int
	Brightness uint8
}

// LevelsIntent writes raw channel levels. It is used by capability probing
// and works on every product that speaks the classic levels command.
type LevelsIntent struct {
	R, G, B, WW, CW uint8
}

// StateQuery asks the device for a standard state response.
type StateQuery struct{}

// LedSettingsQuery asks an addressable device for its strip configuration.
type LedSettingsQuery struct{}

func (PowerIntent) Op() string       { return OpPower }
func (ColorIntent) Op() string       { return OpColor }
func (WhiteIntent) Op() string       { return OpWhite }
func (EffectIntent) Op() string      { return OpEffect }
func (BackgroundIntent) Op() string  { return OpBackground }
func (StripConfigIntent) Op() string { return OpStripConfig }
func (SoundIntent) Op() string       { return OpSound }
func (CandleIntent) Op() string      { return OpCandle }
func (LevelsIntent) Op() string      { return OpLevels }
func (StateQuery) Op() string        { return OpQueryState }
func (LedSettingsQuery) Op() string  { return OpQueryLed }

func (PowerIntent) isIntent()       {}
func (ColorIntent) isIntent()       {}
func (WhiteIntent) isIntent()       {}
func (EffectIntent) isIntent()      {}
func (BackgroundIntent) isIntent()  {}
func (StripConfigIntent) isIntent() {}
func (SoundIntent) isIntent()       {}
func (CandleIntent) isIntent()      {}
func (LevelsIntent) isIntent()      {}
func (StateQuery) isIntent()        {}
func (LedSettingsQuery) isIntent()  {}
