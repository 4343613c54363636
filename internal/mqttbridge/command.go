package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/lednet/internal/codec"
	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/protocol"
)

// ErrEmptyCommand is returned for a set payload that asks for nothing.
var ErrEmptyCommand = errors.New("command has no recognised fields")

// ColorValue is an RGB triple on the wire.
type ColorValue struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Command is the JSON payload accepted on <prefix>/<lamp>/set. A mode
// field (color, color_temp_kelvin, effect) wins over a bare brightness
// change, and state OFF wins over everything.
type Command struct {
	State           string      `json:"state,omitempty"`
	Brightness      *int        `json:"brightness,omitempty"`
	Color           *ColorValue `json:"color,omitempty"`
	ColorTempKelvin *int        `json:"color_temp_kelvin,omitempty"`
	Effect          string      `json:"effect,omitempty"`
	EffectSpeed     *int        `json:"effect_speed,omitempty"`
}

// ParseCommand decodes and sanity-checks a set payload.
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, fmt.Errorf("invalid command JSON: %w", err)
	}
	cmd.State = strings.ToUpper(cmd.State)
	switch cmd.State {
	case "", "ON", "OFF":
	default:
		return cmd, fmt.Errorf("invalid state %q, want ON or OFF", cmd.State)
	}
	if cmd.State == "" && cmd.Brightness == nil && cmd.Color == nil &&
		cmd.ColorTempKelvin == nil && cmd.Effect == "" {
		return cmd, ErrEmptyCommand
	}
	return cmd, nil
}

// Apply turns cmd into device operations.
func (cmd Command) Apply(ctx context.Context, dev *device.Device) error {
	if cmd.State == "OFF" {
		return dev.SetPower(ctx, false)
	}

	cur := dev.CurrentState()
	bri := cur.Brightness
	if cmd.Brightness != nil {
		bri = uint8(codec.ClampInt(*cmd.Brightness, 0, 0xFF))
	}
	if bri == 0 {
		bri = 0xFF
	}

	hasMode := cmd.Color != nil || cmd.ColorTempKelvin != nil || cmd.Effect != ""
	if cmd.State == "ON" && (!hasMode || cur.IsOn == nil || !*cur.IsOn) {
		if err := dev.SetPower(ctx, true); err != nil {
			return err
		}
	}

	switch {
	case cmd.Color != nil:
		rgb := codec.RGB{R: cmd.Color.R, G: cmd.Color.G, B: cmd.Color.B}
		return dev.SetColor(ctx, protocol.ColorIntent{RGB: rgb, Brightness: bri})
	case cmd.ColorTempKelvin != nil:
		return dev.SetWhite(ctx, protocol.WhiteIntent{Kelvin: *cmd.ColorTempKelvin, Brightness: bri})
	case cmd.Effect != "":
		return setEffect(ctx, dev, cur, cmd.Effect, bri, cmd.speed(cur))
	case cmd.Brightness != nil:
		return reapply(ctx, dev, cur, bri, cmd.speed(cur))
	}
	return nil
}

func (cmd Command) speed(cur device.State) int {
	if cmd.EffectSpeed != nil {
		return *cmd.EffectSpeed
	}
	if cur.EffectSpeed > 0 {
		return cur.EffectSpeed
	}
	return 50
}

// candleColor is used when the candle color is not known.
var candleColor = codec.RGB{R: 0xFF, G: 0x8C, B: 0x00}

// reapply re-sends the current mode at a new brightness.
func reapply(ctx context.Context, dev *device.Device, cur device.State, bri uint8, speed int) error {
	switch {
	case cur.Effect == device.EffectSound || cur.Effect == device.EffectCandle:
		return setEffect(ctx, dev, cur, cur.Effect, bri, speed)
	case cur.Effect != "" && cur.RGB == nil:
		return dev.SetEffect(ctx, protocol.EffectIntent{Name: cur.Effect, Speed: speed, Brightness: bri})
	case cur.Kelvin != nil:
		return dev.SetWhite(ctx, protocol.WhiteIntent{Kelvin: *cur.Kelvin, Brightness: bri})
	case cur.RGB != nil:
		return dev.SetColor(ctx, protocol.ColorIntent{RGB: *cur.RGB, Brightness: bri})
	default:
		return dev.SetColor(ctx, protocol.ColorIntent{RGB: codec.RGB{R: 0xFF, G: 0xFF, B: 0xFF}, Brightness: bri})
	}
}

// setEffect starts name, routing the sound and candle modes to their own
// commands since they are not catalogue effects.
func setEffect(ctx context.Context, dev *device.Device, cur device.State, name string, bri uint8, speed int) error {
	switch name {
	case device.EffectSound:
		sensitivity := 50
		if cur.SoundSensitivity != nil {
			sensitivity = *cur.SoundSensitivity
		}
		return dev.SetSound(ctx, protocol.SoundIntent{Enabled: true, Sensitivity: sensitivity, Brightness: bri})
	case device.EffectCandle:
		rgb := candleColor
		if cur.Effect == device.EffectCandle && cur.RGB != nil {
			rgb = *cur.RGB
		}
		return dev.SetCandle(ctx, protocol.CandleIntent{RGB: rgb, Speed: speed, Brightness: bri})
	}
	return dev.SetEffect(ctx, protocol.EffectIntent{Name: name, Speed: speed, Brightness: bri})
}
