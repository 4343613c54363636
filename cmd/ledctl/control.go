package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"

	"github.com/srg/lednet/internal/codec"
	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/protocol"
)

// parseColor accepts "#RRGGBB", "RRGGBB" or "R,G,B".
func parseColor(s string) (codec.RGB, error) {
	if parts := strings.Split(s, ","); len(parts) == 3 {
		var v [3]uint8
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 || n > 255 {
				return codec.RGB{}, fmt.Errorf("invalid color %q: components must be 0-255", s)
			}
			v[i] = uint8(n)
		}
		return codec.RGB{R: v[0], G: v[1], B: v[2]}, nil
	}

	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return codec.RGB{}, fmt.Errorf("invalid color %q: use #RRGGBB or R,G,B", s)
	}
	r, g, b := c.RGB255()
	return codec.RGB{R: r, G: g, B: b}, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch value %q: use on or off", s)
}

func parseKelvin(s string) (int, error) {
	k, err := strconv.Atoi(strings.TrimSuffix(strings.ToUpper(s), "K"))
	if err != nil || k <= 0 {
		return 0, fmt.Errorf("invalid color temperature %q", s)
	}
	return k, nil
}

func validatePercent(name string, v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("--%s must be between 0 and 100, got %d", name, v)
	}
	return nil
}

// commandContext bounds a single command including connect.
func commandContext(cmd *cobra.Command, a *app) (context.Context, context.CancelFunc) {
	d := a.cfg.ConnectTimeout + a.cfg.StateQueryTimeout + a.cfg.LedSettingsTimeout
	return context.WithTimeout(cmd.Context(), d)
}

// runControl sends one operation and prints the resulting state.
func runControl(cmd *cobra.Command, address string, op func(ctx context.Context, dev *device.Device) error) error {
	return withDevice(cmd, address, func(a *app, dev *device.Device) error {
		ctx, cancel := commandContext(cmd, a)
		defer cancel()

		if err := op(ctx, dev); err != nil {
			return err
		}
		return printState(a.out, a.format, dev.CurrentState(), dev.Capabilities())
	})
}

func addBrightnessFlag(cmd *cobra.Command, v *int) {
	cmd.Flags().IntVarP(v, "brightness", "b", 100, "Brightness percent (0-100)")
}

func newPowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "power <address> <on|off>",
		Short: "Switch a lamp on or off",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			return runControl(cmd, args[0], func(ctx context.Context, dev *device.Device) error {
				return dev.SetPower(ctx, on)
			})
		},
	}
}

func newColorCmd() *cobra.Command {
	var brightness int
	cmd := &cobra.Command{
		Use:   "color <address> <color>",
		Short: "Set an RGB color",
		Long:  "Set an RGB color given as #RRGGBB or R,G,B. On a settled effect this sets the effect's foreground color.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rgb, err := parseColor(args[1])
			if err != nil {
				return err
			}
			if err := validatePercent("brightness", brightness); err != nil {
				return err
			}
			return runControl(cmd, args[0], func(ctx context.Context, dev *device.Device) error {
				return dev.SetColor(ctx, protocol.ColorIntent{RGB: rgb, Brightness: codec.PercentToBrightness(brightness)})
			})
		},
	}
	addBrightnessFlag(cmd, &brightness)
	return cmd
}

func newWhiteCmd() *cobra.Command {
	var brightness int
	cmd := &cobra.Command{
		Use:   "white <address> <kelvin>",
		Short: "Set a white color temperature (2700K-6500K)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kelvin, err := parseKelvin(args[1])
			if err != nil {
				return err
			}
			if err := validatePercent("brightness", brightness); err != nil {
				return err
			}
			return runControl(cmd, args[0], func(ctx context.Context, dev *device.Device) error {
				return dev.SetWhite(ctx, protocol.WhiteIntent{Kelvin: kelvin, Brightness: codec.PercentToBrightness(brightness)})
			})
		},
	}
	addBrightnessFlag(cmd, &brightness)
	return cmd
}

func newEffectCmd() *cobra.Command {
	var brightness, speed int
	cmd := &cobra.Command{
		Use:   "effect <address> <name>",
		Short: "Start a named effect",
		Long:  "Start a named effect. Use 'ledctl effects' to list the names a product supports.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePercent("brightness", brightness); err != nil {
				return err
			}
			if err := validatePercent("speed", speed); err != nil {
				return err
			}
			return runControl(cmd, args[0], func(ctx context.Context, dev *device.Device) error {
				return dev.SetEffect(ctx, protocol.EffectIntent{Name: args[1], Speed: speed, Brightness: codec.PercentToBrightness(brightness)})
			})
		},
	}
	addBrightnessFlag(cmd, &brightness)
	cmd.Flags().IntVarP(&speed, "speed", "s", 50, "Effect speed percent (0-100)")
	return cmd
}

func newBackgroundCmd() *cobra.Command {
	var brightness int
	cmd := &cobra.Command{
		Use:   "background <address> <color>",
		Short: "Set the background color of a settled effect",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rgb, err := parseColor(args[1])
			if err != nil {
				return err
			}
			if err := validatePercent("brightness", brightness); err != nil {
				return err
			}
			return runControl(cmd, args[0], func(ctx context.Context, dev *device.Device) error {
				return dev.SetBackground(ctx, protocol.BackgroundIntent{RGB: rgb, Brightness: codec.PercentToBrightness(brightness)})
			})
		},
	}
	addBrightnessFlag(cmd, &brightness)
	return cmd
}

func newStripCmd() *cobra.Command {
	var in protocol.StripConfigIntent
	var ic, order, direction int
	cmd := &cobra.Command{
		Use:   "strip <address>",
		Short: "Configure an addressable strip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.LEDCount <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			if in.Segments <= 0 {
				in.Segments = 1
			}
			for name, v := range map[string]int{"ic": ic, "order": order, "direction": direction} {
				if v < 0 || v > 255 {
					return fmt.Errorf("--%s must be between 0 and 255", name)
				}
			}
			in.ICType, in.ColorOrder, in.Direction = uint8(ic), uint8(order), uint8(direction)
			return runControl(cmd, args[0], func(ctx context.Context, dev *device.Device) error {
				return dev.SetStripConfig(ctx, in)
			})
		},
	}
	cmd.Flags().IntVar(&in.LEDCount, "count", 0, "Number of LEDs")
	cmd.Flags().IntVar(&in.Segments, "segments", 1, "Number of segments")
	cmd.Flags().IntVar(&ic, "ic", 1, "LED driver IC type code")
	cmd.Flags().IntVar(&order, "order", 0, "Color order code")
	cmd.Flags().IntVar(&direction, "direction", 0, "Strip direction (0 forward, 1 reverse)")
	return cmd
}

func newSoundCmd() *cobra.Command {
	var brightness, sensitivity, pattern int
	cmd := &cobra.Command{
		Use:   "sound <address> <on|off>",
		Short: "Toggle sound-reactive mode on lamps with a microphone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			if err := validatePercent("brightness", brightness); err != nil {
				return err
			}
			if sensitivity < 1 || sensitivity > 100 {
				return fmt.Errorf("--sensitivity must be between 1 and 100, got %d", sensitivity)
			}
			if pattern < 0 || pattern > 255 {
				return fmt.Errorf("--pattern must be between 0 and 255")
			}
			in := protocol.SoundIntent{
				Enabled:     on,
				Sensitivity: sensitivity,
				Effect:      uint8(pattern),
				Brightness:  codec.PercentToBrightness(brightness),
			}
			return runControl(cmd, args[0], func(ctx context.Context, dev *device.Device) error {
				return dev.SetSound(ctx, in)
			})
		},
	}
	addBrightnessFlag(cmd, &brightness)
	cmd.Flags().IntVar(&sensitivity, "sensitivity", 50, "Microphone sensitivity (1-100)")
	cmd.Flags().IntVar(&pattern, "pattern", 0, "Music pattern (0 for the default)")
	return cmd
}

func newCandleCmd() *cobra.Command {
	var brightness, speed int
	cmd := &cobra.Command{
		Use:   "candle <address> <color>",
		Short: "Start candle flicker mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rgb, err := parseColor(args[1])
			if err != nil {
				return err
			}
			if err := validatePercent("brightness", brightness); err != nil {
				return err
			}
			if err := validatePercent("speed", speed); err != nil {
				return err
			}
			return runControl(cmd, args[0], func(ctx context.Context, dev *device.Device) error {
				return dev.SetCandle(ctx, protocol.CandleIntent{RGB: rgb, Speed: speed, Brightness: codec.PercentToBrightness(brightness)})
			})
		},
	}
	addBrightnessFlag(cmd, &brightness)
	cmd.Flags().IntVarP(&speed, "speed", "s", 50, "Flicker speed percent (0-100)")
	return cmd
}

func newStateCmd() *cobra.Command {
	var strip bool
	cmd := &cobra.Command{
		Use:   "state <address>",
		Short: "Query and show the state of a lamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, args[0], func(a *app, dev *device.Device) error {
				ctx, cancel := commandContext(cmd, a)
				defer cancel()

				st, err := dev.QueryState(ctx)
				if err != nil {
					return err
				}
				if strip {
					settings, err := dev.QueryLedSettings(ctx)
					if err != nil {
						return err
					}
					st.Strip = &settings
				}
				return printState(a.out, a.format, st, dev.Capabilities())
			})
		},
	}
	cmd.Flags().BoolVar(&strip, "strip", false, "Also query addressable strip settings")
	return cmd
}
