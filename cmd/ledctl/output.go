package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/scanner"
)

var (
	labelColor = color.New(color.FgCyan)
	onColor    = color.New(color.FgGreen, color.Bold)
	offColor   = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func hexColor(c codec.RGB) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func powerLabel(on *bool) string {
	switch {
	case on == nil:
		return dimColor.Sprint("unknown")
	case *on:
		return onColor.Sprint("ON")
	default:
		return offColor.Sprint("OFF")
	}
}

func modeLabel(st device.State) string {
	switch {
	case st.Effect != "" && st.RGB != nil:
		return fmt.Sprintf("effect %q color %s speed %d%%", st.Effect, hexColor(*st.RGB), st.EffectSpeed)
	case st.Effect != "":
		return fmt.Sprintf("effect %q speed %d%%", st.Effect, st.EffectSpeed)
	case st.Kelvin != nil:
		return fmt.Sprintf("white %dK", *st.Kelvin)
	case st.RGB != nil:
		return "color " + hexColor(*st.RGB)
	default:
		return dimColor.Sprint("unknown")
	}
}

func productLabel(st device.State, caps capability.ProductCapabilities) string {
	if !st.ProductKnown {
		return dimColor.Sprint("not reported")
	}
	label := fmt.Sprintf("0x%02X", st.ProductID)
	if caps.Name != "" {
		label += " " + caps.Name
	}
	return label
}

// printState renders one lamp state.
func printState(w io.Writer, format string, st device.State, caps capability.ProductCapabilities) error {
	if format == "json" {
		return writeJSON(w, st)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(label, value string) {
		fmt.Fprintf(tw, "%s\t%s\n", labelColor.Sprint(label+":"), value)
	}

	row("Address", st.Address)
	row("Product", productLabel(st, caps))
	row("Power", powerLabel(st.IsOn))
	row("Mode", modeLabel(st))
	row("Brightness", fmt.Sprintf("%d%%", codec.BrightnessToPercent(st.Brightness)))
	if st.BgRGB != nil {
		row("Background", fmt.Sprintf("%s at %d%%", hexColor(*st.BgRGB), codec.BrightnessToPercent(st.BgBrightness)))
	}
	if st.SoundSensitivity != nil {
		row("Sensitivity", fmt.Sprintf("%d", *st.SoundSensitivity))
	}
	if st.Strip != nil {
		row("Strip", fmt.Sprintf("%d LEDs, %d segments, IC %d, order %d", st.Strip.LEDCount, st.Strip.Segments, st.Strip.ICType, st.Strip.ColorOrder))
	}
	if st.FirmwareVersion > 0 {
		row("Firmware", fmt.Sprintf("%d.%d", st.FirmwareVersion, st.FirmwareMinor))
	}
	if caps.ProductID == st.ProductID && st.ProductKnown {
		row("Channels", caps.String())
	}
	row("Phase", st.Phase.String())

	return tw.Flush()
}

type lampJSON struct {
	Address     string       `json:"address"`
	Name        string       `json:"name"`
	RSSI        int          `json:"rssi"`
	Connectable bool         `json:"connectable"`
	State       device.State `json:"state"`
}

// printLamps renders scan results.
func printLamps(w io.Writer, format string, lamps []*scanner.Lamp) error {
	if format == "json" {
		out := make([]lampJSON, 0, len(lamps))
		for _, l := range lamps {
			out = append(out, lampJSON{Address: l.Address, Name: l.Name, RSSI: l.RSSI, Connectable: l.Connectable, State: l.State()})
		}
		return writeJSON(w, out)
	}

	if len(lamps) == 0 {
		fmt.Fprintln(w, "No lamps discovered")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI\tPRODUCT\tPOWER\tMODE\tLAST SEEN")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, l := range lamps {
		st := l.State()
		name := l.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		product := "?"
		if st.ProductKnown {
			product = fmt.Sprintf("0x%02X", st.ProductID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d dBm\t%s\t%s\t%s\t%s ago\n",
			name, l.Address, l.RSSI, product, powerLabel(st.IsOn), modeLabel(st),
			time.Since(l.LastSeen).Truncate(time.Second))
	}
	return tw.Flush()
}
