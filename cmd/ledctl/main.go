package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree. Every call returns fresh flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ledctl",
		Short: "LEDnet BLE LED controller",
		Long: `Control LEDnet ("Magic Home" / Zengge) Bluetooth LED lamps and strips:

- Scan for lamps and decode their advertised state
- Switch power, set colors, white temperature and effects
- Configure addressable strips, sound-reactive and candle modes
- Probe the color channels of products missing from the capability table
- Bridge lamps to an MQTT broker`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.PersistentFlags().StringP("format", "f", "", "Output format (table, json)")

	root.AddCommand(
		newScanCmd(),
		newStateCmd(),
		newPowerCmd(),
		newColorCmd(),
		newWhiteCmd(),
		newEffectCmd(),
		newBackgroundCmd(),
		newStripCmd(),
		newSoundCmd(),
		newCandleCmd(),
		newProbeCmd(),
		newEffectsCmd(),
		newBridgeCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
