package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/store"
)

type probeJSON struct {
	Address   string `json:"address"`
	ProductID uint8  `json:"product_id"`
	Probed    bool   `json:"probed"`
	HasRGB    bool   `json:"has_rgb"`
	HasWW     bool   `json:"has_ww"`
	HasCW     bool   `json:"has_cw"`
	Fallback  bool   `json:"fallback"`
}

func newProbeCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "probe <address>",
		Short: "Detect the color channels of an unlisted product",
		Long: `Light each color channel alone and read back what the lamp reports, to find
out which channels a product missing from the capability table drives.
The lamp's previous color is restored afterwards.

The result is stored per product ID and applied to every later command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDevice(cmd, args[0], func(a *app, dev *device.Device) error {
				ctx, cancel := commandContext(cmd, a)
				defer cancel()

				var (
					res device.ProbeResult
					ran bool
					err error
				)
				if force {
					res, err = dev.Probe(ctx)
					ran = err == nil
				} else {
					res, ran, err = dev.ProbeIfNeeded(ctx)
				}
				if err != nil {
					return err
				}

				if ran && a.store != nil {
					rec := store.OverlayRecord{
						ProductID: res.ProductID,
						Overlay:   res.Overlay,
						Address:   dev.Address(),
						Fallback:  res.Fallback,
						ProbedAt:  time.Now(),
					}
					if err := a.store.SaveOverlay(rec); err != nil {
						return fmt.Errorf("saving probe result: %w", err)
					}
				}
				return printProbe(a.out, a.format, dev, res, ran)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Probe even when the product is already described")
	return cmd
}

func printProbe(w io.Writer, format string, dev *device.Device, res device.ProbeResult, ran bool) error {
	st := dev.CurrentState()
	caps := dev.Capabilities()
	if !ran {
		res.ProductID = st.ProductID
		res.HasRGB, res.HasWW, res.HasCW = caps.HasRGB, caps.HasWW, caps.HasCW
	}

	if format == "json" {
		return writeJSON(w, probeJSON{
			Address:   dev.Address(),
			ProductID: res.ProductID,
			Probed:    ran,
			HasRGB:    res.HasRGB,
			HasWW:     res.HasWW,
			HasCW:     res.HasCW,
			Fallback:  res.Fallback,
		})
	}

	if !ran {
		fmt.Fprintf(w, "Product 0x%02X needs no probe (%s); use --force to probe anyway\n", res.ProductID, caps.String())
		return nil
	}
	fmt.Fprintf(w, "Product 0x%02X: rgb=%s ww=%s cw=%s\n", res.ProductID, yesNo(res.HasRGB), yesNo(res.HasWW), yesNo(res.HasCW))
	if res.Fallback {
		fmt.Fprintln(w, offColor.Sprint("Lamp stopped answering; all channels assumed present"))
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return onColor.Sprint("yes")
	}
	return dimColor.Sprint("no")
}
