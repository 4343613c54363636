package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/srg/lednet/internal/capability"
)

type effectsJSON struct {
	ProductID  uint8    `json:"product_id"`
	Product    string   `json:"product"`
	EffectType string   `json:"effect_type"`
	Effects    []string `json:"effects"`
}

func parseProductID(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid product ID %q: use a number such as 0x35", s)
	}
	return uint8(v), nil
}

func newEffectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "effects <product-id>",
		Short: "List the effect names a product supports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			pid, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close()) }()

			caps := a.db.Lookup(pid)
			names := capability.EffectList(caps.EffectType)

			if a.format == "json" {
				return writeJSON(a.out, effectsJSON{
					ProductID:  pid,
					Product:    caps.Name,
					EffectType: caps.EffectType.String(),
					Effects:    names,
				})
			}

			if len(names) == 0 {
				fmt.Fprintf(a.out, "Product 0x%02X has no effects\n", pid)
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s effects):\n", labelColor.Sprintf("Product 0x%02X %s", pid, caps.Name), caps.EffectType)
			for i, name := range names {
				fmt.Fprintf(a.out, "  %3d  %s\n", i+1, name)
			}
			return nil
		},
	}
}
