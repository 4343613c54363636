package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/lednet/internal/store"
	"github.com/srg/lednet/scanner"
)

type scanFlags struct {
	duration   time.Duration
	allow      []string
	block      []string
	all        bool
	duplicates bool
	noProgress bool
}

func newScanCmd() *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for LEDnet lamps",
		Long: `Scan for LEDnet lamps and show the state decoded from their advertisements.

Discovered lamps are remembered in the store so later commands know their
product before the first connection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, f)
		},
	}
	cmd.Flags().DurationVarP(&f.duration, "duration", "d", 0, "Scan duration (default from config)")
	cmd.Flags().StringSliceVar(&f.allow, "allow", nil, "Only show lamps with these addresses")
	cmd.Flags().StringSliceVar(&f.block, "block", nil, "Hide lamps with these addresses")
	cmd.Flags().BoolVar(&f.all, "all", false, "Include devices without the LEDnet company ID")
	cmd.Flags().BoolVar(&f.duplicates, "duplicates", false, "Process repeated advertisements")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "Do not show the countdown")
	return cmd
}

func runScan(cmd *cobra.Command, f *scanFlags) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	opts := scanner.DefaultScanOptions()
	opts.Duration = a.cfg.ScanTimeout
	if f.duration > 0 {
		opts.Duration = f.duration
	}
	opts.AllowList = f.allow
	opts.BlockList = f.block
	opts.IncludeAll = f.all
	opts.DuplicateFilter = !f.duplicates

	s, err := scanner.NewScanner(a.db, a.cfg.DeviceOptions(), a.logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress func(string)
	if !f.noProgress && isTerminal(cmd.ErrOrStderr()) {
		p := NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Scanning for LEDnet lamps", "Scanning", opts.Duration, "Processing results")
		p.Start()
		defer p.Stop()
		progress = p.Callback()
	}

	lamps, err := s.Scan(ctx, opts, progress)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	for _, l := range lamps {
		st := l.State()
		if a.store == nil || !st.ProductKnown {
			continue
		}
		rec := store.LampRecord{
			Address:         l.Address,
			Name:            l.Name,
			ProductID:       st.ProductID,
			ProductKnown:    true,
			FirmwareVersion: st.FirmwareVersion,
			LastSeen:        l.LastSeen,
		}
		if err := a.store.SaveLamp(rec); err != nil {
			a.logger.WithError(err).WithField("address", l.Address).Warn("Failed to remember lamp")
		}
	}

	return printLamps(a.out, a.format, lamps)
}
