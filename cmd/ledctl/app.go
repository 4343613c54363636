package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/capfile"
	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/devicefactory"
	"github.com/srg/lednet/internal/store"
	"github.com/srg/lednet/pkg/config"
)

// app is the per-invocation environment shared by the commands.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *capability.Database
	store  store.Store
	out    io.Writer
	format string
}

// newApp loads configuration, the capability table and the lamp store.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg, path != "")
	if err != nil {
		return nil, err
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = cfg.OutputFormat
	}
	if format != "table" && format != "json" {
		return nil, fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}

	// Arguments validated; runtime errors should not print usage.
	cmd.SilenceUsage = true

	table, err := capfile.Load(cfg.CapabilityFile, logger)
	if err != nil {
		return nil, fmt.Errorf("capability table: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     capability.NewDatabase(table, logger),
		out:    cmd.OutOrStdout(),
		format: format,
	}

	if cfg.StorePath != "" {
		s, err := store.NewBoltStore(cfg.StorePath, logger)
		if err != nil {
			return nil, err
		}
		a.store = s
		n, err := store.ApplyOverlays(s, a.db)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("loading probe overlays: %w", err)
		}
		logger.WithField("overlays", n).Debug("Applied stored probe overlays")
	}

	if !isTerminal(a.out) {
		color.NoColor = true
	}
	return a, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// device creates a lamp actor, seeding the product ID remembered from
// earlier runs.
func (a *app) device(address string) *device.Device {
	opts := a.cfg.DeviceOptions()
	if a.store != nil {
		if rec, err := a.store.GetLamp(address); err == nil && rec.ProductKnown {
			opts.ProductID = rec.ProductID
			opts.ProductKnown = true
		}
	}
	return devicefactory.NewDevice(address, a.db, opts, a.logger)
}

// remember stores what the lamp reported about itself.
func (a *app) remember(name string, st device.State) {
	if a.store == nil || !st.ProductKnown {
		return
	}
	rec := store.LampRecord{
		Address:         st.Address,
		Name:            name,
		ProductID:       st.ProductID,
		ProductKnown:    true,
		FirmwareVersion: st.FirmwareVersion,
		LastSeen:        time.Now(),
	}
	if prev, err := a.store.GetLamp(st.Address); err == nil && rec.Name == "" {
		rec.Name = prev.Name
	}
	if err := a.store.SaveLamp(rec); err != nil {
		a.logger.WithError(err).WithField("address", st.Address).Warn("Failed to remember lamp")
	}
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// withDevice runs fn against a fresh actor and tears everything down after.
func withDevice(cmd *cobra.Command, address string, fn func(a *app, dev *device.Device) error) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	dev := a.device(address)
	defer func() {
		a.remember("", dev.CurrentState())
		err = errors.Join(err, dev.Close(), a.close())
	}()
	return fn(a, dev)
}
