package scanner

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/devicefactory"
	"github.com/srg/lednet/internal/protocol"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the lamp was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type    DeviceEventType
	Address string
	RSSI    int
}

// Lamp is one discovered LEDnet device. Device is a disconnected actor whose
// state was seeded from the advertisements; it connects on its first command.
type Lamp struct {
	Address     string
	Name        string
	RSSI        int
	Connectable bool
	LastSeen    time.Time
	Device      *device.Device
}

// State returns the state decoded from the advertisements so far.
func (l *Lamp) State() device.State {
	return l.Device.CurrentState()
}

// Scanner discovers LEDnet lamps
type Scanner struct {
	devices *hashmap.Map[string, *Lamp]
	events  *device.RingChannel[DeviceEvent]
	db      *capability.Database
	devOpts device.Options
	logger  *logrus.Logger

	scanOptions *ScanOptions
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	AllowList       []string
	BlockList       []string
	// IncludeAll disables the LEDnet company ID filter.
	IncludeAll bool
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// NewScanner creates a scanner. Discovered lamps are built with db and
// devOpts.
func NewScanner(db *capability.Database, devOpts device.Options, logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if db == nil {
		db = capability.NewDatabase(nil, logger)
	}
	return &Scanner{
		devices: hashmap.New[string, *Lamp](),
		events:  device.NewRingChannel[DeviceEvent](100),
		db:      db,
		devOpts: devOpts,
		logger:  logger,
	}, nil
}

// Scan listens for advertisements until the duration elapses or ctx is
// cancelled, and returns the lamps seen sorted by address. Lamps from a
// previous scan are kept and updated.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]*Lamp, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	progressCallback("Scanning")

	dev, err := devicefactory.ScannerFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()
	err = dev.Scan(ctx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	progressCallback("Processing results")
	return s.Lamps(), nil
}

// handleAdvertisement updates an existing lamp or adds a new one
func (s *Scanner) handleAdvertisement(adv device.Advertisement) {
	addr := adv.Addr()

	lamp, existing := s.devices.Get(addr)
	if !existing {
		if !s.shouldInclude(adv, s.scanOptions) {
			return
		}
		created := &Lamp{
			Address:     addr,
			Name:        adv.LocalName(),
			RSSI:        adv.RSSI(),
			Connectable: adv.Connectable(),
			LastSeen:    time.Now(),
			Device:      devicefactory.NewDeviceFromAdvertisement(adv, s.db, s.devOpts, s.logger),
		}
		var loaded bool
		lamp, loaded = s.devices.GetOrInsert(addr, created)
		if loaded {
			_ = created.Device.Close()
		} else {
			st := lamp.State()
			s.logger.WithFields(logrus.Fields{
				"name":       lamp.Name,
				"address":    addr,
				"rssi":       lamp.RSSI,
				"product_id": fmt.Sprintf("0x%02X", st.ProductID),
			}).Info("Discovered new lamp")
			s.events.ForceSend(DeviceEvent{Type: EventNew, Address: addr, RSSI: lamp.RSSI})
			return
		}
	}

	updated := *lamp
	updated.RSSI = adv.RSSI()
	updated.LastSeen = time.Now()
	if name := adv.LocalName(); name != "" {
		updated.Name = name
	}
	s.devices.Set(addr, &updated)
	lamp.Device.HandleAdvertisement(context.Background(), adv.ManufacturerData(), device.ServiceDataFor(adv, protocol.ServiceDataUUID))

	s.events.ForceSend(DeviceEvent{Type: EventUpdated, Address: addr, RSSI: updated.RSSI})
}

// shouldInclude applies the block/allow lists and the LEDnet company filter
func (s *Scanner) shouldInclude(adv device.Advertisement, opts *ScanOptions) bool {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	addr := adv.Addr()

	for _, blocked := range opts.BlockList {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	return opts.IncludeAll || IsLEDnet(adv)
}

// IsLEDnet reports whether adv carries LEDnet manufacturer data.
func IsLEDnet(adv device.Advertisement) bool {
	md := adv.ManufacturerData()
	if len(md) < 2 {
		return false
	}
	return protocol.IsLEDnetCompanyID(binary.LittleEndian.Uint16(md[:2]))
}

// Lamps returns a snapshot of discovered lamps sorted by address.
func (s *Scanner) Lamps() []*Lamp {
	out := make([]*Lamp, 0, s.devices.Len())
	s.devices.Range(func(_ string, l *Lamp) bool {
		out = append(out, l)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Lamp returns a discovered lamp by address.
func (s *Scanner) Lamp(address string) (*Lamp, bool) {
	return s.devices.Get(address)
}

// Events return a read-only channel of discovery events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}

// Close stops every discovered lamp's actor.
func (s *Scanner) Close() error {
	var errs []error
	for _, l := range s.Lamps() {
		if err := l.Device.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Address, err))
		}
		s.devices.Del(l.Address)
	}
	return errors.Join(errs...)
}
