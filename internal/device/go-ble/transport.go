package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/groutine"
)

// LEDnet GATT layout.
const (
	ServiceUUID    = "ffff"
	WriteCharUUID  = "ff01"
	NotifyCharUUID = "ff02"
)

var (
	hostMu  sync.Mutex
	hostDev ble.Device
)

// hostDevice creates the host stack once and makes it the go-ble default.
func hostDevice() (ble.Device, error) {
	hostMu.Lock()
	defer hostMu.Unlock()

	if hostDev != nil {
		return hostDev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	ble.SetDefaultDevice(dev)
	hostDev = dev
	return dev, nil
}

// Transport implements device.Transport over a go-ble GATT client.
type Transport struct {
	address string
	logger  *logrus.Logger

	mu         sync.Mutex
	client     ble.Client
	writeChar  *ble.Characteristic
	notifyChar *ble.Characteristic
	stop       context.CancelFunc
}

// NewTransport creates a transport for the lamp at address.
func NewTransport(address string, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{address: address, logger: logger}
}

// Address returns the lamp address.
func (t *Transport) Address() string { return t.address }

// Connect dials the lamp, discovers the LEDnet service and subscribes to
// its notify characteristic.
func (t *Transport) Connect(ctx context.Context, onNotify device.NotificationHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if strings.TrimSpace(t.address) == "" {
		return fmt.Errorf("device address is empty")
	}
	if t.client != nil {
		return device.ErrAlreadyConnected
	}
	if _, err := hostDevice(); err != nil {
		return err
	}

	t.logger.WithField("address", t.address).Debug("Dialing BLE device...")
	client, err := ble.Dial(ctx, ble.NewAddr(t.address))
	if err != nil {
		return fmt.Errorf("failed to connect to device with address %q: %w", t.address, NormalizeError(err))
	}

	fail := func(err error) error {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			t.logger.WithError(cancelErr).Warn("Failed to cancel connection after setup failure")
		}
		return err
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return fail(fmt.Errorf("failed to discover profile: %w", NormalizeError(err)))
	}
	writeChar, err := findCharacteristic(profile, ServiceUUID, WriteCharUUID)
	if err != nil {
		return fail(err)
	}
	notifyChar, err := findCharacteristic(profile, ServiceUUID, NotifyCharUUID)
	if err != nil {
		return fail(err)
	}

	if err := client.Subscribe(notifyChar, false, func(data []byte) { onNotify(data) }); err != nil {
		return fail(fmt.Errorf("failed to subscribe to %s: %w", NotifyCharUUID, NormalizeError(err)))
	}

	t.client = client
	t.writeChar = writeChar
	t.notifyChar = notifyChar

	monitorCtx, stop := context.WithCancel(context.Background())
	t.stop = stop
	if watched, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(monitorCtx, "ble-link-monitor-"+t.address, func(ctx context.Context) {
			select {
			case <-watched.Disconnected():
				t.logger.WithField("address", t.address).Warn("BLE link lost")
				t.drop(client)
			case <-ctx.Done():
			}
		})
	}

	t.logger.WithField("address", t.address).Debug("LEDnet service ready")
	return nil
}

// drop forgets client if it is still the current one.
func (t *Transport) drop(client ble.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == client {
		t.client = nil
		t.writeChar = nil
		t.notifyChar = nil
	}
}

// Write sends data to the write characteristic without response. A write
// that reports a lost link releases the client so the next Connect dials
// again.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return device.ErrNotConnected
	}
	if err := t.client.WriteCharacteristic(t.writeChar, data, true); err != nil {
		err = NormalizeError(err)
		if errors.Is(err, device.ErrNotConnected) || errors.Is(err, device.ErrLinkLost) {
			t.logger.WithError(err).WithField("address", t.address).Warn("BLE write failed, releasing link")
			if cerr := t.releaseLocked(false); cerr != nil {
				t.logger.WithError(cerr).Debug("Cancel connection failed after lost link")
			}
		}
		return err
	}
	return nil
}

// Disconnect unsubscribes and cancels the connection.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.releaseLocked(true)
}

// releaseLocked stops the link monitor and forgets the client. Caller holds
// t.mu.
func (t *Transport) releaseLocked(unsubscribe bool) error {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	if t.client == nil {
		return nil
	}

	client := t.client
	t.client = nil
	if unsubscribe && t.notifyChar != nil {
		if err := client.Unsubscribe(t.notifyChar, false); err != nil {
			t.logger.WithError(err).Debug("Unsubscribe failed during disconnect")
		}
	}
	t.writeChar = nil
	t.notifyChar = nil

	if err := client.CancelConnection(); err != nil {
		return NormalizeError(err)
	}
	return nil
}

func findCharacteristic(p *ble.Profile, serviceUUID, charUUID string) (*ble.Characteristic, error) {
	for _, svc := range p.Services {
		if device.NormalizeUUID(svc.UUID.String()) != serviceUUID {
			continue
		}
		for _, c := range svc.Characteristics {
			if device.NormalizeUUID(c.UUID.String()) == charUUID {
				return c, nil
			}
		}
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{serviceUUID, charUUID}}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{serviceUUID}}
}
