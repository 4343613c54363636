package goble

import (
	"context"

	"github.com/go-ble/ble"

	"github.com/srg/lednet/internal/device"
)

// bleScanner wraps ble.Device to implement device.ScanningDevice
type bleScanner struct {
	dev ble.Device
}

// Scan converts each ble.Advertisement to a device.Advertisement
func (s *bleScanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	}
	if err := s.dev.Scan(ctx, allowDup, bleHandler); err != nil {
		return NormalizeError(err)
	}
	return nil
}

// NewScanner creates a scanner over the host BLE stack.
func NewScanner() (device.ScanningDevice, error) {
	dev, err := hostDevice()
	if err != nil {
		return nil, err
	}
	return &bleScanner{dev: dev}, nil
}
