package devicefactory

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/device"
	goble "github.com/srg/lednet/internal/device/go-ble"
	"github.com/srg/lednet/internal/protocol"
)

// ScannerFactory creates a device.ScanningDevice for advertisement scans.
// This is a variable so that it can be overridden in tests.
var ScannerFactory = func() (device.ScanningDevice, error) {
	return goble.NewScanner()
}

// TransportFactory creates the link to the lamp at address.
// This is a variable so that it can be overridden in tests.
var TransportFactory = func(address string, logger *logrus.Logger) device.Transport {
	return goble.NewTransport(address, logger)
}

// NewDevice creates a lamp actor for address over the host BLE stack.
func NewDevice(address string, db *capability.Database, opts device.Options, logger *logrus.Logger) *device.Device {
	return device.New(TransportFactory(address, logger), db, opts, logger)
}

// NewDeviceFromAdvertisement creates a lamp actor from a scan result and
// seeds its state from the advertisement.
func NewDeviceFromAdvertisement(adv device.Advertisement, db *capability.Database, opts device.Options, logger *logrus.Logger) *device.Device {
	d := NewDevice(adv.Addr(), db, opts, logger)
	d.HandleAdvertisement(context.Background(), adv.ManufacturerData(), device.ServiceDataFor(adv, protocol.ServiceDataUUID))
	return d
}
