//go:build !darwin && !linux

package goble

import (
	"errors"

	"github.com/go-ble/ble"
)

// DeviceFactory creates the host ble.Device (can be overridden in tests)
//
//nolint:revive // name kept for symmetry with devicefactory.DeviceFactory
var DeviceFactory = func() (ble.Device, error) {
	return nil, errors.New("no BLE host stack for this platform")
}
