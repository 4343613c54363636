package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/protocol"
)

// Command-level errors
var (
	// ErrLampNotFound is returned when a scan finished without the requested lamp.
	ErrLampNotFound = errors.New("lamp not found")
)

// FormatUserError turns internal errors into short messages for the terminal.
func FormatUserError(err error) string {
	var unsupported *protocol.UnsupportedError
	var connErr *device.ConnectionError

	switch {
	case errors.As(err, &unsupported):
		if unsupported.Reason == "" {
			return fmt.Sprintf("this lamp does not support %s", unsupported.Op)
		}
		return fmt.Sprintf("this lamp does not support %s: %s", unsupported.Op, unsupported.Reason)
	case errors.Is(err, device.ErrQueryTimeout):
		return "lamp did not answer in time; its state is unknown"
	case errors.Is(err, device.ErrQueryPending):
		return "another query to this lamp is still running"
	case errors.Is(err, device.ErrProbing):
		return "the lamp is being probed; try again when the probe finishes"
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off"
	case errors.Is(err, context.DeadlineExceeded):
		return "operation timed out"
	case errors.As(err, &connErr):
		return fmt.Sprintf("connection problem: %s", err)
	default:
		return err.Error()
	}
}
