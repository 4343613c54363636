package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents a missing GATT service or characteristic
type NotFoundError struct {
	Resource string   // "service" or "characteristic"
	UUIDs    []string // [serviceUUID] or [serviceUUID, charUUID]
}

func (e *NotFoundError) Error() string {
	switch len(e.UUIDs) {
	case 0:
		return fmt.Sprintf("%s not found", e.Resource)
	case 1:
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	default:
		return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
	}
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
	LinkLost         ConnectionState = "link_lost"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
	ErrLinkLost         = &ConnectionError{State: LinkLost}
)

// Operation errors
var (
	// ErrQueryTimeout means no correlated response arrived before the
	// deadline. The device stays connected and usable.
	ErrQueryTimeout = errors.New("query timed out")
	// ErrQueryPending rejects a second query of a kind already in flight.
	ErrQueryPending = errors.New("query already pending")
	// ErrProbing rejects commands issued while a capability probe runs.
	ErrProbing = errors.New("capability probe in progress")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("device closed")
	// ErrBluetoothOff means the host adapter is unavailable.
	ErrBluetoothOff = errors.New("bluetooth is turned off")
)

// NormalizeError maps known go-ble error strings to structured ConnectionError types.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	case containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrLinkLost, err)
	default:
		return err
	}
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// NotificationHandler receives raw bytes from the notify characteristic.
type NotificationHandler func(data []byte)

// Transport is the link to one physical lamp. It only moves bytes: the
// device actor owns framing, sequencing and state.
//
// Connect must deliver every notification to onNotify until Disconnect.
// Write returns once the link layer accepted the bytes. After the link
// drops, Write must fail with an error matching ErrNotConnected or
// ErrLinkLost so the device reconnects on the next command.
type Transport interface {
	Address() string
	Connect(ctx context.Context, onNotify NotificationHandler) error
	Write(ctx context.Context, data []byte) error
	Disconnect() error
}

// ScanningDevice represents a BLE device capable of scanning for advertisements
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// ServiceData is one advertised service data entry.
type ServiceData struct {
	UUID string
	Data []byte
}

// Advertisement is the host-stack independent view of one BLE advertisement.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	ServiceData() []ServiceData
	Services() []string
	Connectable() bool
	RSSI() int
	Addr() string
}

// ServiceDataFor returns the data advertised for uuid, if any.
func ServiceDataFor(adv Advertisement, uuid string) []byte {
	want := NormalizeUUID(uuid)
	for _, sd := range adv.ServiceData() {
		if NormalizeUUID(sd.UUID) == want {
			return sd.Data
		}
	}
	return nil
}
