package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrUnsupported     = errors.New("operation not supported")
	ErrTemplateMissing = errors.New("command template missing")
	ErrDecode          = errors.New("payload not decodable")
)

// UnsupportedError reports an operation that is not valid for a product,
// capability set or firmware version.
type UnsupportedError struct {
	Op        string
	ProductID uint8
	Reason    string
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s not supported by product 0x%02X", e.Op, e.ProductID)
	}
	return fmt.Sprintf("%s not supported by product 0x%02X: %s", e.Op, e.ProductID, e.Reason)
}

// Unwrap makes errors.Is(err, ErrUnsupported) work.
func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// TemplateError reports a capability-database function that could not be
// found or rendered.
type TemplateError struct {
	Code      string
	ProductID uint8
	Reason    string
}

func (e *TemplateError) Error() string {
	msg := fmt.Sprintf("template %q for product 0x%02X", e.Code, e.ProductID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TemplateError) Unwrap() error { return ErrTemplateMissing }

// DecodeError describes why an inbound payload was rejected.
type DecodeError struct {
	Reason  string
	Payload []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", hex.EncodeToString(e.Payload), e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

func unsupported(op string, productID uint8, reason string) error {
	return &UnsupportedError{Op: op, ProductID: productID, Reason: reason}
}

func decodeErr(payload []byte, format string, args ...interface{}) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Payload: payload}
}
