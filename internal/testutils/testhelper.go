package testutils

import (
	"encoding/hex"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewTestLogger returns a debug-level logger for tracing execution flow.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

// MustHex decodes a hex string, ignoring spaces. Panics on bad input.
func MustHex(s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}
