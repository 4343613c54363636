package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "short form", input: "ffff", expected: "ffff"},
		{name: "short uppercase with prefix", input: "0xFF01", expected: "ff01"},
		{name: "SIG base form with dashes", input: "0000ff02-0000-1000-8000-00805f9b34fb", expected: "ff02"},
		{name: "SIG base form uppercase", input: "0000FFFF-0000-1000-8000-00805F9B34FB", expected: "ffff"},
		{name: "custom 128-bit kept", input: "6E400001-B5A3-F393-E0A9-E50E24DCCA9E", expected: "6e400001b5a3f393e0a9e50e24dcca9e"},
		{name: "wrong prefix kept", input: "AA00FFFF-0000-1000-8000-00805f9b34fb", expected: "aa00ffff00001000800000805f9b34fb"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}
