// Package protocol implements the LEDnet BLE wire protocol.
//
// The package provides:
//   - Frame construction with the transport header and payload checksum
//   - An Encoder that turns intents into frames, preferring firmware-gated
//     capability-database templates and falling back to fixed per-family
//     layouts
//   - A Decoder for state, LED-settings and acknowledgement notifications,
//     including the JSON and quoted-hex transport wrappers
//   - Advertisement parsing for manufacturer and service data
//
// Decoding never panics; malformed input yields "no state".
package protocol
