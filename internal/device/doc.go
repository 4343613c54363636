// Package device runs one actor per LEDnet lamp.
//
// A Device serializes everything that touches a lamp's state through a
// single goroutine:
//   - Commands are encoded, sequence-stamped and written over a Transport;
//     the local state is updated optimistically once the write succeeds
//   - Notifications and advertisements are decoded and merged in arrival
//     order
//   - State and LED-settings queries are correlated with single-shot
//     futures that always resolve, either with the reply or ErrQueryTimeout
//   - Capability probing for products the static table does not know
//
// State changes fan out to observers and to a bounded event ring.
package device
