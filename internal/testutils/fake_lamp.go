package testutils

import (
	"context"
	"sync"

	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/protocol"
)

// FakeLamp is an in-memory device.Transport that behaves like a simple
// LEDnet lamp: it answers state and LED-settings queries, applies power and
// channel-level commands and records every frame written to it.
//
// Channels the lamp does not drive always report zero, which is what the
// capability probe looks for.
type FakeLamp struct {
	mu sync.Mutex

	address   string
	productID byte
	power     bool
	mode, sub byte
	v1, v2    byte
	r, g, b   byte
	ww, cw    byte

	hasRGB, hasWW, hasCW bool
	strip                []byte

	// answerLimit < 0 answers every query.
	answerLimit int
	answered    int

	connectErr error
	writeErr   error

	connected bool
	connects  int
	frames    []protocol.Frame
	onNotify  device.NotificationHandler
	delivery  sync.WaitGroup
}

// NewFakeLamp creates a powered-on lamp showing black with every channel
// present.
func NewFakeLamp(address string, productID byte) *FakeLamp {
	return &FakeLamp{
		address:     address,
		productID:   productID,
		power:       true,
		mode:        0x61,
		sub:         0xF0,
		hasRGB:      true,
		hasWW:       true,
		hasCW:       true,
		answerLimit: -1,
	}
}

// WithChannels sets which channels the hardware really drives.
func (f *FakeLamp) WithChannels(rgb, ww, cw bool) *FakeLamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasRGB, f.hasWW, f.hasCW = rgb, ww, cw
	return f
}

// WithRGB sets the reported (brightness-scaled) color.
func (f *FakeLamp) WithRGB(r, g, b byte) *FakeLamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode, f.sub = 0x61, 0xF0
	f.r, f.g, f.b = r, g, b
	return f
}

// WithMode sets the raw mode bytes of the state response.
func (f *FakeLamp) WithMode(mode, sub, v1, v2 byte) *FakeLamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode, f.sub, f.v1, f.v2 = mode, sub, v1, v2
	return f
}

// WithStrip sets the LED-settings response.
func (f *FakeLamp) WithStrip(count, segments int, ic, order, direction byte) *FakeLamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strip = LedSettingsResponse(count, segments, ic, order, direction)
	return f
}

// AnswerOnly makes the lamp answer the first n queries and then go silent.
// A negative n answers everything.
func (f *FakeLamp) AnswerOnly(n int) *FakeLamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerLimit = n
	f.answered = 0
	return f
}

// FailConnect makes Connect return err.
func (f *FakeLamp) FailConnect(err error) *FakeLamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
	return f
}

// FailWrites makes Write return err; nil restores normal writes.
func (f *FakeLamp) FailWrites(err error) *FakeLamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
	return f
}

// Frames returns every frame written so far.
func (f *FakeLamp) Frames() []protocol.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Frame(nil), f.frames...)
}

// Opcodes returns the first payload byte of every written frame.
func (f *FakeLamp) Opcodes() []byte {
	frames := f.Frames()
	out := make([]byte, len(frames))
	for i, fr := range frames {
		out[i] = fr.Opcode()
	}
	return out
}

// Connects returns how many times Connect succeeded.
func (f *FakeLamp) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Levels returns the current raw channel levels.
func (f *FakeLamp) Levels() (r, g, b, ww, cw byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.r, f.g, f.b, f.ww, f.cw
}

// IsOn reports the lamp's power.
func (f *FakeLamp) IsOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.power
}

// Notify pushes an unsolicited notification.
func (f *FakeLamp) Notify(data []byte) {
	f.mu.Lock()
	h := f.onNotify
	f.mu.Unlock()
	if h != nil {
		h(data)
	}
}

// Drain waits for in-flight notification deliveries.
func (f *FakeLamp) Drain() {
	f.delivery.Wait()
}

func (f *FakeLamp) Address() string { return f.address }

func (f *FakeLamp) Connect(_ context.Context, onNotify device.NotificationHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	if f.connected {
		return device.ErrAlreadyConnected
	}
	f.connected = true
	f.connects++
	f.onNotify = onNotify
	return nil
}

func (f *FakeLamp) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.onNotify = nil
	return nil
}

// Drop simulates a lost link: the next write fails with ErrLinkLost.
func (f *FakeLamp) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.onNotify = nil
}

func (f *FakeLamp) Write(_ context.Context, data []byte) error {
	f.mu.Lock()
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	if !f.connected {
		f.mu.Unlock()
		return device.ErrLinkLost
	}

	frame, err := protocol.ParseFrame(data)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.frames = append(f.frames, frame)

	reply := f.apply(frame)
	h := f.onNotify
	f.mu.Unlock()

	// Replies arrive on their own goroutine like real notifications.
	if reply != nil && h != nil {
		f.delivery.Add(1)
		go func() {
			defer f.delivery.Done()
			h(reply)
		}()
	}
	return nil
}

// apply updates the simulated lamp and returns the reply, if any. Caller
// holds f.mu.
func (f *FakeLamp) apply(frame protocol.Frame) []byte {
	p := frame.Payload()
	if len(p) < 2 {
		return nil
	}
	body := p[:len(p)-1]

	switch body[0] {
	case 0x81:
		if f.answer() {
			return f.stateResponse()
		}
	case 0x63:
		if f.strip != nil && f.answer() {
			return f.strip
		}
	case 0x71:
		f.power = body[1] == 0x23
	case 0x3B:
		if body[1] == 0x23 || body[1] == 0x24 {
			f.power = body[1] == 0x23
		}
	case 0x31:
		if len(body) >= 6 {
			f.setLevels(body[1], body[2], body[3], body[4], body[5])
		}
	}
	return nil
}

func (f *FakeLamp) answer() bool {
	if f.answerLimit >= 0 && f.answered >= f.answerLimit {
		return false
	}
	f.answered++
	return true
}

func (f *FakeLamp) setLevels(r, g, b, ww, cw byte) {
	if !f.hasRGB {
		r, g, b = 0, 0, 0
	}
	if !f.hasWW {
		ww = 0
	}
	if !f.hasCW {
		cw = 0
	}
	f.r, f.g, f.b, f.ww, f.cw = r, g, b, ww, cw
	f.mode, f.sub = 0x61, 0xF0
	if r|g|b == 0 && ww|cw != 0 {
		f.sub = 0x0F
	}
}

func (f *FakeLamp) stateResponse() []byte {
	return NewStateResponse().
		WithProduct(f.productID).
		WithPower(f.power).
		WithMode(f.mode, f.sub).
		WithValues(f.v1, f.v2).
		WithRGB(f.r, f.g, f.b).
		WithWhite(f.ww, f.cw).
		Build()
}
