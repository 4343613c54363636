package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/groutine"
	"github.com/srg/lednet/internal/protocol"
)

// Options tune one device actor. Zero durations take the defaults.
type Options struct {
	// ProductID seeds the product when it is known from an advertisement.
	ProductID    uint8
	ProductKnown bool

	ConnectTimeout     time.Duration
	StateQueryTimeout  time.Duration
	LedSettingsTimeout time.Duration
	ProbeQueryTimeout  time.Duration
	ProbeSettleDelay   time.Duration
	ProbeTolerance     int
	EventBuffer        int
}

// DefaultOptions returns the stock timeouts.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:     15 * time.Second,
		StateQueryTimeout:  3 * time.Second,
		LedSettingsTimeout: 3 * time.Second,
		ProbeQueryTimeout:  5 * time.Second,
		ProbeSettleDelay:   500 * time.Millisecond,
		ProbeTolerance:     6,
		EventBuffer:        64,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.StateQueryTimeout <= 0 {
		o.StateQueryTimeout = def.StateQueryTimeout
	}
	if o.LedSettingsTimeout <= 0 {
		o.LedSettingsTimeout = def.LedSettingsTimeout
	}
	if o.ProbeQueryTimeout <= 0 {
		o.ProbeQueryTimeout = def.ProbeQueryTimeout
	}
	if o.ProbeSettleDelay < 0 {
		o.ProbeSettleDelay = 0
	}
	if o.ProbeTolerance <= 0 {
		o.ProbeTolerance = def.ProbeTolerance
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = def.EventBuffer
	}
	return o
}

// stateReply resolves a state query: the merged state plus the raw payload
// the probe needs for channel levels.
type stateReply struct {
	state State
	raw   protocol.DecodedState
}

// waiter is a single-shot future for one outstanding query.
type waiter[T any] struct {
	ch chan T
}

func newWaiter[T any]() *waiter[T] {
	return &waiter[T]{ch: make(chan T, 1)}
}

func (w *waiter[T]) resolve(v T) {
	select {
	case w.ch <- v:
	default:
	}
}

// Device is the actor owning the state of one lamp. Every mutation, command
// write and inbound payload runs on its goroutine in arrival order; query
// waits happen on the caller's goroutine.
type Device struct {
	address   string
	transport Transport
	db        *capability.Database
	encoder   *protocol.Encoder
	decoder   *protocol.Decoder
	opts      Options
	logger    *logrus.Logger

	inbox     chan func()
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup

	subs     *SubscriptionManager
	current  atomic.Pointer[State]
	identify singleflight.Group

	// Owned by the actor goroutine.
	state       State
	connected   bool
	connecting  bool
	probing     bool
	seq         uint16
	stateWaiter *waiter[stateReply]
	ledWaiter   *waiter[protocol.LedSettings]
}

// New creates a device actor over transport and starts it. A nil db uses the
// static capability table only.
func New(transport Transport, db *capability.Database, opts Options, logger *logrus.Logger) *Device {
	if logger == nil {
		logger = logrus.New()
	}
	if db == nil {
		db = capability.NewDatabase(nil, logger)
	}
	opts = opts.withDefaults()

	d := &Device{
		address:   transport.Address(),
		transport: transport,
		db:        db,
		encoder:   protocol.NewEncoder(db, logger),
		decoder:   protocol.NewDecoder(db, logger),
		opts:      opts,
		logger:    logger,
		inbox:     make(chan func(), 64),
		done:      make(chan struct{}),
	}
	d.state.Address = d.address
	d.state.ProductID = opts.ProductID
	d.state.ProductKnown = opts.ProductKnown
	d.publishSnapshot()

	ctx := context.Background()
	d.subs = NewSubscriptionManager(ctx, "lamp-events-"+d.address, opts.EventBuffer, logger)

	groutine.GoTracked(ctx, &d.wg, "lamp-"+d.address, d.run)
	return d
}

func (d *Device) run(context.Context) {
	for {
		select {
		case fn := <-d.inbox:
			fn()
		case <-d.done:
			return
		}
	}
}

// Address returns the lamp's BLE address.
func (d *Device) Address() string { return d.address }

// enqueue hands fn to the actor without waiting for it to run.
func (d *Device) enqueue(ctx context.Context, fn func()) error {
	if d.closed.Load() {
		return ErrClosed
	}
	select {
	case d.inbox <- fn:
		return nil
	case <-d.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the actor and waits for its result.
func (d *Device) call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if err := d.enqueue(ctx, func() { res <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-d.done:
		return ErrClosed
	}
}

// CurrentState returns a copy of the last committed state. It never waits
// for the actor.
func (d *Device) CurrentState() State {
	return d.current.Load().Clone()
}

// Capabilities returns the capabilities for the device's product, or the
// generic stand-in while the product is unknown.
func (d *Device) Capabilities() capability.ProductCapabilities {
	st := d.current.Load()
	return d.capsFor(st.ProductID, st.ProductKnown)
}

func (d *Device) capsFor(pid uint8, known bool) capability.ProductCapabilities {
	if !known {
		return capability.Generic()
	}
	return d.db.Lookup(pid)
}

func (d *Device) capsLocked() capability.ProductCapabilities {
	return d.capsFor(d.state.ProductID, d.state.ProductKnown)
}

// Subscribe registers an observer for state changes.
func (d *Device) Subscribe(fn Observer) (unsubscribe func()) {
	return d.subs.Subscribe(fn)
}

// Events returns the bounded state change stream. It is closed by Close.
func (d *Device) Events() <-chan StateChangeEvent {
	return d.subs.Events()
}

func (d *Device) phaseLocked() Phase {
	switch {
	case d.connecting:
		return PhaseConnecting
	case !d.connected:
		return PhaseDisconnected
	case d.probing:
		return PhaseProbing
	case d.stateWaiter != nil:
		return PhaseAwaitingState
	case d.ledWaiter != nil:
		return PhaseAwaitingLedSettings
	default:
		return PhaseIdle
	}
}

// Phase returns the current connection phase.
func (d *Device) Phase() Phase {
	return d.current.Load().Phase
}

func (d *Device) publishSnapshot() {
	d.state.Phase = d.phaseLocked()
	snap := d.state.Clone()
	d.current.Store(&snap)
}

// commit publishes the state and, when something changed, an event.
func (d *Device) commit(src EventSource, changed []string) *StateChangeEvent {
	if len(changed) > 0 {
		d.state.UpdatedAt = time.Now()
	}
	d.publishSnapshot()
	if len(changed) == 0 {
		return nil
	}

	ev := StateChangeEvent{
		Address: d.address,
		Source:  src,
		Changed: changed,
		State:   d.state.Clone(),
		Time:    d.state.UpdatedAt,
	}
	d.logger.WithFields(logrus.Fields{
		"address": d.address,
		"source":  src,
		"changed": changed,
	}).Debug("State changed")
	d.subs.Publish(ev)
	return &ev
}

func (d *Device) ensureConnected(ctx context.Context) error {
	if d.connected {
		return nil
	}

	d.connecting = true
	d.publishSnapshot()

	cctx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	defer cancel()

	d.logger.WithField("address", d.address).Debug("Connecting")
	err := d.transport.Connect(cctx, d.onNotify)
	d.connecting = false
	if err != nil {
		d.publishSnapshot()
		return fmt.Errorf("connect %s: %w", d.address, NormalizeError(err))
	}

	d.connected = true
	d.publishSnapshot()
	d.logger.WithField("address", d.address).Info("Connected")
	return nil
}

// onNotify runs on the transport's goroutine and hands the payload to the
// actor.
func (d *Device) onNotify(data []byte) {
	buf := append([]byte(nil), data...)
	if err := d.enqueue(context.Background(), func() { d.handleNotificationLocked(buf) }); err != nil {
		d.logger.WithError(err).WithField("address", d.address).Debug("Notification dropped")
	}
}

func (d *Device) writeLocked(ctx context.Context, op string, frame protocol.Frame) error {
	d.seq++
	stamped := frame.WithSequence(d.seq)

	if err := d.transport.Write(ctx, stamped); err != nil {
		err = NormalizeError(err)
		if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrLinkLost) {
			d.connected = false
			d.publishSnapshot()
		}
		return fmt.Errorf("write %s: %w", op, err)
	}

	d.state.Sequence = d.seq
	d.logger.WithFields(logrus.Fields{
		"address": d.address,
		"op":      op,
		"seq":     d.seq,
		"frame":   stamped.String(),
	}).Debug("Frame written")
	return nil
}

// sendLocked encodes, writes and, on a successful write, applies the
// optimistic state update.
func (d *Device) sendLocked(ctx context.Context, in protocol.Intent, src EventSource) error {
	if d.probing && src != SourceProbe {
		return ErrProbing
	}

	caps := d.capsLocked()
	frame, err := d.encoder.Encode(in, caps, d.state.Snapshot())
	if err != nil {
		return err
	}
	if err := d.ensureConnected(ctx); err != nil {
		return err
	}
	if err := d.writeLocked(ctx, in.Op(), frame); err != nil {
		return err
	}

	d.commit(src, d.state.applyIntent(in, caps))
	return nil
}

// ensureIdentified learns the product ID with a state query before the
// first command. Concurrent first commands share one query. A silent device
// keeps the generic capabilities.
func (d *Device) ensureIdentified(ctx context.Context) error {
	if d.current.Load().ProductKnown {
		return nil
	}

	// The shared query outlives any one caller's cancellation.
	ch := d.identify.DoChan("identify", func() (any, error) {
		if d.current.Load().ProductKnown {
			return nil, nil
		}
		_, err := d.queryState(context.WithoutCancel(ctx), d.opts.StateQueryTimeout, SourceCommand)
		return nil, err
	})

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		return ctx.Err()
	}

	switch {
	case errors.Is(err, ErrQueryTimeout):
		d.logger.WithField("address", d.address).Warn("Product not reported, using generic capabilities")
		return nil
	case errors.Is(err, ErrQueryPending):
		// A caller's QueryState is already identifying the device.
		d.logger.WithField("address", d.address).Debug("State query in flight, sending with current capabilities")
		return nil
	}
	return err
}

func (d *Device) send(ctx context.Context, in protocol.Intent) error {
	if err := d.ensureIdentified(ctx); err != nil {
		return err
	}
	return d.call(ctx, func() error { return d.sendLocked(ctx, in, SourceCommand) })
}

// Send issues any intent. Query intents are rejected; use QueryState and
// QueryLedSettings.
func (d *Device) Send(ctx context.Context, in protocol.Intent) error {
	switch in.(type) {
	case protocol.StateQuery, protocol.LedSettingsQuery:
		return fmt.Errorf("%s: use the query methods", in.Op())
	}
	return d.send(ctx, in)
}

// SendFunction renders a capability-database function by name. When the
// template is missing or needs newer firmware and fallback is non-nil, the
// fallback intent is sent with the fixed layout instead.
func (d *Device) SendFunction(ctx context.Context, code string, params map[string]int, fallback protocol.Intent) error {
	if err := d.ensureIdentified(ctx); err != nil {
		return err
	}
	return d.call(ctx, func() error {
		if d.probing {
			return ErrProbing
		}
		caps := d.capsLocked()
		frame, err := d.encoder.EncodeFunction(code, params, caps, d.state.FirmwareVersion)
		if err != nil {
			if fallback == nil || !errors.Is(err, protocol.ErrTemplateMissing) {
				return err
			}
			d.logger.WithError(err).WithField("function", code).Warn("Function template unavailable, using fixed layout")
			return d.sendLocked(ctx, fallback, SourceCommand)
		}
		if err := d.ensureConnected(ctx); err != nil {
			return err
		}
		return d.writeLocked(ctx, code, frame)
	})
}

// SetPower switches the lamp on or off.
func (d *Device) SetPower(ctx context.Context, on bool) error {
	return d.send(ctx, protocol.PowerIntent{On: on})
}

// SetColor sets an RGB color at brightness 0-255.
func (d *Device) SetColor(ctx context.Context, in protocol.ColorIntent) error {
	return d.send(ctx, in)
}

// SetWhite sets a color temperature in Kelvin at brightness 0-255.
func (d *Device) SetWhite(ctx context.Context, in protocol.WhiteIntent) error {
	return d.send(ctx, in)
}

// SetEffect starts a named effect.
func (d *Device) SetEffect(ctx context.Context, in protocol.EffectIntent) error {
	return d.send(ctx, in)
}

// SetBackground sets the settled-effect background color.
func (d *Device) SetBackground(ctx context.Context, in protocol.BackgroundIntent) error {
	return d.send(ctx, in)
}

// SetStripConfig configures an addressable strip.
func (d *Device) SetStripConfig(ctx context.Context, in protocol.StripConfigIntent) error {
	return d.send(ctx, in)
}

// SetSound toggles sound-reactive mode.
func (d *Device) SetSound(ctx context.Context, in protocol.SoundIntent) error {
	return d.send(ctx, in)
}

// SetCandle starts candle mode.
func (d *Device) SetCandle(ctx context.Context, in protocol.CandleIntent) error {
	return d.send(ctx, in)
}

// QueryState asks for a state response and waits up to the state query
// timeout. A silent device yields ErrQueryTimeout and stays usable.
func (d *Device) QueryState(ctx context.Context) (State, error) {
	reply, err := d.queryState(ctx, d.opts.StateQueryTimeout, SourceCommand)
	if err != nil {
		return State{}, err
	}
	return reply.state, nil
}

func (d *Device) queryState(ctx context.Context, timeout time.Duration, src EventSource) (stateReply, error) {
	var w *waiter[stateReply]
	err := d.call(ctx, func() error {
		if d.probing && src != SourceProbe {
			return ErrProbing
		}
		if d.stateWaiter != nil {
			return ErrQueryPending
		}
		frame, err := d.encoder.Encode(protocol.StateQuery{}, d.capsLocked(), d.state.Snapshot())
		if err != nil {
			return err
		}
		if err := d.ensureConnected(ctx); err != nil {
			return err
		}

		w = newWaiter[stateReply]()
		d.stateWaiter = w
		if err := d.writeLocked(ctx, protocol.OpQueryState, frame); err != nil {
			d.stateWaiter = nil
			d.publishSnapshot()
			return err
		}
		d.publishSnapshot()
		return nil
	})
	if err != nil {
		return stateReply{}, err
	}

	return await(ctx, d, w, timeout, func() {
		if d.stateWaiter == w {
			d.stateWaiter = nil
			d.publishSnapshot()
		}
	})
}

// QueryLedSettings asks an addressable strip for its configuration.
func (d *Device) QueryLedSettings(ctx context.Context) (protocol.LedSettings, error) {
	if err := d.ensureIdentified(ctx); err != nil {
		return protocol.LedSettings{}, err
	}

	var w *waiter[protocol.LedSettings]
	err := d.call(ctx, func() error {
		if d.probing {
			return ErrProbing
		}
		if d.ledWaiter != nil {
			return ErrQueryPending
		}
		frame, err := d.encoder.Encode(protocol.LedSettingsQuery{}, d.capsLocked(), d.state.Snapshot())
		if err != nil {
			return err
		}
		if err := d.ensureConnected(ctx); err != nil {
			return err
		}

		w = newWaiter[protocol.LedSettings]()
		d.ledWaiter = w
		if err := d.writeLocked(ctx, protocol.OpQueryLed, frame); err != nil {
			d.ledWaiter = nil
			d.publishSnapshot()
			return err
		}
		d.publishSnapshot()
		return nil
	})
	if err != nil {
		return protocol.LedSettings{}, err
	}

	return await(ctx, d, w, d.opts.LedSettingsTimeout, func() {
		if d.ledWaiter == w {
			d.ledWaiter = nil
			d.publishSnapshot()
		}
	})
}

// await races a query future against its deadline. release runs on the
// actor to free the correlation slot when the wait gives up.
func await[T any](ctx context.Context, d *Device, w *waiter[T], timeout time.Duration, release func()) (T, error) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case v := <-w.ch:
		return v, nil
	case <-timer.C:
		err = ErrQueryTimeout
	case <-ctx.Done():
		err = ctx.Err()
	case <-d.done:
		return zero, ErrClosed
	}

	// A reply may have landed together with the deadline.
	select {
	case v := <-w.ch:
		return v, nil
	default:
	}

	if qerr := d.enqueue(context.Background(), release); qerr != nil {
		return zero, qerr
	}
	d.logger.WithError(err).WithField("address", d.address).Debug("Query gave up")
	return zero, err
}

// HandleNotification decodes and merges a notification payload. Returns
// false when the payload was not decodable or changed nothing.
func (d *Device) HandleNotification(ctx context.Context, data []byte) (*StateChangeEvent, bool) {
	var ev *StateChangeEvent
	err := d.call(ctx, func() error {
		ev = d.handleNotificationLocked(data)
		return nil
	})
	if err != nil || ev == nil {
		return nil, false
	}
	return ev, true
}

func (d *Device) handleNotificationLocked(data []byte) *StateChangeEvent {
	decoded, ok := d.decoder.DecodeNotification(data)
	if !ok {
		return nil
	}

	if decoded.Kind == protocol.PayloadAck && decoded.Ack != nil && !decoded.Ack.OK() {
		d.logger.WithFields(logrus.Fields{
			"address": d.address,
			"opcode":  fmt.Sprintf("0x%02X", decoded.Ack.Opcode),
			"status":  decoded.Ack.Status,
		}).Warn("Command rejected by device")
	}

	changed := d.state.Merge(decoded, d.capsFor(productOf(decoded, &d.state)))

	// Waiters resolve after the snapshot is published so a woken caller
	// never reads the pre-reply state.
	var resolve func()
	switch decoded.Kind {
	case protocol.PayloadState:
		if w := d.stateWaiter; w != nil {
			reply := stateReply{state: d.state.Clone(), raw: *decoded}
			d.stateWaiter = nil
			resolve = func() { w.resolve(reply) }
		}
	case protocol.PayloadLedSettings:
		if w := d.ledWaiter; w != nil && decoded.LedSettings != nil {
			settings := *decoded.LedSettings
			d.ledWaiter = nil
			resolve = func() { w.resolve(settings) }
		}
	}

	ev := d.commit(SourceNotification, changed)
	if resolve != nil {
		resolve()
	}
	return ev
}

// HandleAdvertisement merges manufacturer data (company ID first) and the
// optional 0xFFFF service data.
func (d *Device) HandleAdvertisement(ctx context.Context, manufacturer, service []byte) (*StateChangeEvent, bool) {
	var ev *StateChangeEvent
	err := d.call(ctx, func() error {
		decoded, ok := d.decoder.DecodeAdvertisement(manufacturer, service)
		if !ok {
			return nil
		}
		changed := d.state.Merge(decoded, d.capsFor(productOf(decoded, &d.state)))
		ev = d.commit(SourceAdvertisement, changed)
		return nil
	})
	if err != nil || ev == nil {
		return nil, false
	}
	return ev, true
}

func productOf(decoded *protocol.DecodedState, st *State) (uint8, bool) {
	if decoded.HasProduct {
		return decoded.ProductID, true
	}
	return st.ProductID, st.ProductKnown
}

// Disconnect drops the link. The next command reconnects.
func (d *Device) Disconnect(ctx context.Context) error {
	return d.call(ctx, d.disconnectLocked)
}

func (d *Device) disconnectLocked() error {
	if !d.connected {
		return nil
	}
	d.connected = false
	d.publishSnapshot()
	if err := d.transport.Disconnect(); err != nil {
		return fmt.Errorf("disconnect %s: %w", d.address, NormalizeError(err))
	}
	d.logger.WithField("address", d.address).Info("Disconnected")
	return nil
}

// Close disconnects, stops the actor and closes the event stream.
// Operations after Close return ErrClosed.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.call(context.Background(), d.disconnectLocked)
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
		d.subs.Close()
	})
	return err
}
