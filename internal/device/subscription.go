package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/groutine"
)

// Observer receives state change events on the fan-out goroutine, never on
// the device actor. Observers may call back into the device.
type Observer func(StateChangeEvent)

type subscriber struct {
	id uint64
	fn Observer
}

// minBacklog is the smallest fan-out backlog regardless of the ring size.
const minBacklog = 64

// SubscriptionManager fans state change events out to observers and to the
// overwrite-oldest event ring. A panicking observer is logged and skipped;
// the others still receive the event.
type SubscriptionManager struct {
	mu     sync.Mutex
	subs   []subscriber
	nextID uint64

	backlog *RingChannel[StateChangeEvent]
	ring    *RingChannel[StateChangeEvent]
	wg     sync.WaitGroup
	logger *logrus.Logger
}

// NewSubscriptionManager creates a manager and starts its fan-out goroutine.
func NewSubscriptionManager(ctx context.Context, name string, ringSize int, logger *logrus.Logger) *SubscriptionManager {
	if logger == nil {
		logger = logrus.New()
	}
	if ringSize <= 0 {
		ringSize = 64
	}
	m := &SubscriptionManager{
		backlog: NewRingChannel[StateChangeEvent](max(ringSize, minBacklog)),
		ring:    NewRingChannel[StateChangeEvent](ringSize),
		logger:  logger,
	}

	groutine.GoTracked(ctx, &m.wg, name, func(context.Context) {
		for {
			ev, ok := m.backlog.Receive()
			if !ok {
				return
			}
			m.dispatch(ev)
		}
	})
	return m
}

// Subscribe registers fn and returns a function removing it.
func (m *SubscriptionManager) Subscribe(fn Observer) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Events returns the bounded event stream. Slow readers lose the oldest
// events, never the newest.
func (m *SubscriptionManager) Events() <-chan StateChangeEvent {
	return m.ring.C()
}

// Metrics exposes the event ring counters.
func (m *SubscriptionManager) Metrics() RingMetrics {
	return m.ring.Metrics()
}

// Publish queues ev for delivery and never blocks. When observers fall
// behind the oldest undelivered event is dropped. Publish must only be
// called from one goroutine.
func (m *SubscriptionManager) Publish(ev StateChangeEvent) {
	if m.backlog.ForceSend(ev) {
		m.logger.WithField("address", ev.Address).Debug("Observer backlog full, dropped oldest event")
	}
}

// Backlog exposes the fan-out backlog counters.
func (m *SubscriptionManager) Backlog() RingMetrics {
	return m.backlog.Metrics()
}

// Close stops the fan-out goroutine after the backlog is delivered and
// closes the event ring.
func (m *SubscriptionManager) Close() {
	m.backlog.Close()
	m.logger.Debug("Waiting for event fan-out to complete...")
	m.wg.Wait()
	m.ring.Close()
}

func (m *SubscriptionManager) dispatch(ev StateChangeEvent) {
	m.ring.ForceSend(ev)

	m.mu.Lock()
	subs := append([]subscriber(nil), m.subs...)
	m.mu.Unlock()

	for _, s := range subs {
		m.notify(s, ev)
	}
}

func (m *SubscriptionManager) notify(s subscriber, ev StateChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithFields(logrus.Fields{
				"subscriber": s.id,
				"address":    ev.Address,
				"panic":      fmt.Sprint(r),
			}).Error("State observer panicked")
		}
	}()
	s.fn(ev)
}
