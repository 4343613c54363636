// Package mqttbridge mirrors lamp state to MQTT and accepts JSON
// commands from it.
//
// Topics, relative to the configured prefix:
//
//	<prefix>/bridge/state   "online" / "offline" (retained)
//	<prefix>/<lamp>/state   lamp state JSON (retained)
//	<prefix>/<lamp>/set     JSON command, see Command
//	<prefix>/<lamp>/error   rejected command report
//
// <lamp> is the BLE address lowercased with separators removed.
package mqttbridge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/lednet/internal/device"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	defaultCommandTimeout = 10 * time.Second
)

func availabilityTopic(prefix string) string { return prefix + "/bridge/state" }

// TopicID returns the topic segment used for a lamp address.
func TopicID(address string) string {
	r := strings.NewReplacer(":", "", "-", "")
	return strings.ToLower(r.Replace(address))
}

type registered struct {
	dev   *device.Device
	unsub func()
}

// Bridge connects lamp actors to an MQTT broker.
type Bridge struct {
	client  Client
	prefix  string
	logger  *logrus.Logger
	lamps   *hashmap.Map[string, *registered]
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBridge creates a bridge over an already connected client.
func NewBridge(client Client, prefix string, logger *logrus.Logger) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}
	if prefix == "" {
		prefix = "lednet"
	}
	return &Bridge{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		logger:  logger,
		lamps:   hashmap.New[string, *registered](),
		timeout: defaultCommandTimeout,
	}
}

// SetCommandTimeout bounds each command applied from MQTT.
func (b *Bridge) SetCommandTimeout(d time.Duration) {
	if d > 0 {
		b.timeout = d
	}
}

// Start announces the bridge and subscribes to lamp commands.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	if err := b.client.Subscribe(b.prefix+"/+/set", b.handleSet); err != nil {
		return err
	}
	b.publish(availabilityTopic(b.prefix), true, []byte(payloadOnline))
	b.logger.WithField("prefix", b.prefix).Info("MQTT bridge started")
	return nil
}

// Stop detaches every lamp, marks the bridge offline and disconnects.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.lamps.Range(func(_ string, r *registered) bool {
		r.unsub()
		return true
	})
	b.publish(availabilityTopic(b.prefix), true, []byte(payloadOffline))
	b.client.Disconnect()
	b.logger.Info("MQTT bridge stopped")
}

// Add starts mirroring dev. The current state is published immediately.
func (b *Bridge) Add(dev *device.Device) {
	id := TopicID(dev.Address())
	r := &registered{dev: dev}
	r.unsub = dev.Subscribe(func(ev device.StateChangeEvent) {
		b.publishState(id, ev.State)
	})
	if _, loaded := b.lamps.GetOrInsert(id, r); loaded {
		r.unsub()
		return
	}
	b.publishState(id, dev.CurrentState())
	b.logger.WithFields(logrus.Fields{"address": dev.Address(), "topic": b.prefix + "/" + id}).Info("Lamp bridged")
}

// Remove stops mirroring the lamp at address.
func (b *Bridge) Remove(address string) {
	id := TopicID(address)
	if r, ok := b.lamps.Get(id); ok {
		r.unsub()
		b.lamps.Del(id)
	}
}

// Len returns the number of bridged lamps.
func (b *Bridge) Len() int { return b.lamps.Len() }

// statePayload adds the ON/OFF switch value to the lamp state.
type statePayload struct {
	Power string `json:"state"`
	device.State
}

func powerText(on *bool) string {
	switch {
	case on == nil:
		return "UNKNOWN"
	case *on:
		return "ON"
	default:
		return "OFF"
	}
}

func (b *Bridge) publishState(id string, st device.State) {
	data, err := json.Marshal(statePayload{Power: powerText(st.IsOn), State: st})
	if err != nil {
		b.logger.WithError(err).WithField("lamp", id).Error("Failed to encode lamp state")
		return
	}
	b.publish(b.prefix+"/"+id+"/state", true, data)
}

func (b *Bridge) handleSet(topic string, payload []byte) {
	id := strings.TrimSuffix(strings.TrimPrefix(topic, b.prefix+"/"), "/set")
	logger := b.logger.WithField("lamp", id)

	r, ok := b.lamps.Get(id)
	if !ok {
		logger.Warn("Command for unknown lamp")
		return
	}

	cmd, err := ParseCommand(payload)
	if err != nil {
		logger.WithError(err).Warn("Rejected command")
		b.publishError(id, err)
		return
	}

	parent := b.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, b.timeout)
	defer cancel()

	if err := cmd.Apply(ctx, r.dev); err != nil {
		logger.WithError(err).Warn("Command failed")
		b.publishError(id, err)
		return
	}
	logger.WithField("payload", string(payload)).Debug("Command applied")
}

func (b *Bridge) publishError(id string, err error) {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	b.publish(b.prefix+"/"+id+"/error", false, data)
}

func (b *Bridge) publish(topic string, retained bool, payload []byte) {
	if err := b.client.Publish(topic, retained, payload); err != nil {
		b.logger.WithError(err).WithField("topic", topic).Warn("MQTT publish failed")
	}
}
