package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/lednet/internal/mqttbridge"
	"github.com/srg/lednet/internal/store"
)

type published struct {
	topic    string
	retained bool
	payload  string
}

// recordingClient is an in-memory MQTT client.
type recordingClient struct {
	mu           sync.Mutex
	cfg          mqttbridge.Config
	published    []published
	subscribed   []string
	disconnected bool
}

func (c *recordingClient) Publish(topic string, retained bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, retained: retained, payload: string(payload)})
	return nil
}

func (c *recordingClient) Subscribe(topic string, _ mqttbridge.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	return nil
}

func (c *recordingClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *recordingClient) lastPayload(topic string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.published) - 1; i >= 0; i-- {
		if c.published[i].topic == topic {
			return c.published[i].payload, true
		}
	}
	return "", false
}

type BridgeCommandTestSuite struct {
	CommandTestSuite

	client   *recordingClient
	origDial func(mqttbridge.Config, *logrus.Logger) (mqttbridge.Client, error)
}

func (s *BridgeCommandTestSuite) SetupTest() {
	s.CommandTestSuite.SetupTest()
	s.client = &recordingClient{}
	s.origDial = dialMQTT
	dialMQTT = func(cfg mqttbridge.Config, _ *logrus.Logger) (mqttbridge.Client, error) {
		s.client.mu.Lock()
		s.client.cfg = cfg
		s.client.mu.Unlock()
		return s.client, nil
	}
}

func (s *BridgeCommandTestSuite) TearDownTest() {
	dialMQTT = s.origDial
	s.CommandTestSuite.TearDownTest()
}

// GOAL: Verify bridge mirrors the given lamps until its context ends
//
// TEST SCENARIO: bridge <addr> --broker → online + lamp state published → cancel → offline, disconnected
func (s *BridgeCommandTestSuite) TestBridgeRunsUntilCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.ExecuteCommandContext(ctx, "bridge", TestLampAddress1, "--broker", "tcp://broker:1883", "--prefix", "home/leds")
		done <- err
	}()

	s.Eventually(func() bool {
		_, ok := s.client.lastPayload("home/leds/c0ffee000001/state")
		return ok
	}, 2*time.Second, 10*time.Millisecond, "lamp state MUST be published")

	payload, _ := s.client.lastPayload("home/leds/bridge/state")
	s.Equal("online", payload)

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("bridge MUST stop when its context is cancelled")
	}

	payload, _ = s.client.lastPayload("home/leds/bridge/state")
	s.Equal("offline", payload)

	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	s.True(s.client.disconnected)
	s.Equal("tcp://broker:1883", s.client.cfg.Broker)
	s.Equal("home/leds", s.client.cfg.TopicPrefix)
}

// GOAL: Verify bridge defaults to the lamps remembered in the store
//
// TEST SCENARIO: stored lamp, broker from config, no args → that lamp bridged
func (s *BridgeCommandTestSuite) TestBridgeStoredLamps() {
	s.WriteConfig("mqtt:\n  broker: tcp://localhost:1883\n")
	st := s.OpenStore()
	s.Require().NoError(st.SaveLamp(store.LampRecord{Address: TestLampAddress2, ProductID: 0x35, ProductKnown: true, LastSeen: time.Now()}))
	s.Require().NoError(st.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	var out string
	go func() {
		o, err := s.ExecuteCommandContext(ctx, "bridge")
		out = o
		done <- err
	}()

	s.Eventually(func() bool {
		_, ok := s.client.lastPayload("lednet/c0ffee000002/state")
		return ok
	}, 2*time.Second, 10*time.Millisecond, "stored lamp MUST be bridged")

	cancel()
	s.NoError(<-done)
	s.True(strings.Contains(out, "Bridging 1 lamp(s)"), "output: %s", out)
}

// GOAL: Verify bridge refuses to start without a broker or lamps
//
// TEST SCENARIO: no broker → error; broker but empty store → error; neither dials
func (s *BridgeCommandTestSuite) TestBridgeMissingSetup() {
	_, err := s.ExecuteCommand("bridge", TestLampAddress1)
	s.Require().Error(err)
	s.Contains(err.Error(), "no MQTT broker")

	_, err = s.ExecuteCommand("bridge", "--broker", "tcp://localhost:1883")
	s.Require().Error(err)
	s.Contains(err.Error(), "no lamps to bridge")

	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	s.Empty(s.client.published, "nothing MUST be published when setup is incomplete")
}

func TestBridgeCommandTestSuite(t *testing.T) {
	suite.Run(t, new(BridgeCommandTestSuite))
}
