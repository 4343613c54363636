package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/suite"

	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/devicefactory"
	"github.com/srg/lednet/internal/store"
	"github.com/srg/lednet/internal/testutils"
)

// Test lamp addresses
const (
	TestLampAddress1 = "C0:FF:EE:00:00:01"
	TestLampAddress2 = "C0:FF:EE:00:00:02"
)

// CommandTestSuite runs ledctl commands against simulated lamps.
// All cmd/ledctl test suites should embed it.
type CommandTestSuite struct {
	suite.Suite

	Dir        string
	ConfigPath string
	StorePath  string

	mu    sync.Mutex
	lamps map[string]*testutils.FakeLamp

	origScanner   func() (device.ScanningDevice, error)
	origTransport func(string, *logrus.Logger) device.Transport
}

func (s *CommandTestSuite) SetupTest() {
	s.Dir = s.T().TempDir()
	s.StorePath = filepath.Join(s.Dir, "ledctl.db")
	s.ConfigPath = filepath.Join(s.Dir, "ledctl.yaml")
	s.WriteConfig("")

	s.lamps = make(map[string]*testutils.FakeLamp)
	s.origScanner = devicefactory.ScannerFactory
	s.origTransport = devicefactory.TransportFactory
	devicefactory.TransportFactory = func(address string, _ *logrus.Logger) device.Transport {
		return s.Lamp(address)
	}
}

func (s *CommandTestSuite) TearDownTest() {
	devicefactory.ScannerFactory = s.origScanner
	devicefactory.TransportFactory = s.origTransport
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lamps {
		l.Drain()
	}
}

// WriteConfig writes the test configuration with fast timeouts plus extra
// YAML lines.
func (s *CommandTestSuite) WriteConfig(extra string) {
	cfg := fmt.Sprintf(`log_level: error
connect_timeout: 1s
state_query_timeout: 150ms
led_settings_timeout: 150ms
probe_query_timeout: 150ms
probe_settle_delay: 1ms
store_path: %s
%s`, s.StorePath, extra)
	s.Require().NoError(os.WriteFile(s.ConfigPath, []byte(cfg), 0o600))
}

// AddLamp registers a simulated lamp. Unregistered addresses get a 0x35 bulb.
func (s *CommandTestSuite) AddLamp(lamp *testutils.FakeLamp) *testutils.FakeLamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lamps[strings.ToUpper(lamp.Address())] = lamp
	return lamp
}

// Lamp returns the simulated lamp at address.
func (s *CommandTestSuite) Lamp(address string) *testutils.FakeLamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(address)
	if l, ok := s.lamps[key]; ok {
		return l
	}
	l := testutils.NewFakeLamp(address, 0x35)
	s.lamps[key] = l
	return l
}

// ExecuteCommand runs ledctl with the test config and returns stdout.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	return s.ExecuteCommandContext(context.Background(), args...)
}

// ExecuteCommandContext is ExecuteCommand with a caller context.
func (s *CommandTestSuite) ExecuteCommandContext(ctx context.Context, args ...string) (string, error) {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(append([]string{"--config", s.ConfigPath}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// OpenStore opens the store written by the commands. Close it before the
// next command runs.
func (s *CommandTestSuite) OpenStore() *store.BoltStore {
	st, err := store.NewBoltStore(s.StorePath, nil)
	s.Require().NoError(err, "store MUST open")
	return st
}

// Cmd returns the named subcommand of a fresh root.
func (s *CommandTestSuite) Cmd(name string) *cobra.Command {
	cmd, _, err := newRootCmd().Find([]string{name})
	s.Require().NoError(err)
	return cmd
}
