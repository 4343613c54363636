package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/lednet/internal/codec"
	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/protocol"
	"github.com/srg/lednet/internal/testutils"
)

type ControlTestSuite struct {
	CommandTestSuite
}

// GOAL: Verify power switches the lamp and prints the resulting state as JSON
//
// TEST SCENARIO: power on -f json → lamp on → state JSON with learned product
func (s *ControlTestSuite) TestPowerOnJSON() {
	out, err := s.ExecuteCommand("power", TestLampAddress1, "on", "-f", "json")
	s.Require().NoError(err)

	s.True(s.Lamp(TestLampAddress1).IsOn(), "lamp MUST be switched on")
	testutils.NewJSONAsserter(s.T()).Assert(out, `{
		"address": "C0:FF:EE:00:00:01",
		"product_id": 53,
		"product_known": true,
		"is_on": true
	}`)
}

// GOAL: Verify a command remembers the lamp's product for later runs
//
// TEST SCENARIO: power on → store holds product 0x35 → next run skips identification
func (s *ControlTestSuite) TestRemembersProduct() {
	_, err := s.ExecuteCommand("power", TestLampAddress1, "on")
	s.Require().NoError(err)

	st := s.OpenStore()
	rec, err := st.GetLamp(TestLampAddress1)
	s.Require().NoError(err, "lamp MUST be remembered after a command")
	s.Equal(uint8(0x35), rec.ProductID)
	s.True(rec.ProductKnown)
	s.Require().NoError(st.Close())

	lamp := s.AddLamp(testutils.NewFakeLamp(TestLampAddress1, 0x35))
	_, err = s.ExecuteCommand("power", TestLampAddress1, "off")
	s.Require().NoError(err)
	s.Equal([]byte{0x71}, lamp.Opcodes(), "a remembered product MUST NOT be queried before the command")
}

// GOAL: Verify color parses the argument and scales it by brightness
//
// TEST SCENARIO: color #FF0000 -b 50 → lamp red at half level → table shows the color
func (s *ControlTestSuite) TestColorTable() {
	out, err := s.ExecuteCommand("color", TestLampAddress1, "#FF0000", "-b", "50")
	s.Require().NoError(err)

	r, g, b, _, _ := s.Lamp(TestLampAddress1).Levels()
	s.Equal([]byte{0x80, 0x00, 0x00}, []byte{r, g, b}, "red MUST be scaled to half level")
	s.Contains(out, "color #FF0000")
	s.Contains(out, "Bulb RGBCW")
	s.Contains(out, "50%")
}

// GOAL: Verify mode commands reach the lamp as their wire commands
//
// TEST SCENARIO: each command → expected opcode written after identification
func (s *ControlTestSuite) TestModeCommands() {
	tests := []struct {
		name   string
		args   []string
		opcode byte
		mode   string
	}{
		{name: "white", args: []string{"white", TestLampAddress2, "4000K"}, opcode: 0x31, mode: "white 4000K"},
		{name: "effect", args: []string{"effect", TestLampAddress2, "seven color cross fade", "-s", "80"}, opcode: 0x61, mode: `effect "Seven Color Cross Fade" speed 80%`},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			lamp := s.AddLamp(testutils.NewFakeLamp(TestLampAddress2, 0x35))
			out, err := s.ExecuteCommand(tt.args...)
			s.Require().NoError(err)

			ops := lamp.Opcodes()
			s.Require().NotEmpty(ops)
			s.Equal(tt.opcode, ops[len(ops)-1])
			s.Contains(out, tt.mode)
		})
	}
}

// GOAL: Verify unsupported operations fail with a friendly message and write nothing
//
// TEST SCENARIO: white on an RGB-only product → ErrUnsupported → only the identification query sent
func (s *ControlTestSuite) TestUnsupportedOperation() {
	lamp := s.AddLamp(testutils.NewFakeLamp(TestLampAddress2, 0x33))

	_, err := s.ExecuteCommand("white", TestLampAddress2, "3000")
	s.Require().Error(err)
	s.ErrorIs(err, protocol.ErrUnsupported)
	s.Contains(FormatUserError(err), "does not support white")
	s.Equal([]byte{0x81}, lamp.Opcodes())
}

// GOAL: Verify state queries the lamp and shows what it reported
//
// TEST SCENARIO: lamp at green levels → state -f json → rgb green, product known
func (s *ControlTestSuite) TestStateQuery() {
	s.AddLamp(testutils.NewFakeLamp(TestLampAddress2, 0x35).WithRGB(0, 255, 0))

	out, err := s.ExecuteCommand("state", TestLampAddress2, "-f", "json")
	s.Require().NoError(err)

	var st device.State
	s.Require().NoError(json.Unmarshal([]byte(out), &st))
	s.Require().NotNil(st.RGB)
	s.Equal(codec.RGB{G: 255}, *st.RGB)
	s.True(st.ProductKnown)
}

// GOAL: Verify an unanswered state query is reported as unknown
//
// TEST SCENARIO: silent lamp → state → ErrQueryTimeout with friendly message
func (s *ControlTestSuite) TestStateTimeout() {
	s.AddLamp(testutils.NewFakeLamp(TestLampAddress2, 0x35).AnswerOnly(0))

	_, err := s.ExecuteCommand("state", TestLampAddress2)
	s.Require().Error(err)
	s.ErrorIs(err, device.ErrQueryTimeout)
	s.Contains(FormatUserError(err), "state is unknown")
}

// GOAL: Verify argument validation rejects bad input before touching the lamp
//
// TEST SCENARIO: invalid values → error, no connection made
func (s *ControlTestSuite) TestArgumentValidation() {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad switch", args: []string{"power", TestLampAddress2, "maybe"}},
		{name: "bad color", args: []string{"color", TestLampAddress2, "#GG0000"}},
		{name: "bad brightness", args: []string{"color", TestLampAddress2, "1,2,3", "-b", "101"}},
		{name: "bad kelvin", args: []string{"white", TestLampAddress2, "warm"}},
		{name: "bad speed", args: []string{"candle", TestLampAddress2, "#FF8800", "--speed", "150"}},
		{name: "missing count", args: []string{"strip", TestLampAddress2}},
		{name: "bad sensitivity", args: []string{"sound", TestLampAddress2, "on", "--sensitivity", "0"}},
		{name: "missing args", args: []string{"power", TestLampAddress2}},
		{name: "bad format", args: []string{"power", TestLampAddress2, "on", "-f", "xml"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			lamp := s.AddLamp(testutils.NewFakeLamp(TestLampAddress2, 0x35))
			_, err := s.ExecuteCommand(tt.args...)
			s.Error(err)
			s.Equal(0, lamp.Connects(), "invalid arguments MUST NOT connect")
		})
	}
}

func TestControlTestSuite(t *testing.T) {
	suite.Run(t, new(ControlTestSuite))
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    codec.RGB
		wantErr bool
	}{
		{in: "#FF8000", want: codec.RGB{R: 255, G: 128}},
		{in: "00ff00", want: codec.RGB{G: 255}},
		{in: "10, 20,30", want: codec.RGB{R: 10, G: 20, B: 30}},
		{in: "256,0,0", wantErr: true},
		{in: "red", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKelvinAndSwitch(t *testing.T) {
	k, err := parseKelvin("2700k")
	require.NoError(t, err)
	assert.Equal(t, 2700, k)

	on, err := parseOnOff("ON")
	require.NoError(t, err)
	assert.True(t, on)

	_, err = parseOnOff("toggle")
	assert.Error(t, err)
}
