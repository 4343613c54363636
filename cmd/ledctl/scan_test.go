package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srg/lednet/internal/device"
	"github.com/srg/lednet/internal/devicefactory"
	"github.com/srg/lednet/internal/testutils"
)

type ScanCommandTestSuite struct {
	CommandTestSuite

	fake *testutils.FakeScanner
}

func (s *ScanCommandTestSuite) SetupTest() {
	s.CommandTestSuite.SetupTest()

	lamp := testutils.NewAdvertisementBuilder().
		WithAddress(TestLampAddress1).
		WithName("LEDnet-Desk").
		WithRSSI(-48).
		WithConnectable(true).
		WithManufacturerData(testutils.NewManufacturerData().WithProduct(0x35).WithRGB(255, 0, 0).Build()).
		Build()
	other := testutils.NewAdvertisementBuilder().
		WithAddress("99:88:77:66:55:44").
		WithName("Heart Rate").
		WithManufacturerData([]byte{0x4C, 0x00, 0x02, 0x15}).
		Build()

	s.fake = &testutils.FakeScanner{Advertisements: []device.Advertisement{lamp, other}}
	devicefactory.ScannerFactory = func() (device.ScanningDevice, error) { return s.fake, nil }
}

// GOAL: Verify scan lists LEDnet lamps with their advertised state
//
// TEST SCENARIO: one lamp + one foreign device → JSON lists only the lamp, decoded as red and on
func (s *ScanCommandTestSuite) TestScanJSON() {
	out, err := s.ExecuteCommand("scan", "-d", "200ms", "-f", "json")
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(out, `[{
		"address": "C0:FF:EE:00:00:01",
		"name": "LEDnet-Desk",
		"rssi": -48,
		"state": {"product_id": 53, "product_known": true}
	}]`)

	var lamps []lampJSON
	s.Require().NoError(json.Unmarshal([]byte(out), &lamps))
	s.Len(lamps, 1, "foreign devices MUST be filtered out")
}

// GOAL: Verify --all disables the company ID filter
//
// TEST SCENARIO: scan --all → both devices listed
func (s *ScanCommandTestSuite) TestScanAll() {
	out, err := s.ExecuteCommand("scan", "-d", "200ms", "-f", "json", "--all")
	s.Require().NoError(err)

	var lamps []lampJSON
	s.Require().NoError(json.Unmarshal([]byte(out), &lamps))
	s.Len(lamps, 2)
}

// GOAL: Verify scanned lamps are remembered for later commands
//
// TEST SCENARIO: scan → store holds name and product → power skips identification
func (s *ScanCommandTestSuite) TestScanRemembersLamps() {
	_, err := s.ExecuteCommand("scan", "-d", "200ms")
	s.Require().NoError(err)

	st := s.OpenStore()
	rec, err := st.GetLamp(TestLampAddress1)
	s.Require().NoError(err, "scanned lamp MUST be stored")
	s.Equal("LEDnet-Desk", rec.Name)
	s.Equal(uint8(0x35), rec.ProductID)
	s.Require().NoError(st.Close())

	_, err = s.ExecuteCommand("power", TestLampAddress1, "on")
	s.Require().NoError(err)
	s.Equal([]byte{0x71}, s.Lamp(TestLampAddress1).Opcodes())
}

// GOAL: Verify the table output and the empty result message
//
// TEST SCENARIO: table scan → header and lamp row; block list → "No lamps discovered"
func (s *ScanCommandTestSuite) TestScanTable() {
	out, err := s.ExecuteCommand("scan", "-d", "200ms")
	s.Require().NoError(err)
	s.Contains(out, "NAME")
	s.Contains(out, "LEDnet-Desk")
	s.Contains(out, "0x35")
	s.Contains(out, "color #FF0000")

	out, err = s.ExecuteCommand("scan", "-d", "200ms", "--block", TestLampAddress1)
	s.Require().NoError(err)
	s.Contains(out, "No lamps discovered")
}

func TestScanCommandTestSuite(t *testing.T) {
	suite.Run(t, new(ScanCommandTestSuite))
}
