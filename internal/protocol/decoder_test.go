package protocol_test

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/lednet/internal/capability"
	"github.com/srg/lednet/internal/codec"
	"github.com/srg/lednet/internal/protocol"
	"github.com/srg/lednet/internal/testutils"
)

func newDecoder() *protocol.Decoder {
	return protocol.NewDecoder(capability.NewDatabase(nil, nil), nil)
}

func TestDecodeAdvertisement_SymphonyRGBScenario(t *testing.T) {
	// GOAL: Verify a manufacturer advertisement in static RGB mode decodes to
	// a pure color at full brightness with no effect
	//
	// TEST SCENARIO: product 0x56, mode 0x61/0xF0, RGB (255,0,0) → RGB mode, hs (0,100), brightness 255
	dec := newDecoder()
	mfr := testutils.NewManufacturerData().
		WithProduct(0x56).
		WithMode(0x61, 0xF0).
		WithRGB(255, 0, 0).
		Build()

	st, ok := dec.DecodeAdvertisement(mfr, nil)
	require.True(t, ok, "advertisement MUST decode")

	assert.Equal(t, protocol.SourceAdvertisement, st.Source)
	assert.Equal(t, uint8(0x56), st.ProductID)
	assert.Equal(t, protocol.PowerOn, st.Power)
	assert.Equal(t, protocol.ModeRGB, st.ModeKind)
	assert.True(t, st.IsRGBMode)
	assert.False(t, st.IsEffectMode)
	require.NotNil(t, st.RGB)
	hue, sat := codec.HueSaturation(*st.RGB)
	assert.Equal(t, 0, hue)
	assert.Equal(t, 100, sat)
	require.NotNil(t, st.Brightness)
	assert.Equal(t, uint8(255), *st.Brightness)
	assert.Nil(t, st.Effect, "RGB mode MUST NOT report an effect")
}

func TestDecodeNotification_ModeTable(t *testing.T) {
	dec := newDecoder()

	tests := []struct {
		name    string
		payload []byte
		check   func(t *testing.T, st *protocol.DecodedState)
	}{
		{
			name:    "symphony white reports percents",
			payload: testutils.NewStateResponse().WithProduct(0x56).WithMode(0x61, 0x0F).WithValues(50, 0).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.ModeWhite, st.ModeKind)
				assert.True(t, st.IsWhiteMode)
				require.NotNil(t, st.Kelvin)
				assert.Equal(t, 2700, *st.Kelvin)
				assert.Equal(t, uint8(128), *st.Brightness)
			},
		},
		{
			name:    "simple white reports levels",
			payload: testutils.NewStateResponse().WithProduct(0x35).WithMode(0x61, 0x0F).WithWhite(100, 100).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.ModeWhite, st.ModeKind)
				assert.Equal(t, 4600, *st.Kelvin)
				assert.Equal(t, uint8(200), *st.Brightness)
			},
		},
		{
			name:    "simple effect brightness is not trusted",
			payload: testutils.NewStateResponse().WithProduct(0x04).WithMode(0x26, 0x00).WithValues(1, 0).WithRGB(40, 0, 0).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.ModeEffect, st.ModeKind)
				require.NotNil(t, st.Effect)
				assert.Equal(t, capability.EffectRef{Kind: capability.EffectDynamic, ID: 0x26}, *st.Effect)
				assert.Nil(t, st.Brightness, "simple effect mode MUST NOT report brightness")
				require.NotNil(t, st.EffectSpeed)
				assert.Equal(t, 100, *st.EffectSpeed)
			},
		},
		{
			name:    "symphony settled keeps foreground",
			payload: testutils.NewStateResponse().WithProduct(0x56).WithMode(0x61, 0x03).WithRGB(128, 0, 0).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.ModeSettled, st.ModeKind)
				assert.True(t, st.IsEffectMode)
				assert.True(t, st.IsRGBMode)
				assert.Equal(t, capability.EffectRef{Kind: capability.EffectSettled, ID: 3}, *st.Effect)
				assert.Equal(t, codec.RGB{R: 255}, *st.RGB)
				assert.Equal(t, uint8(128), *st.Brightness)
			},
		},
		{
			name:    "symphony dynamic effect remaps values",
			payload: testutils.NewStateResponse().WithProduct(0x56).WithMode(0x25, 0x05).WithValues(80, 40).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.ModeEffect, st.ModeKind)
				assert.Equal(t, capability.EffectRef{Kind: capability.EffectDynamic, ID: 5}, *st.Effect)
				assert.Equal(t, uint8(204), *st.Brightness)
				assert.Equal(t, 40, *st.EffectSpeed)
			},
		},
		{
			name:    "sound reactive",
			payload: testutils.NewStateResponse().WithProduct(0x56).WithMode(0x62, 0x01).WithValues(100, 70).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.ModeSound, st.ModeKind)
				assert.Equal(t, uint8(255), *st.Brightness)
				assert.Equal(t, 70, *st.SoundSensitivity)
			},
		},
		{
			name:    "addressable53 has no settled mode",
			payload: testutils.NewStateResponse().WithProduct(0x53).WithMode(0x61, 0x03).WithRGB(10, 0, 0).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.ModeUnknown, st.ModeKind)
				assert.Nil(t, st.Effect)
			},
		},
		{
			name:    "unknown mode preserves brightness",
			payload: testutils.NewStateResponse().WithProduct(0x33).WithMode(0x99, 0x00).WithRGB(10, 10, 10).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.ModeUnknown, st.ModeKind)
				assert.Nil(t, st.Brightness)
				assert.False(t, st.IsRGBMode || st.IsWhiteMode || st.IsEffectMode)
			},
		},
		{
			name:    "power off and led version",
			payload: testutils.NewStateResponse().WithProduct(0x33).WithPower(false).WithLEDVersion(7).Build(),
			check: func(t *testing.T, st *protocol.DecodedState) {
				assert.Equal(t, protocol.PowerOff, st.Power)
				require.NotNil(t, st.Metadata)
				assert.Equal(t, 7, st.Metadata.LEDVersion)
				assert.Equal(t, protocol.PriorityManufacturer, st.Metadata.Priority)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := dec.DecodeNotification(tt.payload)
			require.True(t, ok, "payload %x MUST decode", tt.payload)
			assert.Equal(t, protocol.PayloadState, st.Kind)
			tt.check(t, st)
		})
	}
}

func TestDecodeNotification_ExtendedResponse(t *testing.T) {
	dec := newDecoder()

	st, ok := dec.DecodeNotification(testutils.ExtendedStateResponse(0x00, 0x23, 0x61, 0xF0, 120, 100, 50, 0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, protocol.ModeRGB, st.ModeKind)
	assert.Equal(t, codec.RGB{G: 255}, *st.RGB)
	assert.Equal(t, uint8(128), *st.Brightness)

	st, ok = dec.DecodeNotification(testutils.ExtendedStateResponse(0x00, 0x23, 0x61, 0x0F, 0, 0, 0, 30, 100, 0))
	require.True(t, ok)
	assert.Equal(t, protocol.ModeWhite, st.ModeKind)
	assert.Equal(t, 5360, *st.Kelvin, "iotbt temperature percent MUST count from cool")
	assert.Equal(t, uint8(255), *st.Brightness)

	st, ok = dec.DecodeNotification(testutils.ExtendedStateResponse(0x00, 0x24, 0x25, 0x07, 0, 0, 60, 0, 0, 35))
	require.True(t, ok)
	assert.Equal(t, protocol.PowerOff, st.Power)
	assert.Equal(t, capability.EffectRef{Kind: capability.EffectDynamic, ID: 7}, *st.Effect)
	assert.Equal(t, 35, *st.EffectSpeed)
	assert.Equal(t, uint8(153), *st.Brightness)

	_, ok = dec.DecodeNotification([]byte{0xEA, 0x81, 0x00, 0x23})
	assert.False(t, ok, "short extended response MUST NOT decode")
}

func TestDecodeNotification_LedSettingsAndAck(t *testing.T) {
	dec := newDecoder()

	payload := testutils.LedSettingsResponse(300, 2, 0x01, 0x02, 0x01)
	for _, p := range [][]byte{payload, append([]byte{0x00}, payload...)} {
		st, ok := dec.DecodeNotification(p)
		require.True(t, ok)
		assert.Equal(t, protocol.PayloadLedSettings, st.Kind)
		assert.Equal(t, &protocol.LedSettings{LEDCount: 300, Segments: 2, ICType: 1, ColorOrder: 2, Direction: 1}, st.LedSettings)
	}

	st, ok := dec.DecodeNotification([]byte{0xF0, 0x3B, 0x00})
	require.True(t, ok)
	assert.Equal(t, protocol.PayloadAck, st.Kind)
	assert.True(t, st.Ack.OK())
	assert.Equal(t, byte(0x3B), st.Ack.Opcode)
}

func TestDecodeNotification_Wrappers(t *testing.T) {
	dec := newDecoder()
	raw := testutils.NewStateResponse().WithProduct(0x56).WithRGB(0, 0, 255).Build()

	wrappers := map[string][]byte{
		"json":        []byte(fmt.Sprintf(`{"code":0,"payload":"%s"}`, hex.EncodeToString(raw))),
		"bare quoted": []byte(`"` + hex.EncodeToString(raw) + `"`),
		"prefixed":    []byte(`notify:"` + hex.EncodeToString(raw) + `"`),
	}
	for name, data := range wrappers {
		t.Run(name, func(t *testing.T) {
			st, ok := dec.DecodeNotification(data)
			require.True(t, ok, "wrapped payload MUST decode")
			assert.Equal(t, codec.RGB{B: 255}, *st.RGB)
		})
	}
}

func TestDecodeNotification_Rejects(t *testing.T) {
	dec := newDecoder()

	tests := map[string][]byte{
		"empty":             nil,
		"unknown magic":     {0x42, 0x01, 0x02},
		"short state":       {0x81, 0x56, 0x23},
		"bad checksum":      testutils.NewStateResponse().WithProduct(0x56).WithBadChecksum().Build(),
		"short led":         {0x63, 0x00, 0x01},
		"short ack":         {0xF0},
		"broken json":       []byte(`{"code":`),
		"json with bad hex": []byte(`{"code":1,"payload":"zz"}`),
		"odd quoted hex":    []byte(`"abc"`),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			st, ok := dec.DecodeNotification(data)
			assert.False(t, ok)
			assert.Nil(t, st)

			_, err := dec.DecodeNotificationErr(data)
			assert.ErrorIs(t, err, protocol.ErrDecode)
		})
	}
}

func TestDecodeAdvertisement_Metadata(t *testing.T) {
	dec := newDecoder()
	mfr := testutils.NewManufacturerData().WithProduct(0x00).WithVersions(4, 9, 2).WithFirmwareFlag(0x01).Build()

	st, ok := dec.DecodeAdvertisement(mfr, nil)
	require.True(t, ok)
	assert.Equal(t, protocol.PriorityManufacturer, st.Metadata.Priority)
	assert.Equal(t, 9, st.Metadata.FirmwareVersion)
	assert.Equal(t, 1, st.Metadata.FirmwareFlag)

	st, ok = dec.DecodeAdvertisement(mfr, testutils.ServiceData(5, 11, 3, 2, 0x04))
	require.True(t, ok)
	assert.Equal(t, protocol.PriorityService, st.Metadata.Priority, "service data MUST win over manufacturer metadata")
	assert.Equal(t, 11, st.Metadata.FirmwareVersion)
	assert.Equal(t, 3, st.Metadata.FirmwareMinor)
	assert.Equal(t, protocol.PayloadState, st.Kind)

	st, ok = dec.DecodeAdvertisement(nil, testutils.ServiceData(5, 11, 3, 2, 0x04))
	require.True(t, ok)
	assert.Equal(t, protocol.PayloadMetadata, st.Kind)
	assert.False(t, st.HasProduct)
}

func TestDecodeAdvertisement_Rejects(t *testing.T) {
	dec := newDecoder()

	foreign := testutils.NewManufacturerData().WithCompanyID(0x004C).Build()
	_, ok := dec.DecodeAdvertisement(foreign, nil)
	assert.False(t, ok, "foreign company IDs MUST be ignored")

	truncated := testutils.NewManufacturerData().Build()[:12]
	_, ok = dec.DecodeAdvertisement(truncated, nil)
	assert.False(t, ok)

	_, ok = dec.DecodeAdvertisement(nil, []byte{0x01, 0x02})
	assert.False(t, ok)

	_, ok = dec.DecodeAdvertisement(nil, nil)
	assert.False(t, ok)
}

func TestParseManufacturerData(t *testing.T) {
	raw := testutils.NewManufacturerData().WithCompanyID(0x5A07).WithProduct(0x33).Build()

	m, err := protocol.ParseManufacturerData(protocol.UnknownCompanyID, raw)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, uint16(0x5A07), m.CompanyID)
	assert.Equal(t, uint8(0x33), m.ProductID)
	assert.Equal(t, "C0:FF:EE:00:00:01", m.MACString())

	m, err = protocol.ParseManufacturerData(0x5A07, raw[2:])
	require.NoError(t, err)
	assert.Equal(t, uint8(0x33), m.ProductID)

	m, err = protocol.ParseManufacturerData(0x004C, raw[2:])
	assert.NoError(t, err)
	assert.Nil(t, m)

	_, err = protocol.ParseManufacturerData(protocol.UnknownCompanyID, []byte{0x00})
	assert.Error(t, err)
}

func TestEncodeDecode_BrightnessRecovery(t *testing.T) {
	// GOAL: Verify a simple-family color command read back through a state
	// response recovers brightness within ±1 and the exact hue/saturation
	//
	// TEST SCENARIO: every brightness 1..255 for the six pure colors → decode(encode) ≈ input
	db := capability.NewDatabase(nil, nil)
	enc := protocol.NewEncoder(db, nil)
	dec := protocol.NewDecoder(db, nil)
	caps := db.Lookup(0x33)

	colors := []codec.RGB{
		{R: 255}, {G: 255}, {B: 255},
		{R: 255, G: 255}, {G: 255, B: 255}, {R: 255, B: 255},
	}
	for _, c := range colors {
		wantHue, wantSat := codec.HueSaturation(c)
		for b := 1; b <= 255; b++ {
			frame, err := enc.Encode(protocol.ColorIntent{RGB: c, Brightness: uint8(b)}, caps, protocol.Snapshot{})
			require.NoError(t, err)
			p := frame.Payload()

			resp := testutils.NewStateResponse().WithProduct(0x33).WithRGB(p[1], p[2], p[3]).Build()
			st, ok := dec.DecodeNotification(resp)
			require.True(t, ok)

			require.InDelta(t, b, int(*st.Brightness), 1, "brightness %d for %v", b, c)
			hue, sat := codec.HueSaturation(*st.RGB)
			require.Equal(t, wantHue, hue, "hue for %v at %d", c, b)
			require.Equal(t, wantSat, sat, "saturation for %v at %d", c, b)
		}
	}
}
