package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/lednet/internal/capability"
)

func newTestStore(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSaveAndGetOverlay(t *testing.T) {
	s, _ := newTestStore(t)

	probedAt := time.Now().Truncate(time.Second)
	rec := OverlayRecord{
		ProductID: 0x7E,
		Overlay:   capability.ChannelOverlay(true, false, true),
		Address:   "AA:BB:CC:DD:EE:FF",
		ProbedAt:  probedAt,
	}
	require.NoError(t, s.SaveOverlay(rec))

	got, err := s.GetOverlay(0x7E)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7E), got.ProductID)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", got.Address)
	assert.True(t, got.ProbedAt.Equal(probedAt), "probe time = %v, want %v", got.ProbedAt, probedAt)
	require.NotNil(t, got.Overlay.HasWW)
	assert.False(t, *got.Overlay.HasWW)
	assert.True(t, *got.Overlay.HasCW)
	assert.Nil(t, got.Overlay.HasBgColor, "unset overlay fields MUST stay unset")
}

func TestGetOverlayNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetOverlay(0x01)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteOverlay(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.SaveOverlay(OverlayRecord{ProductID: 0x10, Overlay: capability.ChannelOverlay(true, true, true)}))
	require.NoError(t, s.DeleteOverlay(0x10))

	_, err := s.GetOverlay(0x10)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.DeleteOverlay(0x10), "deleting a missing overlay MUST NOT fail")
}

func TestApplyOverlaysAfterReopen(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.SaveOverlay(OverlayRecord{ProductID: 0x7E, Overlay: capability.ChannelOverlay(false, true, true)}))
	require.NoError(t, s.SaveOverlay(OverlayRecord{ProductID: 0x7F, Overlay: capability.ChannelOverlay(true, false, false), Fallback: true}))
	require.NoError(t, s.Close())

	reopened, err := NewBoltStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	db := capability.NewDatabase(nil, nil)
	n, err := ApplyOverlays(reopened, db)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	caps := db.Lookup(0x7E)
	assert.True(t, caps.Probed)
	assert.False(t, caps.HasRGB)
	assert.True(t, caps.HasWW)
	assert.True(t, db.Lookup(0x7F).HasRGB)
}

func TestLamps(t *testing.T) {
	s, _ := newTestStore(t)

	seen := time.Now().Truncate(time.Second)
	require.NoError(t, s.SaveLamp(LampRecord{Address: "aa:bb:cc:dd:ee:01", Name: "LEDnet-1", ProductID: 0x35, ProductKnown: true, LastSeen: seen}))
	require.NoError(t, s.SaveLamp(LampRecord{Address: "AA:BB:CC:DD:EE:02", ProductID: 0x56, LastSeen: seen}))
	require.NoError(t, s.SaveLamp(LampRecord{Address: "AA:BB:CC:DD:EE:01", Name: "Desk", ProductID: 0x35, ProductKnown: true, LastSeen: seen}))

	got, err := s.GetLamp("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.Equal(t, "Desk", got.Name, "address case MUST NOT create a second record")

	all, err := s.ListLamps()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.GetLamp("00:00:00:00:00:00")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.SaveLamp(LampRecord{}))
}
