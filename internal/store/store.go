// Package store persists what the tool learns about lamps between runs:
// probed capability overlays per product ID and the lamps seen by scans.
package store

import (
	"errors"
	"time"

	"github.com/srg/lednet/internal/capability"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// OverlayRecord is a probed capability overlay with its provenance.
type OverlayRecord struct {
	ProductID uint8              `cbor:"1,keyasint"`
	Overlay   capability.Overlay `cbor:"2,keyasint"`
	Address   string             `cbor:"3,keyasint,omitempty"`
	Fallback  bool               `cbor:"4,keyasint,omitempty"`
	ProbedAt  time.Time          `cbor:"5,keyasint"`
}

// LampRecord is a lamp remembered from a scan.
type LampRecord struct {
	Address         string    `cbor:"1,keyasint" json:"address"`
	Name            string    `cbor:"2,keyasint,omitempty" json:"name,omitempty"`
	ProductID       uint8     `cbor:"3,keyasint" json:"product_id"`
	ProductKnown    bool      `cbor:"4,keyasint" json:"product_known"`
	FirmwareVersion int       `cbor:"5,keyasint,omitempty" json:"firmware_version,omitempty"`
	LastSeen        time.Time `cbor:"6,keyasint" json:"last_seen"`
}

// Store defines the persistence interface.
type Store interface {
	SaveOverlay(rec OverlayRecord) error
	GetOverlay(productID uint8) (*OverlayRecord, error)
	DeleteOverlay(productID uint8) error
	ListOverlays() ([]OverlayRecord, error)

	SaveLamp(rec LampRecord) error
	GetLamp(address string) (*LampRecord, error)
	ListLamps() ([]LampRecord, error)

	Close() error
}

// ApplyOverlays merges every stored overlay into db and returns how many were
// applied.
func ApplyOverlays(s Store, db *capability.Database) (int, error) {
	recs, err := s.ListOverlays()
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		db.MergeProbed(rec.ProductID, rec.Overlay)
	}
	return len(recs), nil
}
