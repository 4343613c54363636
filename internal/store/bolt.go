package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketOverlays = []byte("overlays")
	bucketLamps    = []byte("lamps")
)

// BoltStore implements Store using BoltDB with CBOR-encoded values.
type BoltStore struct {
	db     *bolt.DB
	logger *logrus.Logger
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string, logger *logrus.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketOverlays, bucketLamps} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	logger.WithField("path", path).Debug("Store opened")
	return &BoltStore{db: db, logger: logger}, nil
}

func (s *BoltStore) put(bucket, key []byte, v any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucket)
		}
		data, err := cbor.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) get(bucket, key []byte, what string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucket)
		}
		data := b.Get(key)
		if data == nil {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return cbor.Unmarshal(data, v)
	})
}

func overlayKey(productID uint8) []byte { return []byte{productID} }

// lampKey folds address case so lookups match however the stack spells it.
func lampKey(address string) []byte { return []byte(strings.ToUpper(address)) }

func (s *BoltStore) SaveOverlay(rec OverlayRecord) error {
	if rec.ProbedAt.IsZero() {
		rec.ProbedAt = time.Now()
	}
	if err := s.put(bucketOverlays, overlayKey(rec.ProductID), rec); err != nil {
		return fmt.Errorf("save overlay 0x%02X: %w", rec.ProductID, err)
	}
	s.logger.WithField("product_id", fmt.Sprintf("0x%02X", rec.ProductID)).Debug("Overlay saved")
	return nil
}

func (s *BoltStore) GetOverlay(productID uint8) (*OverlayRecord, error) {
	var rec OverlayRecord
	if err := s.get(bucketOverlays, overlayKey(productID), fmt.Sprintf("overlay 0x%02X", productID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) DeleteOverlay(productID uint8) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOverlays)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketOverlays)
		}
		return b.Delete(overlayKey(productID))
	})
}

func (s *BoltStore) ListOverlays() ([]OverlayRecord, error) {
	var recs []OverlayRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOverlays)
		if b == nil {
			return nil
		}
		recs = make([]OverlayRecord, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var rec OverlayRecord
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("overlay %x: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

func (s *BoltStore) SaveLamp(rec LampRecord) error {
	if rec.Address == "" {
		return fmt.Errorf("save lamp: empty address")
	}
	if err := s.put(bucketLamps, lampKey(rec.Address), rec); err != nil {
		return fmt.Errorf("save lamp %s: %w", rec.Address, err)
	}
	return nil
}

func (s *BoltStore) GetLamp(address string) (*LampRecord, error) {
	var rec LampRecord
	if err := s.get(bucketLamps, lampKey(address), "lamp "+address, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) ListLamps() ([]LampRecord, error) {
	var recs []LampRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLamps)
		if b == nil {
			return nil
		}
		recs = make([]LampRecord, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var rec LampRecord
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("lamp %s: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// Close the store
func (s *BoltStore) Close() error {
	return s.db.Close()
}
