package capability

import (
	"sort"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
)

// Database answers capability questions for product IDs. It combines the
// static product table, the firmware-gated function templates parsed from a
// capability file, and probed overlays learned at runtime.
//
// A Database is built once at startup and shared by all devices. Lookups are
// safe for concurrent use; MergeProbed is the only mutation.
type Database struct {
	products  map[uint8]ProductCapabilities
	functions FunctionTable
	probed    *hashmap.Map[uint8, Overlay]
	mergeMu   sync.Mutex
	logger    *logrus.Logger
}

// NewDatabase builds a database over the static product table. functions may
// be nil when no capability file is available.
func NewDatabase(functions FunctionTable, logger *logrus.Logger) *Database {
	if logger == nil {
		logger = logrus.New()
	}
	if functions == nil {
		functions = FunctionTable{}
	}
	return &Database{
		products:  staticProducts(),
		functions: functions,
		probed:    hashmap.New[uint8, Overlay](),
		logger:    logger,
	}
}

// Lookup returns the capability record for a product ID. Unknown IDs yield a
// permissive record with NeedsProbing set, unless a probe overlay exists.
func (db *Database) Lookup(productID uint8) ProductCapabilities {
	c, ok := db.products[productID]
	if !ok {
		c = unknownProduct(productID)
	}
	if fs, ok := db.functions[productID]; ok {
		c.Functions = fs
	}
	if o, ok := db.probed.Get(productID); ok {
		c = o.Apply(c)
	}
	return c
}

// Known reports whether the product ID is in the static table.
func (db *Database) Known(productID uint8) bool {
	_, ok := db.products[productID]
	return ok
}

// ProductIDs returns every product ID in the static table, ascending.
func (db *Database) ProductIDs() []uint8 {
	ids := make([]uint8, 0, len(db.products))
	for id := range db.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Function returns the template registered for code on productID.
func (db *Database) Function(productID uint8, code string) (FunctionTemplate, bool) {
	fs, ok := db.functions[productID]
	if !ok {
		return FunctionTemplate{}, false
	}
	f, ok := fs[code]
	return f, ok
}

// SupportsFunction reports whether productID declares code with a minimum
// firmware version not above firmware.
func (db *Database) SupportsFunction(productID uint8, code string, firmware int) bool {
	f, ok := db.Function(productID, code)
	return ok && f.SupportedBy(firmware)
}

// BestFunction returns the first code in preferences that the device supports.
func (db *Database) BestFunction(productID uint8, firmware int, preferences []string) (string, bool) {
	for _, code := range preferences {
		if db.SupportsFunction(productID, code, firmware) {
			return code, true
		}
	}
	return "", false
}

// MergeProbed overlays probed fields onto the in-memory record for productID
// and returns the resulting capabilities. Nothing is persisted here.
func (db *Database) MergeProbed(productID uint8, overlay Overlay) ProductCapabilities {
	db.mergeMu.Lock()
	existing, _ := db.probed.Get(productID)
	merged := existing.Merge(overlay)
	db.probed.Set(productID, merged)
	db.mergeMu.Unlock()

	c := db.Lookup(productID)
	db.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"rgb":        c.HasRGB,
		"ww":         c.HasWW,
		"cw":         c.HasCW,
	}).Debug("Merged probed capabilities")
	return c
}

// Overlays returns a copy of every probed overlay, keyed by product ID.
func (db *Database) Overlays() map[uint8]Overlay {
	out := make(map[uint8]Overlay, db.probed.Len())
	db.probed.Range(func(id uint8, o Overlay) bool {
		out[id] = o
		return true
	})
	return out
}
