package capability

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// EffectKind distinguishes effect ids that share a numeric range.
type EffectKind int

const (
	// EffectDynamic is a self-running pattern.
	EffectDynamic EffectKind = iota
	// EffectSettled keeps a static pattern while accepting live
	// foreground/background colors.
	EffectSettled
)

func (k EffectKind) String() string {
	if k == EffectSettled {
		return "settled"
	}
	return "dynamic"
}

// EffectRef identifies an effect on the wire.
type EffectRef struct {
	Kind EffectKind
	ID   uint8
}

// Catalogue is an ordered name -> effect mapping for one effect type.
type Catalogue struct {
	byName *orderedmap.OrderedMap[string, EffectRef]
	byRef  map[EffectRef]string
}

func newCatalogue() *Catalogue {
	return &Catalogue{
		byName: orderedmap.New[string, EffectRef](),
		byRef:  make(map[EffectRef]string),
	}
}

func (c *Catalogue) add(name string, ref EffectRef) {
	c.byName.Set(name, ref)
	c.byRef[ref] = name
}

// Names returns effect names in catalogue order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, c.byName.Len())
	for pair := c.byName.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Lookup resolves a name, falling back to a case-insensitive match.
func (c *Catalogue) Lookup(name string) (EffectRef, bool) {
	if ref, ok := c.byName.Get(name); ok {
		return ref, true
	}
	for pair := c.byName.Oldest(); pair != nil; pair = pair.Next() {
		if strings.EqualFold(pair.Key, name) {
			return pair.Value, true
		}
	}
	return EffectRef{}, false
}

// Name returns the catalogue name of ref.
func (c *Catalogue) Name(ref EffectRef) (string, bool) {
	name, ok := c.byRef[ref]
	return name, ok
}

// Len returns the number of effects.
func (c *Catalogue) Len() int {
	return c.byName.Len()
}

var simpleEffectNames = []string{
	"Seven Color Cross Fade",
	"Red Gradual Change",
	"Green Gradual Change",
	"Blue Gradual Change",
	"Yellow Gradual Change",
	"Cyan Gradual Change",
	"Purple Gradual Change",
	"White Gradual Change",
	"Red Green Cross Fade",
	"Red Blue Cross Fade",
	"Green Blue Cross Fade",
	"Seven Color Strobe Flash",
	"Red Strobe Flash",
	"Green Strobe Flash",
	"Blue Strobe Flash",
	"Yellow Strobe Flash",
	"Cyan Strobe Flash",
	"Purple Strobe Flash",
	"White Strobe Flash",
	"Seven Color Jumping",
}

// First simple-family effect id on the wire.
const SimpleEffectBase = 0x25

// Settled effect ids run 1..SettledEffectCount.
const SettledEffectCount = 10

var catalogues = map[EffectType]*Catalogue{
	EffectNone:          newCatalogue(),
	EffectSimple:        buildSimpleCatalogue(),
	EffectSymphony:      buildNumberedCatalogue(100, true),
	EffectAddressable53: buildNumberedCatalogue(113, false),
	EffectIotbt:         buildNumberedCatalogue(40, false),
}

func buildSimpleCatalogue() *Catalogue {
	c := newCatalogue()
	for i, name := range simpleEffectNames {
		c.add(name, EffectRef{Kind: EffectDynamic, ID: uint8(SimpleEffectBase + i)})
	}
	return c
}

func buildNumberedCatalogue(dynamic int, settled bool) *Catalogue {
	c := newCatalogue()
	if settled {
		for i := 1; i <= SettledEffectCount; i++ {
			c.add(fmt.Sprintf("Static Effect %d", i), EffectRef{Kind: EffectSettled, ID: uint8(i)})
		}
	}
	for i := 1; i <= dynamic; i++ {
		c.add(fmt.Sprintf("Effect %d", i), EffectRef{Kind: EffectDynamic, ID: uint8(i)})
	}
	return c
}

// CatalogueFor returns the effect catalogue of an effect type. Unknown types
// get the empty catalogue.
func CatalogueFor(t EffectType) *Catalogue {
	if c, ok := catalogues[t]; ok {
		return c
	}
	return catalogues[EffectNone]
}

// EffectList returns the effect names for an effect type in display order.
func EffectList(t EffectType) []string {
	return CatalogueFor(t).Names()
}

// EffectIDForName resolves an effect name for an effect type.
func EffectIDForName(t EffectType, name string) (EffectRef, bool) {
	return CatalogueFor(t).Lookup(name)
}

// NameForEffectID returns the display name of an effect.
func NameForEffectID(t EffectType, ref EffectRef) (string, bool) {
	return CatalogueFor(t).Name(ref)
}
