// Package state holds the product state table: the last observed
// availability of every tracked product, and the diff that turns a new
// observation into a change event.
package state

import (
	"strings"
	"time"
)

// KeySeparator separates the parts of a product key (source:id[:variant]).
const KeySeparator = ":"

// Attributes are the sparse, independently optional product attributes.
type Attributes struct {
	Title        *string `json:"title,omitempty"`
	Handle       *string `json:"handle,omitempty"`
	ProductType  *string `json:"product_type,omitempty"`
	Price        *string `json:"price,omitempty"`
	InventoryQty *int    `json:"inventory_qty,omitempty"`
	StatusText   *string `json:"status_text,omitempty"`
}

// TitleOr returns the title, or fallback when unknown.
func (a *Attributes) TitleOr(fallback string) string {
	if a.Title == nil || *a.Title == "" {
		return fallback
	}
	return *a.Title
}

// Quantity returns the inventory quantity and whether it is known.
func (a *Attributes) Quantity() (int, bool) {
	if a.InventoryQty == nil {
		return 0, false
	}
	return *a.InventoryQty, true
}

// ProductState is the stored record for one product key.
type ProductState struct {
	Available   bool      `json:"available"`
	LastChecked time.Time `json:"last_checked"`
	Attributes
}

// Document is the persisted shape of the state table.
type Document = map[string]ProductState

// Extras carries the optional attributes of one observation.
type Extras struct {
	Title        Field[string] `json:"title"`
	Handle       Field[string] `json:"handle"`
	ProductType  Field[string] `json:"product_type"`
	Price        Field[string] `json:"price"`
	InventoryQty Field[int]    `json:"inventory_qty"`
	StatusText   Field[string] `json:"status_text"`
}

// merge applies the three-way merge: Set overwrites, Clear removes and
// Unset keeps the previous value.
func (e *Extras) merge(prev Attributes) Attributes {
	return Attributes{
		Title:        e.Title.merge(prev.Title),
		Handle:       e.Handle.merge(prev.Handle),
		ProductType:  e.ProductType.merge(prev.ProductType),
		Price:        e.Price.merge(prev.Price),
		InventoryQty: e.InventoryQty.merge(prev.InventoryQty),
		StatusText:   e.StatusText.merge(prev.StatusText),
	}
}

// Values returns only the attributes the update sets.
func (e *Extras) Values() Attributes {
	return Attributes{
		Title:        e.Title.ptr(),
		Handle:       e.Handle.ptr(),
		ProductType:  e.ProductType.ptr(),
		Price:        e.Price.ptr(),
		InventoryQty: e.InventoryQty.ptr(),
		StatusText:   e.StatusText.ptr(),
	}
}

// Change is an availability transition produced by Apply. WasAvailable is
// nil the first time a key is observed. Attributes hold the values set by
// the observation that produced the change.
type Change struct {
	Key          string `json:"key"`
	Available    bool   `json:"available"`
	WasAvailable *bool  `json:"was_available"`
	Attributes
}

// FirstSeen reports whether the change is the first observation of the key.
func (c *Change) FirstSeen() bool {
	return c.WasAvailable == nil
}

// Source returns the source prefix of the change's key.
func (c *Change) Source() string {
	return SourceOf(c.Key)
}

// SourceOf returns the source prefix of a product key.
func SourceOf(key string) string {
	source, _, _ := strings.Cut(key, KeySeparator)
	return source
}

// SplitKey splits a key into source, id and the optional variant.
func SplitKey(key string) (source, id, variant string) {
	source, rest, _ := strings.Cut(key, KeySeparator)
	id, variant, _ = strings.Cut(rest, KeySeparator)
	return source, id, variant
}

// Key builds a product key from its parts. Empty parts are skipped.
func Key(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, KeySeparator)
}

// Apply records an observation of key in states and returns the resulting
// change, or nil when availability did not change. last_checked and the
// merged attributes are written either way.
func Apply(states Document, key string, available bool, extras Extras, now time.Time) *Change {
	prev, seen := states[key]

	states[key] = ProductState{
		Available:   available,
		LastChecked: now,
		Attributes:  extras.merge(prev.Attributes),
	}

	if seen && prev.Available == available {
		return nil
	}

	var was *bool
	if seen {
		w := prev.Available
		was = &w
	}

	return &Change{
		Key:          key,
		Available:    available,
		WasAvailable: was,
		Attributes:   extras.Values(),
	}
}
