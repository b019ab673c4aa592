package state

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
)

// Table is the persisted product state table.
type Table struct {
	store *jsonstore.Store[Document]
	now   func() time.Time
}

// TableOption configures a Table.
type TableOption func(*tableOptions)

type tableOptions struct {
	now       func() time.Time
	storeOpts []jsonstore.Option
}

// WithClock overrides the time source used for last_checked.
func WithClock(now func() time.Time) TableOption {
	return func(o *tableOptions) {
		o.now = now
	}
}

// WithStoreOptions passes options to the underlying document store.
func WithStoreOptions(opts ...jsonstore.Option) TableOption {
	return func(o *tableOptions) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// NewTable opens the state table stored at path.
func NewTable(path string, opts ...TableOption) *Table {
	o := tableOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Table{
		store: jsonstore.New(path, func() Document { return Document{} }, o.storeOpts...),
		now:   o.now,
	}
}

// Snapshot returns the cached table. Do not mutate it.
func (t *Table) Snapshot() (Document, error) {
	return t.store.Snapshot()
}

// Load returns a private copy of the table.
func (t *Table) Load() (Document, error) {
	doc, err := t.store.Read()
	if doc == nil {
		doc = Document{}
	}
	return doc, err
}

// Get returns the state of one product from the snapshot.
func (t *Table) Get(key string) (ProductState, bool, error) {
	doc, err := t.store.Snapshot()
	if err != nil {
		return ProductState{}, false, err
	}
	ps, ok := doc[key]
	return ps, ok, nil
}

// Update runs fn inside one locked read-modify-write transaction. All
// observations applied through the Tx share the same timestamp. Nothing is
// written when fn returns an error.
func (t *Table) Update(fn func(tx *Tx) error) error {
	return t.store.Update(func(doc *Document) error {
		if *doc == nil {
			*doc = Document{}
		}
		return fn(&Tx{states: *doc, now: t.now().UTC()})
	})
}

// Tx is the mutable view of the table inside Update.
type Tx struct {
	states  Document
	now     time.Time
	changes []Change
}

// Apply records an observation and returns the change it produced, if any.
func (tx *Tx) Apply(key string, available bool, extras Extras) *Change {
	c := Apply(tx.states, key, available, extras, tx.now)
	if c != nil {
		tx.changes = append(tx.changes, *c)
	}
	return c
}

// Remove deletes key and reports whether it was present.
func (tx *Tx) Remove(key string) bool {
	if _, ok := tx.states[key]; !ok {
		return false
	}
	delete(tx.states, key)
	return true
}

// Keys returns all keys in sorted order.
func (tx *Tx) Keys() []string {
	return slices.Sorted(maps.Keys(tx.states))
}

// Touch refreshes last_checked for every key of the given source without
// changing anything else. It returns the number of keys touched.
func (tx *Tx) Touch(source string) int {
	prefix := source + KeySeparator
	n := 0
	for key, ps := range tx.states {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		ps.LastChecked = tx.now
		tx.states[key] = ps
		n++
	}
	return n
}

// Changes returns the changes applied so far, in order.
func (tx *Tx) Changes() []Change {
	return tx.changes
}
