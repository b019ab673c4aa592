// Package catalog knows what the tracked products are: which source a key
// belongs to, how to label and link it, and the manual overrides kept in the
// products.json registry.
package catalog

import (
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
	"github.com/donaldgifford/restock-tracker/internal/state"
)

// Categories.
const (
	CategoryDrinks      = "drinks"
	CategoryPowder      = "powder"
	CategoryAccessories = "accessories"
	CategoryPrepaid     = "prepaid"
)

// productTypes maps a source-reported product type to a category.
var productTypes = map[string]string{
	"Drink":       CategoryDrinks,
	"Powder":      CategoryPowder,
	"Gift Card":   CategoryAccessories,
	"Accessories": CategoryAccessories,
}

// Source describes one configured product source.
type Source struct {
	Prefix string
	Label  string
	// ProductURL is a template with {id}, {handle} and {variant}
	// placeholders.
	ProductURL string
}

// Catalog resolves product keys against the configured sources and the
// override registry.
type Catalog struct {
	sources  map[string]Source
	registry *jsonstore.Store[Registry]
	log      *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithRegistry loads overrides from the registry document at path.
func WithRegistry(path string, opts ...jsonstore.Option) Option {
	return func(c *Catalog) {
		c.registry = NewRegistryStore(path, opts...)
	}
}

// WithRegistryStore uses an already opened registry store.
func WithRegistryStore(s *jsonstore.Store[Registry]) Option {
	return func(c *Catalog) {
		c.registry = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		c.log = l
	}
}

// New creates a Catalog for the given sources.
func New(sources []Source, opts ...Option) *Catalog {
	c := &Catalog{
		sources: make(map[string]Source, len(sources)),
		log:     slog.Default(),
	}
	for _, s := range sources {
		c.sources[s.Prefix] = s
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the source owning key.
func (c *Catalog) Source(key string) (Source, bool) {
	s, ok := c.sources[state.SourceOf(key)]
	return s, ok
}

// SourceLabel returns the human label of the key's source, falling back to
// the raw prefix for unknown sources.
func (c *Catalog) SourceLabel(key string) string {
	if s, ok := c.Source(key); ok && s.Label != "" {
		return s.Label
	}
	return state.SourceOf(key)
}

// ProductURL builds the product page link for key. The handle replaces the
// id in {handle} when known. Variant keys get a variant query parameter when
// the template does not place it itself.
func (c *Catalog) ProductURL(key, handle string) string {
	source, id, variant := state.SplitKey(key)
	s, ok := c.sources[source]
	if !ok || s.ProductURL == "" {
		return ""
	}

	slug := handle
	if slug == "" {
		slug = id
	}

	tmpl := s.ProductURL
	hasVariant := strings.Contains(tmpl, "{variant}")
	link := strings.NewReplacer(
		"{id}", url.PathEscape(id),
		"{handle}", url.PathEscape(slug),
		"{variant}", url.QueryEscape(variant),
	).Replace(tmpl)

	if variant != "" && !hasVariant {
		sep := "?"
		if strings.Contains(link, "?") {
			sep = "&"
		}
		link += sep + "variant=" + url.QueryEscape(variant)
	}
	return link
}

// Classify returns the category of key: the registry override, else the
// category of the product type, else drinks.
func (c *Catalog) Classify(key, productType string) string {
	if e, ok := c.entry(key); ok && e.Category != "" {
		return e.Category
	}
	if cat, ok := productTypes[productType]; ok {
		return cat
	}
	return CategoryDrinks
}

// Prepaid reports whether a product is a prepaid item that never triggers
// notifications.
func (c *Catalog) Prepaid(key, productType, title string) bool {
	return c.Classify(key, productType) == CategoryPrepaid ||
		strings.Contains(strings.ToLower(title), CategoryPrepaid)
}

// DisplayName returns the registry name for key, or fallback. The bool is
// true when the name came from the registry and must be shown verbatim.
func (c *Catalog) DisplayName(key, fallback string) (string, bool) {
	if e, ok := c.entry(key); ok && e.Name != "" {
		return e.Name, true
	}
	return fallback, false
}

// SMSName returns the short name used in text messages.
func (c *Catalog) SMSName(key, fallback string) string {
	if e, ok := c.entry(key); ok && e.SMSName != "" {
		return e.SMSName
	}
	return fallback
}

// NoExpand reports whether a multi-variant product is tracked as one item.
func (c *Catalog) NoExpand(key string) bool {
	e, ok := c.entry(key)
	return ok && e.NoExpand
}

// Hidden reports whether a product is hidden from listings.
func (c *Catalog) Hidden(key string, available bool) bool {
	e, ok := c.entry(key)
	if !ok {
		return false
	}
	switch e.Hidden {
	case HiddenAlways:
		return true
	case HiddenWhenOOS:
		return !available
	default:
		return false
	}
}

// Keys returns the registry keys of one source in sorted order.
func (c *Catalog) Keys(prefix string) []string {
	reg := c.snapshot()
	p := prefix + state.KeySeparator
	var keys []string
	for k := range reg {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Entry returns the registry entry for key.
func (c *Catalog) Entry(key string) (Entry, bool) {
	return c.entry(key)
}

func (c *Catalog) entry(key string) (Entry, bool) {
	e, ok := c.snapshot()[key]
	return e, ok
}

func (c *Catalog) snapshot() Registry {
	if c.registry == nil {
		return nil
	}
	reg, err := c.registry.Snapshot()
	if err != nil {
		c.log.Warn("reading product registry", "path", c.registry.Path(), "error", err)
		return nil
	}
	return reg
}
