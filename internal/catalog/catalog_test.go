package catalog

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
)

const testRegistry = `{
  "shop:1": {"category": "powder", "name": "Original Powder", "sms_name": "Powder"},
  "shop:2": {"no_expand": true, "hidden": "when_oos"},
  "shop:3": {"hidden": true},
  "shop:4": {"category": "prepaid"},
  "amazon:B01": {"name": "Mocha 12pk"}
}`

func newTestCatalog(t *testing.T, registry string) *Catalog {
	t.Helper()

	path := filepath.Join(t.TempDir(), "products.json")
	if registry != "" {
		require.NoError(t, os.WriteFile(path, []byte(registry), 0o644))
	}

	return New(
		[]Source{
			{Prefix: "shop", Label: "Shop CA", ProductURL: "https://shop.example/products/{handle}"},
			{Prefix: "amazon", Label: "Amazon", ProductURL: "https://amazon.example/dp/{id}"},
			{Prefix: "tmpl", ProductURL: "https://tmpl.example/p/{id}?v={variant}"},
			{Prefix: "bare"},
		},
		WithRegistry(path,
			jsonstore.WithCache(jsonstore.NewCache(2)),
			jsonstore.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, testRegistry)

	tests := []struct {
		name        string
		key         string
		productType string
		want        string
	}{
		{name: "registry override wins", key: "shop:1", productType: "Drink", want: CategoryPowder},
		{name: "product type map", key: "shop:9", productType: "Gift Card", want: CategoryAccessories},
		{name: "powder type", key: "shop:9", productType: "Powder", want: CategoryPowder},
		{name: "unknown type defaults to drinks", key: "shop:9", productType: "Merch", want: CategoryDrinks},
		{name: "no type defaults to drinks", key: "shop:9", want: CategoryDrinks},
		{name: "entry without category falls through", key: "shop:2", productType: "Accessories", want: CategoryAccessories},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.Classify(tt.key, tt.productType))
		})
	}
}

func TestPrepaid(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, testRegistry)

	assert.True(t, c.Prepaid("shop:4", "", "Monthly Plan"))
	assert.True(t, c.Prepaid("shop:9", "", "Soylent PrePaid 3 months"))
	assert.False(t, c.Prepaid("shop:9", "Drink", "Mocha"))
}

func TestNames(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, testRegistry)

	name, fromRegistry := c.DisplayName("shop:1", "auto")
	assert.Equal(t, "Original Powder", name)
	assert.True(t, fromRegistry)

	name, fromRegistry = c.DisplayName("shop:9", "auto")
	assert.Equal(t, "auto", name)
	assert.False(t, fromRegistry)

	assert.Equal(t, "Powder", c.SMSName("shop:1", "auto"))
	assert.Equal(t, "auto", c.SMSName("amazon:B01", "auto"), "display name is not an sms name")
}

func TestHiddenAndNoExpand(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, testRegistry)

	assert.True(t, c.Hidden("shop:3", true))
	assert.True(t, c.Hidden("shop:2", false))
	assert.False(t, c.Hidden("shop:2", true))
	assert.False(t, c.Hidden("shop:1", false))
	assert.False(t, c.Hidden("shop:9", false))

	assert.True(t, c.NoExpand("shop:2"))
	assert.False(t, c.NoExpand("shop:1"))
}

func TestKeys(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, testRegistry)

	assert.Equal(t, []string{"shop:1", "shop:2", "shop:3", "shop:4"}, c.Keys("shop"))
	assert.Equal(t, []string{"amazon:B01"}, c.Keys("amazon"))
	assert.Empty(t, c.Keys("sho"))
}

func TestSourceLabel(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, "")

	assert.Equal(t, "Shop CA", c.SourceLabel("shop:1"))
	assert.Equal(t, "Shop CA", c.SourceLabel("shop:1:2"))
	assert.Equal(t, "bare", c.SourceLabel("bare:1"), "empty label falls back to prefix")
	assert.Equal(t, "nowhere", c.SourceLabel("nowhere:1"))
}

func TestProductURL(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, "")

	tests := []struct {
		name   string
		key    string
		handle string
		want   string
	}{
		{name: "handle", key: "shop:1", handle: "mocha", want: "https://shop.example/products/mocha"},
		{name: "id fallback", key: "shop:1", want: "https://shop.example/products/1"},
		{name: "variant appended", key: "shop:1:99", handle: "mocha", want: "https://shop.example/products/mocha?variant=99"},
		{name: "id template", key: "amazon:B01", want: "https://amazon.example/dp/B01"},
		{name: "variant placeholder", key: "tmpl:1:7", want: "https://tmpl.example/p/1?v=7"},
		{name: "no template", key: "bare:1", want: ""},
		{name: "unknown source", key: "nowhere:1", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.ProductURL(tt.key, tt.handle))
		})
	}
}

func TestRegistryReloadsOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	c := New(nil, WithRegistry(path, jsonstore.WithCache(jsonstore.NewCache(2))))

	assert.Equal(t, CategoryDrinks, c.Classify("shop:1", ""))

	store := NewRegistryStore(path, jsonstore.WithCache(jsonstore.NewCache(2)))
	require.NoError(t, store.Update(func(r *Registry) error {
		(*r)["shop:1"] = Entry{Category: CategoryPowder}
		return nil
	}))

	assert.Equal(t, CategoryPowder, c.Classify("shop:1", ""))
}

func TestCatalogWithoutRegistry(t *testing.T) {
	t.Parallel()

	c := New([]Source{{Prefix: "b"}, {Prefix: "a"}})

	assert.Equal(t, CategoryDrinks, c.Classify("a:1", ""))
	assert.False(t, c.Hidden("a:1", false))
	assert.Empty(t, c.Keys("a"))
	src, ok := c.Source("a:1")
	require.True(t, ok)
	assert.Equal(t, "a", src.Prefix)
}

func TestVisibility_JSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Visibility
	}{
		{in: `true`, want: HiddenAlways},
		{in: `false`, want: Visible},
		{in: `"when_oos"`, want: HiddenWhenOOS},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			var v Visibility
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.want, v)

			out, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.in, string(out))
		})
	}

	var v Visibility
	assert.Error(t, json.Unmarshal([]byte(`"sometimes"`), &v))
	assert.Error(t, json.Unmarshal([]byte(`3`), &v))
}
