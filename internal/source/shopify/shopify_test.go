package shopify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/restock-tracker/internal/catalog"
	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
	"github.com/donaldgifford/restock-tracker/internal/source"
	"github.com/donaldgifford/restock-tracker/internal/state"
)

const productsJSON = `{"products": [
  {"id": 1, "title": "Original", "handle": "original", "product_type": "Drink",
   "variants": [{"id": 11, "title": "Default Title", "available": true, "price": "59.99"}]},
  {"id": 2, "title": "Cacao", "handle": "cacao", "product_type": "Drink",
   "variants": [{"id": 21, "title": "Default Title", "available": true, "price": "59.99"}]},
  {"id": 3, "title": "Shirt", "handle": "shirt", "product_type": "Accessories",
   "variants": [
     {"id": 31, "title": "Small", "available": true, "price": "25.00"},
     {"id": 32, "title": "Large", "available": false, "price": null}
   ]},
  {"id": 4, "title": "Gift Card", "handle": "gift-card", "product_type": "Gift Card",
   "variants": [
     {"id": 41, "title": "$25", "available": true, "price": "25.00", "requires_shipping": false},
     {"id": 42, "title": "$50", "available": true, "price": "50.00", "requires_shipping": false}
   ]},
  {"id": 5, "title": "Bundle", "handle": "bundle", "product_type": "Drink",
   "variants": [
     {"id": 51, "title": "Mixed", "available": false, "price": "80.00"},
     {"id": 52, "title": "Cafe", "available": true, "price": "80.00"}
   ]},
  {"id": 6, "title": "Ghost", "handle": "ghost", "variants": []}
]}`

var pages = map[string]string{
	"/products/original":         `<script>var gsf_conversion_data = {page_type: "product", quantity: "250"};</script>`,
	"/products/cacao":            `<script>var gsf_conversion_data = {page_type: "product", quantity: "-3"};</script>`,
	"/products/shirt?variant=31": `<script>{"inventoryQty": 7}</script>`,
	"/products/bundle":           `<html>no quantity here</html>`,
}

type fakeShop struct {
	*httptest.Server

	productRequests atomic.Int32
	mu              sync.Mutex
	pageRequests    []string
	productsStatus  int
}

func newFakeShop(t *testing.T, productsStatus int) *fakeShop {
	t.Helper()

	f := &fakeShop{productsStatus: productsStatus}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products.json" {
			f.productRequests.Add(1)
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			if f.productsStatus != http.StatusOK {
				http.Error(w, "blocked", f.productsStatus)
				return
			}
			w.Header().Set("ETag", `"v1"`)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, productsJSON)
			return
		}

		f.mu.Lock()
		f.pageRequests = append(f.pageRequests, r.URL.RequestURI())
		f.mu.Unlock()

		body, ok := pages[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(f.Close)
	return f
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSource(t *testing.T, shop *fakeShop, opts ...Option) (*Source, *jsonstore.Store[ETags]) {
	t.Helper()

	dir := t.TempDir()
	registry := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(registry, []byte(`{"shop:5": {"no_expand": true}}`), 0o644))

	storeOpts := []jsonstore.Option{
		jsonstore.WithCache(jsonstore.NewCache(4)),
		jsonstore.WithLogger(quietLogger()),
	}
	cat := catalog.New(
		[]catalog.Source{{Prefix: "shop", ProductURL: shop.URL + "/products/{handle}"}},
		catalog.WithRegistry(registry, storeOpts...),
		catalog.WithLogger(quietLogger()),
	)
	etags := NewETagStore(filepath.Join(dir, "etags.json"), storeOpts...)

	opts = append([]Option{
		WithETagStore(etags),
		WithWorkers(2),
		WithLogger(quietLogger()),
	}, opts...)
	return New("shopify-ca", "shop", shop.URL+"/products.json", cat, opts...), etags
}

func byKey(obs []source.Observation) map[string]source.Observation {
	out := make(map[string]source.Observation, len(obs))
	for _, o := range obs {
		out[o.Key] = o
	}
	return out
}

func TestPoll_BuildsObservations(t *testing.T) {
	t.Parallel()

	shop := newFakeShop(t, http.StatusOK)
	src, _ := newTestSource(t, shop)

	batch, err := src.Poll(context.Background())
	require.NoError(t, err)
	require.False(t, batch.NotModified)

	got := byKey(batch.Observations)
	assert.ElementsMatch(t,
		[]string{"shop:1", "shop:2", "shop:3:31", "shop:3:32", "shop:4", "shop:5"},
		keys(got),
	)
	assert.Equal(t, []string{"shop:3"}, batch.Remove)

	t.Run("page quantity confirms availability", func(t *testing.T) {
		o := got["shop:1"]
		assert.True(t, o.Available)
		assert.Equal(t, state.SetTo(250), o.InventoryQty)
		assert.Equal(t, state.SetTo("Original"), o.Title)
		assert.Equal(t, state.SetTo("59.99"), o.Price)
		assert.Equal(t, state.SetTo("original"), o.Handle)
	})

	t.Run("non-positive page quantity overrides availability", func(t *testing.T) {
		o := got["shop:2"]
		assert.False(t, o.Available)
		assert.Equal(t, state.Cleared[int](), o.InventoryQty)
	})

	t.Run("variants are expanded", func(t *testing.T) {
		small := got["shop:3:31"]
		assert.True(t, small.Available)
		assert.Equal(t, state.SetTo("Shirt - Small"), small.Title)
		assert.Equal(t, state.SetTo(7), small.InventoryQty)

		large := got["shop:3:32"]
		assert.False(t, large.Available)
		assert.Equal(t, state.Cleared[string](), large.Price)
		assert.Equal(t, state.Cleared[int](), large.InventoryQty)
	})

	t.Run("gift cards are not expanded or scraped", func(t *testing.T) {
		o := got["shop:4"]
		assert.True(t, o.Available)
		assert.Equal(t, state.SetTo("25.00"), o.Price)
		assert.Equal(t, state.Cleared[int](), o.InventoryQty)
	})

	t.Run("no_expand keeps one key", func(t *testing.T) {
		o := got["shop:5"]
		assert.True(t, o.Available, "unknown page quantity keeps the reported availability")
		assert.Equal(t, state.Cleared[int](), o.InventoryQty)
	})

	shop.mu.Lock()
	defer shop.mu.Unlock()
	assert.ElementsMatch(t,
		[]string{"/products/original", "/products/cacao", "/products/shirt?variant=31", "/products/bundle"},
		shop.pageRequests,
	)
}

func TestPoll_StaleOnlyMatchesVariantKeys(t *testing.T) {
	t.Parallel()

	shop := newFakeShop(t, http.StatusOK)
	src, _ := newTestSource(t, shop)

	batch, err := src.Poll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch.Stale)

	assert.True(t, batch.Stale("shop:9:91"))
	assert.False(t, batch.Stale("shop:9"))
}

func TestPoll_ConditionalRequest(t *testing.T) {
	t.Parallel()

	shop := newFakeShop(t, http.StatusOK)
	src, etags := newTestSource(t, shop)

	batch, err := src.Poll(context.Background())
	require.NoError(t, err)

	tags, err := etags.Read()
	require.NoError(t, err)
	assert.Empty(t, tags, "etag waits for the batch commit")

	require.NotNil(t, batch.Commit)
	require.NoError(t, batch.Commit())

	tags, err = etags.Read()
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, tags["shopify-ca"])

	batch, err = src.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, batch.NotModified)
	assert.Empty(t, batch.Observations)
	assert.Nil(t, batch.Commit)
	assert.Equal(t, int32(2), shop.productRequests.Load())
}

type cancelOnPageTransport struct {
	cancel context.CancelFunc
}

func (c cancelOnPageTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.HasPrefix(req.URL.Path, "/products/") {
		c.cancel()
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestPoll_AbortedPollRefetchesFullBody(t *testing.T) {
	t.Parallel()

	shop := newFakeShop(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	src, etags := newTestSource(t, shop, WithHTTPClientFactory(func() *http.Client {
		return &http.Client{Transport: cancelOnPageTransport{cancel: cancel}}
	}))

	_, err := src.Poll(ctx)
	require.ErrorIs(t, err, context.Canceled)

	tags, err := etags.Read()
	require.NoError(t, err)
	assert.Empty(t, tags)

	batch, err := src.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, batch.NotModified)
	assert.NotEmpty(t, batch.Observations)
}

func TestPoll_UpstreamError(t *testing.T) {
	t.Parallel()

	shop := newFakeShop(t, http.StatusForbidden)
	src, etags := newTestSource(t, shop)

	_, err := src.Poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shopify returned 403")

	tags, err := etags.Read()
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestPoll_CanceledContext(t *testing.T) {
	t.Parallel()

	shop := newFakeShop(t, http.StatusOK)
	src, _ := newTestSource(t, shop, WithRateLimiter(source.NewRateLimiter(1, 1, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Poll(ctx)
	require.Error(t, err)
	assert.Zero(t, shop.productRequests.Load())
}

func TestPoll_DailyLimit(t *testing.T) {
	t.Parallel()

	shop := newFakeShop(t, http.StatusOK)
	src, _ := newTestSource(t, shop, WithRateLimiter(source.NewRateLimiter(0, 1, 1)))

	batch, err := src.Poll(context.Background())
	require.NoError(t, err, "page quantity failures leave quantities unknown")
	assert.True(t, byKey(batch.Observations)["shop:2"].Available)

	_, err = src.Poll(context.Background())
	require.ErrorIs(t, err, source.ErrDailyLimitReached)
}

func TestParsePageQty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want *int
	}{
		{name: "conversion data", html: `gsf_conversion_data = {quantity: "12"}`, want: ptr(12)},
		{name: "negative oversold", html: `gsf_conversion_data = {a: 1, quantity : "-4"}`, want: ptr(-4)},
		{name: "inventory qty", html: `{"inventoryQty": 99}`, want: ptr(99)},
		{
			name: "conversion data preferred",
			html: `{"inventoryQty": 99} gsf_conversion_data = {quantity: "1"}`,
			want: ptr(1),
		},
		{name: "absent", html: `<html></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parsePageQty([]byte(tt.html)))
		})
	}
}

func keys(m map[string]source.Observation) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
