// Package shopify polls a Shopify storefront's public products.json.
//
// Multi-variant products are tracked per variant. Because products.json
// reports "available" even when inventory is not managed, available physical
// products are cross-checked against the quantity embedded in their product
// page; a non-positive page quantity marks the product unavailable.
package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
	"github.com/donaldgifford/restock-tracker/internal/metrics"
	"github.com/donaldgifford/restock-tracker/internal/source"
	"github.com/donaldgifford/restock-tracker/internal/state"
)

const (
	// DefaultWorkers is the size of the page quantity worker pool.
	DefaultWorkers = 4

	giftCardType        = "Gift Card"
	defaultVariantTitle = "Default Title"

	maxProductsBytes = 32 << 20
	maxPageBytes     = 4 << 20
)

var (
	conversionQty = regexp.MustCompile(`gsf_conversion_data\b.*?quantity\s*:\s*"(-?\d+)"`)
	inventoryQty  = regexp.MustCompile(`"inventoryQty":\s*(\d+)`)
)

// Catalog is the subset of the product catalog the connector needs.
type Catalog interface {
	NoExpand(key string) bool
	ProductURL(key, handle string) string
}

// ETags maps a source name to the last ETag returned for its products.json.
type ETags map[string]string

// NewETagStore opens the ETag document at path.
func NewETagStore(path string, opts ...jsonstore.Option) *jsonstore.Store[ETags] {
	return jsonstore.New(path, func() ETags { return ETags{} }, opts...)
}

// Source is a Shopify products.json connector.
type Source struct {
	name        string
	prefix      string
	productsURL string
	catalog     Catalog

	etags     *jsonstore.Store[ETags]
	limiter   *source.RateLimiter
	workers   int
	timeout   time.Duration
	userAgent string
	newClient func() *http.Client
	log       *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithETagStore enables conditional requests backed by the given store.
func WithETagStore(s *jsonstore.Store[ETags]) Option {
	return func(src *Source) {
		src.etags = s
	}
}

// WithRateLimiter paces every upstream request.
func WithRateLimiter(r *source.RateLimiter) Option {
	return func(s *Source) {
		s.limiter = r
	}
}

// WithWorkers sets the page quantity worker pool size.
func WithWorkers(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP clients.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Source) {
		s.userAgent = ua
	}
}

// WithHTTPClientFactory overrides how clients are built. The factory is
// called once per poll and once per quantity worker.
func WithHTTPClientFactory(f func() *http.Client) Option {
	return func(s *Source) {
		s.newClient = f
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		s.log = l
	}
}

// New creates a connector for the storefront products.json at productsURL.
// Keys are built as prefix:product[:variant].
func New(name, prefix, productsURL string, cat Catalog, opts ...Option) *Source {
	s := &Source{
		name:        name,
		prefix:      prefix,
		productsURL: productsURL,
		catalog:     cat,
		workers:     DefaultWorkers,
		timeout:     20 * time.Second,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newClient == nil {
		timeout := s.timeout
		s.newClient = func() *http.Client { return &http.Client{Timeout: timeout} }
	}
	return s
}

// Name implements source.Source.
func (s *Source) Name() string { return s.name }

// Prefix implements source.Source.
func (s *Source) Prefix() string { return s.prefix }

type productsResponse struct {
	Products []product `json:"products"`
}

type product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	ProductType string    `json:"product_type"`
	Variants    []variant `json:"variants"`
}

type variant struct {
	ID               int64        `json:"id"`
	Title            string       `json:"title"`
	Available        bool         `json:"available"`
	Price            *json.Number `json:"price"`
	RequiresShipping *bool        `json:"requires_shipping"`
}

func (v *variant) named() bool {
	return v.Title != "" && v.Title != defaultVariantTitle
}

func (v *variant) physical() bool {
	return v.RequiresShipping == nil || *v.RequiresShipping
}

type qtyTask struct {
	index int
	url   string
}

// Poll implements source.Source.
func (s *Source) Poll(ctx context.Context) (*source.Batch, error) {
	products, tag, notModified, err := s.fetchProducts(ctx)
	if err != nil {
		return nil, err
	}
	if notModified {
		s.log.Info("products not modified", "source", s.name)
		return &source.Batch{NotModified: true}, nil
	}
	s.log.Info("fetched products", "source", s.name, "products", len(products))

	var (
		obs    []source.Observation
		tasks  []qtyTask
		remove []string
	)
	for i := range products {
		p := &products[i]
		parentKey := state.Key(s.prefix, strconv.FormatInt(p.ID, 10))

		if s.expand(parentKey, p) {
			remove = append(remove, parentKey)
			for j := range p.Variants {
				v := &p.Variants[j]
				key := state.Key(s.prefix, strconv.FormatInt(p.ID, 10), strconv.FormatInt(v.ID, 10))
				if v.Available {
					tasks = s.addTask(tasks, len(obs), key, p.Handle)
				}
				obs = append(obs, observation(key, p.Title+" - "+v.Title, p, v.Available, v.Price))
			}
			continue
		}

		if len(p.Variants) == 0 {
			continue
		}

		available, physical := false, false
		for j := range p.Variants {
			available = available || p.Variants[j].Available
			physical = physical || p.Variants[j].physical()
		}
		if available && physical {
			tasks = s.addTask(tasks, len(obs), parentKey, p.Handle)
		}
		obs = append(obs, observation(parentKey, p.Title, p, available, p.Variants[0].Price))
	}

	quantities, err := s.fetchQuantities(ctx, tasks)
	if err != nil {
		return nil, err
	}
	for i, t := range tasks {
		qty := quantities[i]
		if qty == nil {
			continue
		}
		o := &obs[t.index]
		if *qty > 0 {
			o.InventoryQty = state.SetTo(*qty)
			continue
		}
		s.log.Info("page quantity overrides availability",
			"source", s.name,
			"product", o.Key,
			"quantity", *qty,
		)
		o.Available = false
	}

	batch := &source.Batch{
		Observations: obs,
		Remove:       remove,
		Stale:        isVariantKey,
	}
	if tag != "" {
		batch.Commit = func() error { return s.saveETag(tag) }
	}
	return batch, nil
}

// expand reports whether p is tracked per variant.
func (s *Source) expand(parentKey string, p *product) bool {
	if len(p.Variants) < 2 || p.ProductType == giftCardType {
		return false
	}
	named := false
	for i := range p.Variants {
		if p.Variants[i].named() {
			named = true
			break
		}
	}
	return named && !s.catalog.NoExpand(parentKey)
}

func (s *Source) addTask(tasks []qtyTask, index int, key, handle string) []qtyTask {
	u := s.catalog.ProductURL(key, handle)
	if u == "" {
		return tasks
	}
	return append(tasks, qtyTask{index: index, url: u})
}

func observation(key, title string, p *product, available bool, price *json.Number) source.Observation {
	var pp *string
	if price != nil {
		v := price.String()
		pp = &v
	}
	return source.Observation{
		Key:       key,
		Available: available,
		Extras: state.Extras{
			Title:        state.SetTo(title),
			Handle:       state.SetTo(p.Handle),
			ProductType:  state.SetTo(p.ProductType),
			Price:        state.FromPtr(pp),
			InventoryQty: state.Cleared[int](),
		},
	}
}

func isVariantKey(key string) bool {
	_, _, v := state.SplitKey(key)
	return v != ""
}

// fetchProducts returns the parsed products and the response ETag when it
// differs from the stored one. The ETag is not saved here.
func (s *Source) fetchProducts(ctx context.Context) ([]product, string, bool, error) {
	etag := s.storedETag()

	hdr := http.Header{}
	if etag != "" {
		hdr.Set("If-None-Match", etag)
	}

	client := s.newClient()
	defer client.CloseIdleConnections()

	resp, err := s.get(ctx, client, "products", s.productsURL, hdr)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, "", true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProductsBytes))
	if err != nil {
		return nil, "", false, fmt.Errorf("reading products response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", false, fmt.Errorf("shopify returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var pr productsResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, "", false, fmt.Errorf("parsing products response: %w", err)
	}

	tag := resp.Header.Get("ETag")
	if tag == etag {
		tag = ""
	}
	return pr.Products, tag, false, nil
}

// fetchQuantities scrapes page quantities with a bounded pool. Each worker
// owns its own client. Individual failures leave the quantity unknown; only
// cancellation aborts the poll.
func (s *Source) fetchQuantities(ctx context.Context, tasks []qtyTask) ([]*int, error) {
	out := make([]*int, len(tasks))
	if len(tasks) == 0 {
		return out, nil
	}
	s.log.Debug("fetching page quantities", "source", s.name, "pages", len(tasks), "workers", s.workers)

	queue := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for i := range tasks {
			select {
			case queue <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range min(s.workers, len(tasks)) {
		g.Go(func() error {
			client := s.newClient()
			defer client.CloseIdleConnections()

			for i := range queue {
				qty, err := s.pageQuantity(gctx, client, tasks[i].url)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					s.log.Warn("failed to fetch page quantity", "source", s.name, "url", tasks[i].url, "error", err)
					continue
				}
				out[i] = qty
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching page quantities: %w", err)
	}
	return out, nil
}

func (s *Source) pageQuantity(ctx context.Context, client *http.Client, u string) (*int, error) {
	resp, err := s.get(ctx, client, "page", u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("product page returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading product page: %w", err)
	}
	return parsePageQty(body), nil
}

// parsePageQty extracts the inventory quantity from a product page. The
// conversion data block is preferred; it can be negative when oversold.
func parsePageQty(html []byte) *int {
	for _, re := range []*regexp.Regexp{conversionQty, inventoryQty} {
		m := re.FindSubmatch(html)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		return &n
	}
	return nil
}

func (s *Source) get(
	ctx context.Context,
	client *http.Client,
	kind, u string,
	hdr http.Header,
) (*http.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if errors.Is(err, source.ErrDailyLimitReached) {
				metrics.SourceDailyLimitHits.WithLabelValues(s.name).Inc()
			}
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", kind, err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(s.name, kind, "error").Inc()
		return nil, fmt.Errorf("executing %s request: %w", kind, err)
	}
	metrics.SourceRequestsTotal.WithLabelValues(s.name, kind, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

func (s *Source) storedETag() string {
	if s.etags == nil {
		return ""
	}
	tags, err := s.etags.Snapshot()
	if err != nil {
		s.log.Warn("failed to read etags", "source", s.name, "error", err)
		return ""
	}
	return tags[s.name]
}

func (s *Source) saveETag(tag string) error {
	if s.etags == nil {
		return nil
	}
	err := s.etags.Update(func(tags *ETags) error {
		if *tags == nil {
			*tags = ETags{}
		}
		(*tags)[s.name] = tag
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving etag for %s: %w", s.name, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
