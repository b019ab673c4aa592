// Package main implements a mock storefront and SMS provider for local
// development. It serves a Shopify products.json with ETags, product pages
// carrying an inventory quantity, and a Twilio-compatible Messages endpoint
// that records messages instead of sending them.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

// failingNumber mirrors Twilio's magic test number that is not a mobile
// number; sends to it fail with code 21614.
const failingNumber = "+15005550009"

type variant struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Available        bool   `json:"available"`
	Price            string `json:"price"`
	RequiresShipping bool   `json:"requires_shipping"`
}

type product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	ProductType string    `json:"product_type"`
	Variants    []variant `json:"variants"`
}

type fixture struct {
	Products   []product      `json:"products"`
	Quantities map[string]int `json:"quantities"`
}

type message struct {
	SID  string    `json:"sid"`
	To   string    `json:"to"`
	From string    `json:"from"`
	Body string    `json:"body"`
	At   time.Time `json:"date_created"`
}

// storefront is the mutable catalog behind the mock endpoints.
type storefront struct {
	mu       sync.Mutex
	fx       fixture
	etag     string
	messages []message
	log      *slog.Logger
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/storefront.json", "path to storefront fixture")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fx, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "products", len(fx.Products))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock storefront", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newStorefront(fx, logger).routes()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	if fx.Quantities == nil {
		fx.Quantities = map[string]int{}
	}
	return &fx, nil
}

func newStorefront(fx *fixture, logger *slog.Logger) *storefront {
	s := &storefront{fx: *fx, log: logger}
	s.rehash()
	return s
}

func (s *storefront) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products.json", s.productsHandler)
	mux.HandleFunc("GET /products/{handle}", s.pageHandler)
	mux.HandleFunc("POST /admin/products/{handle}", s.updateHandler)
	mux.HandleFunc("POST /2010-04-01/Accounts/{sid}/Messages.json", s.sendHandler)
	mux.HandleFunc("GET /admin/messages", s.messagesHandler)
	return mux
}

// rehash recomputes the products.json ETag. Callers hold s.mu or own s.
func (s *storefront) rehash() {
	body, _ := json.Marshal(s.fx.Products) //nolint:errcheck // plain structs always marshal
	sum := sha256.Sum256(body)
	s.etag = `"` + hex.EncodeToString(sum[:8]) + `"`
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
	json.NewEncoder(w).Encode(v)
}

func (s *storefront) productsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	etag := s.etag
	products := append([]product(nil), s.fx.Products...)
	s.mu.Unlock()

	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		s.log.Info("products not modified", "etag", etag)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
	s.log.Info("products", "count", len(products), "etag", etag)
}

func (s *storefront) pageHandler(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")

	s.mu.Lock()
	var found *product
	for i := range s.fx.Products {
		if s.fx.Products[i].Handle == handle {
			found = &s.fx.Products[i]
			break
		}
	}
	qty, hasQty := s.fx.Quantities[handle]
	var title string
	if found != nil {
		title = found.Title
	}
	s.mu.Unlock()

	if found == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body><h1>%s</h1>\n", title, title)
	if hasQty {
		fmt.Fprintf(w, "<script>window.product = {\"inventoryQty\": %d};</script>\n", qty)
	}
	fmt.Fprint(w, "</body></html>\n")
}

// updateHandler changes stock for a product so restocks can be simulated:
//
//	curl -X POST 'localhost:8089/admin/products/original-powder?available=false&qty=0'
//
// available applies to every variant, or to one when variant is set.
func (s *storefront) updateHandler(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")
	q := r.URL.Query()

	var available *bool
	if v := q.Get("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "available must be a boolean"})
			return
		}
		available = &b
	}
	var variantID int64
	if v := q.Get("variant"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "variant must be an integer"})
			return
		}
		variantID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.fx.Products {
		if s.fx.Products[i].Handle == handle {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown product"})
		return
	}

	if v := q.Get("qty"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "qty must be an integer"})
			return
		}
		s.fx.Quantities[handle] = n
	}
	if available != nil {
		p := &s.fx.Products[idx]
		for i := range p.Variants {
			if variantID == 0 || p.Variants[i].ID == variantID {
				p.Variants[i].Available = *available
			}
		}
	}
	s.rehash()

	s.log.Info("updated product", "handle", handle, "etag", s.etag)
	writeJSON(w, http.StatusOK, s.fx.Products[idx])
}

func (s *storefront) sendHandler(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		s.log.Warn("message request missing Basic Auth header")
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"code":    20003,
			"message": "Authenticate",
			"status":  http.StatusUnauthorized,
		})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 21100, "message": "invalid form", "status": 400})
		return
	}

	to, body := r.PostForm.Get("To"), r.PostForm.Get("Body")
	switch {
	case to == "" || body == "":
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    21604,
			"message": "A 'To' phone number and a 'Body' are required.",
			"status":  http.StatusBadRequest,
		})
		return
	case to == failingNumber:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    21614,
			"message": fmt.Sprintf("'To' number %s is not a valid mobile number", to),
			"status":  http.StatusBadRequest,
		})
		s.log.Info("rejected message", "to", to)
		return
	}

	s.mu.Lock()
	msg := message{
		SID:  fmt.Sprintf("SM%032d", len(s.messages)+1),
		To:   to,
		From: r.PostForm.Get("From"),
		Body: body,
		At:   time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"sid":         msg.SID,
		"account_sid": r.PathValue("sid"),
		"to":          msg.To,
		"from":        msg.From,
		"body":        msg.Body,
		"status":      "queued",
	})
	s.log.Info("accepted message", "to", to, "chars", len(body))
}

func (s *storefront) messagesHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	msgs := append([]message{}, s.messages...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}
