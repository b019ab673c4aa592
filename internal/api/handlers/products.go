package handlers

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/restock-tracker/internal/state"
)

// StateReader reads the cached state document.
type StateReader interface {
	Snapshot() (state.Document, error)
	Get(key string) (state.ProductState, bool, error)
}

// ProductCatalog resolves labels, names and links for product keys.
type ProductCatalog interface {
	SourceLabel(key string) string
	DisplayName(key, fallback string) (string, bool)
	Classify(key, productType string) string
	Hidden(key string, available bool) bool
	ProductURL(key, handle string) string
}

// ProductsHandler serves the current state table.
type ProductsHandler struct {
	states  StateReader
	catalog ProductCatalog
}

// NewProductsHandler creates a new ProductsHandler.
func NewProductsHandler(s StateReader, c ProductCatalog) *ProductsHandler {
	return &ProductsHandler{states: s, catalog: c}
}

// Product is one tracked product as served by the API.
type Product struct {
	Key         string    `json:"key"          doc:"Product key (source:id[:variant])"`
	Source      string    `json:"source"       doc:"Source label"`
	Name        string    `json:"name"         doc:"Display name"`
	Category    string    `json:"category"     doc:"Product category"`
	Available   bool      `json:"available"`
	LastChecked time.Time `json:"last_checked"`
	URL         string    `json:"url,omitempty" doc:"Storefront link"`
	state.Attributes
}

// --- Input/Output types ---

// ListProductsInput is the input for listing products.
type ListProductsInput struct {
	Source        string `query:"source"         doc:"Filter by source prefix"`
	Status        string `query:"status"         doc:"Filter by availability" enum:"available,unavailable,"`
	IncludeHidden bool   `query:"include_hidden" doc:"Include products hidden by the registry"`
}

// ListProductsOutput is the response for listing products.
type ListProductsOutput struct {
	Body struct {
		Products  []Product `json:"products"`
		Total     int       `json:"total"`
		Available int       `json:"available"`
	}
}

// GetProductInput is the input for a single product.
type GetProductInput struct {
	Key string `path:"key" doc:"Product key" example:"shop:123"`
}

// GetProductOutput is the response for a single product.
type GetProductOutput struct {
	Body Product
}

// --- Handlers ---

// ListProducts returns the tracked products ordered by key.
func (h *ProductsHandler) ListProducts(
	_ context.Context,
	input *ListProductsInput,
) (*ListProductsOutput, error) {
	doc, err := h.states.Snapshot()
	if err != nil {
		return nil, huma.Error500InternalServerError("reading state failed: " + err.Error())
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := &ListProductsOutput{}
	out.Body.Products = []Product{}
	for _, k := range keys {
		ps := doc[k]
		if input.Source != "" && state.SourceOf(k) != input.Source {
			continue
		}
		switch input.Status {
		case "available":
			if !ps.Available {
				continue
			}
		case "unavailable":
			if ps.Available {
				continue
			}
		}
		if !input.IncludeHidden && h.catalog.Hidden(k, ps.Available) {
			continue
		}

		out.Body.Products = append(out.Body.Products, h.product(k, ps))
		if ps.Available {
			out.Body.Available++
		}
	}
	out.Body.Total = len(out.Body.Products)
	return out, nil
}

// GetProduct returns one product by key.
func (h *ProductsHandler) GetProduct(
	_ context.Context,
	input *GetProductInput,
) (*GetProductOutput, error) {
	ps, ok, err := h.states.Get(input.Key)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading state failed: " + err.Error())
	}
	if !ok {
		return nil, huma.Error404NotFound("product not found")
	}
	return &GetProductOutput{Body: h.product(input.Key, ps)}, nil
}

func (h *ProductsHandler) product(key string, ps state.ProductState) Product {
	var productType, handle string
	if ps.ProductType != nil {
		productType = *ps.ProductType
	}
	if ps.Handle != nil {
		handle = *ps.Handle
	}
	name, _ := h.catalog.DisplayName(key, ps.TitleOr(key))

	return Product{
		Key:         key,
		Source:      h.catalog.SourceLabel(key),
		Name:        name,
		Category:    h.catalog.Classify(key, productType),
		Available:   ps.Available,
		LastChecked: ps.LastChecked,
		URL:         h.catalog.ProductURL(key, handle),
		Attributes:  ps.Attributes,
	}
}

// RegisterProductRoutes registers product endpoints with the Huma API.
func RegisterProductRoutes(api huma.API, h *ProductsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/api/v1/products",
		Summary:     "List tracked products",
		Description: "Returns the state table with optional source and availability filters.",
		Tags:        []string{"products"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListProducts)

	huma.Register(api, huma.Operation{
		OperationID: "get-product",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{key}",
		Summary:     "Get product",
		Description: "Returns the current state of one product.",
		Tags:        []string{"products"},
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.GetProduct)
}
