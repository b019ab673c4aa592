package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/donaldgifford/restock-tracker/internal/api/handlers"
)

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	Source        string
	Status        string
	IncludeHidden bool
}

// ProductList is the response of ListProducts.
type ProductList struct {
	Products  []handlers.Product `json:"products"`
	Total     int                `json:"total"`
	Available int                `json:"available"`
}

// ListProducts returns the tracked products.
func (c *Client) ListProducts(ctx context.Context, f ProductFilter) (*ProductList, error) {
	q := url.Values{}
	if f.Source != "" {
		q.Set("source", f.Source)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.IncludeHidden {
		q.Set("include_hidden", strconv.FormatBool(true))
	}

	var out ProductList
	if err := c.get(ctx, "/api/v1/products", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct returns one product by key.
func (c *Client) GetProduct(ctx context.Context, key string) (*handlers.Product, error) {
	var out handlers.Product
	if err := c.get(ctx, "/api/v1/products/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
