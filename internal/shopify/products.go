package shopify

import (
	"context"
	"strings"

	apperrors "github.com/suivie/storefront/pkg/errors"
)

const (
	listProductsQuery = `query ListProducts {
  products(first: 24, sortKey: UPDATED_AT, reverse: true) {
    nodes {
      id
      title
      handle
      description
      featuredImage { url altText }
      priceRange { minVariantPrice { amount currencyCode } }
      variants(first: 1) { nodes { id } }
    }
  }
}`

	productByHandleQuery = `query ProductByHandle($handle: String!) {
  product(handle: $handle) {
    id
    title
    handle
    descriptionHtml
    featuredImage { url altText }
    images(first: 8) { nodes { url altText } }
    priceRange { minVariantPrice { amount currencyCode } }
    variants(first: 20) { nodes { id title availableForSale } }
  }
}`
)

// Search result limits: a blank term browses, a real term filters.
const (
	browseLimit = 10
	searchLimit = 20
)

// ListProducts returns the 24 most recently updated products.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var data struct {
		Products *struct {
			Nodes []rawProduct `json:"nodes"`
		} `json:"products"`
	}
	if err := c.query(ctx, "ListProducts", listProductsQuery, nil, &data); err != nil {
		return nil, err
	}

	out := []Product{}
	if data.Products == nil {
		return out, nil
	}
	for i := range data.Products.Nodes {
		out = append(out, data.Products.Nodes[i].product())
	}
	return out, nil
}

// GetProduct returns the product with the given handle.
func (c *Client) GetProduct(ctx context.Context, handle string) (*Product, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, apperrors.InvalidInput("product handle is required")
	}

	var data struct {
		Product *rawProduct `json:"product"`
	}
	if err := c.query(ctx, "ProductByHandle", productByHandleQuery, map[string]any{"handle": handle}, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, apperrors.NotFound("product", handle)
	}
	p := data.Product.product()
	return &p, nil
}

// SearchProducts filters the product list by a case-insensitive substring of
// the title or handle. A blank term returns the first products unfiltered.
func (c *Client) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	products, err := c.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return FilterProducts(products, term), nil
}

// FilterProducts applies the search rules of SearchProducts to products.
func FilterProducts(products []Product, term string) []Product {
	q := strings.ToLower(strings.TrimSpace(term))
	if q == "" {
		if len(products) > browseLimit {
			products = products[:browseLimit]
		}
		return products
	}

	out := []Product{}
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Handle), q) {
			out = append(out, p)
			if len(out) == searchLimit {
				break
			}
		}
	}
	return out
}
