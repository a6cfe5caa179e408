package shopify

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/suivie/storefront/pkg/errors"
)

const listResponse = `{"data":{"products":{"nodes":[
  {
    "id":"gid://shopify/Product/1","title":"Geleia de Jabuticaba","handle":"geleia-de-jabuticaba",
    "description":"Artesanal",
    "featuredImage":{"url":"https://cdn.example.com/g.jpg","altText":null},
    "priceRange":{"minVariantPrice":{"amount":"29.9","currencyCode":"BRL"}},
    "variants":{"nodes":[{"id":"gid://shopify/ProductVariant/11"}]}
  },
  {
    "id":"gid://shopify/Product/2","title":"Licor","handle":"licor",
    "description":null,"featuredImage":null,
    "priceRange":null,
    "variants":{"nodes":[]}
  }
]}}}`

func TestListProducts(t *testing.T) {
	c, shop := newTestClient(t, map[string]string{"ListProducts": listResponse})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, []string{"ListProducts"}, shop.operations())

	p := products[0]
	assert.Equal(t, "gid://shopify/Product/1", p.ID)
	assert.Equal(t, "Geleia de Jabuticaba", p.Title)
	assert.Equal(t, "geleia-de-jabuticaba", p.Handle)
	assert.Equal(t, "Artesanal", p.Description)
	require.NotNil(t, p.FeaturedImage)
	assert.Equal(t, "https://cdn.example.com/g.jpg", p.FeaturedImage.URL)
	assert.Empty(t, p.FeaturedImage.AltText)
	assert.True(t, decimal.RequireFromString("29.9").Equal(p.Price.Amount))
	assert.Equal(t, "BRL", p.Price.CurrencyCode)
	assert.Equal(t, "gid://shopify/ProductVariant/11", p.DefaultVariantID())

	// Missing optional fields fall back to their defaults.
	q := products[1]
	assert.Empty(t, q.Description)
	assert.Nil(t, q.FeaturedImage)
	assert.True(t, q.Price.Amount.IsZero())
	assert.Equal(t, "BRL", q.Price.CurrencyCode)
	assert.Empty(t, q.Variants)
	assert.Empty(t, q.DefaultVariantID())
}

func TestListProducts_NullProducts(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"ListProducts": `{"data":{"products":null}}`})

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestGetProduct(t *testing.T) {
	c, shop := newTestClient(t, map[string]string{"ProductByHandle": `{"data":{"product":{
	  "id":"gid://shopify/Product/1","title":"Geleia","handle":"geleia",
	  "descriptionHtml":"<p>Artesanal</p>",
	  "featuredImage":{"url":"https://cdn.example.com/1.jpg","altText":"Pote"},
	  "images":{"nodes":[{"url":"https://cdn.example.com/1.jpg","altText":"Pote"},{"url":null},{"url":"https://cdn.example.com/2.jpg"}]},
	  "priceRange":{"minVariantPrice":{"amount":"19.90","currencyCode":null}},
	  "variants":{"nodes":[
	    {"id":"gid://shopify/ProductVariant/1","title":"250g","availableForSale":false},
	    {"id":"gid://shopify/ProductVariant/2","title":"500g","availableForSale":true}
	  ]}
	}}}`})

	p, err := c.GetProduct(context.Background(), "geleia")
	require.NoError(t, err)

	assert.Equal(t, "<p>Artesanal</p>", p.DescriptionHTML)
	require.Len(t, p.Images, 2)
	assert.Equal(t, "Pote", p.Images[0].AltText)
	assert.Equal(t, "https://cdn.example.com/2.jpg", p.Images[1].URL)
	assert.Equal(t, "BRL", p.Price.CurrencyCode)
	require.Len(t, p.Variants, 2)
	assert.False(t, p.Variants[0].AvailableForSale)
	assert.Equal(t, "gid://shopify/ProductVariant/2", p.DefaultVariantID())

	require.Len(t, shop.calls, 1)
	assert.Equal(t, "geleia", shop.calls[0].Variables["handle"])
}

func TestGetProduct_NotFound(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"ProductByHandle": `{"data":{"product":null}}`})

	_, err := c.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetProduct_BlankHandle(t *testing.T) {
	c, shop := newTestClient(t, nil)

	_, err := c.GetProduct(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, shop.operations())
}

func TestSearchProducts(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"ListProducts": listResponse})

	got, err := c.SearchProducts(context.Background(), "  JABUTI ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "geleia-de-jabuticaba", got[0].Handle)
}

func TestFilterProducts(t *testing.T) {
	var products []Product
	for i := 0; i < 30; i++ {
		products = append(products, Product{Title: fmt.Sprintf("Geleia %d", i), Handle: fmt.Sprintf("geleia-%d", i)})
	}
	products = append(products, Product{Title: "Licor", Handle: "licor-de-jabuticaba"})

	assert.Len(t, FilterProducts(products, ""), 10, "blank term browses the first 10")
	assert.Len(t, FilterProducts(products, "geleia"), 20, "matches are capped at 20")

	byHandle := FilterProducts(products, "jabuticaba")
	require.Len(t, byHandle, 1)
	assert.Equal(t, "Licor", byHandle[0].Title)

	assert.Empty(t, FilterProducts(products, "cachaça"))
}
