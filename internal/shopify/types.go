package shopify

import (
	"github.com/shopspring/decimal"

	"github.com/suivie/storefront/internal/domain"
)

// Image is a product image.
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
}

// Variant is a purchasable unit of a product; its ID is the merchandise id
// used by the cart.
type Variant struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	AvailableForSale bool   `json:"availableForSale"`
}

// Product is a catalog entry. List results carry Description and at most one
// variant; GetProduct results carry DescriptionHTML, Images and up to 20
// variants.
type Product struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Handle          string       `json:"handle"`
	Description     string       `json:"description,omitempty"`
	DescriptionHTML string       `json:"descriptionHtml,omitempty"`
	FeaturedImage   *Image       `json:"featuredImage,omitempty"`
	Images          []Image      `json:"images,omitempty"`
	Price           domain.Money `json:"price"`
	Variants        []Variant    `json:"variants"`
}

// DefaultVariantID returns the first variant available for sale, falling
// back to the first variant. It is empty when the product has no variants.
func (p Product) DefaultVariantID() string {
	for _, v := range p.Variants {
		if v.AvailableForSale {
			return v.ID
		}
	}
	if len(p.Variants) > 0 {
		return p.Variants[0].ID
	}
	return ""
}

// ShippingOption is one delivery option quoted for a cart.
type ShippingOption struct {
	Handle       string          `json:"handle"`
	Title        string          `json:"title"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// Wire shapes. Every field the API may omit or null is a pointer and is
// resolved by the normalize functions below.

type rawMoney struct {
	Amount       *string `json:"amount"`
	CurrencyCode *string `json:"currencyCode"`
}

type rawImage struct {
	URL     *string `json:"url"`
	AltText *string `json:"altText"`
}

type rawVariant struct {
	ID               *string `json:"id"`
	Title            *string `json:"title"`
	AvailableForSale *bool   `json:"availableForSale"`
}

type rawProduct struct {
	ID              *string   `json:"id"`
	Title           *string   `json:"title"`
	Handle          *string   `json:"handle"`
	Description     *string   `json:"description"`
	DescriptionHTML *string   `json:"descriptionHtml"`
	FeaturedImage   *rawImage `json:"featuredImage"`
	Images          *struct {
		Nodes []rawImage `json:"nodes"`
	} `json:"images"`
	PriceRange *struct {
		MinVariantPrice *rawMoney `json:"minVariantPrice"`
	} `json:"priceRange"`
	Variants *struct {
		Nodes []rawVariant `json:"nodes"`
	} `json:"variants"`
}

type rawDeliveryOption struct {
	Handle        *string   `json:"handle"`
	Title         *string   `json:"title"`
	EstimatedCost *rawMoney `json:"estimatedCost"`
}

type rawUserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// money defaults a missing or unparsable amount to 0 and a missing currency
// to BRL.
func (m *rawMoney) money() domain.Money {
	out := domain.Money{Amount: decimal.Zero, CurrencyCode: domain.DefaultCurrency}
	if m == nil {
		return out
	}
	if m.Amount != nil {
		if d, err := decimal.NewFromString(*m.Amount); err == nil {
			out.Amount = d
		}
	}
	if c := str(m.CurrencyCode); c != "" {
		out.CurrencyCode = c
	}
	return out
}

func (i *rawImage) image() *Image {
	if i == nil || str(i.URL) == "" {
		return nil
	}
	return &Image{URL: str(i.URL), AltText: str(i.AltText)}
}

func (p *rawProduct) product() Product {
	out := Product{
		ID:              str(p.ID),
		Title:           str(p.Title),
		Handle:          str(p.Handle),
		Description:     str(p.Description),
		DescriptionHTML: str(p.DescriptionHTML),
		FeaturedImage:   p.FeaturedImage.image(),
		Variants:        []Variant{},
	}

	var price *rawMoney
	if p.PriceRange != nil {
		price = p.PriceRange.MinVariantPrice
	}
	out.Price = price.money()

	if p.Images != nil {
		for i := range p.Images.Nodes {
			if img := p.Images.Nodes[i].image(); img != nil {
				out.Images = append(out.Images, *img)
			}
		}
	}
	if p.Variants != nil {
		for _, v := range p.Variants.Nodes {
			if str(v.ID) == "" {
				continue
			}
			// List queries do not select availability.
			out.Variants = append(out.Variants, Variant{
				ID:               str(v.ID),
				Title:            str(v.Title),
				AvailableForSale: v.AvailableForSale == nil || *v.AvailableForSale,
			})
		}
	}
	return out
}

// option drops options missing a handle or a title.
func (o *rawDeliveryOption) option() (ShippingOption, bool) {
	handle, title := str(o.Handle), str(o.Title)
	if handle == "" || title == "" {
		return ShippingOption{}, false
	}
	cost := o.EstimatedCost.money()
	return ShippingOption{
		Handle:       handle,
		Title:        title,
		Amount:       cost.Amount,
		CurrencyCode: cost.CurrencyCode,
	}, true
}

func userErrorMessages(errs []rawUserError) string {
	if len(errs) == 0 {
		return ""
	}
	msg := errs[0].Message
	for _, e := range errs[1:] {
		msg += "; " + e.Message
	}
	return msg
}
