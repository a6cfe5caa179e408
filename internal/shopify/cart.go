package shopify

import (
	"context"
	"regexp"

	"github.com/suivie/storefront/internal/domain"
	apperrors "github.com/suivie/storefront/pkg/errors"
)

// ShippingCountry is the only country shipping is quoted for.
const ShippingCountry = "BR"

var (
	cepPattern = regexp.MustCompile(`^[0-9]{8}$`)
	nonDigits  = regexp.MustCompile(`[^0-9]`)
)

const (
	cartCreateMutation = `mutation CartCreate($lines: [CartLineInput!]) {
  cartCreate(input: { lines: $lines }) {
    cart { id checkoutUrl }
    userErrors { field message }
  }
}`

	buyerIdentityMutation = `mutation CartBuyerIdentityUpdate($cartId: ID!, $buyerIdentity: CartBuyerIdentityInput!) {
  cartBuyerIdentityUpdate(cartId: $cartId, buyerIdentity: $buyerIdentity) {
    cart { id }
    userErrors { field message }
  }
}`

	deliveryAddressMutation = `mutation CartDeliveryAddressUpdate($cartId: ID!, $deliveryAddress: MailingAddressInput!) {
  cartDeliveryAddressUpdate(cartId: $cartId, deliveryAddress: $deliveryAddress) {
    cart {
      id
      deliveryGroups(first: 10) {
        edges {
          node {
            deliveryOptions {
              handle
              title
              estimatedCost { amount currencyCode }
            }
          }
        }
      }
    }
    userErrors { field message }
  }
}`
)

// ValidPostalCode reports whether code is a CEP of exactly 8 digits.
func ValidPostalCode(code string) bool {
	return cepPattern.MatchString(code)
}

// NormalizePostalCode strips everything but digits, so "01310-100" and
// "01310 100" both read as "01310100".
func NormalizePostalCode(code string) string {
	return nonDigits.ReplaceAllString(code, "")
}

type createdCart struct {
	ID          string
	CheckoutURL string
}

func (c *Client) createCart(ctx context.Context, lines []domain.CheckoutLine) (createdCart, error) {
	var data struct {
		CartCreate *struct {
			Cart *struct {
				ID          *string `json:"id"`
				CheckoutURL *string `json:"checkoutUrl"`
			} `json:"cart"`
			UserErrors []rawUserError `json:"userErrors"`
		} `json:"cartCreate"`
	}
	if err := c.query(ctx, "CartCreate", cartCreateMutation, map[string]any{"lines": lines}, &data); err != nil {
		return createdCart{}, err
	}

	if data.CartCreate == nil || data.CartCreate.Cart == nil || str(data.CartCreate.Cart.ID) == "" {
		msg := "cart create returned no cart"
		if data.CartCreate != nil {
			if ue := userErrorMessages(data.CartCreate.UserErrors); ue != "" {
				msg += ": " + ue
			}
		}
		return createdCart{}, apperrors.Upstream(serviceName, msg)
	}
	return createdCart{
		ID:          str(data.CartCreate.Cart.ID),
		CheckoutURL: str(data.CartCreate.Cart.CheckoutURL),
	}, nil
}

// CreateCheckout creates a Shopify cart holding lines and returns its
// checkout URL.
func (c *Client) CreateCheckout(ctx context.Context, lines []domain.CheckoutLine) (string, error) {
	if len(lines) == 0 {
		return "", apperrors.InvalidInput("no lines to check out")
	}
	cart, err := c.createCart(ctx, lines)
	if err != nil {
		return "", err
	}
	if cart.CheckoutURL == "" {
		return "", apperrors.Upstream(serviceName, "cart create returned no checkout url")
	}
	return cart.CheckoutURL, nil
}

// QuoteShipping returns the delivery options Shopify offers for lines
// shipped to postalCode in Brazil. Options without a handle or title are
// skipped; a missing cost reads as 0 BRL.
func (c *Client) QuoteShipping(ctx context.Context, postalCode string, lines []domain.CheckoutLine) ([]ShippingOption, error) {
	postalCode = NormalizePostalCode(postalCode)
	if !ValidPostalCode(postalCode) {
		return nil, apperrors.InvalidInput("postalCode (CEP) must be exactly 8 digits")
	}
	if len(lines) == 0 {
		return nil, apperrors.InvalidInput("no lines to quote shipping for")
	}

	cart, err := c.createCart(ctx, lines)
	if err != nil {
		return nil, err
	}

	var buyer struct{}
	if err := c.query(ctx, "CartBuyerIdentityUpdate", buyerIdentityMutation, map[string]any{
		"cartId":        cart.ID,
		"buyerIdentity": map[string]any{"countryCode": ShippingCountry},
	}, &buyer); err != nil {
		return nil, err
	}

	var data struct {
		Update *struct {
			Cart *struct {
				DeliveryGroups *struct {
					Edges []struct {
						Node *struct {
							DeliveryOptions []rawDeliveryOption `json:"deliveryOptions"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"deliveryGroups"`
			} `json:"cart"`
			UserErrors []rawUserError `json:"userErrors"`
		} `json:"cartDeliveryAddressUpdate"`
	}
	if err := c.query(ctx, "CartDeliveryAddressUpdate", deliveryAddressMutation, map[string]any{
		"cartId": cart.ID,
		"deliveryAddress": map[string]any{
			"countryCode": ShippingCountry,
			"postalCode":  postalCode,
		},
	}, &data); err != nil {
		return nil, err
	}
	if data.Update == nil || data.Update.Cart == nil {
		msg := "delivery address update returned no cart"
		if data.Update != nil {
			if ue := userErrorMessages(data.Update.UserErrors); ue != "" {
				msg += ": " + ue
			}
		}
		return nil, apperrors.Upstream(serviceName, msg)
	}

	options := []ShippingOption{}
	if groups := data.Update.Cart.DeliveryGroups; groups != nil {
		for _, edge := range groups.Edges {
			if edge.Node == nil {
				continue
			}
			for i := range edge.Node.DeliveryOptions {
				if opt, ok := edge.Node.DeliveryOptions[i].option(); ok {
					options = append(options, opt)
				}
			}
		}
	}
	return options, nil
}
