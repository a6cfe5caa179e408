package service

import (
	"context"
	"log/slog"

	"github.com/suivie/storefront/internal/domain"
	"github.com/suivie/storefront/internal/shopify"
	apperrors "github.com/suivie/storefront/pkg/errors"
	"github.com/suivie/storefront/pkg/logger"
)

// CheckoutGateway is the external checkout and shipping API.
// *shopify.Client satisfies it.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, lines []domain.CheckoutLine) (string, error)
	QuoteShipping(ctx context.Context, postalCode string, lines []domain.CheckoutLine) ([]shopify.ShippingOption, error)
}

// Cart is the part of *cart.Store the checkout flow reads and clears.
type Cart interface {
	LinesForCheckout(ctx context.Context) []domain.CheckoutLine
	Clear(ctx context.Context)
}

// CheckoutService hands a cart over to the external checkout and asks it
// for shipping quotes. The cart itself never talks to the gateway.
type CheckoutService struct {
	gateway         CheckoutGateway
	logger          *slog.Logger
	clearOnCheckout bool
}

// NewCheckoutService creates a checkout service. With clearOnCheckout the
// cart is emptied once a checkout URL has been obtained; otherwise the lines
// stay until the shopper removes them.
func NewCheckoutService(gateway CheckoutGateway, logger *slog.Logger, clearOnCheckout bool) *CheckoutService {
	return &CheckoutService{
		gateway:         gateway,
		logger:          logger,
		clearOnCheckout: clearOnCheckout,
	}
}

// Checkout creates an external checkout for the cart's lines and returns the
// URL to redirect the shopper to.
func (s *CheckoutService) Checkout(ctx context.Context, cart Cart) (string, error) {
	lines := cart.LinesForCheckout(ctx)
	if len(lines) == 0 {
		return "", apperrors.InvalidInput("cart is empty")
	}

	url, err := s.gateway.CreateCheckout(ctx, lines)
	if err != nil {
		return "", err
	}

	if s.clearOnCheckout {
		cart.Clear(ctx)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "checkout created",
		slog.Int("lines", len(lines)),
		slog.Bool("cart_cleared", s.clearOnCheckout),
	)
	return url, nil
}

// QuoteShipping returns the delivery options for the cart's lines shipped to
// postalCode. Non-digits in postalCode are ignored.
func (s *CheckoutService) QuoteShipping(ctx context.Context, cart Cart, postalCode string) ([]shopify.ShippingOption, error) {
	postalCode = shopify.NormalizePostalCode(postalCode)
	if !shopify.ValidPostalCode(postalCode) {
		return nil, apperrors.InvalidInput("postalCode (CEP) must be exactly 8 digits")
	}
	lines := cart.LinesForCheckout(ctx)
	if len(lines) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}
	return s.gateway.QuoteShipping(ctx, postalCode, lines)
}
