package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/suivie/storefront/internal/cart"
	"github.com/suivie/storefront/internal/domain"
	"github.com/suivie/storefront/internal/event"
	"github.com/suivie/storefront/internal/repository"
	"github.com/suivie/storefront/internal/repository/memory"
	"github.com/suivie/storefront/internal/shopify"
	apperrors "github.com/suivie/storefront/pkg/errors"
	"github.com/suivie/storefront/pkg/logger"
)

// ============================================================================
// Mock gateway
// ============================================================================

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, lines []domain.CheckoutLine) (string, error) {
	args := m.Called(ctx, lines)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) QuoteShipping(ctx context.Context, postalCode string, lines []domain.CheckoutLine) ([]shopify.ShippingOption, error) {
	args := m.Called(ctx, postalCode, lines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shopify.ShippingOption), args.Error(1)
}

// ============================================================================
// Helpers
// ============================================================================

func newStore(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.NewStore(memory.NewSlots().Repository(repository.DefaultKey), event.NewBus(), logger.Discard())
	t.Cleanup(s.Close)
	return s
}

func filledStore(t *testing.T) *cart.Store {
	t.Helper()
	s := newStore(t)
	s.AddItem(context.Background(), domain.NewLine{
		MerchandiseID: "v1",
		Title:         "Geleia",
		UnitPrice:     domain.Money{Amount: decimal.NewFromInt(10), CurrencyCode: "BRL"},
	}, 2)
	return s
}

var wantLines = []domain.CheckoutLine{{MerchandiseID: "v1", Quantity: 2}}

// ============================================================================
// Checkout
// ============================================================================

func TestCheckout_Success_KeepsCart(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, wantLines).Return("https://shop.example/c/1", nil)
	svc := NewCheckoutService(gw, logger.Discard(), false)
	store := filledStore(t)

	url, err := svc.Checkout(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/c/1", url)
	assert.Equal(t, 2, store.Count(context.Background()), "cart is left as is by default")
	gw.AssertExpectations(t)
}

func TestCheckout_ClearOnCheckout(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, wantLines).Return("https://shop.example/c/1", nil)
	svc := NewCheckoutService(gw, logger.Discard(), true)
	store := filledStore(t)

	_, err := svc.Checkout(context.Background(), store)
	require.NoError(t, err)
	assert.Empty(t, store.Items(context.Background()))
}

func TestCheckout_GatewayErrorKeepsCart(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, wantLines).Return("", apperrors.Upstream("shopify", "boom"))
	svc := NewCheckoutService(gw, logger.Discard(), true)
	store := filledStore(t)

	_, err := svc.Checkout(context.Background(), store)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Equal(t, 2, store.Count(context.Background()))
}

func TestCheckout_EmptyCart(t *testing.T) {
	gw := new(mockGateway)
	svc := NewCheckoutService(gw, logger.Discard(), false)

	_, err := svc.Checkout(context.Background(), newStore(t))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	gw.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything)
}

// ============================================================================
// QuoteShipping
// ============================================================================

func TestQuoteShipping_Success(t *testing.T) {
	options := []shopify.ShippingOption{{Handle: "pac", Title: "PAC", Amount: decimal.NewFromInt(20), CurrencyCode: "BRL"}}
	gw := new(mockGateway)
	gw.On("QuoteShipping", mock.Anything, "01310100", wantLines).Return(options, nil)
	svc := NewCheckoutService(gw, logger.Discard(), false)

	got, err := svc.QuoteShipping(context.Background(), filledStore(t), "01310100")
	require.NoError(t, err)
	assert.Equal(t, options, got)
	gw.AssertExpectations(t)
}

func TestQuoteShipping_InvalidPostalCode(t *testing.T) {
	gw := new(mockGateway)
	svc := NewCheckoutService(gw, logger.Discard(), false)

	_, err := svc.QuoteShipping(context.Background(), filledStore(t), "0131-010")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	gw.AssertNotCalled(t, "QuoteShipping", mock.Anything, mock.Anything, mock.Anything)
}

func TestQuoteShipping_FormattedPostalCode(t *testing.T) {
	gw := new(mockGateway)
	svc := NewCheckoutService(gw, logger.Discard(), false)
	gw.On("QuoteShipping", mock.Anything, "01310100", mock.Anything).Return([]shopify.ShippingOption{}, nil)

	_, err := svc.QuoteShipping(context.Background(), filledStore(t), "01310-100")
	require.NoError(t, err)
	gw.AssertExpectations(t)
}

func TestQuoteShipping_EmptyCart(t *testing.T) {
	gw := new(mockGateway)
	svc := NewCheckoutService(gw, logger.Discard(), false)

	_, err := svc.QuoteShipping(context.Background(), newStore(t), "01310100")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
