package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suivie/storefront/internal/domain"
)

func sampleLines() []domain.CartLine {
	return []domain.CartLine{
		{
			MerchandiseID: "gid://shopify/ProductVariant/1",
			Title:         "Geleia de Jabuticaba",
			PriceAmount:   decimal.RequireFromString("29.90"),
			CurrencyCode:  "BRL",
			ImageURL:      "https://cdn.example.com/geleia.jpg",
			ProductHandle: "geleia-de-jabuticaba",
			Quantity:      2,
		},
		{
			MerchandiseID: "gid://shopify/ProductVariant/2",
			Title:         "Licor",
			PriceAmount:   decimal.NewFromInt(80),
			CurrencyCode:  "BRL",
			Quantity:      1,
		},
	}
}

func TestEncode_Layout(t *testing.T) {
	data, err := Encode(sampleLines()[1:])
	require.NoError(t, err)

	assert.JSONEq(t, `[{
		"merchandiseId": "gid://shopify/ProductVariant/2",
		"title": "Licor",
		"priceAmount": 80,
		"currencyCode": "BRL",
		"quantity": 1
	}]`, string(data))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	lines := sampleLines()

	data, err := Encode(lines)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i := range lines {
		assert.Equal(t, lines[i].MerchandiseID, got[i].MerchandiseID)
		assert.Equal(t, lines[i].Title, got[i].Title)
		assert.True(t, lines[i].PriceAmount.Equal(got[i].PriceAmount))
		assert.Equal(t, lines[i].CurrencyCode, got[i].CurrencyCode)
		assert.Equal(t, lines[i].ImageURL, got[i].ImageURL)
		assert.Equal(t, lines[i].ProductHandle, got[i].ProductHandle)
		assert.Equal(t, lines[i].Quantity, got[i].Quantity)
	}
}

func TestEncode_Empty(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestDecode_EmptyInput(t *testing.T) {
	got, err := Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecode_Invalid(t *testing.T) {
	for _, raw := range []string{"{{not-json", `{"merchandiseId":"v1"}`, `[{"priceAmount":"abc"}]`} {
		_, err := Decode([]byte(raw))
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrCorrupt, raw)
	}
}

func TestDecode_MissingFieldsAreZero(t *testing.T) {
	got, err := Decode([]byte(`[{"merchandiseId":"v1","quantity":3}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].MerchandiseID)
	assert.Equal(t, 3, got[0].Quantity)
	assert.True(t, got[0].PriceAmount.IsZero())
	assert.Empty(t, got[0].CurrencyCode)
}

func TestDecode_QuotedPrice(t *testing.T) {
	got, err := Decode([]byte(`[{"merchandiseId":"v1","priceAmount":"12.5","quantity":1}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "12.5", got[0].PriceAmount.String())
}
