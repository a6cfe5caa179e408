package repository

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/suivie/storefront/internal/domain"
)

// record is the persisted shape of one line. priceAmount is a plain JSON
// number so snapshots stay readable by the browser storefront.
type record struct {
	MerchandiseID string      `json:"merchandiseId"`
	Title         string      `json:"title"`
	PriceAmount   json.Number `json:"priceAmount"`
	CurrencyCode  string      `json:"currencyCode"`
	ImageURL      string      `json:"imageUrl,omitempty"`
	Handle        string      `json:"handle,omitempty"`
	Quantity      int         `json:"quantity"`
}

// Encode serializes lines to the persisted JSON array layout.
func Encode(lines []domain.CartLine) ([]byte, error) {
	records := make([]record, len(lines))
	for i, l := range lines {
		records[i] = record{
			MerchandiseID: l.MerchandiseID,
			Title:         l.Title,
			PriceAmount:   json.Number(l.PriceAmount.String()),
			CurrencyCode:  l.CurrencyCode,
			ImageURL:      l.ImageURL,
			Handle:        l.ProductHandle,
			Quantity:      l.Quantity,
		}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a persisted snapshot. Empty input decodes to no lines.
// Records missing fields decode to zero values; there is no schema version.
func Decode(data []byte) ([]domain.CartLine, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	lines := make([]domain.CartLine, len(records))
	for i, r := range records {
		amount := decimal.Zero
		if r.PriceAmount != "" {
			d, err := decimal.NewFromString(r.PriceAmount.String())
			if err != nil {
				return nil, fmt.Errorf("%w: line %d price: %v", ErrCorrupt, i, err)
			}
			amount = d
		}
		lines[i] = domain.CartLine{
			MerchandiseID: r.MerchandiseID,
			Title:         r.Title,
			PriceAmount:   amount,
			CurrencyCode:  r.CurrencyCode,
			ImageURL:      r.ImageURL,
			ProductHandle: r.Handle,
			Quantity:      r.Quantity,
		}
	}
	return lines, nil
}
