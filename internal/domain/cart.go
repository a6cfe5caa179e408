package domain

import (
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency reported for an empty cart and the fallback
// for catalog and shipping payloads that omit a currency code.
const DefaultCurrency = "BRL"

// Money is an amount in a given currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// NewLine describes a purchasable unit being added to the cart. It carries
// every CartLine field except the quantity.
type NewLine struct {
	MerchandiseID string
	Title         string
	UnitPrice     Money
	ImageURL      string
	ProductHandle string
}

// CartLine is one priced, quantified entry in the cart, keyed by MerchandiseID.
// Descriptive fields are captured when the line is first added and are never
// re-synced from the catalog.
type CartLine struct {
	MerchandiseID string          `json:"merchandiseId"`
	Title         string          `json:"title"`
	PriceAmount   decimal.Decimal `json:"priceAmount"`
	CurrencyCode  string          `json:"currencyCode"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	ProductHandle string          `json:"handle,omitempty"`
	Quantity      int             `json:"quantity"`
}

// NewCartLine builds a line for the given merchandise with the given quantity.
func NewCartLine(l NewLine, quantity int) CartLine {
	return CartLine{
		MerchandiseID: l.MerchandiseID,
		Title:         l.Title,
		PriceAmount:   l.UnitPrice.Amount,
		CurrencyCode:  l.UnitPrice.CurrencyCode,
		ImageURL:      l.ImageURL,
		ProductHandle: l.ProductHandle,
		Quantity:      quantity,
	}
}

// UnitPrice returns the price captured when the line was added.
func (l CartLine) UnitPrice() Money {
	return Money{Amount: l.PriceAmount, CurrencyCode: l.CurrencyCode}
}

// Subtotal returns quantity x unit price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.PriceAmount.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CheckoutLine is the minimal projection handed to the checkout and shipping
// quote calls.
type CheckoutLine struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// Lines is the ordered content of a cart. Totals are computed from the lines
// on every call and are never stored.
type Lines []CartLine

// Count returns the sum of all line quantities.
func (ls Lines) Count() int {
	var count int
	for _, l := range ls {
		count += l.Quantity
	}
	return count
}

// TotalAmount returns the sum of quantity x unit price across lines. Amounts
// in different currencies are summed as-is; no conversion is attempted.
func (ls Lines) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.Subtotal())
	}
	return total
}

// CurrencyCode returns the currency of the first line, which is the label used
// when rendering a single cart total. An empty cart reports DefaultCurrency.
func (ls Lines) CurrencyCode() string {
	if len(ls) == 0 || ls[0].CurrencyCode == "" {
		return DefaultCurrency
	}
	return ls[0].CurrencyCode
}

// Total returns TotalAmount labelled with CurrencyCode.
func (ls Lines) Total() Money {
	return Money{Amount: ls.TotalAmount(), CurrencyCode: ls.CurrencyCode()}
}

// ForCheckout projects the lines to merchandise id and quantity pairs.
func (ls Lines) ForCheckout() []CheckoutLine {
	out := make([]CheckoutLine, len(ls))
	for i, l := range ls {
		out[i] = CheckoutLine{MerchandiseID: l.MerchandiseID, Quantity: l.Quantity}
	}
	return out
}

// Find returns the index of the line with the given merchandise id, or -1.
func (ls Lines) Find(merchandiseID string) int {
	for i := range ls {
		if ls[i].MerchandiseID == merchandiseID {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with ls.
func (ls Lines) Clone() Lines {
	if ls == nil {
		return Lines{}
	}
	out := make(Lines, len(ls))
	copy(out, ls)
	return out
}
