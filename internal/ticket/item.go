// Package ticket implements the receipt engine: deciding whether OCR text
// is a purchase receipt at all, parsing it into line items and printed
// totals, reconciling those against each other, and splitting the bill
// across participants.
package ticket

import "github.com/shopspring/decimal"

func init() {
	// Monetary fields go over the wire as JSON numbers, matching what the
	// frontend expects.
	decimal.MarshalJSONWithoutQuotes = true
}

// Item is one parsed receipt line.
type Item struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Quantity   float64         `json:"quantity"`
	Price      decimal.Decimal `json:"price"`       // unit price
	TotalPrice decimal.Decimal `json:"total_price"` // Quantity × Price
}
