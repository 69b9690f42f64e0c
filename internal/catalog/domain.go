package catalog

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTaxRate is the GST percentage applied when an item does not specify one.
const DefaultTaxRate = 18.0

// Item is a stocked catalog entry. OnHand never goes negative: decrements are
// conditional updates that fail instead of underflowing.
type Item struct {
	ID            uuid.UUID `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	UnitPrice     float64   `json:"unit_price"`
	TaxRate       float64   `json:"tax_rate"`
	OnHand        int       `json:"on_hand"`
	ReorderLevel  int       `json:"reorder_level"`
	UnitOfMeasure string    `json:"unit_of_measure"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
