package pricelists

import (
	"time"

	"github.com/google/uuid"
)

// PriceList is a negotiated price book applied to an order at quotation time.
type PriceList struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsDefault   bool      `json:"is_default"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Entry overrides the catalog price of one item inside a price list.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	PriceListID uuid.UUID `json:"price_list_id"`
	InventoryID uuid.UUID `json:"inventory_id"`
	UnitPrice   float64   `json:"unit_price"`
	TaxRate     *float64  `json:"tax_rate,omitempty"`
}

// Price is the resolved price of an item in a list.
type Price struct {
	UnitPrice float64
	TaxRate   *float64
}
