package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Dispatch is one shipment event against an order. Lines are immutable once
// created: a correction requires a new dispatch, not an edit.
type Dispatch struct {
	ID             uuid.UUID  `json:"id"`
	DispatchNumber string     `json:"dispatch_number"`
	OrderID        uuid.UUID  `json:"order_id"`
	InvoiceRef     *string    `json:"invoice_ref,omitempty"`
	DispatchDate   time.Time  `json:"dispatch_date"`
	CourierName    string     `json:"courier_name"`
	TrackingNumber string     `json:"tracking_number"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`

	Lines []Line `json:"items,omitempty"`
}

// Line allocates a quantity of one catalog item against one order line.
type Line struct {
	ID          uuid.UUID `json:"id"`
	DispatchID  uuid.UUID `json:"dispatch_id"`
	OrderLineID uuid.UUID `json:"order_item_id"`
	InventoryID uuid.UUID `json:"inventory_id"`
	Quantity    int       `json:"quantity"`

	// Catalog detail, populated on read projections.
	ItemSKU  string `json:"item_sku,omitempty"`
	ItemName string `json:"item_name,omitempty"`
}

// orderHeader is the slice of the order the engine needs for its guards.
type orderHeader struct {
	ID     uuid.UUID
	Stage  string
	Status string
	Notes  string
}

// orderLine is the slice of an order line the engine validates against.
type orderLine struct {
	ID          uuid.UUID
	Description string
	Quantity    int
	InventoryID *uuid.UUID
	ItemStatus  string
}
