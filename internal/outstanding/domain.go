package outstanding

import "github.com/google/uuid"

// CustomerRow is one still-owed order line with its customer and catalog
// context. Outstanding is always ordered minus dispatched; rows at or below
// zero are never reported.
type CustomerRow struct {
	OrderItemID      uuid.UUID `json:"order_item_id"`
	OrderID          uuid.UUID `json:"order_id"`
	OrderNumber      string    `json:"order_number"`
	OrderStatus      string    `json:"order_status"`
	ItemStatus       string    `json:"item_status"`
	CustomerID       uuid.UUID `json:"customer_id"`
	CustomerName     string    `json:"customer_name"`
	ItemID           uuid.UUID `json:"item_id"`
	ItemName         string    `json:"item_name"`
	SKU              string    `json:"sku"`
	Ordered          int       `json:"ordered"`
	Dispatched       int       `json:"dispatched"`
	Outstanding      int       `json:"outstanding"`
	UnitPrice        float64   `json:"unit_price"`
	OutstandingValue float64   `json:"outstanding_value"`
	AvailableStock   int       `json:"available_stock"`
}

// ItemRow groups the same population by catalog item for demand fan-out.
type ItemRow struct {
	ItemID           uuid.UUID `json:"item_id"`
	ItemName         string    `json:"item_name"`
	SKU              string    `json:"sku"`
	TotalOrdered     int       `json:"total_ordered"`
	TotalDispatched  int       `json:"total_dispatched"`
	Outstanding      int       `json:"outstanding_quantity"`
	UnitPrice        float64   `json:"unit_price"`
	OutstandingValue float64   `json:"outstanding_value"`
	CustomersCount   int       `json:"customers_count"`
	OrdersCount      int       `json:"orders_count"`
}

// Summary totals the open demand across the whole book.
type Summary struct {
	TotalItems     int     `json:"total_outstanding_items"`
	TotalValue     float64 `json:"total_outstanding_value"`
	TotalCustomers int     `json:"total_customers"`
	TotalOrders    int     `json:"total_orders"`
}
