package outstanding

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository recomputes the reconciliation projections on demand. The view is
// stateless: everything derives from order lines joined against summed
// dispatch quantities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lines still owed: decoded, pending or partial, on an order that is neither
// parked nor closed, with a positive remainder after summing dispatches.
const baseCTE = `WITH base AS (
	SELECT oi.id AS order_item_id,
	       o.id AS order_id,
	       o.order_number,
	       o.status AS order_status,
	       oi.item_status,
	       c.id AS customer_id,
	       c.name AS customer_name,
	       ci.id AS item_id,
	       ci.name AS item_name,
	       ci.sku,
	       ci.on_hand,
	       oi.quantity AS ordered,
	       coalesce(sum(di.quantity), 0)::int AS dispatched,
	       coalesce(oi.unit_price, ci.unit_price) AS unit_price
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	JOIN customers c ON c.id = o.customer_id
	JOIN catalog_items ci ON ci.id = oi.inventory_id
	LEFT JOIN dispatch_items di ON di.order_item_id = oi.id
	WHERE o.status NOT IN ('draft', 'cancelled', 'completed', 'rejected')
	  AND oi.inventory_id IS NOT NULL
	  AND oi.item_status IN ('pending', 'partial')
	GROUP BY oi.id, o.id, o.order_number, o.status, oi.item_status, c.id, c.name,
	         ci.id, ci.name, ci.sku, ci.on_hand, oi.quantity, oi.unit_price, ci.unit_price
)`

// ByCustomer returns one row per outstanding order line ordered by customer.
func (r *Repository) ByCustomer(ctx context.Context) ([]CustomerRow, error) {
	rows, err := r.pool.Query(ctx, baseCTE+`
SELECT order_item_id, order_id, order_number, order_status, item_status,
       customer_id, customer_name, item_id, item_name, sku, on_hand,
       ordered, dispatched, unit_price
FROM base
WHERE ordered - dispatched > 0
ORDER BY customer_name, item_name`)
	if err != nil {
		return nil, fmt.Errorf("outstanding: by customer: %w", err)
	}
	defer rows.Close()
	var out []CustomerRow
	for rows.Next() {
		var c CustomerRow
		if err := rows.Scan(&c.OrderItemID, &c.OrderID, &c.OrderNumber, &c.OrderStatus, &c.ItemStatus,
			&c.CustomerID, &c.CustomerName, &c.ItemID, &c.ItemName, &c.SKU, &c.AvailableStock,
			&c.Ordered, &c.Dispatched, &c.UnitPrice); err != nil {
			return nil, err
		}
		c.Outstanding = c.Ordered - c.Dispatched
		c.OutstandingValue = float64(c.Outstanding) * c.UnitPrice
		out = append(out, c)
	}
	return out, rows.Err()
}

// ByItem groups outstanding demand per catalog item with distinct customer
// and order counts.
func (r *Repository) ByItem(ctx context.Context) ([]ItemRow, error) {
	rows, err := r.pool.Query(ctx, baseCTE+`
SELECT item_id, item_name, sku,
       sum(ordered)::int,
       sum(dispatched)::int,
       max(unit_price),
       count(DISTINCT customer_id)::int,
       count(DISTINCT order_id)::int
FROM base
WHERE ordered - dispatched > 0
GROUP BY item_id, item_name, sku
ORDER BY item_name`)
	if err != nil {
		return nil, fmt.Errorf("outstanding: by item: %w", err)
	}
	defer rows.Close()
	var out []ItemRow
	for rows.Next() {
		var it ItemRow
		if err := rows.Scan(&it.ItemID, &it.ItemName, &it.SKU, &it.TotalOrdered, &it.TotalDispatched,
			&it.UnitPrice, &it.CustomersCount, &it.OrdersCount); err != nil {
			return nil, err
		}
		it.Outstanding = it.TotalOrdered - it.TotalDispatched
		it.OutstandingValue = float64(it.Outstanding) * it.UnitPrice
		out = append(out, it)
	}
	return out, rows.Err()
}

// Totals sums the open book.
func (r *Repository) Totals(ctx context.Context) (*Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, baseCTE+`
SELECT count(*)::int,
       coalesce(sum((ordered - dispatched) * unit_price), 0),
       count(DISTINCT customer_id)::int,
       count(DISTINCT order_id)::int
FROM base
WHERE ordered - dispatched > 0`).
		Scan(&s.TotalItems, &s.TotalValue, &s.TotalCustomers, &s.TotalOrders)
	if err != nil {
		return nil, fmt.Errorf("outstanding: summary: %w", err)
	}
	return &s, nil
}
