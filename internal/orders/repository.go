package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora-oms/velora-oms/internal/platform/db"
	"github.com/velora-oms/velora-oms/internal/shared"
)

// ListFilter narrows order listings.
type ListFilter struct {
	Status     string
	Stage      string
	CustomerID *uuid.UUID
	SalesRepID *uuid.UUID
	Page       shared.Pagination
}

// Summary is a listing row with customer context.
type Summary struct {
	ID           uuid.UUID `json:"id"`
	OrderNumber  string    `json:"order_number"`
	CustomerID   uuid.UUID `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	SalesRepID   uuid.UUID `json:"sales_rep_id"`
	Status       string    `json:"status"`
	Stage        string    `json:"workflow_stage"`
	Priority     string    `json:"priority"`
	TotalItems   int       `json:"total_items"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository persists orders in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction. Every workflow
// transition re-reads the order FOR UPDATE inside the transaction that
// writes it, so concurrent actions on the same order serialize.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

// TxStore is the transactional port of the order repository.
type TxStore interface {
	NextOrderNumber(ctx context.Context, at time.Time) (string, error)
	InsertOrder(ctx context.Context, o *Order) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	InsertLine(ctx context.Context, l *Line) error
	UpdateLine(ctx context.Context, l *Line) error
	DeleteAllLines(ctx context.Context, orderID uuid.UUID) error
}

type txStore struct {
	tx pgx.Tx
}

const orderColumns = `id, order_number, customer_id, sales_rep_id, status, workflow_stage, priority, source,
po_number, po_date, po_amount, price_list_id, discount_percentage, notes, created_at, updated_at`

const lineColumns = `id, order_id, item_description, quantity, inventory_id, decoded_by, unit_price, tax_rate, item_status, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.SalesRepID, &o.Status, &o.Stage,
		&o.Priority, &o.Source, &o.PONumber, &o.PODate, &o.POAmount, &o.PriceListID,
		&o.DiscountPct, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("orders: scan: %w", err)
	}
	return &o, nil
}

func scanLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Description, &l.Quantity, &l.InventoryID,
			&l.DecodedBy, &l.UnitPrice, &l.TaxRate, &l.ItemStatus, &l.Notes, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *txStore) NextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	return shared.NextDocNumber(ctx, s.tx, "ORD", at)
}

func (s *txStore) InsertOrder(ctx context.Context, o *Order) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.OrderNumber, o.CustomerID, o.SalesRepID, o.Status, o.Stage, o.Priority, o.Source,
		o.PONumber, o.PODate, o.POAmount, o.PriceListID, o.DiscountPct, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("orders: insert: %w", err)
	}
	for i := range o.Lines {
		if err := s.InsertLine(ctx, &o.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *txStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(s.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	rows, err := s.tx.Query(ctx, `SELECT `+lineColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("orders: lines: %w", err)
	}
	o.Lines, err = scanLines(rows)
	return o, err
}

func (s *txStore) UpdateOrder(ctx context.Context, o *Order) error {
	_, err := s.tx.Exec(ctx, `UPDATE orders
SET status = $2, workflow_stage = $3, priority = $4, source = $5, po_number = $6, po_date = $7,
    po_amount = $8, price_list_id = $9, discount_percentage = $10, notes = $11, updated_at = $12
WHERE id = $1`,
		o.ID, o.Status, o.Stage, o.Priority, o.Source, o.PONumber, o.PODate,
		o.POAmount, o.PriceListID, o.DiscountPct, o.Notes, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("orders: update: %w", err)
	}
	return nil
}

func (s *txStore) InsertLine(ctx context.Context, l *Line) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO order_items (`+lineColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.OrderID, l.Description, l.Quantity, l.InventoryID, l.DecodedBy,
		l.UnitPrice, l.TaxRate, l.ItemStatus, l.Notes, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("orders: insert line: %w", err)
	}
	return nil
}

func (s *txStore) UpdateLine(ctx context.Context, l *Line) error {
	_, err := s.tx.Exec(ctx, `UPDATE order_items
SET item_description = $2, quantity = $3, inventory_id = $4, decoded_by = $5,
    unit_price = $6, tax_rate = $7, item_status = $8, notes = $9, updated_at = $10
WHERE id = $1`,
		l.ID, l.Description, l.Quantity, l.InventoryID, l.DecodedBy,
		l.UnitPrice, l.TaxRate, l.ItemStatus, l.Notes, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("orders: update line: %w", err)
	}
	return nil
}

func (s *txStore) DeleteAllLines(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("orders: delete lines: %w", err)
	}
	return nil
}

// Get loads an order with its lines outside a transaction.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("orders: lines: %w", err)
	}
	o.Lines, err = scanLines(rows)
	return o, err
}

// List returns order summaries newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, `SELECT o.id, o.order_number, o.customer_id, c.name, o.sales_rep_id,
       o.status, o.workflow_stage, o.priority,
       (SELECT count(*) FROM order_items oi WHERE oi.order_id = o.id),
       o.created_at, o.updated_at
FROM orders o
JOIN customers c ON c.id = o.customer_id
WHERE ($1 = '' OR o.status = $1)
  AND ($2 = '' OR o.workflow_stage = $2)
  AND ($3::uuid IS NULL OR o.customer_id = $3)
  AND ($4::uuid IS NULL OR o.sales_rep_id = $4)
ORDER BY o.created_at DESC
LIMIT $5 OFFSET $6`,
		f.Status, f.Stage, f.CustomerID, f.SalesRepID, f.Page.Limit(), f.Page.Offset())
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.OrderNumber, &s.CustomerID, &s.CustomerName, &s.SalesRepID,
			&s.Status, &s.Stage, &s.Priority, &s.TotalItems, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
