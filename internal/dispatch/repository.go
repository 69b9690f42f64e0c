package dispatch

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

// Repository persists dispatches in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction spanning the dispatch,
// order and catalog tables.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

// TxStore is the transactional port of the dispatch engine. It spans the
// order aggregate and the inventory ledger because a dispatch is one atomic
// unit of work across all three.
type TxStore interface {
	GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*orderHeader, []orderLine, error)
	DispatchedQty(ctx context.Context, orderLineID uuid.UUID) (int, error)
	StockOnHand(ctx context.Context, inventoryID uuid.UUID) (int, error)
	NextDispatchNumber(ctx context.Context, at time.Time) (string, error)
	InsertDispatch(ctx context.Context, d *Dispatch) error
	InsertLine(ctx context.Context, l *Line) error
	DecrementStock(ctx context.Context, inventoryID uuid.UUID, qty int) error
	UpdateOrderLineStatus(ctx context.Context, orderLineID uuid.UUID, status string) error
	UpdateOrderRollup(ctx context.Context, orderID uuid.UUID, stage, status, notes string, at time.Time) error
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*orderHeader, []orderLine, error) {
	var h orderHeader
	err := s.tx.QueryRow(ctx, `SELECT id, workflow_stage, status, notes FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&h.ID, &h.Stage, &h.Status, &h.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, shared.ErrNotFound
		}
		return nil, nil, fmt.Errorf("dispatch: order lookup: %w", err)
	}
	rows, err := s.tx.Query(ctx, `SELECT id, item_description, quantity, inventory_id, item_status
FROM order_items WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("dispatch: order lines: %w", err)
	}
	defer rows.Close()
	var lines []orderLine
	for rows.Next() {
		var l orderLine
		if err := rows.Scan(&l.ID, &l.Description, &l.Quantity, &l.InventoryID, &l.ItemStatus); err != nil {
			return nil, nil, err
		}
		lines = append(lines, l)
	}
	return &h, lines, rows.Err()
}

func (s *txStore) DispatchedQty(ctx context.Context, orderLineID uuid.UUID) (int, error) {
	var qty int
	err := s.tx.QueryRow(ctx, `SELECT coalesce(sum(quantity), 0) FROM dispatch_items WHERE order_item_id = $1`, orderLineID).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("dispatch: dispatched qty: %w", err)
	}
	return qty, nil
}

func (s *txStore) StockOnHand(ctx context.Context, inventoryID uuid.UUID) (int, error) {
	var qty int
	err := s.tx.QueryRow(ctx, `SELECT on_hand FROM catalog_items WHERE id = $1`, inventoryID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("dispatch: stock lookup: %w", err)
	}
	return qty, nil
}

func (s *txStore) NextDispatchNumber(ctx context.Context, at time.Time) (string, error) {
	return shared.NextDocNumber(ctx, s.tx, "DISP", at)
}

func (s *txStore) InsertDispatch(ctx context.Context, d *Dispatch) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO dispatches
(id, dispatch_number, order_id, invoice_ref, dispatch_date, courier_name, tracking_number, status, notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.DispatchNumber, d.OrderID, d.InvoiceRef, d.DispatchDate, d.CourierName,
		d.TrackingNumber, d.Status, d.Notes, d.CreatedBy, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispatch: insert: %w", err)
	}
	return nil
}

func (s *txStore) InsertLine(ctx context.Context, l *Line) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO dispatch_items (id, dispatch_id, order_item_id, inventory_id, quantity)
VALUES ($1, $2, $3, $4, $5)`, l.ID, l.DispatchID, l.OrderLineID, l.InventoryID, l.Quantity)
	if err != nil {
		return fmt.Errorf("dispatch: insert line: %w", err)
	}
	return nil
}

// DecrementStock applies the conditional decrement. Zero rows affected means
// the balance would underflow; the whole transaction rolls back.
func (s *txStore) DecrementStock(ctx context.Context, inventoryID uuid.UUID, qty int) error {
	tag, err := s.tx.Exec(ctx, `UPDATE catalog_items SET on_hand = on_hand - $2, updated_at = now()
WHERE id = $1 AND on_hand >= $2`, inventoryID, qty)
	if err != nil {
		return fmt.Errorf("dispatch: decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewQuantityError("available stock", qty, 0)
	}
	return nil
}

func (s *txStore) UpdateOrderLineStatus(ctx context.Context, orderLineID uuid.UUID, status string) error {
	_, err := s.tx.Exec(ctx, `UPDATE order_items SET item_status = $2, updated_at = now() WHERE id = $1`, orderLineID, status)
	if err != nil {
		return fmt.Errorf("dispatch: update line status: %w", err)
	}
	return nil
}

func (s *txStore) UpdateOrderRollup(ctx context.Context, orderID uuid.UUID, stage, status, notes string, at time.Time) error {
	_, err := s.tx.Exec(ctx, `UPDATE orders SET workflow_stage = $2, status = $3, notes = $4, updated_at = $5 WHERE id = $1`,
		orderID, stage, status, notes, at)
	if err != nil {
		return fmt.Errorf("dispatch: order rollup: %w", err)
	}
	return nil
}

const dispatchColumns = `d.id, d.dispatch_number, d.order_id, d.invoice_ref, d.dispatch_date, d.courier_name, d.tracking_number, d.status, d.notes, d.created_by, d.created_at`

// Get loads a dispatch with its lines and nested catalog details.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Dispatch, error) {
	var d Dispatch
	err := r.pool.QueryRow(ctx, `SELECT `+dispatchColumns+` FROM dispatches d WHERE d.id = $1`, id).
		Scan(&d.ID, &d.DispatchNumber, &d.OrderID, &d.InvoiceRef, &d.DispatchDate, &d.CourierName,
			&d.TrackingNumber, &d.Status, &d.Notes, &d.CreatedBy, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("dispatch: get: %w", err)
	}
	lines, err := r.linesFor(ctx, []uuid.UUID{d.ID})
	if err != nil {
		return nil, err
	}
	d.Lines = lines[d.ID]
	return &d, nil
}

// ListForOrder returns an order's dispatches newest first, lines included.
func (r *Repository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]Dispatch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+dispatchColumns+` FROM dispatches d
WHERE d.order_id = $1 ORDER BY d.created_at DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list: %w", err)
	}
	defer rows.Close()
	var out []Dispatch
	var ids []uuid.UUID
	for rows.Next() {
		var d Dispatch
		if err := rows.Scan(&d.ID, &d.DispatchNumber, &d.OrderID, &d.InvoiceRef, &d.DispatchDate,
			&d.CourierName, &d.TrackingNumber, &d.Status, &d.Notes, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func (r *Repository) linesFor(ctx context.Context, dispatchIDs []uuid.UUID) (map[uuid.UUID][]Line, error) {
	if len(dispatchIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT di.id, di.dispatch_id, di.order_item_id, di.inventory_id, di.quantity, ci.sku, ci.name
FROM dispatch_items di
JOIN catalog_items ci ON ci.id = di.inventory_id
WHERE di.dispatch_id = ANY($1)`, dispatchIDs)
	if err != nil {
		return nil, fmt.Errorf("dispatch: lines: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]Line)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DispatchID, &l.OrderLineID, &l.InventoryID, &l.Quantity, &l.ItemSKU, &l.ItemName); err != nil {
			return nil, err
		}
		out[l.DispatchID] = append(out[l.DispatchID], l)
	}
	return out, rows.Err()
}
