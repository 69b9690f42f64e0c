package dispatch

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/velora-oms/velora-oms/internal/orders"
	"github.com/velora-oms/velora-oms/internal/shared"
)

type memoryStore struct {
	order         orderHeader
	lines         []orderLine
	stock         map[uuid.UUID]int
	dispatches    []Dispatch
	dispatchLines []Line
	seq           int
}

func (m *memoryStore) snapshot() *memoryStore {
	clone := &memoryStore{
		order: m.order,
		seq:   m.seq,
		stock: make(map[uuid.UUID]int, len(m.stock)),
	}
	clone.lines = append(clone.lines, m.lines...)
	clone.dispatches = append(clone.dispatches, m.dispatches...)
	clone.dispatchLines = append(clone.dispatchLines, m.dispatchLines...)
	for k, v := range m.stock {
		clone.stock[k] = v
	}
	return clone
}

func (m *memoryStore) restore(snap *memoryStore) {
	m.order = snap.order
	m.lines = snap.lines
	m.stock = snap.stock
	m.dispatches = snap.dispatches
	m.dispatchLines = snap.dispatchLines
	m.seq = snap.seq
}

// WithTx mimics transactional behavior: on error every mutation rolls back.
func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	snap := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (*Dispatch, error) {
	for i := range m.dispatches {
		if m.dispatches[i].ID == id {
			d := m.dispatches[i]
			for _, l := range m.dispatchLines {
				if l.DispatchID == id {
					d.Lines = append(d.Lines, l)
				}
			}
			return &d, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryStore) ListForOrder(_ context.Context, orderID uuid.UUID) ([]Dispatch, error) {
	var out []Dispatch
	for _, d := range m.dispatches {
		if d.OrderID == orderID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryStore) GetOrderForUpdate(_ context.Context, orderID uuid.UUID) (*orderHeader, []orderLine, error) {
	if m.order.ID != orderID {
		return nil, nil, shared.ErrNotFound
	}
	h := m.order
	lines := make([]orderLine, len(m.lines))
	copy(lines, m.lines)
	return &h, lines, nil
}

func (m *memoryStore) DispatchedQty(_ context.Context, orderLineID uuid.UUID) (int, error) {
	total := 0
	for _, l := range m.dispatchLines {
		if l.OrderLineID == orderLineID {
			total += l.Quantity
		}
	}
	return total, nil
}

func (m *memoryStore) StockOnHand(_ context.Context, inventoryID uuid.UUID) (int, error) {
	qty, ok := m.stock[inventoryID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return qty, nil
}

func (m *memoryStore) NextDispatchNumber(_ context.Context, at time.Time) (string, error) {
	m.seq++
	return shared.FormatDocNumber("DISP", at.Year(), m.seq), nil
}

func (m *memoryStore) InsertDispatch(_ context.Context, d *Dispatch) error {
	clone := *d
	clone.Lines = nil
	m.dispatches = append(m.dispatches, clone)
	return nil
}

func (m *memoryStore) InsertLine(_ context.Context, l *Line) error {
	m.dispatchLines = append(m.dispatchLines, *l)
	return nil
}

func (m *memoryStore) DecrementStock(_ context.Context, inventoryID uuid.UUID, qty int) error {
	if m.stock[inventoryID] < qty {
		return shared.NewQuantityError("available stock", qty, m.stock[inventoryID])
	}
	m.stock[inventoryID] -= qty
	return nil
}

func (m *memoryStore) UpdateOrderLineStatus(_ context.Context, orderLineID uuid.UUID, status string) error {
	for i := range m.lines {
		if m.lines[i].ID == orderLineID {
			m.lines[i].ItemStatus = status
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryStore) UpdateOrderRollup(_ context.Context, orderID uuid.UUID, stage, status, notes string, _ time.Time) error {
	if m.order.ID != orderID {
		return shared.ErrNotFound
	}
	m.order.Stage = stage
	m.order.Status = status
	m.order.Notes = notes
	return nil
}

type fixture struct {
	svc    *Service
	store  *memoryStore
	itemX  uuid.UUID
	lineID uuid.UUID
}

// newFixture builds an order with one line of quantity 10 against catalog
// item X holding 100 units, sitting in inventory_check.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	itemX := uuid.New()
	lineID := uuid.New()
	orderID := uuid.New()
	store := &memoryStore{
		order: orderHeader{ID: orderID, Stage: orders.StageInventoryCheck, Status: orders.StatusPOApproved},
		lines: []orderLine{{
			ID: lineID, Description: "nitrile gloves", Quantity: 10,
			InventoryID: &itemX, ItemStatus: orders.ItemPending,
		}},
		stock: map[uuid.UUID]int{itemX: 100},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{svc: NewService(store, nil, logger), store: store, itemX: itemX, lineID: lineID}
}

func warehouseCtx() context.Context {
	return shared.ContextWithActor(context.Background(), &shared.Actor{
		ID: uuid.New(), Name: "wh", Role: "inventory_admin", FullName: "Warehouse Admin",
	})
}

func (f *fixture) dispatch(t *testing.T, qty int) (*Dispatch, error) {
	t.Helper()
	return f.svc.Create(warehouseCtx(), CreateInput{
		OrderID:     f.store.order.ID,
		CourierName: "BlueDart",
		Lines:       []CreateLineInput{{OrderLineID: f.lineID, InventoryID: f.itemX, Quantity: qty}},
	})
}

func TestPartialDispatch(t *testing.T) {
	f := newFixture(t)
	d, err := f.dispatch(t, 6)
	require.NoError(t, err)
	require.Regexp(t, `^DISP-\d{4}-0001$`, d.DispatchNumber)
	require.Equal(t, orders.ItemPartial, f.store.lines[0].ItemStatus)
	require.Equal(t, 94, f.store.stock[f.itemX])
	require.Equal(t, orders.StatusPartiallyDispatched, f.store.order.Status)
	require.Equal(t, orders.StageInventoryCheck, f.store.order.Stage)
}

func TestFullDispatchMovesOrderToPayment(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatch(t, 6)
	require.NoError(t, err)
	_, err = f.dispatch(t, 4)
	require.NoError(t, err)
	require.Equal(t, orders.ItemCompleted, f.store.lines[0].ItemStatus)
	require.Equal(t, 90, f.store.stock[f.itemX])
	require.Equal(t, orders.StagePaymentPending, f.store.order.Stage)
	require.Equal(t, orders.StatusPaymentPending, f.store.order.Status)
}

func TestOverDispatchIsRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatch(t, 6)
	require.NoError(t, err)

	_, err = f.dispatch(t, 5)
	require.ErrorIs(t, err, shared.ErrQuantityViolation)

	var qtyErr *shared.QuantityError
	require.ErrorAs(t, err, &qtyErr)
	require.Equal(t, 5, qtyErr.Requested)
	require.Equal(t, 4, qtyErr.Limit)

	// Nothing changed: stock, line status and dispatch count are untouched.
	require.Equal(t, 94, f.store.stock[f.itemX])
	require.Equal(t, orders.ItemPartial, f.store.lines[0].ItemStatus)
	require.Len(t, f.store.dispatches, 1)
}

func TestDuplicateLineEntriesAreCheckedAgainstCombinedQuantity(t *testing.T) {
	f := newFixture(t)

	// Two entries of 6 against a 10-unit line: each alone fits, together
	// they over-dispatch and the whole request must be rejected.
	_, err := f.svc.Create(warehouseCtx(), CreateInput{
		OrderID: f.store.order.ID,
		Lines: []CreateLineInput{
			{OrderLineID: f.lineID, InventoryID: f.itemX, Quantity: 6},
			{OrderLineID: f.lineID, InventoryID: f.itemX, Quantity: 6},
		},
	})
	require.ErrorIs(t, err, shared.ErrQuantityViolation)

	var qtyErr *shared.QuantityError
	require.ErrorAs(t, err, &qtyErr)
	require.Equal(t, 6, qtyErr.Requested)
	require.Equal(t, 4, qtyErr.Limit)

	require.Equal(t, 100, f.store.stock[f.itemX])
	require.Equal(t, orders.ItemPending, f.store.lines[0].ItemStatus)
	require.Empty(t, f.store.dispatches)
	require.Empty(t, f.store.dispatchLines)
}

func TestDuplicateLineEntriesWithinOutstandingComplete(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.Create(warehouseCtx(), CreateInput{
		OrderID: f.store.order.ID,
		Lines: []CreateLineInput{
			{OrderLineID: f.lineID, InventoryID: f.itemX, Quantity: 6},
			{OrderLineID: f.lineID, InventoryID: f.itemX, Quantity: 4},
		},
	})
	require.NoError(t, err)
	require.Len(t, d.Lines, 2)
	require.Equal(t, orders.ItemCompleted, f.store.lines[0].ItemStatus)
	require.Equal(t, 90, f.store.stock[f.itemX])
	require.Equal(t, orders.StagePaymentPending, f.store.order.Stage)
}

func TestDuplicateItemEntriesAreCheckedAgainstCombinedStock(t *testing.T) {
	f := newFixture(t)
	f.store.stock[f.itemX] = 7
	lineY := uuid.New()
	invX := f.itemX
	f.store.lines = append(f.store.lines, orderLine{
		ID: lineY, Description: "nitrile gloves, small", Quantity: 5,
		InventoryID: &invX, ItemStatus: orders.ItemPending,
	})

	// Both lines draw from item X: 5 + 4 exceeds the 7 on hand even though
	// each entry fits on its own.
	_, err := f.svc.Create(warehouseCtx(), CreateInput{
		OrderID: f.store.order.ID,
		Lines: []CreateLineInput{
			{OrderLineID: f.lineID, InventoryID: f.itemX, Quantity: 5},
			{OrderLineID: lineY, InventoryID: f.itemX, Quantity: 4},
		},
	})
	require.ErrorIs(t, err, shared.ErrQuantityViolation)

	var qtyErr *shared.QuantityError
	require.ErrorAs(t, err, &qtyErr)
	require.Equal(t, 4, qtyErr.Requested)
	require.Equal(t, 2, qtyErr.Limit)

	require.Equal(t, 7, f.store.stock[f.itemX])
	require.Empty(t, f.store.dispatches)
}

func TestInsufficientStockIsRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	f.store.stock[f.itemX] = 3

	_, err := f.dispatch(t, 4)
	require.ErrorIs(t, err, shared.ErrQuantityViolation)
	require.Equal(t, 3, f.store.stock[f.itemX])
	require.Empty(t, f.store.dispatches)
	require.Equal(t, orders.ItemPending, f.store.lines[0].ItemStatus)
}

func TestDispatchOutsideInventoryCheckIsRejected(t *testing.T) {
	f := newFixture(t)
	f.store.order.Stage = orders.StageWaitingPO

	_, err := f.dispatch(t, 1)
	require.ErrorIs(t, err, shared.ErrStagePrecondition)

	var stageErr *shared.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, orders.StageWaitingPO, stageErr.Current)
	require.Equal(t, orders.StageInventoryCheck, stageErr.Required)
	require.Empty(t, f.store.dispatches)
	require.Equal(t, 100, f.store.stock[f.itemX])
}

func TestDispatchForForeignLineIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(warehouseCtx(), CreateInput{
		OrderID: f.store.order.ID,
		Lines:   []CreateLineInput{{OrderLineID: uuid.New(), InventoryID: f.itemX, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, f.store.dispatches)
}

func TestMultiLineDispatchIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	itemY := uuid.New()
	lineY := uuid.New()
	f.store.stock[itemY] = 2
	invY := itemY
	f.store.lines = append(f.store.lines, orderLine{
		ID: lineY, Description: "syringes", Quantity: 5, InventoryID: &invY, ItemStatus: orders.ItemPending,
	})

	// Second line exceeds stock, so the first line must not commit either.
	_, err := f.svc.Create(warehouseCtx(), CreateInput{
		OrderID: f.store.order.ID,
		Lines: []CreateLineInput{
			{OrderLineID: f.lineID, InventoryID: f.itemX, Quantity: 5},
			{OrderLineID: lineY, InventoryID: itemY, Quantity: 5},
		},
	})
	require.ErrorIs(t, err, shared.ErrQuantityViolation)
	require.Equal(t, 100, f.store.stock[f.itemX])
	require.Equal(t, 2, f.store.stock[itemY])
	require.Empty(t, f.store.dispatches)
	require.Empty(t, f.store.dispatchLines)
}

func TestOrderActionLogRecordsDispatch(t *testing.T) {
	f := newFixture(t)
	d, err := f.dispatch(t, 10)
	require.NoError(t, err)
	require.Contains(t, f.store.order.Notes, d.DispatchNumber)
	require.Contains(t, f.store.order.Notes, "Warehouse Admin")
}
