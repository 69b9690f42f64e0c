package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/velora-oms/velora-oms/internal/shared"
)

type memoryStore struct {
	orders map[uuid.UUID]*Order
	seq    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: make(map[uuid.UUID]*Order)}
}

func cloneOrder(o *Order) *Order {
	clone := *o
	clone.Lines = make([]Line, len(o.Lines))
	copy(clone.Lines, o.Lines)
	return &clone
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, m)
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memoryStore) List(_ context.Context, f ListFilter) ([]Summary, error) {
	var out []Summary
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Stage != "" && o.Stage != f.Stage {
			continue
		}
		if f.SalesRepID != nil && o.SalesRepID != *f.SalesRepID {
			continue
		}
		out = append(out, Summary{ID: o.ID, OrderNumber: o.OrderNumber, Status: o.Status, Stage: o.Stage, SalesRepID: o.SalesRepID, TotalItems: len(o.Lines)})
	}
	return out, nil
}

func (m *memoryStore) NextOrderNumber(_ context.Context, at time.Time) (string, error) {
	m.seq++
	return shared.FormatDocNumber("ORD", at.Year(), m.seq), nil
}

func (m *memoryStore) InsertOrder(_ context.Context, o *Order) error {
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memoryStore) GetForUpdate(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memoryStore) UpdateOrder(_ context.Context, o *Order) error {
	stored, ok := m.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	clone := *o
	clone.Lines = stored.Lines
	m.orders[o.ID] = &clone
	return nil
}

func (m *memoryStore) InsertLine(_ context.Context, l *Line) error {
	o, ok := m.orders[l.OrderID]
	if !ok {
		return shared.ErrNotFound
	}
	o.Lines = append(o.Lines, *l)
	return nil
}

func (m *memoryStore) UpdateLine(_ context.Context, l *Line) error {
	o, ok := m.orders[l.OrderID]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range o.Lines {
		if o.Lines[i].ID == l.ID {
			o.Lines[i] = *l
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryStore) DeleteAllLines(_ context.Context, orderID uuid.UUID) error {
	o, ok := m.orders[orderID]
	if !ok {
		return shared.ErrNotFound
	}
	o.Lines = nil
	return nil
}

type approvalCall struct {
	stage    string
	decision string
}

type fakeTracker struct {
	opened   []approvalCall
	resolved []approvalCall
}

func (t *fakeTracker) Open(_ context.Context, _ string, _ uuid.UUID, stage string, _ uuid.UUID) error {
	t.opened = append(t.opened, approvalCall{stage: stage})
	return nil
}

func (t *fakeTracker) Resolve(_ context.Context, _ string, _ uuid.UUID, stage, decision string, _ uuid.UUID, _ string) error {
	t.resolved = append(t.resolved, approvalCall{stage: stage, decision: decision})
	return nil
}

type allowAll struct{}

func (allowAll) Authorize(context.Context, uuid.UUID, string) error { return nil }

type fakeAttachments struct {
	counts map[uuid.UUID]int
}

func (f *fakeAttachments) CountForEntity(_ context.Context, _ string, id uuid.UUID) (int, error) {
	return f.counts[id], nil
}

type fakeCatalog struct {
	items map[uuid.UUID]CatalogInfo
}

func (f *fakeCatalog) ItemInfo(_ context.Context, id uuid.UUID) (*CatalogInfo, error) {
	info, ok := f.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &info, nil
}

type fakeCustomers struct {
	ids map[uuid.UUID]bool
}

func (f *fakeCustomers) Exists(_ context.Context, id uuid.UUID) error {
	if !f.ids[id] {
		return shared.ErrNotFound
	}
	return nil
}

type fakePrices struct {
	prices map[uuid.UUID]map[uuid.UUID]ListedPrice
}

func (f *fakePrices) LookupPrice(_ context.Context, listID, itemID uuid.UUID) (*ListedPrice, error) {
	if list, ok := f.prices[listID]; ok {
		if p, ok := list[itemID]; ok {
			return &p, nil
		}
	}
	return nil, shared.ErrNotFound
}

type fixture struct {
	svc         *Service
	store       *memoryStore
	tracker     *fakeTracker
	attachments *fakeAttachments
	catalog     *fakeCatalog
	customers   *fakeCustomers
	prices      *fakePrices
	customerID  uuid.UUID
	itemX       uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemoryStore()
	tracker := &fakeTracker{}
	attachments := &fakeAttachments{counts: make(map[uuid.UUID]int)}
	customerID := uuid.New()
	itemX := uuid.New()
	catalog := &fakeCatalog{items: map[uuid.UUID]CatalogInfo{
		itemX: {ID: itemX, SKU: "GLV-01", Name: "Nitrile Gloves", UnitPrice: 50, TaxRate: 12},
	}}
	customers := &fakeCustomers{ids: map[uuid.UUID]bool{customerID: true}}
	prices := &fakePrices{prices: make(map[uuid.UUID]map[uuid.UUID]ListedPrice)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, tracker, allowAll{}, attachments, catalog, customers, prices, nil, logger)
	return &fixture{svc: svc, store: store, tracker: tracker, attachments: attachments,
		catalog: catalog, customers: customers, prices: prices, customerID: customerID, itemX: itemX}
}

func actorCtx(role string) context.Context {
	return shared.ContextWithActor(context.Background(), &shared.Actor{
		ID: uuid.New(), Name: role, Role: role, FullName: "Test " + role,
	})
}

func (f *fixture) createOrder(t *testing.T, ctx context.Context, qty int) *Order {
	t.Helper()
	order, err := f.svc.Create(ctx, CreateInput{
		CustomerID: f.customerID,
		Lines:      []CreateLineInput{{Description: "blue nitrile gloves, box of 100", Quantity: qty}},
	})
	require.NoError(t, err)
	return order
}

// Drives an order from creation to inventory_check the way the workflow
// prescribes: decode, submit, approve, generate+approve quotation, attach a
// PO, request and approve PO approval.
func (f *fixture) orderAtInventoryCheck(t *testing.T, qty int) *Order {
	t.Helper()
	sales := actorCtx("sales_rep")
	decoder := actorCtx("decoder")
	exec := actorCtx("executive")

	order := f.createOrder(t, sales, qty)
	order, err := f.svc.DecodeLine(decoder, order.ID, order.Lines[0].ID, DecodeItem{InventoryID: f.itemX, Quantity: qty})
	require.NoError(t, err)
	require.Equal(t, StageDecodingApproval, order.Stage)

	order, err = f.svc.Approve(exec, order.ID, "")
	require.NoError(t, err)
	require.Equal(t, StageQuotation, order.Stage)

	order, err = f.svc.MarkQuotationGenerated(exec, order.ID, QuotationInput{})
	require.NoError(t, err)
	order, err = f.svc.Approve(exec, order.ID, "")
	require.NoError(t, err)
	require.Equal(t, StageWaitingPO, order.Stage)

	f.attachments.counts[order.ID] = 1
	order, err = f.svc.RequestPOApproval(exec, order.ID, POInput{PONumber: "PO-77"})
	require.NoError(t, err)
	require.Equal(t, StagePOApproval, order.Stage)

	order, err = f.svc.Approve(exec, order.ID, "stock confirmed")
	require.NoError(t, err)
	require.Equal(t, StageInventoryCheck, order.Stage)
	return order
}

func TestCreateRequiresExistingCustomer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(actorCtx("sales_rep"), CreateInput{
		CustomerID: uuid.New(),
		Lines:      []CreateLineInput{{Description: "gauze", Quantity: 5}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateAssignsYearlyNumber(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("sales_rep")
	first := f.createOrder(t, ctx, 10)
	second := f.createOrder(t, ctx, 3)
	require.Regexp(t, `^ORD-\d{4}-0001$`, first.OrderNumber)
	require.Regexp(t, `^ORD-\d{4}-0002$`, second.OrderNumber)
	require.Equal(t, StageOrderRequest, first.Stage)
	require.Equal(t, StatusDraft, first.Status)
	require.Equal(t, ItemPending, first.Lines[0].ItemStatus)
}

func TestDecodeLastLineAdvancesToApproval(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, actorCtx("sales_rep"), 10)

	decoded, err := f.svc.DecodeLine(actorCtx("decoder"), order.ID, order.Lines[0].ID, DecodeItem{InventoryID: f.itemX, Quantity: 10})
	require.NoError(t, err)
	require.Equal(t, StageDecodingApproval, decoded.Stage)
	require.Equal(t, StatusPendingApproval, decoded.Status)
	require.Equal(t, ItemDecoded, decoded.Lines[0].ItemStatus)
	require.NotNil(t, decoded.Lines[0].UnitPrice)
	require.InDelta(t, 50, *decoded.Lines[0].UnitPrice, 0.001)
	// No price list on the order: default tax applies, not the catalog rate.
	require.InDelta(t, 18, *decoded.Lines[0].TaxRate, 0.001)
}

func TestDecodeUsesPriceListWhenListed(t *testing.T) {
	f := newFixture(t)
	listID := uuid.New()
	listTax := 5.0
	f.prices.prices[listID] = map[uuid.UUID]ListedPrice{f.itemX: {UnitPrice: 42, TaxRate: &listTax}}

	order := f.createOrder(t, actorCtx("sales_rep"), 10)
	f.store.orders[order.ID].PriceListID = &listID

	decoded, err := f.svc.DecodeLine(actorCtx("decoder"), order.ID, order.Lines[0].ID, DecodeItem{InventoryID: f.itemX, Quantity: 10})
	require.NoError(t, err)
	require.InDelta(t, 42, *decoded.Lines[0].UnitPrice, 0.001)
	require.InDelta(t, 5, *decoded.Lines[0].TaxRate, 0.001)
}

func TestDecodeSplitCopiesDescriptionAndNotes(t *testing.T) {
	f := newFixture(t)
	itemY := uuid.New()
	f.catalog.items[itemY] = CatalogInfo{ID: itemY, SKU: "GLV-02", Name: "Latex Gloves", UnitPrice: 30, TaxRate: 12}

	order, err := f.svc.Create(actorCtx("sales_rep"), CreateInput{
		CustomerID: f.customerID,
		Lines:      []CreateLineInput{{Description: "gloves assorted", Quantity: 10, Notes: "ward B"}},
	})
	require.NoError(t, err)

	decoded, err := f.svc.DecodeLineSplit(actorCtx("decoder"), order.ID, order.Lines[0].ID, []DecodeItem{
		{InventoryID: f.itemX, Quantity: 6},
		{InventoryID: itemY, Quantity: 4},
	})
	require.NoError(t, err)
	require.Len(t, decoded.Lines, 2)
	for _, l := range decoded.Lines {
		require.Equal(t, "gloves assorted", l.Description)
		require.Equal(t, "ward B", l.Notes)
		require.Equal(t, ItemDecoded, l.ItemStatus)
	}
	require.Equal(t, 6, decoded.Lines[0].Quantity)
	require.Equal(t, 4, decoded.Lines[1].Quantity)
	require.Equal(t, StageDecodingApproval, decoded.Stage)
}

func TestSubmitRequiresFullDecode(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.Create(actorCtx("sales_rep"), CreateInput{
		CustomerID: f.customerID,
		Lines: []CreateLineInput{
			{Description: "gloves", Quantity: 10},
			{Description: "masks", Quantity: 5},
		},
	})
	require.NoError(t, err)

	_, err = f.svc.DecodeLine(actorCtx("decoder"), order.ID, order.Lines[0].ID, DecodeItem{InventoryID: f.itemX, Quantity: 10})
	require.NoError(t, err)

	_, err = f.svc.SubmitForApproval(actorCtx("decoder"), order.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.tracker.opened)
}

func TestSubmitOpensApproval(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, actorCtx("sales_rep"), 10)
	_, err := f.svc.DecodeLine(actorCtx("decoder"), order.ID, order.Lines[0].ID, DecodeItem{InventoryID: f.itemX, Quantity: 10})
	require.NoError(t, err)

	submitted, err := f.svc.SubmitForApproval(actorCtx("decoder"), order.ID)
	require.NoError(t, err)
	require.Equal(t, StageDecodingApproval, submitted.Stage)
	require.Len(t, f.tracker.opened, 1)
	require.Equal(t, StageDecodingApproval, f.tracker.opened[0].stage)
}

func TestRejectDecodingSendsBackToDraft(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, actorCtx("sales_rep"), 10)
	_, err := f.svc.DecodeLine(actorCtx("decoder"), order.ID, order.Lines[0].ID, DecodeItem{InventoryID: f.itemX, Quantity: 10})
	require.NoError(t, err)

	rejected, err := f.svc.Reject(actorCtx("executive"), order.ID, "wrong SKU mapping")
	require.NoError(t, err)
	require.Equal(t, StageDecoding, rejected.Stage)
	require.Equal(t, StatusDraft, rejected.Status)
	require.Contains(t, rejected.Notes, "wrong SKU mapping")
	require.Len(t, f.tracker.resolved, 1)
	require.Equal(t, "rejected", f.tracker.resolved[0].decision)
}

func TestQuotationRejectResetsToCatalogPrice(t *testing.T) {
	f := newFixture(t)
	listID := uuid.New()
	f.prices.prices[listID] = map[uuid.UUID]ListedPrice{f.itemX: {UnitPrice: 40}}

	order := f.createOrder(t, actorCtx("sales_rep"), 10)
	decoder := actorCtx("decoder")
	exec := actorCtx("executive")
	_, err := f.svc.DecodeLine(decoder, order.ID, order.Lines[0].ID, DecodeItem{InventoryID: f.itemX, Quantity: 10})
	require.NoError(t, err)
	_, err = f.svc.Approve(exec, order.ID, "")
	require.NoError(t, err)

	discount := 7.5
	generated, err := f.svc.MarkQuotationGenerated(exec, order.ID, QuotationInput{PriceListID: &listID, DiscountPct: &discount})
	require.NoError(t, err)
	require.InDelta(t, 40, *generated.Lines[0].UnitPrice, 0.001)

	// The catalog price moved since decode time. Rejection resets the
	// snapshot to the catalog's CURRENT standard price.
	item := f.catalog.items[f.itemX]
	item.UnitPrice = 55
	f.catalog.items[f.itemX] = item

	rejected, err := f.svc.Reject(exec, order.ID, "margins too thin")
	require.NoError(t, err)
	require.Equal(t, StageQuotation, rejected.Stage)
	require.Equal(t, StatusApproved, rejected.Status)
	require.Nil(t, rejected.PriceListID)
	require.Nil(t, rejected.DiscountPct)
	require.InDelta(t, 55, *rejected.Lines[0].UnitPrice, 0.001)
	require.InDelta(t, 12, *rejected.Lines[0].TaxRate, 0.001)
}

func TestRequestPOApprovalRequiresAttachment(t *testing.T) {
	f := newFixture(t)
	exec := actorCtx("executive")
	order := f.createOrder(t, actorCtx("sales_rep"), 10)
	_, err := f.svc.DecodeLine(actorCtx("decoder"), order.ID, order.Lines[0].ID, DecodeItem{InventoryID: f.itemX, Quantity: 10})
	require.NoError(t, err)
	_, err = f.svc.Approve(exec, order.ID, "")
	require.NoError(t, err)
	_, err = f.svc.MarkQuoteSent(exec, order.ID)
	require.NoError(t, err)

	_, err = f.svc.RequestPOApproval(exec, order.ID, POInput{PONumber: "PO-1"})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Stage unchanged and no approval opened.
	got, err := f.svc.Get(exec, order.ID)
	require.NoError(t, err)
	require.Equal(t, StageWaitingPO, got.Stage)
	require.Empty(t, f.tracker.opened)
}

func TestApprovePOResetsLinesForDispatch(t *testing.T) {
	f := newFixture(t)
	order := f.orderAtInventoryCheck(t, 10)
	require.Equal(t, StatusPOApproved, order.Status)
	require.Equal(t, ItemPending, order.Lines[0].ItemStatus)
	// Two approvals resolved on the way here: decoding, then the PO.
	require.Len(t, f.tracker.resolved, 2)
	require.Equal(t, StageDecodingApproval, f.tracker.resolved[0].stage)
	require.Equal(t, StagePOApproval, f.tracker.resolved[1].stage)
	require.Equal(t, "approved", f.tracker.resolved[1].decision)
	require.NotNil(t, order.PONumber)
	require.Equal(t, "PO-77", *order.PONumber)
}

func TestDispatchGuardedTransitionsRejectWrongStage(t *testing.T) {
	f := newFixture(t)
	exec := actorCtx("executive")
	order := f.createOrder(t, actorCtx("sales_rep"), 10)

	_, err := f.svc.MarkPaymentReceived(exec, order.ID)
	require.ErrorIs(t, err, shared.ErrStagePrecondition)

	var stageErr *shared.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageOrderRequest, stageErr.Current)

	_, err = f.svc.MarkQuoteSent(exec, order.ID)
	require.ErrorIs(t, err, shared.ErrStagePrecondition)
}

func TestCancelFromAnyStage(t *testing.T) {
	f := newFixture(t)
	order := f.orderAtInventoryCheck(t, 10)

	cancelled, err := f.svc.Cancel(actorCtx("executive"), order.ID)
	require.NoError(t, err)
	require.Equal(t, StageCancelled, cancelled.Stage)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Contains(t, cancelled.Notes, "Order Cancelled")
}

func TestSalesRepSeesOnlyOwnOrders(t *testing.T) {
	f := newFixture(t)
	mine := actorCtx("sales_rep")
	other := actorCtx("sales_rep")
	f.createOrder(t, mine, 3)
	f.createOrder(t, other, 4)

	summaries, err := f.svc.List(mine, ListFilter{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	all, err := f.svc.List(actorCtx("executive"), ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestGetDeniesForeignOrderToSalesRep(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, actorCtx("sales_rep"), 3)

	_, err := f.svc.Get(actorCtx("sales_rep"), order.ID)
	require.ErrorIs(t, err, shared.ErrAuthorizationDenied)

	got, err := f.svc.Get(actorCtx("executive"), order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
}

func TestReplaceDecodedLines(t *testing.T) {
	f := newFixture(t)
	itemY := uuid.New()
	f.catalog.items[itemY] = CatalogInfo{ID: itemY, SKU: "SYR-05", Name: "Syringe 5ml", UnitPrice: 8, TaxRate: 12}

	order := f.createOrder(t, actorCtx("sales_rep"), 10)
	replaced, err := f.svc.ReplaceDecodedLines(actorCtx("decoder"), order.ID, []DecodeItem{
		{InventoryID: f.itemX, Quantity: 2},
		{InventoryID: itemY, Quantity: 8},
	})
	require.NoError(t, err)
	require.Len(t, replaced.Lines, 2)
	require.Equal(t, "Decoded: Nitrile Gloves", replaced.Lines[0].Description)
	require.Equal(t, ItemDecoded, replaced.Lines[0].ItemStatus)
}
