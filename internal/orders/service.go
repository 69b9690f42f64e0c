package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/rbac"
	"github.com/velora-oms/velora-oms/internal/shared"
)

// Store is the persistence port of the service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Summary, error)
}

// ApprovalTracker records approval requests and decisions. Bookkeeping is
// best-effort: failures are logged, never block a committed transition.
type ApprovalTracker interface {
	Open(ctx context.Context, entityType string, entityID uuid.UUID, stage string, requestedBy uuid.UUID) error
	Resolve(ctx context.Context, entityType string, entityID uuid.UUID, stage, decision string, decidedBy uuid.UUID, comments string) error
}

// PermissionChecker gates approval decisions.
type PermissionChecker interface {
	Authorize(ctx context.Context, userID uuid.UUID, permission string) error
}

// AttachmentCounter answers the PO-approval attachment guard.
type AttachmentCounter interface {
	CountForEntity(ctx context.Context, entityType string, entityID uuid.UUID) (int, error)
}

// CatalogInfo is the catalog snapshot consulted at decode and re-price time.
type CatalogInfo struct {
	ID        uuid.UUID
	SKU       string
	Name      string
	UnitPrice float64
	TaxRate   float64
}

// CatalogReader looks up catalog items.
type CatalogReader interface {
	ItemInfo(ctx context.Context, id uuid.UUID) (*CatalogInfo, error)
}

// CustomerDirectory verifies customer references.
type CustomerDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

// ListedPrice is a price-list override for one item.
type ListedPrice struct {
	UnitPrice float64
	TaxRate   *float64
}

// PriceLookup resolves price-list overrides. shared.ErrNotFound means the
// item is not listed and catalog pricing applies.
type PriceLookup interface {
	LookupPrice(ctx context.Context, listID, inventoryID uuid.UUID) (*ListedPrice, error)
}

// TransitionObserver counts committed workflow transitions.
type TransitionObserver interface {
	ObserveTransition(stage string)
}

// Service drives the order workflow state machine.
type Service struct {
	store       Store
	approvals   ApprovalTracker
	perms       PermissionChecker
	attachments AttachmentCounter
	catalog     CatalogReader
	customers   CustomerDirectory
	prices      PriceLookup
	metrics     TransitionObserver
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, approvals ApprovalTracker, perms PermissionChecker,
	attachments AttachmentCounter, catalog CatalogReader, customers CustomerDirectory,
	prices PriceLookup, metrics TransitionObserver, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		approvals:   approvals,
		perms:       perms,
		attachments: attachments,
		catalog:     catalog,
		customers:   customers,
		prices:      prices,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

func requireActor(ctx context.Context) (*shared.Actor, error) {
	actor := shared.ActorFromContext(ctx)
	if actor == nil {
		return nil, fmt.Errorf("%w: no authenticated actor", shared.ErrAuthorizationDenied)
	}
	return actor, nil
}

func (s *Service) observe(stage string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(stage)
	}
}

func (s *Service) openApproval(ctx context.Context, orderID uuid.UUID, stage string, requestedBy uuid.UUID) {
	if err := s.approvals.Open(ctx, shared.EntityOrder, orderID, stage, requestedBy); err != nil {
		s.logger.Warn("open approval", slog.String("order_id", orderID.String()), slog.Any("error", err))
	}
}

func (s *Service) resolveApproval(ctx context.Context, orderID uuid.UUID, stage, decision string, decidedBy uuid.UUID, comments string) {
	if err := s.approvals.Resolve(ctx, shared.EntityOrder, orderID, stage, decision, decidedBy, comments); err != nil {
		s.logger.Warn("resolve approval", slog.String("order_id", orderID.String()), slog.Any("error", err))
	}
}

// CreateLineInput is one requested position on a new order.
type CreateLineInput struct {
	Description string
	Quantity    int
	Notes       string
}

// CreateInput carries a new order request.
type CreateInput struct {
	CustomerID uuid.UUID
	Priority   string
	Source     string
	Notes      string
	Lines      []CreateLineInput
}

// Create opens a new order in stage order_request.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: an order needs at least one line", shared.ErrValidation)
	}
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line quantity must be positive", shared.ErrValidation)
		}
	}
	if err := s.customers.Exists(ctx, in.CustomerID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %s", shared.ErrNotFound, in.CustomerID)
		}
		return nil, err
	}

	now := s.now().UTC()
	priority := in.Priority
	if priority == "" {
		priority = "normal"
	}
	order := &Order{
		ID:         uuid.New(),
		CustomerID: in.CustomerID,
		SalesRepID: actor.ID,
		Status:     StatusDraft,
		Stage:      StageOrderRequest,
		Priority:   priority,
		Source:     in.Source,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, l := range in.Lines {
		order.Lines = append(order.Lines, Line{
			ID:          uuid.New(),
			OrderID:     order.ID,
			Description: l.Description,
			Quantity:    l.Quantity,
			ItemStatus:  ItemPending,
			Notes:       l.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	order.AppendAction("Order Created", actor, "", now)

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		number, err := tx.NextOrderNumber(ctx, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.observe(StageOrderRequest)
	s.logger.Info("order created", slog.String("order_number", order.OrderNumber), slog.String("customer_id", in.CustomerID.String()))
	return order, nil
}

// Get loads an order, enforcing sales-rep ownership for non-workflow roles.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanAccessAllOrders(actor.Role) && order.SalesRepID != actor.ID {
		return nil, fmt.Errorf("%w: order belongs to another sales representative", shared.ErrAuthorizationDenied)
	}
	return order, nil
}

// List returns order summaries; non-workflow roles only see their own orders.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Summary, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !rbac.CanAccessAllOrders(actor.Role) {
		f.SalesRepID = &actor.ID
	}
	return s.store.List(ctx, f)
}

// Cancel soft-deletes an order from any stage. No further transitions apply.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.transition(ctx, id, "Order Cancelled", "", func(ctx context.Context, order *Order, _ TxStore) error {
		order.Status = StatusCancelled
		order.Stage = StageCancelled
		return nil
	})
}

// DecodeItem maps one line (or part of it) to a catalog item.
type DecodeItem struct {
	InventoryID uuid.UUID
	Quantity    int
	UnitPrice   *float64
	TaxRate     *float64
}

// linePricing resolves the decode-time price snapshot: explicit override,
// then the order's price list, then the catalog standard price with the
// default tax rate.
func (s *Service) linePricing(ctx context.Context, order *Order, in DecodeItem, info *CatalogInfo) (float64, float64, error) {
	price := info.UnitPrice
	tax := 18.0
	if order.PriceListID != nil {
		listed, err := s.prices.LookupPrice(ctx, *order.PriceListID, in.InventoryID)
		switch {
		case err == nil:
			price = listed.UnitPrice
			if listed.TaxRate != nil {
				tax = *listed.TaxRate
			}
		case errors.Is(err, shared.ErrNotFound):
			// not listed, catalog price stands
		default:
			return 0, 0, err
		}
	}
	if in.UnitPrice != nil {
		price = *in.UnitPrice
	}
	if in.TaxRate != nil {
		tax = *in.TaxRate
	}
	return price, tax, nil
}

// DecodeLine maps a single line to one catalog item.
func (s *Service) DecodeLine(ctx context.Context, orderID, lineID uuid.UUID, in DecodeItem) (*Order, error) {
	return s.DecodeLineSplit(ctx, orderID, lineID, []DecodeItem{in})
}

// DecodeLineSplit maps one requested line to one or more catalog items. The
// first mapping updates the original line; each further mapping becomes a new
// line carrying the original description and notes forward. When the last
// undecoded line is resolved the order advances to decoding_approval.
func (s *Service) DecodeLineSplit(ctx context.Context, orderID, lineID uuid.UUID, items []DecodeItem) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no decode mappings supplied", shared.ErrValidation)
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: decode quantity must be positive", shared.ErrValidation)
		}
	}

	var result *Order
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		var original *Line
		for i := range order.Lines {
			if order.Lines[i].ID == lineID {
				original = &order.Lines[i]
			}
		}
		if original == nil {
			return fmt.Errorf("%w: order line %s", shared.ErrNotFound, lineID)
		}

		now := s.now().UTC()
		description := original.Description
		notes := original.Notes

		for i, it := range items {
			info, err := s.catalog.ItemInfo(ctx, it.InventoryID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return fmt.Errorf("%w: catalog item %s", shared.ErrNotFound, it.InventoryID)
				}
				return err
			}
			price, tax, err := s.linePricing(ctx, order, it, info)
			if err != nil {
				return err
			}
			if i == 0 {
				original.InventoryID = &it.InventoryID
				original.DecodedBy = &actor.ID
				original.Quantity = it.Quantity
				original.UnitPrice = &price
				original.TaxRate = &tax
				original.ItemStatus = ItemDecoded
				original.UpdatedAt = now
				if err := tx.UpdateLine(ctx, original); err != nil {
					return err
				}
				continue
			}
			invID := it.InventoryID
			line := Line{
				ID:          uuid.New(),
				OrderID:     orderID,
				Description: description,
				Quantity:    it.Quantity,
				InventoryID: &invID,
				DecodedBy:   &actor.ID,
				UnitPrice:   &price,
				TaxRate:     &tax,
				ItemStatus:  ItemDecoded,
				Notes:       notes,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.InsertLine(ctx, &line); err != nil {
				return err
			}
			order.Lines = append(order.Lines, line)
		}

		if order.IsFullyDecoded() && (order.Stage == StageOrderRequest || order.Stage == StageDecoding) {
			order.Stage = StageDecodingApproval
			order.Status = StatusPendingApproval
		}
		order.AppendAction("Items Decoded", actor, fmt.Sprintf("%d catalog mapping(s) for line %s", len(items), lineID), now)
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Stage == StageDecodingApproval {
		s.observe(StageDecodingApproval)
	}
	return result, nil
}

// ReplaceDecodedLines discards every existing line and installs the supplied
// decoded set. Used by catalogers to rework a decode wholesale.
func (s *Service) ReplaceDecodedLines(ctx context.Context, orderID uuid.UUID, items []DecodeItem) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no decoded lines supplied", shared.ErrValidation)
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: decode quantity must be positive", shared.ErrValidation)
		}
	}

	var result *Order
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.DeleteAllLines(ctx, orderID); err != nil {
			return err
		}
		now := s.now().UTC()
		order.Lines = order.Lines[:0]
		for _, it := range items {
			info, err := s.catalog.ItemInfo(ctx, it.InventoryID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return fmt.Errorf("%w: catalog item %s", shared.ErrNotFound, it.InventoryID)
				}
				return err
			}
			price, tax, err := s.linePricing(ctx, order, it, info)
			if err != nil {
				return err
			}
			invID := it.InventoryID
			line := Line{
				ID:          uuid.New(),
				OrderID:     orderID,
				Description: "Decoded: " + info.Name,
				Quantity:    it.Quantity,
				InventoryID: &invID,
				DecodedBy:   &actor.ID,
				UnitPrice:   &price,
				TaxRate:     &tax,
				ItemStatus:  ItemDecoded,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.InsertLine(ctx, &line); err != nil {
				return err
			}
			order.Lines = append(order.Lines, line)
		}
		order.AppendAction("Decoded Items Replaced", actor, fmt.Sprintf("%d decoded line(s)", len(items)), now)
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitForApproval moves a fully decoded order into decoding_approval and
// opens the pending approval record.
func (s *Service) SubmitForApproval(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.transition(ctx, orderID, "Submitted For Approval", "", func(ctx context.Context, order *Order, _ TxStore) error {
		if !order.IsFullyDecoded() {
			return fmt.Errorf("%w: all lines must be decoded before submission", shared.ErrValidation)
		}
		order.Stage = StageDecodingApproval
		order.Status = StatusPendingApproval
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.openApproval(ctx, orderID, StageDecodingApproval, actor.ID)
	s.observe(StageDecodingApproval)
	return order, nil
}

// Approve applies the approval transition for the order's current stage:
// decoding_approval -> quotation, quotation_generated ->
// waiting_purchase_order, po_approval -> inventory_check.
func (s *Service) Approve(ctx context.Context, orderID uuid.UUID, comments string) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Authorize(ctx, actor.ID, rbac.PermOrderApprove); err != nil {
		return nil, err
	}

	var resolveStage, nextStage string
	order, err := s.transition(ctx, orderID, "Approved", comments, func(ctx context.Context, order *Order, tx TxStore) error {
		switch order.Stage {
		case StageDecodingApproval:
			resolveStage = StageDecodingApproval
			order.Stage = StageQuotation
			order.Status = StatusApproved
		case StageQuotationGenerated:
			order.Stage = StageWaitingPO
			order.Status = StatusQuoteSent
		case StagePOApproval:
			resolveStage = StagePOApproval
			order.Stage = StageInventoryCheck
			order.Status = StatusPOApproved
			// Decoded lines become eligible for dispatch.
			now := s.now().UTC()
			for i := range order.Lines {
				if order.Lines[i].InventoryID != nil {
					order.Lines[i].ItemStatus = ItemPending
					order.Lines[i].UpdatedAt = now
					if err := tx.UpdateLine(ctx, &order.Lines[i]); err != nil {
						return err
					}
				}
			}
		default:
			return order.RequireStage(StageDecodingApproval, StageQuotationGenerated, StagePOApproval)
		}
		nextStage = order.Stage
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resolveStage != "" {
		s.resolveApproval(ctx, orderID, resolveStage, "approved", actor.ID, comments)
	}
	s.observe(nextStage)
	return order, nil
}

// Reject bounces the order backward from its current approval stage:
// decoding_approval -> decoding, quotation_generated -> quotation (snapshots
// reset to catalog standard pricing), po_approval -> waiting_purchase_order.
func (s *Service) Reject(ctx context.Context, orderID uuid.UUID, reason string) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Authorize(ctx, actor.ID, rbac.PermOrderApprove); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", shared.ErrValidation)
	}

	var resolveStage, nextStage string
	order, err := s.transition(ctx, orderID, "Rejected", reason, func(ctx context.Context, order *Order, tx TxStore) error {
		switch order.Stage {
		case StageDecodingApproval:
			resolveStage = StageDecodingApproval
			order.Stage = StageDecoding
			order.Status = StatusDraft
		case StageQuotationGenerated:
			order.Stage = StageQuotation
			order.Status = StatusApproved
			order.PriceListID = nil
			order.DiscountPct = nil
			// Undo price-list pricing: every decoded line's snapshot goes
			// back to the catalog's current standard values.
			now := s.now().UTC()
			for i := range order.Lines {
				line := &order.Lines[i]
				if line.InventoryID == nil {
					continue
				}
				info, err := s.catalog.ItemInfo(ctx, *line.InventoryID)
				if err != nil {
					return err
				}
				price := info.UnitPrice
				tax := info.TaxRate
				line.UnitPrice = &price
				line.TaxRate = &tax
				line.UpdatedAt = now
				if err := tx.UpdateLine(ctx, line); err != nil {
					return err
				}
			}
		case StagePOApproval:
			resolveStage = StagePOApproval
			order.Stage = StageWaitingPO
			order.Status = StatusPORejected
		default:
			return order.RequireStage(StageDecodingApproval, StageQuotationGenerated, StagePOApproval)
		}
		nextStage = order.Stage
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resolveStage != "" {
		s.resolveApproval(ctx, orderID, resolveStage, "rejected", actor.ID, reason)
	}
	s.observe(nextStage)
	return order, nil
}

// QuotationInput selects pricing for the quotation.
type QuotationInput struct {
	PriceListID *uuid.UUID
	DiscountPct *float64
}

// MarkQuotationGenerated persists the chosen price list and discount and
// re-prices decoded lines from the list where they are listed.
func (s *Service) MarkQuotationGenerated(ctx context.Context, orderID uuid.UUID, in QuotationInput) (*Order, error) {
	if in.DiscountPct != nil && (*in.DiscountPct < 0 || *in.DiscountPct > 100) {
		return nil, fmt.Errorf("%w: discount must be between 0 and 100", shared.ErrValidation)
	}
	order, err := s.transition(ctx, orderID, "Quotation Generated", "", func(ctx context.Context, order *Order, tx TxStore) error {
		if err := order.RequireStage(StageQuotation); err != nil {
			return err
		}
		order.PriceListID = in.PriceListID
		order.DiscountPct = in.DiscountPct
		if in.PriceListID != nil {
			now := s.now().UTC()
			for i := range order.Lines {
				line := &order.Lines[i]
				if line.InventoryID == nil {
					continue
				}
				listed, err := s.prices.LookupPrice(ctx, *in.PriceListID, *line.InventoryID)
				if errors.Is(err, shared.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				price := listed.UnitPrice
				line.UnitPrice = &price
				if listed.TaxRate != nil {
					tax := *listed.TaxRate
					line.TaxRate = &tax
				}
				line.UpdatedAt = now
				if err := tx.UpdateLine(ctx, line); err != nil {
					return err
				}
			}
		}
		order.Stage = StageQuotationGenerated
		order.Status = StatusPendingQuotationApproval
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observe(StageQuotationGenerated)
	return order, nil
}

// MarkQuoteSent skips quotation bookkeeping and moves straight to waiting
// for the customer's purchase order.
func (s *Service) MarkQuoteSent(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := s.transition(ctx, orderID, "Quote Sent", "", func(ctx context.Context, order *Order, _ TxStore) error {
		if err := order.RequireStage(StageQuotation); err != nil {
			return err
		}
		order.Stage = StageWaitingPO
		order.Status = StatusQuoteSent
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observe(StageWaitingPO)
	return order, nil
}

// POInput carries the customer's purchase order metadata.
type POInput struct {
	PONumber string
	PODate   *time.Time
	POAmount *float64
}

// RequestPOApproval records PO metadata and opens the po_approval gate. The
// order must carry at least one attachment (the PO document).
func (s *Service) RequestPOApproval(ctx context.Context, orderID uuid.UUID, in POInput) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.transition(ctx, orderID, "PO Approval Requested", in.PONumber, func(ctx context.Context, order *Order, _ TxStore) error {
		if err := order.RequireStage(StageWaitingPO); err != nil {
			return err
		}
		count, err := s.attachments.CountForEntity(ctx, shared.EntityOrder, orderID)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: at least one attachment is required to request PO approval", shared.ErrValidation)
		}
		if in.PONumber != "" {
			order.PONumber = &in.PONumber
		}
		order.PODate = in.PODate
		order.POAmount = in.POAmount
		order.Stage = StagePOApproval
		order.Status = StatusPendingPOApproval
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.openApproval(ctx, orderID, StagePOApproval, actor.ID)
	s.observe(StagePOApproval)
	return order, nil
}

// MarkPaymentReceived closes the order.
func (s *Service) MarkPaymentReceived(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := s.transition(ctx, orderID, "Payment Received", "", func(ctx context.Context, order *Order, _ TxStore) error {
		if err := order.RequireStage(StagePaymentPending); err != nil {
			return err
		}
		order.Stage = StageCompleted
		order.Status = StatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observe(StageCompleted)
	return order, nil
}

// transition runs one guarded state change: lock the order row, apply fn,
// append the action log entry, and persist. All checks happen before any
// write; the transaction either fully commits or leaves no trace.
func (s *Service) transition(ctx context.Context, orderID uuid.UUID, action, details string,
	fn func(context.Context, *Order, TxStore) error) (*Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	var result *Order
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := fn(ctx, order, tx); err != nil {
			return err
		}
		order.AppendAction(action, actor, details, s.now().UTC())
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order transition", slog.String("order_id", orderID.String()),
		slog.String("action", action), slog.String("stage", result.Stage))
	return result, nil
}
