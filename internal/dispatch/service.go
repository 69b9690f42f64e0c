package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/orders"
	"github.com/velora-oms/velora-oms/internal/shared"
)

// Store is the persistence port of the engine.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	Get(ctx context.Context, id uuid.UUID) (*Dispatch, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]Dispatch, error)
}

// LineObserver counts committed dispatch lines.
type LineObserver interface {
	ObserveDispatchLines(n int)
}

// Service creates validated shipments and reconciles order and ledger state.
type Service struct {
	store   Store
	metrics LineObserver
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, metrics LineObserver, logger *slog.Logger) *Service {
	return &Service{store: store, metrics: metrics, logger: logger, now: time.Now}
}

// CreateLineInput allocates a quantity against one order line.
type CreateLineInput struct {
	OrderLineID uuid.UUID
	InventoryID uuid.UUID
	Quantity    int
}

// CreateInput carries a new shipment request.
type CreateInput struct {
	OrderID        uuid.UUID
	InvoiceRef     *string
	DispatchDate   time.Time
	CourierName    string
	TrackingNumber string
	Notes          string
	Lines          []CreateLineInput
}

// Create validates and persists a dispatch. All checks run against a locked,
// consistent snapshot before any write: stage guard, per-line ownership and
// outstanding check, then stock check. Either every line, every ledger
// decrement and the order rollup commit together, or nothing does.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Dispatch, error) {
	actor := shared.ActorFromContext(ctx)
	if actor == nil {
		return nil, fmt.Errorf("%w: no authenticated actor", shared.ErrAuthorizationDenied)
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: a dispatch needs at least one line", shared.ErrValidation)
	}
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: dispatch quantity must be positive", shared.ErrValidation)
		}
	}

	now := s.now().UTC()
	dispatchDate := in.DispatchDate
	if dispatchDate.IsZero() {
		dispatchDate = now
	}

	created := &Dispatch{
		ID:             uuid.New(),
		OrderID:        in.OrderID,
		InvoiceRef:     in.InvoiceRef,
		DispatchDate:   dispatchDate,
		CourierName:    in.CourierName,
		TrackingNumber: in.TrackingNumber,
		Status:         "dispatched",
		Notes:          in.Notes,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		header, lines, err := tx.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if header.Stage != orders.StageInventoryCheck {
			return shared.NewStageError(header.Stage, orders.StageInventoryCheck)
		}

		byID := make(map[uuid.UUID]*orderLine, len(lines))
		for i := range lines {
			byID[lines[i].ID] = &lines[i]
		}

		// Pass 1: validate every requested line against outstanding and stock.
		// Totals accumulate across entries, so a request naming the same order
		// line or catalog item more than once is checked against the combined
		// quantity, not each entry in isolation.
		dispatched := make(map[uuid.UUID]int, len(in.Lines))
		stock := make(map[uuid.UUID]int, len(in.Lines))
		for _, req := range in.Lines {
			line, ok := byID[req.OrderLineID]
			if !ok {
				return fmt.Errorf("%w: order line %s", shared.ErrNotFound, req.OrderLineID)
			}
			already, ok := dispatched[req.OrderLineID]
			if !ok {
				already, err = tx.DispatchedQty(ctx, req.OrderLineID)
				if err != nil {
					return err
				}
			}
			outstanding := line.Quantity - already
			if req.Quantity > outstanding {
				return shared.NewQuantityError(
					fmt.Sprintf("outstanding quantity for %q", line.Description), req.Quantity, outstanding)
			}
			dispatched[req.OrderLineID] = already + req.Quantity
			onHand, ok := stock[req.InventoryID]
			if !ok {
				onHand, err = tx.StockOnHand(ctx, req.InventoryID)
				if err != nil {
					return err
				}
			}
			if req.Quantity > onHand {
				return shared.NewQuantityError("available stock", req.Quantity, onHand)
			}
			stock[req.InventoryID] = onHand - req.Quantity
		}

		// Pass 2: all lines validated, apply the effects.
		number, err := tx.NextDispatchNumber(ctx, now)
		if err != nil {
			return err
		}
		created.DispatchNumber = number
		if err := tx.InsertDispatch(ctx, created); err != nil {
			return err
		}
		for _, req := range in.Lines {
			line := byID[req.OrderLineID]
			dl := Line{
				ID:          uuid.New(),
				DispatchID:  created.ID,
				OrderLineID: req.OrderLineID,
				InventoryID: req.InventoryID,
				Quantity:    req.Quantity,
			}
			if err := tx.InsertLine(ctx, &dl); err != nil {
				return err
			}
			created.Lines = append(created.Lines, dl)
			if err := tx.DecrementStock(ctx, req.InventoryID, req.Quantity); err != nil {
				return err
			}
			// dispatched already holds the line's full post-request total.
			total := dispatched[req.OrderLineID]
			status := orders.ItemPartial
			if total >= line.Quantity {
				status = orders.ItemCompleted
			}
			line.ItemStatus = status
			if err := tx.UpdateOrderLineStatus(ctx, req.OrderLineID, status); err != nil {
				return err
			}
		}

		// Rollup: all lines complete moves the order on to payment;
		// otherwise it stays in inventory_check as partially dispatched.
		allComplete := true
		for i := range lines {
			if lines[i].ItemStatus != orders.ItemCompleted {
				allComplete = false
				break
			}
		}
		stage := header.Stage
		status := orders.StatusPartiallyDispatched
		if allComplete {
			stage = orders.StagePaymentPending
			status = orders.StatusPaymentPending
		}
		notes := header.Notes
		entry := fmt.Sprintf("[%s] Dispatch %s Created by %s (%s)", now.Format("2006-01-02 15:04:05 UTC"), number, actor.FullName, actor.Role)
		if notes == "" {
			notes = entry
		} else {
			notes += "\n\n" + entry
		}
		return tx.UpdateOrderRollup(ctx, in.OrderID, stage, status, notes, now)
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDispatchLines(len(created.Lines))
	}
	s.logger.Info("dispatch created", slog.String("dispatch_number", created.DispatchNumber),
		slog.String("order_id", in.OrderID.String()), slog.Int("lines", len(created.Lines)))
	return created, nil
}

// Get loads a dispatch with nested catalog details.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Dispatch, error) {
	return s.store.Get(ctx, id)
}

// ListForOrder returns all dispatches of an order, newest first.
func (s *Service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]Dispatch, error) {
	return s.store.ListForOrder(ctx, orderID)
}
