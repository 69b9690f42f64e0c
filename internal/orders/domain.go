package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// Workflow stages. The graph is fixed: order_request -> decoding <->
// decoding_approval -> quotation -> quotation_generated <->
// waiting_purchase_order -> po_approval <-> inventory_check ->
// payment_pending -> completed, with cancellation reachable from anywhere.
const (
	StageOrderRequest       = "order_request"
	StageDecoding           = "decoding"
	StageDecodingApproval   = "decoding_approval"
	StageQuotation          = "quotation"
	StageQuotationGenerated = "quotation_generated"
	StageWaitingPO          = "waiting_purchase_order"
	StagePOApproval         = "po_approval"
	StageInventoryCheck     = "inventory_check"
	StagePaymentPending     = "payment_pending"
	StageCompleted          = "completed"
	StageCancelled          = "cancelled"
)

// Status labels mirror the stage for display and filtering.
const (
	StatusDraft                    = "draft"
	StatusPendingApproval          = "pending_approval"
	StatusApproved                 = "approved"
	StatusPendingQuotationApproval = "pending_quotation_approval"
	StatusQuoteSent                = "quote_sent"
	StatusPendingPOApproval        = "pending_po_approval"
	StatusPOApproved               = "po_approved"
	StatusPORejected               = "po_rejected"
	StatusPartiallyDispatched      = "partially_dispatched"
	StatusPaymentPending           = "payment_pending"
	StatusCompleted                = "completed"
	StatusCancelled                = "cancelled"
)

// Line item statuses.
const (
	ItemPending   = "pending"
	ItemDecoded   = "decoded"
	ItemPartial   = "partial"
	ItemCompleted = "completed"
)

// Order is the workflow aggregate root. Notes hold the running action log.
type Order struct {
	ID          uuid.UUID  `json:"id"`
	OrderNumber string     `json:"order_number"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	SalesRepID  uuid.UUID  `json:"sales_rep_id"`
	Status      string     `json:"status"`
	Stage       string     `json:"workflow_stage"`
	Priority    string     `json:"priority"`
	Source      string     `json:"source"`
	PONumber    *string    `json:"po_number,omitempty"`
	PODate      *time.Time `json:"po_date,omitempty"`
	POAmount    *float64   `json:"po_amount,omitempty"`
	PriceListID *uuid.UUID `json:"price_list_id,omitempty"`
	DiscountPct *float64   `json:"discount_percentage,omitempty"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Lines []Line `json:"items,omitempty"`
}

// Line is one requested position of an order. A nil InventoryID means the
// line has not been decoded yet. UnitPrice and TaxRate are snapshots taken at
// decode time; downstream calculations never re-read the live catalog price.
type Line struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	Description string     `json:"item_description"`
	Quantity    int        `json:"quantity"`
	InventoryID *uuid.UUID `json:"inventory_id,omitempty"`
	DecodedBy   *uuid.UUID `json:"decoded_by,omitempty"`
	UnitPrice   *float64   `json:"unit_price,omitempty"`
	TaxRate     *float64   `json:"tax_rate,omitempty"`
	ItemStatus  string     `json:"item_status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsFullyDecoded reports whether every line carries a catalog reference.
func (o *Order) IsFullyDecoded() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for _, l := range o.Lines {
		if l.InventoryID == nil {
			return false
		}
	}
	return true
}

// RequireStage returns a StageError unless the order sits in one of the
// given stages. Stage guards are hard: callers must re-fetch and re-decide.
func (o *Order) RequireStage(stages ...string) error {
	for _, s := range stages {
		if o.Stage == s {
			return nil
		}
	}
	required := stages[0]
	if len(stages) > 1 {
		required = fmt.Sprintf("%v", stages)
	}
	return shared.NewStageError(o.Stage, required)
}

// AppendAction adds a timestamped entry to the order's running notes log.
func (o *Order) AppendAction(action string, actor *shared.Actor, details string, at time.Time) {
	entry := fmt.Sprintf("[%s] %s by %s (%s)", at.UTC().Format("2006-01-02 15:04:05 UTC"), action, actor.FullName, actor.Role)
	if details != "" {
		entry += "\n" + details
	}
	if o.Notes == "" {
		o.Notes = entry
	} else {
		o.Notes += "\n\n" + entry
	}
	o.UpdatedAt = at.UTC()
}
