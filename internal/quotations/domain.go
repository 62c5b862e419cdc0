package quotations

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quotedesk/quotedesk/internal/shared"
)

// State is the resting state of a quotation.
type State string

const (
	StatePending         State = "pending"
	StatePendingApproval State = "pending_approval"
	StateEffective       State = "effective"
	StateRejected        State = "rejected"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StatePendingApproval, StateEffective, StateRejected:
		return true
	}
	return false
}

// Trigger is a requested state change.
type Trigger string

const (
	TriggerApprove     Trigger = "approve"
	TriggerReject      Trigger = "reject"
	TriggerEffective   Trigger = "effective"
	// TriggerForceReject rejects from any state.
	TriggerForceReject Trigger = "force_reject"
)

// ParseTrigger validates a raw trigger. "approved" is accepted as an alias of
// approve.
func ParseTrigger(raw string) (Trigger, error) {
	switch t := Trigger(strings.ToLower(strings.TrimSpace(raw))); t {
	case TriggerApprove, TriggerReject, TriggerEffective, TriggerForceReject:
		return t, nil
	case "approved":
		return TriggerApprove, nil
	default:
		return "", fmt.Errorf("%w: unknown trigger %q", shared.ErrValidation, raw)
	}
}

// PDF generation outcomes reported after an adjustment.
const (
	PDFStatusRegenerated   = "regenerated"
	PDFStatusPendingManual = "pending_manual_regeneration"
)

const (
	auditEntity         = "quotation"
	defaultListLimit    = 50
	maxListLimit        = 200
	documentContentType = "application/pdf"
)

// Quotation is a priced proposal for one client.
type Quotation struct {
	ID             int64            `json:"id" db:"id"`
	SalespersonID  int64            `json:"salesperson_id" db:"salesperson_id"`
	ClientID       int64            `json:"client_id" db:"client_id"`
	DurationMonths int              `json:"duration_months" db:"duration_months"`
	Total          decimal.Decimal  `json:"total" db:"total"`
	OriginalTotal  *decimal.Decimal `json:"original_total,omitempty" db:"original_total"`
	State          State            `json:"state" db:"state"`

	DiscountPct   decimal.Decimal `json:"discount_pct" db:"discount_pct"`
	FreeMonths    int             `json:"free_months" db:"free_months"`
	HasDiscount   bool            `json:"has_discount" db:"has_discount"`
	HasFreeMonths bool            `json:"has_free_months" db:"has_free_months"`

	ApprovedBy     *int64     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedByName *string    `json:"approved_by_name,omitempty" db:"approved_by_name"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectedBy     *int64     `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedByName *string    `json:"rejected_by_name,omitempty" db:"rejected_by_name"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`

	DiscountBy        *int64     `json:"discount_by,omitempty" db:"discount_by"`
	DiscountByName    *string    `json:"discount_by_name,omitempty" db:"discount_by_name"`
	DiscountAt        *time.Time `json:"discount_at,omitempty" db:"discount_at"`
	DiscountComment   *string    `json:"discount_comment,omitempty" db:"discount_comment"`
	FreeMonthsBy      *int64     `json:"free_months_by,omitempty" db:"free_months_by"`
	FreeMonthsByName  *string    `json:"free_months_by_name,omitempty" db:"free_months_by_name"`
	FreeMonthsAt      *time.Time `json:"free_months_at,omitempty" db:"free_months_at"`
	FreeMonthsComment *string    `json:"free_months_comment,omitempty" db:"free_months_comment"`

	Comment             *string `json:"comment,omitempty" db:"comment"`
	Observations        *string `json:"observations,omitempty" db:"observations"`
	IncludeUnitPrices   bool    `json:"include_unit_prices" db:"include_unit_prices"`
	IncludeObservations bool    `json:"include_observations" db:"include_observations"`
	PDFGenerated        bool    `json:"pdf_generated" db:"pdf_generated"`
	RequiresApproval    bool    `json:"requires_approval" db:"requires_approval"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	Lines     []Line    `json:"lines,omitempty" db:"-"`
}

// Baseline returns the pre-adjustment total: OriginalTotal once set, else
// the current total.
func (q *Quotation) Baseline() decimal.Decimal {
	if q.OriginalTotal != nil {
		return *q.OriginalTotal
	}
	return q.Total
}

// VisibleTo reports whether actor may read q. Salespeople only see their own.
func (q *Quotation) VisibleTo(actor shared.Actor) bool {
	return actor.Can(shared.PermQuotationViewAll) || q.SalespersonID == actor.ID
}

// Line is one priced (service, category) row of a quotation.
type Line struct {
	ID             int64           `json:"id" db:"id"`
	QuotationID    int64           `json:"quotation_id" db:"quotation_id"`
	ServiceID      int64           `json:"service_id" db:"service_id"`
	ServiceName    string          `json:"service_name,omitempty" db:"service_name"`
	CategoryID     int64           `json:"category_id" db:"category_id"`
	UnitID         int64           `json:"unit_id" db:"unit_id"`
	Quantity       int64           `json:"quantity" db:"quantity"`
	DurationMonths int             `json:"duration_months" db:"duration_months"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal       decimal.Decimal `json:"subtotal" db:"subtotal"`
	Explanation    string          `json:"explanation,omitempty" db:"explanation"`
}

// LineSubtotal is quantity × unit price × duration.
func LineSubtotal(quantity int64, unitPrice decimal.Decimal, durationMonths int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity)).Mul(decimal.NewFromInt(int64(durationMonths)))
}

// Document is a rendered quotation PDF.
type Document struct {
	ID          string    `json:"id" db:"id"`
	QuotationID int64     `json:"quotation_id" db:"quotation_id"`
	ContentType string    `json:"content_type" db:"content_type"`
	Content     []byte    `json:"-" db:"content"`
	CreatedBy   int64     `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ListFilter narrows List results.
type ListFilter struct {
	State         *State
	ClientID      *int64
	SalespersonID *int64
	Limit         int
	Offset        int
}
