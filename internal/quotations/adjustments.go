package quotations

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quotedesk/quotedesk/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// Breakdown itemises how a final total was derived from the original total.
type Breakdown struct {
	OriginalTotal     decimal.Decimal `json:"original_total"`
	DurationMonths    int             `json:"duration_months"`
	MonthlyRate       decimal.Decimal `json:"monthly_rate"`
	FreeMonths        int             `json:"free_months"`
	BillableMonths    int             `json:"billable_months"`
	SubtotalAfterFree decimal.Decimal `json:"subtotal_after_free"`
	DiscountPct       decimal.Decimal `json:"discount_pct"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	FinalTotal        decimal.Decimal `json:"final_total"`
	Savings           decimal.Decimal `json:"savings"`
}

// ComputeAdjustment applies free months first and the percentage discount
// second. The order is fixed: the discount is taken from the amount left
// after free months, never from the full original total.
func ComputeAdjustment(original decimal.Decimal, durationMonths, freeMonths int, discountPct decimal.Decimal) (Breakdown, error) {
	if durationMonths <= 0 {
		return Breakdown{}, fmt.Errorf("%w: duration_months must be positive", shared.ErrValidation)
	}
	if freeMonths < 0 || freeMonths >= durationMonths {
		return Breakdown{}, fmt.Errorf("%w: free months must be between 0 and %d", shared.ErrValidation, durationMonths-1)
	}
	if discountPct.IsNegative() || discountPct.GreaterThan(hundred) {
		return Breakdown{}, fmt.Errorf("%w: discount must be between 0 and 100", shared.ErrValidation)
	}

	duration := decimal.NewFromInt(int64(durationMonths))
	billable := durationMonths - freeMonths
	afterFree := original.Mul(decimal.NewFromInt(int64(billable))).Div(duration).Round(2)
	discount := afterFree.Mul(discountPct).Div(hundred).Round(2)
	final := afterFree.Sub(discount)

	return Breakdown{
		OriginalTotal:     original,
		DurationMonths:    durationMonths,
		MonthlyRate:       original.Div(duration).Round(2),
		FreeMonths:        freeMonths,
		BillableMonths:    billable,
		SubtotalAfterFree: afterFree,
		DiscountPct:       discountPct,
		DiscountAmount:    discount,
		FinalTotal:        final,
		Savings:           original.Sub(final),
	}, nil
}

func validateDiscount(pct decimal.Decimal, comment string) error {
	if !pct.IsPositive() || pct.GreaterThan(hundred) {
		return fmt.Errorf("%w: discount percentage must be greater than 0 and at most 100", shared.ErrValidation)
	}
	return validateComment(comment)
}

func validateFreeMonths(months, durationMonths int, comment string) error {
	if months <= 0 {
		return fmt.Errorf("%w: free months must be positive", shared.ErrValidation)
	}
	if months >= durationMonths {
		return fmt.Errorf("%w: free months (%d) must be less than the contract duration (%d)", shared.ErrValidation, months, durationMonths)
	}
	return validateComment(comment)
}

func validateComment(comment string) error {
	if strings.TrimSpace(comment) == "" {
		return fmt.Errorf("%w: a justification comment is required", shared.ErrValidation)
	}
	return nil
}

func checkAdjustable(q *Quotation, actor shared.Actor) error {
	if !actor.Can(shared.PermQuotationAdjust) {
		return fmt.Errorf("%w: only admins and supervisors may adjust quotations", shared.ErrAuthorization)
	}
	if q.State != StatePending {
		return fmt.Errorf("%w: quotation %d is %s, adjustments require %s", shared.ErrValidation, q.ID, q.State, StatePending)
	}
	return nil
}
