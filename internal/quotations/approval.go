package quotations

import "github.com/shopspring/decimal"

// PriceCheck pairs the price used for a service with its catalog minimum.
type PriceCheck struct {
	ServiceID    int64           `json:"service_id"`
	ServiceName  string          `json:"service_name"`
	FinalPrice   decimal.Decimal `json:"final_price"`
	MinimumPrice decimal.Decimal `json:"minimum_price"`
}

// BelowMinimum reports whether the price is strictly under the minimum.
func (c PriceCheck) BelowMinimum() bool {
	return c.FinalPrice.LessThan(c.MinimumPrice)
}

// ApprovalDecision is the outcome of DecideApproval.
type ApprovalDecision struct {
	RequiresApproval bool
	Violations       []PriceCheck
}

// DecideApproval flags a quotation for approval when any service is priced
// below its catalog minimum. It is evaluated once, at creation.
func DecideApproval(checks []PriceCheck) ApprovalDecision {
	var decision ApprovalDecision
	for _, c := range checks {
		if c.BelowMinimum() {
			decision.RequiresApproval = true
			decision.Violations = append(decision.Violations, c)
		}
	}
	return decision
}

// InitialState is the state a new quotation starts in.
func (d ApprovalDecision) InitialState() State {
	if d.RequiresApproval {
		return StatePendingApproval
	}
	return StatePending
}
