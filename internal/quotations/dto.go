package quotations

import (
	"github.com/shopspring/decimal"

	"github.com/quotedesk/quotedesk/internal/clients"
)

type CreateQuotationRequest struct {
	ClientID            *int64           `json:"client_id,omitempty" validate:"required_without=Client,omitempty,gt=0"`
	Client              *clients.Input   `json:"client,omitempty" validate:"required_without=ClientID,omitempty"`
	DurationMonths      int              `json:"duration_months" validate:"required,gt=0,lte=120"`
	Services            []ServiceRequest `json:"services" validate:"required,min=1,dive"`
	IncludeUnitPrices   bool             `json:"include_unit_prices"`
	IncludeObservations bool             `json:"include_observations"`
	Comment             *string          `json:"comment,omitempty" validate:"omitempty,max=2000"`
	Observations        *string          `json:"observations,omitempty" validate:"omitempty,max=4000"`
}

// ServiceRequest is one requested service. Categories, when present, take
// precedence over the flat quantity fields.
type ServiceRequest struct {
	ServiceID      int64              `json:"service_id" validate:"required,gt=0"`
	FinalPrice     decimal.Decimal    `json:"final_price"`
	Categories     []CategoryQuantity `json:"categories,omitempty" validate:"omitempty,dive"`
	ServerCount    int64              `json:"server_count" validate:"gte=0"`
	EquipmentCount int64              `json:"equipment_count" validate:"gte=0"`
	CapacityGB     int64              `json:"capacity_gb" validate:"gte=0"`
	Users          int64              `json:"users" validate:"gte=0"`
	Sessions       int64              `json:"sessions" validate:"gte=0"`
	Hours          int64              `json:"hours" validate:"gte=0"`
}

type CategoryQuantity struct {
	CategoryID int64 `json:"category_id" validate:"required,gt=0"`
	Quantity   int64 `json:"quantity"`
}

type TransitionRequest struct {
	Trigger string  `json:"trigger" validate:"required"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

type DiscountRequest struct {
	Percentage decimal.Decimal `json:"percentage"`
	Comment    string          `json:"comment" validate:"required,max=2000"`
}

type FreeMonthsRequest struct {
	Months  int    `json:"months" validate:"required,gt=0"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

type ListQuotationsRequest struct {
	State         *State `json:"state,omitempty"`
	ClientID      *int64 `json:"client_id,omitempty"`
	SalespersonID *int64 `json:"salesperson_id,omitempty"`
	Limit         int    `json:"limit" validate:"gte=0,lte=200"`
	Offset        int    `json:"offset" validate:"gte=0"`
}

// EffectiveLimit applies the default and maximum page size.
func (r ListQuotationsRequest) EffectiveLimit() int {
	switch {
	case r.Limit <= 0:
		return defaultListLimit
	case r.Limit > maxListLimit:
		return maxListLimit
	default:
		return r.Limit
	}
}

// TransitionResult reports the state before and after a transition.
type TransitionResult struct {
	PreviousState State      `json:"previous_state"`
	NewState      State      `json:"new_state"`
	Changed       bool       `json:"changed"`
	Quotation     *Quotation `json:"quotation"`
}

// AdjustmentResult is returned by the discount and free-months operations.
type AdjustmentResult struct {
	Breakdown      Breakdown  `json:"breakdown"`
	Quotation      *Quotation `json:"quotation"`
	PDFRegenerated bool       `json:"pdf_regenerated"`
	PDFStatus      string     `json:"pdf_status"`
}

// CreateResult is returned by Create.
type CreateResult struct {
	Quotation        *Quotation `json:"quotation"`
	RequiresApproval bool       `json:"requires_approval"`
	// BelowMinimum lists the services priced under their catalog minimum.
	BelowMinimum []PriceCheck `json:"below_minimum,omitempty"`
}
