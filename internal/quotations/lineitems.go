package quotations

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quotedesk/quotedesk/internal/catalog"
	"github.com/quotedesk/quotedesk/internal/shared"
)

// CatalogResolver resolves a service (and optional category) to pricing data.
type CatalogResolver interface {
	Resolve(ctx context.Context, serviceID int64, categoryID *int64) (catalog.Entry, error)
}

// LineBuilder turns requested services into priced line items.
type LineBuilder struct {
	catalog CatalogResolver
}

// NewLineBuilder constructs a LineBuilder.
func NewLineBuilder(resolver CatalogResolver) *LineBuilder {
	return &LineBuilder{catalog: resolver}
}

// BuildResult holds the lines of a new quotation and the price checks that
// drive the approval decision.
type BuildResult struct {
	Lines  []Line
	Checks []PriceCheck
	Total  decimal.Decimal
}

// Build prices every requested service over durationMonths.
func (b *LineBuilder) Build(ctx context.Context, durationMonths int, services []ServiceRequest) (BuildResult, error) {
	if durationMonths <= 0 {
		return BuildResult{}, fmt.Errorf("%w: duration_months must be positive", shared.ErrValidation)
	}
	result := BuildResult{Total: decimal.Zero}
	for _, svc := range services {
		if svc.FinalPrice.IsNegative() {
			return BuildResult{}, fmt.Errorf("%w: final_price for service %d must not be negative", shared.ErrValidation, svc.ServiceID)
		}
		base, err := b.catalog.Resolve(ctx, svc.ServiceID, nil)
		if err != nil {
			return BuildResult{}, fmt.Errorf("resolve service %d: %w", svc.ServiceID, err)
		}
		unitPrice := priceUsed(svc.FinalPrice, base)
		result.Checks = append(result.Checks, PriceCheck{
			ServiceID:    base.ServiceID,
			ServiceName:  base.ServiceName,
			FinalPrice:   checkedPrice(svc.FinalPrice, base),
			MinimumPrice: base.MinimumPrice,
		})

		var lines []Line
		if len(svc.Categories) > 0 {
			lines, err = b.explicitLines(ctx, svc, unitPrice, durationMonths)
			if err != nil {
				return BuildResult{}, err
			}
		} else {
			lines = []Line{inferLine(svc, base, unitPrice, durationMonths)}
		}
		for _, line := range lines {
			result.Total = result.Total.Add(line.Subtotal)
		}
		result.Lines = append(result.Lines, lines...)
	}
	if len(result.Lines) == 0 {
		return BuildResult{}, fmt.Errorf("%w: quotation has no line items with a positive quantity", shared.ErrValidation)
	}
	return result, nil
}

func (b *LineBuilder) explicitLines(ctx context.Context, svc ServiceRequest, unitPrice decimal.Decimal, durationMonths int) ([]Line, error) {
	lines := make([]Line, 0, len(svc.Categories))
	for _, cq := range svc.Categories {
		if cq.Quantity <= 0 {
			continue
		}
		categoryID := cq.CategoryID
		entry, err := b.catalog.Resolve(ctx, svc.ServiceID, &categoryID)
		if err != nil {
			return nil, fmt.Errorf("resolve service %d category %d: %w", svc.ServiceID, cq.CategoryID, err)
		}
		lines = append(lines, Line{
			ServiceID:      entry.ServiceID,
			ServiceName:    entry.ServiceName,
			CategoryID:     entry.CategoryID,
			UnitID:         entry.UnitID,
			Quantity:       cq.Quantity,
			DurationMonths: durationMonths,
			UnitPrice:      unitPrice,
			Subtotal:       LineSubtotal(cq.Quantity, unitPrice, durationMonths),
			Explanation:    fmt.Sprintf("%d %s requested", cq.Quantity, entry.UnitType),
		})
	}
	return lines, nil
}

// priceUsed is the requested final price when given, else the catalog
// reference price, rounded to cents.
func priceUsed(finalPrice decimal.Decimal, entry catalog.Entry) decimal.Decimal {
	if finalPrice.IsPositive() {
		return finalPrice.Round(2)
	}
	return entry.ReferencePrice().Round(2)
}

// checkedPrice is the price compared against the catalog minimum: the
// requested final price exactly as sent, else the reference price.
func checkedPrice(finalPrice decimal.Decimal, entry catalog.Entry) decimal.Decimal {
	if finalPrice.IsPositive() {
		return finalPrice
	}
	return entry.ReferencePrice()
}

// inference carries what a unit strategy may look at. requestedPrice is zero
// when the caller sent no final price.
type inference struct {
	request        ServiceRequest
	requestedPrice decimal.Decimal
	referencePrice decimal.Decimal
	durationMonths int
}

// unitStrategy derives (principal, secondary) quantities for one unit type.
type unitStrategy func(in inference) (principal, secondary int64, explanation string)

var unitStrategies = map[catalog.UnitType]unitStrategy{
	catalog.UnitCapacity: suppliedOrInferred("GB", func(r ServiceRequest) int64 { return r.CapacityGB }),
	catalog.UnitUsers:    suppliedOrInferred("users", func(r ServiceRequest) int64 { return r.Users }),
	catalog.UnitSessions: suppliedOrInferred("sessions", func(r ServiceRequest) int64 { return r.Sessions }),
	catalog.UnitTime:     suppliedOrInferred("hours", func(r ServiceRequest) int64 { return r.Hours }),
	catalog.UnitCount:    countStrategy,
}

func strategyFor(t catalog.UnitType) unitStrategy {
	if s, ok := unitStrategies[t]; ok {
		return s
	}
	return countStrategy
}

func inferLine(svc ServiceRequest, entry catalog.Entry, unitPrice decimal.Decimal, durationMonths int) Line {
	principal, secondary, explanation := strategyFor(entry.UnitType)(inference{
		request:        svc,
		requestedPrice: svc.FinalPrice,
		referencePrice: entry.ReferencePrice(),
		durationMonths: durationMonths,
	})
	quantity := principal + secondary
	if quantity < 1 {
		quantity = 1
	}
	return Line{
		ServiceID:      entry.ServiceID,
		ServiceName:    entry.ServiceName,
		CategoryID:     entry.CategoryID,
		UnitID:         entry.UnitID,
		Quantity:       quantity,
		DurationMonths: durationMonths,
		UnitPrice:      unitPrice,
		Subtotal:       LineSubtotal(quantity, unitPrice, durationMonths),
		Explanation:    explanation,
	}
}

// suppliedOrInferred reads the type specific field, then the server count,
// then falls back to price based inference.
func suppliedOrInferred(label string, field func(ServiceRequest) int64) unitStrategy {
	return func(in inference) (int64, int64, string) {
		if v := field(in.request); v > 0 {
			return v, 0, fmt.Sprintf("%d %s supplied", v, label)
		}
		if v := in.request.ServerCount; v > 0 {
			return v, 0, fmt.Sprintf("%d %s taken from server count", v, label)
		}
		q, why := inferFromPrice(in)
		return q, 0, fmt.Sprintf("%s %s", why, label)
	}
}

func countStrategy(in inference) (int64, int64, string) {
	servers, equipment := in.request.ServerCount, in.request.EquipmentCount
	if servers > 0 || equipment > 0 {
		return servers, equipment, fmt.Sprintf("%d servers + %d equipment", servers, equipment)
	}
	q, why := inferFromPrice(in)
	return q, 0, why + " units"
}

// inferFromPrice estimates a quantity as round(requested price × duration /
// reference price), never below 1. Without a requested price it defaults to 1.
func inferFromPrice(in inference) (int64, string) {
	if !in.requestedPrice.IsPositive() || !in.referencePrice.IsPositive() {
		return 1, "defaulted to 1"
	}
	q := in.requestedPrice.
		Mul(decimal.NewFromInt(int64(in.durationMonths))).
		Div(in.referencePrice).
		Round(0).
		IntPart()
	if q < 1 {
		q = 1
	}
	return q, fmt.Sprintf("inferred %d from price %s over %d months at reference %s",
		q, in.requestedPrice.StringFixed(2), in.durationMonths, in.referencePrice.StringFixed(2))
}
