package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnitType is the closed set of unit-of-measure semantics a category can carry.
type UnitType string

const (
	UnitCount    UnitType = "count"
	UnitCapacity UnitType = "capacity"
	UnitTime     UnitType = "time"
	UnitUsers    UnitType = "users"
	UnitSessions UnitType = "sessions"
)

// ParseUnitType validates a stored unit type. Unknown values are treated as
// plain counts.
func ParseUnitType(raw string) UnitType {
	switch UnitType(raw) {
	case UnitCapacity, UnitTime, UnitUsers, UnitSessions:
		return UnitType(raw)
	default:
		return UnitCount
	}
}

// Service is a sellable service with its price floor and suggested price.
type Service struct {
	ID                int64           `db:"id"`
	Name              string          `db:"name"`
	MinimumPrice      decimal.Decimal `db:"minimum_price"`
	RecommendedPrice  decimal.Decimal `db:"recommended_price"`
	DefaultCategoryID *int64          `db:"default_category_id"`
	IsActive          bool            `db:"is_active"`
}

// Category groups services and fixes their unit of measure.
type Category struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	UnitID   int64  `db:"unit_id"`
	IsActive bool   `db:"is_active"`
}

// Unit is a unit of measure.
type Unit struct {
	ID       int64    `db:"id"`
	Name     string   `db:"name"`
	Type     UnitType `db:"unit_type"`
	IsActive bool     `db:"is_active"`
}

// Entry is the resolved pricing metadata for a service/category pair.
type Entry struct {
	ServiceID        int64
	ServiceName      string
	CategoryID       int64
	UnitID           int64
	UnitType         UnitType
	MinimumPrice     decimal.Decimal
	RecommendedPrice decimal.Decimal
	// Fallback is set when neither an explicit nor a default category existed.
	Fallback bool
}

// ReferencePrice is the price used to infer quantities from a sale price:
// the recommended price, else the minimum price.
func (e Entry) ReferencePrice() decimal.Decimal {
	if e.RecommendedPrice.IsPositive() {
		return e.RecommendedPrice
	}
	return e.MinimumPrice
}

func (e Entry) String() string {
	return fmt.Sprintf("service=%d category=%d unit=%d(%s)", e.ServiceID, e.CategoryID, e.UnitID, e.UnitType)
}
