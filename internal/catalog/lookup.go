package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quotedesk/quotedesk/internal/shared"
)

const fallbackTimeout = 5 * time.Second

// Lookup resolves services to their pricing metadata.
type Lookup struct {
	repo   Repository
	logger *slog.Logger
	group  singleflight.Group
}

// NewLookup constructs a Lookup.
func NewLookup(repo Repository, logger *slog.Logger) *Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lookup{repo: repo, logger: logger}
}

type fallbackPair struct {
	category Category
	unit     Unit
}

// Resolve returns the pricing metadata for serviceID. An explicit categoryID
// wins; otherwise the service default category is used, and as a last resort
// any active category and unit.
func (l *Lookup) Resolve(ctx context.Context, serviceID int64, categoryID *int64) (Entry, error) {
	svc, err := l.repo.GetService(ctx, serviceID)
	if err != nil {
		return Entry{}, err
	}
	if !svc.IsActive {
		return Entry{}, fmt.Errorf("%w: service %d is inactive", shared.ErrNotFound, serviceID)
	}

	entry := Entry{
		ServiceID:        svc.ID,
		ServiceName:      svc.Name,
		MinimumPrice:     svc.MinimumPrice,
		RecommendedPrice: svc.RecommendedPrice,
	}

	if categoryID != nil {
		cat, err := l.repo.GetCategory(ctx, *categoryID)
		if err != nil {
			return Entry{}, err
		}
		if !cat.IsActive {
			return Entry{}, fmt.Errorf("%w: category %d is inactive", shared.ErrNotFound, *categoryID)
		}
		return l.withUnit(ctx, entry, cat)
	}

	if svc.DefaultCategoryID != nil {
		cat, err := l.repo.GetCategory(ctx, *svc.DefaultCategoryID)
		switch {
		case err == nil && cat.IsActive:
			return l.withUnit(ctx, entry, cat)
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return Entry{}, err
		}
		l.logger.Warn("service default category unusable, using fallback",
			slog.Int64("service_id", svc.ID),
			slog.Int64("category_id", *svc.DefaultCategoryID))
	}

	cat, unit, err := l.Fallback(ctx)
	if err != nil {
		return Entry{}, err
	}
	entry.CategoryID = cat.ID
	entry.UnitID = unit.ID
	entry.UnitType = ParseUnitType(string(unit.Type))
	entry.Fallback = true
	return entry, nil
}

func (l *Lookup) withUnit(ctx context.Context, entry Entry, cat *Category) (Entry, error) {
	entry.CategoryID = cat.ID
	unit, err := l.repo.GetUnit(ctx, cat.UnitID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Entry{}, err
	}
	if err != nil || !unit.IsActive {
		_, fallbackUnit, ferr := l.Fallback(ctx)
		if ferr != nil {
			return Entry{}, ferr
		}
		unit = &fallbackUnit
		entry.Fallback = true
	}
	entry.UnitID = unit.ID
	entry.UnitType = ParseUnitType(string(unit.Type))
	return entry, nil
}

// Fallback picks the first active category and its unit, or the first active
// unit when the category's own unit is unusable. Concurrent callers share one
// round trip, which runs detached from any single caller's cancellation.
// ErrConfiguration means the catalog has no categories or units.
func (l *Lookup) Fallback(ctx context.Context) (Category, Unit, error) {
	ch := l.group.DoChan("fallback", func() (any, error) {
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), fallbackTimeout)
		defer cancel()
		return l.loadFallback(detached)
	})
	select {
	case <-ctx.Done():
		return Category{}, Unit{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Category{}, Unit{}, res.Err
		}
		pair := res.Val.(fallbackPair)
		return pair.category, pair.unit, nil
	}
}

func (l *Lookup) loadFallback(ctx context.Context) (fallbackPair, error) {
	cat, err := l.repo.FirstActiveCategory(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fallbackPair{}, fmt.Errorf("%w: no active category configured", shared.ErrConfiguration)
		}
		return fallbackPair{}, err
	}
	unit, err := l.repo.GetUnit(ctx, cat.UnitID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fallbackPair{}, err
	}
	if err != nil || !unit.IsActive {
		unit, err = l.repo.FirstActiveUnit(ctx)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fallbackPair{}, fmt.Errorf("%w: no active unit configured", shared.ErrConfiguration)
			}
			return fallbackPair{}, err
		}
	}
	return fallbackPair{category: *cat, unit: *unit}, nil
}
