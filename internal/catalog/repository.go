package catalog

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quotedesk/quotedesk/internal/shared"
)

// Repository reads the service catalog. It never writes.
type Repository interface {
	GetService(ctx context.Context, id int64) (*Service, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	GetUnit(ctx context.Context, id int64) (*Unit, error)
	FirstActiveCategory(ctx context.Context) (*Category, error)
	FirstActiveUnit(ctx context.Context) (*Unit, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed catalog repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetService(ctx context.Context, id int64) (*Service, error) {
	q := psql.Select("id", "name", "minimum_price", "recommended_price", "default_category_id", "is_active").
		From("services").
		Where(squirrel.Eq{"id": id})
	var s Service
	if err := r.getOne(ctx, &s, q, "service", id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) GetCategory(ctx context.Context, id int64) (*Category, error) {
	q := psql.Select("id", "name", "unit_id", "is_active").
		From("categories").
		Where(squirrel.Eq{"id": id})
	var c Category
	if err := r.getOne(ctx, &c, q, "category", id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	q := psql.Select("id", "name", "unit_type", "is_active").
		From("units").
		Where(squirrel.Eq{"id": id})
	var u Unit
	if err := r.getOne(ctx, &u, q, "unit", id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) FirstActiveCategory(ctx context.Context) (*Category, error) {
	q := psql.Select("id", "name", "unit_id", "is_active").
		From("categories").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("id").
		Limit(1)
	var c Category
	if err := r.getOne(ctx, &c, q, "active category", nil); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) FirstActiveUnit(ctx context.Context) (*Unit, error) {
	q := psql.Select("id", "name", "unit_type", "is_active").
		From("units").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("id").
		Limit(1)
	var u Unit
	if err := r.getOne(ctx, &u, q, "active unit", nil); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) getOne(ctx context.Context, dst any, q squirrel.SelectBuilder, entity string, id any) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", entity, err)
	}
	if err := pgxscan.Get(ctx, r.pool, dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			if id == nil {
				return fmt.Errorf("%w: no %s", shared.ErrNotFound, entity)
			}
			return fmt.Errorf("%w: %s %v", shared.ErrNotFound, entity, id)
		}
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}
