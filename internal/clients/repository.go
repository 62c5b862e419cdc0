package clients

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quotedesk/quotedesk/internal/shared"
)

// DBTX is satisfied by pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Store reads and writes clients through db, which may be an open transaction.
type Store struct {
	db DBTX
}

// NewStore constructs a Store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Get loads a client by id.
func (s *Store) Get(ctx context.Context, id int64) (*Client, error) {
	sql, args, err := psql.Select("id", "name", "email", "tax_id", "phone", "created_by", "created_at").
		From("clients").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build client query: %w", err)
	}
	var c Client
	if err := pgxscan.Get(ctx, s.db, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: client %d", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

// Create inserts a client and returns its id.
func (s *Store) Create(ctx context.Context, in Input, createdBy int64) (int64, error) {
	sql, args, err := psql.Insert("clients").
		Columns("name", "email", "tax_id", "phone", "created_by").
		Values(in.Name, in.Email, in.TaxID, in.Phone, createdBy).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build client insert: %w", err)
	}
	var id int64
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}
	return id, nil
}
