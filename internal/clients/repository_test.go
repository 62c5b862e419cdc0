package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idRow struct {
	id  int64
	err error
}

func (r idRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	return nil
}

type captureDB struct {
	sql  string
	args []any
	row  idRow
}

func (c *captureDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected exec")
}

func (c *captureDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (c *captureDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.sql, c.args = sql, args
	return c.row
}

func TestStoreCreate(t *testing.T) {
	db := &captureDB{row: idRow{id: 17}}
	email := "ops@acme.test"

	id, err := NewStore(db).Create(context.Background(), Input{Name: "Acme", Email: &email}, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)
	assert.Equal(t, "INSERT INTO clients (name,email,tax_id,phone,created_by) VALUES ($1,$2,$3,$4,$5) RETURNING id", db.sql)
	require.Len(t, db.args, 5)
	assert.Equal(t, "Acme", db.args[0])
	assert.Equal(t, int64(3), db.args[4])
}

func TestStoreCreateWrapsErrors(t *testing.T) {
	boom := errors.New("unique violation")
	_, err := NewStore(&captureDB{row: idRow{err: boom}}).Create(context.Background(), Input{Name: "Acme"}, 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "insert client")
}
