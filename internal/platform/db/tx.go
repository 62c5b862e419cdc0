package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultMaxAttempts bounds how often WithTx retries a transient failure.
const DefaultMaxAttempts = 3

// TxRunner begins repeatable-read transactions against a pool and retries
// the whole callback on transient failures.
type TxRunner struct {
	pool        *pgxpool.Pool
	maxAttempts int
	backoff     time.Duration
}

// NewTxRunner constructs a TxRunner. maxAttempts below 1 uses DefaultMaxAttempts.
func NewTxRunner(pool *pgxpool.Pool, maxAttempts int) *TxRunner {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &TxRunner{pool: pool, maxAttempts: maxAttempts, backoff: 50 * time.Millisecond}
}

// Pool returns the underlying pool for reads outside a transaction.
func (r *TxRunner) Pool() *pgxpool.Pool {
	return r.pool
}

// WithTx executes fn within a transaction using the RepeatableRead isolation level.
// fn may run more than once, so it must not have side effects outside tx.
func (r *TxRunner) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return r.retry(ctx, func() error { return WithTx(ctx, r.pool, fn) })
}

func (r *TxRunner) retry(ctx context.Context, run func() error) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = run()
		if err == nil || !IsTransient(err) || attempt == r.maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
	return err
}

// WithTx executes a function within a single RepeatableRead transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &CommitError{Err: err}
	}

	return nil
}

// CommitError marks a failure raised by COMMIT. Unless the server reported a
// serialization failure or deadlock, the transaction may have been applied.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return "platform/db: commit tx: " + e.Err.Error() }

func (e *CommitError) Unwrap() error { return e.Err }

// IsTransient reports serialization failures, deadlocks and connection loss.
// A failed COMMIT is transient only for serialization failures and deadlocks,
// since a lost connection there leaves the outcome unknown.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	hasPgErr := errors.As(err, &pgErr)
	if hasPgErr && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return true
	}
	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		return false
	}
	if hasPgErr {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return pgconn.SafeToRetry(err)
}
