package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/quotedesk/quotedesk/internal/jobs"
)

// StalePDF is an adjusted quotation whose document was never re-rendered.
type StalePDF struct {
	QuotationID int64 `db:"id"`
	ActorID     int64 `db:"actor_id"`
}

// defaultMaxSweepAttempts is how many sweeps may re-enqueue one quotation
// before it is left for an operator.
const defaultMaxSweepAttempts = 3

// StalePDFSource lists quotations awaiting regeneration and counts how often
// the sweep has re-enqueued each one.
type StalePDFSource interface {
	StalePDFs(ctx context.Context, updatedBefore time.Time, maxAttempts, limit int) ([]StalePDF, error)
	MarkSwept(ctx context.Context, quotationIDs []int64) error
}

// RegenerationEnqueuer schedules one regeneration task.
type RegenerationEnqueuer interface {
	EnqueuePDFRegeneration(ctx context.Context, quotationID, actorID int64) error
}

// PoolStalePDFSource reads stale quotations straight from Postgres.
type PoolStalePDFSource struct {
	pool *pgxpool.Pool
}

// NewPoolStalePDFSource constructs the Postgres-backed source.
func NewPoolStalePDFSource(pool *pgxpool.Pool) *PoolStalePDFSource {
	return &PoolStalePDFSource{pool: pool}
}

var sweepSQL = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func staleQuery(updatedBefore time.Time, maxAttempts, limit int) (string, []any, error) {
	return sweepSQL.
		Select("id", "COALESCE(free_months_by, discount_by, salesperson_id) AS actor_id").
		From("quotations").
		Where(squirrel.Eq{"pdf_generated": false}).
		Where(squirrel.Or{squirrel.Eq{"has_discount": true}, squirrel.Eq{"has_free_months": true}}).
		Where(squirrel.Lt{"updated_at": updatedBefore}).
		Where(squirrel.Lt{"pdf_sweep_attempts": maxAttempts}).
		OrderBy("updated_at ASC").
		Limit(uint64(limit)).
		ToSql()
}

func markSweptQuery(quotationIDs []int64) (string, []any, error) {
	return sweepSQL.
		Update("quotations").
		Set("pdf_sweep_attempts", squirrel.Expr("pdf_sweep_attempts + 1")).
		Where(squirrel.Eq{"id": quotationIDs}).
		ToSql()
}

// StalePDFs returns adjusted, not-yet-rendered quotations last touched before
// updatedBefore and swept fewer than maxAttempts times, oldest first.
func (s *PoolStalePDFSource) StalePDFs(ctx context.Context, updatedBefore time.Time, maxAttempts, limit int) ([]StalePDF, error) {
	sql, args, err := staleQuery(updatedBefore, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	var rows []StalePDF
	if err := pgxscan.Select(ctx, s.pool, &rows, sql, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSwept bumps the sweep counter of every given quotation. An adjustment
// resets the counter.
func (s *PoolStalePDFSource) MarkSwept(ctx context.Context, quotationIDs []int64) error {
	if len(quotationIDs) == 0 {
		return nil
	}
	sql, args, err := markSweptQuery(quotationIDs)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, sql, args...)
	return err
}

// PDFSweepJob re-enqueues regeneration for quotations left with a stale PDF,
// e.g. after the retry budget of an earlier task ran out.
type PDFSweepJob struct {
	Source   StalePDFSource
	Enqueuer RegenerationEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	// Grace skips quotations touched recently, whose inline render or first
	// retry may still be in flight.
	Grace time.Duration
	// MaxAttempts caps sweeps per quotation, so one whose render can never
	// succeed is not re-enqueued forever.
	MaxAttempts int
	Now         func() time.Time
}

// NewPDFSweepJob wires dependencies for the sweep handler.
func NewPDFSweepJob(source StalePDFSource, enqueuer RegenerationEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *PDFSweepJob {
	return &PDFSweepJob{
		Source:   source,
		Enqueuer: enqueuer,
		Logger:   logger,
		Metrics:  metrics,
		Grace:       15 * time.Minute,
		MaxAttempts: defaultMaxSweepAttempts,
		Now:         time.Now,
	}
}

// Handle processes TaskQuotationPDFSweep tasks.
func (j *PDFSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil || j.Enqueuer == nil {
		return errors.New("pdf sweep: handler not configured")
	}
	payload := PDFSweepPayload{Limit: defaultSweepLimit}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.Metrics.Skip(TaskQuotationPDFSweep, "invalid_payload")
			return fmt.Errorf("pdf sweep: invalid payload: %w", asynq.SkipRetry)
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultSweepLimit
	}

	tracker := j.Metrics.Track(TaskQuotationPDFSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	maxAttempts := j.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxSweepAttempts
	}
	stale, err := j.Source.StalePDFs(ctx, now().Add(-j.Grace), maxAttempts, payload.Limit)
	if err != nil {
		return fmt.Errorf("pdf sweep: list stale: %w", err)
	}
	j.Metrics.Backlog(TaskQuotationPDFSweep, len(stale))

	var (
		errs  []error
		swept []int64
	)
	for _, item := range stale {
		if err := j.Enqueuer.EnqueuePDFRegeneration(ctx, item.QuotationID, item.ActorID); err != nil {
			errs = append(errs, fmt.Errorf("quotation %d: %w", item.QuotationID, err))
			continue
		}
		swept = append(swept, item.QuotationID)
	}
	if len(swept) > 0 {
		if err := j.Source.MarkSwept(ctx, swept); err != nil {
			errs = append(errs, fmt.Errorf("pdf sweep: mark swept: %w", err))
		}
	}
	j.logger().Info("pdf sweep finished",
		slog.Int("stale", len(stale)),
		slog.Int("enqueue_failures", len(errs)))
	return errors.Join(errs...)
}

func (j *PDFSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
