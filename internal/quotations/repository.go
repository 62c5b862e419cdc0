package quotations

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quotedesk/quotedesk/internal/clients"
	"github.com/quotedesk/quotedesk/internal/platform/db"
	"github.com/quotedesk/quotedesk/internal/shared"
)

// Repository is the persistence gateway for quotations.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quotation, error)
	GetForUpdate(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	CreateQuotation(ctx context.Context, q Quotation) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	UpdateState(ctx context.Context, q *Quotation) error
	UpdateAdjustment(ctx context.Context, q *Quotation) error
	SetPDFGenerated(ctx context.Context, id int64, generated bool) error
	SaveDocument(ctx context.Context, doc Document) error
	LatestDocument(ctx context.Context, quotationID int64) (*Document, error)
	GetClient(ctx context.Context, id int64) (*clients.Client, error)
	CreateClient(ctx context.Context, in clients.Input, createdBy int64) (int64, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
	History(ctx context.Context, quotationID int64) ([]shared.AuditLog, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var quotationColumns = []string{
	"q.id", "q.salesperson_id", "q.client_id", "q.duration_months", "q.total", "q.original_total", "q.state",
	"q.discount_pct", "q.free_months", "q.has_discount", "q.has_free_months",
	"q.approved_by", "q.approved_by_name", "q.approved_at", "q.rejected_by", "q.rejected_by_name", "q.rejected_at",
	"q.discount_by", "q.discount_by_name", "q.discount_at", "q.discount_comment",
	"q.free_months_by", "q.free_months_by_name", "q.free_months_at", "q.free_months_comment",
	"q.comment", "q.observations", "q.include_unit_prices", "q.include_observations",
	"q.pdf_generated", "q.requires_approval", "q.created_at", "q.updated_at",
}

type repository struct {
	db     dbtx
	runner *db.TxRunner
	audit  *shared.AuditLogger
	inTx   bool
}

// NewRepository constructs a PostgreSQL backed repository. runner owns the
// pool; transactions it opens are retried on transient failures.
func NewRepository(runner *db.TxRunner, audit *shared.AuditLogger) Repository {
	return &repository{db: runner.Pool(), runner: runner, audit: audit}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return r.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, runner: r.runner, audit: r.audit, inTx: true})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	return r.get(ctx, id, false)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	if !r.inTx {
		return nil, fmt.Errorf("get quotation %d for update: no transaction", id)
	}
	return r.get(ctx, id, true)
}

func (r *repository) get(ctx context.Context, id int64, forUpdate bool) (*Quotation, error) {
	query := psql.Select(quotationColumns...).
		From("quotations q").
		Where(squirrel.Eq{"q.id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build quotation query: %w", err)
	}
	var q Quotation
	if err := pgxscan.Get(ctx, r.db, &q, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return &q, nil
}

func (r *repository) lines(ctx context.Context, quotationID int64) ([]Line, error) {
	sql, args, err := psql.Select(
		"l.id", "l.quotation_id", "l.service_id", "COALESCE(s.name, '') AS service_name",
		"l.category_id", "l.unit_id", "l.quantity", "l.duration_months",
		"l.unit_price", "l.subtotal", "l.explanation",
	).
		From("quotation_lines l").
		LeftJoin("services s ON s.id = l.service_id").
		Where(squirrel.Eq{"l.quotation_id": quotationID}).
		OrderBy("l.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	var lines []Line
	if err := pgxscan.Select(ctx, r.db, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("list quotation lines: %w", err)
	}
	return lines, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	where := squirrel.And{}
	if filter.State != nil {
		where = append(where, squirrel.Eq{"q.state": *filter.State})
	}
	if filter.ClientID != nil {
		where = append(where, squirrel.Eq{"q.client_id": *filter.ClientID})
	}
	if filter.SalespersonID != nil {
		where = append(where, squirrel.Eq{"q.salesperson_id": *filter.SalespersonID})
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("quotations q").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quotations: %w", err)
	}

	sql, args, err := psql.Select(quotationColumns...).
		From("quotations q").
		Where(where).
		OrderBy("q.created_at DESC", "q.id DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	var items []Quotation
	if err := pgxscan.Select(ctx, r.db, &items, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list quotations: %w", err)
	}
	return items, total, nil
}

func (r *repository) CreateQuotation(ctx context.Context, q Quotation) (int64, error) {
	sql, args, err := psql.Insert("quotations").
		Columns("salesperson_id", "client_id", "duration_months", "total", "state",
			"discount_pct", "free_months", "has_discount", "has_free_months",
			"comment", "observations", "include_unit_prices", "include_observations",
			"pdf_generated", "requires_approval").
		Values(q.SalespersonID, q.ClientID, q.DurationMonths, q.Total.Round(2), q.State,
			q.DiscountPct, q.FreeMonths, q.HasDiscount, q.HasFreeMonths,
			q.Comment, q.Observations, q.IncludeUnitPrices, q.IncludeObservations,
			q.PDFGenerated, q.RequiresApproval).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build quotation insert: %w", err)
	}
	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert quotation: %w", err)
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, line Line) (int64, error) {
	sql, args, err := psql.Insert("quotation_lines").
		Columns("quotation_id", "service_id", "category_id", "unit_id", "quantity",
			"duration_months", "unit_price", "subtotal", "explanation").
		Values(line.QuotationID, line.ServiceID, line.CategoryID, line.UnitID, line.Quantity,
			line.DurationMonths, line.UnitPrice.Round(2), line.Subtotal.Round(2), line.Explanation).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build line insert: %w", err)
	}
	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert quotation line: %w", err)
	}
	return id, nil
}

func (r *repository) UpdateState(ctx context.Context, q *Quotation) error {
	return r.update(ctx, q.ID, map[string]any{
		"state":            q.State,
		"approved_by":      q.ApprovedBy,
		"approved_by_name": q.ApprovedByName,
		"approved_at":      q.ApprovedAt,
		"rejected_by":      q.RejectedBy,
		"rejected_by_name": q.RejectedByName,
		"rejected_at":      q.RejectedAt,
		"comment":          q.Comment,
		"updated_at":       q.UpdatedAt,
	})
}

func (r *repository) UpdateAdjustment(ctx context.Context, q *Quotation) error {
	var original any
	if q.OriginalTotal != nil {
		original = q.OriginalTotal.Round(2)
	}
	return r.update(ctx, q.ID, map[string]any{
		"total":               q.Total.Round(2),
		"original_total":      original,
		"discount_pct":        q.DiscountPct,
		"free_months":         q.FreeMonths,
		"has_discount":        q.HasDiscount,
		"has_free_months":     q.HasFreeMonths,
		"discount_by":         q.DiscountBy,
		"discount_by_name":    q.DiscountByName,
		"discount_at":         q.DiscountAt,
		"discount_comment":    q.DiscountComment,
		"free_months_by":      q.FreeMonthsBy,
		"free_months_by_name": q.FreeMonthsByName,
		"free_months_at":      q.FreeMonthsAt,
		"free_months_comment": q.FreeMonthsComment,
		"pdf_generated":       q.PDFGenerated,
		"pdf_sweep_attempts":  0,
		"updated_at":          q.UpdatedAt,
	})
}

func (r *repository) SetPDFGenerated(ctx context.Context, id int64, generated bool) error {
	return r.update(ctx, id, map[string]any{"pdf_generated": generated})
}

func (r *repository) update(ctx context.Context, id int64, values map[string]any) error {
	sql, args, err := psql.Update("quotations").
		SetMap(values).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build quotation update: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update quotation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) SaveDocument(ctx context.Context, doc Document) error {
	sql, args, err := psql.Insert("quotation_documents").
		Columns("id", "quotation_id", "content_type", "content", "created_by").
		Values(doc.ID, doc.QuotationID, doc.ContentType, doc.Content, doc.CreatedBy).
		ToSql()
	if err != nil {
		return fmt.Errorf("build document insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert quotation document: %w", err)
	}
	return nil
}

func (r *repository) LatestDocument(ctx context.Context, quotationID int64) (*Document, error) {
	sql, args, err := psql.Select("id", "quotation_id", "content_type", "content", "created_by", "created_at").
		From("quotation_documents").
		Where(squirrel.Eq{"quotation_id": quotationID}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document query: %w", err)
	}
	var doc Document
	if err := pgxscan.Get(ctx, r.db, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: no document for quotation %d", shared.ErrNotFound, quotationID)
		}
		return nil, fmt.Errorf("get quotation document: %w", err)
	}
	return &doc, nil
}

func (r *repository) GetClient(ctx context.Context, id int64) (*clients.Client, error) {
	return clients.NewStore(r.db).Get(ctx, id)
}

func (r *repository) CreateClient(ctx context.Context, in clients.Input, createdBy int64) (int64, error) {
	return clients.NewStore(r.db).Create(ctx, in, createdBy)
}

func (r *repository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return r.audit.Record(ctx, r.db, log)
}

func (r *repository) History(ctx context.Context, quotationID int64) ([]shared.AuditLog, error) {
	return r.audit.History(ctx, r.db, auditEntity, strconv.FormatInt(quotationID, 10))
}
