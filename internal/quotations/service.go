package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quotedesk/quotedesk/internal/clients"
	"github.com/quotedesk/quotedesk/internal/shared"
)

// Locker guards the per-quotation adjustment region.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context), error)
}

// Renderer produces the PDF bytes of a quotation.
type Renderer interface {
	Render(ctx context.Context, q *Quotation, client *clients.Client) ([]byte, error)
}

// Archiver copies rendered documents to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, doc Document) error
}

// RetryEnqueuer schedules a background PDF regeneration.
type RetryEnqueuer interface {
	EnqueuePDFRegeneration(ctx context.Context, quotationID, actorID int64) error
}

// Recorder receives domain metrics. observability.Metrics implements it.
type Recorder interface {
	QuotationCreated(state string)
	TransitionApplied(trigger string, changed bool)
	AdjustmentApplied(kind string)
	PDFRendered(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) QuotationCreated(string)        {}
func (noopRecorder) TransitionApplied(string, bool) {}
func (noopRecorder) AdjustmentApplied(string)       {}
func (noopRecorder) PDFRendered(string)             {}

// Deps bundles the collaborators of Service. Only Repo and Builder are
// required.
type Deps struct {
	Repo     Repository
	Builder  *LineBuilder
	Locker   Locker
	Renderer Renderer
	Archive  Archiver
	Retries  RetryEnqueuer
	Metrics  Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service implements the quotation operations.
type Service struct {
	repo     Repository
	builder  *LineBuilder
	locker   Locker
	renderer Renderer
	archive  Archiver
	retries  RetryEnqueuer
	metrics  Recorder
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(deps Deps) *Service {
	s := &Service{
		repo:     deps.Repo,
		builder:  deps.Builder,
		locker:   deps.Locker,
		renderer: deps.Renderer,
		archive:  deps.Archive,
		retries:  deps.Retries,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		validate: validator.New(),
		now:      deps.Now,
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	return nil
}

// Create builds and persists a new quotation with its lines in one
// transaction. Nothing is written when any line fails.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateQuotationRequest) (*CreateResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	built, err := s.builder.Build(ctx, req.DurationMonths, req.Services)
	if err != nil {
		return nil, err
	}
	decision := DecideApproval(built.Checks)
	state := decision.InitialState()

	var quotationID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		clientID, err := s.resolveClient(ctx, repo, actor, req)
		if err != nil {
			return err
		}
		id, err := repo.CreateQuotation(ctx, Quotation{
			SalespersonID:       actor.ID,
			ClientID:            clientID,
			DurationMonths:      req.DurationMonths,
			Total:               built.Total,
			State:               state,
			DiscountPct:         decimal.Zero,
			Comment:             req.Comment,
			Observations:        req.Observations,
			IncludeUnitPrices:   req.IncludeUnitPrices,
			IncludeObservations: req.IncludeObservations,
			RequiresApproval:    decision.RequiresApproval,
		})
		if err != nil {
			return fmt.Errorf("create quotation: %w", err)
		}
		quotationID = id
		for _, line := range built.Lines {
			line.QuotationID = id
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert quotation line: %w", err)
			}
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "quotation.created",
			Entity:   auditEntity,
			EntityID: strconv.FormatInt(id, 10),
			Meta: map[string]any{
				"state":             state,
				"total":             built.Total.StringFixed(2),
				"requires_approval": decision.RequiresApproval,
				"lines":             len(built.Lines),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.QuotationCreated(string(state))
	if decision.RequiresApproval {
		for _, v := range decision.Violations {
			s.logger.Info("quotation priced below minimum",
				slog.Int64("quotation_id", quotationID),
				slog.Int64("service_id", v.ServiceID),
				slog.String("final_price", v.FinalPrice.StringFixed(2)),
				slog.String("minimum_price", v.MinimumPrice.StringFixed(2)))
		}
	}

	q, err := s.repo.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	return &CreateResult{Quotation: q, RequiresApproval: decision.RequiresApproval, BelowMinimum: decision.Violations}, nil
}

func (s *Service) resolveClient(ctx context.Context, repo Repository, actor shared.Actor, req CreateQuotationRequest) (int64, error) {
	if req.ClientID != nil {
		client, err := repo.GetClient(ctx, *req.ClientID)
		if err != nil {
			return 0, err
		}
		return client.ID, nil
	}
	if req.Client == nil {
		return 0, fmt.Errorf("%w: client_id or client is required", shared.ErrValidation)
	}
	id, err := repo.CreateClient(ctx, *req.Client, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("create client: %w", err)
	}
	return id, nil
}

// Transition fires a state-machine trigger. No-op triggers return the
// unchanged state as both previous and new and persist nothing.
func (s *Service) Transition(ctx context.Context, actor shared.Actor, id int64, req TransitionRequest) (*TransitionResult, error) {
	trigger, err := ParseTrigger(req.Trigger)
	if err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	var result TransitionResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.VisibleTo(actor) {
			return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
		}
		if err := AuthorizeTransition(current, trigger, actor); err != nil {
			return err
		}
		next, changed := Transition(*current, trigger, actor, req.Comment, s.now().UTC())
		result = TransitionResult{PreviousState: current.State, NewState: next.State, Changed: changed, Quotation: &next}
		if !changed {
			return nil
		}
		if err := repo.UpdateState(ctx, &next); err != nil {
			return err
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "quotation." + string(trigger),
			Entity:   auditEntity,
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"from": current.State, "to": next.State},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TransitionApplied(string(trigger), result.Changed)
	if result.Changed {
		s.logger.Info("quotation transitioned",
			slog.Int64("quotation_id", id),
			slog.String("trigger", string(trigger)),
			slog.String("from", string(result.PreviousState)),
			slog.String("to", string(result.NewState)),
			slog.Int64("actor_id", actor.ID))
	}
	return &result, nil
}

// ApplyDiscount sets the percentage discount, keeping any free months.
func (s *Service) ApplyDiscount(ctx context.Context, actor shared.Actor, id int64, req DiscountRequest) (*AdjustmentResult, error) {
	if err := validateDiscount(req.Percentage, req.Comment); err != nil {
		return nil, err
	}
	return s.adjust(ctx, actor, id, "discount", func(q *Quotation, now time.Time) (Breakdown, error) {
		b, err := ComputeAdjustment(q.Baseline(), q.DurationMonths, q.FreeMonths, req.Percentage)
		if err != nil {
			return Breakdown{}, err
		}
		actorID, name, comment := actor.ID, actor.Name, req.Comment
		q.DiscountPct = req.Percentage
		q.HasDiscount = true
		q.DiscountBy, q.DiscountByName, q.DiscountAt, q.DiscountComment = &actorID, &name, &now, &comment
		return b, nil
	})
}

// ApplyFreeMonths sets the free-month count, keeping any discount.
func (s *Service) ApplyFreeMonths(ctx context.Context, actor shared.Actor, id int64, req FreeMonthsRequest) (*AdjustmentResult, error) {
	if err := validateComment(req.Comment); err != nil {
		return nil, err
	}
	if req.Months <= 0 {
		return nil, fmt.Errorf("%w: free months must be positive", shared.ErrValidation)
	}
	return s.adjust(ctx, actor, id, "free_months", func(q *Quotation, now time.Time) (Breakdown, error) {
		if err := validateFreeMonths(req.Months, q.DurationMonths, req.Comment); err != nil {
			return Breakdown{}, err
		}
		b, err := ComputeAdjustment(q.Baseline(), q.DurationMonths, req.Months, q.DiscountPct)
		if err != nil {
			return Breakdown{}, err
		}
		actorID, name, comment := actor.ID, actor.Name, req.Comment
		q.FreeMonths = req.Months
		q.HasFreeMonths = true
		q.FreeMonthsBy, q.FreeMonthsByName, q.FreeMonthsAt, q.FreeMonthsComment = &actorID, &name, &now, &comment
		return b, nil
	})
}

// adjust runs a read-modify-write of one quotation under its Redis lock and
// a row lock, then regenerates the PDF outside the transaction.
func (s *Service) adjust(ctx context.Context, actor shared.Actor, id int64, kind string, mutate func(*Quotation, time.Time) (Breakdown, error)) (*AdjustmentResult, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.QuotationLockKey(id))
		if err != nil {
			return nil, err
		}
		defer release(context.WithoutCancel(ctx))
	}

	var (
		breakdown Breakdown
		updated   *Quotation
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !q.VisibleTo(actor) {
			return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
		}
		if err := checkAdjustable(q, actor); err != nil {
			return err
		}
		// The baseline is fixed by the first adjustment of either kind.
		if q.OriginalTotal == nil {
			original := q.Total
			q.OriginalTotal = &original
		}
		now := s.now().UTC()
		b, err := mutate(q, now)
		if err != nil {
			return err
		}
		q.Total = b.FinalTotal
		q.PDFGenerated = false
		q.UpdatedAt = now
		if err := repo.UpdateAdjustment(ctx, q); err != nil {
			return err
		}
		if err := repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "quotation." + kind,
			Entity:   auditEntity,
			EntityID: strconv.FormatInt(id, 10),
			Meta: map[string]any{
				"original_total": b.OriginalTotal.StringFixed(2),
				"free_months":    b.FreeMonths,
				"discount_pct":   b.DiscountPct.String(),
				"final_total":    b.FinalTotal.StringFixed(2),
			},
			At: now,
		}); err != nil {
			return err
		}
		breakdown, updated = b, q
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AdjustmentApplied(kind)
	s.logger.Info("quotation adjusted",
		slog.Int64("quotation_id", id),
		slog.String("kind", kind),
		slog.String("original_total", breakdown.OriginalTotal.StringFixed(2)),
		slog.String("final_total", breakdown.FinalTotal.StringFixed(2)),
		slog.Int64("actor_id", actor.ID))

	result := &AdjustmentResult{Breakdown: breakdown, Quotation: updated}
	if _, err := s.RegeneratePDF(ctx, actor, id); err != nil {
		s.logger.Warn("pdf regeneration after adjustment failed",
			slog.Int64("quotation_id", id),
			slog.Any("error", err))
		if IsRetryable(err) {
			s.scheduleRetry(ctx, id, actor.ID)
		}
		result.PDFStatus = PDFStatusPendingManual
		return result, nil
	}
	result.PDFRegenerated = true
	result.PDFStatus = PDFStatusRegenerated
	updated.PDFGenerated = true
	return result, nil
}

func (s *Service) scheduleRetry(ctx context.Context, id, actorID int64) {
	if s.retries == nil {
		return
	}
	if err := s.retries.EnqueuePDFRegeneration(context.WithoutCancel(ctx), id, actorID); err != nil {
		s.logger.Error("enqueue pdf regeneration failed",
			slog.Int64("quotation_id", id),
			slog.Any("error", err))
	}
}

// Duplicate copies a quotation and its lines into a new pending quotation
// owned by actor. Adjustments and the PDF flag are not carried over and the
// approval decision is not re-run.
func (s *Service) Duplicate(ctx context.Context, actor shared.Actor, id int64) (*Quotation, error) {
	src, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, line := range src.Lines {
		total = total.Add(line.Subtotal)
	}

	var newID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		createdID, err := repo.CreateQuotation(ctx, Quotation{
			SalespersonID:       actor.ID,
			ClientID:            src.ClientID,
			DurationMonths:      src.DurationMonths,
			Total:               total,
			State:               StatePending,
			DiscountPct:         decimal.Zero,
			Comment:             src.Comment,
			Observations:        src.Observations,
			IncludeUnitPrices:   src.IncludeUnitPrices,
			IncludeObservations: src.IncludeObservations,
		})
		if err != nil {
			return fmt.Errorf("create duplicate: %w", err)
		}
		newID = createdID
		for _, line := range src.Lines {
			copied := line
			copied.ID = 0
			copied.QuotationID = createdID
			if _, err := repo.InsertLine(ctx, copied); err != nil {
				return fmt.Errorf("copy quotation line: %w", err)
			}
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "quotation.duplicated",
			Entity:   auditEntity,
			EntityID: strconv.FormatInt(createdID, 10),
			Meta:     map[string]any{"source_id": src.ID},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.QuotationCreated(string(StatePending))
	return s.repo.Get(ctx, newID)
}

// Get returns a quotation the actor may see.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.VisibleTo(actor) {
		return nil, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	return q, nil
}

// List returns a page of quotations. Salespeople are scoped to their own.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListQuotationsRequest) ([]Quotation, int, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, 0, err
	}
	if req.State != nil && !req.State.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown state %q", shared.ErrValidation, *req.State)
	}
	filter := ListFilter{
		State:         req.State,
		ClientID:      req.ClientID,
		SalespersonID: req.SalespersonID,
		Limit:         req.EffectiveLimit(),
		Offset:        req.Offset,
	}
	if !actor.Can(shared.PermQuotationViewAll) {
		own := actor.ID
		filter.SalespersonID = &own
	}
	return s.repo.List(ctx, filter)
}

// RegeneratePDF renders the quotation, stores the document and marks the
// quotation as having a PDF.
func (s *Service) RegeneratePDF(ctx context.Context, actor shared.Actor, id int64) (*Document, error) {
	if s.renderer == nil {
		s.metrics.PDFRendered("unavailable")
		return nil, fmt.Errorf("%w: pdf renderer not configured", shared.ErrConfiguration)
	}
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	client, err := s.repo.GetClient(ctx, q.ClientID)
	if err != nil {
		return nil, err
	}
	content, err := s.renderer.Render(ctx, q, client)
	if err != nil {
		s.metrics.PDFRendered("failure")
		return nil, fmt.Errorf("render quotation %d: %w", id, err)
	}
	doc := Document{
		ID:          uuid.NewString(),
		QuotationID: id,
		ContentType: documentContentType,
		Content:     content,
		CreatedBy:   actor.ID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.SaveDocument(ctx, doc); err != nil {
			return err
		}
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// An adjustment committed while rendering; this document is already stale.
		if !current.UpdatedAt.Equal(q.UpdatedAt) {
			return nil
		}
		return repo.SetPDFGenerated(ctx, id, true)
	})
	if err != nil {
		s.metrics.PDFRendered("failure")
		return nil, err
	}
	s.metrics.PDFRendered("success")
	doc.CreatedAt = s.now().UTC()
	s.archiveDocument(ctx, doc)
	return &doc, nil
}

func (s *Service) archiveDocument(ctx context.Context, doc Document) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Archive(ctx, doc); err != nil {
		s.logger.Warn("archive quotation document failed",
			slog.Int64("quotation_id", doc.QuotationID),
			slog.String("document_id", doc.ID),
			slog.Any("error", err))
	}
}

// LatestDocument returns the most recent stored PDF of a quotation.
func (s *Service) LatestDocument(ctx context.Context, actor shared.Actor, id int64) (*Document, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.LatestDocument(ctx, id)
}

// History returns the audit trail of a quotation visible to actor.
func (s *Service) History(ctx context.Context, actor shared.Actor, id int64) ([]shared.AuditLog, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// IsRetryable reports whether a failed PDF regeneration is worth retrying.
func IsRetryable(err error) bool {
	return err != nil &&
		!errors.Is(err, shared.ErrNotFound) &&
		!errors.Is(err, shared.ErrConfiguration) &&
		!errors.Is(err, shared.ErrAuthorization)
}
