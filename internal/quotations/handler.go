package quotations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quotedesk/quotedesk/internal/platform/httpx"
	"github.com/quotedesk/quotedesk/internal/shared"
)

// QuotationService is the subset of Service the handler depends on.
type QuotationService interface {
	Create(ctx context.Context, actor shared.Actor, req CreateQuotationRequest) (*CreateResult, error)
	Get(ctx context.Context, actor shared.Actor, id int64) (*Quotation, error)
	List(ctx context.Context, actor shared.Actor, req ListQuotationsRequest) ([]Quotation, int, error)
	Transition(ctx context.Context, actor shared.Actor, id int64, req TransitionRequest) (*TransitionResult, error)
	ApplyDiscount(ctx context.Context, actor shared.Actor, id int64, req DiscountRequest) (*AdjustmentResult, error)
	ApplyFreeMonths(ctx context.Context, actor shared.Actor, id int64, req FreeMonthsRequest) (*AdjustmentResult, error)
	Duplicate(ctx context.Context, actor shared.Actor, id int64) (*Quotation, error)
	RegeneratePDF(ctx context.Context, actor shared.Actor, id int64) (*Document, error)
	LatestDocument(ctx context.Context, actor shared.Actor, id int64) (*Document, error)
	History(ctx context.Context, actor shared.Actor, id int64) ([]shared.AuditLog, error)
}

// IdempotencyStore deduplicates client retries of create requests.
type IdempotencyStore interface {
	Reserve(ctx context.Context, scope string, actorID int64, key string) (string, bool, error)
	Complete(ctx context.Context, scope string, actorID int64, key, result string) error
	Release(ctx context.Context, scope string, actorID int64, key string) error
}

const createScope = "quotation.create"

type Handler struct {
	logger      *slog.Logger
	service     QuotationService
	idempotency IdempotencyStore
}

func NewHandler(logger *slog.Logger, service QuotationService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// WithIdempotency honours the Idempotency-Key header on POST /quotations.
func (h *Handler) WithIdempotency(store IdempotencyStore) *Handler {
	h.idempotency = store
	return h
}

type listResponse struct {
	Items []Quotation `json:"items"`
	shared.Pagination
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateQuotationRequest
	if !h.decode(w, r, &req) {
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		h.create(w, r, actor, req)
		return
	}

	ctx := r.Context()
	existing, reserved, err := h.idempotency.Reserve(ctx, createScope, actor.ID, key)
	if err != nil {
		h.fail(w, r, "reserve idempotency key failed", err)
		return
	}
	if !reserved {
		var record createRecord
		if err := json.Unmarshal([]byte(existing), &record); err != nil {
			h.fail(w, r, "idempotency record corrupt", err)
			return
		}
		q, err := h.service.Get(ctx, actor, record.QuotationID)
		if err != nil {
			h.fail(w, r, "replay quotation failed", err)
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		httpx.JSON(w, http.StatusOK, CreateResult{
			Quotation:        q,
			RequiresApproval: record.RequiresApproval,
			BelowMinimum:     record.BelowMinimum,
		})
		return
	}

	result, ok := h.create(w, r, actor, req)
	if !ok {
		if err := h.idempotency.Release(ctx, createScope, actor.ID, key); err != nil {
			h.logger.Warn("release idempotency key failed", slog.Any("error", err))
		}
		return
	}
	record, err := json.Marshal(createRecord{
		QuotationID:      result.Quotation.ID,
		RequiresApproval: result.RequiresApproval,
		BelowMinimum:     result.BelowMinimum,
	})
	if err == nil {
		err = h.idempotency.Complete(ctx, createScope, actor.ID, key, string(record))
	}
	if err != nil {
		h.logger.Warn("complete idempotency key failed", slog.Any("error", err))
	}
}

// createRecord is what a completed Idempotency-Key remembers, so a replay
// answers with the approval outcome of the original request.
type createRecord struct {
	QuotationID      int64        `json:"quotation_id"`
	RequiresApproval bool         `json:"requires_approval"`
	BelowMinimum     []PriceCheck `json:"below_minimum,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, actor shared.Actor, req CreateQuotationRequest) (*CreateResult, bool) {
	result, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, "create quotation failed", err)
		return nil, false
	}
	httpx.JSON(w, http.StatusCreated, result)
	return result, true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	var req ListQuotationsRequest
	if v := query.Get("state"); v != "" {
		state := State(v)
		req.State = &state
	}
	var err error
	if req.ClientID, err = optionalInt(query.Get("client_id")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "client_id must be an integer")
		return
	}
	if req.SalespersonID, err = optionalInt(query.Get("salesperson_id")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "salesperson_id must be an integer")
		return
	}
	if req.Limit, err = intOrZero(query.Get("limit")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be an integer")
		return
	}
	if req.Offset, err = intOrZero(query.Get("offset")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "offset must be an integer")
		return
	}

	items, total, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, "list quotations failed", err)
		return
	}
	if items == nil {
		items = []Quotation{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Items:      items,
		Pagination: shared.NewPagination(req.EffectiveLimit(), req.Offset, len(items), total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "get quotation failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "quotation history failed", err)
		return
	}
	if entries == nil {
		entries = []shared.AuditLog{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Transition(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, "quotation transition failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Discount(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req DiscountRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.ApplyDiscount(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, "apply discount failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) FreeMonths(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req FreeMonthsRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.ApplyFreeMonths(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, "apply free months failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Duplicate(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "duplicate quotation failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) RegeneratePDF(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.RegeneratePDF(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "regenerate pdf failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.LatestDocument(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "download pdf failed", err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"quotation-%d.pdf\"", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Content)
}

// Helpers
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor identity")
		return shared.Actor{}, false
	}
	return actor, true
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return shared.Actor{}, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid quotation id")
		return shared.Actor{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, _ := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	} else if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Debug(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func optionalInt(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func intOrZero(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
