package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/quotedesk/quotedesk/internal/jobs"
	"github.com/quotedesk/quotedesk/internal/quotations"
	"github.com/quotedesk/quotedesk/internal/shared"
)

// PDFRegenerator is the quotation operation the job drives.
type PDFRegenerator interface {
	RegeneratePDF(ctx context.Context, actor shared.Actor, id int64) (*quotations.Document, error)
}

// PDFRegenerateJob retries quotation PDF rendering in the background.
type PDFRegenerateJob struct {
	Service PDFRegenerator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPDFRegenerateJob wires dependencies for the regeneration handler.
func NewPDFRegenerateJob(service PDFRegenerator, logger *slog.Logger, metrics *jobmetrics.Metrics) *PDFRegenerateJob {
	return &PDFRegenerateJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle processes TaskQuotationPDFRegenerate tasks. Failures that cannot
// succeed on retry are returned wrapped in asynq.SkipRetry.
func (j *PDFRegenerateJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Service == nil {
		return errors.New("pdf regenerate: handler not configured")
	}
	var payload PDFRegeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.QuotationID <= 0 {
		j.Metrics.Skip(TaskQuotationPDFRegenerate, "invalid_payload")
		return fmt.Errorf("pdf regenerate: invalid payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskQuotationPDFRegenerate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("quotation_id", payload.QuotationID))
	// Background retries act with manager rights on behalf of the original actor.
	actor := shared.Actor{ID: payload.ActorID, Name: "pdf-regeneration", Role: shared.RoleAdmin}
	doc, err := j.Service.RegeneratePDF(ctx, actor, payload.QuotationID)
	if err != nil {
		if !quotations.IsRetryable(err) {
			logger.Warn("pdf regeneration abandoned", slog.Any("error", err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Error("pdf regeneration failed", slog.Any("error", err))
		return err
	}
	logger.Info("pdf regenerated", slog.String("document_id", doc.ID))
	return nil
}

func (j *PDFRegenerateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
