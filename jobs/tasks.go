package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueQuotations carries every quotation background task.
	QueueQuotations = "quotations"
	// TaskQuotationPDFRegenerate re-renders a quotation PDF that failed to
	// render inline.
	TaskQuotationPDFRegenerate = "quotation:pdf:regenerate"

	pdfRegenerateMaxRetry = 5
	defaultSweepLimit     = 100
)

// PDFRegeneratePayload identifies the quotation to re-render and the actor
// whose change triggered it.
type PDFRegeneratePayload struct {
	QuotationID int64 `json:"quotation_id"`
	ActorID     int64 `json:"actor_id"`
}

// NewPDFRegenerateTask constructs an Asynq task.
func NewPDFRegenerateTask(payload PDFRegeneratePayload) (*asynq.Task, error) {
	if payload.QuotationID <= 0 {
		return nil, fmt.Errorf("pdf regenerate: quotation id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationPDFRegenerate, data,
		asynq.Queue(QueueQuotations),
		asynq.MaxRetry(pdfRegenerateMaxRetry),
	), nil
}

// TaskQuotationPDFSweep finds adjusted quotations whose PDF is still stale and
// enqueues TaskQuotationPDFRegenerate for each.
const TaskQuotationPDFSweep = "quotation:pdf:sweep"

// PDFSweepPayload bounds one sweep run.
type PDFSweepPayload struct {
	Limit int `json:"limit"`
}

// NewPDFSweepTask constructs the periodic sweep task.
func NewPDFSweepTask(limit int) (*asynq.Task, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	data, err := json.Marshal(PDFSweepPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationPDFSweep, data, asynq.Queue(QueueQuotations), asynq.MaxRetry(1)), nil
}
