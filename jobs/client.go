package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	pdfRetryDelay = 30 * time.Second
	pdfUniqueTTL  = 10 * time.Minute
)

// Client enqueues quotation tasks.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq-backed Client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueuePDFRegeneration schedules a background re-render of a quotation PDF.
// A regeneration already queued for the same quotation and actor is kept and
// the call succeeds.
func (c *Client) EnqueuePDFRegeneration(ctx context.Context, quotationID, actorID int64) error {
	if c == nil || c.client == nil {
		return errors.New("jobs: client not configured")
	}
	task, err := NewPDFRegenerateTask(PDFRegeneratePayload{QuotationID: quotationID, ActorID: actorID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(pdfRetryDelay),
		asynq.Unique(pdfUniqueTTL),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
