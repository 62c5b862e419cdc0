package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/quotedesk/quotedesk/jobs"
)

// Enqueuer submits PDF regeneration tasks.
type Enqueuer interface {
	EnqueuePDFRegeneration(ctx context.Context, quotationID, actorID int64) error
}

// QueueInspector reads queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for the PDF regeneration queue.
type JobsCLI struct {
	enqueuer  Enqueuer
	inspector QueueInspector
}

// NewJobsCLI wires the helpers; either dependency may be nil when the
// matching command is not used.
func NewJobsCLI(enqueuer Enqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{enqueuer: enqueuer, inspector: inspector}
}

// RegenerateOptions configures the regenerate command.
type RegenerateOptions struct {
	QuotationID int64
	ActorID     int64
	Stdout      io.Writer
	Stderr      io.Writer
}

// RegenerateCommand enqueues a PDF regeneration and returns the exit code.
func (c *JobsCLI) RegenerateCommand(ctx context.Context, opts RegenerateOptions) int {
	if c == nil || c.enqueuer == nil {
		fmt.Fprintln(opts.Stderr, "jobs cli: client not configured")
		return 1
	}
	if opts.QuotationID <= 0 {
		fmt.Fprintln(opts.Stderr, "jobs cli: --quotation is required")
		return 2
	}
	if err := c.enqueuer.EnqueuePDFRegeneration(ctx, opts.QuotationID, opts.ActorID); err != nil {
		fmt.Fprintf(opts.Stderr, "jobs cli: enqueue: %v\n", err)
		return 1
	}
	fmt.Fprintf(opts.Stdout, "enqueued %s for quotation %d\n", jobs.TaskQuotationPDFRegenerate, opts.QuotationID)
	return 0
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueQuotations)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueQuotations}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// StatsOptions configures the stats command.
type StatsOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatsCommand prints queue statistics and returns the exit code.
func (c *JobsCLI) StatsCommand(opts StatsOptions) int {
	stats, err := c.InspectQueue()
	if err != nil {
		fmt.Fprintf(opts.Stderr, "jobs cli: inspect: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			fmt.Fprintf(opts.Stderr, "jobs cli: encode: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return 0
}
