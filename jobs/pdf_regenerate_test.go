package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/quotedesk/quotedesk/internal/jobs"
	"github.com/quotedesk/quotedesk/internal/quotations"
	"github.com/quotedesk/quotedesk/internal/shared"
)

type stubRegenerator struct {
	err   error
	calls []int64
	actor shared.Actor
}

func (s *stubRegenerator) RegeneratePDF(_ context.Context, actor shared.Actor, id int64) (*quotations.Document, error) {
	s.calls = append(s.calls, id)
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &quotations.Document{ID: "doc-1", QuotationID: id}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTask(t *testing.T, quotationID, actorID int64) *asynq.Task {
	t.Helper()
	task, err := NewPDFRegenerateTask(PDFRegeneratePayload{QuotationID: quotationID, ActorID: actorID})
	require.NoError(t, err)
	return task
}

func TestPDFRegenerateJobSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	stub := &stubRegenerator{}
	job := NewPDFRegenerateJob(stub, discardLogger(), metrics)

	err := job.Handle(context.Background(), newTask(t, 42, 7))
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, stub.calls)
	assert.Equal(t, int64(7), stub.actor.ID)
	assert.True(t, stub.actor.Can(shared.PermQuotationAdjust))

	count, err := testutil.GatherAndCount(reg, "quotedesk_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPDFRegenerateJobRetryClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{name: "renderer down", err: errors.New("gotenberg: status 503"), skipRetry: false},
		{name: "quotation gone", err: fmt.Errorf("%w: quotation 42", shared.ErrNotFound), skipRetry: true},
		{name: "no renderer", err: fmt.Errorf("%w: pdf renderer not configured", shared.ErrConfiguration), skipRetry: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := NewPDFRegenerateJob(&stubRegenerator{err: tc.err}, discardLogger(), nil)
			err := job.Handle(context.Background(), newTask(t, 42, 7))
			require.Error(t, err)
			assert.Equal(t, tc.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestPDFRegenerateJobInvalidPayload(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	stub := &stubRegenerator{}
	job := NewPDFRegenerateJob(stub, discardLogger(), metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskQuotationPDFRegenerate, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, stub.calls)

	count, err := testutil.GatherAndCount(reg, "quotedesk_jobs_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewPDFRegenerateTaskRequiresQuotation(t *testing.T) {
	_, err := NewPDFRegenerateTask(PDFRegeneratePayload{})
	assert.Error(t, err)

	task := newTask(t, 9, 1)
	assert.Equal(t, TaskQuotationPDFRegenerate, task.Type())
	assert.JSONEq(t, `{"quotation_id":9,"actor_id":1}`, string(task.Payload()))
}

func TestNilClientEnqueue(t *testing.T) {
	var c *Client
	assert.Error(t, c.EnqueuePDFRegeneration(context.Background(), 1, 1))
	assert.NoError(t, c.Close())
}
