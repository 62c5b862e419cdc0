package jobs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func serveHealth(inspector QueueInspector) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(inspector, discardLogger()).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func TestHealthWithoutInspector(t *testing.T) {
	rec := serveHealth(nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"quotations","pending":0,"retry":0,"archived":0,"paused":false}`, rec.Body.String())
}

func TestHealthReportsQueueCounts(t *testing.T) {
	rec := serveHealth(stubInspector{info: &asynq.QueueInfo{Queue: QueueQuotations, Pending: 4, Retry: 2, Archived: 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"quotations","pending":4,"retry":2,"archived":1,"paused":false}`, rec.Body.String())
}

func TestHealthInspectorFailure(t *testing.T) {
	rec := serveHealth(stubInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRetryDelayBacksOffAndCaps(t *testing.T) {
	assert.Equal(t, 30*time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, time.Minute, retryDelay(1, nil, nil))
	assert.Equal(t, 8*time.Minute, retryDelay(4, nil, nil))
	assert.Equal(t, maxRetryBackoff, retryDelay(5, nil, nil))
	assert.Equal(t, maxRetryBackoff, retryDelay(50, nil, nil))
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	task, err := NewPDFSweepTask(0)
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    discardLogger(),
		Cron:      []CronRegistration{{Spec: "every tuesday", Task: task}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskQuotationPDFSweep)
}
