package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	"github.com/atareh/lightvision/pkg/ratelimit"
	"github.com/atareh/lightvision/pkg/snapshotstore"
)

// stubService returns canned results so handler behavior can be tested
// in isolation.
type stubService struct {
	result *RunResult
	err    error
	calls  int
}

func (s *stubService) run() (*RunResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubService) RunRefresh(ctx context.Context) (*RunResult, error)    { return s.run() }
func (s *stubService) RunSocial(ctx context.Context) (*RunResult, error)     { return s.run() }
func (s *stubService) RunAssetPrice(ctx context.Context) (*RunResult, error) { return s.run() }
func (s *stubService) SubmitRevenue(ctx context.Context) (*RunResult, error) { return s.run() }
func (s *stubService) SubmitTvl(ctx context.Context) (*RunResult, error)     { return s.run() }
func (s *stubService) Reconcile(ctx context.Context) (*RunResult, error)     { return s.run() }

func newTestRouter(service Service, limiter *ratelimit.FixedWindow) http.Handler {
	handler := NewHandler(service, limiter, 3759856)
	r := chi.NewRouter()
	r.Route("/api/sync", handler.Routes)
	return r
}

func TestTriggerRefresh_Success(t *testing.T) {
	stub := &stubService{result: &RunResult{
		JobType:       JobRefresh,
		Status:        snapshotstore.RunCompleted,
		CorrelationID: "corr-1",
		Succeeded:     4,
		Message:       "4 refreshed, 0 failed",
	}}
	router := newTestRouter(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "corr-1", resp.ExecutionID)
	require.Equal(t, "4 refreshed, 0 failed", resp.Message)
}

func TestTriggerRevenue_ReturnsExecutionID(t *testing.T) {
	stub := &stubService{result: &RunResult{
		JobType:     JobRevenue,
		ExecutionID: "exec-9",
		Message:     "submitted",
	}}
	router := newTestRouter(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/revenue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "exec-9", resp.ExecutionID)
}

func TestTriggerRevenue_RejectsRetiredQuery(t *testing.T) {
	stub := &stubService{result: &RunResult{}}
	router := newTestRouter(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/revenue?query_id=3759856", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, stub.calls, "retired query must never reach the service")
	require.Contains(t, rec.Body.String(), "retired")
}

func TestTrigger_AlreadyRunningReturns423(t *testing.T) {
	stub := &stubService{err: apperrors.LockedError(nil, "token refresh already running")}
	router := newTestRouter(stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestTriggerRefresh_RateLimited(t *testing.T) {
	stub := &stubService{result: &RunResult{Status: snapshotstore.RunCompleted}}
	router := newTestRouter(stub, ratelimit.NewFixedWindow(2, time.Minute))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync/refresh", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync/refresh", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, 2, stub.calls)
}

func TestTriggerGet_Describes(t *testing.T) {
	router := newTestRouter(&stubService{result: &RunResult{}}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync/tvl", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, JobTvl, body["job"])
	require.Equal(t, "ready", body["status"])
}
