package sync

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	apphttp "github.com/atareh/lightvision/pkg/app/http"
	"github.com/atareh/lightvision/pkg/ratelimit"
)

// triggerResponse is the wire shape for every sync trigger endpoint.
type triggerResponse struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"execution_id,omitempty"`
	Message     string `json:"message"`
}

// Handler exposes the sync trigger endpoints
type Handler struct {
	service       Service
	limiter       *ratelimit.FixedWindow
	legacyQueryID int64
}

// NewHandler creates the sync trigger handler. The limiter guards the
// refresh trigger against rapid repeated invocation.
func NewHandler(service Service, limiter *ratelimit.FixedWindow, legacyQueryID int64) *Handler {
	return &Handler{
		service:       service,
		limiter:       limiter,
		legacyQueryID: legacyQueryID,
	}
}

// Routes mounts the trigger endpoints onto the given router. The caller
// is expected to have applied secret authentication already.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/refresh", apphttp.HandleError(h.describe(JobRefresh, "refresh token market data and ecosystem aggregates")))
	r.Post("/refresh", apphttp.HandleError(h.triggerRefresh))

	r.Get("/socials", apphttp.HandleError(h.describe(JobSocial, "refresh token website and social links")))
	r.Post("/socials", apphttp.HandleError(h.trigger(func(ctx context.Context) (*RunResult, error) {
		return h.service.RunSocial(ctx)
	})))

	r.Get("/asset-price", apphttp.HandleError(h.describe(JobAssetPrice, "record an external asset price snapshot")))
	r.Post("/asset-price", apphttp.HandleError(h.trigger(func(ctx context.Context) (*RunResult, error) {
		return h.service.RunAssetPrice(ctx)
	})))

	r.Get("/revenue", apphttp.HandleError(h.describe(JobRevenue, "submit the daily revenue query")))
	r.Post("/revenue", apphttp.HandleError(h.triggerRevenue))

	r.Get("/tvl", apphttp.HandleError(h.describe(JobTvl, "submit the protocol TVL query")))
	r.Post("/tvl", apphttp.HandleError(h.trigger(func(ctx context.Context) (*RunResult, error) {
		return h.service.SubmitTvl(ctx)
	})))

	r.Get("/reconcile", apphttp.HandleError(h.describe(JobReconcile, "settle pending query executions")))
	r.Post("/reconcile", apphttp.HandleError(h.trigger(func(ctx context.Context) (*RunResult, error) {
		return h.service.Reconcile(ctx)
	})))
}

func (h *Handler) describe(jobType, description string) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		apphttp.WriteJSON(w, http.StatusOK, map[string]string{
			"job":         jobType,
			"description": description,
			"status":      "ready",
		})
		return nil
	}
}

func (h *Handler) trigger(run func(ctx context.Context) (*RunResult, error)) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		result, err := run(r.Context())
		if err != nil {
			return err
		}
		apphttp.WriteJSON(w, http.StatusOK, triggerResponse{
			Success:     true,
			ExecutionID: executionRef(result),
			Message:     result.Message,
		})
		return nil
	}
}

// triggerRefresh applies the rate limit before running the refresh job.
func (h *Handler) triggerRefresh(w http.ResponseWriter, r *http.Request) error {
	if h.limiter != nil && !h.limiter.Allow(callerKey(r)) {
		return apperrors.RateLimitedError(nil, "too many refresh requests, retry later")
	}
	return h.trigger(func(ctx context.Context) (*RunResult, error) {
		return h.service.RunRefresh(ctx)
	})(w, r)
}

// triggerRevenue rejects attempts to run the retired legacy revenue
// query, then submits the current one.
func (h *Handler) triggerRevenue(w http.ResponseWriter, r *http.Request) error {
	if raw := r.URL.Query().Get("query_id"); raw != "" {
		queryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperrors.BadRequestError(err, "invalid query_id")
		}
		if h.legacyQueryID != 0 && queryID == h.legacyQueryID {
			return apperrors.BadRequestError(nil, "this revenue query has been retired and can no longer be triggered")
		}
	}
	return h.trigger(func(ctx context.Context) (*RunResult, error) {
		return h.service.SubmitRevenue(ctx)
	})(w, r)
}

func executionRef(result *RunResult) string {
	if result.ExecutionID != "" {
		return result.ExecutionID
	}
	return result.CorrelationID
}

// callerKey identifies the rate-limit bucket for a request by client IP.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
