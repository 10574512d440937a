package dashboard

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atareh/lightvision/pkg/analytics"
	apphttp "github.com/atareh/lightvision/pkg/app/http"
)

// Handler exposes the public dashboard read endpoints. Every endpoint
// always returns HTTP 200 with a well-formed JSON body: on a store
// failure the payload degrades to zeroed fields plus an error string so
// the front end can render a placeholder instead of breaking.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates the dashboard read handler
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the read endpoints onto the given router
func (h *Handler) Routes(r chi.Router) {
	r.Get("/metrics", h.getMetrics)
	r.Get("/tvl", h.getTvl)
	r.Get("/revenue", h.getRevenue)
}

type metricsResponse struct {
	*Metrics
	Error string `json:"error,omitempty"`
}

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.GetMetrics(r.Context())
	if err != nil {
		h.logger.Error("metrics read degraded", zap.Error(err))
		apphttp.WriteJSON(w, http.StatusOK, metricsResponse{
			Metrics: &Metrics{},
			Error:   "metrics are temporarily unavailable",
		})
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, metricsResponse{Metrics: metrics})
}

type tvlResponse struct {
	*analytics.TvlReport
	Error string `json:"error,omitempty"`
}

func (h *Handler) getTvl(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetTvl(r.Context())
	if err != nil {
		h.logger.Error("tvl read degraded", zap.Error(err))
		apphttp.WriteJSON(w, http.StatusOK, tvlResponse{
			TvlReport: &analytics.TvlReport{Protocols: []analytics.ProtocolShare{}},
			Error:     "tvl data is temporarily unavailable",
		})
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, tvlResponse{TvlReport: report})
}

type revenueResponse struct {
	Revenue []RevenuePoint `json:"revenue"`
	Error   string         `json:"error,omitempty"`
}

func (h *Handler) getRevenue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	points, err := h.service.GetRevenue(r.Context(), limit)
	if err != nil {
		h.logger.Error("revenue read degraded", zap.Error(err))
		apphttp.WriteJSON(w, http.StatusOK, revenueResponse{
			Revenue: []RevenuePoint{},
			Error:   "revenue data is temporarily unavailable",
		})
		return
	}
	if points == nil {
		points = []RevenuePoint{}
	}
	apphttp.WriteJSON(w, http.StatusOK, revenueResponse{Revenue: points})
}
