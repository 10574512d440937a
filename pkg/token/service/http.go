package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	apphttp "github.com/atareh/lightvision/pkg/app/http"
	"github.com/atareh/lightvision/pkg/snapshotstore"
	"github.com/atareh/lightvision/pkg/token"
)

// RunLog is the audit trail slice the admin surface reads.
type RunLog interface {
	ListJobRuns(ctx context.Context, limit int) ([]*snapshotstore.JobRunDao, error)
}

// Handler exposes the token administration endpoints. The caller mounts
// it behind admin secret authentication.
type Handler struct {
	service Service
	runs    RunLog
}

// NewHandler creates the admin handler
func NewHandler(service Service, runs RunLog) *Handler {
	return &Handler{service: service, runs: runs}
}

// Routes mounts the admin endpoints onto the given router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/tokens", apphttp.HandleError(h.addToken))
	r.Get("/tokens", apphttp.HandleError(h.listTokens))
	r.Delete("/tokens/{address}", apphttp.HandleError(h.deleteToken))
	r.Put("/tokens/{address}/enabled", apphttp.HandleError(h.setEnabled))
	r.Put("/tokens/{address}/hidden", apphttp.HandleError(h.setHidden))
	r.Post("/tokens/liquidity", apphttp.HandleError(h.liquidityAction))
	r.Get("/runs", apphttp.HandleError(h.listRuns))
}

// tokenResponse is the admin wire shape for one token
type tokenResponse struct {
	ContractAddress string    `json:"contract_address"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	Enabled         bool      `json:"enabled"`
	Hidden          bool      `json:"hidden"`
	LowLiquidity    bool      `json:"low_liquidity"`
	Website         string    `json:"website,omitempty"`
	Twitter         string    `json:"twitter,omitempty"`
	Telegram        string    `json:"telegram,omitempty"`
	Discord         string    `json:"discord,omitempty"`
	Price           *float64  `json:"price"`
	LiquidityUSD    *float64  `json:"liquidity_usd"`
	Volume24h       *float64  `json:"volume_24h"`
	MarketCap       *float64  `json:"market_cap"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toTokenResponse(tok *token.Token) tokenResponse {
	return tokenResponse{
		ContractAddress: tok.ContractAddress,
		Symbol:          tok.Symbol,
		Name:            tok.Name,
		Enabled:         tok.Enabled,
		Hidden:          tok.Hidden,
		LowLiquidity:    tok.LowLiquidity,
		Website:         tok.Website,
		Twitter:         tok.Twitter,
		Telegram:        tok.Telegram,
		Discord:         tok.Discord,
		Price:           tok.Price,
		LiquidityUSD:    tok.LiquidityUSD,
		Volume24h:       tok.Volume24h,
		MarketCap:       tok.MarketCap,
		CreatedAt:       tok.CreatedAt,
		UpdatedAt:       tok.UpdatedAt,
	}
}

func (h *Handler) addToken(w http.ResponseWriter, r *http.Request) error {
	var req AddTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON body")
	}

	tok, err := h.service.AddToken(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusCreated, toTokenResponse(tok))
	return nil
}

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request) error {
	includeHidden := r.URL.Query().Get("include_hidden") == "true"
	tokens, err := h.service.ListTokens(r.Context(), includeHidden)
	if err != nil {
		return err
	}

	out := make([]tokenResponse, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, toTokenResponse(tok))
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"tokens": out})
	return nil
}

func (h *Handler) deleteToken(w http.ResponseWriter, r *http.Request) error {
	if err := h.service.DeleteToken(r.Context(), chi.URLParam(r, "address")); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	return nil
}

type flagRequest struct {
	Value bool `json:"value"`
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request) error {
	return h.setFlag(w, r, h.service.SetEnabled)
}

func (h *Handler) setHidden(w http.ResponseWriter, r *http.Request) error {
	return h.setFlag(w, r, h.service.SetHidden)
}

func (h *Handler) setFlag(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, bool) error) error {
	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON body")
	}
	if err := apply(r.Context(), chi.URLParam(r, "address"), req.Value); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
	return nil
}

func (h *Handler) liquidityAction(w http.ResponseWriter, r *http.Request) error {
	var req LiquidityActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON body")
	}
	if err := h.service.ApplyLiquidityAction(r.Context(), &req); err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
	return nil
}

type jobRunResponse struct {
	JobType       string    `json:"job_type"`
	Status        string    `json:"status"`
	Message       *string   `json:"message,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	StartedAt     time.Time `json:"started_at"`
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) error {
	runs, err := h.runs.ListJobRuns(r.Context(), 0)
	if err != nil {
		return err
	}

	out := make([]jobRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, jobRunResponse{
			JobType:       run.JobType,
			Status:        run.Status,
			Message:       run.Message,
			CorrelationID: run.CorrelationID,
			StartedAt:     run.StartedAt,
		})
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"runs": out})
	return nil
}
