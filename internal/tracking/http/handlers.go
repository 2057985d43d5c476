package trackinghttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/catintel/catintel/internal/coverage"
	"github.com/catintel/catintel/internal/platform/httpx"
	"github.com/catintel/catintel/internal/salesrank"
	"github.com/catintel/catintel/internal/tracking"
)

const (
	requestTimeout  = 5 * time.Second
	defaultTopLimit = 10
	maxTopLimit     = 500
)

// TrackingService is the contract the handler needs from tracking.Service.
type TrackingService interface {
	RecordBatch(ctx context.Context, snaps []tracking.Snapshot) (int, error)
	Product(ctx context.Context, asin string) (tracking.Product, error)
	Estimate(ctx context.Context, asin string) (tracking.Estimate, error)
	LatestEstimate(ctx context.Context, asin string) (tracking.StoredEstimate, error)
	Rollup(ctx context.Context, req tracking.RollupRequest) (coverage.Report, error)
	TopSellers(ctx context.Context, n int) ([]salesrank.SalesEstimate, error)
	Estimator() salesrank.Estimator
}

// Handler serves the observation, estimate and rollup API.
type Handler struct {
	logger  *slog.Logger
	service TrackingService
}

// NewHandler constructs the tracking HTTP handler.
func NewHandler(logger *slog.Logger, service TrackingService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type observationsRequest struct {
	Snapshots []tracking.Snapshot `json:"snapshots"`
}

type observationsResponse struct {
	Recorded int `json:"recorded"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req observationsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if len(req.Snapshots) == 0 {
		httpx.RespondError(w, fmt.Errorf("%w: snapshots required", httpx.ErrValidation))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	recorded, err := h.service.RecordBatch(ctx, req.Snapshots)
	if err != nil {
		h.respond(w, "record snapshots", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, observationsResponse{Recorded: recorded})
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Product(r.Context(), chi.URLParam(r, "asin"))
	if err != nil {
		h.respond(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	est, err := h.service.Estimate(ctx, chi.URLParam(r, "asin"))
	if err != nil {
		h.respond(w, "estimate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) handleLatestEstimate(w http.ResponseWriter, r *http.Request) {
	est, err := h.service.LatestEstimate(r.Context(), chi.URLParam(r, "asin"))
	if err != nil {
		h.respond(w, "latest estimate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) handleRollup(w http.ResponseWriter, r *http.Request) {
	var req tracking.RollupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.Rollup(ctx, req)
	if err != nil {
		h.respond(w, "rollup", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleTopSellers(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxTopLimit {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	top, err := h.service.TopSellers(r.Context(), limit)
	if err != nil {
		h.respond(w, "top sellers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, top)
}

type boundariesResponse struct {
	Method     salesrank.Method     `json:"estimation_method"`
	Boundaries []salesrank.Boundary `json:"boundaries"`
}

func (h *Handler) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	est, ok := h.estimator(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, boundariesResponse{Method: est.Tag(), Boundaries: est.Boundaries()})
}

type rankEstimateResponse struct {
	BSR                   int                  `json:"bsr"`
	EstimatedMonthlyUnits float64              `json:"estimated_monthly_units"`
	Method                salesrank.Method     `json:"estimation_method"`
	Confidence            salesrank.Confidence `json:"confidence"`
}

func (h *Handler) handleRankEstimate(w http.ResponseWriter, r *http.Request) {
	est, ok := h.estimator(w, r)
	if !ok {
		return
	}
	bsr, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("bsr")))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bsr must be an integer")
		return
	}
	units, err := est.Estimate(bsr)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, rankEstimateResponse{
		BSR:                   bsr,
		EstimatedMonthlyUnits: units,
		Method:                est.Tag(),
		Confidence:            salesrank.ConfidenceFor(bsr),
	})
}

// estimator honours an optional method query parameter and falls back to
// the configured estimator.
func (h *Handler) estimator(w http.ResponseWriter, r *http.Request) (salesrank.Estimator, bool) {
	raw := r.URL.Query().Get("method")
	if raw == "" {
		return h.service.Estimator(), true
	}
	method, err := salesrank.ParseMethod(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return salesrank.Estimator{}, false
	}
	return salesrank.NewEstimator(method), true
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, tracking.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, tracking.ErrInvalidSnapshot):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httpx.RespondError(w, httpx.ErrUnavailable)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
