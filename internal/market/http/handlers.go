package markethttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/catintel/catintel/internal/aggregate"
	"github.com/catintel/catintel/internal/catalog"
	"github.com/catintel/catintel/internal/export"
	"github.com/catintel/catintel/internal/market"
	"github.com/catintel/catintel/internal/platform/httpx"
	"github.com/catintel/catintel/internal/weights"
)

const requestTimeout = 30 * time.Second

// AnalysisService is the contract the handler needs from market.Service.
type AnalysisService interface {
	AnalyzeListings(ctx context.Context, r io.Reader, retailer string) (market.Analysis, error)
	Table() *weights.Table
}

// Handler serves distribution analyses and their exports.
type Handler struct {
	logger  *slog.Logger
	service AnalysisService
}

// NewHandler constructs the market HTTP handler.
func NewHandler(logger *slog.Logger, service AnalysisService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) (market.Analysis, bool) {
	body := http.MaxBytesReader(w, r.Body, httpx.MaxBodyBytes)
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	analysis, err := h.service.AnalyzeListings(ctx, body, r.URL.Query().Get("retailer"))
	if err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			httpx.RespondError(w, httpx.ErrTooLarge)
		case errors.Is(err, catalog.ErrMalformedInput):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			httpx.RespondError(w, httpx.ErrUnavailable)
		default:
			h.logger.Error("analyze listings", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return market.Analysis{}, false
	}
	return analysis, true
}

func (h *Handler) handleDistributions(w http.ResponseWriter, r *http.Request) {
	analysis, ok := h.analyze(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, analysis)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	chart := aggregate.Dimension(r.URL.Query().Get("chart"))
	analysis, ok := h.analyze(w, r)
	if !ok {
		return
	}

	buf := &bytes.Buffer{}
	if err := export.Write(buf, format, analysis.Result, analysis.Categories, chart); err != nil {
		if errors.Is(err, export.ErrNoData) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Nothing To Chart", err.Error())
			return
		}
		h.logger.Error("export distributions", slog.String("format", string(format)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	filename := fmt.Sprintf("distributions-%s%s", analysis.RunID, format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Run-ID", analysis.RunID.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type weightsResponse struct {
	Retailers  []weights.Entry `json:"retailers"`
	Categories []weights.Entry `json:"categories"`
	Default    float64         `json:"default"`
}

func (h *Handler) handleWeights(w http.ResponseWriter, r *http.Request) {
	table := h.service.Table()
	httpx.JSON(w, http.StatusOK, weightsResponse{
		Retailers:  table.Retailers(),
		Categories: table.Categories(),
		Default:    weights.DefaultWeight,
	})
}
