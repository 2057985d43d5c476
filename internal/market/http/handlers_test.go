package markethttp

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/catintel/catintel/internal/market"
	"github.com/catintel/catintel/internal/weights"
)

const body = `[
	{"retailer":"Home Depot","sku":"HD1","name":"Steel Workbench","price":149.99,"review_count":12,"brand":"Husky"},
	{"retailer":"Walmart","sku":"W1","name":"Storage Bin","price":8}
]`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	table, err := weights.New(weights.Config{RetailerWeights: map[string]float64{"Home Depot": 0.3, "Walmart": 0.1}})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := market.NewService(weights.File{}, table, market.Options{Logger: logger})
	r := chi.NewRouter()
	NewHandler(logger, svc).MountRoutes(r)
	return r
}

func post(h http.Handler, target, payload string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, strings.NewReader(payload)))
	return rec
}

func TestDistributions(t *testing.T) {
	rec := post(newTestRouter(t), "/distributions", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var analysis market.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	require.Equal(t, 2, analysis.Result.Records)
	hd, ok := analysis.Result.Retailer.Lookup("Home Depot")
	require.True(t, ok)
	require.InDelta(t, 75.0, hd.Percentage, 1e-9)
}

func TestDistributionsMalformed(t *testing.T) {
	h := newTestRouter(t)
	rec := post(h, "/distributions", `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = post(h, "/distributions", `[{"name": }]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportCSV(t *testing.T) {
	rec := post(newTestRouter(t), "/distributions/export?format=csv", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "csv")
	require.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	require.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Equal(t, "Dimension", rows[0][0])
	require.Greater(t, len(rows), 4)
}

func TestExportSVGChart(t *testing.T) {
	rec := post(newTestRouter(t), "/distributions/export?format=svg&chart=retailer", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "Share by retailer")
}

func TestExportSVGNothingToChart(t *testing.T) {
	rec := post(newTestRouter(t), "/distributions/export?format=svg", `[]`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExportUnknownFormat(t *testing.T) {
	rec := post(newTestRouter(t), "/distributions/export?format=pdf", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeights(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weights", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out weightsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Retailers, 2)
	require.Equal(t, "Home Depot", out.Retailers[0].Name)
	require.Equal(t, 1.0, out.Default)
}
