package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsmarkt/parts-scraper/internal/config"
	"github.com/partsmarkt/parts-scraper/internal/models"
	"github.com/partsmarkt/parts-scraper/internal/session"
)

func testHandlers(t *testing.T) (*Handlers, *session.Manager) {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)

	sessions := session.NewManager()
	return NewHandlers(nil, sessions, nil, cfg, slog.Default()), sessions
}

func testRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/status/{sessionID}", h.GetStatus)
	r.Get("/api/results/{sessionID}", h.GetResults)
	r.Get("/api/export/{sessionID}", h.ExportCSV)
	r.Get("/api/price-analysis/{sessionID}", h.GetPriceAnalysis)
	r.Get("/api/competitive-analysis/{sessionID}", h.GetCompetitiveAnalysis)
	return r
}

func seededSession(t *testing.T, sessions *session.Manager) *session.Session {
	t.Helper()
	s := session.New(nil)
	s.Append(models.Listing{
		ID:        "1",
		Title:     "Remschijf",
		Category:  "Gebruikte remschijf",
		PriceText: "€ 50,00",
		Price:     50,
		Seller:    "Jansen",
		Specs:     map[string]string{"Merk onderdeel": "Bosch"},
		Page:      1,
		ScrapedAt: time.Now(),
	})
	s.Append(models.Listing{
		ID:        "2",
		Title:     "Remschijf",
		Category:  "Gebruikte remschijf",
		PriceText: "€ 70,00",
		Price:     70,
		Seller:    "De Vries",
		Specs:     map[string]string{"Bouwjaar": "2019"},
		Page:      1,
		ScrapedAt: time.Now(),
	})
	sessions.Add(s)
	return s
}

func TestFormatLicensePlate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"six chars grouped", "ab12cd", "AB-12-CD"},
		{"dashes stripped first", "AB-12-CD", "AB-12-CD"},
		{"whitespace trimmed", "  ab12cd ", "AB-12-CD"},
		{"other lengths pass through", "AB123C4", "AB123C4"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLicensePlate(tt.raw))
		})
	}
}

func TestGetStatus_UnknownSession(t *testing.T) {
	h, _ := testHandlers(t)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/status/onbekend", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Sessie niet gevonden", body["error"])
}

func TestGetStatus(t *testing.T) {
	h, sessions := testHandlers(t)
	s := seededSession(t, sessions)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/status/"+s.ID(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "starting", body["status"])
	assert.Equal(t, float64(2), body["product_count"])
}

func TestGetResults_FlattensSpecs(t *testing.T) {
	h, sessions := testHandlers(t)
	s := seededSession(t, sessions)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/results/"+s.ID(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Products []map[string]any `json:"products"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Total)

	first := body.Products[0]
	assert.Equal(t, "1", first["product_id"])
	assert.Equal(t, "Bosch", first["spec_merk_onderdeel"])
	_, hasNested := first["specificaties"]
	assert.False(t, hasNested)

	second := body.Products[1]
	assert.Equal(t, "2019", second["spec_bouwjaar"])
}

func TestExportCSV(t *testing.T) {
	h, sessions := testHandlers(t)
	s := seededSession(t, sessions)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/export/"+s.ID(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "onderdelenlijn_export_")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)

	// The header is the union of keys over all rows, so both spec columns
	// appear even though each listing carries only one of them.
	header := lines[0]
	assert.Contains(t, header, "spec_merk_onderdeel")
	assert.Contains(t, header, "spec_bouwjaar")
	assert.Contains(t, header, "titel")
}

func TestGetPriceAnalysis_NoProducts(t *testing.T) {
	h, sessions := testHandlers(t)
	s := session.New(nil)
	sessions.Add(s)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/price-analysis/"+s.ID(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPriceAnalysis(t *testing.T) {
	h, sessions := testHandlers(t)
	s := seededSession(t, sessions)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/price-analysis/"+s.ID(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	summary, ok := body["samenvatting"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), summary["totaal_producten"])
	assert.Equal(t, float64(60), summary["gemiddelde_prijs"])
}

func TestGetCompetitiveAnalysis_DefaultMargin(t *testing.T) {
	h, sessions := testHandlers(t)
	s := seededSession(t, sessions)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/competitive-analysis/"+s.ID()+"?target_price=50", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// Configured default margin is 10%: only the € 50 listing fits.
	assert.Equal(t, float64(10), body["marge_percentage"])
	assert.Equal(t, float64(1), body["aantal_gevonden"])
}

func TestGetCompetitiveAnalysis_MarginOverride(t *testing.T) {
	h, sessions := testHandlers(t)
	s := seededSession(t, sessions)
	router := testRouter(h)

	get := func(query string) map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/competitive-analysis/"+s.ID()+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	// A wider valid margin takes effect: both listings fall in [25, 75].
	wide := get("?target_price=50&margin=0.5")
	assert.Equal(t, float64(50), wide["marge_percentage"])
	assert.Equal(t, float64(2), wide["aantal_gevonden"])

	// Out-of-range values keep the configured default instead of
	// inverting or exploding the band.
	for _, query := range []string{
		"?target_price=50&margin=-0.5",
		"?target_price=50&margin=1",
		"?target_price=50&margin=zeer",
	} {
		body := get(query)
		assert.Equal(t, float64(10), body["marge_percentage"], query)
		assert.Equal(t, float64(1), body["aantal_gevonden"], query)
	}
}
