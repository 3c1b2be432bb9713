package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/partsmarkt/parts-scraper/internal/analysis"
	"github.com/partsmarkt/parts-scraper/internal/config"
	"github.com/partsmarkt/parts-scraper/internal/models"
	"github.com/partsmarkt/parts-scraper/internal/scraper"
	"github.com/partsmarkt/parts-scraper/internal/session"
)

type Handlers struct {
	scraper  *scraper.Service
	sessions *session.Manager
	narrator *analysis.Narrator
	cfg      *config.Config
	logger   *slog.Logger
}

func NewHandlers(svc *scraper.Service, sessions *session.Manager, narrator *analysis.Narrator, cfg *config.Config, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:  svc,
		sessions: sessions,
		narrator: narrator,
		cfg:      cfg,
		logger:   logger.With("component", "api"),
	}
}

// ScrapeRequest starts a scraping run or a category lookup.
type ScrapeRequest struct {
	LicensePlate       string                `json:"license_plate"`
	PartName           string                `json:"part_name"`
	SelectedCategories []models.CategoryLink `json:"selected_categories"`
}

// GetCategories resolves the category links matching a part name for a
// vehicle, without scraping listings.
func (h *Handlers) GetCategories(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plate := FormatLicensePlate(req.LicensePlate)
	if plate == "" || req.PartName == "" {
		h.respondError(w, http.StatusBadRequest, "Kenteken en onderdeel zijn verplicht")
		return
	}

	categories, err := h.scraper.ResolveCategories(r.Context(), plate, req.PartName)
	if err != nil {
		h.logger.Error("category lookup failed", "plate", plate, "part", req.PartName, "error", err)
		h.respondError(w, http.StatusInternalServerError, "Er is een fout opgetreden: "+err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"total":      len(categories),
	})
}

// StartScrape registers a session and launches the scrape in the background.
func (h *Handlers) StartScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plate := FormatLicensePlate(req.LicensePlate)
	if plate == "" || req.PartName == "" {
		h.respondError(w, http.StatusBadRequest, "Kenteken en onderdeel zijn verplicht")
		return
	}

	// The run outlives this request, so it gets its own context.
	sess := h.scraper.StartScrape(context.Background(), plate, req.PartName, req.SelectedCategories)

	h.respondJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID(),
		"status":     "started",
	})
}

// GetStatus reports progress of a running or finished session.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":        snap.State,
		"progress":      snap.Progress,
		"current_page":  snap.CurrentPage,
		"product_count": len(snap.Listings),
		"error":         snap.Error,
	})
}

// GetResults returns the collected listings with specifications flattened
// into spec_ columns.
func (h *Handlers) GetResults(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	products := make([]map[string]any, 0, len(snap.Listings))
	for _, l := range snap.Listings {
		products = append(products, flattenListing(l))
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"total":    len(products),
		"duration": time.Since(snap.StartedAt).String(),
	})
}

// GetPriceAnalysis returns the full market report, optionally narrowed to
// one category via ?category=.
func (h *Handlers) GetPriceAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if len(snap.Listings) == 0 {
		h.respondError(w, http.StatusBadRequest, "Geen producten beschikbaar voor analyse")
		return
	}

	analyzer := analysis.NewPriceAnalyzer(snap.Listings)
	report := analyzer.GenerateMarketReport(r.URL.Query().Get("category"))

	h.respondJSON(w, http.StatusOK, report)
}

// GetPriceRecommendations returns positioning tiers plus market statistics.
func (h *Handlers) GetPriceRecommendations(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if len(snap.Listings) == 0 {
		h.respondError(w, http.StatusBadRequest, "Geen producten beschikbaar")
		return
	}

	analyzer := analysis.NewPriceAnalyzer(snap.Listings)
	category := r.URL.Query().Get("category")
	if category != "" {
		analyzer = analyzer.FilterByCategory(category)
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"categorie":          category,
		"aanbevelingen":      analyzer.PriceRecommendations(),
		"markt_statistieken": analyzer.OverallStatistics(),
		"gegenereerd_op":     time.Now().Format(time.RFC3339),
	})
}

// GetCompetitiveAnalysis returns the priced listings around a target price.
// Without ?target_price= the market median is used; ?margin= overrides the
// configured band width.
func (h *Handlers) GetCompetitiveAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if len(snap.Listings) == 0 {
		h.respondError(w, http.StatusBadRequest, "Geen producten beschikbaar")
		return
	}

	targetPrice, _ := strconv.ParseFloat(r.URL.Query().Get("target_price"), 64)
	margin := h.cfg.Analysis.CompetitiveMargin
	if raw := r.URL.Query().Get("margin"); raw != "" {
		// Same range as config.Validate: a negative margin would invert
		// the band and a margin of 1 or more is meaningless.
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed < 1 {
			margin = parsed
		}
	}

	analyzer := analysis.NewPriceAnalyzer(snap.Listings)
	category := r.URL.Query().Get("category")
	if category != "" {
		analyzer = analyzer.FilterByCategory(category)
	}

	competing := analyzer.CompetitiveProducts(targetPrice, margin)

	h.respondJSON(w, http.StatusOK, map[string]any{
		"categorie":               category,
		"target_prijs":            targetPrice,
		"marge_percentage":        margin * 100,
		"concurrerende_producten": competing,
		"aantal_gevonden":         len(competing),
		"gegenereerd_op":          time.Now().Format(time.RFC3339),
	})
}

// GetAIAnalysis runs the AI narrative over the session's listings. Without a
// configured API key the response still carries the local recommendations.
func (h *Handlers) GetAIAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if len(snap.Listings) == 0 {
		h.respondError(w, http.StatusBadRequest, "Geen producten beschikbaar")
		return
	}

	result := h.narrator.AnalyzePricing(r.Context(), snap.Listings)
	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) snapshot(w http.ResponseWriter, r *http.Request) (session.Snapshot, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Sessie niet gevonden")
		return session.Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// FormatLicensePlate normalizes a Dutch license plate: uppercase, dashes
// stripped, and six-character plates re-grouped as XX-XX-XX. Other lengths
// pass through unchanged.
func FormatLicensePlate(raw string) string {
	plate := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", ""))
	if len(plate) == 6 {
		return plate[:2] + "-" + plate[2:4] + "-" + plate[4:]
	}
	return plate
}

// flattenListing converts a listing to the flat wire structure: base fields
// under their Dutch keys plus one spec_<key> column per specification.
func flattenListing(l models.Listing) map[string]any {
	flat := map[string]any{
		"product_id":         l.ID,
		"titel":              l.Title,
		"soort_onderdeel":    l.Category,
		"prijs":              l.PriceText,
		"prijs_numeriek":     l.Price,
		"prijs_type":         l.PriceType,
		"garantie":           l.Warranty,
		"aanbieder":          l.Seller,
		"afbeelding_url":     l.ImageURL,
		"product_url":        l.ProductURL,
		"opmerkingen":        l.Remarks,
		"match_beschrijving": l.MatchDescription,
		"match_kleur":        l.MatchColor,
		"direct_bestelbaar":  l.DirectOrderable,
		"pagina":             l.Page,
		"categorie_url":      l.CategoryURL,
		"scraped_at":         l.ScrapedAt.Format(time.RFC3339),
	}

	for key, value := range l.Specs {
		flat["spec_"+models.NormalizeSpecKey(key)] = value
	}

	return flat
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
