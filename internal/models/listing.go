package models

import (
	"strings"
	"time"
)

// Sentinel values used when a field cannot be extracted. The extractor
// guarantees every Listing field carries either a parsed value or one of
// these, never an empty slot.
const (
	UnknownValue      = "Onbekend"
	NoTitle           = "Geen titel"
	PriceOnRequest    = "Prijs op aanvraag"
	NoImage           = "Geen afbeelding"
	NoURL             = "Geen URL"
	NoRemarks         = "Geen opmerkingen"
	NoMatchInfo       = "Geen match info"
	MatchColorGreen   = "green"
	MatchColorOrange  = "orange"
	MatchColorRed     = "red"
	MatchColorUnknown = "unknown"
)

// Listing is one scraped part offer with normalized fields. JSON keys follow
// the wire format consumed by the dashboard and the CSV export.
type Listing struct {
	ID               string            `json:"product_id"`
	Title            string            `json:"titel"`
	Category         string            `json:"soort_onderdeel"`
	PriceText        string            `json:"prijs"`
	Price            float64           `json:"prijs_numeriek"`
	PriceType        string            `json:"prijs_type"`
	Warranty         string            `json:"garantie"`
	Seller           string            `json:"aanbieder"`
	ImageURL         string            `json:"afbeelding_url"`
	ProductURL       string            `json:"product_url"`
	Remarks          string            `json:"opmerkingen"`
	MatchDescription string            `json:"match_beschrijving"`
	MatchColor       string            `json:"match_kleur"`
	DirectOrderable  bool              `json:"direct_bestelbaar"`
	Specs            map[string]string `json:"specificaties"`
	Page             int               `json:"pagina"`
	CategoryURL      string            `json:"categorie_url"`
	ScrapedAt        time.Time         `json:"scraped_at"`
}

// HasPrice reports whether the listing carries a usable numeric price.
// Listings priced "on request" parse to 0 and are excluded from statistics.
func (l *Listing) HasPrice() bool {
	return l.Price > 0
}

// CategoryLink is one resolved part-category entry point. It is produced by
// category resolution and consumed immediately by the pagination walker.
type CategoryLink struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SearchTerm  string `json:"search_term"`
}

// NormalizeSpecKey maps a free-text specification label to the column name
// used at the CSV/JSON export boundary: lowercase, with spaces, hyphens and
// slashes replaced by underscores. The in-memory Specs map keeps labels
// verbatim; only the export surface normalizes.
func NormalizeSpecKey(key string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "-", "_")
	return strings.ToLower(r.Replace(key))
}
