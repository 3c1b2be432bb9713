package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/partsmarkt/parts-scraper/internal/models"
)

// Condition classifications derived from the part-kind text.
const (
	ConditionNew     = "Nieuw"
	ConditionUsed    = "Gebruikt"
	ConditionUnknown = "Onbekend"
)

// matchLabels maps the raw match color onto the human-readable group key
// used in the match-quality breakdown.
var matchLabels = map[string]string{
	models.MatchColorGreen:   "Perfecte match (groen)",
	models.MatchColorOrange:  "Goede match (oranje)",
	models.MatchColorRed:     "Basis match (rood)",
	models.MatchColorUnknown: "Onbekend",
}

// PriceItem is one priced listing in the analytic subset, flattened to the
// fields the analysis surfaces care about.
type PriceItem struct {
	ProductID       string  `json:"product_id"`
	Title           string  `json:"titel"`
	Category        string  `json:"soort_onderdeel"`
	PriceText       string  `json:"prijs_text"`
	Price           float64 `json:"prijs_numeriek"`
	PriceType       string  `json:"prijs_type"`
	Seller          string  `json:"aanbieder"`
	MatchColor      string  `json:"match_kleur"`
	DirectOrderable bool    `json:"direct_bestelbaar"`
	BuildYear       string  `json:"bouwjaar,omitempty"`
	PartBrand       string  `json:"merk_onderdeel,omitempty"`
	Condition       string  `json:"conditie"`
}

// OverallStatistics summarizes the analytic subset.
type OverallStatistics struct {
	TotalProducts     int     `json:"totaal_producten"`
	ProductsWithPrice int     `json:"producten_met_prijs"`
	AveragePrice      float64 `json:"gemiddelde_prijs"`
	MedianPrice       float64 `json:"mediaan_prijs"`
	MinimumPrice      float64 `json:"minimum_prijs"`
	MaximumPrice      float64 `json:"maximum_prijs"`
	PriceSpread       float64 `json:"prijs_spreiding"`
}

// PriceBucket is one equal-width histogram bucket.
type PriceBucket struct {
	Range      string  `json:"range"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ConditionStats summarizes prices within one condition group.
type ConditionStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"gemiddelde"`
	Median  float64 `json:"mediaan"`
	Minimum float64 `json:"minimum"`
	Maximum float64 `json:"maximum"`
}

// SupplierStats summarizes one supplier with two or more priced listings.
type SupplierStats struct {
	Supplier     string  `json:"aanbieder"`
	ProductCount int     `json:"aantal_producten"`
	AveragePrice float64 `json:"gemiddelde_prijs"`
	LowestPrice  float64 `json:"laagste_prijs"`
	HighestPrice float64 `json:"hoogste_prijs"`
}

// MatchStats summarizes prices within one match-quality group.
type MatchStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"gemiddelde"`
	Median  float64 `json:"mediaan"`
}

// Recommendation is one priced positioning suggestion.
type Recommendation struct {
	Description string  `json:"beschrijving"`
	Price       float64 `json:"prijs"`
	Rationale   string  `json:"rationale"`
}

// CategorySummary counts products per category, priced and total.
type CategorySummary struct {
	Category          string   `json:"categorie"`
	TotalProducts     int      `json:"totaal_producten"`
	ProductsWithPrice int      `json:"producten_met_prijs"`
	AveragePrice      *float64 `json:"gemiddelde_prijs"`
}

// MarketReport bundles all analysis surfaces into one response.
type MarketReport struct {
	Category          string                    `json:"categorie,omitempty"`
	Summary           *OverallStatistics        `json:"samenvatting"`
	PriceDistribution []PriceBucket             `json:"prijsverdeling"`
	ConditionAnalysis map[string]ConditionStats `json:"conditie_analyse"`
	SupplierAnalysis  []SupplierStats           `json:"aanbieder_analyse"`
	MatchAnalysis     map[string]MatchStats     `json:"match_analyse"`
	Recommendations   map[string]Recommendation `json:"prijsaanbevelingen"`
	AllCategories     []CategorySummary         `json:"alle_categorieen"`
	GeneratedAt       string                    `json:"gegenereerd_op"`
}

// PriceAnalyzer computes market statistics over a fixed listing snapshot.
// The analytic subset (listings with a positive numeric price) is derived
// once at construction; every method is a pure function of that subset, so
// repeated calls always agree.
type PriceAnalyzer struct {
	products  []models.Listing
	priceData []PriceItem
}

func NewPriceAnalyzer(products []models.Listing) *PriceAnalyzer {
	a := &PriceAnalyzer{products: products}
	a.priceData = extractPriceData(products)
	return a
}

func extractPriceData(products []models.Listing) []PriceItem {
	var data []PriceItem
	for _, p := range products {
		if !p.HasPrice() {
			continue
		}

		item := PriceItem{
			ProductID:       p.ID,
			Title:           p.Title,
			Category:        p.Category,
			PriceText:       p.PriceText,
			Price:           p.Price,
			PriceType:       p.PriceType,
			Seller:          p.Seller,
			MatchColor:      p.MatchColor,
			DirectOrderable: p.DirectOrderable,
			BuildYear:       p.Specs["Bouwjaar"],
			PartBrand:       p.Specs["Merk onderdeel"],
			Condition:       ConditionUnknown,
		}

		lower := strings.ToLower(p.Category)
		switch {
		case strings.Contains(lower, "nieuwe"):
			item.Condition = ConditionNew
		case strings.Contains(lower, "gebruikte"):
			item.Condition = ConditionUsed
		}

		data = append(data, item)
	}
	return data
}

// PricedCount returns the size of the analytic subset.
func (a *PriceAnalyzer) PricedCount() int {
	return len(a.priceData)
}

// OverallStatistics returns summary statistics for the analytic subset, or
// nil when no listing carries a price.
func (a *PriceAnalyzer) OverallStatistics() *OverallStatistics {
	if len(a.priceData) == 0 {
		return nil
	}

	prices := a.prices()
	minPrice, maxPrice := minMax(prices)

	return &OverallStatistics{
		TotalProducts:     len(a.priceData),
		ProductsWithPrice: len(prices),
		AveragePrice:      round2(mean(prices)),
		MedianPrice:       round2(median(prices)),
		MinimumPrice:      minPrice,
		MaximumPrice:      maxPrice,
		PriceSpread:       round2(maxPrice - minPrice),
	}
}

// PriceDistribution splits the price range into numBuckets equal-width
// buckets. Bucket boundaries are half-open except the last, which includes
// the maximum so every price lands in exactly one bucket.
func (a *PriceAnalyzer) PriceDistribution(numBuckets int) []PriceBucket {
	if len(a.priceData) == 0 || numBuckets < 1 {
		return nil
	}

	prices := a.prices()
	minPrice, maxPrice := minMax(prices)
	bucketSize := (maxPrice - minPrice) / float64(numBuckets)

	buckets := make([]PriceBucket, 0, numBuckets)
	for i := 0; i < numBuckets; i++ {
		lo := minPrice + float64(i)*bucketSize
		hi := minPrice + float64(i+1)*bucketSize
		last := i == numBuckets-1

		count := 0
		for _, price := range prices {
			if price >= lo && (price < hi || (last && price <= hi)) {
				count++
			}
		}

		buckets = append(buckets, PriceBucket{
			Range:      fmt.Sprintf("€%.0f - €%.0f", lo, hi),
			Count:      count,
			Percentage: round1(float64(count) / float64(len(prices)) * 100),
		})
	}
	return buckets
}

// ConditionAnalysis groups prices by Nieuw/Gebruikt/Onbekend.
func (a *PriceAnalyzer) ConditionAnalysis() map[string]ConditionStats {
	groups := map[string][]float64{}
	for _, item := range a.priceData {
		groups[item.Condition] = append(groups[item.Condition], item.Price)
	}

	results := make(map[string]ConditionStats, len(groups))
	for condition, prices := range groups {
		minPrice, maxPrice := minMax(prices)
		results[condition] = ConditionStats{
			Count:   len(prices),
			Average: round2(mean(prices)),
			Median:  round2(median(prices)),
			Minimum: minPrice,
			Maximum: maxPrice,
		}
	}
	return results
}

// SupplierAnalysis summarizes suppliers carrying at least two priced
// listings, most products first.
func (a *PriceAnalyzer) SupplierAnalysis() []SupplierStats {
	groups := map[string][]float64{}
	for _, item := range a.priceData {
		groups[item.Seller] = append(groups[item.Seller], item.Price)
	}

	var results []SupplierStats
	for supplier, prices := range groups {
		if len(prices) < 2 {
			continue
		}
		minPrice, maxPrice := minMax(prices)
		results = append(results, SupplierStats{
			Supplier:     supplier,
			ProductCount: len(prices),
			AveragePrice: round2(mean(prices)),
			LowestPrice:  minPrice,
			HighestPrice: maxPrice,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ProductCount != results[j].ProductCount {
			return results[i].ProductCount > results[j].ProductCount
		}
		return results[i].Supplier < results[j].Supplier
	})
	return results
}

// MatchQualityAnalysis groups prices by match color, keyed by display label.
func (a *PriceAnalyzer) MatchQualityAnalysis() map[string]MatchStats {
	groups := map[string][]float64{}
	for _, item := range a.priceData {
		groups[item.MatchColor] = append(groups[item.MatchColor], item.Price)
	}

	results := make(map[string]MatchStats, len(groups))
	for color, prices := range groups {
		label, ok := matchLabels[color]
		if !ok {
			label = color
		}
		results[label] = MatchStats{
			Count:   len(prices),
			Average: round2(mean(prices)),
			Median:  round2(median(prices)),
		}
	}
	return results
}

// PriceRecommendations derives positioning tiers from the market median,
// plus per-condition market prices when both conditions are represented.
func (a *PriceAnalyzer) PriceRecommendations() map[string]Recommendation {
	stats := a.OverallStatistics()
	if stats == nil {
		return nil
	}
	conditions := a.ConditionAnalysis()

	recommendations := map[string]Recommendation{
		"conservatief": {
			Description: "Veilige prijs onder marktgemiddelde",
			Price:       round2(stats.MedianPrice * 0.85),
			Rationale:   fmt.Sprintf("15%% onder mediaan van €%.2f", stats.MedianPrice),
		},
		"marktconform": {
			Description: "Prijs conform marktgemiddelde",
			Price:       stats.MedianPrice,
			Rationale:   fmt.Sprintf("Mediaan marktprijs van %d producten", len(a.priceData)),
		},
		"premium": {
			Description: "Hogere prijs voor kwaliteit/service",
			Price:       round2(stats.MedianPrice * 1.25),
			Rationale:   "25% boven mediaan voor toegevoegde waarde",
		},
	}

	if used, ok := conditions[ConditionUsed]; ok {
		recommendations["gebruikt_marktprijs"] = Recommendation{
			Description: "Marktprijs voor gebruikte onderdelen",
			Price:       used.Median,
			Rationale:   fmt.Sprintf("Mediaan van %d gebruikte onderdelen", used.Count),
		}
	}
	if fresh, ok := conditions[ConditionNew]; ok {
		recommendations["nieuw_marktprijs"] = Recommendation{
			Description: "Marktprijs voor nieuwe onderdelen",
			Price:       fresh.Median,
			Rationale:   fmt.Sprintf("Mediaan van %d nieuwe onderdelen", fresh.Count),
		}
	}

	return recommendations
}

// CompetitiveProducts returns the priced listings within
// [target*(1-margin), target*(1+margin)], ascending by price. A zero target
// falls back to the market median.
func (a *PriceAnalyzer) CompetitiveProducts(targetPrice, margin float64) []PriceItem {
	if targetPrice <= 0 {
		stats := a.OverallStatistics()
		if stats == nil {
			return nil
		}
		targetPrice = stats.MedianPrice
	}

	lo := targetPrice * (1 - margin)
	hi := targetPrice * (1 + margin)

	var competing []PriceItem
	for _, item := range a.priceData {
		if item.Price >= lo && item.Price <= hi {
			competing = append(competing, item)
		}
	}

	sort.Slice(competing, func(i, j int) bool {
		return competing[i].Price < competing[j].Price
	})
	return competing
}

// Categories returns the distinct non-sentinel category names, sorted.
func (a *PriceAnalyzer) Categories() []string {
	seen := map[string]bool{}
	for _, item := range a.priceData {
		if item.Category != "" && item.Category != models.UnknownValue {
			seen[item.Category] = true
		}
	}

	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// CategorySummaries counts the analytic subset per category, most products
// first. AveragePrice is nil for categories without any priced listing.
func (a *PriceAnalyzer) CategorySummaries() []CategorySummary {
	counts := map[string]int{}
	prices := map[string][]float64{}

	for _, item := range a.priceData {
		counts[item.Category]++
		if item.Price > 0 {
			prices[item.Category] = append(prices[item.Category], item.Price)
		}
	}

	summaries := make([]CategorySummary, 0, len(counts))
	for category, count := range counts {
		summary := CategorySummary{
			Category:          category,
			TotalProducts:     count,
			ProductsWithPrice: len(prices[category]),
		}
		if list := prices[category]; len(list) > 0 {
			avg := round2(mean(list))
			summary.AveragePrice = &avg
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalProducts != summaries[j].TotalProducts {
			return summaries[i].TotalProducts > summaries[j].TotalProducts
		}
		return summaries[i].Category < summaries[j].Category
	})
	return summaries
}

// FilterByCategory returns a new analyzer over the listings whose category
// equals the given one, case-insensitively. The receiver is unchanged.
func (a *PriceAnalyzer) FilterByCategory(category string) *PriceAnalyzer {
	var filtered []models.Listing
	for _, p := range a.products {
		if strings.EqualFold(p.Category, category) {
			filtered = append(filtered, p)
		}
	}
	return NewPriceAnalyzer(filtered)
}

// GenerateMarketReport bundles every analysis surface, optionally narrowed
// to one category. Category summaries always cover the full snapshot.
func (a *PriceAnalyzer) GenerateMarketReport(category string) MarketReport {
	scope := a
	if category != "" {
		scope = a.FilterByCategory(category)
	}

	suppliers := scope.SupplierAnalysis()
	if len(suppliers) > 10 {
		suppliers = suppliers[:10]
	}

	return MarketReport{
		Category:          category,
		Summary:           scope.OverallStatistics(),
		PriceDistribution: scope.PriceDistribution(5),
		ConditionAnalysis: scope.ConditionAnalysis(),
		SupplierAnalysis:  suppliers,
		MatchAnalysis:     scope.MatchQualityAnalysis(),
		Recommendations:   scope.PriceRecommendations(),
		AllCategories:     a.CategorySummaries(),
		GeneratedAt:       time.Now().Format(time.RFC3339),
	}
}

func (a *PriceAnalyzer) prices() []float64 {
	prices := make([]float64, len(a.priceData))
	for i, item := range a.priceData {
		prices[i] = item.Price
	}
	return prices
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
