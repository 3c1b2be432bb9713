package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/partsmarkt/parts-scraper/internal/models"
)

const narrativeSystemPrompt = "Je bent een expert in automotive aftermarket pricing. " +
	"Geef praktische prijsaanbevelingen in het Nederlands."

// NarrativeResult is the combined AI + local recommendation response.
type NarrativeResult struct {
	Success         bool                     `json:"success,omitempty"`
	Error           string                   `json:"error,omitempty"`
	Analysis        string                   `json:"analysis,omitempty"`
	Recommendations []CategoryRecommendation `json:"recommendations"`
	Timestamp       string                   `json:"timestamp,omitempty"`
}

// CategoryRecommendation is a locally-computed pricing suggestion for one
// category, independent of the model's free-text analysis.
type CategoryRecommendation struct {
	Category         string  `json:"category"`
	CurrentAvg       float64 `json:"current_avg"`
	SuggestedPrice   float64 `json:"suggested_price"`
	PotentialMargin  float64 `json:"potential_margin"`
	CompetitionLevel string  `json:"competition_level"`
	PriceVariance    float64 `json:"price_variance"`
}

// Narrator produces a free-text market analysis via the Anthropic API. It
// degrades gracefully: without an API key every call returns an error result
// instead of failing the request, and the local recommendations are still
// computed.
type Narrator struct {
	client       sdk.Client
	enabled      bool
	model        string
	targetMargin float64
	logger       *slog.Logger
}

func NewNarrator(apiKey, model string, targetMargin float64, logger *slog.Logger) *Narrator {
	n := &Narrator{
		model:        model,
		targetMargin: targetMargin,
		logger:       logger.With("component", "narrator"),
	}
	if apiKey == "" {
		n.logger.Warn("no Anthropic API key configured, AI analysis disabled")
		return n
	}
	n.client = sdk.NewClient(option.WithAPIKey(apiKey))
	n.enabled = true
	return n
}

// Available reports whether an API key is configured.
func (n *Narrator) Available() bool {
	return n.enabled
}

// AnalyzePricing builds a market summary from the listings, asks the model
// for a narrative, and attaches locally-computed per-category
// recommendations. Model failures come back as an error result with the
// local recommendations intact.
func (n *Narrator) AnalyzePricing(ctx context.Context, products []models.Listing) NarrativeResult {
	recommendations := LocalRecommendations(products)

	if !n.enabled {
		return NarrativeResult{
			Error:           "Anthropic API key niet geconfigureerd",
			Recommendations: recommendations,
		}
	}

	prompt := buildAnalysisPrompt(summarizeByCategory(products), n.targetMargin)

	message, err := n.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(n.model),
		MaxTokens:   1500,
		Temperature: sdk.Float(0.7),
		System: []sdk.TextBlockParam{
			{Text: narrativeSystemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		n.logger.Error("AI analysis failed", "error", err)
		return NarrativeResult{
			Error:           fmt.Sprintf("AI analyse mislukt: %v", err),
			Recommendations: recommendations,
		}
	}

	var analysis strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			analysis.WriteString(block.Text)
		}
	}

	return NarrativeResult{
		Success:         true,
		Analysis:        analysis.String(),
		Recommendations: recommendations,
		Timestamp:       time.Now().Format(time.RFC3339),
	}
}

// categorySummary is the per-category digest fed into the prompt.
type categorySummary struct {
	category string
	count    int
	minPrice float64
	maxPrice float64
	avgPrice float64
	examples []exampleListing
}

type exampleListing struct {
	name  string
	price float64
	match string
}

func summarizeByCategory(products []models.Listing) []categorySummary {
	grouped := map[string]*categorySummary{}

	for _, p := range products {
		if !p.HasPrice() {
			continue
		}
		summary, ok := grouped[p.Category]
		if !ok {
			summary = &categorySummary{category: p.Category, minPrice: p.Price, maxPrice: p.Price}
			grouped[p.Category] = summary
		}

		summary.count++
		summary.avgPrice += p.Price
		if p.Price < summary.minPrice {
			summary.minPrice = p.Price
		}
		if p.Price > summary.maxPrice {
			summary.maxPrice = p.Price
		}
		if len(summary.examples) < 3 {
			summary.examples = append(summary.examples, exampleListing{
				name:  p.Title,
				price: p.Price,
				match: p.MatchDescription,
			})
		}
	}

	summaries := make([]categorySummary, 0, len(grouped))
	for _, summary := range grouped {
		summary.avgPrice /= float64(summary.count)
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].category < summaries[j].category
	})
	return summaries
}

func buildAnalysisPrompt(summaries []categorySummary, targetMargin float64) string {
	var b strings.Builder
	b.WriteString("Analyseer de volgende auto-onderdelen marktdata en geef prijsaanbevelingen:\n\nMARKTDATA:\n")

	for _, s := range summaries {
		fmt.Fprintf(&b, "\n%s:", s.category)
		fmt.Fprintf(&b, "\n- Aantal producten: %d", s.count)
		fmt.Fprintf(&b, "\n- Prijsbereik: €%.2f - €%.2f", s.minPrice, s.maxPrice)
		fmt.Fprintf(&b, "\n- Gemiddelde prijs: €%.2f", s.avgPrice)
		for _, ex := range s.examples {
			fmt.Fprintf(&b, "\n  • %s: €%.2f (%s)", ex.name, ex.price, ex.match)
		}
	}

	fmt.Fprintf(&b, `

OPDRACHT:
1. Analyseer de concurrentiepositie per productcategorie
2. Identificeer prijskansen (te hoog/laag geprijsde items)
3. Geef concrete prijsaanbevelingen met %.0f%% marge
4. Overweeg kwaliteit indicatoren (100%% match vs alternatief)
5. Geef strategisch advies voor maximale winst

Geef je analyse in een gestructureerd format met:
- Marktoverzicht
- Top 5 prijskansen
- Aanbevolen prijsstrategie per categorie
- Risico's en aandachtspunten
`, targetMargin*100)

	return b.String()
}

// LocalRecommendations derives a per-category price suggestion without the
// model: the 25th percentile when a category carries three or more priced
// listings, otherwise 5% under the category average. Competition level is
// Hoog above 10 priced listings, Gemiddeld above 5, else Laag.
func LocalRecommendations(products []models.Listing) []CategoryRecommendation {
	grouped := map[string][]float64{}
	for _, p := range products {
		if p.HasPrice() {
			grouped[p.Category] = append(grouped[p.Category], p.Price)
		}
	}

	recommendations := make([]CategoryRecommendation, 0, len(grouped))
	for category, prices := range grouped {
		avg := mean(prices)
		minPrice, maxPrice := minMax(prices)

		var optimal float64
		if len(prices) >= 3 {
			sorted := make([]float64, len(prices))
			copy(sorted, prices)
			sort.Float64s(sorted)
			optimal = sorted[len(sorted)/4]
		} else {
			optimal = avg * 0.95
		}

		rec := CategoryRecommendation{
			Category:       category,
			CurrentAvg:     avg,
			SuggestedPrice: optimal,
		}
		if optimal > 0 {
			rec.PotentialMargin = (optimal - minPrice) / optimal
		}
		if avg > 0 {
			rec.PriceVariance = (maxPrice - minPrice) / avg
		}
		switch {
		case len(prices) > 10:
			rec.CompetitionLevel = "Hoog"
		case len(prices) > 5:
			rec.CompetitionLevel = "Gemiddeld"
		default:
			rec.CompetitionLevel = "Laag"
		}

		recommendations = append(recommendations, rec)
	}

	sort.Slice(recommendations, func(i, j int) bool {
		return recommendations[i].Category < recommendations[j].Category
	})
	return recommendations
}
