package analysis

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsmarkt/parts-scraper/internal/models"
)

func TestNarrator_NoAPIKeyDegradesGracefully(t *testing.T) {
	n := NewNarrator("", "claude-3-5-haiku-latest", 0.15, slog.Default())
	assert.False(t, n.Available())

	result := n.AnalyzePricing(context.Background(), marketListings())

	assert.False(t, result.Success)
	assert.Equal(t, "Anthropic API key niet geconfigureerd", result.Error)
	assert.Empty(t, result.Analysis)
	// Local recommendations never depend on the model.
	assert.Len(t, result.Recommendations, 2)
}

func TestLocalRecommendations_PercentilePricing(t *testing.T) {
	// Four priced listings: the suggestion is the 25th percentile.
	products := []models.Listing{
		listing("Gebruikte remschijf", "A", models.MatchColorGreen, 40),
		listing("Gebruikte remschijf", "B", models.MatchColorGreen, 60),
		listing("Gebruikte remschijf", "C", models.MatchColorGreen, 80),
		listing("Gebruikte remschijf", "D", models.MatchColorGreen, 100),
	}

	recs := LocalRecommendations(products)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "Gebruikte remschijf", rec.Category)
	assert.Equal(t, 70.0, rec.CurrentAvg)
	assert.Equal(t, 60.0, rec.SuggestedPrice)
	assert.Equal(t, "Laag", rec.CompetitionLevel)
	assert.InDelta(t, (60.0-40.0)/60.0, rec.PotentialMargin, 1e-9)
	assert.InDelta(t, (100.0-40.0)/70.0, rec.PriceVariance, 1e-9)
}

func TestLocalRecommendations_SmallSampleUndercutsAverage(t *testing.T) {
	products := []models.Listing{
		listing("Nieuwe accu", "A", models.MatchColorGreen, 100),
		listing("Nieuwe accu", "B", models.MatchColorGreen, 200),
	}

	recs := LocalRecommendations(products)
	require.Len(t, recs, 1)
	assert.Equal(t, 150.0, recs[0].CurrentAvg)
	assert.InDelta(t, 142.5, recs[0].SuggestedPrice, 1e-9)
}

func TestLocalRecommendations_CompetitionLevels(t *testing.T) {
	build := func(n int) []models.Listing {
		products := make([]models.Listing, 0, n)
		for i := 0; i < n; i++ {
			products = append(products, listing("Cat", "S", models.MatchColorGreen, float64(10+i)))
		}
		return products
	}

	tests := []struct {
		name  string
		count int
		want  string
	}{
		{"low", 3, "Laag"},
		{"boundary stays medium", 6, "Gemiddeld"},
		{"high", 11, "Hoog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := LocalRecommendations(build(tt.count))
			require.Len(t, recs, 1)
			assert.Equal(t, tt.want, recs[0].CompetitionLevel)
		})
	}
}

func TestLocalRecommendations_SkipsUnpricedListings(t *testing.T) {
	products := []models.Listing{
		listing("Cat", "S", models.MatchColorGreen, 0),
	}
	assert.Empty(t, LocalRecommendations(products))
}

func TestBuildAnalysisPrompt(t *testing.T) {
	summaries := summarizeByCategory(marketListings())
	prompt := buildAnalysisPrompt(summaries, 0.15)

	assert.Contains(t, prompt, "MARKTDATA:")
	assert.Contains(t, prompt, "Gebruikte remschijf:")
	assert.Contains(t, prompt, "Nieuwe remschijf:")
	assert.Contains(t, prompt, "15% marge")
	assert.Contains(t, prompt, "Aantal producten: 5")
}

func TestSummarizeByCategory(t *testing.T) {
	summaries := summarizeByCategory(marketListings())
	require.Len(t, summaries, 2)

	used := summaries[0]
	assert.Equal(t, "Gebruikte remschijf", used.category)
	assert.Equal(t, 5, used.count)
	assert.Equal(t, 40.0, used.minPrice)
	assert.Equal(t, 120.0, used.maxPrice)
	assert.Equal(t, 80.0, used.avgPrice)
	assert.Len(t, used.examples, 3)
}
