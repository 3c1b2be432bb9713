package scraper

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsmarkt/parts-scraper/internal/models"
)

const fullListingHTML = `
<li data-gtm-id="P12345" onclick="window.location.href='/onderdeel/12345/'">
  <div class="description">
    <span class="bold">Remschijf voorzijde</span>
    <p>Gebruikte remschijf</p>
    <p>
      <span class="item"><span class="grey">Bouwjaar</span><span>2018</span></span>
      <span class="item"><span class="grey">Merk onderdeel</span><span>Bosch</span></span>
      <span class="item"><span class="grey">Kleur</span> Zwart</span>
    </p>
    <p><span class="grey">Bijzonderheid</span> Lichte slijtage</p>
    <img class="img-responsive" src="https://images.example/12345.jpg">
  </div>
  <div class="pricing">
    <p>Garantie: 6 maanden</p>
    <span class="block">AutoDemontage Jansen</span>
    <span class="price">€ 49,95</span>
  </div>
  <p title="Perfecte match voor uw voertuig">match indicatie</p>
  <span class="match green"></span>
  <p class="order-directly">Direct bestelbaar</p>
</li>`

func newTestExtractor() *Extractor {
	return NewExtractor("https://www.onderdelenlijn.nl", slog.Default())
}

func TestExtractListing_FullListing(t *testing.T) {
	listing := newTestExtractor().ExtractListing(fullListingHTML)

	assert.Equal(t, "12345", listing.ID)
	assert.Equal(t, "Remschijf voorzijde", listing.Title)
	assert.Equal(t, "Gebruikte remschijf", listing.Category)
	assert.Equal(t, "€ 49,95", listing.PriceText)
	assert.Equal(t, 49.95, listing.Price)
	assert.Equal(t, "Standaard", listing.PriceType)
	assert.Equal(t, "6 maanden", listing.Warranty)
	assert.Equal(t, "AutoDemontage Jansen", listing.Seller)
	assert.Equal(t, "https://images.example/12345.jpg", listing.ImageURL)
	assert.Equal(t, "https://www.onderdelenlijn.nl/onderdeel/12345/", listing.ProductURL)
	assert.Equal(t, "Lichte slijtage", listing.Remarks)
	assert.Equal(t, "Perfecte match voor uw voertuig", listing.MatchDescription)
	assert.Equal(t, models.MatchColorGreen, listing.MatchColor)
	assert.True(t, listing.DirectOrderable)
	assert.True(t, listing.HasPrice())
}

func TestExtractListing_Specifications(t *testing.T) {
	listing := newTestExtractor().ExtractListing(fullListingHTML)

	require.Len(t, listing.Specs, 3)
	assert.Equal(t, "2018", listing.Specs["Bouwjaar"])
	assert.Equal(t, "Bosch", listing.Specs["Merk onderdeel"])
	// No adjacent value element: the value is the item text minus the label.
	assert.Equal(t, "Zwart", listing.Specs["Kleur"])
}

func TestExtractListing_PriceOnRequest(t *testing.T) {
	html := `<li>
	  <div class="description"><span class="bold">Motorblok</span></div>
	  <div class="pricing"><span class="price">Prijs op aanvraag</span></div>
	</li>`

	listing := newTestExtractor().ExtractListing(html)

	assert.Equal(t, models.PriceOnRequest, listing.PriceText)
	assert.Equal(t, 0.0, listing.Price)
	assert.Equal(t, "Op aanvraag", listing.PriceType)
	assert.False(t, listing.HasPrice())
}

func TestExtractListing_MissingFieldsUseSentinels(t *testing.T) {
	listing := newTestExtractor().ExtractListing(`<li></li>`)

	assert.Equal(t, models.UnknownValue, listing.ID)
	assert.Equal(t, models.NoTitle, listing.Title)
	assert.Equal(t, models.UnknownValue, listing.Category)
	assert.Equal(t, models.PriceOnRequest, listing.PriceText)
	assert.Equal(t, models.UnknownValue, listing.Warranty)
	assert.Equal(t, models.UnknownValue, listing.Seller)
	assert.Equal(t, models.NoImage, listing.ImageURL)
	assert.Equal(t, models.NoURL, listing.ProductURL)
	assert.Equal(t, models.NoRemarks, listing.Remarks)
	assert.Equal(t, models.NoMatchInfo, listing.MatchDescription)
	assert.Equal(t, models.MatchColorUnknown, listing.MatchColor)
	assert.False(t, listing.DirectOrderable)
	assert.NotNil(t, listing.Specs)
}

func TestExtractListing_GarbageInput(t *testing.T) {
	listing := newTestExtractor().ExtractListing("not html at all <<<")

	assert.Equal(t, models.UnknownValue, listing.ID)
	assert.Equal(t, models.NoTitle, listing.Title)
}

func TestExtractListing_MatchColors(t *testing.T) {
	tests := []struct {
		name  string
		class string
		want  string
	}{
		{"green", "match green", models.MatchColorGreen},
		{"orange", "match orange", models.MatchColorOrange},
		{"red", "match red", models.MatchColorRed},
		{"none", "match", models.MatchColorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<li><span class="` + tt.class + `"></span></li>`
			listing := newTestExtractor().ExtractListing(html)
			assert.Equal(t, tt.want, listing.MatchColor)
		})
	}
}

func TestExtractListing_AbsoluteProductURLKept(t *testing.T) {
	html := `<li onclick="window.location.href='https://elders.example/p/9'"></li>`
	listing := newTestExtractor().ExtractListing(html)
	assert.Equal(t, "https://elders.example/p/9", listing.ProductURL)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"comma decimal", "€ 49,95", 49.95},
		{"thousands with decimal", "€ 1.234,56", 1234.56},
		{"thousands without decimal", "€ 1.234", 1234},
		{"plain integer", "€ 123", 123},
		{"dot decimal", "€ 12.5", 12.5},
		{"no currency marker", "49,95", 0},
		{"on request", "Prijs op aanvraag", 0},
		{"empty", "", 0},
		{"embedded", "vanaf € 250,00 incl. btw", 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePrice(tt.text))
		})
	}
}
