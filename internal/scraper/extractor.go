package scraper

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/partsmarkt/parts-scraper/internal/models"
)

var (
	priceRe     = regexp.MustCompile(`€\s*([0-9.,]+)`)
	thousandsRe = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	hrefRe      = regexp.MustCompile(`window\.location\.href='([^']+)'`)
)

// Extractor turns the HTML fragment of a single result node into a Listing.
// Every field is populated: either a parsed value or its sentinel. A failure
// on one field never aborts the remaining fields.
type Extractor struct {
	baseURL string
	logger  *slog.Logger
}

func NewExtractor(baseURL string, logger *slog.Logger) *Extractor {
	return &Extractor{
		baseURL: baseURL,
		logger:  logger.With("component", "extractor"),
	}
}

// ExtractListing parses the outer HTML of one listing node. It never fails;
// unparseable input yields a Listing made of sentinels.
func (e *Extractor) ExtractListing(html string) models.Listing {
	listing := models.Listing{
		ID:               models.UnknownValue,
		Title:            models.NoTitle,
		Category:         models.UnknownValue,
		PriceText:        models.PriceOnRequest,
		PriceType:        "Op aanvraag",
		Warranty:         models.UnknownValue,
		Seller:           models.UnknownValue,
		ImageURL:         models.NoImage,
		ProductURL:       models.NoURL,
		Remarks:          models.NoRemarks,
		MatchDescription: models.NoMatchInfo,
		MatchColor:       models.MatchColorUnknown,
		Specs:            map[string]string{},
		ScrapedAt:        time.Now(),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("failed to parse listing fragment", "error", err)
		return listing
	}

	node := doc.Find("li").First()
	if node.Length() == 0 {
		node = doc.Find("body").Children().First()
	}
	if node.Length() == 0 {
		return listing
	}

	e.extractIdentity(node, &listing)
	e.extractBasics(node, &listing)
	e.extractPrice(node, &listing)
	e.extractSpecs(node, &listing)
	e.extractRemarks(node, &listing)
	e.extractMatch(node, &listing)

	listing.DirectOrderable = node.Find("p.order-directly").Length() > 0

	return listing
}

func (e *Extractor) extractIdentity(node *goquery.Selection, listing *models.Listing) {
	if id := strings.TrimSpace(node.AttrOr("data-gtm-id", "")); id != "" {
		listing.ID = strings.TrimPrefix(id, "P")
	}

	onclick := node.AttrOr("onclick", "")
	if match := hrefRe.FindStringSubmatch(onclick); len(match) > 1 {
		listing.ProductURL = e.absoluteURL(match[1])
	}
}

func (e *Extractor) extractBasics(node *goquery.Selection, listing *models.Listing) {
	if title := firstText(node, "span.bold", ".description .bold"); title != "" {
		listing.Title = title
	}

	if category := firstText(node, "div.description p"); category != "" {
		listing.Category = category
	}

	if warranty := firstText(node, "div.pricing p"); warranty != "" {
		warranty = strings.TrimSpace(strings.TrimPrefix(warranty, "Garantie:"))
		warranty = strings.TrimSpace(strings.TrimPrefix(warranty, "Garantie"))
		if warranty != "" {
			listing.Warranty = warranty
		}
	}

	if seller := firstText(node, "div.pricing .block"); seller != "" {
		listing.Seller = seller
	}

	if src := firstAttr(node, "src", "img.img-responsive", ".description img"); src != "" {
		listing.ImageURL = src
	}
}

func (e *Extractor) extractPrice(node *goquery.Selection, listing *models.Listing) {
	priceText := firstText(node, "span.price", ".pricing .price")
	if priceText == "" {
		return
	}

	listing.PriceText = priceText
	listing.Price = ParsePrice(priceText)
	if listing.Price == 0 && !strings.Contains(priceText, "aanvraag") {
		e.logger.Debug("could not parse numeric price", "text", priceText)
	}

	switch {
	case firstText(node, "span.price span") != "":
		listing.PriceType = firstText(node, "span.price span")
	case strings.Contains(priceText, models.PriceOnRequest):
		listing.PriceType = "Op aanvraag"
	default:
		listing.PriceType = "Standaard"
	}
}

func (e *Extractor) extractSpecs(node *goquery.Selection, listing *models.Listing) {
	node.Find("div.description p span.item").Each(func(_ int, item *goquery.Selection) {
		key := strings.TrimSpace(item.Find("span.grey").First().Text())
		if key == "" {
			return
		}

		value := strings.TrimSpace(item.Find("span.grey + span").First().Text())
		if value == "" {
			// No adjacent value element: strip the label out of the full text.
			value = strings.TrimSpace(strings.Replace(item.Text(), key, "", 1))
		}

		if value != "" {
			listing.Specs[key] = value
		}
	})
}

func (e *Extractor) extractRemarks(node *goquery.Selection, listing *models.Listing) {
	node.Find("div.description span.grey").EachWithBreak(func(_ int, grey *goquery.Selection) bool {
		if !strings.Contains(grey.Text(), "Bijzonderheid") {
			return true
		}
		full := strings.TrimSpace(grey.Parent().Text())
		remarks := strings.TrimSpace(strings.Replace(full, "Bijzonderheid", "", 1))
		if remarks != "" {
			listing.Remarks = remarks
		}
		return false
	})
}

func (e *Extractor) extractMatch(node *goquery.Selection, listing *models.Listing) {
	node.Find("p[title]").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		title := p.AttrOr("title", "")
		if strings.Contains(strings.ToLower(title), "match") {
			listing.MatchDescription = title
			return false
		}
		return true
	})

	classes := node.Find("span.match").First().AttrOr("class", "")
	switch {
	case strings.Contains(classes, models.MatchColorGreen):
		listing.MatchColor = models.MatchColorGreen
	case strings.Contains(classes, models.MatchColorOrange):
		listing.MatchColor = models.MatchColorOrange
	case strings.Contains(classes, models.MatchColorRed):
		listing.MatchColor = models.MatchColorRed
	}
}

func (e *Extractor) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return e.baseURL + href
}

// ParsePrice pulls the currency-prefixed amount out of a display string.
// Thousands dots are stripped and the decimal comma converted; anything
// unparseable (including "Prijs op aanvraag") yields 0.
func ParsePrice(text string) float64 {
	match := priceRe.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0
	}

	raw := match[1]
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	} else if thousandsRe.MatchString(raw) {
		// Dutch notation: dots without a decimal comma group thousands.
		raw = strings.ReplaceAll(raw, ".", "")
	}

	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price < 0 {
		return 0
	}
	return price
}

// firstText returns the first non-empty trimmed text among the selectors,
// tried in order.
func firstText(node *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(node.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the attribute from the first selector that yields a
// non-empty value.
func firstAttr(node *goquery.Selection, attr string, selectors ...string) string {
	for _, selector := range selectors {
		if value := strings.TrimSpace(node.Find(selector).First().AttrOr(attr, "")); value != "" {
			return value
		}
	}
	return ""
}
