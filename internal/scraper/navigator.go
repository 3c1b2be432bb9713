package scraper

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/playwright-community/playwright-go"
	"github.com/partsmarkt/parts-scraper/internal/browser"
	"github.com/partsmarkt/parts-scraper/internal/models"
)

const (
	searchPath           = "/auto-onderdelen-voorraad/zoeken/"
	plateInputSelector   = "#objlicenseplate"
	plateSubmitSelector  = `[name="m$mpc$ctl17"]`
	partsMarkerSelector   = "#parts"
	categoryIndexSelector = "div.search-results-list"
	categoryLinkSelector  = "div.search-results-list a"
)

// synonymFamilies expands a generic part name into the terms the site
// actually uses in its category index. A family applies when the part name
// contains its key, so "remmen" and "remblok" both pick up the brake terms.
var synonymFamilies = []struct {
	key   string
	terms []string
}{
	{"rem", []string{"remschijf", "remblok", "remklauw", "handrem"}},
	{"accu", []string{"accubak", "batterij"}},
	{"motor", []string{"motorblok", "motor", "aandrijving"}},
	{"uitlaat", []string{"uitlaatsysteem", "demper", "katalysator"}},
	{"bumper", []string{"voorbumper", "achterbumper"}},
	{"koplamp", []string{"koplamp", "achterlicht", "verlichting"}},
}

// Navigator performs the license-plate search flow: open the search page,
// submit the plate, and resolve the part name to category links on the
// resulting vehicle page.
type Navigator struct {
	browser *browser.Browser
	baseURL string
	logger  *slog.Logger
}

func NewNavigator(b *browser.Browser, baseURL string, logger *slog.Logger) *Navigator {
	return &Navigator{
		browser: b,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "navigator"),
	}
}

// EnterLicensePlate opens the search page, fills in the plate and submits.
// Success is observed by the vehicle parts marker appearing.
func (n *Navigator) EnterLicensePlate(page playwright.Page, plate string) error {
	startURL := n.baseURL + searchPath
	if err := n.browser.NavigateWithRetry(page, startURL, 3); err != nil {
		return fmt.Errorf("open search page: %w", err)
	}

	n.browser.RemoveOverlays(page)

	if _, err := n.browser.WaitForSelector(page, plateInputSelector); err != nil {
		return fmt.Errorf("license plate input not found: %w", err)
	}

	if err := page.Fill(plateInputSelector, plate); err != nil {
		return fmt.Errorf("fill license plate: %w", err)
	}
	n.logger.Info("entered license plate", "plate", plate)

	submit, err := page.QuerySelector(plateSubmitSelector)
	if err != nil || submit == nil {
		return fmt.Errorf("search button not found")
	}
	if err := n.browser.ClickWithFallback(page, submit); err != nil {
		return fmt.Errorf("submit license plate: %w", err)
	}

	if _, err := n.browser.WaitForSelector(page, partsMarkerSelector); err != nil {
		return fmt.Errorf("vehicle page did not load: %w", err)
	}

	return nil
}

// FindCategoryLinks scans the vehicle page's category index for entries
// matching the part name or one of its synonyms. Duplicate URLs are
// suppressed, keeping the first occurrence.
func (n *Navigator) FindCategoryLinks(page playwright.Page, partName string) ([]models.CategoryLink, error) {
	// The vehicle page confirmation marker can attach before the category
	// index finishes rendering, so wait for the index itself.
	if _, err := n.browser.WaitForSelector(page, categoryIndexSelector); err != nil {
		return nil, fmt.Errorf("category index did not render: %w", err)
	}

	anchors, err := page.QuerySelectorAll(categoryLinkSelector)
	if err != nil {
		return nil, fmt.Errorf("query category index: %w", err)
	}

	terms := ExpandSearchTerms(partName)
	n.logger.Info("matching categories", "part", partName, "terms", terms, "candidates", len(anchors))

	var links []models.CategoryLink
	seen := map[string]bool{}

	for _, anchor := range anchors {
		text, err := anchor.TextContent()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)

		title, _ := anchor.GetAttribute("title")
		term := FirstMatchingTerm(text, terms)
		if term == "" {
			term = FirstMatchingTerm(title, terms)
		}
		if term == "" {
			continue
		}

		href, err := anchor.GetAttribute("href")
		if err != nil || href == "" {
			continue
		}
		url := n.absoluteURL(href)
		if seen[url] {
			continue
		}
		seen[url] = true

		name := strings.TrimSpace(title)
		if name == "" {
			name = text
		}

		description := ""
		if dataCategory, _ := anchor.GetAttribute("data-category"); dataCategory != "" {
			description = "Categorieën: " + strings.TrimSpace(dataCategory)
		}

		links = append(links, models.CategoryLink{
			URL:         url,
			Name:        name,
			Description: description,
			SearchTerm:  term,
		})
	}

	n.logger.Info("resolved categories", "part", partName, "matches", len(links))
	return links, nil
}

func (n *Navigator) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return n.baseURL + href
}

// ExpandSearchTerms returns the lowercased part name plus the synonyms of
// every family whose key the name contains. Part names outside all families
// expand to just themselves.
func ExpandSearchTerms(partName string) []string {
	term := strings.ToLower(strings.TrimSpace(partName))
	terms := []string{term}
	seen := map[string]bool{term: true}
	for _, family := range synonymFamilies {
		if !strings.Contains(term, family.key) {
			continue
		}
		for _, syn := range family.terms {
			if !seen[syn] {
				seen[syn] = true
				terms = append(terms, syn)
			}
		}
	}
	return terms
}

// FirstMatchingTerm returns the first term contained in text,
// case-insensitively, or "" when none match.
func FirstMatchingTerm(text string, terms []string) string {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if term != "" && strings.Contains(lower, term) {
			return term
		}
	}
	return ""
}

// MatchesAnyTerm reports whether text contains any of the terms.
func MatchesAnyTerm(text string, terms []string) bool {
	return FirstMatchingTerm(text, terms) != ""
}
