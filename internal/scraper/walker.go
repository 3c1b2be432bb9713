package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/partsmarkt/parts-scraper/internal/browser"
	"github.com/partsmarkt/parts-scraper/internal/session"
)

const (
	resultListSelector = "#result-list"
	listingSelector    = "ul#result-list > li"
	nextButtonSelector = `span.pagination input[value=">"]:not([disabled])`
)

// Walker drives the JavaScript pagination of one category: wait for the
// result list, extract every listing node, dismiss overlays, click the next
// control and wait for the previous content to be replaced. The loop is
// bounded by a maximum page count and a maximum run of consecutive wait
// timeouts so it terminates even against unexpected site behavior.
type Walker struct {
	browser   *browser.Browser
	extractor *Extractor
	metrics   *Metrics
	logger    *slog.Logger

	maxPages               int
	maxConsecutiveTimeouts int
	settle                 time.Duration
}

type WalkerOptions struct {
	MaxPages               int
	MaxConsecutiveTimeouts int
	Settle                 time.Duration
}

func NewWalker(b *browser.Browser, extractor *Extractor, metrics *Metrics, logger *slog.Logger, opts WalkerOptions) *Walker {
	if opts.MaxPages < 1 {
		opts.MaxPages = 50
	}
	if opts.MaxConsecutiveTimeouts < 1 {
		opts.MaxConsecutiveTimeouts = 2
	}
	if opts.Settle <= 0 {
		opts.Settle = time.Second
	}

	return &Walker{
		browser:                b,
		extractor:              extractor,
		metrics:                metrics,
		logger:                 logger.With("component", "walker"),
		maxPages:               opts.MaxPages,
		maxConsecutiveTimeouts: opts.MaxConsecutiveTimeouts,
		settle:                 opts.Settle,
	}
}

// WalkCategory scrapes every page of one category, appending extracted
// listings to the tracker. Exhausted pagination and structural wait timeouts
// both end the walk without an error; only cancellation propagates.
func (w *Walker) WalkCategory(ctx context.Context, page playwright.Page, categoryURL string, tracker *session.Session) error {
	w.logger.Info("scraping category", "url", categoryURL)

	if err := w.browser.NavigateWithRetry(page, categoryURL, 2); err != nil {
		w.logger.Error("failed to open category", "url", categoryURL, "error", err)
		return nil
	}

	pageNumber := 1
	consecutiveTimeouts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if pageNumber > w.maxPages {
			w.logger.Warn("page cap reached, stopping category", "url", categoryURL, "maxPages", w.maxPages)
			return nil
		}

		tracker.SetCurrentPage(pageNumber)

		if _, err := w.browser.WaitForSelector(page, resultListSelector); err != nil {
			w.metrics.IncWaitTimeouts()
			consecutiveTimeouts++
			w.logger.Error("timeout waiting for result list", "page", pageNumber, "error", err)
			if consecutiveTimeouts >= w.maxConsecutiveTimeouts {
				return nil
			}
			continue
		}
		consecutiveTimeouts = 0

		time.Sleep(w.settle)

		nodes, err := page.QuerySelectorAll(listingSelector)
		if err != nil {
			w.logger.Error("failed to enumerate listings", "page", pageNumber, "error", err)
			return nil
		}

		w.logger.Info("found listings", "page", pageNumber, "count", len(nodes))

		for idx, node := range nodes {
			// Nodes can go stale mid-page when the site re-renders; skip
			// the affected listing and keep going.
			html, err := node.Evaluate(`el => el.outerHTML`)
			if err != nil {
				w.metrics.IncListingErrors()
				w.logger.Warn("stale or unreadable listing node, skipping", "page", pageNumber, "index", idx, "error", err)
				continue
			}
			fragment, ok := html.(string)
			if !ok {
				w.metrics.IncListingErrors()
				continue
			}

			listing := w.extractor.ExtractListing(fragment)
			listing.Page = pageNumber
			listing.CategoryURL = categoryURL
			tracker.Append(listing)
			w.metrics.IncListings()
		}

		w.metrics.IncPages()

		w.browser.RemoveOverlays(page)

		next, err := page.QuerySelector(nextButtonSelector)
		if err != nil || next == nil {
			// No enabled next control: last page, normal termination.
			w.logger.Info("no more pages", "url", categoryURL, "lastPage", pageNumber)
			return nil
		}

		if err := next.ScrollIntoViewIfNeeded(); err != nil {
			w.logger.Debug("scroll into view failed", "error", err)
		}
		time.Sleep(500 * time.Millisecond)

		var firstNode playwright.ElementHandle
		if len(nodes) > 0 {
			firstNode = nodes[0]
		}

		if err := w.browser.ClickWithFallback(page, next); err != nil {
			w.logger.Error("failed to click next control", "page", pageNumber, "error", err)
			return nil
		}

		if firstNode != nil {
			if err := w.browser.WaitForDetach(page, firstNode); err != nil {
				w.metrics.IncWaitTimeouts()
				w.logger.Warn("content replacement not observed", "page", pageNumber, "error", err)
				// The result-list wait at the top of the loop decides
				// whether the category is still scrapable.
			}
		}

		pageNumber++
	}
}
