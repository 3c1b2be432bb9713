package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry               *prometheus.Registry
	PagesScrapedTotal      prometheus.Counter
	ListingsExtractedTotal prometheus.Counter
	ListingErrorsTotal     prometheus.Counter
	WaitTimeoutsTotal      prometheus.Counter
	SessionsTotal          *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_pages_scraped_total",
		Help: "Total result pages walked across all sessions.",
	})
	listings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_listings_extracted_total",
		Help: "Total listings appended to session collections.",
	})
	listingErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_listing_errors_total",
		Help: "Total listing nodes skipped due to extraction failures.",
	})
	waitTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_wait_timeouts_total",
		Help: "Total structural wait timeouts on DOM markers.",
	})
	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_sessions_total",
			Help: "Total scraping sessions by final state.",
		},
		[]string{"state"},
	)

	registry.MustRegister(pages, listings, listingErrors, waitTimeouts, sessions)

	return &Metrics{
		Registry:               registry,
		PagesScrapedTotal:      pages,
		ListingsExtractedTotal: listings,
		ListingErrorsTotal:     listingErrors,
		WaitTimeoutsTotal:      waitTimeouts,
		SessionsTotal:          sessions,
	}
}

// IncPages increments the pages scraped counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesScrapedTotal.Inc()
}

// IncListings increments the listings extracted counter.
func (m *Metrics) IncListings() {
	if m == nil {
		return
	}
	m.ListingsExtractedTotal.Inc()
}

// IncListingErrors increments the skipped-listing counter.
func (m *Metrics) IncListingErrors() {
	if m == nil {
		return
	}
	m.ListingErrorsTotal.Inc()
}

// IncWaitTimeouts increments the structural wait timeout counter.
func (m *Metrics) IncWaitTimeouts() {
	if m == nil {
		return
	}
	m.WaitTimeoutsTotal.Inc()
}

// IncSessions increments the sessions counter for a final state.
func (m *Metrics) IncSessions(state string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(state).Inc()
}
