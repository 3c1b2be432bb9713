package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/partsmarkt/parts-scraper/internal/browser"
	"github.com/partsmarkt/parts-scraper/internal/config"
	"github.com/partsmarkt/parts-scraper/internal/models"
	"github.com/partsmarkt/parts-scraper/internal/session"
)

// Service orchestrates scraping runs. Each run gets its own browser instance
// and goroutine; the session registry is the only shared state.
type Service struct {
	cfg      *config.Config
	sessions *session.Manager
	metrics  *Metrics
	logger   *slog.Logger
}

func NewService(cfg *config.Config, sessions *session.Manager, metrics *Metrics, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.With("component", "scraper"),
	}
}

func (s *Service) browserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = s.cfg.Scraper.Headless
	opts.Timeout = time.Duration(s.cfg.Scraper.TimeoutSeconds) * time.Second
	return opts
}

// StartScrape registers a new session and launches the run in the
// background. Callers poll the session for progress and results.
func (s *Service) StartScrape(ctx context.Context, plate, partName string, selected []models.CategoryLink) *session.Session {
	sess := session.New(selected)
	s.sessions.Add(sess)

	go s.run(ctx, sess, plate, partName)

	return sess
}

func (s *Service) run(ctx context.Context, sess *session.Session, plate, partName string) {
	logger := s.logger.With("session", sess.ID(), "plate", plate, "part", partName)
	logger.Info("scraping session started")

	defer func() {
		snap := sess.Snapshot()
		s.metrics.IncSessions(string(snap.State))
		logger.Info("scraping session finished",
			"state", snap.State, "listings", len(snap.Listings), "pages", snap.TotalPages)
	}()

	if err := sess.Transition(session.StateRunning); err != nil {
		sess.Fail(err.Error())
		return
	}

	b, err := browser.New(s.browserOptions())
	if err != nil {
		sess.Fail(fmt.Sprintf("Browser kon niet starten: %v", err))
		return
	}
	defer b.Close()

	page, err := b.NewPage()
	if err != nil {
		sess.Fail(fmt.Sprintf("Pagina kon niet worden geopend: %v", err))
		return
	}

	navigator := NewNavigator(b, s.cfg.Scraper.BaseURL, s.logger)

	links := sess.SelectedCategories()
	if len(links) == 0 {
		if err := sess.Transition(session.StateEnteringLicensePlate); err != nil {
			sess.Fail(err.Error())
			return
		}
		if err := navigator.EnterLicensePlate(page, plate); err != nil {
			sess.Fail(fmt.Sprintf("Kenteken invoeren mislukt: %v", err))
			return
		}

		if err := sess.Transition(session.StateFindingCategories); err != nil {
			sess.Fail(err.Error())
			return
		}
		links, err = navigator.FindCategoryLinks(page, partName)
		if err != nil {
			sess.Fail(fmt.Sprintf("Categorieën zoeken mislukt: %v", err))
			return
		}
		if len(links) == 0 {
			sess.Fail(fmt.Sprintf("Geen categorieën gevonden voor onderdeel: %s", partName))
			return
		}
	}

	links = usableLinks(links)
	if len(links) == 0 {
		sess.Fail("Geen geldige URL's gevonden in geselecteerde categorieën")
		return
	}

	if err := sess.Transition(session.StateScraping); err != nil {
		sess.Fail(err.Error())
		return
	}

	walker := NewWalker(b, NewExtractor(s.cfg.Scraper.BaseURL, s.logger), s.metrics, s.logger, WalkerOptions{
		MaxPages:               s.cfg.Scraper.MaxPages,
		MaxConsecutiveTimeouts: s.cfg.Scraper.MaxConsecutiveTimeouts,
		Settle:                 time.Duration(s.cfg.Scraper.SettleMillis) * time.Millisecond,
	})

	for idx, link := range links {
		select {
		case <-ctx.Done():
			sess.Fail("Scraping geannuleerd")
			return
		default:
		}

		sess.SetProgress(idx * 100 / len(links))
		logger.Info("scraping category", "index", idx+1, "total", len(links), "name", link.Name)

		if err := walker.WalkCategory(ctx, page, link.URL, sess); err != nil {
			sess.Fail("Scraping geannuleerd")
			return
		}
	}

	if err := sess.Complete(); err != nil {
		sess.Fail(err.Error())
	}
}

// ResolveCategories runs the plate flow once to return the category links
// matching a part name, without scraping listings. It uses its own
// short-lived browser.
func (s *Service) ResolveCategories(ctx context.Context, plate, partName string) ([]models.CategoryLink, error) {
	b, err := browser.New(s.browserOptions())
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer b.Close()

	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	navigator := NewNavigator(b, s.cfg.Scraper.BaseURL, s.logger)
	if err := navigator.EnterLicensePlate(page, plate); err != nil {
		return nil, fmt.Errorf("license plate flow: %w", err)
	}

	return navigator.FindCategoryLinks(page, partName)
}

// usableLinks drops entries without a real URL, preserving order.
func usableLinks(links []models.CategoryLink) []models.CategoryLink {
	out := links[:0:0]
	for _, link := range links {
		if link.URL == "" || link.URL == models.NoURL {
			continue
		}
		out = append(out, link)
	}
	return out
}
