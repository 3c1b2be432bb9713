package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Browser wraps a Playwright Chromium instance. One Browser belongs to one
// scraping run; it is not safe for concurrent use from multiple goroutines.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout time.Duration
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        20 * time.Second,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "nl-NL",
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--window-size=1920,1080",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: &opts.UserAgent,
		Locale:    &opts.Locale,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		timeout: opts.Timeout,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.timeout.Milliseconds()))

	return page, nil
}

// Timeout returns the bounded wait used for structural DOM markers.
func (b *Browser) Timeout() time.Duration {
	return b.timeout
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

func (b *Browser) NavigateWithRetry(page playwright.Page, url string, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			time.Sleep(time.Duration(i+1) * time.Second)
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.timeout.Milliseconds())),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		b.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// WaitForSelector waits until the marker is attached to the DOM, bounded by
// the configured timeout. A returned error is a structural wait timeout.
func (b *Browser) WaitForSelector(page playwright.Page, selector string) (playwright.ElementHandle, error) {
	handle, err := page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(b.timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("wait for %q: %w", selector, err)
	}
	return handle, nil
}

// RemoveOverlays strips cookie/consent overlays so they cannot intercept
// clicks. Only fixed- or absolute-positioned elements are removed.
func (b *Browser) RemoveOverlays(page playwright.Page) {
	_, err := page.Evaluate(`() => {
		const cookieDiv = document.querySelector('div.cookies');
		if (cookieDiv) cookieDiv.remove();

		const elements = document.querySelectorAll('[class*="cookie"], [id*="cookie"], [class*="consent"], [id*="consent"]');
		elements.forEach(el => {
			const pos = window.getComputedStyle(el).position;
			if (pos === 'fixed' || pos === 'absolute') {
				el.remove();
			}
		});
	}`)
	if err != nil {
		b.logger.Info("could not remove overlays", "error", err)
	}
}

// ClickWithFallback clicks the element directly, falling back to a scripted
// click and finally a pointer action at the element's center when the direct
// click is intercepted.
func (b *Browser) ClickWithFallback(page playwright.Page, el playwright.ElementHandle) error {
	err := el.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(5000),
	})
	if err == nil {
		return nil
	}
	b.logger.Info("direct click failed, trying scripted click", "error", err)

	if _, evalErr := el.Evaluate(`el => el.click()`); evalErr == nil {
		return nil
	}

	box, boxErr := el.BoundingBox()
	if boxErr != nil || box == nil {
		return fmt.Errorf("click failed and no bounding box for pointer fallback: %w", err)
	}
	if mouseErr := page.Mouse().Click(box.X+box.Width/2, box.Y+box.Height/2); mouseErr != nil {
		return fmt.Errorf("all click strategies failed: %w", mouseErr)
	}
	return nil
}

// WaitForDetach blocks until a previously-held node reference is removed
// from the document, signalling that pagination replaced the content.
func (b *Browser) WaitForDetach(page playwright.Page, el playwright.ElementHandle) error {
	_, err := page.WaitForFunction(`el => !el || !el.isConnected`, el, playwright.PageWaitForFunctionOptions{
		Timeout: playwright.Float(float64(b.timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for content replacement: %w", err)
	}
	return nil
}
