// Package browser wraps one rod-driven Chrome session behind the small
// command surface the actor needs: open, navigate, extract, interact,
// download, close.
package browser

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// Config holds Chrome launch configuration
type Config struct {
	Headless    bool
	NoSandbox   bool
	ChromePath  string
	UserDataDir string
	CDPPort     int
	DownloadDir string
}

// Handle owns one live browser context with a single active page.
// All methods are safe for serial use; the dispatcher guarantees no two
// operations run concurrently.
type Handle struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	mu       sync.Mutex
	open     bool
}

// New creates an unopened browser handle
func New(cfg Config) *Handle {
	return &Handle{cfg: cfg}
}

// Open launches Chrome, connects over CDP and prepares a blank page.
// Downloads are routed into the configured download directory.
func (h *Handle) Open(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.open {
		return nil
	}

	l, cdpURL, err := spawnChrome(h.cfg)
	if err != nil {
		return err
	}

	b, err := connectCDP(ctx, cdpURL)
	if err != nil {
		l.Kill()
		return err
	}

	if h.cfg.DownloadDir != "" {
		setDownloads := proto.BrowserSetDownloadBehavior{
			Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
			DownloadPath: h.cfg.DownloadDir,
		}
		if err := setDownloads.Call(b); err != nil {
			log.Warn().Err(err).Msg("Failed to set download behavior")
		}
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		b.Close()
		l.Kill()
		return classify(err, KindDisconnected, "failed to create page")
	}

	h.launcher = l
	h.browser = b
	h.page = page
	h.open = true

	log.Info().Bool("headless", h.cfg.Headless).Msg("Browser session opened")
	return nil
}

// IsOpen reports whether the browser session is live
func (h *Handle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

func (h *Handle) activePage(ctx context.Context) (*rod.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open || h.page == nil {
		return nil, &EngineError{Kind: KindDisconnected, Message: "browser session not open"}
	}
	return h.page.Context(ctx), nil
}

// Navigate loads a URL and waits for the page load event
func (h *Handle) Navigate(ctx context.Context, url string) error {
	page, err := h.activePage(ctx)
	if err != nil {
		return err
	}

	if err := page.Navigate(url); err != nil {
		return classify(err, KindDisconnected, "failed to navigate to %s", url)
	}
	if err := page.WaitLoad(); err != nil {
		return classify(err, KindTimedOut, "page load for %s", url)
	}
	return nil
}

// CurrentURL returns the active page's URL
func (h *Handle) CurrentURL(ctx context.Context) (string, error) {
	page, err := h.activePage(ctx)
	if err != nil {
		return "", err
	}

	info, err := page.Info()
	if err != nil {
		return "", classify(err, KindDisconnected, "failed to read page info")
	}
	return info.URL, nil
}

// PageText extracts the visible text of the current page
func (h *Handle) PageText(ctx context.Context) (string, error) {
	page, err := h.activePage(ctx)
	if err != nil {
		return "", err
	}

	result, err := page.Eval(`() => document.body.innerText`)
	if err != nil {
		return "", classify(err, KindDisconnected, "failed to extract page text")
	}
	return result.Value.String(), nil
}

// PageHTML extracts the full HTML of the current page
func (h *Handle) PageHTML(ctx context.Context) (string, error) {
	page, err := h.activePage(ctx)
	if err != nil {
		return "", err
	}

	html, err := page.HTML()
	if err != nil {
		return "", classify(err, KindDisconnected, "failed to extract page HTML")
	}
	return html, nil
}

// ExtractBySelector returns the text of the first element matching the
// CSS selector. Missing elements yield a NotFound engine error.
func (h *Handle) ExtractBySelector(ctx context.Context, selector string) (string, error) {
	page, err := h.activePage(ctx)
	if err != nil {
		return "", err
	}

	elem, err := page.Timeout(5 * time.Second).Element(selector)
	if err != nil {
		return "", &EngineError{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("element not found: %s", selector),
		}
	}

	text, err := elem.Text()
	if err != nil {
		return "", classify(err, KindDisconnected, "failed to read element %s", selector)
	}
	return text, nil
}

// Fill types a value into the input matching the selector
func (h *Handle) Fill(ctx context.Context, selector, value string) error {
	page, err := h.activePage(ctx)
	if err != nil {
		return err
	}

	elem, err := page.Element(selector)
	if err != nil {
		return &EngineError{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("element not found: %s", selector),
		}
	}
	if err := elem.Input(value); err != nil {
		return classify(err, KindDisconnected, "failed to fill %s", selector)
	}
	return nil
}

// Click clicks the element matching the selector and waits for the page to
// settle.
func (h *Handle) Click(ctx context.Context, selector string) error {
	page, err := h.activePage(ctx)
	if err != nil {
		return err
	}

	elem, err := page.Element(selector)
	if err != nil {
		return &EngineError{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("element not found: %s", selector),
		}
	}
	if err := elem.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(err, KindDisconnected, "failed to click %s", selector)
	}

	// Page may navigate after the click; give it a moment to settle
	if err := page.WaitIdle(2 * time.Second); err != nil {
		log.Debug().Err(err).Str("selector", selector).Msg("Page did not settle after click")
	}
	return nil
}

// ClickByText clicks the first clickable element whose text matches the
// given term. The portal's menus carry no stable IDs, so navigation goes
// by visible label.
func (h *Handle) ClickByText(ctx context.Context, text string) error {
	page, err := h.activePage(ctx)
	if err != nil {
		return err
	}

	elem, err := page.Timeout(5*time.Second).ElementR("a, button, span, td", regexp.QuoteMeta(text))
	if err != nil {
		return &EngineError{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("no element with text %q", text),
		}
	}
	if err := elem.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(err, KindDisconnected, "failed to click %q", text)
	}

	if err := page.WaitIdle(2 * time.Second); err != nil {
		log.Debug().Err(err).Str("text", text).Msg("Page did not settle after click")
	}
	return nil
}

// Screenshot captures the current viewport into a PNG file
func (h *Handle) Screenshot(ctx context.Context, path string) error {
	page, err := h.activePage(ctx)
	if err != nil {
		return err
	}

	data, err := page.Screenshot(false, nil)
	if err != nil {
		return classify(err, KindDisconnected, "failed to capture screenshot")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &EngineError{
			Kind:    KindDisconnected,
			Message: fmt.Sprintf("failed to write screenshot: %v", err),
		}
	}
	return nil
}

// Close tears down the page, browser connection and Chrome process.
// Safe to call multiple times.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.open {
		return nil
	}

	if h.page != nil {
		_ = h.page.Close()
		h.page = nil
	}
	if h.browser != nil {
		_ = h.browser.Close()
		h.browser = nil
	}
	if h.launcher != nil {
		h.launcher.Kill()
		h.launcher = nil
	}
	h.open = false

	log.Info().Msg("Browser session closed")
	return nil
}
