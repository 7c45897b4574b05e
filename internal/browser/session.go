// Package browser drives a Chromium instance over the DevTools protocol and
// exposes it through the dom.Bridge boundary so the resolution and execution
// layers stay testable without a live browser.
package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/webreplay/internal/dom"
)

// Options configures the browser session
type Options struct {
	Width      int
	Height     int
	Headless   bool
	Timeout    time.Duration
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
}

// queryTimeout bounds a single element lookup. Strategies are meant to fail
// fast so the cascade can move on; waiting is the readiness oracle's job.
const queryTimeout = 1500 * time.Millisecond

// Session wraps the Rod browser with the browsing-context state the replay
// needs: which page is active, and whether queries are currently scoped to an
// iframe or a shadow root.
type Session struct {
	browser *rod.Browser
	page    *rod.Page

	// Current query scope. frame is the page itself or an iframe's page;
	// shadow, when set, scopes element queries to that shadow root.
	frame  *rod.Page
	shadow *rod.Element

	width     int
	height    int
	knownTabs int

	dialogs chan dom.Dialog
	stop    func()
}

// Launch starts a browser and opens a blank page.
func Launch(opts Options) (*Session, error) {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)

	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u).Timeout(opts.Timeout)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	browser = browser.CancelTimeout()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		browser.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	s := &Session{
		browser:   browser,
		page:      page,
		frame:     page,
		width:     opts.Width,
		height:    opts.Height,
		knownTabs: 1,
		dialogs:   make(chan dom.Dialog, 1),
	}

	if err := s.injectTracker(page); err != nil {
		slog.Warn("readiness tracker injection failed", "error", err)
	}
	s.pumpDialogs(page)

	return s, nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	if s.stop != nil {
		s.stop()
	}
	if s.page != nil {
		s.page.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
}

// Navigate loads a URL in the active page and waits for the load event.
func (s *Session) Navigate(url string) error {
	if err := s.Reset(); err != nil {
		return err
	}
	if err := s.page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := s.page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}
	return nil
}

// Reset restores the main-document query scope on the active page.
func (s *Session) Reset() error {
	s.frame = s.page
	s.shadow = nil
	return nil
}

// QueryCSS resolves a selector in the current scope. Lookups are bounded by
// queryTimeout; a timeout means not found.
func (s *Session) QueryCSS(selector string) (dom.Node, error) {
	if s.shadow != nil {
		el, err := s.shadow.Timeout(queryTimeout).Element(selector)
		if err != nil {
			return nil, dom.ErrNotFound
		}
		return &rodNode{el: el.CancelTimeout()}, nil
	}
	el, err := s.frame.Timeout(queryTimeout).Element(selector)
	if err != nil {
		return nil, dom.ErrNotFound
	}
	return &rodNode{el: el.CancelTimeout()}, nil
}

// QueryXPath resolves an XPath expression in the current scope. Shadow roots
// do not support XPath, so shadow scope falls back to the enclosing frame.
func (s *Session) QueryXPath(xpath string) (dom.Node, error) {
	el, err := s.frame.Timeout(queryTimeout).ElementX(xpath)
	if err != nil {
		return nil, dom.ErrNotFound
	}
	return &rodNode{el: el.CancelTimeout()}, nil
}

// QueryAll returns every frame-level match for a selector without waiting.
func (s *Session) QueryAll(selector string) ([]dom.Node, error) {
	els, err := s.frame.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	nodes := make([]dom.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &rodNode{el: el})
	}
	return nodes, nil
}

// ElementAt hit-tests a viewport point on the active page.
func (s *Session) ElementAt(x, y float64) (dom.Node, error) {
	el, err := s.page.Timeout(queryTimeout).ElementFromPoint(int(x), int(y))
	if err != nil {
		return nil, dom.ErrNotFound
	}
	return &rodNode{el: el.CancelTimeout()}, nil
}

// ClickAt moves the pointer to an absolute viewport point and clicks. The
// move is always absolute so no offset state carries over between actions.
func (s *Session) ClickAt(x, y float64) error {
	m := s.page.Mouse
	if err := m.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return fmt.Errorf("move pointer: %w", err)
	}
	if err := m.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click at (%.0f, %.0f): %w", x, y, err)
	}
	return nil
}

// TypeText inserts text into whatever currently holds focus.
func (s *Session) TypeText(text string) error {
	return s.page.InsertText(text)
}

// Viewport returns the configured page dimensions.
func (s *Session) Viewport() (int, int) {
	return s.width, s.height
}

// Screenshot captures the active page as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	data, err := s.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return data, nil
}

// PageText returns the rendered text of the active page, for verification
// steps.
func (s *Session) PageText() (string, error) {
	res, err := s.page.Eval(`() => document.body ? document.body.innerText : ''`)
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	return res.Value.Str(), nil
}

// URL returns the active page's current location.
func (s *Session) URL() (string, error) {
	res, err := s.page.Eval(`() => window.location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}
