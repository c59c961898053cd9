// Package fetch - browser.go drives a headless Chrome session for sites that
// need a logged-in, JavaScript-rendered page.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultActionTimeout bounds a single browser action.
const DefaultActionTimeout = 45 * time.Second

// Session is the browser surface the LinkedIn runner relies on.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Exists(ctx context.Context, selector string) (bool, error)
	HTML(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	// SaveState writes the session cookies to path.
	SaveState(ctx context.Context, path string) error
	// RestoreState loads cookies saved by SaveState. It reports false when
	// there is no saved state at path.
	RestoreState(ctx context.Context, path string) (bool, error)
	Close() error
}

// BrowserOptions configures the Chrome process.
type BrowserOptions struct {
	Headless      bool
	ExecPath      string
	UserAgent     string
	ActionTimeout time.Duration
	Verbose       bool
}

// ChromeSession is a Session backed by chromedp.
type ChromeSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
	opts    BrowserOptions
}

// NewChromeSession launches Chrome and opens a tab.
func NewChromeSession(ctx context.Context, opts BrowserOptions) (*ChromeSession, error) {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	s := &ChromeSession{ctx: browserCtx, cancels: []context.CancelFunc{cancelBrowser, cancelAlloc}, opts: opts}

	// Run with no actions starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	if opts.Verbose {
		log.Printf("[browser] Chrome started (headless=%t)", opts.Headless)
	}
	return s, nil
}

func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.ctx, s.opts.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the document body.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	if s.opts.Verbose {
		log.Printf("[browser] Navigating to %s", url)
	}
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return &Error{URL: url, Message: "navigation failed", Cause: err}
	}
	return nil
}

// Fill replaces the value of the first element matching selector.
func (s *ChromeSession) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// Click clicks the first visible element matching selector.
func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Exists reports whether any element matches selector right now.
func (s *ChromeSession) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// HTML returns the rendered document.
func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// CurrentURL returns the tab's location.
func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

// SaveState writes every cookie of the browser to path as JSON.
func (s *ChromeSession) SaveState(ctx context.Context, path string) error {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return nil
}

// RestoreState loads cookies previously written by SaveState.
func (s *ChromeSession) RestoreState(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session state: %w", err)
	}

	var cookies []*network.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return false, fmt.Errorf("failed to decode session state: %w", err)
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return false, fmt.Errorf("failed to restore cookies: %w", err)
	}
	return true, nil
}

// Close shuts the tab and the Chrome process down.
func (s *ChromeSession) Close() error {
	for _, cancel := range s.cancels {
		cancel()
	}
	return nil
}
