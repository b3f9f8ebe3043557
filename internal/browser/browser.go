// Package browser provides the Playwright-backed page capability. One
// browser process serves the whole run; every page gets its own
// browser context so sessions never share cookies or storage.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/ppiankov/stagewright/internal/accounts"
	"github.com/ppiankov/stagewright/internal/page"
)

// Login describes the UI login flow driven on account switches.
type Login struct {
	Path               string
	IdentifierSelector string
	SecretSelector     string
	SubmitSelector     string
}

type Viewport struct {
	Width  int
	Height int
}

// Options configure the provider. ConnectWS, when set, attaches to an
// already running Playwright server instead of launching Chromium.
type Options struct {
	Headless       bool
	ConnectWS      string
	Viewport       Viewport
	RecordVideoDir string
	BaseURL        string
	Login          Login
}

// Provider owns the browser process (or connection) and hands out
// pages.
type Provider struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
}

var _ page.Provider = (*Provider)(nil)

// NewProvider starts Playwright and opens the browser.
func NewProvider(opts Options) (*Provider, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var browser playwright.Browser
	if opts.ConnectWS != "" {
		browser, err = pw.Chromium.Connect(opts.ConnectWS)
	} else {
		browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
		})
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("open browser: %w", err)
	}

	return &Provider{opts: opts, pw: pw, browser: browser}, nil
}

func (p *Provider) NewPage(ctx context.Context) (page.Page, error) {
	ctxOpts := playwright.BrowserNewContextOptions{}
	if p.opts.Viewport.Width > 0 && p.opts.Viewport.Height > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: p.opts.Viewport.Width, Height: p.opts.Viewport.Height}
	}
	if p.opts.BaseURL != "" {
		ctxOpts.BaseURL = playwright.String(p.opts.BaseURL)
	}
	if p.opts.RecordVideoDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{Dir: p.opts.RecordVideoDir}
	}

	bctx, err := p.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}

	return &Page{opts: p.opts, bctx: bctx, pg: pg}, nil
}

func (p *Provider) Close(ctx context.Context) error {
	err := p.browser.Close()
	if serr := p.pw.Stop(); err == nil {
		err = serr
	}
	return err
}

// Page adapts one Playwright page (and its owning context) to the
// engine's page capability. Playwright carries its own timeouts, so
// the context arguments are not consulted.
type Page struct {
	opts Options
	bctx playwright.BrowserContext
	pg   playwright.Page
}

var (
	_ page.Page          = (*Page)(nil)
	_ page.Waiter        = (*Page)(nil)
	_ page.VideoRecorder = (*Page)(nil)
)

func (b *Page) Navigate(ctx context.Context, url string) error {
	_, err := b.pg.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	return err
}

func (b *Page) Fill(ctx context.Context, selector, value string) error {
	return b.pg.Fill(selector, value)
}

func (b *Page) Click(ctx context.Context, selector string) error {
	return b.pg.Click(selector)
}

func (b *Page) Select(ctx context.Context, selector, value string) error {
	_, err := b.pg.SelectOption(selector, playwright.SelectOptionValues{
		Values: &[]string{value},
	})
	return err
}

func (b *Page) UploadFile(ctx context.Context, selector, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read upload %s: %w", path, err)
	}
	return b.pg.SetInputFiles(selector, []playwright.InputFile{{
		Name:   filepath.Base(path),
		Buffer: data,
	}})
}

func (b *Page) Clear(ctx context.Context, selector string) error {
	return b.pg.Fill(selector, "")
}

// AuthenticateAs drives the configured login form and verifies the
// page left the login path.
func (b *Page) AuthenticateAs(ctx context.Context, acct accounts.Account) error {
	loginURL := b.opts.Login.Path
	if b.opts.BaseURL != "" {
		loginURL = strings.TrimRight(b.opts.BaseURL, "/") + b.opts.Login.Path
	}

	if _, err := b.pg.Goto(loginURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := b.pg.Fill(b.opts.Login.IdentifierSelector, acct.Identifier); err != nil {
		return fmt.Errorf("fill identifier: %w", err)
	}
	if err := b.pg.Fill(b.opts.Login.SecretSelector, acct.Secret); err != nil {
		return fmt.Errorf("fill secret: %w", err)
	}
	if err := b.pg.Click(b.opts.Login.SubmitSelector); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := b.pg.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("login navigation: %w", err)
	}

	if strings.Contains(b.pg.URL(), b.opts.Login.Path) {
		return fmt.Errorf("credentials for %s rejected", acct.Key)
	}
	return nil
}

func (b *Page) Deauthenticate(ctx context.Context) error {
	return b.bctx.ClearCookies()
}

func (b *Page) CurrentURL(ctx context.Context) (string, error) {
	return b.pg.URL(), nil
}

func (b *Page) IsVisible(ctx context.Context, selector string) (bool, error) {
	return b.pg.IsVisible(selector)
}

func (b *Page) TextContent(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		selector = "body"
	}
	return b.pg.TextContent(selector)
}

func (b *Page) InputValue(ctx context.Context, selector string) (string, error) {
	return b.pg.InputValue(selector)
}

func (b *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return b.pg.Screenshot()
}

func (b *Page) Close(ctx context.Context) error {
	err := b.pg.Close()
	if cerr := b.bctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *Page) WaitForURL(ctx context.Context, fragment string, timeout time.Duration) error {
	pattern := regexp.MustCompile(regexp.QuoteMeta(fragment))
	return b.pg.WaitForURL(pattern, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (b *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := b.pg.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

// VideoPath resolves the recording of this page's context. Only valid
// once the page is closed.
func (b *Page) VideoPath(ctx context.Context) (string, error) {
	if b.opts.RecordVideoDir == "" {
		return "", errors.New("video recording disabled")
	}
	video := b.pg.Video()
	if video == nil {
		return "", errors.New("no video recorded")
	}
	return video.Path()
}
