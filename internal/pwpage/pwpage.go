// Package pwpage implements the browser contract with playwright-go.
package pwpage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/config"
	"github.com/ajsharma/verify_split/internal/redact"
)

var _ browser.Driver = (*Driver)(nil)

// Driver runs Chromium through the Playwright driver.
type Driver struct {
	config *config.Config
	log    *zap.Logger
}

// NewDriver creates a playwright Driver.
func NewDriver(cfg *config.Config, log *zap.Logger) *Driver {
	return &Driver{config: cfg, log: log}
}

// Name implements browser.Driver.
func (d *Driver) Name() string {
	return config.DriverPlaywright
}

func (d *Driver) launchOptions() playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.config.Headless),
	}
	if d.config.ChromePath != "" {
		opts.ExecutablePath = playwright.String(d.config.ChromePath)
	}
	if d.config.NoSandbox {
		opts.ChromiumSandbox = playwright.Bool(false)
		opts.Args = append(opts.Args, "--no-sandbox")
	}
	return opts
}

// Open implements browser.Driver.
func (d *Driver) Open(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.config.InstallBrowsers {
		d.log.Info("installing playwright chromium")
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(d.launchOptions())
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	d.log.Debug("launched chromium", zap.String("version", b.Version()))
	return &Session{
		pw:       pw,
		browser:  b,
		viewport: &playwright.Size{Width: d.config.WindowWidth, Height: d.config.WindowHeight},
		redactor: redact.New(true),
		log:      d.log,
	}, nil
}

// Session owns a Playwright driver process and its browser.
type Session struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	viewport *playwright.Size
	redactor *redact.Redactor
	log      *zap.Logger

	closed bool
	mu     sync.Mutex
}

// NewPage implements browser.Session.
func (s *Session) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, browser.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := playwright.BrowserNewPageOptions{}
	if s.viewport != nil && s.viewport.Width > 0 && s.viewport.Height > 0 {
		opts.Viewport = s.viewport
	}

	p, err := s.browser.NewPage(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page := &Page{
		page:    p,
		monitor: &monitor{collector: &browser.Collector{}, redactor: s.redactor},
	}
	page.monitor.attach(p)
	return page, nil
}

// Close implements browser.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	s.log.Debug("chromium stopped")
	return errors.Join(errs...)
}

// Page implements browser.Page over a Playwright page.
type Page struct {
	page    playwright.Page
	monitor *monitor
}

// budget returns d, shortened to ctx's deadline, in Playwright milliseconds.
// Playwright treats zero as no timeout, so an exhausted budget is an error.
func budget(ctx context.Context, d time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < d {
			d = remaining
		}
	}
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	ms := float64(d.Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return ms, nil
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}

	_, err = p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(ms),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("navigation timeout of %v exceeded: %w", timeout, err)
	}
	return err
}

// WaitRoleVisible waits for the role locator to become visible. Playwright
// polls on its own schedule, so interval is not used.
func (p *Page) WaitRoleVisible(ctx context.Context, role, name string, timeout, _ time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}

	locator := p.page.GetByRole(playwright.AriaRole(role), playwright.PageGetByRoleOptions{
		Name:  name,
		Exact: playwright.Bool(true),
	})
	err = locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(ms),
	})
	return classifyWaitError(err, timeout)
}

func classifyWaitError(err error, timeout time.Duration) error {
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "strict mode violation"):
		return fmt.Errorf("%w: %v", browser.ErrAmbiguousMatch, err)
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w after %v", browser.ErrVisibleTimeout, timeout)
	default:
		return err
	}
}

// Screenshot captures the page as PNG. The caller's deadline bounds it.
func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	opts := playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(fullPage),
	}
	if dl, ok := ctx.Deadline(); ok {
		ms, err := budget(ctx, time.Until(dl))
		if err != nil {
			return nil, err
		}
		opts.Timeout = playwright.Float(ms)
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.page.Screenshot(opts)
}

// Diagnostics implements browser.Page.
func (p *Page) Diagnostics() []browser.Diagnostic {
	return p.monitor.collector.Snapshot()
}
