// Package cdp launches Chrome through chromedp and hands out page controllers.
package cdp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/config"
	"github.com/ajsharma/verify_split/internal/control"
	"github.com/ajsharma/verify_split/internal/monitor"
	"github.com/ajsharma/verify_split/internal/redact"
)

var _ browser.Driver = (*Driver)(nil)

// Driver launches a fresh Chrome per session via chromedp's exec allocator.
type Driver struct {
	config *config.Config
	log    *zap.Logger
}

// NewDriver creates a chromedp Driver.
func NewDriver(cfg *config.Config, log *zap.Logger) *Driver {
	return &Driver{config: cfg, log: log}
}

// Name implements browser.Driver.
func (d *Driver) Name() string {
	return config.DriverChromedp
}

// allocatorOptions builds the Chrome command line.
func (d *Driver) allocatorOptions() ([]chromedp.ExecAllocatorOption, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if !d.config.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	chromePath := d.config.ChromePath
	if chromePath != "" {
		if _, err := os.Stat(chromePath); err != nil {
			return nil, fmt.Errorf("%w: %s", browser.ErrChromeNotFound, chromePath)
		}
	} else {
		chromePath = FindChrome()
	}
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	if d.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if d.config.WindowWidth > 0 && d.config.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(d.config.WindowWidth, d.config.WindowHeight))
	}

	opts = append(opts,
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	return opts, nil
}

// Open implements browser.Driver. Chrome is started by the first chromedp.Run.
func (d *Driver) Open(ctx context.Context) (browser.Session, error) {
	opts, err := d.allocatorOptions()
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	s := &Session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		redactor:      redact.New(true),
		log:           d.log,
	}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
		if p := c.Browser.Process(); p != nil {
			s.pid = p.Pid
		}
	}

	d.log.Debug("launched chrome", zap.Int("pid", s.pid), zap.Bool("headless", d.config.Headless))
	return s, nil
}

// Session owns one Chrome process and its tabs.
type Session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	redactor      *redact.Redactor
	log           *zap.Logger
	pid           int

	tabCancels []context.CancelFunc
	closed     bool
	mu         sync.Mutex
}

// PID returns the process ID of the Chrome instance, or 0 when unknown.
func (s *Session) PID() int {
	return s.pid
}

// NewPage opens a new tab with diagnostics monitoring enabled.
func (s *Session) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, browser.ErrSessionClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)

	collector := &browser.Collector{}
	mon := monitor.NewPageMonitor(collector, s.redactor)
	mon.Attach(tabCtx)

	// The first Run creates the tab; it must not carry a timeout or the tab dies with it.
	if err := chromedp.Run(tabCtx, mon.EnableActions()...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	// Abort page work if the caller's context is cancelled.
	stop := context.AfterFunc(ctx, tabCancel)
	s.tabCancels = append(s.tabCancels, func() {
		stop()
		tabCancel()
	})

	return control.NewController(tabCtx, collector), nil
}

// Close implements browser.Session: it closes every tab, asks Chrome to exit,
// then kills the process and removes its temporary profile.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, cancel := range s.tabCancels {
		cancel()
	}
	s.tabCancels = nil

	var err error
	if s.browserCtx != nil {
		if cerr := chromedp.Cancel(s.browserCtx); cerr != nil && s.browserCtx.Err() == nil {
			err = fmt.Errorf("failed to close chrome: %w", cerr)
		}
	}
	if s.browserCancel != nil {
		s.browserCancel()
	}
	// Waits for the process to exit and removes the temp user data dir.
	if s.allocCancel != nil {
		s.allocCancel()
	}

	s.log.Debug("chrome stopped", zap.Int("pid", s.pid))
	return err
}

// FindChrome locates the Chrome executable on the system.
// An empty result lets chromedp fall back to its own lookup.
func FindChrome() string {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			filepath.Join(os.Getenv("HOME"), "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"),
		}
	case "linux":
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		programFiles := os.Getenv("PROGRAMFILES")
		programFilesX86 := os.Getenv("PROGRAMFILES(X86)")

		paths = []string{
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe"),
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	for _, name := range []string{"google-chrome", "chrome", "chromium", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	return ""
}
