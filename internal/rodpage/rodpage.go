// Package rodpage implements the browser contract with go-rod.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/config"
	"github.com/ajsharma/verify_split/internal/redact"
)

var _ browser.Driver = (*Driver)(nil)

// Driver launches Chrome with rod's launcher.
type Driver struct {
	config *config.Config
	log    *zap.Logger
}

// NewDriver creates a rod Driver.
func NewDriver(cfg *config.Config, log *zap.Logger) *Driver {
	return &Driver{config: cfg, log: log}
}

// Name implements browser.Driver.
func (d *Driver) Name() string {
	return config.DriverRod
}

func (d *Driver) newLauncher() (*launcher.Launcher, error) {
	l := launcher.New().
		Headless(d.config.Headless).
		NoSandbox(d.config.NoSandbox).
		Set("disable-dev-shm-usage")

	if d.config.ChromePath != "" {
		l = l.Bin(d.config.ChromePath)
	} else if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	} else {
		return nil, browser.ErrChromeNotFound
	}

	if d.config.WindowWidth > 0 && d.config.WindowHeight > 0 {
		l = l.Set("window-size",
			strconv.Itoa(d.config.WindowWidth)+","+strconv.Itoa(d.config.WindowHeight))
	}
	return l, nil
}

// Open implements browser.Driver.
func (d *Driver) Open(ctx context.Context) (browser.Session, error) {
	l, err := d.newLauncher()
	if err != nil {
		return nil, err
	}

	l = l.Context(ctx)
	u, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	d.log.Debug("launched chrome", zap.Int("pid", l.PID()), zap.String("control_url", u))
	return &Session{
		launcher: l,
		browser:  b,
		redactor: redact.New(true),
		log:      d.log,
	}, nil
}

// Session owns one rod-launched Chrome.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	redactor *redact.Redactor
	log      *zap.Logger

	stops  []context.CancelFunc
	closed bool
	mu     sync.Mutex
}

// PID returns the browser process ID.
func (s *Session) PID() int {
	if s.launcher == nil {
		return 0
	}
	return s.launcher.PID()
}

// NewPage implements browser.Session.
func (s *Session) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, browser.ErrSessionClosed
	}

	p, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Event subscriptions live until the session closes, not until ctx ends.
	pageCtx, stop := context.WithCancel(context.Background())
	p = p.Context(pageCtx)
	s.stops = append(s.stops, stop)

	page := &Page{
		page:    p,
		monitor: newMonitor(&browser.Collector{}, s.redactor),
	}
	if err := page.monitor.start(p); err != nil {
		return nil, fmt.Errorf("failed to enable page events: %w", err)
	}
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

	for _, stop := range s.stops {
		stop()
	}
	s.stops = nil

	var err error
	if s.browser != nil {
		if cerr := s.browser.Close(); cerr != nil {
			err = fmt.Errorf("failed to close browser: %w", cerr)
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}

	s.log.Debug("chrome stopped")
	return err
}

// Page implements browser.Page over a rod page.
type Page struct {
	page    *rod.Page
	monitor *monitor
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	defer pg.CancelTimeout()

	if err := pg.Navigate(url); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigation timeout of %v exceeded: %w", timeout, err)
		}
		return err
	}
	if err := pg.WaitLoad(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigation timeout of %v exceeded: %w", timeout, err)
		}
		return err
	}
	return nil
}

// WaitRoleVisible polls the accessibility tree for a single visible match.
func (p *Page) WaitRoleVisible(ctx context.Context, role, name string, timeout, interval time.Duration) error {
	return browser.Poll(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		visible, err := findRole(p.page.Context(ctx), role, name)
		if errors.Is(err, browser.ErrAmbiguousMatch) {
			return false, err
		}
		// Other errors usually mean the document changed under the query.
		return visible, nil
	})
}

func findRole(pg *rod.Page, role, name string) (bool, error) {
	doc, err := proto.DOMGetDocument{Depth: gson.Int(0)}.Call(pg)
	if err != nil {
		return false, err
	}

	res, err := proto.AccessibilityQueryAXTree{
		BackendNodeID:  doc.Root.BackendNodeID,
		AccessibleName: name,
		Role:           role,
	}.Call(pg)
	if err != nil {
		return false, err
	}

	var ids []proto.DOMBackendNodeID
	for _, n := range res.Nodes {
		if n.Ignored || n.BackendDOMNodeID == 0 {
			continue
		}
		ids = append(ids, n.BackendDOMNodeID)
	}

	switch len(ids) {
	case 0:
		return false, nil
	case 1:
	default:
		return false, fmt.Errorf("%w: role=%s name=%q resolved to %d elements",
			browser.ErrAmbiguousMatch, role, name, len(ids))
	}

	box, err := proto.DOMGetBoxModel{BackendNodeID: ids[0]}.Call(pg)
	if err != nil {
		return false, nil
	}
	return box.Model.Width > 0 && box.Model.Height > 0, nil
}

// Screenshot captures the page as PNG.
func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Diagnostics implements browser.Page.
func (p *Page) Diagnostics() []browser.Diagnostic {
	return p.monitor.collector.Snapshot()
}
