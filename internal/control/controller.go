// Package control drives a single Chrome tab through chromedp.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ajsharma/verify_split/internal/browser"
)

var _ browser.Page = (*Controller)(nil)

// Controller implements browser.Page on top of a chromedp tab context.
type Controller struct {
	tabCtx    context.Context
	collector *browser.Collector
}

// NewController wraps an already created tab context.
func NewController(tabCtx context.Context, collector *browser.Collector) *Controller {
	if collector == nil {
		collector = &browser.Collector{}
	}
	return &Controller{
		tabCtx:    tabCtx,
		collector: collector,
	}
}

// scope derives a context from the tab that also honours parent's deadline
// and cancellation. A positive timeout further bounds it.
func (c *Controller) scope(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.tabCtx)
	if dl, ok := parent.Deadline(); ok {
		ctx, cancel = context.WithDeadline(c.tabCtx, dl)
	}
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		inner := cancel
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		cancel = func() {
			cancelTimeout()
			inner()
		}
	}

	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) closed() bool {
	return c.tabCtx.Err() != nil
}

// Navigate loads url and waits for the load event.
func (c *Controller) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if c.closed() {
		return browser.ErrSessionClosed
	}

	ctx, cancel := c.scope(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("navigation timeout of %v exceeded: %w", timeout, err)
		}
		return err
	}
	return nil
}

// WaitRoleVisible polls the accessibility tree until exactly one visible
// element with role and name exists.
func (c *Controller) WaitRoleVisible(ctx context.Context, role, name string, timeout, interval time.Duration) error {
	if c.closed() {
		return browser.ErrSessionClosed
	}

	ctx, cancel := c.scope(ctx, 0)
	defer cancel()

	return browser.Poll(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		var visible bool
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			visible, err = FindRole(ctx, role, name)
			return err
		}))
		switch {
		case err == nil:
			return visible, nil
		case errors.Is(err, browser.ErrAmbiguousMatch):
			return false, err
		case c.closed():
			return false, browser.ErrSessionClosed
		default:
			// The document may be swapped out between queries; try again next tick.
			return false, nil
		}
	})
}

// Screenshot captures the viewport, or the full scrollable page, as PNG.
func (c *Controller) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if c.closed() {
		return nil, browser.ErrSessionClosed
	}

	ctx, cancel := c.scope(ctx, 0)
	defer cancel()

	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// Quality 100 keeps PNG encoding.
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := chromedp.Run(ctx, action); err != nil {
		return nil, err
	}

	return buf, nil
}

// Diagnostics returns what the tab monitor collected so far.
func (c *Controller) Diagnostics() []browser.Diagnostic {
	return c.collector.Snapshot()
}
