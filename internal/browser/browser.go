// Package browser defines the automation contract shared by every driver:
// a Driver opens a Session, a Session opens Pages, and a Page navigates,
// waits for an element by accessible role and name, and captures screenshots.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionClosed is returned when a closed session or its pages are used.
	ErrSessionClosed = errors.New("browser session is closed")

	// ErrVisibleTimeout is returned when an element did not become visible before the deadline.
	ErrVisibleTimeout = errors.New("element not visible before timeout")

	// ErrAmbiguousMatch is returned when more than one element matches a role query.
	ErrAmbiguousMatch = errors.New("more than one element matches")

	// ErrChromeNotFound is returned when no Chrome executable could be located.
	ErrChromeNotFound = errors.New("chrome executable not found")
)

// Driver launches browser sessions.
type Driver interface {
	// Name identifies the driver in logs and reports.
	Name() string
	// Open launches a browser and returns the owning session.
	Open(ctx context.Context) (Session, error)
}

// Session is an owned browser process.
// Close releases every OS resource the session holds and may be called more than once.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browsing context inside a Session.
type Page interface {
	// Navigate loads url and waits for the load event, bounded by timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitRoleVisible polls until exactly one element with the given accessible
	// role and exact accessible name is visible, or timeout elapses.
	WaitRoleVisible(ctx context.Context, role, name string, timeout, interval time.Duration) error

	// Screenshot captures the viewport, or the whole page when fullPage is set, as PNG.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// Diagnostics returns console errors, exceptions and failed requests seen so far.
	Diagnostics() []Diagnostic
}
