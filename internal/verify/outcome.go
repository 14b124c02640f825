package verify

import (
	"time"

	"github.com/ajsharma/verify_split/internal/browser"
)

// Kind tags how a verification run ended.
type Kind string

const (
	// KindVerified means the login control was visible and the login screenshot was written.
	KindVerified Kind = "verified"
	// KindPageFailed means no page could be opened in the browser session.
	KindPageFailed Kind = "page_failed"
	// KindNavigationFailed means the target could not be loaded in time.
	KindNavigationFailed Kind = "navigation_failed"
	// KindAssertionFailed means the login control was missing, hidden or ambiguous.
	KindAssertionFailed Kind = "assertion_failed"
	// KindScreenshotFailed means the control was visible but the login screenshot could not be written.
	KindScreenshotFailed Kind = "screenshot_failed"
)

// Result lines printed to the user.
const (
	MessageVerified     = "Login page verified and screenshot taken."
	MessageFailedPrefix = "Verification failed: "
)

// Outcome is the result of one verification run.
type Outcome struct {
	Kind Kind
	Err  error

	// Screenshot is the path written, empty when no screenshot was saved.
	Screenshot    string
	ScreenshotErr error

	RunID       string
	Target      string
	Started     time.Time
	Duration    time.Duration
	Diagnostics []browser.Diagnostic
}

// OK reports whether the login page was verified.
func (o *Outcome) OK() bool {
	return o.Kind == KindVerified
}

// Message returns the single line reported for this outcome.
func (o *Outcome) Message() string {
	if o.OK() {
		return MessageVerified
	}
	cause := "unknown error"
	if o.Err != nil {
		cause = o.Err.Error()
	}
	return MessageFailedPrefix + cause
}
