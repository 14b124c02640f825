// Package verify runs the login page verification against a browser driver.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajsharma/verify_split/internal/artifact"
	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/config"
	"github.com/ajsharma/verify_split/internal/events"
	"github.com/ajsharma/verify_split/internal/logger"
	"github.com/ajsharma/verify_split/internal/redact"
)

// errNoPage is recorded as the screenshot error when no page was ever opened.
var errNoPage = errors.New("no page to capture")

// Verifier owns one browser session per run.
type Verifier struct {
	config   *config.Config
	driver   browser.Driver
	log      *zap.Logger
	out      io.Writer
	report   *logger.ReportWriter
	redactor *redact.Redactor
}

// New creates a Verifier. Result lines are written to out.
func New(cfg *config.Config, driver browser.Driver, log *zap.Logger, out io.Writer) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Verifier{
		config:   cfg,
		driver:   driver,
		log:      log,
		out:      out,
		redactor: redact.New(true),
	}
}

// SetReport makes Run append its records to rw.
func (v *Verifier) SetReport(rw *logger.ReportWriter) {
	v.report = rw
}

// Run performs one verification. The error is non-nil only when no browser
// session could be acquired; every later failure is described by the Outcome.
// The session is closed before Run returns.
func (v *Verifier) Run(ctx context.Context) (*Outcome, error) {
	outcome := &Outcome{
		RunID:   events.NewRunID(),
		Target:  v.redactor.URL(v.config.TargetURL),
		Started: time.Now(),
	}
	log := v.log.With(
		zap.String("run_id", outcome.RunID),
		zap.String("driver", v.driver.Name()),
		zap.String("target", outcome.Target),
	)
	v.writeEvent(log, events.NewRunStartEvent(outcome.RunID, outcome.Target, v.driver.Name(), config.Version))

	log.Debug("opening browser session")
	session, err := v.driver.Open(ctx)
	if err != nil {
		log.Error("failed to open browser session", zap.Error(err))
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close browser session", zap.Error(err))
		}
		log.Debug("browser session closed")
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		outcome.Kind = KindPageFailed
		outcome.Err = fmt.Errorf("failed to open page: %w", err)
		outcome.ScreenshotErr = errNoPage
		v.print(log, outcome)
		v.cleanStale(log, v.config.LoginPath())
		return v.finish(log, outcome), nil
	}

	outcome.Kind, outcome.Err = v.check(ctx, log, page)
	if outcome.OK() {
		if err := v.capture(ctx, page, v.config.LoginPath()); err != nil {
			outcome.Kind = KindScreenshotFailed
			outcome.Err = fmt.Errorf("failed to save login screenshot: %w", err)
		} else {
			outcome.Screenshot = v.config.LoginPath()
			v.cleanStale(log, v.config.ErrorPath())
		}
	}

	v.print(log, outcome)

	if !outcome.OK() {
		// The error screenshot gets its own budget; the step deadline may already be spent.
		if err := v.capture(context.WithoutCancel(ctx), page, v.config.ErrorPath()); err != nil {
			outcome.ScreenshotErr = err
			log.Warn("failed to save error screenshot", zap.Error(err))
		} else {
			outcome.Screenshot = v.config.ErrorPath()
			v.cleanStale(log, v.config.LoginPath())
		}
	}

	outcome.Diagnostics = page.Diagnostics()
	for _, d := range outcome.Diagnostics {
		log.Warn("page diagnostic", zap.String("kind", d.Kind), zap.String("text", d.Text), zap.String("url", d.URL))
		v.writeEvent(log, events.NewDiagnosticEvent(outcome.RunID, d.Kind, d.Text, d.URL))
	}

	return v.finish(log, outcome), nil
}

// check navigates to the target and waits for the login control.
func (v *Verifier) check(ctx context.Context, log *zap.Logger, page browser.Page) (Kind, error) {
	log.Debug("navigating", zap.Duration("timeout", v.config.NavigationTimeout))
	if err := page.Navigate(ctx, v.config.TargetURL, v.config.NavigationTimeout); err != nil {
		return KindNavigationFailed, fmt.Errorf("navigation to %s failed: %w", v.redactor.URL(v.config.TargetURL), err)
	}

	log.Debug("waiting for login control",
		zap.String("role", v.config.Role),
		zap.String("name", v.config.Name),
		zap.Duration("timeout", v.config.VisibleTimeout))
	err := page.WaitRoleVisible(ctx, v.config.Role, v.config.Name, v.config.VisibleTimeout, v.config.PollInterval)
	if err != nil {
		return KindAssertionFailed, fmt.Errorf("expected %s %q to be visible: %w", v.config.Role, v.config.Name, err)
	}
	return KindVerified, nil
}

// capture takes a screenshot bounded by the screenshot timeout and writes it to path.
func (v *Verifier) capture(ctx context.Context, page browser.Page, path string) error {
	ctx, cancel := context.WithTimeout(ctx, v.config.ScreenshotTimeout)
	defer cancel()

	png, err := page.Screenshot(ctx, v.config.FullPage)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	return artifact.SaveScreenshot(path, png, v.config.MaxWidth)
}

func (v *Verifier) cleanStale(log *zap.Logger, path string) {
	if !v.config.CleanStale {
		return
	}
	if err := artifact.RemoveStale(path); err != nil {
		log.Warn("failed to remove stale screenshot", zap.String("path", path), zap.Error(err))
	}
}

func (v *Verifier) print(log *zap.Logger, outcome *Outcome) {
	if _, err := fmt.Fprintln(v.out, outcome.Message()); err != nil {
		log.Warn("failed to write result", zap.Error(err))
	}
}

func (v *Verifier) finish(log *zap.Logger, outcome *Outcome) *Outcome {
	outcome.Duration = time.Since(outcome.Started)

	var errText, screenshotErr string
	if outcome.Err != nil {
		errText = outcome.Err.Error()
	}
	if outcome.ScreenshotErr != nil {
		screenshotErr = outcome.ScreenshotErr.Error()
	}
	v.writeEvent(log, events.NewRunResultEvent(outcome.RunID, string(outcome.Kind), outcome.Screenshot,
		outcome.Duration, errText, screenshotErr))

	fields := []zap.Field{
		zap.String("outcome", string(outcome.Kind)),
		zap.String("screenshot", outcome.Screenshot),
		zap.Duration("duration", outcome.Duration),
		zap.Int("diagnostics", len(outcome.Diagnostics)),
	}
	if outcome.OK() {
		log.Info("verification passed", fields...)
	} else {
		log.Info("verification failed", append(fields, zap.Error(outcome.Err))...)
	}
	return outcome
}

func (v *Verifier) writeEvent(log *zap.Logger, ev *events.LogEvent) {
	if v.report == nil {
		return
	}
	// Report failures never change the outcome.
	if err := v.report.WriteEvent(ev); err != nil {
		log.Warn("failed to write report event", zap.String("event_type", ev.EventType), zap.Error(err))
	}
}
