package pwpage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/config"
	"github.com/ajsharma/verify_split/internal/redact"
)

func TestLaunchOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := NewDriver(cfg, zaptest.NewLogger(t)).launchOptions()

	require.NotNil(t, opts.Headless)
	assert.True(t, *opts.Headless)
	assert.Nil(t, opts.ExecutablePath)
	assert.Empty(t, opts.Args)

	cfg.Headless = false
	cfg.ChromePath = "/usr/bin/chromium"
	cfg.NoSandbox = true
	opts = NewDriver(cfg, zaptest.NewLogger(t)).launchOptions()

	assert.False(t, *opts.Headless)
	require.NotNil(t, opts.ExecutablePath)
	assert.Equal(t, "/usr/bin/chromium", *opts.ExecutablePath)
	assert.Contains(t, opts.Args, "--no-sandbox")
}

func TestBudget(t *testing.T) {
	t.Run("no deadline", func(t *testing.T) {
		ms, err := budget(context.Background(), 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, float64(10000), ms)
	})

	t.Run("deadline shortens", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		ms, err := budget(ctx, 30*time.Second)
		require.NoError(t, err)
		assert.LessOrEqual(t, ms, float64(2000))
		assert.Greater(t, ms, float64(0))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := budget(ctx, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("zero budget", func(t *testing.T) {
		_, err := budget(context.Background(), 0)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClassifyWaitError(t *testing.T) {
	assert.NoError(t, classifyWaitError(nil, time.Second))

	err := classifyWaitError(fmt.Errorf("locator.waitFor: %w", playwright.ErrTimeout), 10*time.Second)
	assert.ErrorIs(t, err, browser.ErrVisibleTimeout)
	assert.Contains(t, err.Error(), "10s")

	err = classifyWaitError(errors.New(`strict mode violation: getByRole('button', { name: 'Sign In (v3)', exact: true }) resolved to 2 elements`), time.Second)
	assert.ErrorIs(t, err, browser.ErrAmbiguousMatch)

	other := errors.New("target closed")
	assert.Equal(t, other, classifyWaitError(other, time.Second))
}

func TestMonitor(t *testing.T) {
	c := &browser.Collector{}
	m := &monitor{collector: c, redactor: redact.New(true)}

	m.console("log", "ignored")
	m.console("error", "Failed to load resource")
	m.console("warning", "deprecated API")
	m.requestFailed("http://localhost:5173/aborted", "net::ERR_ABORTED")
	m.requestFailed("http://user:pw@localhost:5173/api", "net::ERR_CONNECTION_REFUSED")
	m.response(200, "OK", "http://localhost:5173/")
	m.response(500, "Internal Server Error", "http://localhost:5173/api/config")

	got := c.Snapshot()
	require.Len(t, got, 4)
	assert.Equal(t, browser.DiagConsoleError, got[0].Kind)
	assert.Equal(t, browser.DiagConsoleWarn, got[1].Kind)
	assert.Equal(t, browser.DiagNetFailure, got[2].Kind)
	assert.NotContains(t, got[2].URL, "pw@")
	assert.Equal(t, browser.Diagnostic{
		Kind: browser.DiagHTTPError,
		Text: "HTTP 500 Internal Server Error",
		URL:  "http://localhost:5173/api/config",
	}, got[3])
}

func TestSessionCloseIdempotent(t *testing.T) {
	s := &Session{log: zaptest.NewLogger(t)}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.NewPage(context.Background())
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
}
