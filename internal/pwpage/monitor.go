package pwpage

import (
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/redact"
)

type monitor struct {
	collector *browser.Collector
	redactor  *redact.Redactor
}

func (m *monitor) attach(p playwright.Page) {
	p.OnConsole(func(msg playwright.ConsoleMessage) {
		m.console(msg.Type(), msg.Text())
	})
	p.OnPageError(func(err error) {
		m.add(browser.DiagException, err.Error(), "")
	})
	p.OnRequestFailed(func(req playwright.Request) {
		var reason string
		if err := req.Failure(); err != nil {
			reason = err.Error()
		}
		m.requestFailed(req.URL(), reason)
	})
	p.OnResponse(func(resp playwright.Response) {
		m.response(resp.Status(), resp.StatusText(), resp.URL())
	})
}

func (m *monitor) console(typ, text string) {
	switch typ {
	case "error", "assert":
		m.add(browser.DiagConsoleError, text, "")
	case "warning":
		m.add(browser.DiagConsoleWarn, text, "")
	}
}

func (m *monitor) requestFailed(url, reason string) {
	// Aborted requests are navigation noise, not failures.
	if reason == "net::ERR_ABORTED" {
		return
	}
	m.add(browser.DiagNetFailure, reason, url)
}

func (m *monitor) response(status int, statusText, url string) {
	if status < 400 {
		return
	}
	m.add(browser.DiagHTTPError, fmt.Sprintf("HTTP %d %s", status, statusText), url)
}

func (m *monitor) add(kind, text, url string) {
	m.collector.Add(browser.Diagnostic{
		Kind: kind,
		Text: text,
		URL:  m.redactor.URL(url),
	})
}
