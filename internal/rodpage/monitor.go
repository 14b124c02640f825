package rodpage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/redact"
)

// monitor records console errors, exceptions and failed requests of a page.
type monitor struct {
	collector *browser.Collector
	redactor  *redact.Redactor

	requests map[proto.NetworkRequestID]string
	mu       sync.Mutex
}

func newMonitor(collector *browser.Collector, redactor *redact.Redactor) *monitor {
	return &monitor{
		collector: collector,
		redactor:  redactor,
		requests:  make(map[proto.NetworkRequestID]string),
	}
}

func (m *monitor) start(p *rod.Page) error {
	if err := (proto.RuntimeEnable{}).Call(p); err != nil {
		return err
	}
	if err := (proto.NetworkEnable{}).Call(p); err != nil {
		return err
	}

	go p.EachEvent(
		m.onConsole,
		m.onException,
		m.onRequest,
		m.onResponse,
		m.onFinished,
		m.onFailed,
	)()
	return nil
}

func (m *monitor) onConsole(e *proto.RuntimeConsoleAPICalled) {
	var kind string
	switch e.Type {
	case proto.RuntimeConsoleAPICalledTypeError, proto.RuntimeConsoleAPICalledTypeAssert:
		kind = browser.DiagConsoleError
	case proto.RuntimeConsoleAPICalledTypeWarning:
		kind = browser.DiagConsoleWarn
	default:
		return
	}

	args := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		args = append(args, formatArg(arg))
	}

	var url string
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		url = e.StackTrace.CallFrames[0].URL
	}
	m.add(kind, strings.Join(args, " "), url)
}

func (m *monitor) onException(e *proto.RuntimeExceptionThrown) {
	details := e.ExceptionDetails
	if details == nil {
		return
	}
	text := details.Text
	if details.Exception != nil && details.Exception.Description != "" {
		text = details.Exception.Description
	}
	m.add(browser.DiagException, text, details.URL)
}

func (m *monitor) onRequest(e *proto.NetworkRequestWillBeSent) {
	if e.Request == nil {
		return
	}
	m.mu.Lock()
	m.requests[e.RequestID] = e.Request.URL
	m.mu.Unlock()
}

func (m *monitor) onResponse(e *proto.NetworkResponseReceived) {
	if e.Response == nil || e.Response.Status < 400 {
		return
	}
	m.add(browser.DiagHTTPError,
		fmt.Sprintf("HTTP %d %s", e.Response.Status, e.Response.StatusText),
		e.Response.URL)
}

func (m *monitor) onFinished(e *proto.NetworkLoadingFinished) {
	m.forget(e.RequestID)
}

func (m *monitor) onFailed(e *proto.NetworkLoadingFailed) {
	url := m.forget(e.RequestID)
	if e.Canceled {
		return
	}
	text := e.ErrorText
	if e.BlockedReason != "" {
		text += " (blocked: " + string(e.BlockedReason) + ")"
	}
	m.add(browser.DiagNetFailure, text, url)
}

func (m *monitor) add(kind, text, url string) {
	m.collector.Add(browser.Diagnostic{
		Kind: kind,
		Text: text,
		URL:  m.redactor.URL(url),
	})
}

func (m *monitor) forget(id proto.NetworkRequestID) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	url := m.requests[id]
	delete(m.requests, id)
	return url
}

// formatArg renders a console argument the way DevTools prints it.
func formatArg(obj *proto.RuntimeRemoteObject) string {
	switch {
	case obj == nil:
		return "null"
	case obj.UnserializableValue != "":
		return string(obj.UnserializableValue)
	case obj.Type == proto.RuntimeRemoteObjectTypeString:
		return obj.Value.Str()
	case obj.Type == proto.RuntimeRemoteObjectTypeUndefined:
		return "undefined"
	case obj.Subtype == proto.RuntimeRemoteObjectSubtypeNull:
		return "null"
	case obj.Description != "":
		return obj.Description
	case !obj.Value.Nil():
		return obj.Value.JSON("", "")
	default:
		return string(obj.Type)
	}
}
