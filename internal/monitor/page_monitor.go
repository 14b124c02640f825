// Package monitor collects console, exception and network diagnostics from a Chrome tab.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/redact"
)

// PageMonitor turns CDP events of one tab into browser.Diagnostics.
type PageMonitor struct {
	collector *browser.Collector
	redactor  *redact.Redactor

	// Request URLs by ID; loadingFailed events do not carry the URL.
	requests map[network.RequestID]string
	mu       sync.Mutex
}

// NewPageMonitor creates a monitor feeding collector.
func NewPageMonitor(collector *browser.Collector, redactor *redact.Redactor) *PageMonitor {
	if redactor == nil {
		redactor = redact.New(true)
	}
	return &PageMonitor{
		collector: collector,
		redactor:  redactor,
		requests:  make(map[network.RequestID]string),
	}
}

// Attach registers the event listener on tabCtx. It may be called before
// the tab exists; chromedp attaches it once the target is created.
func (pm *PageMonitor) Attach(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, pm.handleEvent)
}

// EnableActions returns the CDP domain enables the monitor depends on.
func (pm *PageMonitor) EnableActions() []chromedp.Action {
	return []chromedp.Action{
		runtime.Enable(),
		network.Enable(),
	}
}

// handleEvent processes CDP events.
func (pm *PageMonitor) handleEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		if ev.Request == nil {
			return
		}
		pm.mu.Lock()
		pm.requests[ev.RequestID] = ev.Request.URL
		pm.mu.Unlock()

	case *network.EventResponseReceived:
		if ev.Response == nil || ev.Response.Status < 400 {
			return
		}
		pm.add(browser.DiagHTTPError,
			fmt.Sprintf("HTTP %d %s", ev.Response.Status, ev.Response.StatusText),
			ev.Response.URL)

	case *network.EventLoadingFinished:
		pm.forget(ev.RequestID)

	case *network.EventLoadingFailed:
		url := pm.forget(ev.RequestID)
		if ev.Canceled {
			return
		}
		text := ev.ErrorText
		if ev.BlockedReason != "" {
			text += " (blocked: " + ev.BlockedReason.String() + ")"
		}
		pm.add(browser.DiagNetFailure, text, url)

	case *runtime.EventConsoleAPICalled:
		var kind string
		switch ev.Type {
		case runtime.APITypeError, runtime.APITypeAssert:
			kind = browser.DiagConsoleError
		case runtime.APITypeWarning:
			kind = browser.DiagConsoleWarn
		default:
			return
		}

		args := make([]string, 0, len(ev.Args))
		for _, arg := range ev.Args {
			args = append(args, formatValue(extractRemoteObjectValue(arg)))
		}

		var url string
		if ev.StackTrace != nil && len(ev.StackTrace.CallFrames) > 0 {
			url = ev.StackTrace.CallFrames[0].URL
		}
		pm.add(kind, strings.Join(args, " "), url)

	case *runtime.EventExceptionThrown:
		details := ev.ExceptionDetails
		if details == nil {
			return
		}
		text := details.Text
		if details.Exception != nil && details.Exception.Description != "" {
			text = details.Exception.Description
		}
		pm.add(browser.DiagException, text, details.URL)
	}
}

func (pm *PageMonitor) add(kind, text, url string) {
	pm.collector.Add(browser.Diagnostic{
		Kind: kind,
		Text: text,
		URL:  pm.redactor.URL(url),
	})
}

func (pm *PageMonitor) forget(id network.RequestID) string {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	url := pm.requests[id]
	delete(pm.requests, id)
	return url
}

// formatValue renders a console argument the way DevTools prints it.
func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// extractRemoteObjectValue extracts a usable value from a CDP RemoteObject.
func extractRemoteObjectValue(obj *runtime.RemoteObject) interface{} {
	if obj == nil {
		return nil
	}

	// Infinity, NaN, -0, bigint.
	if obj.UnserializableValue != "" {
		return string(obj.UnserializableValue)
	}

	if obj.Value != nil {
		var v interface{}
		if err := json.Unmarshal(obj.Value, &v); err == nil {
			return v
		}
		return string(obj.Value)
	}

	if obj.Type == runtime.TypeUndefined {
		return "undefined"
	}
	if obj.Subtype == runtime.SubtypeNull {
		return nil
	}

	if obj.Preview != nil {
		return extractObjectPreview(obj.Preview)
	}

	// e.g. "Error: boom\n    at ..." or "function foo()"
	if obj.Description != "" {
		return obj.Description
	}
	return string(obj.Type)
}

// extractObjectPreview extracts a readable representation from an ObjectPreview.
func extractObjectPreview(preview *runtime.ObjectPreview) interface{} {
	if preview.Subtype == runtime.SubtypeArray {
		arr := make([]interface{}, 0, len(preview.Properties))
		for _, prop := range preview.Properties {
			arr = append(arr, extractPropertyValue(prop))
		}
		if preview.Overflow {
			arr = append(arr, "...")
		}
		return arr
	}

	obj := make(map[string]interface{}, len(preview.Properties))
	for _, prop := range preview.Properties {
		obj[prop.Name] = extractPropertyValue(prop)
	}
	if preview.Overflow {
		obj["..."] = "(truncated)"
	}
	return obj
}

func extractPropertyValue(prop *runtime.PropertyPreview) interface{} {
	switch {
	case prop.Value == "null", prop.Subtype == runtime.SubtypeNull:
		return nil
	case prop.Type == runtime.TypeNumber:
		var v float64
		if err := json.Unmarshal([]byte(prop.Value), &v); err == nil {
			return v
		}
	case prop.Type == runtime.TypeBoolean:
		return prop.Value == "true"
	}
	return prop.Value
}
