package monitor

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/ajsharma/verify_split/internal/browser"
	"github.com/ajsharma/verify_split/internal/redact"
)

func newTestMonitor() (*PageMonitor, *browser.Collector) {
	c := &browser.Collector{}
	return NewPageMonitor(c, redact.New(true)), c
}

func TestConsoleEvents(t *testing.T) {
	tests := []struct {
		name     string
		apiType  runtime.APIType
		wantKind string
	}{
		{"error", runtime.APITypeError, browser.DiagConsoleError},
		{"assert", runtime.APITypeAssert, browser.DiagConsoleError},
		{"warning", runtime.APITypeWarning, browser.DiagConsoleWarn},
		{"log ignored", runtime.APITypeLog, ""},
		{"info ignored", runtime.APITypeInfo, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, c := newTestMonitor()
			pm.handleEvent(&runtime.EventConsoleAPICalled{
				Type: tt.apiType,
				Args: []*runtime.RemoteObject{
					{Type: runtime.TypeString, Value: jsontext.Value(`"login failed"`)},
					{Type: runtime.TypeNumber, Value: jsontext.Value(`42`)},
				},
			})

			got := c.Snapshot()
			if tt.wantKind == "" {
				if len(got) != 0 {
					t.Fatalf("expected no diagnostics, got %v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 diagnostic, got %d", len(got))
			}
			if got[0].Kind != tt.wantKind {
				t.Errorf("expected kind %q, got %q", tt.wantKind, got[0].Kind)
			}
			if got[0].Text != "login failed 42" {
				t.Errorf("unexpected text %q", got[0].Text)
			}
		})
	}
}

func TestExceptionEvent(t *testing.T) {
	pm, c := newTestMonitor()
	pm.handleEvent(&runtime.EventExceptionThrown{
		ExceptionDetails: &runtime.ExceptionDetails{
			Text: "Uncaught",
			URL:  "http://localhost:5173/src/main.js?token=abc",
			Exception: &runtime.RemoteObject{
				Type:        runtime.TypeObject,
				Description: "TypeError: x is undefined",
			},
		},
	})

	got := c.Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(got))
	}
	if got[0].Kind != browser.DiagException || got[0].Text != "TypeError: x is undefined" {
		t.Errorf("unexpected diagnostic %+v", got[0])
	}
	if got[0].URL != "http://localhost:5173/src/main.js?token=REDACTED" {
		t.Errorf("expected redacted URL, got %q", got[0].URL)
	}
}

func TestNetworkEvents(t *testing.T) {
	t.Run("loading failure uses tracked URL", func(t *testing.T) {
		pm, c := newTestMonitor()
		pm.handleEvent(&network.EventRequestWillBeSent{
			RequestID: "1",
			Request:   &network.Request{URL: "http://localhost:5173/api/session"},
		})
		pm.handleEvent(&network.EventLoadingFailed{
			RequestID: "1",
			ErrorText: "net::ERR_CONNECTION_REFUSED",
		})

		got := c.Snapshot()
		if len(got) != 1 {
			t.Fatalf("expected 1 diagnostic, got %d", len(got))
		}
		want := browser.Diagnostic{
			Kind: browser.DiagNetFailure,
			Text: "net::ERR_CONNECTION_REFUSED",
			URL:  "http://localhost:5173/api/session",
		}
		if got[0] != want {
			t.Errorf("expected %+v, got %+v", want, got[0])
		}
		if len(pm.requests) != 0 {
			t.Errorf("expected tracker to be empty, got %d entries", len(pm.requests))
		}
	})

	t.Run("cancelled requests ignored", func(t *testing.T) {
		pm, c := newTestMonitor()
		pm.handleEvent(&network.EventLoadingFailed{RequestID: "2", Canceled: true})
		if got := c.Snapshot(); len(got) != 0 {
			t.Errorf("expected no diagnostics, got %v", got)
		}
	})

	t.Run("finished requests forgotten", func(t *testing.T) {
		pm, _ := newTestMonitor()
		pm.handleEvent(&network.EventRequestWillBeSent{
			RequestID: "3",
			Request:   &network.Request{URL: "http://localhost:5173/"},
		})
		pm.handleEvent(&network.EventLoadingFinished{RequestID: "3"})
		if len(pm.requests) != 0 {
			t.Errorf("expected tracker to be empty, got %d entries", len(pm.requests))
		}
	})

	t.Run("http errors", func(t *testing.T) {
		pm, c := newTestMonitor()
		pm.handleEvent(&network.EventResponseReceived{
			Response: &network.Response{URL: "http://localhost:5173/ok", Status: 200},
		})
		pm.handleEvent(&network.EventResponseReceived{
			Response: &network.Response{URL: "http://localhost:5173/missing", Status: 404, StatusText: "Not Found"},
		})

		got := c.Snapshot()
		if len(got) != 1 {
			t.Fatalf("expected 1 diagnostic, got %d", len(got))
		}
		if got[0].Kind != browser.DiagHTTPError || got[0].Text != "HTTP 404 Not Found" {
			t.Errorf("unexpected diagnostic %+v", got[0])
		}
	})
}

func TestExtractRemoteObjectValue(t *testing.T) {
	tests := []struct {
		name string
		obj  *runtime.RemoteObject
		want string
	}{
		{"nil", nil, "null"},
		{"string", &runtime.RemoteObject{Type: runtime.TypeString, Value: jsontext.Value(`"hi"`)}, "hi"},
		{"bool", &runtime.RemoteObject{Type: runtime.TypeBoolean, Value: jsontext.Value(`true`)}, "true"},
		{"undefined", &runtime.RemoteObject{Type: runtime.TypeUndefined}, "undefined"},
		{"null", &runtime.RemoteObject{Type: runtime.TypeObject, Subtype: runtime.SubtypeNull}, "null"},
		{"nan", &runtime.RemoteObject{Type: runtime.TypeNumber, UnserializableValue: "NaN"}, "NaN"},
		{"description", &runtime.RemoteObject{Type: runtime.TypeFunction, Description: "function foo()"}, "function foo()"},
		{
			"array preview",
			&runtime.RemoteObject{
				Type: runtime.TypeObject,
				Preview: &runtime.ObjectPreview{
					Subtype: runtime.SubtypeArray,
					Properties: []*runtime.PropertyPreview{
						{Name: "0", Type: runtime.TypeNumber, Value: "1"},
						{Name: "1", Type: runtime.TypeBoolean, Value: "false"},
					},
				},
			},
			"[1,false]",
		},
		{
			"object preview",
			&runtime.RemoteObject{
				Type: runtime.TypeObject,
				Preview: &runtime.ObjectPreview{
					Properties: []*runtime.PropertyPreview{
						{Name: "status", Type: runtime.TypeString, Value: "denied"},
					},
					Overflow: true,
				},
			},
			`{"...":"(truncated)","status":"denied"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(extractRemoteObjectValue(tt.obj)); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
