package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/accessibility"

	"github.com/ajsharma/verify_split/internal/browser"
)

func closedController() *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return NewController(ctx, nil)
}

func TestClosedTab(t *testing.T) {
	c := closedController()
	ctx := context.Background()

	if err := c.Navigate(ctx, "http://localhost:5173", time.Second); !errors.Is(err, browser.ErrSessionClosed) {
		t.Errorf("Navigate: expected ErrSessionClosed, got %v", err)
	}
	if err := c.WaitRoleVisible(ctx, "button", "Sign In (v3)", time.Second, 10*time.Millisecond); !errors.Is(err, browser.ErrSessionClosed) {
		t.Errorf("WaitRoleVisible: expected ErrSessionClosed, got %v", err)
	}
	if _, err := c.Screenshot(ctx, false); !errors.Is(err, browser.ErrSessionClosed) {
		t.Errorf("Screenshot: expected ErrSessionClosed, got %v", err)
	}
}

func TestScope(t *testing.T) {
	t.Run("inherits parent deadline", func(t *testing.T) {
		c := NewController(context.Background(), nil)
		parent, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		ctx, done := c.scope(parent, 0)
		defer done()

		want, _ := parent.Deadline()
		got, ok := ctx.Deadline()
		if !ok || !got.Equal(want) {
			t.Errorf("expected deadline %v, got %v (ok=%v)", want, got, ok)
		}
	})

	t.Run("timeout tighter than parent", func(t *testing.T) {
		c := NewController(context.Background(), nil)
		ctx, done := c.scope(context.Background(), 20*time.Millisecond)
		defer done()

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("scope did not expire")
		}
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", ctx.Err())
		}
	})

	t.Run("parent cancellation propagates", func(t *testing.T) {
		c := NewController(context.Background(), nil)
		parent, cancel := context.WithCancel(context.Background())

		ctx, done := c.scope(parent, 0)
		defer done()

		cancel()
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("parent cancellation not propagated")
		}
	})

	t.Run("tab cancellation propagates", func(t *testing.T) {
		tab, cancel := context.WithCancel(context.Background())
		c := NewController(tab, nil)

		ctx, done := c.scope(context.Background(), 0)
		defer done()

		cancel()
		<-ctx.Done()
		if !c.closed() {
			t.Error("expected controller to report closed")
		}
	})
}

func TestDiagnostics(t *testing.T) {
	collector := &browser.Collector{}
	c := NewController(context.Background(), collector)

	if got := c.Diagnostics(); len(got) != 0 {
		t.Fatalf("expected no diagnostics, got %v", got)
	}

	collector.Add(browser.Diagnostic{Kind: browser.DiagConsoleError, Text: "boom"})
	got := c.Diagnostics()
	if len(got) != 1 || got[0].Text != "boom" {
		t.Errorf("unexpected diagnostics %v", got)
	}
}

func TestBackendIDs(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*accessibility.Node
		want  int
	}{
		{"none", nil, 0},
		{"single", []*accessibility.Node{{BackendDOMNodeID: 7}}, 1},
		{"ignored dropped", []*accessibility.Node{{BackendDOMNodeID: 7, Ignored: true}, {BackendDOMNodeID: 8}}, 1},
		{"no dom node dropped", []*accessibility.Node{{}, nil, {BackendDOMNodeID: 3}}, 1},
		{"duplicates", []*accessibility.Node{{BackendDOMNodeID: 1}, {BackendDOMNodeID: 2}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backendIDs(tt.nodes); len(got) != tt.want {
				t.Errorf("expected %d ids, got %d", tt.want, len(got))
			}
		})
	}
}
