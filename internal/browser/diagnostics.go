package browser

import "sync"

// MaxDiagnostics caps how many diagnostics a Collector keeps.
const MaxDiagnostics = 200

// Diagnostic kinds.
const (
	DiagConsoleError = "console.error"
	DiagConsoleWarn  = "console.warn"
	DiagException    = "page.exception"
	DiagNetFailure   = "network.failure"
	DiagHTTPError    = "network.http_error"
)

// Diagnostic is something the page reported while it was being verified.
type Diagnostic struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// Collector accumulates diagnostics from driver event goroutines.
type Collector struct {
	mu      sync.Mutex
	items   []Diagnostic
	dropped int
}

// Add records d, dropping it once MaxDiagnostics is reached.
func (c *Collector) Add(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= MaxDiagnostics {
		c.dropped++
		return
	}
	c.items = append(c.items, d)
}

// Snapshot returns a copy of the collected diagnostics.
func (c *Collector) Snapshot() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Dropped returns how many diagnostics were discarded over the cap.
func (c *Collector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
