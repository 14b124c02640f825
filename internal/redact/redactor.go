// Package redact provides privacy filtering for URLs that end up in
// console output, logs and reports.
package redact

import (
	"net/url"
	"strings"
)

// RedactedValue is the placeholder for redacted content.
const RedactedValue = "REDACTED"

// DefaultQueryDenylist contains query parameter names whose values are redacted.
// Matching is case-insensitive and by substring, so "id_token" and "apiKey" are caught.
var DefaultQueryDenylist = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"apikey",
	"api_key",
	"auth",
	"code",
	"session",
	"signature",
	"credential",
}

// Redactor handles redaction of sensitive URL parts.
type Redactor struct {
	enabled       bool
	queryDenylist []string
}

// New creates a new Redactor with default settings.
func New(enabled bool) *Redactor {
	return &Redactor{
		enabled:       enabled,
		queryDenylist: DefaultQueryDenylist,
	}
}

// NewWithCustomRules creates a Redactor with extra query parameter patterns.
func NewWithCustomRules(enabled bool, queryParams []string) *Redactor {
	r := New(enabled)
	if queryParams != nil {
		r.queryDenylist = append(append([]string{}, r.queryDenylist...), queryParams...)
	}
	return r
}

// IsEnabled returns whether redaction is enabled.
func (r *Redactor) IsEnabled() bool {
	return r.enabled
}

// URL redacts the userinfo password and sensitive query values of raw.
// Strings that do not parse as URLs are returned unchanged.
func (r *Redactor) URL(raw string) string {
	if !r.enabled || raw == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme == "" && u.Host == "") {
		return raw
	}

	changed := false
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), RedactedValue)
			changed = true
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		queryChanged := false
		for key, values := range q {
			if !r.shouldRedactParam(key) {
				continue
			}
			for i := range values {
				values[i] = RedactedValue
			}
			queryChanged = true
		}
		if queryChanged {
			u.RawQuery = q.Encode()
			changed = true
		}
	}

	if !changed {
		return raw
	}
	return u.String()
}

// shouldRedactParam checks if a query parameter should be redacted.
func (r *Redactor) shouldRedactParam(name string) bool {
	name = strings.ToLower(name)
	for _, pattern := range r.queryDenylist {
		if strings.Contains(name, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
