// Package redact strips secret values (provider API keys, the Matrix access
// token) from strings before they reach a log line.
//
// Redaction is best-effort string replacement; it does not replace keeping
// secrets out of log call-sites.
package redact

import "strings"

const placeholder = "[REDACTED]"

// minSecretLen is the shortest value that will be replaced; shorter values
// would match ordinary substrings.
const minSecretLen = 4

// String replaces every occurrence of each sensitive value in s with
// [REDACTED].
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < minSecretLen {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Redactor remembers a fixed set of secrets.
type Redactor struct {
	secrets []string
}

// New returns a Redactor for the given secrets. Empty values are ignored.
func New(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
	return r
}

// String redacts s.
func (r *Redactor) String(s string) string {
	if r == nil {
		return s
	}
	return String(s, r.secrets...)
}

// Error returns the redacted error message, or "" for a nil error.
func (r *Redactor) Error(err error) string {
	if err == nil {
		return ""
	}
	return r.String(err.Error())
}
