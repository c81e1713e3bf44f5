// Package redact strips credential material from operator-facing output.
// Attempt diagnostics echo the headers and body snippets of failed remote
// exchanges; everything that passes through here must be safe to log and to
// return to an administrator.
package redact

import (
	"regexp"
	"strings"
)

// Marker replaces every redacted value.
const Marker = "[REDACTED]"

// Patterns that look like credentials regardless of the configured bundle,
// e.g. keys pasted into a response body by the remote's own error messages.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]{16,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{16,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|organization[_-]?secret)["':\s=]+[A-Za-z0-9._\-]{12,}`),
}

// Redactor removes a known set of secret values, plus anything matching the
// generic credential patterns, from arbitrary text.
type Redactor struct {
	secrets []string
}

// New builds a redactor for the given secret values. Empty values are
// ignored so a partially filled bundle never redacts the empty string.
func New(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
	return r
}

// Scrub replaces every known secret value and credential-shaped token in s.
func (r *Redactor) Scrub(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, Marker)
	}
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, Marker)
	}
	return s
}

// ScrubHeaders returns a copy of headers with secret-bearing values replaced.
func (r *Redactor) ScrubHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = r.Scrub(v)
	}
	return out
}

// Preview returns a display-safe fragment of a secret for log correlation.
func Preview(secret string) string {
	if len(secret) <= 6 {
		return "******"
	}
	return secret[:6] + "..."
}
