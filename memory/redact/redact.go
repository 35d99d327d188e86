// Package redact scrubs PII from text before it is embedded or stored.
// It runs a fixed ordered rule list, replacing each match with a sentinel
// token. Sentinel tokens never match any rule, so redaction is idempotent.
package redact

import "regexp"

// Sentinel tokens substituted for matched PII.
const (
	EmailToken = "[EMAIL_REDACTED]"
	PhoneToken = "[PHONE_REDACTED]"
)

// rule pairs a detection pattern with its replacement token.
type rule struct {
	id      string
	pattern *regexp.Regexp
	token   string
}

// Filter redacts PII from content.
type Filter struct {
	rules []rule
}

// New creates a Filter with the default rule set: email addresses and
// phone numbers (optional country code, optional parenthesized area code,
// flexible separators).
func New() *Filter {
	return &Filter{
		rules: []rule{
			{
				id:      "email",
				pattern: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
				token:   EmailToken,
			},
			{
				id:      "phone",
				pattern: regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
				token:   PhoneToken,
			},
		},
	}
}

// Redact replaces every PII match with its sentinel token. Rule order is
// immaterial: the token shapes do not overlap with any pattern.
func (f *Filter) Redact(text string) string {
	for _, r := range f.rules {
		text = r.pattern.ReplaceAllString(text, r.token)
	}
	return text
}
