package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// RedactPattern is a named regular expression and its replacement.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Redactor redacts PII (Personally Identifiable Information) from log fields.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in PII pattern names.
const (
	PatternEmail       = "email"
	PatternSSN         = "ssn"
	PatternCreditCard  = "credit_card"
	PatternIPv4        = "ipv4"
	PatternPhone       = "phone"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

// Applied in order. Card numbers run before SSN and phone so that their
// digit groups are not partially rewritten.
var defaultPatterns = []RedactPattern{
	{Name: PatternBearerToken, Pattern: `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, Replacement: "Bearer ***"},
	{Name: PatternPassword, Pattern: `(password|passwd|pwd)[:=]\s*[^\s]+`, Replacement: "$1: ***"},
	{Name: PatternEmail, Pattern: `[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`, Replacement: "***@$1"},
	{Name: PatternCreditCard, Pattern: `\b(?:\d[ -]?){12,15}\d\b`, Replacement: "****-****-****-****"},
	{Name: PatternSSN, Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Replacement: "***-**-****"},
	{Name: PatternIPv4, Pattern: `\b(\d{1,3})\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`, Replacement: "$1.*.*.*"},
	{Name: PatternPhone, Pattern: `\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, Replacement: "***-***-****"},
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"authorization",
	"ssn", "social_security",
	"credit_card", "creditcard", "card_number",
	"private_key", "privatekey",
}

// NewRedactor creates a Redactor with the built-in patterns followed by
// custom ones.
func NewRedactor(custom []RedactPattern) (*Redactor, error) {
	r := &Redactor{}
	for _, p := range append(append([]RedactPattern(nil), defaultPatterns...), custom...) {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}
	return r, nil
}

// RedactString rewrites every PII match in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr redacts an attribute. Values under sensitive keys are masked
// entirely; other strings and errors have PII patterns rewritten. Groups
// are redacted recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		attrs := v.Group()
		redacted := make([]any, len(attrs))
		for i, ga := range attrs {
			redacted[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, redacted...)
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, mask(v))
	}

	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// mask keeps a four character hint of long string values.
func mask(v slog.Value) string {
	if v.Kind() != slog.KindString {
		return "***"
	}
	s := v.String()
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***"
}

// RedactEmail redacts an email address, keeping the first character and
// the domain.
func RedactEmail(email string) string {
	user, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	if user == "" {
		return "***@" + domain
	}
	return user[:1] + "***@" + domain
}
