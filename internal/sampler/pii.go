// Package sampler draws bounded random samples from live collections and
// infers an observed schema per collection: type frequencies, required
// fields, string formats, and enum candidates. PII redaction happens before
// any statistic is computed, so no literal sampled value of a sensitive
// field ever reaches persisted state.
package sampler

import (
	"regexp"
	"strings"
)

// RedactionSentinel replaces any PII value before statistics are computed.
// The field's presence and type are still counted.
const RedactionSentinel = "[REDACTED]"

// defaultDenylist holds field-name fragments that mark a field as PII
// regardless of its value.
var defaultDenylist = []string{
	"email", "phone", "ssn", "socialsecurity", "token", "password",
	"secret", "apikey", "api_key", "creditcard", "credit_card", "dob",
	"dateofbirth", "address",
}

// Compiled value patterns. A string matching any of these is treated as PII
// even when the field name is innocuous.
var valuePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"email", regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)},
	{"phone", regexp.MustCompile(`^\+?[0-9][0-9\-\s().]{7,14}[0-9]$`)},
	{"ssn", regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)},
	{"base64_blob", regexp.MustCompile(`^[A-Za-z0-9+/]{20,}={0,2}$`)},
	{"hex_blob", regexp.MustCompile(`^[0-9a-fA-F]{32,}$`)},
}

// Redactor detects and replaces PII in sampled documents.
type Redactor struct {
	denylist []string
}

// NewRedactor builds a redactor. Extra denylist entries extend the defaults.
func NewRedactor(extraDenylist ...string) *Redactor {
	names := make([]string, 0, len(defaultDenylist)+len(extraDenylist))
	names = append(names, defaultDenylist...)
	for _, n := range extraDenylist {
		names = append(names, strings.ToLower(n))
	}
	return &Redactor{denylist: names}
}

// IsSensitiveName reports whether a field name matches the denylist.
func (r *Redactor) IsSensitiveName(field string) bool {
	lower := strings.ToLower(field)
	for _, frag := range r.denylist {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether a string value matches a PII pattern.
// 24-hex object ids do not trip the hex pattern, which requires ≥32 chars.
func (r *Redactor) IsSensitiveValue(val string) bool {
	for _, p := range valuePatterns {
		if p.re.MatchString(val) {
			return true
		}
	}
	return false
}

// RedactDocument returns a copy of doc with every PII field value replaced
// by the sentinel, recursing through nested documents and arrays. The second
// result counts replaced values.
func (r *Redactor) RedactDocument(doc map[string]any) (map[string]any, int) {
	out := make(map[string]any, len(doc))
	count := 0
	for field, val := range doc {
		redacted, n := r.redactValue(field, val)
		out[field] = redacted
		count += n
	}
	return out, count
}

func (r *Redactor) redactValue(field string, val any) (any, int) {
	switch v := val.(type) {
	case string:
		if r.IsSensitiveName(field) || r.IsSensitiveValue(v) {
			return RedactionSentinel, 1
		}
		return v, 0
	case map[string]any:
		return r.RedactDocument(v)
	case []any:
		out := make([]any, len(v))
		count := 0
		for i, item := range v {
			redacted, n := r.redactValue(field, item)
			out[i] = redacted
			count += n
		}
		return out, count
	default:
		if r.IsSensitiveName(field) {
			// Non-string PII (numeric phone numbers, encoded blobs): replace
			// wholesale so nothing literal survives, typed as redacted text.
			return RedactionSentinel, 1
		}
		return val, 0
	}
}
