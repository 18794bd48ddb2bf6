package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Redacted replaces every scrubbed value.
const Redacted = "***"

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternKeyValue    = "key_value"
)

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Redactor scrubs credentials from log output.
//
// It applies three rules: values under a sensitive-looking key are replaced
// entirely, strings matching a known secret shape (sk- keys, bearer tokens,
// key=value assignments) are rewritten, and any registered literal (the live
// upstream credential) is replaced wherever it occurs.
type Redactor struct {
	patterns []*redactPattern

	mu       sync.RWMutex
	literals []string
}

// NewRedactor creates a Redactor with the built-in patterns plus extra
// regular expressions, each of which is replaced by Redacted.
func NewRedactor(extra []string) (*Redactor, error) {
	r := &Redactor{}

	builtin := []struct {
		name        string
		regex       string
		replacement string
	}{
		{PatternBearerToken, `(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer " + Redacted},
		{PatternAPIKey, `sk-[a-zA-Z0-9_\-]{4,}`, "sk-" + Redacted},
		{PatternKeyValue, `(?i)(api[-_]?key|password|secret|token)(["']?\s*[:=]\s*["']?)[^\s"',&]+`, "${1}${2}" + Redacted},
	}
	for _, p := range builtin {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	for i, expr := range extra {
		regex, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %d %q: %w", i, expr, err)
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        fmt.Sprintf("custom_%d", i),
			regex:       regex,
			replacement: Redacted,
		})
	}

	return r, nil
}

// AddLiteral registers an exact value to scrub. Values shorter than four
// characters are ignored; scrubbing them would shred ordinary text.
func (r *Redactor) AddLiteral(value string) {
	if len(value) < 4 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.literals {
		if existing == value {
			return
		}
	}
	r.literals = append(r.literals, value)
}

// RedactString scrubs a string.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	r.mu.RLock()
	for _, literal := range r.literals {
		value = strings.ReplaceAll(value, literal, Redacted)
	}
	r.mu.RUnlock()

	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr scrubs a single attribute, descending into groups.
func (r *Redactor) RedactAttr(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()

	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, a := range group {
			redacted[i] = r.RedactAttr(a)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSensitiveKey(attr.Key) {
		return slog.String(attr.Key, Redacted)
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, r.RedactString(attr.Value.String()))
	case slog.KindAny:
		switch v := attr.Value.Any().(type) {
		case error:
			return slog.String(attr.Key, r.RedactString(v.Error()))
		case fmt.Stringer:
			return slog.String(attr.Key, r.RedactString(v.String()))
		case []byte:
			return slog.String(attr.Key, r.RedactString(string(v)))
		}
	}
	return attr
}

// isSensitiveKey checks if a key name indicates secret material.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	// Token counts, not tokens.
	if strings.HasSuffix(lowerKey, "tokens") {
		return false
	}

	sensitiveKeys := []string{
		"password", "passwd", "secret", "token",
		"api_key", "apikey", "authorization", "credential",
		"private_key", "privatekey",
	}

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}
