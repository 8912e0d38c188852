// Package security keeps secrets out of logs: a Redactor that masks known
// credential formats and configured literals, and a slog handler applying
// it to every record.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with RedactPlaceholder. It
// matches regex patterns for known credential formats and literal values
// registered at runtime. All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds a literal secret value that should be redacted on sight.
// Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a configured token may be longer than what a pattern
	// would match.
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns returns compiled regex patterns for the credential formats
// meterbot handles.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// OpenAI: sk-..., sk-proj-...
		regexp.MustCompile(`sk-(?:proj-)?[a-zA-Z0-9_\-]{20,}`),
		// Telegram bot token, bare or inside a Bot API URL.
		regexp.MustCompile(`\d{6,}:[A-Za-z0-9_\-]{30,}`),
		// Authorization header values.
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]{16,}`),
	}
}
