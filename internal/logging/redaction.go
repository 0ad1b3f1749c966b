package logging

import (
	"net/url"
	"strings"
	"sync"
)

// RedactionFilter replaces live session token values in a string with
// [REDACTED:...] placeholders. Adapted from the teacher's
// internal/session.RedactionFilter, which scanned BROWSER_CRED_*
// environment variables once at startup; this version is given the
// cookie and seed through Update at runtime, since the session token is
// refreshed rather than fixed at process start. Nothing in this
// repository constructs a RedactionFilter, so log output is not passed
// through it.
type RedactionFilter struct {
	mu           sync.RWMutex
	replacements map[string]string // credential value -> "[REDACTED:...]"
}

// NewRedactionFilter returns an empty filter; call Update whenever the
// Session Manager hands out a new token.
func NewRedactionFilter() *RedactionFilter {
	return &RedactionFilter{replacements: make(map[string]string)}
}

// Update replaces the filter's known-value dictionary with cookie and
// seed, plus their URL-encoded variants. Values shorter than 4 characters
// are skipped entirely rather than warned-and-kept: a seed that short
// would redact common substrings and do more harm than good.
func (rf *RedactionFilter) Update(cookie, seed string) {
	reps := make(map[string]string, 4)
	addValue := func(value, name string) {
		if len(value) < 4 {
			return
		}
		reps[value] = "[REDACTED:" + name + "]"
		if enc := url.QueryEscape(value); enc != value {
			reps[enc] = "[REDACTED:" + name + ":urlencoded]"
		}
	}
	addValue(cookie, "session_cookie")
	addValue(seed, "session_seed")

	rf.mu.Lock()
	rf.replacements = reps
	rf.mu.Unlock()
}

// Redact replaces every known credential value in input with its
// placeholder. A no-op passthrough until Update has been called at least
// once.
func (rf *RedactionFilter) Redact(input string) string {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	if len(rf.replacements) == 0 {
		return input
	}
	result := input
	for value, placeholder := range rf.replacements {
		result = strings.ReplaceAll(result, value, placeholder)
	}
	return result
}
