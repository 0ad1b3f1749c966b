// Package sessiontoken owns the single mutable session token shared
// read-mostly across every user's polling loop, grounded on the teacher's
// internal/session.Manager run-loop shape (trigger channel + mutex +
// atomic replace) generalized from a Claude CLI escalation session to a
// marketplace cookie/seed token.
package sessiontoken

import (
	"strings"
	"time"
)

// Snapshot is an immutable point-in-time view of the session token.
// Adapters read a Snapshot to sign requests; they never see the mutable
// Manager directly, and the copy they hold is not changed by a later
// Refresh.
type Snapshot struct {
	Cookie     string    // full _m_h5_tk cookie value
	Seed       string    // left half of Cookie, split at first '_'
	ObtainedAt time.Time
}

// Valid reports whether the snapshot has a usable seed.
func (s Snapshot) Valid() bool {
	return s.Seed != ""
}

// seedFromCookie implements the token-seed extraction spec.md §4.2
// requires: split the _m_h5_tk cookie at the first underscore, left half
// is the seed used to compute the request sign.
func seedFromCookie(cookie string) string {
	idx := strings.IndexByte(cookie, '_')
	if idx < 0 {
		return cookie
	}
	return cookie[:idx]
}

// NewSnapshot builds a Snapshot from a raw cookie value.
func NewSnapshot(cookie string, obtainedAt time.Time) Snapshot {
	return Snapshot{Cookie: cookie, Seed: seedFromCookie(cookie), ObtainedAt: obtainedAt}
}
