package model

import (
	"strings"
	"time"
)

// UserSettings is the immutable-per-load configuration a single user's
// polling loop runs with. It is read from storage.data.dir/user_settings/
// <id>.json at session start and whenever the chat front-end pushes an
// update; the running loop always reads the latest value from UserSession,
// never caches its own copy.
type UserSettings struct {
	UserID        string   `json:"user_id"`
	Queries       []string `json:"queries"`
	MinPrice      float64  `json:"min_price,omitempty"`
	MaxPrice      float64  `json:"max_price,omitempty"`
	ExcludeWords  []string `json:"exclude_words,omitempty"`
	PollIntervalS int      `json:"poll_interval_s"`
	MaxAgeMin     int      `json:"max_age_min"`
	PagesPerCycle int      `json:"pages_per_cycle"`
	RowsPerPage   int      `json:"rows_per_page"`
	NotifyNewOnly bool     `json:"notify_new_only"`
}

// Range bounds spec.md §3 requires every clamped settings field to sit
// within after Validate runs.
const (
	minPollIntervalS = 10
	maxPollIntervalS = 3600
	minMaxAgeMin     = 1
	maxMaxAgeMin     = 10080
	minPagesPerCycle = 1
	maxPagesPerCycle = 50
	minRowsPerPage   = 10
	maxRowsPerPage   = 1000

	defaultPollIntervalS = 60
	defaultMaxAgeMin     = 1440
	defaultPagesPerCycle = 1
	defaultRowsPerPage   = 30
)

// Validate rejects a settings payload with no queries and clamps every
// bounded field into its spec.md §3 range, zero-value fields first
// replaced by their default. Clamping is idempotent: calling Validate a
// second time on an already-valid UserSettings never changes it.
func (s *UserSettings) Validate() error {
	if len(s.Queries) == 0 {
		return errNoQueries
	}
	for _, q := range s.Queries {
		if strings.TrimSpace(q) == "" {
			return errEmptyQuery
		}
	}

	if s.PollIntervalS <= 0 {
		s.PollIntervalS = defaultPollIntervalS
	}
	s.PollIntervalS = clamp(s.PollIntervalS, minPollIntervalS, maxPollIntervalS)

	if s.MaxAgeMin <= 0 {
		s.MaxAgeMin = defaultMaxAgeMin
	}
	s.MaxAgeMin = clamp(s.MaxAgeMin, minMaxAgeMin, maxMaxAgeMin)

	if s.PagesPerCycle <= 0 {
		s.PagesPerCycle = defaultPagesPerCycle
	}
	s.PagesPerCycle = clamp(s.PagesPerCycle, minPagesPerCycle, maxPagesPerCycle)

	if s.RowsPerPage <= 0 {
		s.RowsPerPage = defaultRowsPerPage
	}
	s.RowsPerPage = clamp(s.RowsPerPage, minRowsPerPage, maxRowsPerPage)

	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Matches reports whether an item satisfies this settings' price bounds
// and exclude-word filters. It takes an already-parsed price and does no
// parsing itself; a MinPrice or MaxPrice of zero disables that bound, and
// exclude words match case-insensitively anywhere in title.
func (s UserSettings) Matches(price float64, title string) bool {
	if s.MinPrice > 0 && price < s.MinPrice {
		return false
	}
	if s.MaxPrice > 0 && price > s.MaxPrice {
		return false
	}
	for _, w := range s.ExcludeWords {
		if w != "" && containsFold(title, w) {
			return false
		}
	}
	return true
}

// HistoryEntry describes one delivered-item record. The History Store does
// not use it: it persists only the bare item id, one per line of each
// user's file.
type HistoryEntry struct {
	ItemID  string    `json:"item_id"`
	SentAt  time.Time `json:"sent_at"`
	Query   string    `json:"query,omitempty"`
}
