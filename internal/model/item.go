// Package model holds the plain value types shared across marketwatch:
// search results, per-user settings, and delivered-item history records. Nothing in this package talks to the network, the filesystem, or
// a database — it is the vocabulary every other package imports.
package model

import "time"

// Item is a single marketplace listing returned by a search. Once
// constructed it is never mutated; Adapter implementations build Items
// from a provider's raw JSON shape.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Price     string    `json:"price"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"image_url,omitempty"`
	SellerID  string    `json:"seller_id,omitempty"`
	PostedAt  time.Time `json:"posted_at,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Key is the identity used for history dedup and allow-list style
// comparisons: the marketplace item id.
func (i Item) Key() string {
	return i.ID
}

// AgeMinutes reports how old the listing is relative to now, in minutes.
// An item with a zero PostedAt (the upstream response carried no listing
// time) is treated as age zero rather than an enormous outlier, so it is
// never dropped by a max-age filter.
func (i Item) AgeMinutes(now time.Time) int {
	if i.PostedAt.IsZero() {
		return 0
	}
	age := now.Sub(i.PostedAt)
	if age < 0 {
		return 0
	}
	return int(age / time.Minute)
}
