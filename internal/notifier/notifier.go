// Package notifier defines the Notifier contract (spec.md §4.8): deliver
// text and photo notifications to a user, plus admin notices, tolerant of
// upstream failures — a failed delivery is counted, never raised into the
// polling loop.
package notifier

import "context"

// Notifier delivers notifications to end users and administrators.
// Implementations must never return an error that the polling loop needs
// to react to beyond counting it; delivery failures are logged and
// swallowed at the call site (spec.md §4.8).
type Notifier interface {
	SendText(ctx context.Context, userID, text string) error
	SendPhoto(ctx context.Context, userID, photoURL, caption string) error
	SendAdmin(ctx context.Context, text string) error
}
