// Package apprise implements notifier.Notifier against an Apprise-API
// (https://github.com/caronc/apprise-api) compatible relay: one POST per
// notification to each configured notify URL. Grounded on the teacher's
// AppriseURLs config field (already named for admin notices) and the
// gitprovider.GitHubProvider HTTP request shape (explicit client
// Timeout, http.NewRequestWithContext).
package apprise

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phuslu/log"
)

// Notifier posts to one or more Apprise relay URLs. Per-user routing is
// out of scope for this adapter (the chat front-end owns per-user
// delivery addressing); this Notifier fans every call out to the same
// configured relay set, tagging the payload with userID so the relay (or
// whatever consumes it downstream) can route further.
type Notifier struct {
	urls    []string
	client  *http.Client
	logger  log.Logger
}

// New returns an apprise Notifier posting to urls.
func New(urls []string, timeout time.Duration, logger log.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		urls:   urls,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type payload struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
	Type  string `json:"type,omitempty"`
	Attach string `json:"attach,omitempty"`
}

func (n *Notifier) post(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("apprise: marshal: %w", err)
	}

	var firstErr error
	for _, u := range n.urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			firstErr = fmt.Errorf("apprise: build request to %s: %w", u, err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn().Str("component", "notifier").Str("url", u).Err(err).Msg("apprise post failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			err := fmt.Errorf("apprise: %s returned status %d", u, resp.StatusCode)
			n.logger.Warn().Str("component", "notifier").Err(err).Msg("apprise post rejected")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendText delivers a plain-text notification. Failures are logged by
// post and returned so the caller can count them (spec.md §4.8); the
// polling loop must never treat a non-nil error here as fatal.
func (n *Notifier) SendText(ctx context.Context, userID, text string) error {
	return n.post(ctx, payload{Title: "marketwatch", Body: "[" + userID + "] " + text, Type: "info"})
}

// SendPhoto delivers a photo notification with an attached image URL.
func (n *Notifier) SendPhoto(ctx context.Context, userID, photoURL, caption string) error {
	return n.post(ctx, payload{Title: "marketwatch", Body: "[" + userID + "] " + caption, Attach: photoURL, Type: "info"})
}

// SendAdmin delivers an operational notice, not tied to any single user.
func (n *Notifier) SendAdmin(ctx context.Context, text string) error {
	return n.post(ctx, payload{Title: "marketwatch admin", Body: text, Type: "warning"})
}
