// Package adapter defines the Site Adapter contract (spec.md §4.1): build
// a signed request against a marketplace search endpoint, parse the
// response, and classify failures into a closed set of kinds the polling
// loop can switch on without ever sniffing an error string.
package adapter

import (
	"context"
	"time"

	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/sessiontoken"
)

// ErrorKind is a closed taxonomy of everything that can go wrong talking
// to the marketplace, replacing the exception-driven control flow the
// original Java source used (spec.md §9, "Exception-driven control
// flow"). The polling loop switches on Kind, never on Error() text.
type ErrorKind int

const (
	// KindNone is the zero value; never present on a returned *Error.
	KindNone ErrorKind = iota
	// KindAuth marks a response indicating the session token has expired
	// or been rejected — the loop should ask the Session Manager to
	// refresh and retry the page.
	KindAuth
	// KindBlocked marks a captcha/risk-control response — the loop backs
	// off the whole query, not just the page.
	KindBlocked
	// KindTransient marks a retryable network/HTTP failure (timeout,
	// 5xx, connection reset).
	KindTransient
	// KindEmptyPage marks a well-formed response with zero results — not
	// an error, but surfaced as one so the loop can stop paginating
	// without a sentinel slice check.
	KindEmptyPage
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindBlocked:
		return "blocked"
	case KindTransient:
		return "transient"
	case KindEmptyPage:
		return "empty_page"
	default:
		return "none"
	}
}

// Error is the tagged error type every Adapter returns. Wrap with %w when
// adding context; callers should use errors.As to recover the Kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, adapter.KindAuth) style matching by wrapping
// the kind as a sentinel-comparable value through errors.As instead —
// callers should prefer: var aerr *adapter.Error; errors.As(err, &aerr).

// Adapter is the Site Adapter contract (spec.md §4.1). Signing is
// internal to the implementation and MUST NOT itself refresh the token;
// on KindAuth the caller (the polling loop) is responsible for asking the
// Session Manager to refresh and retrying.
type Adapter interface {
	// Search issues one page of a query against the marketplace and
	// returns the items found. token is the current session snapshot;
	// implementations read it but never mutate or refresh it.
	Search(ctx context.Context, query string, page, rows int, token sessiontoken.Snapshot) ([]model.Item, error)

	// RequestDelay is the minimum spacing the adapter requires between
	// requests to stay under the upstream's informal rate limit.
	RequestDelay() time.Duration
}
