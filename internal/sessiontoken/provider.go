package sessiontoken

import "context"

// TokenProvider is the out-of-scope external collaborator (spec.md §1,
// §4.2): the headless-browser driver that obtains a fresh session cookie.
// This package only depends on the capability, never a concrete browser
// implementation.
type TokenProvider interface {
	// FetchToken obtains a fresh _m_h5_tk cookie value, or an error if
	// the provider could not mint one (e.g. browser automation failure,
	// login required).
	FetchToken(ctx context.Context) (string, error)
}
