// package services implements the outbound HTTP clients for the streaming service
package services

import (
	"context"
)

// TokenProvider hands out access tokens and tracks granted scopes.
//
// The auth session manager implements it; tests use a stub.
type TokenProvider interface {
	// WithValidToken returns an access token valid for at least the session skew.
	WithValidToken(ctx context.Context) (string, error)

	// ForceRefresh refreshes unconditionally and returns the new access token.
	ForceRefresh(ctx context.Context) (string, error)

	// GrantedScopes returns the scopes of the current session; empty means unknown.
	GrantedScopes() []string

	// MarkNeedsReconsent records scopes the user must approve on the next sign-in.
	MarkNeedsReconsent(scopes ...string)
}
