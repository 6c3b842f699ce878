package auth

import (
	"slices"
	"strings"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// DefaultScopes are requested on every sign-in.
var DefaultScopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// knownScopes are the scopes the accounts service accepts that discx may ask for.
var knownScopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserLibraryModify,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeImageUpload,
}

// UnknownScopes returns the entries of scopes the accounts service would reject.
func UnknownScopes(scopes []string) []string {
	var unknown []string
	for _, s := range scopes {
		if !slices.Contains(knownScopes, s) {
			unknown = append(unknown, s)
		}
	}
	return unknown
}

// accountsEndpoint returns the OAuth endpoints under base, or the public accounts service when base is empty.
func accountsEndpoint(base string) oauth2.Endpoint {
	endpoint := oauth2.Endpoint{
		AuthURL:   spotifyauth.AuthURL,
		TokenURL:  spotifyauth.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if base = strings.TrimRight(base, "/"); base != "" {
		endpoint.AuthURL = base + "/authorize"
		endpoint.TokenURL = base + "/api/token"
	}
	return endpoint
}
