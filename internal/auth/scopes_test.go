package auth

import (
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/discx/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

func TestScopes(t *testing.T) {
	t.Run("defaults are known", func(t *testing.T) {
		if unknown := UnknownScopes(DefaultScopes); len(unknown) != 0 {
			t.Errorf("unexpected unknown scopes %v", unknown)
		}
	})

	t.Run("reports typos", func(t *testing.T) {
		got := UnknownScopes([]string{"playlist-modify-private", "playlist-modfy-public"})
		if !slices.Equal(got, []string{"playlist-modfy-public"}) {
			t.Errorf("unexpected result %v", got)
		}
	})

	t.Run("manager rejects unknown scopes", func(t *testing.T) {
		_, err := NewManager(Options{ClientID: "client", Scopes: []string{"everything"}})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("endpoints", func(t *testing.T) {
		e := accountsEndpoint("http://127.0.0.1:9999/")
		if e.AuthURL != "http://127.0.0.1:9999/authorize" || e.TokenURL != "http://127.0.0.1:9999/api/token" {
			t.Errorf("unexpected endpoint %+v", e)
		}
		if e := accountsEndpoint(""); e.TokenURL != "https://accounts.spotify.com/api/token" {
			t.Errorf("unexpected default token url %s", e.TokenURL)
		}
	})

	t.Run("default endpoint is the public accounts service", func(t *testing.T) {
		e := accountsEndpoint("")
		if e.AuthURL != spotifyauth.AuthURL || e.TokenURL != spotifyauth.TokenURL {
			t.Errorf("unexpected default endpoint %+v", e)
		}
		if e.AuthStyle != oauth2.AuthStyleInParams {
			t.Errorf("public clients send the client id in params, got %v", e.AuthStyle)
		}
	})
}
