// Spotify Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// AddTracksChunk is the most URIs Spotify accepts per playlist write.
	AddTracksChunk = 100

	defaultRateLimitRetries = 10
	albumTracksPage         = 50

	// transientRetryDelay is the pause before the single retry of a dropped write.
	transientRetryDelay = time.Second
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	URI         string          `json:"uri"`
}

func (a SpotifyAlbum) model() models.Album {
	artists := make([]string, 0, len(a.Artists))
	for _, ar := range a.Artists {
		artists = append(artists, ar.Name)
	}
	return models.Album{ID: a.ID, Name: a.Name, Artists: artists, URI: a.URI}
}

// SpotifyTrack represents a simplified track as returned by the album tracks endpoint.
type SpotifyTrack struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
	DiscNumber  int    `json:"disc_number"`
	TrackNumber int    `json:"track_number"`
}

// Owner is a playlist owner.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylist holds the playlist fields needed to decide write access.
type SpotifyPlaylist struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Owner         Owner  `json:"owner"`
	Public        *bool  `json:"public"`
	Collaborative bool   `json:"collaborative"`
}

type albumSearchResponse struct {
	Albums struct {
		Items []SpotifyAlbum `json:"items"`
	} `json:"albums"`
}

type trackPage struct {
	Items []SpotifyTrack `json:"items"`
	Next  *string        `json:"next"`
	Total int            `json:"total"`
}

// SpotifyOptions configures a [SpotifyClient].
type SpotifyOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenProvider
	Logger     *log.Logger

	// MaxRateLimitRetries caps how many 429 waits one chunk may take.
	MaxRateLimitRetries int

	// OnMissingScopes is called with the scopes found missing before or during a write.
	OnMissingScopes func(scopes []string)

	// Sleep waits between retries; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// SpotifyClient is the streaming API client.
type SpotifyClient struct {
	api             *APIService
	tokens          TokenProvider
	logger          *log.Logger
	maxRateLimit    int
	onMissingScopes func([]string)
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewSpotifyClient creates a new Spotify client.
func NewSpotifyClient(opts SpotifyOptions) *SpotifyClient {
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.MaxRateLimitRetries <= 0 {
		opts.MaxRateLimitRetries = defaultRateLimitRetries
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	logger := shared.WithLogger(opts.Logger, "service", "spotify")
	return &SpotifyClient{
		api:             NewAPIService(opts.BaseURL, opts.HTTPClient, logger),
		tokens:          opts.Tokens,
		logger:          logger,
		maxRateLimit:    opts.MaxRateLimitRetries,
		onMissingScopes: opts.OnMissingScopes,
		sleep:           opts.Sleep,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call performs req with a bearer token and returns the raw response.
func (s *SpotifyClient) call(ctx context.Context, req Request) (*APIResponse, error) {
	if s.tokens == nil {
		return nil, fmt.Errorf("%w: no token provider configured", shared.ErrAuthRequired)
	}
	token, err := s.tokens.WithValidToken(ctx)
	if err != nil {
		return nil, err
	}

	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return s.api.Do(ctx, req)
}

// getJSON performs an authorized GET. A 401 triggers one forced refresh and a retry.
func (s *SpotifyClient) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	req := Request{Method: http.MethodGet, Path: path, Query: query}

	resp, err := s.call(ctx, req)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		s.logger.Info("access token rejected, refreshing", "endpoint", resp.Endpoint)
		if _, err := s.tokens.ForceRefresh(ctx); err != nil {
			return err
		}
		req.Header = nil
		if resp, err = s.call(ctx, req); err != nil {
			return err
		}
	}

	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(v)
}

// CurrentUser returns the signed-in user's profile.
func (s *SpotifyClient) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.getJSON(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlist returns the ownership and visibility fields of a playlist.
func (s *SpotifyClient) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var pl SpotifyPlaylist
	q := url.Values{"fields": {"id,name,public,collaborative,owner(id,display_name)"}}
	if err := s.getJSON(ctx, "/playlists/"+url.PathEscape(playlistID), q, &pl); err != nil {
		return nil, err
	}
	return &pl, nil
}

// AlbumTracks returns every track of albumID in album order.
func (s *SpotifyClient) AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	if albumID == "" {
		return nil, fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}

	var tracks []models.Track
	for offset := 0; ; offset += albumTracksPage {
		q := url.Values{
			"limit":  {strconv.Itoa(albumTracksPage)},
			"offset": {strconv.Itoa(offset)},
		}

		var page trackPage
		if err := s.getJSON(ctx, "/albums/"+url.PathEscape(albumID)+"/tracks", q, &page); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("%w: album %s", shared.ErrAlbumNotFound, albumID)
			}
			return nil, err
		}

		for _, t := range page.Items {
			tracks = append(tracks, models.Track{
				ID:          t.ID,
				URI:         t.URI,
				Name:        t.Name,
				DiscNumber:  t.DiscNumber,
				TrackNumber: t.TrackNumber,
			})
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
	}
	return tracks, nil
}
