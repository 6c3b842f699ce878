package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

var playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// NormalizePlaylistID extracts the playlist id from a bare id, a spotify:playlist: URI
// (including the legacy spotify:user:<u>:playlist:<id> form) or an open.spotify.com URL.
// The second result is false when no valid id can be found.
func NormalizePlaylistID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	id := raw
	switch {
	case strings.HasPrefix(raw, "spotify:"):
		parts := strings.Split(raw, ":")
		idx := slices.Index(parts, "playlist")
		if idx < 0 || idx+1 >= len(parts) {
			return "", false
		}
		id = parts[idx+1]
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil || !strings.HasSuffix(u.Hostname(), "spotify.com") {
			return "", false
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		idx := slices.Index(segments, "playlist")
		if idx < 0 || idx+1 >= len(segments) {
			return "", false
		}
		id = segments[idx+1]
	}

	if !playlistIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// PartialWriteError reports a write that failed after some chunks were accepted.
type PartialWriteError struct {
	Written []string
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("playlist write stopped after %d tracks: %v", len(e.Written), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// WrittenBeforeFailure returns the URIs a failed [SpotifyClient.AddTracks] call did write.
func WrittenBeforeFailure(err error) []string {
	var pw *PartialWriteError
	if errors.As(err, &pw) {
		return pw.Written
	}
	return nil
}

// playlistAccess is the write eligibility of one playlist for the current user.
type playlistAccess struct {
	playlist      *SpotifyPlaylist
	userID        string
	writable      bool
	requiredScope string
}

func (s *SpotifyClient) writeAccess(ctx context.Context, playlistID string) (*playlistAccess, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	access := &playlistAccess{
		playlist:      pl,
		userID:        user.ID,
		writable:      pl.Collaborative || pl.Owner.ID == user.ID,
		requiredScope: spotifyauth.ScopePlaylistModifyPrivate,
	}
	if pl.Public != nil && *pl.Public && !pl.Collaborative {
		access.requiredScope = spotifyauth.ScopePlaylistModifyPublic
	}
	return access, nil
}

func (a *playlistAccess) ownershipError() error {
	return shared.WrapErr(shared.ErrPlaylistNotWritable,
		"playlist %s is owned by %s and is not collaborative; signed in as %s",
		a.playlist.ID, a.playlist.Owner.ID, a.userID)
}

// missingKnownScopes returns required scopes absent from the session. Unknown grants block nothing.
func (s *SpotifyClient) missingKnownScopes(required ...string) []string {
	granted := s.tokens.GrantedScopes()
	if len(granted) == 0 {
		return nil
	}
	return subtractScopes(required, granted)
}

func subtractScopes(required, granted []string) []string {
	var missing []string
	for _, scope := range required {
		if !slices.Contains(granted, scope) {
			missing = append(missing, scope)
		}
	}
	return missing
}

// parseScopeHeader splits a scope header on spaces or commas.
func parseScopeHeader(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' })
}

func (s *SpotifyClient) flagMissingScopes(missing []string) {
	s.tokens.MarkNeedsReconsent(missing...)
	if s.onMissingScopes != nil {
		s.onMissingScopes(slices.Clone(missing))
	}
}

func missingScopesError(missing []string) error {
	return shared.WrapErr(shared.ErrPermissionsInsufficient,
		"Missing required Spotify scope(s): %s. Sign in again to force Spotify's consent dialog and approve them",
		strings.Join(missing, ", "))
}

// AddTracks appends uris to playlistID in chunks of [AddTracksChunk].
//
// The id must already be normalized. Write eligibility and granted scopes are checked before the
// first write. Rate-limited chunks wait for Retry-After and retry; a 403 triggers one forced token
// refresh and re-check before it is reported as missing permissions. When a later chunk fails, the
// error is a [*PartialWriteError] listing what was written.
func (s *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if normalized, ok := NormalizePlaylistID(playlistID); !ok || normalized != playlistID {
		return fmt.Errorf("%w: %q", shared.ErrInvalidPlaylistID, playlistID)
	}
	if len(uris) == 0 {
		return nil
	}

	access, err := s.writeAccess(ctx, playlistID)
	if err != nil {
		return err
	}
	if !access.writable {
		return access.ownershipError()
	}
	if missing := s.missingKnownScopes(access.requiredScope); len(missing) > 0 {
		s.logger.Warn("blocking playlist write, scopes missing", "playlist", playlistID, "missing", missing)
		s.flagMissingScopes(missing)
		return missingScopesError(missing)
	}

	var written []string
	for chunk := range slices.Chunk(uris, AddTracksChunk) {
		if access, err = s.writeChunk(ctx, playlistID, chunk, access); err != nil {
			if len(written) > 0 {
				return &PartialWriteError{Written: written, Err: err}
			}
			return err
		}
		written = append(written, chunk...)
		s.logger.Debug("wrote tracks", "playlist", playlistID, "count", len(chunk), "total", len(written))
	}
	return nil
}

// writeChunk posts one chunk and returns the access state it ended with.
func (s *SpotifyClient) writeChunk(ctx context.Context, playlistID string, chunk []string, access *playlistAccess) (*playlistAccess, error) {
	req := Request{
		Method: http.MethodPost,
		Path:   "/playlists/" + url.PathEscape(playlistID) + "/tracks",
		JSON:   map[string][]string{"uris": chunk},
	}

	var (
		waits          int
		refreshed      bool
		transientRetry bool
	)
	for {
		resp, err := s.call(ctx, req)
		if err != nil {
			if !transientRetry && shared.IsTransient(err) {
				transientRetry = true
				s.logger.Warn("transient failure writing tracks, retrying once", "playlist", playlistID, "err", err, "delay", transientRetryDelay)
				if err := s.sleep(ctx, transientRetryDelay); err != nil {
					return access, err
				}
				continue
			}
			return access, err
		}
		req.Header = nil

		switch {
		case resp.OK():
			return access, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			wait, ok := retryAfter(resp.Headers)
			if !ok || waits >= s.maxRateLimit {
				return access, resp.Err()
			}
			waits++
			s.logger.Info("rate limited, waiting", "playlist", playlistID, "retry_after", wait, "attempt", waits)
			if err := s.sleep(ctx, wait); err != nil {
				return access, err
			}

		case resp.StatusCode == http.StatusForbidden:
			if refreshed {
				return access, s.forbidden(resp, access)
			}
			refreshed = true
			if _, err := s.tokens.ForceRefresh(ctx); err != nil {
				s.logger.Warn("token refresh after 403 failed", "playlist", playlistID, "err", err)
				return access, s.forbidden(resp, access)
			}
			again, err := s.writeAccess(ctx, playlistID)
			if err != nil {
				return access, err
			}
			if !again.writable {
				return again, again.ownershipError()
			}
			access = again

		default:
			return access, resp.Err()
		}
	}
}

// forbidden turns a persistent 403 into a missing-permissions error.
// Scopes granted according to the x-oauth-scopes header win over the session's view.
func (s *SpotifyClient) forbidden(resp *APIResponse, access *playlistAccess) error {
	if !access.writable {
		return access.ownershipError()
	}

	required := []string{access.requiredScope}
	var missing []string
	if header := resp.Headers.Get("X-Oauth-Scopes"); header != "" {
		missing = subtractScopes(required, parseScopeHeader(header))
	} else {
		missing = subtractScopes(required, s.tokens.GrantedScopes())
	}
	if len(missing) == 0 {
		missing = required
	}

	s.flagMissingScopes(missing)
	return fmt.Errorf("%w (%v)", missingScopesError(missing), resp.Err())
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// ProbeWriteAccess reports whether the current session could write to playlist without writing anything.
func (s *SpotifyClient) ProbeWriteAccess(ctx context.Context, playlist string) (models.WriteProbe, error) {
	id, ok := NormalizePlaylistID(playlist)
	if !ok {
		return models.WriteProbe{}, fmt.Errorf("%w: %q", shared.ErrInvalidPlaylistID, playlist)
	}

	access, err := s.writeAccess(ctx, id)
	if err != nil {
		return models.WriteProbe{}, err
	}

	missing := s.missingKnownScopes(access.requiredScope)
	probe := models.WriteProbe{
		PlaylistID:                     id,
		OwnershipOrCollaborativeAccess: access.writable,
		HasRequiredWriteScopes:         len(missing) == 0,
		MissingWriteScopes:             missing,
		CanWrite:                       access.writable && len(missing) == 0,
	}

	var details []string
	if !access.writable {
		details = append(details, fmt.Sprintf("Playlist is owned by %s and is not collaborative.", access.playlist.Owner.ID))
	}
	if len(missing) > 0 {
		details = append(details, fmt.Sprintf("Missing required Spotify scope(s): %s. Reconnect Spotify and approve these permissions.", strings.Join(missing, ", ")))
	}
	if probe.CanWrite {
		details = append(details, "Playlist is writable with the current session.")
	}
	probe.Details = strings.Join(details, " ")
	return probe, nil
}
