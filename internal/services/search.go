package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
)

const (
	// MaxQueryLength is the longest search query Spotify accepts.
	MaxQueryLength = 250

	searchLimit = 5

	titleWeight  = 0.6
	artistWeight = 0.4
)

// searchQueries returns the query candidates from most to least specific, without duplicates.
func searchQueries(title, artist string) []string {
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)

	var candidates []string
	if artist != "" {
		candidates = append(candidates,
			fmt.Sprintf(`album:"%s" artist:"%s"`, title, artist),
			fmt.Sprintf(`album:"%s"`, title),
			title+" "+artist,
		)
	} else {
		candidates = append(candidates, fmt.Sprintf(`album:"%s"`, title))
	}
	candidates = append(candidates, title)

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, q := range candidates {
		q = truncateRunes(q, MaxQueryLength)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// isQueryTooLong reports whether err is Spotify rejecting the query for its length.
func isQueryTooLong(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	return strings.Contains(body, "too long") || strings.Contains(body, "exceeds maximum length")
}

// SearchAlbum returns the best-matching album for title and artist in market, or nil when nothing matches.
//
// Query candidates go from most to least specific. The next candidate is only tried when Spotify
// rejects the current one as too long; an empty result is final.
func (s *SpotifyClient) SearchAlbum(ctx context.Context, title, artist, market string) (*models.Album, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: album title", shared.ErrMissingArgument)
	}

	var lastErr error
	for _, q := range searchQueries(title, artist) {
		query := url.Values{
			"type":  {"album"},
			"q":     {q},
			"limit": {strconv.Itoa(searchLimit)},
		}
		if market != "" {
			query.Set("market", market)
		}

		var resp albumSearchResponse
		err := s.getJSON(ctx, "/search", query, &resp)
		if isQueryTooLong(err) {
			s.logger.Debug("search query rejected as too long", "query", q)
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		best := rankAlbums(resp.Albums.Items, title, artist)
		if best == nil {
			s.logger.Debug("album search returned no results", "query", q)
			return nil, nil
		}
		album := best.model()
		return &album, nil
	}
	return nil, lastErr
}

// rankAlbums picks the album most similar to title and artist. The first result wins ties.
func rankAlbums(items []SpotifyAlbum, title, artist string) *SpotifyAlbum {
	if len(items) == 0 {
		return nil
	}

	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = false

	wantTitle, wantArtist := shared.NormalizeKey(title), shared.NormalizeKey(artist)

	bestIdx, bestScore := 0, -1.0
	for i, item := range items {
		score := strutil.Similarity(wantTitle, shared.NormalizeKey(item.Name), jw)
		if wantArtist != "" {
			score = titleWeight*score + artistWeight*strutil.Similarity(wantArtist, shared.NormalizeKey(item.model().Artist()), jw)
		}
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return &items[bestIdx]
}
