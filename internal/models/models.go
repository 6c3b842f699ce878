package models

import (
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Model is implemented by every entity that repositories persist.
type Model interface {
	Key() string     // Key returns the primary key of the record
	Validate() error // Validate checks the record before it is written
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Release is a catalog release, the source of truth for artist and title.
type Release struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ArtistCredit string `json:"artist_credit"`
	Date         string `json:"date,omitempty"`
	Barcode      string `json:"barcode,omitempty"`
	Label        string `json:"label,omitempty"`
	Country      string `json:"country,omitempty"`
}

// AlbumMatch is a candidate release offered for user confirmation.
type AlbumMatch struct {
	ID         string  `json:"id"`
	ReleaseID  string  `json:"release_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Year       string  `json:"year,omitempty"`
	Label      string  `json:"label,omitempty"`
	Score      float64 `json:"score"`
	ArtworkURL string  `json:"artwork_url,omitempty"`
}

// Album is a streaming-service album search result.
type Album struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	URI     string   `json:"uri"`
}

// Artist returns the album's artists joined for display and ranking.
func (a Album) Artist() string {
	return strings.Join(a.Artists, ", ")
}

// Track is a streaming-service track of an album.
type Track struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Name        string `json:"name"`
	DiscNumber  int    `json:"disc_number"`
	TrackNumber int    `json:"track_number"`
}

// DedupeEntry records that a track was written to a playlist.
type DedupeEntry struct {
	PlaylistID string
	TrackURI   string
}

// WriteProbe is the diagnostic result of checking whether a playlist can be written.
type WriteProbe struct {
	PlaylistID                     string   `json:"playlist_id"`
	OwnershipOrCollaborativeAccess bool     `json:"ownership_or_collaborative_access"`
	HasRequiredWriteScopes         bool     `json:"has_required_write_scopes"`
	MissingWriteScopes             []string `json:"missing_write_scopes"`
	CanWrite                       bool     `json:"can_write"`
	Details                        string   `json:"details"`
}

// AuthSession is the credential material for the streaming service.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	Generation   int       `json:"generation"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// SessionSkew is how long before expiry an access token stops being handed out.
const SessionSkew = 30 * time.Second

// ValidAt reports whether the access token is usable at now, with at least [SessionSkew] to spare.
func (s AuthSession) ValidAt(now time.Time) bool {
	return s.AccessToken != "" && !s.Expiry.Before(now.Add(SessionSkew))
}

// HasScope reports whether scope was granted.
func (s AuthSession) HasScope(scope string) bool {
	return slices.Contains(s.Scopes, scope)
}

// Fingerprint is a stored visual fingerprint tied to a confirmed release.
type Fingerprint struct {
	ReleaseID string
	Hash      []byte
}
