package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/services"
	"github.com/desertthunder/discx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	discogsBaseURL = "https://api.discogs.com"
	discogsPerPage = 5

	// DiscogsIDPrefix marks release ids synthesized from Discogs results.
	DiscogsIDPrefix = "discogs:"
)

// flexStrings decodes either a JSON string or an array of strings.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*f = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*f = flexStrings{one}
	return nil
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// DiscogsResult is one database search hit.
type DiscogsResult struct {
	ID      int         `json:"id"`
	Title   string      `json:"title"`
	Year    flexString  `json:"year"`
	Label   flexStrings `json:"label"`
	CatNo   string      `json:"catno"`
	Barcode flexStrings `json:"barcode"`
}

// Release converts the hit into a catalog release. Discogs titles read "Artist - Title".
func (r DiscogsResult) Release() models.Release {
	rel := models.Release{
		ID:    fmt.Sprintf("%s%d", DiscogsIDPrefix, r.ID),
		Title: strings.TrimSpace(r.Title),
		Date:  string(r.Year),
	}
	if artist, title, ok := strings.Cut(r.Title, " - "); ok {
		rel.ArtistCredit = strings.TrimSpace(artist)
		rel.Title = strings.TrimSpace(title)
	}
	if len(r.Label) > 0 {
		rel.Label = r.Label[0]
	}
	if len(r.Barcode) > 0 {
		rel.Barcode = r.Barcode[0]
	}
	return rel
}

type discogsSearchResponse struct {
	Results []DiscogsResult `json:"results"`
}

// DiscogsClient queries the Discogs database search.
type DiscogsClient struct {
	client
	token string
}

// NewDiscogsClient creates a client authenticating with a personal access token.
func NewDiscogsClient(token string, opts Options) *DiscogsClient {
	if opts.BaseURL == "" {
		opts.BaseURL = discogsBaseURL
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Second), 2)
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache(0, 0)
	}
	logger := shared.WithLogger(opts.Logger, "service", "discogs")

	return &DiscogsClient{
		client: client{
			api:     services.NewAPIService(opts.BaseURL, opts.HTTPClient, logger).WithUserAgent(opts.UserAgent),
			limiter: opts.Limiter,
			cache:   opts.Cache,
			logger:  logger,
		},
		token: token,
	}
}

// Configured reports whether a token is set; Discogs rejects anonymous searches.
func (d *DiscogsClient) Configured() bool {
	return d != nil && d.token != ""
}

// SearchByBarcode returns up to five releases for barcode.
func (d *DiscogsClient) SearchByBarcode(ctx context.Context, barcode string) ([]models.Release, error) {
	if !d.Configured() {
		return nil, fmt.Errorf("%w: discogs token", shared.ErrMissingCredentials)
	}

	q := url.Values{
		"barcode":  {barcode},
		"type":     {"release"},
		"per_page": {fmt.Sprint(discogsPerPage)},
	}
	header := http.Header{"Authorization": {"Discogs token=" + d.token}}

	return d.fetchReleases(ctx, cacheKey("/database/search", q), func() ([]models.Release, error) {
		var resp discogsSearchResponse
		if err := d.api.GetJSON(ctx, "/database/search", q, header, &resp); err != nil {
			return nil, err
		}
		out := make([]models.Release, 0, len(resp.Results))
		for _, r := range resp.Results {
			out = append(out, r.Release())
		}
		return out, nil
	})
}
