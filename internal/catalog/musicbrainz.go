package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/services"
	"github.com/desertthunder/discx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	musicBrainzBaseURL = "https://musicbrainz.org/ws/2"
	coverArtBaseURL    = "https://coverartarchive.org"

	barcodeLimit = 5
	searchLimit  = 10
)

type mbArtistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

type mbLabelInfo struct {
	CatalogNumber string `json:"catalog-number"`
	Label         *struct {
		Name string `json:"name"`
	} `json:"label"`
}

type mbRelease struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Date         string           `json:"date"`
	Barcode      string           `json:"barcode"`
	Country      string           `json:"country"`
	ArtistCredit []mbArtistCredit `json:"artist-credit"`
	LabelInfo    []mbLabelInfo    `json:"label-info"`
}

type mbSearchResponse struct {
	Releases []mbRelease `json:"releases"`
}

func (r mbRelease) model() models.Release {
	rel := models.Release{ID: r.ID, Title: r.Title, Date: r.Date, Barcode: r.Barcode, Country: r.Country}
	if len(r.ArtistCredit) > 0 {
		rel.ArtistCredit = r.ArtistCredit[0].Artist.Name
		if rel.ArtistCredit == "" {
			rel.ArtistCredit = r.ArtistCredit[0].Name
		}
	}
	if len(r.LabelInfo) > 0 && r.LabelInfo[0].Label != nil {
		rel.Label = r.LabelInfo[0].Label.Name
	}
	return rel
}

// MusicBrainzClient queries the MusicBrainz web service.
type MusicBrainzClient struct {
	client
}

// NewMusicBrainzClient creates a client limited to one request per second unless opts says otherwise.
func NewMusicBrainzClient(opts Options) *MusicBrainzClient {
	if opts.BaseURL == "" {
		opts.BaseURL = musicBrainzBaseURL
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache(0, 0)
	}
	logger := shared.WithLogger(opts.Logger, "service", "musicbrainz")

	return &MusicBrainzClient{client{
		api:     services.NewAPIService(opts.BaseURL, opts.HTTPClient, logger).WithUserAgent(opts.UserAgent),
		limiter: opts.Limiter,
		cache:   opts.Cache,
		logger:  logger,
	}}
}

// ReleaseQuery holds the fields a text search can use. Empty fields are skipped.
type ReleaseQuery struct {
	Artist        string
	Album         string
	CatalogNumber string
}

// luceneQuote quotes a term for the MusicBrainz search syntax.
func luceneQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// String renders the query as field terms joined with AND, or "" when there are none.
func (q ReleaseQuery) String() string {
	var terms []string
	if a := strings.TrimSpace(q.Artist); a != "" {
		terms = append(terms, "artist:"+luceneQuote(a))
	}
	if a := strings.TrimSpace(q.Album); a != "" {
		terms = append(terms, "release:"+luceneQuote(a))
	}
	if c := strings.TrimSpace(q.CatalogNumber); c != "" {
		terms = append(terms, "catno:"+luceneQuote(c))
	}
	return strings.Join(terms, " AND ")
}

func (m *MusicBrainzClient) search(ctx context.Context, query string, limit int) ([]models.Release, error) {
	q := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {fmt.Sprint(limit)},
	}
	return m.fetchReleases(ctx, cacheKey("/release", q), func() ([]models.Release, error) {
		var resp mbSearchResponse
		if err := m.api.GetJSON(ctx, "/release", q, nil, &resp); err != nil {
			return nil, err
		}
		out := make([]models.Release, 0, len(resp.Releases))
		for _, r := range resp.Releases {
			out = append(out, r.model())
		}
		return out, nil
	})
}

// ReleaseByBarcode returns up to five releases carrying barcode, in MusicBrainz score order.
func (m *MusicBrainzClient) ReleaseByBarcode(ctx context.Context, barcode string) ([]models.Release, error) {
	if strings.TrimSpace(barcode) == "" {
		return nil, fmt.Errorf("%w: barcode", shared.ErrMissingArgument)
	}
	return m.search(ctx, "barcode:"+barcode, barcodeLimit)
}

// SearchRelease runs a field search. A query with no fields returns no results without a request.
func (m *MusicBrainzClient) SearchRelease(ctx context.Context, query ReleaseQuery) ([]models.Release, error) {
	s := query.String()
	if s == "" {
		return nil, nil
	}
	return m.search(ctx, s, searchLimit)
}

// Release fetches a single release by MBID.
func (m *MusicBrainzClient) Release(ctx context.Context, mbid string) (*models.Release, error) {
	if mbid == "" {
		return nil, fmt.Errorf("%w: release id", shared.ErrMissingArgument)
	}

	path := "/release/" + url.PathEscape(mbid)
	q := url.Values{"inc": {"artist-credits labels"}, "fmt": {"json"}}
	releases, err := m.fetchReleases(ctx, cacheKey(path, q), func() ([]models.Release, error) {
		var r mbRelease
		if err := m.api.GetJSON(ctx, path, q, nil, &r); err != nil {
			return nil, err
		}
		return []models.Release{r.model()}, nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: release %s", shared.ErrNotFound, mbid)
		}
		return nil, err
	}
	return &releases[0], nil
}

// CoverThumbURL returns the 250px front cover URL for a release.
func CoverThumbURL(mbid string) string {
	return coverArtBaseURL + "/release/" + mbid + "/front-250"
}
