package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/services"
	"golang.org/x/time/rate"
)

// Options configures a catalog client.
type Options struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *log.Logger
	Cache      Cache
	// Limiter throttles outbound calls; nil uses the client's default rate.
	Limiter *rate.Limiter
}

// client is the shared plumbing of both catalog clients.
type client struct {
	api     *services.APIService
	limiter *rate.Limiter
	cache   Cache
	logger  *log.Logger
}

// fetchReleases returns cached releases for key or runs fetch, caching a successful result.
func (c *client) fetchReleases(ctx context.Context, key string, fetch func() ([]models.Release, error)) ([]models.Release, error) {
	if data, ok := c.cache.Get(key); ok {
		var cached []models.Release
		if err := json.Unmarshal(data, &cached); err == nil {
			c.logger.Debug("catalog cache hit", "key", key)
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	releases, err := fetch()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(releases); err == nil {
		c.cache.Set(key, data)
	}
	return releases, nil
}

// cacheKey is the request signature used to memoize a call.
func cacheKey(path string, q url.Values) string {
	return path + "?" + q.Encode()
}
