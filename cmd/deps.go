package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/discx/internal/auth"
	"github.com/desertthunder/discx/internal/catalog"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/photos"
	"github.com/desertthunder/discx/internal/repositories"
	"github.com/desertthunder/discx/internal/resolver"
	"github.com/desertthunder/discx/internal/services"
	"github.com/desertthunder/discx/internal/shared"
	"github.com/desertthunder/discx/internal/tasks"
	"github.com/desertthunder/discx/internal/vision"
)

// deps are the services behind every command, opened on first use.
type deps struct {
	db       *sql.DB
	jobs     *repositories.JobRepository
	settings settingsSource
	auth     *auth.Manager
	spotify  *services.SpotifyClient
	photos   *photos.Cache
	resolver *resolver.Resolver
	runner   *tasks.Runner
	trigger  *tasks.IntervalTrigger
}

// settingsSource loads stored settings, falling back to the configured playlist when none is stored.
type settingsSource struct {
	repo     *repositories.SettingsRepository
	playlist string
}

func (s settingsSource) Load() (models.Settings, error) {
	settings, err := s.repo.Load()
	if err != nil {
		return settings, err
	}
	if settings.PlaylistID == "" {
		settings.PlaylistID = s.playlist
	}
	return settings, nil
}

func (s settingsSource) Save(settings models.Settings) error {
	return s.repo.Save(settings)
}

// open wires the database, auth session, catalog clients, resolver and job runner.
func (r *Runner) open(ctx context.Context) (*deps, error) {
	if r.deps != nil {
		return r.deps, nil
	}
	c := r.config

	db, err := shared.OpenDatabase(c.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	d := &deps{
		db:       db,
		jobs:     repositories.NewJobRepository(db),
		settings: settingsSource{repo: repositories.NewSettingsRepository(db), playlist: c.Jobs.PlaylistID},
	}

	if err := r.openAuth(d); err != nil {
		db.Close()
		return nil, err
	}

	d.spotify = services.NewSpotifyClient(services.SpotifyOptions{
		BaseURL:             c.Spotify.APIURL,
		HTTPClient:          r.httpClient,
		Tokens:              d.auth,
		Logger:              r.logger,
		MaxRateLimitRetries: c.Jobs.MaxRateLimitRetries,
		OnMissingScopes: func(scopes []string) {
			r.logger.Warn("run 'discx auth login' to grant missing permissions", "scopes", strings.Join(scopes, " "))
		},
	})

	if d.photos, err = r.openPhotos(ctx); err != nil {
		db.Close()
		return nil, err
	}

	cache := catalog.NewMemoryCache(c.Catalog.CacheSize, c.Catalog.CacheTTL.Duration)
	catalogOpts := catalog.Options{
		UserAgent:  c.Catalog.UserAgent,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
		Cache:      cache,
	}
	mbOpts := catalogOpts
	mbOpts.BaseURL = c.Catalog.MusicBrainzURL

	opts := resolver.Options{
		Catalog:       catalog.NewMusicBrainzClient(mbOpts),
		Streaming:     d.spotify,
		Photos:        d.photos,
		Fingerprinter: vision.DHasher{},
		Fingerprints:  vision.NewFingerprintStore(repositories.NewFingerprintRepository(db)),
		Logger:        r.logger,
	}
	if c.Catalog.DiscogsToken != "" {
		discogsOpts := catalogOpts
		discogsOpts.BaseURL = c.Catalog.DiscogsURL
		opts.Marketplace = catalog.NewDiscogsClient(c.Catalog.DiscogsToken, discogsOpts)
	}
	if c.Vision.OCRURL != "" {
		opts.OCR = vision.NewProxyOCR(c.Vision.OCRURL, r.httpClient, r.logger)
	}
	if d.resolver, err = resolver.New(opts); err != nil {
		db.Close()
		return nil, err
	}

	d.runner, err = tasks.NewRunner(tasks.Options{
		Jobs:      d.jobs,
		Dedupe:    repositories.NewDedupeRepository(db),
		Settings:  d.settings,
		Resolver:  d.resolver,
		Streaming: d.spotify,
		Photos:    d.photos,
		Schedule:  func() { d.trigger.Request() },
		Workers:   c.Jobs.Workers,
		Logger:    r.logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	d.trigger = tasks.NewIntervalTrigger(c.Jobs.ResumeInterval.Duration, d.runner.Resume, r.logger)

	if err := d.runner.Reload(); err != nil {
		db.Close()
		return nil, err
	}

	r.deps = d
	return d, nil
}

func (r *Runner) openAuth(d *deps) error {
	c := r.config

	var store auth.SecretStore
	if c.Secrets.Key != "" {
		secrets, err := repositories.NewSecretRepository(d.db, c.Secrets.Key)
		if err != nil {
			return err
		}
		store = secrets
	} else {
		r.logger.Warn("no secrets key configured, the session will not outlive this process")
		store = auth.NewMemoryStore()
	}

	manager, err := auth.NewManager(auth.Options{
		ClientID:    c.Spotify.ClientID,
		RedirectURI: c.Spotify.RedirectURI,
		Scopes:      c.Spotify.Scopes,
		AccountsURL: c.Spotify.AccountsURL,
		HTTPClient:  r.httpClient,
		Store:       store,
		Agent: &auth.LoopbackAgent{
			RedirectURI: c.Spotify.RedirectURI,
			Out:         r.output,
			Logger:      r.logger,
		},
		Logger: r.logger,
	})
	if err != nil {
		return err
	}
	if err := manager.Restore(); err != nil {
		r.logger.Warn("failed to restore session", "error", err)
	}
	d.auth = manager
	return nil
}

func (r *Runner) openPhotos(ctx context.Context) (*photos.Cache, error) {
	c := r.config.Photos

	var backing photos.Backing
	switch {
	case c.MinioEndpoint != "":
		m, err := photos.NewMinioBacking(ctx, photos.MinioOptions{
			Endpoint:  c.MinioEndpoint,
			Bucket:    c.MinioBucket,
			AccessKey: c.MinioAccessKey,
			SecretKey: c.MinioSecretKey,
			UseSSL:    c.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		backing = m
	case c.Dir != "":
		dir, err := photos.NewDirBacking(c.Dir)
		if err != nil {
			return nil, err
		}
		backing = dir
	}
	return photos.NewCache(backing, r.logger), nil
}

// Close waits for background work and closes the database.
func (r *Runner) Close() error {
	if r.deps == nil {
		return nil
	}
	r.deps.resolver.Wait()
	err := r.deps.db.Close()
	r.deps = nil
	return err
}
