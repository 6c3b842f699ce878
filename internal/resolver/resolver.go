package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/catalog"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
	"github.com/desertthunder/discx/internal/vision"
)

// candidateLimit is how many text-search results are offered for confirmation.
const candidateLimit = 3

// placeholderScore is the confidence given to every text-search candidate.
const placeholderScore = 0.5

// ReleaseCatalog is the primary catalog (MusicBrainz).
type ReleaseCatalog interface {
	ReleaseByBarcode(ctx context.Context, barcode string) ([]models.Release, error)
	SearchRelease(ctx context.Context, query catalog.ReleaseQuery) ([]models.Release, error)
	Release(ctx context.Context, id string) (*models.Release, error)
}

// Marketplace is the secondary barcode source (Discogs).
type Marketplace interface {
	SearchByBarcode(ctx context.Context, barcode string) ([]models.Release, error)
}

// AlbumSearcher finds the streaming album for a release.
type AlbumSearcher interface {
	SearchAlbum(ctx context.Context, title, artist, market string) (*models.Album, error)
}

// PhotoSource returns the bytes of a job's photo.
type PhotoSource interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// FingerprintIndex stores and searches release fingerprints.
type FingerprintIndex interface {
	Store(releaseID string, hash []byte) error
	NearestNeighbor(hash []byte) (releaseID string, distance float64, ok bool, err error)
}

// Options wires a [Resolver]. Catalog and Streaming are required; the rest switch paths off when nil.
type Options struct {
	Catalog       ReleaseCatalog
	Marketplace   Marketplace
	Streaming     AlbumSearcher
	Photos        PhotoSource
	OCR           vision.OCR
	Fingerprinter vision.Fingerprinter
	Fingerprints  FingerprintIndex
	Logger        *log.Logger
	Now           func() time.Time
}

// Resolver implements the barcode, text and visual matching pipeline.
type Resolver struct {
	catalog       ReleaseCatalog
	marketplace   Marketplace
	streaming     AlbumSearcher
	photos        PhotoSource
	ocr           vision.OCR
	fingerprinter vision.Fingerprinter
	fingerprints  FingerprintIndex
	logger        *log.Logger
	now           func() time.Time

	background sync.WaitGroup
}

// New creates a resolver.
func New(opts Options) (*Resolver, error) {
	if opts.Catalog == nil || opts.Streaming == nil {
		return nil, fmt.Errorf("%w: resolver needs a release catalog and a streaming client", shared.ErrMissingConfig)
	}
	r := &Resolver{
		catalog:       opts.Catalog,
		marketplace:   opts.Marketplace,
		streaming:     opts.Streaming,
		photos:        opts.Photos,
		ocr:           opts.OCR,
		fingerprinter: opts.Fingerprinter,
		fingerprints:  opts.Fingerprints,
		logger:        shared.WithLogger(opts.Logger, "component", "resolver"),
		now:           opts.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Resolve runs the matching paths against job and returns the updated job.
//
// On success the job is either in matching (enriched) or needsConfirm. On failure the returned
// job still carries any OCR text gathered along the way.
func (r *Resolver) Resolve(ctx context.Context, job models.Job, settings models.Settings) (models.Job, error) {
	job = job.Clone()
	logger := r.logger.With("job", job.ID)
	photo := r.photoLoader(job.PhotoKey, logger)

	if strings.TrimSpace(job.Barcode) != "" {
		matched, err := r.resolveBarcode(ctx, &job, settings, logger)
		if err != nil {
			return job, err
		}
		if matched {
			return r.touch(job), nil
		}
	}

	if len(job.OCRText) == 0 && r.ocr != nil {
		if data := photo(ctx); data != nil {
			lines, err := r.ocr.ExtractText(ctx, data)
			if err != nil {
				logger.Warn("text extraction failed, continuing without text", "error", err)
			} else {
				job.OCRText = lines
			}
		}
	}

	matched, err := r.resolveText(ctx, &job, settings, logger)
	if err != nil {
		return r.touch(job), err
	}
	if matched {
		return r.touch(job), nil
	}

	if r.resolveVisual(ctx, &job, settings, photo(ctx), logger) {
		return r.touch(job), nil
	}

	return r.touch(job), fmt.Errorf("%w for job %s", shared.ErrNoConfidentMatch, job.ID)
}

func (r *Resolver) resolveBarcode(ctx context.Context, job *models.Job, settings models.Settings, logger *log.Logger) (bool, error) {
	for _, code := range BarcodeCandidates(job.Barcode) {
		releases, err := r.catalog.ReleaseByBarcode(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			logger.Warn("barcode lookup failed", "barcode", code, "error", err)
		}
		if len(releases) > 0 {
			logger.Info("barcode matched", "barcode", code, "release", releases[0].ID)
			return true, r.enrich(ctx, job, releases[0], settings)
		}

		if r.marketplace == nil {
			continue
		}
		found, err := r.marketplace.SearchByBarcode(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			logger.Warn("marketplace barcode lookup failed", "barcode", code, "error", err)
			continue
		}
		if len(found) > 0 {
			logger.Info("barcode matched in marketplace", "barcode", code, "release", found[0].ID)
			return true, r.enrich(ctx, job, found[0], settings)
		}
	}
	return false, nil
}

func (r *Resolver) resolveText(ctx context.Context, job *models.Job, settings models.Settings, logger *log.Logger) (bool, error) {
	parsed := ParseCandidate(job.OCRText)
	if parsed.Empty() {
		return false, nil
	}

	releases, err := r.catalog.SearchRelease(ctx, catalog.ReleaseQuery{
		Artist:        parsed.Artist,
		Album:         parsed.Album,
		CatalogNumber: parsed.CatalogNumber,
	})
	if err != nil {
		return false, fmt.Errorf("text search: %w", err)
	}
	if len(releases) == 0 {
		return false, nil
	}

	top := releases[:min(candidateLimit, len(releases))]
	if len(top) == 1 {
		logger.Info("text matched", "release", top[0].ID)
		return true, r.enrich(ctx, job, top[0], settings)
	}

	job.Candidates = make([]models.AlbumMatch, 0, len(top))
	for _, rel := range top {
		job.Candidates = append(job.Candidates, matchFor(rel))
	}
	job.ChosenMBID = ""
	job.ChosenSpotifyAlbumID = ""
	job.State = models.JobNeedsConfirm
	logger.Info("text search is ambiguous", "candidates", len(job.Candidates))
	return true, nil
}

func (r *Resolver) resolveVisual(ctx context.Context, job *models.Job, settings models.Settings, photo []byte, logger *log.Logger) bool {
	if r.fingerprinter == nil || r.fingerprints == nil || photo == nil {
		return false
	}

	hash, err := r.fingerprinter.Fingerprint(ctx, photo)
	if err != nil {
		logger.Warn("fingerprinting failed, continuing without visual match", "error", err)
		return false
	}
	id, distance, ok, err := r.fingerprints.NearestNeighbor(hash)
	if err != nil {
		logger.Warn("fingerprint lookup failed", "error", err)
		return false
	}
	if !ok || distance >= settings.FeatureThreshold {
		logger.Debug("no visual match", "distance", distance, "threshold", settings.FeatureThreshold)
		return false
	}

	logger.Info("visual match needs confirmation", "release", id, "distance", distance)
	job.ChosenMBID = id
	job.ChosenSpotifyAlbumID = ""
	job.Candidates = nil
	job.State = models.JobNeedsConfirm
	return true
}

// Confirm resolves a job waiting for a decision to releaseID, one of its candidates or any
// catalog release id. An empty releaseID accepts the tentative visual match.
func (r *Resolver) Confirm(ctx context.Context, job models.Job, releaseID string, settings models.Settings) (models.Job, error) {
	job = job.Clone()
	if releaseID == "" {
		releaseID = job.ChosenMBID
	}
	if releaseID == "" {
		return job, fmt.Errorf("%w: release id to confirm for job %s", shared.ErrMissingArgument, job.ID)
	}

	var release *models.Release
	for _, c := range job.Candidates {
		if c.ReleaseID == releaseID {
			release = &models.Release{ID: c.ReleaseID, Title: c.Title, ArtistCredit: c.Artist, Date: c.Year, Label: c.Label}
			break
		}
	}
	if release == nil {
		found, err := r.catalog.Release(ctx, releaseID)
		if err != nil {
			return job, fmt.Errorf("failed to look up release %s: %w", releaseID, err)
		}
		release = found
	}

	if err := r.enrich(ctx, &job, *release, settings); err != nil {
		return r.touch(job), err
	}
	r.logger.Info("match confirmed", "job", job.ID, "release", release.ID)
	return r.touch(job), nil
}

// enrich finds the streaming album for release and records both on job.
// The job's photo is fingerprinted in the background for future visual matches.
func (r *Resolver) enrich(ctx context.Context, job *models.Job, release models.Release, settings models.Settings) error {
	album, err := r.streaming.SearchAlbum(ctx, release.Title, release.ArtistCredit, settings.Market)
	if err != nil {
		return fmt.Errorf("album search for %q by %q: %w", release.Title, release.ArtistCredit, err)
	}
	if album == nil {
		return fmt.Errorf("%w: %q by %q", shared.ErrAlbumNotFound, release.Title, release.ArtistCredit)
	}

	job.ChosenMBID = release.ID
	job.ChosenSpotifyAlbumID = album.ID
	job.Candidates = nil
	job.State = models.JobMatching

	r.rememberFingerprint(job.ID, job.PhotoKey, release.ID)
	return nil
}

func (r *Resolver) rememberFingerprint(jobID, photoKey, releaseID string) {
	if r.fingerprinter == nil || r.fingerprints == nil || r.photos == nil || photoKey == "" {
		return
	}

	r.background.Add(1)
	go func() {
		defer r.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger := r.logger.With("job", jobID, "release", releaseID)
		data, err := r.photos.Get(ctx, photoKey)
		if err != nil {
			logger.Warn("fingerprint skipped, photo unavailable", "error", err)
			return
		}
		hash, err := r.fingerprinter.Fingerprint(ctx, data)
		if err != nil {
			logger.Warn("fingerprint failed", "error", err)
			return
		}
		if err := r.fingerprints.Store(releaseID, hash); err != nil {
			logger.Warn("failed to store fingerprint", "error", err)
			return
		}
		logger.Debug("fingerprint stored")
	}()
}

// Wait blocks until background fingerprinting has finished.
func (r *Resolver) Wait() {
	r.background.Wait()
}

// photoLoader fetches the job's photo at most once per resolution.
func (r *Resolver) photoLoader(key string, logger *log.Logger) func(context.Context) []byte {
	var (
		loaded bool
		data   []byte
	)
	return func(ctx context.Context) []byte {
		if loaded {
			return data
		}
		loaded = true
		if r.photos == nil || key == "" {
			return nil
		}
		d, err := r.photos.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				logger.Warn("failed to load photo", "key", key, "error", err)
			}
			return nil
		}
		data = d
		return data
	}
}

func (r *Resolver) touch(job models.Job) models.Job {
	job.UpdatedAt = r.now()
	return job
}

func matchFor(rel models.Release) models.AlbumMatch {
	m := models.AlbumMatch{
		ID:        shared.GenerateID(),
		ReleaseID: rel.ID,
		Title:     rel.Title,
		Artist:    rel.ArtistCredit,
		Label:     rel.Label,
		Score:     placeholderScore,
	}
	if len(rel.Date) >= 4 {
		m.Year = rel.Date[:4]
	}
	if !strings.HasPrefix(rel.ID, catalog.DiscogsIDPrefix) {
		m.ArtworkURL = catalog.CoverThumbURL(rel.ID)
	}
	return m
}
