package tasks

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/services"
	"github.com/desertthunder/discx/internal/shared"
)

// JobStore persists jobs.
type JobStore interface {
	Save(job models.Job) error
	List() ([]models.Job, error)
	Delete(id string) error
}

// DedupeStore persists which tracks were added to which playlist.
type DedupeStore interface {
	Insert(entries ...models.DedupeEntry) error
	All() ([]models.DedupeEntry, error)
}

// SettingsLoader returns the current user settings.
type SettingsLoader interface {
	Load() (models.Settings, error)
}

// JobResolver matches jobs to releases and streaming albums.
type JobResolver interface {
	Resolve(ctx context.Context, job models.Job, settings models.Settings) (models.Job, error)
	Confirm(ctx context.Context, job models.Job, releaseID string, settings models.Settings) (models.Job, error)
}

// TrackWriter reads album tracks and writes them to a playlist.
type TrackWriter interface {
	AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}

// PhotoStore keeps the photos attached to jobs.
type PhotoStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Options wires a [Runner]. Jobs, Dedupe, Resolver and Streaming are required.
type Options struct {
	Jobs      JobStore
	Dedupe    DedupeStore
	Settings  SettingsLoader
	Resolver  JobResolver
	Streaming TrackWriter
	Photos    PhotoStore

	// Schedule is called after a job is enqueued to request background processing.
	Schedule func()

	// Workers is the number of jobs processed concurrently by ProcessAll. Values below 2 mean sequential.
	Workers int

	Logger *log.Logger
	Now    func() time.Time
}

// Summary counts the outcomes of one ProcessAll run.
type Summary struct {
	Processed    int
	Completed    int
	NeedsConfirm int
	Failed       int
}

// Runner owns the job list and drives each job through the pipeline.
type Runner struct {
	store     JobStore
	dedupeDB  DedupeStore
	settings  SettingsLoader
	resolver  JobResolver
	streaming TrackWriter
	photos    PhotoStore
	schedule  func()
	workers   int
	logger    *log.Logger
	now       func() time.Time

	dedupe *DedupeSet

	// processing serializes batch runs, confirmations and removals so one job has one writer.
	processing sync.Mutex

	mu          sync.RWMutex
	jobs        []models.Job
	subscribers []chan<- ProgressUpdate
}

// NewRunner creates a runner with an empty job list. Call [Runner.Reload] to load stored jobs.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Jobs == nil || opts.Dedupe == nil {
		return nil, shared.WrapErr(shared.ErrMissingConfig, "runner requires job and dedupe stores")
	}
	if opts.Resolver == nil || opts.Streaming == nil {
		return nil, shared.WrapErr(shared.ErrMissingConfig, "runner requires a resolver and a streaming client")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		store:     opts.Jobs,
		dedupeDB:  opts.Dedupe,
		settings:  opts.Settings,
		resolver:  opts.Resolver,
		streaming: opts.Streaming,
		photos:    opts.Photos,
		schedule:  opts.Schedule,
		workers:   max(opts.Workers, 1),
		logger:    shared.WithLogger(opts.Logger, "component", "runner"),
		now:       opts.Now,
		dedupe:    NewDedupeSet(),
	}, nil
}

// Subscribe registers ch for progress updates and returns a function that removes it.
//
// Updates are dropped when ch is full.
func (r *Runner) Subscribe(ch chan<- ProgressUpdate) func() {
	r.mu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.subscribers = slices.DeleteFunc(r.subscribers, func(c chan<- ProgressUpdate) bool { return c == ch })
	}
}

// sendProgress sends a progress update to every subscriber without blocking.
func (r *Runner) sendProgress(update ProgressUpdate) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
}

// Snapshot returns copies of all jobs, most recent first.
func (r *Runner) Snapshot() []models.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Job, len(r.jobs))
	for i, job := range r.jobs {
		out[i] = job.Clone()
	}
	return out
}

// Get returns a copy of the job with id.
func (r *Runner) Get(id string) (models.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return models.Job{}, false
	}
	return r.jobs[i].Clone(), true
}

// DedupeSet exposes the in-memory record of added tracks.
func (r *Runner) DedupeSet() *DedupeSet {
	return r.dedupe
}

func (r *Runner) indexOf(id string) int {
	return slices.IndexFunc(r.jobs, func(j models.Job) bool { return j.ID == id })
}

// Reload replaces the in-memory jobs and dedupe set with what storage holds.
func (r *Runner) Reload() error {
	jobs, err := r.store.List()
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}
	entries, err := r.dedupeDB.All()
	if err != nil {
		return fmt.Errorf("failed to load dedupe records: %w", err)
	}

	r.mu.Lock()
	r.jobs = jobs
	r.mu.Unlock()
	r.dedupe.Reset(append(entries, writtenEntries(jobs)...)...)

	r.logger.Debug("reloaded state", "jobs", len(jobs), "dedupe", len(entries))
	r.sendProgress(reloadedUpdate(len(jobs), len(entries)))
	return nil
}

// writtenEntries lists the tracks jobs report as written, so the dedupe set holds them even when
// the dedupe store lost an insert.
func writtenEntries(jobs []models.Job) []models.DedupeEntry {
	var entries []models.DedupeEntry
	for _, job := range jobs {
		if job.PlaylistID == "" {
			continue
		}
		for _, uri := range job.AddedTrackIDs {
			entries = append(entries, models.DedupeEntry{PlaylistID: job.PlaylistID, TrackURI: uri})
		}
	}
	return entries
}

// Enqueue stores photo under the job's photo key, persists the job and requests processing.
//
// Missing ids, timestamps and state are filled in. The stored job is returned.
func (r *Runner) Enqueue(ctx context.Context, job models.Job, photo []byte) (models.Job, error) {
	now := r.now()
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.State == "" {
		job.State = models.JobPending
	}

	if len(photo) > 0 {
		if r.photos == nil {
			return job, shared.WrapErr(shared.ErrMissingConfig, "no photo store configured")
		}
		key := job.ID + photoExtension(photo)
		if err := r.photos.Put(ctx, key, photo); err != nil {
			return job, fmt.Errorf("failed to store photo: %w", err)
		}
		job.PhotoKey = key
	}

	if err := job.Validate(); err != nil {
		return job, shared.WrapErr(shared.ErrInvalidArgument, "%v", err)
	}
	if err := r.store.Save(job); err != nil {
		if len(photo) > 0 {
			r.photos.Delete(ctx, job.PhotoKey)
		}
		return job, fmt.Errorf("failed to save job: %w", err)
	}

	r.mu.Lock()
	r.jobs = slices.Insert(r.jobs, 0, job.Clone())
	r.mu.Unlock()

	r.logger.Info("job enqueued", "job", job.ID, "barcode", job.Barcode, "photo", job.PhotoKey)
	r.sendProgress(enqueuedUpdate(job))
	if r.schedule != nil {
		r.schedule()
	}
	return job, nil
}

func photoExtension(photo []byte) string {
	switch http.DetectContentType(photo) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".img"
	}
}

// Remove deletes a job and its photo. Dedupe records are kept.
func (r *Runner) Remove(ctx context.Context, id string) error {
	r.processing.Lock()
	defer r.processing.Unlock()

	job, ok := r.Get(id)
	if !ok {
		return shared.WrapErr(shared.ErrNotFound, "job %s", id)
	}
	if err := r.store.Delete(id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if job.PhotoKey != "" && r.photos != nil {
		if err := r.photos.Delete(ctx, job.PhotoKey); err != nil {
			r.logger.Warn("failed to delete photo", "job", id, "key", job.PhotoKey, "error", err)
		}
	}

	r.mu.Lock()
	if i := r.indexOf(id); i >= 0 {
		r.jobs = slices.Delete(r.jobs, i, i+1)
	}
	r.mu.Unlock()
	return nil
}

// Resume reloads state from storage and processes every pending job.
//
// It is safe to call any number of times. The result reports whether state could be loaded.
func (r *Runner) Resume(ctx context.Context) bool {
	settings := models.DefaultSettings()
	if r.settings != nil {
		loaded, err := r.settings.Load()
		if err != nil {
			r.logger.Error("failed to load settings", "error", err)
			return false
		}
		settings = loaded
	}

	r.processing.Lock()
	defer r.processing.Unlock()

	if err := r.Reload(); err != nil {
		r.logger.Error("failed to reload", "error", err)
		return false
	}
	r.processAll(ctx, settings)
	return ctx.Err() == nil
}

// ProcessAll runs every processable job through the pipeline.
//
// Job failures are recorded on the jobs; they never abort the batch. Jobs not reached before ctx
// is done keep their state.
func (r *Runner) ProcessAll(ctx context.Context, settings models.Settings) Summary {
	r.processing.Lock()
	defer r.processing.Unlock()
	return r.processAll(ctx, settings)
}

func (r *Runner) processAll(ctx context.Context, settings models.Settings) Summary {
	var ids []string
	r.mu.RLock()
	for _, job := range r.jobs {
		if job.Processable() {
			ids = append(ids, job.ID)
		}
	}
	r.mu.RUnlock()

	var summary Summary
	if len(ids) == 0 {
		return summary
	}
	r.logger.Info("processing jobs", "count", len(ids), "workers", r.workers)

	if r.workers < 2 || len(ids) == 1 {
		for i, id := range ids {
			if ctx.Err() != nil {
				break
			}
			if job, ok := r.processID(ctx, id, i+1, len(ids), settings); ok {
				summary.add(job)
			}
		}
		return summary
	}

	type work struct {
		step int
		id   string
	}
	queue := make(chan work, len(ids))
	results := make(chan models.Job, len(ids))

	var wg sync.WaitGroup
	for range min(r.workers, len(ids)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range queue {
				if ctx.Err() != nil {
					continue
				}
				if job, ok := r.processID(ctx, w.id, w.step, len(ids), settings); ok {
					results <- job
				}
			}
		}()
	}

	for i, id := range ids {
		queue <- work{step: i + 1, id: id}
	}
	close(queue)

	go func() {
		wg.Wait()
		close(results)
	}()

	for job := range results {
		summary.add(job)
	}
	return summary
}

func (s *Summary) add(job models.Job) {
	s.Processed++
	switch job.State {
	case models.JobComplete:
		s.Completed++
	case models.JobNeedsConfirm:
		s.NeedsConfirm++
	case models.JobFailed:
		s.Failed++
	}
}

func (r *Runner) processID(ctx context.Context, id string, step, total int, settings models.Settings) (models.Job, bool) {
	job, ok := r.Get(id)
	if !ok {
		return job, false
	}
	return r.process(ctx, job, step, total, settings), true
}

// ProcessJob runs one job through the pipeline and returns it. The error reports only a missing job.
func (r *Runner) ProcessJob(ctx context.Context, id string, settings models.Settings) (models.Job, error) {
	r.processing.Lock()
	defer r.processing.Unlock()

	job, ok := r.processID(ctx, id, 1, 1, settings)
	if !ok {
		return job, shared.WrapErr(shared.ErrNotFound, "job %s", id)
	}
	return job, nil
}

// Confirm resolves a job awaiting confirmation to releaseID and continues processing it.
//
// An empty releaseID accepts the tentative match. When confirmation fails the job is unchanged.
func (r *Runner) Confirm(ctx context.Context, id, releaseID string, settings models.Settings) (models.Job, error) {
	r.processing.Lock()
	defer r.processing.Unlock()

	job, ok := r.Get(id)
	if !ok {
		return job, shared.WrapErr(shared.ErrNotFound, "job %s", id)
	}
	if job.State != models.JobNeedsConfirm {
		return job, shared.WrapErr(shared.ErrInvalidArgument, "job %s is %s, not awaiting confirmation", id, job.State)
	}

	confirmed, err := r.resolver.Confirm(ctx, job, releaseID, settings)
	if err != nil {
		return job, err
	}
	if err := r.persist(&confirmed); err != nil {
		return job, err
	}
	return r.process(ctx, confirmed, 1, 1, settings), nil
}

// process runs the pipeline for job and records any failure on it.
func (r *Runner) process(ctx context.Context, job models.Job, step, total int, settings models.Settings) models.Job {
	logger := r.logger.With("job", job.ID)

	out, err := r.advance(ctx, job, step, total, settings, logger)
	if err == nil {
		return out
	}

	out.State = models.JobFailed
	out.ErrorDescription = err.Error()
	if perr := r.persist(&out); perr != nil {
		logger.Error("failed to persist failed job", "error", perr)
	}
	logger.Warn("job failed", "error", err)
	r.sendProgress(failedUpdate(step, total, out))
	return out
}

func (r *Runner) advance(ctx context.Context, job models.Job, step, total int, settings models.Settings, logger *log.Logger) (models.Job, error) {
	job.ErrorDescription = ""

	if job.ChosenSpotifyAlbumID == "" {
		job.State = models.JobMatching
		if err := r.persist(&job); err != nil {
			return job, err
		}
		r.sendProgress(resolvingUpdate(step, total, job))

		resolved, err := r.resolver.Resolve(ctx, job, settings)
		if err != nil {
			return job, err
		}
		job = resolved
	} else {
		logger.Debug("album already chosen, skipping resolution", "album", job.ChosenSpotifyAlbumID)
	}

	playlistID, ok := services.NormalizePlaylistID(settings.PlaylistID)
	if job.ChosenSpotifyAlbumID == "" || !ok {
		reason := "choose a release"
		if job.ChosenSpotifyAlbumID != "" {
			reason = "set a destination playlist"
		}
		job.State = models.JobNeedsConfirm
		if err := r.persist(&job); err != nil {
			return job, err
		}
		logger.Info("job needs confirmation", "reason", reason, "candidates", len(job.Candidates))
		r.sendProgress(awaitingUpdate(step, total, job, reason))
		return job, nil
	}

	return r.addTracks(ctx, job, playlistID, step, total, logger)
}

func (r *Runner) addTracks(ctx context.Context, job models.Job, playlistID string, step, total int, logger *log.Logger) (models.Job, error) {
	job.State = models.JobAdding
	job.PlaylistID = playlistID
	if err := r.persist(&job); err != nil {
		return job, err
	}
	r.sendProgress(fetchingTracksUpdate(step, total, job))

	tracks, err := r.streaming.AlbumTracks(ctx, job.ChosenSpotifyAlbumID)
	if err != nil {
		return job, err
	}
	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		uris = append(uris, t.URI)
	}

	fresh := r.dedupe.Reserve(playlistID, uris)
	logger.Debug("reserved tracks", "album", len(uris), "new", len(fresh))
	r.sendProgress(addingTracksUpdate(step, total, job, len(fresh)))

	if err := r.streaming.AddTracks(ctx, playlistID, fresh); err != nil {
		written := services.WrittenBeforeFailure(err)
		unwritten := slices.DeleteFunc(slices.Clone(fresh), func(uri string) bool { return slices.Contains(written, uri) })
		r.dedupe.Release(playlistID, unwritten...)
		if rerr := r.record(&job, playlistID, written); rerr != nil {
			logger.Error("failed to persist dedupe records", "count", len(written), "error", rerr)
		}
		return job, err
	}

	if err := r.record(&job, playlistID, fresh); err != nil {
		return job, err
	}
	job.State = models.JobComplete
	if err := r.persist(&job); err != nil {
		return job, err
	}
	logger.Info("job complete", "playlist", playlistID, "added", len(fresh))
	r.sendProgress(completedUpdate(step, total, job, len(fresh)))
	return job, nil
}

// record marks uris as written on the job and in the dedupe store.
// The URIs stay on the job even when the store fails.
func (r *Runner) record(job *models.Job, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	job.AppendAdded(uris...)

	entries := make([]models.DedupeEntry, len(uris))
	for i, uri := range uris {
		entries[i] = models.DedupeEntry{PlaylistID: playlistID, TrackURI: uri}
	}
	if err := r.dedupeDB.Insert(entries...); err != nil {
		return fmt.Errorf("failed to persist dedupe records: %w", err)
	}
	return nil
}

// persist saves job and replaces the in-memory copy.
func (r *Runner) persist(job *models.Job) error {
	job.UpdatedAt = r.now()
	if err := r.store.Save(*job); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(job.ID); i >= 0 {
		r.jobs[i] = job.Clone()
	}
	return nil
}
