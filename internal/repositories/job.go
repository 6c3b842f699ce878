package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
)

// JobRepository persists [models.Job] records.
type JobRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db, now: time.Now}
}

const jobColumns = `id, created_at, updated_at, photo_key, barcode, ocr_text, state, candidates,
	chosen_mbid, chosen_spotify_album_id, playlist_id, added_track_ids, error_description`

// Save inserts the job or replaces the stored copy.
func (r *JobRepository) Save(job models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ocr, err := encodeJSON(job.OCRText)
	if err != nil {
		return err
	}
	candidates, err := encodeJSON(job.Candidates)
	if err != nil {
		return err
	}
	added, err := encodeJSON(job.AddedTrackIDs)
	if err != nil {
		return err
	}

	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			photo_key = excluded.photo_key,
			barcode = excluded.barcode,
			ocr_text = excluded.ocr_text,
			state = excluded.state,
			candidates = excluded.candidates,
			chosen_mbid = excluded.chosen_mbid,
			chosen_spotify_album_id = excluded.chosen_spotify_album_id,
			playlist_id = excluded.playlist_id,
			added_track_ids = excluded.added_track_ids,
			error_description = excluded.error_description
	`

	_, err = r.db.Exec(query,
		job.ID,
		createdAt.UTC(),
		r.now().UTC(),
		job.PhotoKey,
		nullString(job.Barcode),
		ocr,
		string(job.State),
		candidates,
		nullString(job.ChosenMBID),
		nullString(job.ChosenSpotifyAlbumID),
		nullString(job.PlaylistID),
		added,
		nullString(job.ErrorDescription),
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// Get retrieves a job by ID.
func (r *JobRepository) Get(id string) (models.Job, error) {
	row := r.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, fmt.Errorf("%w: job %s", shared.ErrNotFound, id)
	}
	return job, err
}

// List returns every job, most recently created first.
func (r *JobRepository) List() ([]models.Job, error) {
	rows, err := r.db.Query("SELECT " + jobColumns + " FROM jobs ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a job.
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: job %s", shared.ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (models.Job, error) {
	var (
		job                                models.Job
		state, ocr, candidates, added      string
		barcode, mbid, albumID, playlistID sql.NullString
		description                        sql.NullString
	)

	err := s.Scan(
		&job.ID,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.PhotoKey,
		&barcode,
		&ocr,
		&state,
		&candidates,
		&mbid,
		&albumID,
		&playlistID,
		&added,
		&description,
	)
	if err != nil {
		return models.Job{}, err
	}

	job.State = models.JobState(state)
	job.Barcode = barcode.String
	job.ChosenMBID = mbid.String
	job.ChosenSpotifyAlbumID = albumID.String
	job.PlaylistID = playlistID.String
	job.ErrorDescription = description.String

	if err := decodeJSON(ocr, &job.OCRText); err != nil {
		return models.Job{}, err
	}
	if err := decodeJSON(candidates, &job.Candidates); err != nil {
		return models.Job{}, err
	}
	if err := decodeJSON(added, &job.AddedTrackIDs); err != nil {
		return models.Job{}, err
	}
	return job, nil
}
