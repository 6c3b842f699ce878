package models

import (
	"fmt"
	"slices"
	"time"
)

// JobState is the pipeline position of a [Job].
type JobState string

const (
	JobPending      JobState = "pending"
	JobMatching     JobState = "matching"
	JobNeedsConfirm JobState = "needsConfirm"
	JobAdding       JobState = "adding"
	JobComplete     JobState = "complete"
	JobFailed       JobState = "failed"
)

// Valid reports whether s is one of the known states.
func (s JobState) Valid() bool {
	switch s {
	case JobPending, JobMatching, JobNeedsConfirm, JobAdding, JobComplete, JobFailed:
		return true
	}
	return false
}

func (s JobState) String() string { return string(s) }

// Job is one capture of a physical record and its progress toward the playlist.
//
// Optional fields use the zero value for "absent".
type Job struct {
	ID                   string       `json:"id"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
	PhotoKey             string       `json:"photo_key"`
	Barcode              string       `json:"barcode,omitempty"`
	OCRText              []string     `json:"ocr_text"`
	State                JobState     `json:"state"`
	Candidates           []AlbumMatch `json:"candidates"`
	ChosenMBID           string       `json:"chosen_mbid,omitempty"`
	ChosenSpotifyAlbumID string       `json:"chosen_spotify_album_id,omitempty"`
	PlaylistID           string       `json:"playlist_id,omitempty"`
	AddedTrackIDs        []string     `json:"added_track_ids"`
	ErrorDescription     string       `json:"error_description,omitempty"`
}

// NewJob creates a pending job for a stored photo.
func NewJob(id, photoKey, barcode string, ocrText []string, now time.Time) Job {
	return Job{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		PhotoKey:  photoKey,
		Barcode:   barcode,
		OCRText:   slices.Clone(ocrText),
		State:     JobPending,
	}
}

func (j Job) Key() string { return j.ID }

// Validate checks the structural invariants of a job.
func (j Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if !j.State.Valid() {
		return fmt.Errorf("job %s has unknown state %q", j.ID, j.State)
	}
	if j.State == JobComplete && j.ChosenSpotifyAlbumID == "" {
		return fmt.Errorf("job %s is complete without a streaming album", j.ID)
	}
	return nil
}

// Clone returns a copy that shares no slices with j.
func (j Job) Clone() Job {
	c := j
	c.OCRText = slices.Clone(j.OCRText)
	c.Candidates = slices.Clone(j.Candidates)
	c.AddedTrackIDs = slices.Clone(j.AddedTrackIDs)
	return c
}

// AwaitingConfirmation reports whether the job needs a human decision before it can continue.
func (j Job) AwaitingConfirmation() bool {
	return j.State == JobNeedsConfirm && j.ChosenSpotifyAlbumID == ""
}

// Processable reports whether a batch run should pick the job up.
// Failed jobs are only retried on request.
func (j Job) Processable() bool {
	switch j.State {
	case JobComplete, JobFailed:
		return false
	case JobNeedsConfirm:
		return !j.AwaitingConfirmation()
	}
	return true
}

// AppendAdded records written track URIs. The list only grows and holds no duplicates.
func (j *Job) AppendAdded(uris ...string) {
	for _, uri := range uris {
		if !slices.Contains(j.AddedTrackIDs, uri) {
			j.AddedTrackIDs = append(j.AddedTrackIDs, uri)
		}
	}
}
