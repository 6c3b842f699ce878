package tasks

import (
	"fmt"

	"github.com/desertthunder/discx/internal/models"
)

// ProgressUpdate represents a progress event during job processing.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase           // Pipeline phase
	Step    int             // Current job number within the batch, 0 outside a batch
	Total   int             // Jobs in the batch
	JobID   string          // Job the update is about
	State   models.JobState // Job state after the event
	Message string          // Human-readable message for display
	Data    any             // Optional phase-specific data
}

// Phase is the pipeline step an update describes.
type Phase int

const (
	Enqueued Phase = iota
	Resolving
	AwaitingConfirmation
	FetchingTracks
	AddingTracks
	Completed
	Failed
	Reloaded
)

func (p Phase) String() string {
	switch p {
	case Enqueued:
		return "enqueued"
	case Resolving:
		return "resolving"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case FetchingTracks:
		return "fetching_tracks"
	case AddingTracks:
		return "adding_tracks"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Reloaded:
		return "reloaded"
	default:
		return ""
	}
}

func enqueuedUpdate(job models.Job) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Enqueued,
		JobID:   job.ID,
		State:   job.State,
		Message: fmt.Sprintf("Queued job %s", job.ID),
	}
}

func resolvingUpdate(step, total int, job models.Job) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolving,
		Step:    step,
		Total:   total,
		JobID:   job.ID,
		State:   job.State,
		Message: fmt.Sprintf("[%d/%d] Matching %s...", step, total, job.ID),
	}
}

func awaitingUpdate(step, total int, job models.Job, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AwaitingConfirmation,
		Step:    step,
		Total:   total,
		JobID:   job.ID,
		State:   job.State,
		Message: fmt.Sprintf("[%d/%d] %s needs confirmation: %s", step, total, job.ID, reason),
		Data:    job.Candidates,
	}
}

func fetchingTracksUpdate(step, total int, job models.Job) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchingTracks,
		Step:    step,
		Total:   total,
		JobID:   job.ID,
		State:   job.State,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks of album %s...", step, total, job.ChosenSpotifyAlbumID),
	}
}

func addingTracksUpdate(step, total int, job models.Job, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddingTracks,
		Step:    step,
		Total:   total,
		JobID:   job.ID,
		State:   job.State,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, count),
	}
}

func completedUpdate(step, total int, job models.Job, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Completed,
		Step:    step,
		Total:   total,
		JobID:   job.ID,
		State:   job.State,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks added)", step, total, job.ID, added),
	}
}

func failedUpdate(step, total int, job models.Job) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    step,
		Total:   total,
		JobID:   job.ID,
		State:   job.State,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, job.ID, job.ErrorDescription),
	}
}

func reloadedUpdate(jobs, dedupe int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reloaded,
		Total:   jobs,
		Message: fmt.Sprintf("Loaded %d jobs and %d added tracks", jobs, dedupe),
	}
}
