package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/discx/internal/formatter"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
	"github.com/desertthunder/discx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// JobsAdd queues a capture.
func (r *Runner) JobsAdd(ctx context.Context, cmd *cli.Command) error {
	barcode := strings.TrimSpace(cmd.String("barcode"))
	photoPath := cmd.String("photo")
	text := cmd.StringSlice("text")

	if barcode == "" && photoPath == "" && len(text) == 0 {
		return fmt.Errorf("%w: one of --barcode, --photo or --text", shared.ErrMissingArgument)
	}
	if barcode != "" && shared.DigitsOnly(barcode) == "" {
		return fmt.Errorf("%w: barcode %q has no digits", shared.ErrInvalidArgument, barcode)
	}

	var photo []byte
	if photoPath != "" {
		data, err := os.ReadFile(photoPath)
		if err != nil {
			return fmt.Errorf("failed to read photo: %w", err)
		}
		photo = data
	}

	d, err := r.open(ctx)
	if err != nil {
		return err
	}

	job, err := d.runner.Enqueue(ctx, models.Job{Barcode: barcode, OCRText: text}, photo)
	if err != nil {
		return err
	}
	r.writePlain("%s Queued job %s\n", styles.ok.Render("✓"), job.ID)

	if !cmd.Bool("process") {
		return nil
	}

	settings, err := d.settings.Load()
	if err != nil {
		return err
	}
	job, err = d.runner.ProcessJob(ctx, job.ID, settings)
	if err != nil {
		return err
	}
	return r.printJob(job)
}

// JobsList prints jobs, most recent first.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open(ctx)
	if err != nil {
		return err
	}

	jobs := d.runner.Snapshot()
	if state := cmd.String("state"); state != "" {
		want := models.JobState(state)
		if !want.Valid() {
			return fmt.Errorf("%w: unknown state %q", shared.ErrInvalidArgument, state)
		}
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.State == want {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	if cmd.Bool("json") {
		if jobs == nil {
			jobs = []models.Job{}
		}
		return r.writeJSON(jobs, true)
	}

	if len(jobs) == 0 {
		return r.writePlain("No jobs\n")
	}
	for _, job := range jobs {
		r.writePlain("%s %s  %s  %s\n", stateBadge(job.State), job.ID, job.CreatedAt.Local().Format(time.DateTime), describeJob(job))
	}
	return nil
}

func describeJob(job models.Job) string {
	var parts []string
	switch {
	case job.Barcode != "":
		parts = append(parts, "barcode "+job.Barcode)
	case len(job.OCRText) > 0:
		parts = append(parts, fmt.Sprintf("%q", strings.Join(job.OCRText, " / ")))
	case job.PhotoKey != "":
		parts = append(parts, "photo "+job.PhotoKey)
	}
	if len(job.AddedTrackIDs) > 0 {
		parts = append(parts, fmt.Sprintf("%d tracks added", len(job.AddedTrackIDs)))
	}
	if len(job.Candidates) > 0 {
		parts = append(parts, fmt.Sprintf("%d candidates", len(job.Candidates)))
	}
	if job.ErrorDescription != "" {
		parts = append(parts, styles.err.Render(job.ErrorDescription))
	}
	return strings.Join(parts, ", ")
}

// JobsShow prints a job with its candidates.
func (r *Runner) JobsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	d, err := r.open(ctx)
	if err != nil {
		return err
	}

	job, ok := d.runner.Get(id)
	if !ok {
		return fmt.Errorf("%w: job %s", shared.ErrNotFound, id)
	}
	if cmd.Bool("json") {
		return r.writeJSON(job, true)
	}
	return r.printJob(job)
}

func (r *Runner) printJob(job models.Job) error {
	r.writePlainHeader("Job " + job.ID)
	r.writePlain("State: %s\n", stateBadge(job.State))
	r.writePlain("Created: %s\n", job.CreatedAt.Local().Format(time.DateTime))
	if job.Barcode != "" {
		r.writePlain("Barcode: %s\n", job.Barcode)
	}
	if len(job.OCRText) > 0 {
		r.writePlain("Text: %s\n", strings.Join(job.OCRText, " / "))
	}
	if job.ChosenMBID != "" {
		r.writePlain("Release: %s\n", job.ChosenMBID)
	}
	if job.ChosenSpotifyAlbumID != "" {
		r.writePlain("Album: %s\n", job.ChosenSpotifyAlbumID)
	}
	if len(job.AddedTrackIDs) > 0 {
		r.writePlain("Tracks added: %d\n", len(job.AddedTrackIDs))
	}
	if job.ErrorDescription != "" {
		r.writePlain("Error: %s\n", styles.err.Render(job.ErrorDescription))
	}
	if job.State == models.JobFailed {
		r.writePlain("%s\n", styles.help.Render("Run 'discx jobs process "+job.ID+"' to retry"))
	}

	if len(job.Candidates) > 0 {
		r.writePlainln("Candidates:")
		for i, c := range job.Candidates {
			details := strings.Join(nonEmpty(c.Year, c.Label), ", ")
			if details != "" {
				details = " (" + details + ")"
			}
			r.writePlain("%d. %s - %s%s\n   %s\n", i+1, c.Artist, c.Title, details, styles.help.Render(c.ReleaseID))
		}
		r.writePlain("%s\n", styles.help.Render("Run 'discx jobs confirm "+job.ID+" --release <id>' to choose"))
	} else if job.AwaitingConfirmation() && job.ChosenMBID != "" {
		r.writePlain("%s\n", styles.help.Render("Run 'discx jobs confirm "+job.ID+"' to accept the visual match"))
	}
	return nil
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// JobsProcess runs every pending job, or the one named, and reports progress as it goes.
func (r *Runner) JobsProcess(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open(ctx)
	if err != nil {
		return err
	}
	settings, err := d.settings.Load()
	if err != nil {
		return err
	}

	if id := cmd.StringArg("id"); id != "" {
		job, err := d.runner.ProcessJob(ctx, id, settings)
		if err != nil {
			return err
		}
		return r.printJob(job)
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	unsubscribe := d.runner.Subscribe(updates)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			r.printProgress(u)
		}
	}()

	summary := d.runner.ProcessAll(ctx, settings)
	unsubscribe()
	close(updates)
	<-done

	r.writePlainln("Processed %d jobs: %d complete, %d need confirmation, %d failed",
		summary.Processed, summary.Completed, summary.NeedsConfirm, summary.Failed)
	return nil
}

func (r *Runner) printProgress(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.Completed:
		r.writePlain("%s\n", styles.ok.Render(u.Message))
	case tasks.Failed:
		r.writePlain("%s\n", styles.err.Render(u.Message))
	case tasks.AwaitingConfirmation:
		r.writePlain("%s\n", styles.warn.Render(u.Message))
	default:
		r.writePlain("%s\n", u.Message)
	}
}

// JobsConfirm resolves a job awaiting confirmation and continues processing it.
func (r *Runner) JobsConfirm(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	d, err := r.open(ctx)
	if err != nil {
		return err
	}
	settings, err := d.settings.Load()
	if err != nil {
		return err
	}

	job, err := d.runner.Confirm(ctx, id, cmd.String("release"), settings)
	if err != nil {
		return err
	}
	return r.printJob(job)
}

// JobsRemove deletes a job.
func (r *Runner) JobsRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	d, err := r.open(ctx)
	if err != nil {
		return err
	}
	if err := d.runner.Remove(ctx, id); err != nil {
		return err
	}
	return r.writePlain("%s Removed job %s\n", styles.ok.Render("✓"), id)
}

// JobsExport writes job history to a file or stdout.
func (r *Runner) JobsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	d, err := r.open(ctx)
	if err != nil {
		return err
	}
	jobs := d.runner.Snapshot()

	output := cmd.String("output")
	if output == "" {
		data, err := formatter.Export(jobs, format)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	path, err := formatter.WriteHistory(jobs, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("exported job history", "jobs", len(jobs), "path", path)
	return r.writePlain("%s Exported %d jobs to %s\n", styles.ok.Render("✓"), len(jobs), path)
}
