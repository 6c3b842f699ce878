// package formatter exports job history to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	default:
		return "." + string(f)
	}
}

// ParseFormat accepts a format name or a common alias ("md", "text").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", shared.WrapErr(shared.ErrInvalidArgument, "unknown export format %q", s)
}

// subject names what was captured: the barcode, the first OCR line or the job id.
func subject(job models.Job) string {
	switch {
	case job.Barcode != "":
		return job.Barcode
	case len(job.OCRText) > 0:
		return job.OCRText[0]
	default:
		return job.ID
	}
}

func countStates(jobs []models.Job) map[models.JobState]int {
	counts := make(map[models.JobState]int)
	for _, job := range jobs {
		counts[job.State]++
	}
	return counts
}

var stateOrder = []models.JobState{
	models.JobComplete, models.JobNeedsConfirm, models.JobFailed,
	models.JobPending, models.JobMatching, models.JobAdding,
}

// ExportJobsJSON converts jobs to indented JSON.
func ExportJobsJSON(jobs []models.Job) ([]byte, error) {
	if jobs == nil {
		jobs = []models.Job{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jobs: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportJobsCSV converts jobs to CSV with columns: ID, Created, State, Barcode, Text, Release, Album, Tracks Added, Error
func ExportJobsCSV(jobs []models.Job) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Created", "State", "Barcode", "Text", "Release", "Album", "Tracks Added", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, job := range jobs {
		record := []string{
			job.ID,
			job.CreatedAt.UTC().Format(time.RFC3339),
			job.State.String(),
			job.Barcode,
			strings.Join(job.OCRText, " / "),
			job.ChosenMBID,
			job.ChosenSpotifyAlbumID,
			strconv.Itoa(len(job.AddedTrackIDs)),
			job.ErrorDescription,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportJobsMarkdown converts jobs to a Markdown report with a state summary and one entry per job.
func ExportJobsMarkdown(jobs []models.Job) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Capture History\n\n")
	buf.WriteString(fmt.Sprintf("**Jobs**: %d\n", len(jobs)))
	counts := countStates(jobs)
	for _, state := range stateOrder {
		if n := counts[state]; n > 0 {
			buf.WriteString(fmt.Sprintf("**%s**: %d\n", state, n))
		}
	}

	buf.WriteString("\n## Jobs\n\n")
	for i, job := range jobs {
		buf.WriteString(fmt.Sprintf("%d. `%s` %s (%s)\n", i+1, job.State, subject(job), job.CreatedAt.UTC().Format(time.DateOnly)))
		if job.ChosenMBID != "" {
			buf.WriteString(fmt.Sprintf("   - Release: %s\n", job.ChosenMBID))
		}
		if len(job.AddedTrackIDs) > 0 {
			buf.WriteString(fmt.Sprintf("   - Tracks added: %d\n", len(job.AddedTrackIDs)))
		}
		for _, c := range job.Candidates {
			year := ""
			if c.Year != "" {
				year = fmt.Sprintf(" (%s)", c.Year)
			}
			buf.WriteString(fmt.Sprintf("   - Candidate: %s - %s%s [%s]\n", c.Artist, c.Title, year, c.ReleaseID))
		}
		if job.ErrorDescription != "" {
			buf.WriteString(fmt.Sprintf("   - Error: %s\n", job.ErrorDescription))
		}
	}

	return buf.Bytes(), nil
}

// ExportJobsText converts jobs to plain text format
func ExportJobsText(jobs []models.Job) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Jobs: %d\n\n", len(jobs)))
	for i, job := range jobs {
		line := fmt.Sprintf("%d. [%s] %s", i+1, job.State, subject(job))
		switch {
		case job.ErrorDescription != "":
			line += ": " + job.ErrorDescription
		case len(job.AddedTrackIDs) > 0:
			line += fmt.Sprintf(" (%d tracks)", len(job.AddedTrackIDs))
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// Export renders jobs in format.
func Export(jobs []models.Job, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportJobsJSON(jobs)
	case FormatCSV:
		return ExportJobsCSV(jobs)
	case FormatMarkdown:
		return ExportJobsMarkdown(jobs)
	case FormatText:
		return ExportJobsText(jobs)
	}
	return nil, shared.WrapErr(shared.ErrInvalidArgument, "unknown export format %q", format)
}

// WriteHistory exports jobs to a file and returns its path.
//
// Defaults to discx_history with the format's extension.
func WriteHistory(jobs []models.Job, format Format, filepath string) (string, error) {
	if filepath == "" {
		filepath = "discx_history" + format.Extension()
	}

	data, err := Export(jobs, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write history file: %w", err)
	}

	return filepath, nil
}
