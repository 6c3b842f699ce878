package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
	th "github.com/desertthunder/discx/internal/testing"
)

func sampleJobs() []models.Job {
	created := time.Date(2026, 10, 3, 9, 30, 0, 0, time.UTC)
	return []models.Job{
		{
			ID:                   "job-1",
			CreatedAt:            created,
			Barcode:              "602537803897",
			State:                models.JobComplete,
			ChosenMBID:           "mb-1",
			ChosenSpotifyAlbumID: "album-1",
			AddedTrackIDs:        []string{"spotify:track:a", "spotify:track:b"},
		},
		{
			ID:        "job-2",
			CreatedAt: created.Add(time.Hour),
			OCRText:   []string{"Michael Jackson", "Thriller"},
			State:     models.JobNeedsConfirm,
			Candidates: []models.AlbumMatch{
				{ReleaseID: "r1", Title: "Thriller", Artist: "Michael Jackson", Year: "1982"},
				{ReleaseID: "r2", Title: "Thriller 25", Artist: "Michael Jackson"},
			},
		},
		{
			ID:               "job-3",
			CreatedAt:        created.Add(2 * time.Hour),
			State:            models.JobFailed,
			ErrorDescription: "no confident match",
		},
	}
}

func TestExporters(t *testing.T) {
	jobs := sampleJobs()

	t.Run("ExportJobsCSV", func(t *testing.T) {
		data, err := ExportJobsCSV(jobs)
		if err != nil {
			t.Fatalf("ExportJobsCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Created,State,Barcode,Text,Release,Album,Tracks Added,Error") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "job-1,2026-10-03T09:30:00Z,complete,602537803897,,mb-1,album-1,2,") {
			t.Errorf("CSV missing complete job row, got: %s", output)
		}
		if !strings.Contains(output, "Michael Jackson / Thriller") {
			t.Errorf("CSV missing OCR text")
		}
		if lines := strings.Count(output, "\n"); lines != 4 {
			t.Errorf("expected 4 lines, got %d", lines)
		}
	})

	t.Run("ExportJobsMarkdown", func(t *testing.T) {
		data, err := ExportJobsMarkdown(jobs)
		if err != nil {
			t.Fatalf("ExportJobsMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Capture History",
			"**Jobs**: 3",
			"**complete**: 1",
			"**needsConfirm**: 1",
			"1. `complete` 602537803897 (2026-10-03)",
			"   - Tracks added: 2",
			"2. `needsConfirm` Michael Jackson",
			"   - Candidate: Michael Jackson - Thriller (1982) [r1]",
			"   - Candidate: Michael Jackson - Thriller 25 [r2]",
			"3. `failed` job-3",
			"   - Error: no confident match",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "**pending**") {
			t.Error("Markdown should omit empty states")
		}
	})

	t.Run("ExportJobsText", func(t *testing.T) {
		data, err := ExportJobsText(jobs)
		if err != nil {
			t.Fatalf("ExportJobsText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Jobs: 3",
			"1. [complete] 602537803897 (2 tracks)",
			"2. [needsConfirm] Michael Jackson",
			"3. [failed] job-3: no confident match",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportJobsJSON", func(t *testing.T) {
		data, err := ExportJobsJSON(jobs)
		if err != nil {
			t.Fatalf("ExportJobsJSON failed: %v", err)
		}

		var decoded []models.Job
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 3 || decoded[1].Candidates[0].ReleaseID != "r1" {
			t.Errorf("unexpected decoded jobs %+v", decoded)
		}

		empty, _ := ExportJobsJSON(nil)
		if strings.TrimSpace(string(empty)) != "[]" {
			t.Errorf("expected empty array, got %q", empty)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"", FormatJSON},
		{"CSV", FormatCSV},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"text", FormatText},
		{"txt", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriteHistory(t *testing.T) {
	jobs := sampleJobs()

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.csv")
		got, err := WriteHistory(jobs, FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteHistory failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
		th.AssertFileExists(t, path)
		if !strings.Contains(th.MustReadFile(t, path), "job-2") {
			t.Error("history file missing jobs")
		}
	})

	t.Run("WithDefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		got, err := WriteHistory(jobs, FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteHistory failed: %v", err)
		}
		if got != "discx_history.md" {
			t.Errorf("expected 'discx_history.md', got '%s'", got)
		}
		th.AssertFileExists(t, got)
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "history.txt")
		if _, err := WriteHistory(jobs, FormatText, path); err == nil {
			t.Error("expected error")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("no file should be created")
		}
	})
}
