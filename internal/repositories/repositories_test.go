package repositories

import (
	"bytes"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestJobRepository(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Save and Get", func(t *testing.T) {
		repo := NewJobRepository(setupTestDB(t))
		job := models.NewJob("job-1", "photo-1", "074646938921", []string{"Kind of Blue"}, base)
		job.Candidates = []models.AlbumMatch{{ID: "m1", ReleaseID: "r1", Title: "Kind of Blue", Artist: "Miles Davis", Score: 0.5}}

		if err := repo.Save(job); err != nil {
			t.Fatalf("failed to save job: %v", err)
		}

		got, err := repo.Get("job-1")
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}

		if got.Barcode != "074646938921" || got.State != models.JobPending {
			t.Errorf("unexpected job %+v", got)
		}
		if len(got.Candidates) != 1 || got.Candidates[0].ReleaseID != "r1" {
			t.Errorf("candidates did not round-trip: %+v", got.Candidates)
		}
		if len(got.OCRText) != 1 || got.OCRText[0] != "Kind of Blue" {
			t.Errorf("ocr text did not round-trip: %v", got.OCRText)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("expected created_at %v, got %v", base, got.CreatedAt)
		}
	})

	t.Run("Save updates in place", func(t *testing.T) {
		repo := NewJobRepository(setupTestDB(t))
		job := models.NewJob("job-1", "photo-1", "", nil, base)
		if err := repo.Save(job); err != nil {
			t.Fatalf("failed to save job: %v", err)
		}

		job.State = models.JobComplete
		job.ChosenSpotifyAlbumID = "album-1"
		job.PlaylistID = "37i9dQZF1DXcBWIGoYBM5M"
		job.AppendAdded("spotify:track:1")
		if err := repo.Save(job); err != nil {
			t.Fatalf("failed to update job: %v", err)
		}

		jobs, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(jobs) != 1 {
			t.Fatalf("expected 1 job, got %d", len(jobs))
		}
		if jobs[0].State != models.JobComplete || len(jobs[0].AddedTrackIDs) != 1 {
			t.Errorf("update not applied: %+v", jobs[0])
		}
		if jobs[0].PlaylistID != "37i9dQZF1DXcBWIGoYBM5M" {
			t.Errorf("playlist did not round-trip: %q", jobs[0].PlaylistID)
		}
		if jobs[0].Barcode != "" {
			t.Errorf("absent barcode should stay empty, got %q", jobs[0].Barcode)
		}
	})

	t.Run("List orders most recent first", func(t *testing.T) {
		repo := NewJobRepository(setupTestDB(t))
		for i, id := range []string{"old", "mid", "new"} {
			job := models.NewJob(id, "p", "", nil, base.Add(time.Duration(i)*time.Hour))
			if err := repo.Save(job); err != nil {
				t.Fatalf("failed to save job: %v", err)
			}
		}

		jobs, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(jobs) != 3 || jobs[0].ID != "new" || jobs[2].ID != "old" {
			t.Errorf("unexpected order: %v", []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})
		}
	})

	t.Run("Validation", func(t *testing.T) {
		repo := NewJobRepository(setupTestDB(t))
		if err := repo.Save(models.Job{ID: "x", State: "bogus"}); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get and Delete missing", func(t *testing.T) {
		repo := NewJobRepository(setupTestDB(t))
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDedupeRepository(t *testing.T) {
	repo := NewDedupeRepository(setupTestDB(t))

	entries := []models.DedupeEntry{
		{PlaylistID: "pl1", TrackURI: "spotify:track:a"},
		{PlaylistID: "pl1", TrackURI: "spotify:track:b"},
		{PlaylistID: "pl2", TrackURI: "spotify:track:a"},
	}
	if err := repo.Insert(entries...); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := repo.Insert(entries[0]); err != nil {
		t.Fatalf("duplicate insert should be ignored: %v", err)
	}

	all, err := repo.All()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 entries, got %d", len(all))
	}

	pl1, err := repo.ForPlaylist("pl1")
	if err != nil {
		t.Fatalf("failed to list playlist: %v", err)
	}
	if len(pl1) != 2 {
		t.Errorf("expected 2 entries for pl1, got %d", len(pl1))
	}
}

func TestFingerprintRepository(t *testing.T) {
	repo := NewFingerprintRepository(setupTestDB(t))

	if err := repo.Insert(models.Fingerprint{ReleaseID: "r1", Hash: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := repo.Insert(models.Fingerprint{ReleaseID: "r2", Hash: []byte{4}}); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := repo.Insert(models.Fingerprint{ReleaseID: "r3"}); err == nil {
		t.Error("empty hash should be rejected")
	}

	all, err := repo.All()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 2 || all[0].ReleaseID != "r1" || !bytes.Equal(all[0].Hash, []byte{1, 2, 3}) {
		t.Errorf("unexpected fingerprints %+v", all)
	}
}

func TestSettingsRepository(t *testing.T) {
	repo := NewSettingsRepository(setupTestDB(t))

	t.Run("defaults", func(t *testing.T) {
		s, err := repo.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if s != models.DefaultSettings() {
			t.Errorf("expected defaults, got %+v", s)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		want := models.Settings{PlaylistID: "spotify:playlist:abc", Market: "GB", FeatureThreshold: 10}
		if err := repo.Save(want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := repo.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if err := repo.Save(models.Settings{Market: "X", FeatureThreshold: 1}); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestSecretRepository(t *testing.T) {
	db := setupTestDB(t)

	t.Run("requires key", func(t *testing.T) {
		if _, err := NewSecretRepository(db, ""); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	repo, err := NewSecretRepository(db, "correct horse")
	if err != nil {
		t.Fatalf("NewSecretRepository() error = %v", err)
	}

	t.Run("write read delete", func(t *testing.T) {
		if err := repo.Write("session", []byte(`{"access_token":"abc"}`)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		var stored []byte
		if err := db.QueryRow("SELECT ciphertext FROM secrets WHERE key = 'session'").Scan(&stored); err != nil {
			t.Fatalf("failed to read raw row: %v", err)
		}
		if bytes.Contains(stored, []byte("abc")) {
			t.Error("plaintext leaked into the database")
		}

		got, err := repo.Read("session")
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if string(got) != `{"access_token":"abc"}` {
			t.Errorf("unexpected value %s", got)
		}

		if err := repo.Delete("session"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.Read("session"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("salted key survives reopening", func(t *testing.T) {
		var salt []byte
		if err := db.QueryRow("SELECT salt FROM secret_salt WHERE id = 1").Scan(&salt); err != nil {
			t.Fatalf("expected a stored salt: %v", err)
		}
		if len(salt) != saltLen {
			t.Errorf("expected %d byte salt, got %d", saltLen, len(salt))
		}

		if err := repo.Write("session", []byte("value")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		reopened, err := NewSecretRepository(db, "correct horse")
		if err != nil {
			t.Fatalf("NewSecretRepository() error = %v", err)
		}
		if got, err := reopened.Read("session"); err != nil || string(got) != "value" {
			t.Errorf("Read() = %q, %v; want value", got, err)
		}

		var again []byte
		db.QueryRow("SELECT salt FROM secret_salt WHERE id = 1").Scan(&again)
		if !bytes.Equal(salt, again) {
			t.Error("reopening must not replace the salt")
		}
	})

	t.Run("same passphrase in another database", func(t *testing.T) {
		if err := repo.Write("session", []byte("value")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		var nonce, sealed []byte
		db.QueryRow("SELECT nonce, ciphertext FROM secrets WHERE key = 'session'").Scan(&nonce, &sealed)

		otherDB := setupTestDB(t)
		other, err := NewSecretRepository(otherDB, "correct horse")
		if err != nil {
			t.Fatalf("NewSecretRepository() error = %v", err)
		}
		if _, err := otherDB.Exec("INSERT INTO secrets (key, nonce, ciphertext) VALUES ('session', ?, ?)", nonce, sealed); err != nil {
			t.Fatal(err)
		}
		if _, err := other.Read("session"); err == nil {
			t.Error("a different salt should derive a different key")
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		if err := repo.Write("session", []byte("value")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		other, _ := NewSecretRepository(db, "battery staple")
		if _, err := other.Read("session"); err == nil {
			t.Error("reading with another key should fail")
		}
	})
}
