package resolver

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/discx/internal/catalog"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
	tu "github.com/desertthunder/discx/internal/testing"
)

type fakeCatalog struct {
	byBarcode   map[string][]models.Release
	barcodeErr  map[string]error
	search      []models.Release
	searchErr   error
	releases    map[string]*models.Release
	barcodeHits []string
	queries     []catalog.ReleaseQuery
}

func (f *fakeCatalog) ReleaseByBarcode(ctx context.Context, barcode string) ([]models.Release, error) {
	f.barcodeHits = append(f.barcodeHits, barcode)
	if err := f.barcodeErr[barcode]; err != nil {
		return nil, err
	}
	return f.byBarcode[barcode], nil
}

func (f *fakeCatalog) SearchRelease(ctx context.Context, q catalog.ReleaseQuery) ([]models.Release, error) {
	f.queries = append(f.queries, q)
	return f.search, f.searchErr
}

func (f *fakeCatalog) Release(ctx context.Context, id string) (*models.Release, error) {
	if r, ok := f.releases[id]; ok {
		return r, nil
	}
	return nil, shared.ErrNotFound
}

type fakeMarketplace struct {
	results map[string][]models.Release
	err     error
	calls   []string
}

func (f *fakeMarketplace) SearchByBarcode(ctx context.Context, barcode string) ([]models.Release, error) {
	f.calls = append(f.calls, barcode)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[barcode], nil
}

type fakeStreaming struct {
	albums map[string]*models.Album // keyed by title
	err    error
	calls  []string
}

func (f *fakeStreaming) SearchAlbum(ctx context.Context, title, artist, market string) (*models.Album, error) {
	f.calls = append(f.calls, title+"|"+artist+"|"+market)
	if f.err != nil {
		return nil, f.err
	}
	return f.albums[title], nil
}

type fakeOCR struct {
	lines []string
	err   error
	calls int
}

func (f *fakeOCR) ExtractText(ctx context.Context, image []byte) ([]string, error) {
	f.calls++
	return f.lines, f.err
}

type fakePhotos map[string][]byte

func (f fakePhotos) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := f[key]; ok {
		return v, nil
	}
	return nil, shared.ErrNotFound
}

// byteFingerprinter uses the photo bytes as the hash.
type byteFingerprinter struct{}

func (byteFingerprinter) Fingerprint(ctx context.Context, image []byte) ([]byte, error) {
	return slices.Clone(image), nil
}

type fakeIndex struct {
	mu       sync.Mutex
	stored   map[string][]byte
	nearest  string
	distance float64
}

func (f *fakeIndex) Store(releaseID string, hash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = map[string][]byte{}
	}
	f.stored[releaseID] = hash
	return nil
}

func (f *fakeIndex) NearestNeighbor(hash []byte) (string, float64, bool, error) {
	return f.nearest, f.distance, f.nearest != "", nil
}

func (f *fakeIndex) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stored[id]
	return ok
}

var thriller = models.Release{ID: "mb-thriller", Title: "Thriller", ArtistCredit: "Michael Jackson", Date: "1982-11-30"}

type fixture struct {
	catalog     *fakeCatalog
	marketplace *fakeMarketplace
	streaming   *fakeStreaming
	ocr         *fakeOCR
	index       *fakeIndex
	resolver    *Resolver
	logs        *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog:     &fakeCatalog{byBarcode: map[string][]models.Release{}, barcodeErr: map[string]error{}},
		marketplace: &fakeMarketplace{results: map[string][]models.Release{}},
		streaming:   &fakeStreaming{albums: map[string]*models.Album{"Thriller": {ID: "sp-thriller", Name: "Thriller"}}},
		ocr:         &fakeOCR{},
		index:       &fakeIndex{},
		logs:        &bytes.Buffer{},
	}
	r, err := New(Options{
		Catalog:       f.catalog,
		Marketplace:   f.marketplace,
		Streaming:     f.streaming,
		Photos:        fakePhotos{"photo.jpg": []byte{0xab, 0xcd}},
		OCR:           f.ocr,
		Fingerprinter: byteFingerprinter{},
		Fingerprints:  f.index,
		Logger:        tu.NewTestLogger(f.logs),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.resolver = r
	return f
}

func newJob(barcode string, ocr ...string) models.Job {
	return models.NewJob("job-1", "photo.jpg", barcode, ocr, time.Now())
}

func TestResolveBarcode(t *testing.T) {
	settings := models.DefaultSettings()

	t.Run("12-digit barcode hit goes straight to matching", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.byBarcode["602537803897"] = []models.Release{thriller}

		job, err := f.resolver.Resolve(context.Background(), newJob("602537803897"), settings)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if job.State != models.JobMatching {
			t.Errorf("expected matching, got %s", job.State)
		}
		if job.ChosenMBID != "mb-thriller" || job.ChosenSpotifyAlbumID != "sp-thriller" {
			t.Errorf("unexpected match %q / %q", job.ChosenMBID, job.ChosenSpotifyAlbumID)
		}
		if len(job.Candidates) != 0 {
			t.Errorf("confirmed match must not carry candidates, got %d", len(job.Candidates))
		}
		if f.streaming.calls[0] != "Thriller|Michael Jackson|US" {
			t.Errorf("unexpected album search %q", f.streaming.calls[0])
		}
		if f.ocr.calls != 0 {
			t.Error("OCR should not run after a barcode match")
		}

		f.resolver.Wait()
		if !f.index.has("mb-thriller") {
			t.Error("expected fingerprint to be stored for the confirmed release")
		}
	})

	t.Run("tries the zero-padded variant", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.byBarcode["0602537803897"] = []models.Release{thriller}

		job, err := f.resolver.Resolve(context.Background(), newJob("6025 3780 3897"), settings)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if job.ChosenMBID != "mb-thriller" {
			t.Errorf("expected match via padded barcode, got %q", job.ChosenMBID)
		}
		if !slices.Equal(f.catalog.barcodeHits, []string{"602537803897", "0602537803897"}) {
			t.Errorf("unexpected lookup order %v", f.catalog.barcodeHits)
		}
	})

	t.Run("falls back to the marketplace", func(t *testing.T) {
		f := newFixture(t)
		f.marketplace.results["602537803897"] = []models.Release{{ID: "discogs:1", Title: "Thriller", ArtistCredit: "Michael Jackson"}}

		job, err := f.resolver.Resolve(context.Background(), newJob("602537803897"), settings)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if job.ChosenMBID != "discogs:1" {
			t.Errorf("expected marketplace release, got %q", job.ChosenMBID)
		}
	})

	t.Run("lookup failures are skipped per candidate", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.barcodeErr["602537803897"] = shared.NetworkError("timeout")
		f.marketplace.err = errors.New("discogs down")
		f.catalog.byBarcode["0602537803897"] = []models.Release{thriller}

		job, err := f.resolver.Resolve(context.Background(), newJob("602537803897"), settings)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if job.State != models.JobMatching {
			t.Errorf("expected matching, got %s", job.State)
		}
		if !strings.Contains(f.logs.String(), "marketplace barcode lookup failed") {
			t.Error("expected marketplace failure to be logged")
		}
	})

	t.Run("enrichment failure is fatal", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.byBarcode["602537803897"] = []models.Release{{ID: "mb-x", Title: "Unknown", ArtistCredit: "Nobody"}}
		f.ocr.lines = []string{"Michael Jackson", "Thriller"}
		f.catalog.search = []models.Release{thriller}

		_, err := f.resolver.Resolve(context.Background(), newJob("602537803897"), settings)
		if !errors.Is(err, shared.ErrAlbumNotFound) {
			t.Fatalf("expected ErrAlbumNotFound, got %v", err)
		}
		if f.ocr.calls != 0 || len(f.catalog.queries) != 0 {
			t.Error("text path must not run after a failed enrichment")
		}
	})
}

func TestResolveText(t *testing.T) {
	settings := models.DefaultSettings()

	t.Run("unique result is enriched", func(t *testing.T) {
		f := newFixture(t)
		f.ocr.lines = []string{"Michael Jackson", "Thriller (Remastered)"}
		f.catalog.search = []models.Release{thriller}

		job, err := f.resolver.Resolve(context.Background(), newJob(""), settings)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if job.State != models.JobMatching || job.ChosenSpotifyAlbumID != "sp-thriller" {
			t.Errorf("unexpected job %+v", job)
		}
		if !slices.Equal(job.OCRText, f.ocr.lines) {
			t.Errorf("OCR text should be cached on the job, got %v", job.OCRText)
		}
		want := catalog.ReleaseQuery{Artist: "Michael Jackson", Album: "Thriller"}
		if f.catalog.queries[0] != want {
			t.Errorf("unexpected query %+v", f.catalog.queries[0])
		}
	})

	t.Run("cached OCR text skips extraction", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.search = []models.Release{thriller}

		if _, err := f.resolver.Resolve(context.Background(), newJob("", "Michael Jackson - Thriller"), settings); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if f.ocr.calls != 0 {
			t.Errorf("expected no OCR call, got %d", f.ocr.calls)
		}
	})

	t.Run("three results need confirmation", func(t *testing.T) {
		f := newFixture(t)
		f.ocr.lines = []string{"Michael Jackson", "Thriller"}
		f.catalog.search = []models.Release{
			{ID: "a", Title: "Thriller", ArtistCredit: "Michael Jackson", Date: "1982"},
			{ID: "b", Title: "Thriller", ArtistCredit: "Michael Jackson", Label: "Epic"},
			{ID: "c", Title: "Thriller", ArtistCredit: "Michael Jackson"},
			{ID: "d", Title: "Thriller", ArtistCredit: "Michael Jackson"},
		}

		job, err := f.resolver.Resolve(context.Background(), newJob(""), settings)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if job.State != models.JobNeedsConfirm {
			t.Errorf("expected needsConfirm, got %s", job.State)
		}
		if len(job.Candidates) != 3 {
			t.Fatalf("expected 3 candidates, got %d", len(job.Candidates))
		}
		for i, c := range job.Candidates {
			if c.Score != 0.5 {
				t.Errorf("candidate %d: expected score 0.5, got %v", i, c.Score)
			}
			if c.ID == "" || c.ArtworkURL != catalog.CoverThumbURL(c.ReleaseID) {
				t.Errorf("candidate %d incomplete: %+v", i, c)
			}
		}
		if job.Candidates[0].Year != "1982" || job.Candidates[1].Label != "Epic" {
			t.Errorf("year and label not carried: %+v", job.Candidates[:2])
		}
		if job.ChosenMBID != "" {
			t.Error("chosen release must be empty while candidates are offered")
		}
		if len(f.streaming.calls) != 0 {
			t.Error("ambiguous matches must not be enriched")
		}
	})

	t.Run("OCR failure continues without text", func(t *testing.T) {
		f := newFixture(t)
		f.ocr.err = errors.New("ocr offline")

		_, err := f.resolver.Resolve(context.Background(), newJob(""), settings)
		if !errors.Is(err, shared.ErrNoConfidentMatch) {
			t.Errorf("expected ErrNoConfidentMatch, got %v", err)
		}
		if !strings.Contains(f.logs.String(), "text extraction failed") {
			t.Error("expected OCR failure to be logged")
		}
	})

	t.Run("search errors propagate", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.searchErr = shared.NetworkError("503")

		_, err := f.resolver.Resolve(context.Background(), newJob("", "Michael Jackson", "Thriller"), settings)
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})
}

func TestResolveVisual(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		matched  bool
	}{
		{name: "below threshold", distance: 3, matched: true},
		{name: "at threshold", distance: 13.5, matched: false},
		{name: "above threshold", distance: 20, matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.index.nearest = "mb-seen"
			f.index.distance = tt.distance

			job, err := f.resolver.Resolve(context.Background(), newJob(""), models.DefaultSettings())
			if !tt.matched {
				if !errors.Is(err, shared.ErrNoConfidentMatch) {
					t.Errorf("expected ErrNoConfidentMatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if job.State != models.JobNeedsConfirm || job.ChosenMBID != "mb-seen" {
				t.Errorf("expected tentative visual match, got %s / %q", job.State, job.ChosenMBID)
			}
			if job.ChosenSpotifyAlbumID != "" || len(job.Candidates) != 0 {
				t.Error("visual matches are never auto-confirmed")
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	settings := models.DefaultSettings()

	t.Run("picks a candidate", func(t *testing.T) {
		f := newFixture(t)
		job := newJob("")
		job.State = models.JobNeedsConfirm
		job.Candidates = []models.AlbumMatch{
			{ReleaseID: "a", Title: "Bad", Artist: "Nobody"},
			{ReleaseID: "mb-thriller", Title: "Thriller", Artist: "Michael Jackson"},
		}

		got, err := f.resolver.Confirm(context.Background(), job, "mb-thriller", settings)
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if got.State != models.JobMatching || got.ChosenSpotifyAlbumID != "sp-thriller" || len(got.Candidates) != 0 {
			t.Errorf("unexpected job %+v", got)
		}
	})

	t.Run("accepts the tentative visual match", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.releases = map[string]*models.Release{"mb-thriller": &thriller}
		job := newJob("")
		job.State = models.JobNeedsConfirm
		job.ChosenMBID = "mb-thriller"

		got, err := f.resolver.Confirm(context.Background(), job, "", settings)
		if err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
		if got.ChosenSpotifyAlbumID != "sp-thriller" {
			t.Errorf("expected album to be resolved, got %q", got.ChosenSpotifyAlbumID)
		}
	})

	t.Run("unknown release", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.resolver.Confirm(context.Background(), newJob(""), "missing", settings)
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("nothing to confirm", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.resolver.Confirm(context.Background(), newJob(""), "", settings)
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestNew(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, shared.ErrMissingConfig) {
		t.Errorf("expected ErrMissingConfig, got %v", err)
	}
}

func TestParseCandidate(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  Candidate
	}{
		{
			name:  "two lines are artist then album",
			lines: []string{"Thriller", "Michael Jackson"},
			want:  Candidate{Artist: "Thriller", Album: "Michael Jackson"},
		},
		{
			name:  "single line splits on hyphen",
			lines: []string{"Michael Jackson - Thriller"},
			want:  Candidate{Artist: "Michael Jackson", Album: "Thriller"},
		},
		{
			name:  "single line without hyphen",
			lines: []string{"Thriller"},
			want:  Candidate{Artist: "Thriller"},
		},
		{
			name:  "marketing suffixes and blanks are dropped",
			lines: []string{"  ", "Abbey Road (REMASTERED)", "(Deluxe)", "The Beatles (deluxe)"},
			want:  Candidate{Artist: "Abbey Road", Album: "The Beatles"},
		},
		{
			name:  "catalog number from any line",
			lines: []string{"Kind of Blue", "Miles Davis", "Columbia CL-1355"},
			want:  Candidate{Artist: "Kind of Blue", Album: "Miles Davis", CatalogNumber: "CL-1355"},
		},
		{
			name:  "catalog number without hyphen",
			lines: []string{"EPC85930"},
			want:  Candidate{Artist: "EPC85930", CatalogNumber: "EPC85930"},
		},
		{name: "empty", lines: nil, want: Candidate{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCandidate(tt.lines); got != tt.want {
				t.Errorf("ParseCandidate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBarcodeCandidates(t *testing.T) {
	tests := []struct {
		name    string
		barcode string
		want    []string
	}{
		{name: "UPC-A gains a leading zero", barcode: "602537803897", want: []string{"602537803897", "0602537803897"}},
		{name: "EAN-13 with leading zero loses it", barcode: "0602537803897", want: []string{"0602537803897", "602537803897"}},
		{name: "EAN-13 without leading zero", barcode: "5099902987620", want: []string{"5099902987620"}},
		{name: "non-digits are stripped", barcode: "6 02537-80389 7", want: []string{"602537803897", "0602537803897"}},
		{name: "other lengths", barcode: "12345678", want: []string{"12345678"}},
		{name: "no digits", barcode: "abc", want: []string{"abc"}},
		{name: "empty", barcode: " ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BarcodeCandidates(tt.barcode); !slices.Equal(got, tt.want) {
				t.Errorf("BarcodeCandidates(%q) = %v, want %v", tt.barcode, got, tt.want)
			}
		})
	}

	t.Run("no duplicates for any 12 or 13 digit code", func(t *testing.T) {
		for _, code := range []string{"000000000000", "0000000000000", "012345678905", "0012345678905"} {
			got := BarcodeCandidates(code)
			if got[0] != code {
				t.Errorf("%s: original must come first, got %v", code, got)
			}
			seen := map[string]bool{}
			for _, c := range got {
				if seen[c] {
					t.Errorf("%s: duplicate candidate %s", code, c)
				}
				seen[c] = true
			}
		}
	})
}
