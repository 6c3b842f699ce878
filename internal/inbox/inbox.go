// package inbox turns image files dropped into a folder into queued jobs
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay unchanged before it is imported.
const DefaultDebounce = 500 * time.Millisecond

// importedDir is the subfolder imported files are moved into.
const importedDir = "imported"

var (
	barcodeStem = regexp.MustCompile(`^\d{8,14}$`)
	imageExts   = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
)

// Enqueuer accepts new jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job models.Job, photo []byte) (models.Job, error)
}

// Options configures a [Watcher].
type Options struct {
	Dir      string
	Enqueuer Enqueuer
	Debounce time.Duration
	Logger   *log.Logger
}

// Watcher imports image files from a folder, once when it starts and then as files appear.
//
// Imported files are moved into the folder's "imported" subfolder. A file whose name (without
// extension) is 8 to 14 digits is queued with that barcode.
type Watcher struct {
	dir      string
	enqueuer Enqueuer
	debounce time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for opts.Dir, creating it if needed.
func NewWatcher(opts Options) (*Watcher, error) {
	if opts.Dir == "" || opts.Enqueuer == nil {
		return nil, shared.WrapErr(shared.ErrMissingConfig, "inbox requires a folder and an enqueuer")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if err := os.MkdirAll(filepath.Join(opts.Dir, importedDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create inbox: %w", err)
	}

	return &Watcher{
		dir:      opts.Dir,
		enqueuer: opts.Enqueuer,
		debounce: opts.Debounce,
		logger:   shared.WithLogger(opts.Logger, "component", "inbox", "dir", opts.Dir),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(path)))
}

// BarcodeFromName returns the barcode encoded in a file name, or "".
func BarcodeFromName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if barcodeStem.MatchString(stem) {
		return stem
	}
	return ""
}

// Import queues the image at path and moves it out of the inbox.
func (w *Watcher) Import(ctx context.Context, path string) (models.Job, error) {
	if !IsImage(path) {
		return models.Job{}, shared.WrapErr(shared.ErrInvalidArgument, "%s is not a supported image", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Job{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return models.Job{}, shared.WrapErr(shared.ErrInvalidArgument, "%s is empty", filepath.Base(path))
	}

	job, err := w.enqueuer.Enqueue(ctx, models.Job{Barcode: BarcodeFromName(path)}, data)
	if err != nil {
		return job, err
	}

	dest := filepath.Join(w.dir, importedDir, job.ID+"-"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.logger.Warn("failed to move imported file", "file", path, "error", err)
	}
	w.logger.Info("imported photo", "file", filepath.Base(path), "job", job.ID, "barcode", job.Barcode)
	return job, nil
}

// Scan imports every image already in the inbox and returns how many were queued.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read inbox: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if _, err := w.Import(ctx, filepath.Join(w.dir, e.Name())); err != nil {
			w.logger.Error("failed to import", "file", e.Name(), "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// Run scans the inbox, then imports new files until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	if n, err := w.Scan(ctx); err != nil {
		return err
	} else if n > 0 {
		w.logger.Info("imported existing files", "count", n)
	}

	defer w.stop()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// schedule imports path once it has been quiet for the debounce delay.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !IsImage(path) || filepath.Dir(path) != filepath.Clean(w.dir) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok && timer.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()

		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.Import(ctx, path); err != nil {
			w.logger.Error("failed to import", "file", filepath.Base(path), "error", err)
		}
	})
}

// stop cancels pending imports and waits for running ones.
func (w *Watcher) stop() {
	w.mu.Lock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
