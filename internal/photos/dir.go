package photos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/discx/internal/shared"
)

// DirBacking keeps one file per photo in a directory.
type DirBacking struct {
	dir string
}

// NewDirBacking creates dir if needed.
func NewDirBacking(dir string) (*DirBacking, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: photos dir", shared.ErrMissingConfig)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photos dir: %w", err)
	}
	return &DirBacking{dir: dir}, nil
}

// Put writes through a temporary file so readers never see a partial photo.
func (d *DirBacking) Put(ctx context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(d.dir, "."+key+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(d.dir, key))
}

func (d *DirBacking) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: photo %s", shared.ErrNotFound, key)
	}
	return data, err
}

func (d *DirBacking) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(d.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
