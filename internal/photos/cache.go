package photos

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/shared"
)

// Backing is durable photo storage. Get returns [shared.ErrNotFound] for unknown keys.
type Backing interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Cache is a memory layer over an optional [Backing].
type Cache struct {
	backing Backing
	logger  *log.Logger

	mu  sync.RWMutex
	mem map[string][]byte
}

// NewCache creates a cache. A nil backing keeps photos in memory only.
func NewCache(backing Backing, logger *log.Logger) *Cache {
	return &Cache{
		backing: backing,
		logger:  shared.WithLogger(logger, "component", "photos"),
		mem:     make(map[string][]byte),
	}
}

// ValidKey reports whether key can name a photo: a single path element, no separators.
func ValidKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && filepath.Base(key) == key
}

// Put stores data under key in memory and in the backing store.
func (c *Cache) Put(ctx context.Context, key string, data []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: photo key %q", shared.ErrInvalidArgument, key)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: photo %s is empty", shared.ErrInvalidArgument, key)
	}

	if c.backing != nil {
		if err := c.backing.Put(ctx, key, data); err != nil {
			return fmt.Errorf("failed to store photo %s: %w", key, err)
		}
	}

	c.mu.Lock()
	c.mem[key] = data
	c.mu.Unlock()
	c.logger.Debug("photo stored", "key", key, "bytes", len(data))
	return nil
}

// Get returns the photo stored under key, reading through to the backing store on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	if c.backing == nil || !ValidKey(key) {
		return nil, fmt.Errorf("%w: photo %s", shared.ErrNotFound, key)
	}
	data, err := c.backing.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			c.logger.Warn("failed to read photo", "key", key, "error", err)
		}
		return nil, err
	}

	c.mu.Lock()
	c.mem[key] = data
	c.mu.Unlock()
	return data, nil
}

// Delete drops key from memory and the backing store.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()

	if c.backing == nil || !ValidKey(key) {
		return nil
	}
	return c.backing.Delete(ctx, key)
}

// Evict drops key from memory only.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()
}
