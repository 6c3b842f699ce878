package tasks

import (
	"sync"

	"github.com/desertthunder/discx/internal/models"
)

// DedupeSet tracks which track URIs were already added to which playlist.
//
// Reserve is an atomic insert-and-test: two concurrent jobs targeting the same playlist can
// never both reserve the same URI.
type DedupeSet struct {
	mu      sync.Mutex
	entries map[string]map[string]struct{}
}

// NewDedupeSet creates a set seeded with entries.
func NewDedupeSet(entries ...models.DedupeEntry) *DedupeSet {
	d := &DedupeSet{entries: make(map[string]map[string]struct{})}
	for _, e := range entries {
		d.add(e.PlaylistID, e.TrackURI)
	}
	return d
}

func (d *DedupeSet) add(playlistID, uri string) bool {
	tracks, ok := d.entries[playlistID]
	if !ok {
		tracks = make(map[string]struct{})
		d.entries[playlistID] = tracks
	}
	if _, seen := tracks[uri]; seen {
		return false
	}
	tracks[uri] = struct{}{}
	return true
}

// Reset replaces the contents of the set with entries.
func (d *DedupeSet) Reset(entries ...models.DedupeEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]map[string]struct{})
	for _, e := range entries {
		d.add(e.PlaylistID, e.TrackURI)
	}
}

// Reserve marks uris as added to playlistID and returns the ones that were not already present,
// in input order. Duplicates within uris are reserved once.
func (d *DedupeSet) Reserve(playlistID string, uris []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var fresh []string
	for _, uri := range uris {
		if uri != "" && d.add(playlistID, uri) {
			fresh = append(fresh, uri)
		}
	}
	return fresh
}

// Release forgets reservations that were never written.
func (d *DedupeSet) Release(playlistID string, uris ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tracks := d.entries[playlistID]
	for _, uri := range uris {
		delete(tracks, uri)
	}
}

// Contains reports whether uri is recorded for playlistID.
func (d *DedupeSet) Contains(playlistID, uri string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[playlistID][uri]
	return ok
}

// Len returns the number of (playlist, track) pairs.
func (d *DedupeSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, tracks := range d.entries {
		n += len(tracks)
	}
	return n
}
