package vision

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/desertthunder/discx/internal/models"
)

// FingerprintRecords is the durable side of a [FingerprintStore].
type FingerprintRecords interface {
	Insert(fp models.Fingerprint) error
	All() ([]models.Fingerprint, error)
}

// FingerprintStore indexes release fingerprints in insertion order.
type FingerprintStore struct {
	records FingerprintRecords

	mu     sync.Mutex
	loaded bool
	index  []models.Fingerprint
}

func NewFingerprintStore(records FingerprintRecords) *FingerprintStore {
	return &FingerprintStore{records: records}
}

// Store records hash as a fingerprint of releaseID.
func (s *FingerprintStore) Store(releaseID string, hash []byte) error {
	fp := models.Fingerprint{ReleaseID: releaseID, Hash: slices.Clone(hash)}
	if err := s.records.Insert(fp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		s.index = append(s.index, fp)
	}
	return nil
}

// NearestNeighbor returns the release whose fingerprint is closest to hash.
// ok is false when the store is empty.
func (s *FingerprintStore) NearestNeighbor(hash []byte) (releaseID string, distance float64, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		all, err := s.records.All()
		if err != nil {
			return "", 0, false, fmt.Errorf("failed to load fingerprints: %w", err)
		}
		s.index, s.loaded = all, true
	}

	distance = math.Inf(1)
	for _, fp := range s.index {
		// Strict comparison keeps the first-seen entry on ties.
		if d := Distance(hash, fp.Hash); d < distance {
			releaseID, distance, ok = fp.ReleaseID, d, true
		}
	}
	return releaseID, distance, ok, nil
}
