package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/shared"
)

const (
	sessionKey   = "spotify.session"
	reconsentKey = "spotify.reconsent"
)

// SecretStore is the at-rest credential store.
//
// Read returns [shared.ErrNotFound] for a missing key.
type SecretStore interface {
	Write(key string, value []byte) error
	Read(key string) ([]byte, error)
	Delete(key string) error
}

func loadSession(store SecretStore) (*models.AuthSession, error) {
	data, err := store.Read(sessionKey)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s models.AuthSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: stored session: %v", shared.ErrParsing, err)
	}
	return &s, nil
}

func saveSession(store SecretStore, s *models.AuthSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return store.Write(sessionKey, data)
}

func loadReconsent(store SecretStore) ([]string, error) {
	data, err := store.Read(reconsentKey)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var scopes []string
	if err := json.Unmarshal(data, &scopes); err != nil {
		return nil, fmt.Errorf("%w: stored reconsent scopes: %v", shared.ErrParsing, err)
	}
	return scopes, nil
}

func saveReconsent(store SecretStore, scopes []string) error {
	if len(scopes) == 0 {
		return store.Delete(reconsentKey)
	}
	data, err := json.Marshal(scopes)
	if err != nil {
		return err
	}
	return store.Write(reconsentKey, data)
}

// MemoryStore is an in-process [SecretStore], used when no secrets key is configured and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Write(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Read(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: secret %s", shared.ErrNotFound, key)
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
