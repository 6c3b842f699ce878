package repositories

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/discx/internal/shared"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters for the key derived from the secrets passphrase.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 32
	saltLen    = 16
)

// SecretRepository is the secure credential store: values are sealed with
// AES-256-GCM before they reach the database. The row key is bound as
// additional data so ciphertexts cannot be swapped between keys.
type SecretRepository struct {
	db   *sql.DB
	aead cipher.AEAD
}

// NewSecretRepository derives the encryption key from passphrase with argon2id and the
// database's salt, creating the salt on first use.
func NewSecretRepository(db *sql.DB, passphrase string) (*SecretRepository, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: secrets key is empty", shared.ErrMissingCredentials)
	}

	salt, err := loadSalt(db)
	if err != nil {
		return nil, err
	}

	key := argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &SecretRepository{db: db, aead: aead}, nil
}

// loadSalt returns the stored salt, generating and storing one if there is none.
func loadSalt(db *sql.DB) ([]byte, error) {
	fresh := make([]byte, saltLen)
	if _, err := rand.Read(fresh); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := db.Exec("INSERT OR IGNORE INTO secret_salt (id, salt) VALUES (1, ?)", fresh); err != nil {
		return nil, fmt.Errorf("failed to store salt: %w", err)
	}

	var salt []byte
	if err := db.QueryRow("SELECT salt FROM secret_salt WHERE id = 1").Scan(&salt); err != nil {
		return nil, fmt.Errorf("failed to load salt: %w", err)
	}
	return salt, nil
}

// Write stores value under key, replacing any previous value.
func (r *SecretRepository) Write(key string, value []byte) error {
	nonce := make([]byte, r.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := r.aead.Seal(nil, nonce, value, []byte(key))

	_, err := r.db.Exec(`
		INSERT INTO secrets (key, nonce, ciphertext, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET nonce = excluded.nonce, ciphertext = excluded.ciphertext, updated_at = excluded.updated_at
	`, key, nonce, sealed)
	if err != nil {
		return fmt.Errorf("failed to write secret %s: %w", key, err)
	}
	return nil
}

// Read returns the value stored under key, or [shared.ErrNotFound].
func (r *SecretRepository) Read(key string) ([]byte, error) {
	var nonce, sealed []byte
	err := r.db.QueryRow("SELECT nonce, ciphertext FROM secrets WHERE key = ?", key).Scan(&nonce, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: secret %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", key, err)
	}

	value, err := r.aead.Open(nil, nonce, sealed, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: secret %s could not be decrypted", shared.ErrInvalidConfig, key)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SecretRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM secrets WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete secret %s: %w", key, err)
	}
	return nil
}
