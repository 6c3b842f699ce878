package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/discx/internal/models"
)

// FingerprintRepository persists visual fingerprints in insertion order.
type FingerprintRepository struct {
	db *sql.DB
}

func NewFingerprintRepository(db *sql.DB) *FingerprintRepository {
	return &FingerprintRepository{db: db}
}

// Insert appends a fingerprint for releaseID.
func (r *FingerprintRepository) Insert(fp models.Fingerprint) error {
	if fp.ReleaseID == "" || len(fp.Hash) == 0 {
		return fmt.Errorf("fingerprint requires a release id and hash")
	}
	if _, err := r.db.Exec("INSERT INTO fingerprints (release_id, hash) VALUES (?, ?)", fp.ReleaseID, fp.Hash); err != nil {
		return fmt.Errorf("failed to insert fingerprint: %w", err)
	}
	return nil
}

// All returns every fingerprint, oldest first.
func (r *FingerprintRepository) All() ([]models.Fingerprint, error) {
	rows, err := r.db.Query("SELECT release_id, hash FROM fingerprints ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	var out []models.Fingerprint
	for rows.Next() {
		var fp models.Fingerprint
		if err := rows.Scan(&fp.ReleaseID, &fp.Hash); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}
