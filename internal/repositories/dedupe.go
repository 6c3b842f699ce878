package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/discx/internal/models"
)

// DedupeRepository persists the (playlist, track) pairs already written.
type DedupeRepository struct {
	db *sql.DB
}

func NewDedupeRepository(db *sql.DB) *DedupeRepository {
	return &DedupeRepository{db: db}
}

// Insert records entries, ignoring pairs that are already present.
func (r *DedupeRepository) Insert(entries ...models.DedupeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return inTx(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare("INSERT OR IGNORE INTO dedupe_entries (playlist_id, track_uri) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare dedupe insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.Exec(e.PlaylistID, e.TrackURI); err != nil {
				return fmt.Errorf("failed to insert dedupe entry: %w", err)
			}
		}
		return nil
	})
}

// All returns every recorded pair.
func (r *DedupeRepository) All() ([]models.DedupeEntry, error) {
	return r.query("SELECT playlist_id, track_uri FROM dedupe_entries ORDER BY created_at, rowid")
}

// ForPlaylist returns the pairs recorded for one playlist.
func (r *DedupeRepository) ForPlaylist(playlistID string) ([]models.DedupeEntry, error) {
	return r.query("SELECT playlist_id, track_uri FROM dedupe_entries WHERE playlist_id = ? ORDER BY created_at, rowid", playlistID)
}

func (r *DedupeRepository) query(q string, args ...any) ([]models.DedupeEntry, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dedupe entries: %w", err)
	}
	defer rows.Close()

	var entries []models.DedupeEntry
	for rows.Next() {
		var e models.DedupeEntry
		if err := rows.Scan(&e.PlaylistID, &e.TrackURI); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
