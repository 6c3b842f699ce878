package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/discx/internal/models"
)

// SettingsRepository stores [models.Settings] as one JSON record.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load returns the stored settings, or [models.DefaultSettings] when none were saved.
// Fields missing from the stored record keep their defaults.
func (r *SettingsRepository) Load() (models.Settings, error) {
	settings := models.DefaultSettings()

	var raw string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", models.SettingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return models.DefaultSettings(), fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

// Save validates and stores the settings.
func (r *SettingsRepository) Save(s models.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, s.Key(), string(data))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
