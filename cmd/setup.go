package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/discx/internal/models"
	"github.com/desertthunder/discx/internal/repositories"
	"github.com/desertthunder/discx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, initializes the database and seeds settings.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				if err := shared.ApplyEnv(config); err != nil {
					r.logger.Warn("failed to apply environment", "error", err)
				}
				r.config = config
			}
		}
	}

	if err := r.config.Validate(); err != nil {
		r.logger.Warn("configuration incomplete", "error", err)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	settingsRepo := repositories.NewSettingsRepository(db)
	settings, err := settingsRepo.Load()
	if err != nil {
		return err
	}
	if settings.PlaylistID == "" && r.config.Jobs.PlaylistID != "" {
		settings.PlaylistID = r.config.Jobs.PlaylistID
	}
	defaults := models.DefaultSettings()
	if settings.Market == defaults.Market && r.config.Spotify.Market != "" {
		settings.Market = strings.ToUpper(r.config.Spotify.Market)
	}
	if settings.FeatureThreshold == defaults.FeatureThreshold && r.config.Vision.FeatureThreshold > 0 {
		settings.FeatureThreshold = r.config.Vision.FeatureThreshold
	}
	if err := settingsRepo.Save(settings); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	r.logger.Infof("setup complete for database: %v (schema v%d)", r.config.Database.Path, version)

	r.writePlain("%s Setup complete\n", styles.ok.Render("✓"))
	r.writePlainln("Next steps:")
	r.writePlain("1. Set spotify.client_id in %s (or DISCX_SPOTIFY_CLIENT_ID)\n", configPath)
	r.writePlain("2. Run 'discx auth login' to sign in\n")
	r.writePlain("3. Run 'discx settings set --playlist <link>' to choose the destination\n")
	return nil
}
