package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/discx/internal/services"
	"github.com/desertthunder/discx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SettingsShow prints the effective settings.
func (r *Runner) SettingsShow(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open(ctx)
	if err != nil {
		return err
	}
	settings, err := d.settings.Load()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(settings, true)
	}

	r.writePlainHeader("Settings")
	playlist := styles.warn.Render("not set")
	if id, ok := services.NormalizePlaylistID(settings.PlaylistID); ok {
		playlist = id
	}
	r.writePlain("Playlist: %s\n", playlist)
	r.writePlain("Market: %s\n", settings.Market)
	r.writePlain("Visual match threshold: %g\n", settings.FeatureThreshold)
	return nil
}

// SettingsSet updates the flags that were given and saves.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	if !cmd.IsSet("playlist") && !cmd.IsSet("market") && !cmd.IsSet("threshold") {
		return fmt.Errorf("%w: one of --playlist, --market or --threshold", shared.ErrMissingArgument)
	}

	d, err := r.open(ctx)
	if err != nil {
		return err
	}
	settings, err := d.settings.Load()
	if err != nil {
		return err
	}

	if cmd.IsSet("playlist") {
		raw := cmd.String("playlist")
		id, ok := services.NormalizePlaylistID(raw)
		if raw != "" && !ok {
			return fmt.Errorf("%w: %q", shared.ErrInvalidPlaylistID, raw)
		}
		settings.PlaylistID = id
	}
	if cmd.IsSet("market") {
		settings.Market = strings.ToUpper(cmd.String("market"))
	}
	if cmd.IsSet("threshold") {
		settings.FeatureThreshold = cmd.Float("threshold")
	}

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if err := d.settings.Save(settings); err != nil {
		return err
	}
	return r.writePlain("%s Settings saved\n", styles.ok.Render("✓"))
}
