package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/discx/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser sign-in and stores the session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open(ctx)
	if err != nil {
		return err
	}

	if pending := d.auth.PendingReconsent(); len(pending) > 0 {
		r.writePlain("Requesting additional permissions: %s\n", strings.Join(pending, ", "))
	}

	session, err := d.auth.SignIn(ctx)
	switch {
	case errors.Is(err, shared.ErrAuthCancelled):
		return r.writePlain("%s Sign-in cancelled\n", styles.warn.Render("!"))
	case err != nil:
		return err
	}

	r.writePlain("%s Signed in to Spotify\n", styles.ok.Render("✓"))
	r.writePlain("Scopes: %s\n", strings.Join(session.Scopes, ", "))
	return nil
}

type authStatus struct {
	State            string    `json:"state"`
	Expiry           time.Time `json:"expiry,omitzero"`
	Scopes           []string  `json:"scopes"`
	PendingReconsent []string  `json:"pending_reconsent"`
}

// AuthStatus shows the current session without contacting Spotify.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open(ctx)
	if err != nil {
		return err
	}

	status := authStatus{
		State:            d.auth.State().String(),
		Scopes:           d.auth.GrantedScopes(),
		PendingReconsent: d.auth.PendingReconsent(),
	}
	if session, ok := d.auth.Session(); ok {
		status.Expiry = session.Expiry
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Spotify session")
	if status.State == "unauthenticated" {
		r.writePlain("Status: %s\n", styles.err.Render("✗ Not signed in"))
		return r.writePlain("%s\n", styles.help.Render("Run 'discx auth login' to sign in"))
	}
	r.writePlain("Status: %s\n", styles.ok.Render("✓ "+status.State))
	r.writePlain("Access token expires: %s\n", status.Expiry.Local().Format(time.DateTime))
	r.writePlain("Scopes: %s\n", strings.Join(status.Scopes, ", "))
	if len(status.PendingReconsent) > 0 {
		r.writePlain("Needs re-consent: %s\n", styles.warn.Render(strings.Join(status.PendingReconsent, ", ")))
	}
	return nil
}

// AuthLogout forgets the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open(ctx)
	if err != nil {
		return err
	}
	if err := d.auth.SignOut(); err != nil {
		return err
	}
	return r.writePlain("%s Signed out\n", styles.ok.Render("✓"))
}

// AuthProbe checks write access to a playlist, defaulting to the configured destination.
func (r *Runner) AuthProbe(ctx context.Context, cmd *cli.Command) error {
	d, err := r.open(ctx)
	if err != nil {
		return err
	}

	playlist := cmd.StringArg("playlist")
	if playlist == "" {
		settings, err := d.settings.Load()
		if err != nil {
			return err
		}
		playlist = settings.PlaylistID
	}
	if playlist == "" {
		return fmt.Errorf("%w: playlist (argument or 'discx settings set --playlist')", shared.ErrMissingArgument)
	}

	probe, err := d.spotify.ProbeWriteAccess(ctx, playlist)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(probe, true)
	}

	r.writePlainHeader("Playlist " + probe.PlaylistID)
	check := func(ok bool) string {
		if ok {
			return styles.ok.Render("✓")
		}
		return styles.err.Render("✗")
	}
	r.writePlain("%s Owner or collaborator\n", check(probe.OwnershipOrCollaborativeAccess))
	r.writePlain("%s Write scopes granted\n", check(probe.HasRequiredWriteScopes))
	if len(probe.MissingWriteScopes) > 0 {
		r.writePlain("  missing: %s\n", strings.Join(probe.MissingWriteScopes, ", "))
	}
	r.writePlain("%s Can write\n", check(probe.CanWrite))
	if probe.Details != "" {
		r.writePlain("%s\n", styles.help.Render(probe.Details))
	}
	return nil
}
