// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand creates the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and seed settings",
		Action: r.Setup,
	}
}

// authCommand handles the Spotify session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify sign-in and permissions",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in with Spotify in the browser",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the current session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:  "probe",
				Usage: "Check that a playlist can be written without changing it",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "playlist",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthProbe,
			},
		},
	}
}

// jobsCommand handles captured records
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Queue, process and inspect record captures",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Queue a record by barcode, cover photo or cover text",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "barcode",
						Aliases: []string{"b"},
						Usage:   "UPC/EAN printed on the sleeve",
					},
					&cli.StringFlag{
						Name:    "photo",
						Aliases: []string{"p"},
						Usage:   "Path to a photo of the cover",
					},
					&cli.StringSliceFlag{
						Name:    "text",
						Aliases: []string{"t"},
						Usage:   "Cover text, one line per flag (artist first, then title)",
					},
					&cli.BoolFlag{
						Name:  "process",
						Usage: "Process the job immediately",
					},
				},
				Action: r.JobsAdd,
			},
			{
				Name:  "list",
				Usage: "List jobs, most recent first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "state",
						Usage: "Only show jobs in this state",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "show",
				Usage: "Show one job and its candidates",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsShow,
			},
			{
				Name:      "process",
				Usage:     "Match pending jobs and add their tracks to the playlist",
				UsageText: "discx jobs process [id]\n\nWith an id, runs that job again even if it failed.",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.JobsProcess,
			},
			{
				Name:  "confirm",
				Usage: "Choose the release for a job awaiting confirmation",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "release",
						Aliases: []string{"r"},
						Usage:   "Release id from the job's candidates (defaults to the tentative match)",
					},
				},
				Action: r.JobsConfirm,
			},
			{
				Name:  "remove",
				Usage: "Delete a job and its photo",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.JobsRemove,
			},
			{
				Name:  "export",
				Usage: "Export job history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (stdout when empty)",
					},
				},
				Action: r.JobsExport,
			},
		},
	}
}

// settingsCommand handles sync preferences
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Destination playlist and matching preferences",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show current settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SettingsShow,
			},
			{
				Name:  "set",
				Usage: "Change settings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Destination playlist id, URI or share link",
					},
					&cli.StringFlag{
						Name:  "market",
						Usage: "Two-letter market code for album search",
					},
					&cli.FloatFlag{
						Name:  "threshold",
						Usage: "Maximum fingerprint distance for a visual match",
					},
				},
				Action: r.SettingsSet,
			},
		},
	}
}

// watchCommand runs background processing
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Process jobs in the background and import photos from a folder",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "inbox",
				Usage: "Folder to import cover photos from",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Resume interval (defaults to jobs.resume_interval)",
			},
		},
		Action: r.Watch,
	}
}
