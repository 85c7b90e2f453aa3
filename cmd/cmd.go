// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func idFlag(name, usage string, required bool) *cli.Int64Flag {
	return &cli.Int64Flag{Name: name, Usage: usage, Required: required}
}

// setupCommand handles setup operations for the configuration and local state database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the default configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the state database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead of applying pending ones",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles account and session operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage your Hatchly account session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password (prompted when omitted)"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "signup",
				Usage: "Create an account and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name"},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password (prompted when omitted)"},
				},
				Action: r.AuthSignup,
			},
			{
				Name:   "logout",
				Usage:  "End the session and forget local state",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show who is signed in",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:  "password",
				Usage: "Change the account password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "current", Usage: "Current password"},
					&cli.StringFlag{Name: "new", Usage: "New password (at least 6 characters)"},
					&cli.StringFlag{Name: "confirm", Usage: "New password again"},
				},
				Action: r.AuthPassword,
			},
		},
	}
}

// prawnsCommand handles prawn records
func prawnsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "prawns",
		Usage: "Manage prawn records",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List prawns",
				Flags:  append(jsonFlags(), idFlag("location", "Only prawns at this location ID", false)),
				Action: r.PrawnsList,
			},
			{
				Name:  "add",
				Usage: "Register a prawn",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Prawn name", Required: true},
					idFlag("location", "Location ID", true),
				},
				Action: r.PrawnsAdd,
			},
			{
				Name:  "rename",
				Usage: "Rename a prawn",
				Flags: []cli.Flag{
					idFlag("id", "Prawn ID", true),
					&cli.StringFlag{Name: "name", Usage: "New name", Required: true},
				},
				Action: r.PrawnsRename,
			},
			{
				Name:  "transfer",
				Usage: "Move a prawn to another location",
				Flags: []cli.Flag{
					idFlag("id", "Prawn ID", true),
					idFlag("location", "Destination location ID", true),
				},
				Action: r.PrawnsTransfer,
			},
			{
				Name:  "delete",
				Usage: "Delete a prawn and its prediction history",
				Flags: []cli.Flag{
					idFlag("id", "Prawn ID", true),
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password (prompted when omitted)"},
				},
				Action: r.PrawnsDelete,
			},
			{
				Name:   "select",
				Usage:  "Select the prawn later commands act on",
				Flags:  []cli.Flag{idFlag("id", "Prawn ID", true)},
				Action: r.PrawnsSelect,
			},
		},
	}
}

// locationsCommand handles hatchery locations
func locationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "locations",
		Aliases: []string{"loc"},
		Usage:   "Manage tanks and hatchery locations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List locations",
				Flags:  jsonFlags(),
				Action: r.LocationsList,
			},
			{
				Name:   "add",
				Usage:  "Add a location",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "name", Usage: "Location name", Required: true}},
				Action: r.LocationsAdd,
			},
			{
				Name:  "rename",
				Usage: "Rename a location",
				Flags: []cli.Flag{
					idFlag("id", "Location ID", true),
					&cli.StringFlag{Name: "name", Usage: "New name", Required: true},
				},
				Action: r.LocationsRename,
			},
			{
				Name:  "delete",
				Usage: "Delete a location",
				Flags: []cli.Flag{
					idFlag("id", "Location ID", true),
					idFlag("reassign-to", "Move the location's prawns here first", false),
				},
				Action: r.LocationsDelete,
			},
		},
	}
}

// predictCommand runs a hatch date prediction
func predictCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "predict",
		Usage: "Predict the hatch date from an egg image",
		Flags: append(jsonFlags(),
			idFlag("prawn", "Prawn ID (defaults to the selected prawn)", false),
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Image file to upload (png, jpg, gif)"},
			&cli.StringFlag{Name: "camera", Usage: "Capture from the local or remote camera"},
		),
		Action: r.Predict,
	}
}

// historyCommand handles prediction history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Prediction history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List predictions for a prawn",
				Flags: append(jsonFlags(),
					idFlag("prawn", "Prawn ID (defaults to the selected prawn)", false),
					&cli.StringFlag{Name: "since", Usage: "Only predictions on or after this date (M/D/YYYY, \"Jan 2, 2006\" or YYYY-MM-DD)"},
				),
				Action: r.HistoryList,
			},
			{
				Name:  "delete",
				Usage: "Delete a prediction record",
				Flags: []cli.Flag{
					idFlag("id", "Prediction record ID", true),
					idFlag("prawn", "Prawn ID (defaults to the selected prawn)", false),
				},
				Action: r.HistoryDelete,
			},
			{
				Name:  "export",
				Usage: "Export the prediction history of every prawn",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: hatchly_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
					},
					&cli.FloatFlag{
						Name:  "rate-limit",
						Usage: "Backend requests per second",
					},
					&cli.BoolFlag{
						Name:  "images",
						Usage: "Download each prawn's latest image into markdown exports",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:  "runs",
				Usage: "List recent exports",
				Flags: append(jsonFlags(), &cli.IntFlag{
					Name:  "limit",
					Usage: "Number of exports to show",
					Value: 10,
				}),
				Action: r.HistoryRuns,
			},
		},
	}
}

// dashboardCommand prints the dashboard summary
func dashboardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "dashboard",
		Usage:  "Show totals and upcoming hatches",
		Flags:  jsonFlags(),
		Action: r.Dashboard,
	}
}

// cameraCommand handles the networked camera
func cameraCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "camera",
		Usage: "Networked camera operations",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Check whether the networked camera is online",
				Flags:  jsonFlags(),
				Action: r.CameraStatus,
			},
			{
				Name:  "capture",
				Usage: "Save a still from the networked camera",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (extension added from the image type when omitted)",
						Value:   "capture",
					},
				},
				Action: r.CameraCapture,
			},
			{
				Name:   "stream",
				Usage:  "Open the live stream in the browser",
				Action: r.CameraStream,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive terminal UI",
		Action:  r.TUI,
	}
}
