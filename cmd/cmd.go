// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
			{
				Name:  "config",
				Usage: "Write an example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the file to create",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the catalog session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in and store the session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Account username",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password",
						Sources: cli.EnvVars("CATX_PASSWORD"),
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "register",
				Usage: "Create an account and store its session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Account username", Required: true},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password", Sources: cli.EnvVars("CATX_PASSWORD")},
					&cli.StringFlag{Name: "fullname", Aliases: []string{"n"}, Usage: "Display name"},
				},
				Action: r.AuthRegister,
			},
			{
				Name:  "available",
				Usage: "Check whether a username or email is free",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Username to check"},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email to check"},
				},
				Action: r.AuthAvailable,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new session",
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the stored session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

func pageFlags(sortBy string) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "page",
			Usage: "Zero-based page number",
			Value: 0,
		},
		&cli.IntFlag{
			Name:  "size",
			Usage: "Page size",
			Value: 10,
		},
		&cli.StringFlag{
			Name:  "sort-by",
			Usage: "Field to sort by",
			Value: sortBy,
		},
		&cli.BoolFlag{
			Name:  "desc",
			Usage: "Sort descending",
		},
	}
}

// albumsCommand handles album operations
func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "albums",
		Aliases: []string{"album"},
		Usage:   "Album operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List one page of albums",
				Flags: append(pageFlags("title"),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, csv, markdown or json",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				),
				Action: r.AlbumsList,
			},
			{
				Name:  "get",
				Usage: "Show one album",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.StringFlag{
						Name:  "export",
						Usage: "Write a Markdown export (with cover) into this directory",
					},
				},
				Action: r.AlbumsGet,
			},
			{
				Name:  "search",
				Usage: "Search albums by title",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "term"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AlbumsSearch,
			},
			{
				Name:      "export",
				Usage:     "Export albums (all when no ids are given) to a directory",
				ArgsUsage: "[id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: markdown or json",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Output directory (default: catalog_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Album fetches per second",
						Value: 5,
					},
				},
				Action: r.AlbumsExport,
			},
			{
				Name:  "delete",
				Usage: "Delete an album",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.AlbumsDelete,
			},
		},
	}
}

// artistsCommand handles artist operations
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "artists",
		Aliases: []string{"artist"},
		Usage:   "Artist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List one page of artists",
				Flags: append(pageFlags("name"),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				),
				Action: r.ArtistsList,
			},
			{
				Name:  "get",
				Usage: "Show one artist and their albums",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ArtistsGet,
			},
		},
	}
}

// apiCommand handles direct, authorized API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct authorized calls to the catalog API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a path relative to the API base URL, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "POST a JSON body to a path relative to the API base URL",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "delete",
				Usage: "DELETE a path relative to the API base URL",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.APIDelete,
			},
		},
	}
}

// watchCommand streams live album notifications
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream live album notifications",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print each notification as JSON",
			},
			&cli.BoolFlag{
				Name:  "reload",
				Usage: "Reload and print the first album page after each notification",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Connect even when not attached to a terminal",
			},
		},
		Action: r.Watch,
	}
}

// serveCommand starts the local companion server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the local HTTP companion server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive catalog browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive album browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI owns the screen",
				Value: "./tmp/catx-tui.log",
			},
		},
		Action: r.TUI,
	}
}
