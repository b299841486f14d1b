// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tuttitracks/internal/tasks"
)

const version = "0.3.0"

// newApp builds the root command. --config and --verbose are inherited by every subcommand.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tuttitracks",
		Usage:   "Build playlists locally and push them to Spotify",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("TUTTI_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.before,
		After:    r.after,
		Commands: r.register(),
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Local username",
		Required: true,
		Sources:  cli.EnvVars("TUTTI_USER"),
	}
}

func idFlag(usage string) cli.Flag {
	return &cli.Int64Flag{Name: "id", Usage: usage, Required: true}
}

func outputFlags(prettyDefault bool) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: prettyDefault},
	}
}

func pageFlags(defaultLimit int) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: defaultLimit},
		&cli.IntFlag{Name: "offset", Usage: "Index of the first result"},
	}
}

// setupCommand handles setup operations for the database and configuration.
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
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
			{
				Name:  "config",
				Usage: "Write a config file from the template",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "user-dir", Usage: "Write to the per-user config directory instead of --config"},
					&cli.StringFlag{Name: "client-id", Usage: "Spotify client id", Sources: cli.EnvVars("TUTTI_SPOTIFY_CLIENT_ID")},
					&cli.StringFlag{Name: "client-secret", Usage: "Spotify client secret", Sources: cli.EnvVars("TUTTI_SPOTIFY_CLIENT_SECRET")},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (overrides server.host)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (overrides server.port)"},
		},
		Action: r.Serve,
	}
}

// usersCommand manages local accounts.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage local accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a local account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("TUTTI_PASSWORD")},
				},
				Action: r.UsersCreate,
			},
			{
				Name:   "show",
				Usage:  "Show a local account",
				Flags:  append([]cli.Flag{userFlag()}, outputFlags(true)...),
				Action: r.UsersShow,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "spotify",
				Usage: "Link a local account to Spotify using OAuth2",
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "no-browser", Usage: "Print the authorization URL instead of opening a browser"},
				},
				Action: r.AuthSpotify,
			},
		},
	}
}

// searchCommand searches the remote catalog.
func searchCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		userFlag(),
		&cli.StringFlag{Name: "artist", Usage: "Artist filter"},
		&cli.StringFlag{Name: "track", Usage: "Track name filter"},
		&cli.StringFlag{Name: "album", Usage: "Album filter"},
		&cli.StringFlag{Name: "genre", Usage: "Genre filter"},
		&cli.StringFlag{Name: "year", Usage: "Year or range (1990-1999)"},
	}
	flags = append(flags, pageFlags(tasks.DefaultSearchLimit)...)
	return &cli.Command{
		Name:   "search",
		Usage:  "Search Spotify tracks and cache the results",
		Flags:  append(flags, outputFlags(false)...),
		Action: r.Search,
	}
}

// likedCommand lists saved tracks.
func likedCommand(r *Runner) *cli.Command {
	flags := append([]cli.Flag{userFlag()}, pageFlags(tasks.DefaultLikedLimit)...)
	return &cli.Command{
		Name:   "liked",
		Usage:  "List liked tracks",
		Flags:  append(flags, outputFlags(false)...),
		Action: r.Liked,
	}
}

// topCommand lists most played tracks.
func topCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		userFlag(),
		&cli.StringFlag{Name: "time-range", Usage: "short_term, medium_term or long_term", Value: tasks.DefaultTimeRange},
	}
	flags = append(flags, pageFlags(tasks.DefaultTopLimit)...)
	return &cli.Command{
		Name:   "top",
		Usage:  "List top tracks",
		Flags:  append(flags, outputFlags(false)...),
		Action: r.Top,
	}
}

// remoteCommand lists the user's playlists on Spotify.
func remoteCommand(r *Runner) *cli.Command {
	flags := append([]cli.Flag{userFlag()}, pageFlags(20)...)
	return &cli.Command{
		Name:   "remote",
		Usage:  "List the user's playlists on Spotify",
		Flags:  append(flags, outputFlags(false)...),
		Action: r.RemotePlaylists,
	}
}

// tracksCommand inspects the local track cache.
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "Inspect cached tracks",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show a cached track with its audio features",
				Flags:  append([]cli.Flag{idFlag("Local track ID")}, outputFlags(true)...),
				Action: r.TracksShow,
			},
			{
				Name:  "enrich",
				Usage: "Fetch audio features for cached tracks",
				Flags: []cli.Flag{
					userFlag(),
					&cli.Int64SliceFlag{Name: "id", Usage: "Local track ID (repeatable)", Required: true},
				},
				Action: r.TracksEnrich,
			},
		},
	}
}

// playlistsCommand edits local playlists and pushes them.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Edit local playlists and push them to Spotify",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List a user's playlists",
				Flags:  append([]cli.Flag{userFlag()}, outputFlags(false)...),
				Action: r.PlaylistsList,
			},
			{
				Name:   "show",
				Usage:  "Show a playlist and its tracks in order",
				Flags:  append([]cli.Flag{idFlag("Playlist ID")}, outputFlags(true)...),
				Action: r.PlaylistsShow,
			},
			{
				Name:  "create",
				Usage: "Create a playlist",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "name", Usage: "Playlist name"},
					&cli.StringFlag{Name: "description", Usage: "Playlist description"},
					&cli.BoolFlag{Name: "private", Usage: "Make the playlist private"},
					&cli.BoolFlag{Name: "collaborative", Usage: "Make the playlist collaborative (implies private)"},
					&cli.Int64SliceFlag{Name: "track", Usage: "Local track ID to add (repeatable)"},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:  "add",
				Usage: "Append tracks, or insert them at --index",
				Flags: []cli.Flag{
					idFlag("Playlist ID"),
					&cli.Int64SliceFlag{Name: "track", Usage: "Local track ID (repeatable)", Required: true},
					&cli.IntFlag{Name: "index", Usage: "Insert position", Value: -1},
				},
				Action: r.PlaylistsAdd,
			},
			{
				Name:  "move",
				Usage: "Move the track at --from to --to",
				Flags: []cli.Flag{
					idFlag("Playlist ID"),
					&cli.IntFlag{Name: "from", Required: true},
					&cli.IntFlag{Name: "to", Required: true},
				},
				Action: r.PlaylistsMove,
			},
			{
				Name:  "remove",
				Usage: "Remove the first occurrence of --track, or the entry at --index",
				Flags: []cli.Flag{
					idFlag("Playlist ID"),
					&cli.Int64Flag{Name: "track", Usage: "Local track ID"},
					&cli.IntFlag{Name: "index", Usage: "Entry position", Value: -1},
				},
				Action: r.PlaylistsRemove,
			},
			{
				Name:   "delete",
				Usage:  "Delete a local playlist",
				Flags:  []cli.Flag{idFlag("Playlist ID")},
				Action: r.PlaylistsDelete,
			},
			{
				Name:  "push",
				Usage: "Push a playlist to Spotify, or every playlist of --user with --all",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Usage: "Playlist ID"},
					&cli.BoolFlag{Name: "all", Usage: "Push every playlist of --user"},
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Local username (with --all)"},
					&cli.BoolFlag{Name: "force", Usage: "Overwrite playlists changed on Spotify"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent pushes with --all", Value: 3},
				},
				Action: r.PlaylistsPush,
			},
			{
				Name:  "history",
				Usage: "Show the push history of a playlist",
				Flags: append([]cli.Flag{
					idFlag("Playlist ID"),
					&cli.IntFlag{Name: "limit", Value: 10},
				}, outputFlags(false)...),
				Action: r.PlaylistsHistory,
			},
			{
				Name:  "export",
				Usage: "Export playlists to files",
				Flags: []cli.Flag{
					&cli.Int64SliceFlag{Name: "id", Usage: "Playlist ID (repeatable)"},
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Export every playlist of this user"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, csv, markdown or txt", Value: "json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent exports", Value: 5},
				},
				Action: r.PlaylistsExport,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist editing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive playlist editor",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "log-file", Usage: "Log file while the editor runs", Value: "tuttitracks-tui.log"},
		},
		Action: r.TUI,
	}
}
