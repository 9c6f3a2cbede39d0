// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file if missing, then initialize the history database",
		Action: r.Setup,
	}
}

// configCommand handles config file operations
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"cfg"},
		Usage:   "Create, show and edit the configuration file",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the default configuration file",
				Action: r.ConfigInit,
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ConfigShow,
			},
			{
				Name:  "set",
				Usage: "Set a dotted key (e.g. output.quality) and save",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.ConfigSet,
			},
			{
				Name:   "path",
				Usage:  "Print the configuration file path",
				Action: r.ConfigPath,
			},
		},
	}
}

// resolveCommand turns a link into its entry without downloading anything
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a Spotify or YouTube link and print its tracks",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "link"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Resolve,
	}
}

// downloadCommand resolves every link, queues the tracks and runs the worker pool
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download tracks, albums and playlists",
		ArgsUsage: "<link>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "parallelism",
				Aliases: []string{"p"},
				Usage:   "Number of workers (1-20), defaults to workers.parallelism",
			},
			&cli.StringFlag{
				Name:    "quality",
				Aliases: []string{"q"},
				Usage:   "Quality preset (mp3_128, mp3_256, mp3_320, ogg, m4a, flac)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Destination root folder",
			},
			&cli.StringFlag{
				Name:    "template",
				Aliases: []string{"t"},
				Usage:   "Filename template, e.g. \"$artist$ - $title$\"",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show the interactive progress monitor",
			},
			&cli.BoolFlag{
				Name:  "retry-failed",
				Usage: "Requeue failed tracks once the first pass finishes",
			},
			&cli.BoolFlag{
				Name:  "skip-downloaded",
				Usage: "Skip tracks the history already lists as done",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the history database",
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Write a JSON manifest of the run to this path (.csv writes CSV)",
			},
		},
		Action: r.Download,
	}
}

// historyCommand reads the download history database
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past downloads",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show downloads with this status (done, error)",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Only show downloads from this run ID",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of rows",
				Value: 50,
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Show totals instead of rows",
			},
			&cli.IntFlag{
				Name:  "prune-days",
				Usage: "Delete history older than this many days",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

func indexCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Write an m3u8 playlist index for a folder",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "folder"},
		},
		Action: r.Index,
	}
}

func inspectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the tags of an audio file",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Inspect,
	}
}
