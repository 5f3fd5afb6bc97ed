package main

import (
	"github.com/urfave/cli/v2"
)

// walkFlags select the files a command visits.
func walkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "glob",
			Aliases: []string{"g"},
			Usage:   "Include files matching `GLOB`; a leading '!' excludes",
		},
		&cli.StringSliceFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "Only search files of `TYPE` (see 'tg files --type-list')",
		},
		&cli.StringSliceFlag{
			Name:    "type-not",
			Aliases: []string{"T"},
			Usage:   "Do not search files of `TYPE`",
		},
		&cli.BoolFlag{
			Name:  "hidden",
			Usage: "Search hidden files and directories",
		},
		&cli.IntFlag{
			Name:    "max-depth",
			Aliases: []string{"d"},
			Usage:   "Descend at most `NUM` directories (0 = unlimited)",
		},
		&cli.BoolFlag{
			Name:  "no-ignore",
			Usage: "Do not honor .gitignore, .ignore, .rgignore or global excludes",
		},
	}
}

// outputFlags choose how results are printed.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Usage: "Output format: rg, json, csv or table",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Shorthand for --format json",
		},
		&cli.BoolFlag{
			Name:    "with-filename",
			Aliases: []string{"H"},
			Usage:   "Prefix each line with its file path",
		},
	}
}

func searchFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "regexp",
			Aliases: []string{"e"},
			Usage:   "Pattern to search for; every positional argument is then a path",
		},
		&cli.BoolFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Print the number of matching lines instead of the lines",
		},
		&cli.BoolFlag{
			Name:    "fixed-strings",
			Aliases: []string{"F"},
			Usage:   "Treat the pattern as a literal string",
		},
		&cli.BoolFlag{
			Name:    "invert-match",
			Aliases: []string{"v"},
			Usage:   "Select lines that do not match",
		},
		&cli.BoolFlag{
			Name:    "ignore-case",
			Aliases: []string{"i"},
			Usage:   "Case-insensitive search",
		},
		&cli.BoolFlag{
			Name:    "smart-case",
			Aliases: []string{"S"},
			Usage:   "Case-insensitive unless the pattern has an uppercase letter",
		},
		&cli.BoolFlag{
			Name:    "word-regexp",
			Aliases: []string{"w"},
			Usage:   "Only match whole words",
		},
		&cli.BoolFlag{
			Name:    "line-regexp",
			Aliases: []string{"x"},
			Usage:   "Only match whole lines",
		},
		&cli.IntFlag{
			Name:    "max-count",
			Aliases: []string{"m"},
			Usage:   "Stop after NUM matching lines per file (0 = unlimited)",
		},
		&cli.IntFlag{
			Name:    "after-context",
			Aliases: []string{"A"},
			Usage:   "Show `NUM` lines after each match",
		},
		&cli.IntFlag{
			Name:    "before-context",
			Aliases: []string{"B"},
			Usage:   "Show `NUM` lines before each match",
		},
		&cli.IntFlag{
			Name:    "context",
			Aliases: []string{"C"},
			Usage:   "Show `NUM` lines before and after each match",
		},
		&cli.StringFlag{
			Name:  "replace",
			Usage: "Replace every match in place with `TEXT` ($1, ${name} expand in regex mode)",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Show a progress bar on stderr while replacing",
		},
		&cli.BoolFlag{
			Name:  "force-cpu",
			Usage: "Never hand the search to the accelerator",
		},
		&cli.BoolFlag{
			Name:    "files-with-matches",
			Aliases: []string{"l"},
			Usage:   "Print only the paths of files with at least one match",
		},
		&cli.BoolFlag{
			Name:  "files",
			Usage: "Print the files that would be searched and exit",
		},
		&cli.IntFlag{
			Name:    "threads",
			Aliases: []string{"j"},
			Usage:   "Worker count (0 = number of CPUs)",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "Re-run the search whenever the target changes",
		},
		&cli.BoolFlag{
			Name:   "debug-log",
			Usage:  "Write debug output to a log file under the temp directory",
			Hidden: true,
		},
		&cli.StringFlag{
			Name:   "profile-cpu",
			Usage:  "Write a CPU profile to `FILE`",
			Hidden: true,
		},
	}
	flags = append(flags, walkFlags()...)
	return append(flags, outputFlags()...)
}
