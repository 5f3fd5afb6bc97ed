package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/tgrep/internal/config"
	"github.com/standardbeagle/tgrep/internal/output"
	"github.com/standardbeagle/tgrep/internal/search"
	"github.com/standardbeagle/tgrep/internal/walk"
)

// loadConfig loads the layered configuration for target and applies the
// command-line overrides on top of it.
func loadConfig(c *cli.Context, target string) (*config.Config, error) {
	cfg, err := config.Load(target)
	if err != nil {
		return nil, err
	}

	if c.IsSet("ignore-case") {
		cfg.Search.IgnoreCase = c.Bool("ignore-case")
	}
	if c.IsSet("smart-case") {
		cfg.Search.SmartCase = c.Bool("smart-case")
	}
	if c.IsSet("max-count") {
		cfg.Search.MaxCount = c.Int("max-count")
	}
	if c.IsSet("threads") {
		cfg.Search.Threads = c.Int("threads")
	}
	if c.IsSet("hidden") {
		cfg.Walk.Hidden = c.Bool("hidden")
	}
	if c.IsSet("max-depth") {
		cfg.Walk.MaxDepth = c.Int("max-depth")
	}
	if c.Bool("no-ignore") {
		cfg.Walk.RespectIgnore = false
	}
	if globs := c.StringSlice("glob"); len(globs) > 0 {
		cfg.Walk.Globs = append(cfg.Walk.Globs, globs...)
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.Bool("json") {
		cfg.Output.Format = output.FormatJSON
	}
	if c.IsSet("with-filename") {
		cfg.Output.WithFilename = c.Bool("with-filename")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func walkOptions(c *cli.Context, cfg *config.Config) walk.Options {
	return walk.Options{
		Hidden:         cfg.Walk.Hidden,
		MaxDepth:       cfg.Walk.MaxDepth,
		FollowSymlinks: cfg.Walk.FollowSymlinks,
		RespectIgnore:  cfg.Walk.RespectIgnore,
		Globs:          cfg.Walk.Globs,
		IgnoreFiles:    cfg.Walk.IgnoreFiles,
		Types:          c.StringSlice("type"),
		TypesNot:       c.StringSlice("type-not"),
		MaxFileSize:    cfg.Walk.MaxFileSize,
		SkipBinary:     cfg.Walk.SkipBinary,
	}
}

func buildQuery(c *cli.Context, cfg *config.Config, pattern string) search.Query {
	q := search.Query{
		Pattern:    pattern,
		Mode:       search.ModeRegex,
		IgnoreCase: cfg.Search.IgnoreCase,
		SmartCase:  cfg.Search.SmartCase,
		Invert:     c.Bool("invert-match"),
		WordRegexp: c.Bool("word-regexp"),
		LineRegexp: c.Bool("line-regexp"),
		MaxCount:   cfg.Search.MaxCount,
	}
	if c.Bool("fixed-strings") {
		q.Mode = search.ModeLiteral
	}
	// -A and -B take precedence over -C for their side
	q.Before, q.After = c.Int("context"), c.Int("context")
	if c.IsSet("before-context") {
		q.Before = c.Int("before-context")
	}
	if c.IsSet("after-context") {
		q.After = c.Int("after-context")
	}
	return q
}

func engineOptions(c *cli.Context, cfg *config.Config) search.Options {
	return search.Options{Threads: cfg.Search.Threads, Walk: walkOptions(c, cfg)}
}

func watchDebounce(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
}
