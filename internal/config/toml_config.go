package config

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// tomlFile mirrors the KDL layout. Pointers distinguish "unset" from the
// zero value so a project file only overrides what it names.
type tomlFile struct {
	Version *int `toml:"version"`
	Search  struct {
		IgnoreCase *bool `toml:"ignore_case"`
		SmartCase  *bool `toml:"smart_case"`
		MaxCount   *int  `toml:"max_count"`
		Threads    *int  `toml:"threads"`
	} `toml:"search"`
	Walk struct {
		Hidden         *bool    `toml:"hidden"`
		MaxDepth       *int     `toml:"max_depth"`
		RespectIgnore  *bool    `toml:"respect_ignore"`
		FollowSymlinks *bool    `toml:"follow_symlinks"`
		SkipBinary     *bool    `toml:"skip_binary"`
		MaxFileSize    any      `toml:"max_filesize"`
		Globs          []string `toml:"glob"`
		IgnoreFiles    []string `toml:"ignore_file"`
	} `toml:"walk"`
	Export struct {
		ChunkBytes any `toml:"chunk_bytes"`
	} `toml:"export"`
	Accelerator struct {
		Enabled        *bool   `toml:"enabled"`
		Command        *string `toml:"command"`
		ProbeTimeoutMs *int    `toml:"probe_timeout_ms"`
	} `toml:"accelerator"`
	Output struct {
		Format       *string `toml:"format"`
		WithFilename *bool   `toml:"with_filename"`
	} `toml:"output"`
	Watch struct {
		DebounceMs *int `toml:"debounce_ms"`
	} `toml:"watch"`
}

// applyTOML overlays a .tg.toml document onto cfg.
func applyTOML(cfg *Config, content []byte) error {
	var f tomlFile
	if err := toml.Unmarshal(content, &f); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	setInt(&cfg.Version, f.Version)

	setBool(&cfg.Search.IgnoreCase, f.Search.IgnoreCase)
	setBool(&cfg.Search.SmartCase, f.Search.SmartCase)
	setInt(&cfg.Search.MaxCount, f.Search.MaxCount)
	setInt(&cfg.Search.Threads, f.Search.Threads)

	setBool(&cfg.Walk.Hidden, f.Walk.Hidden)
	setInt(&cfg.Walk.MaxDepth, f.Walk.MaxDepth)
	setBool(&cfg.Walk.RespectIgnore, f.Walk.RespectIgnore)
	setBool(&cfg.Walk.FollowSymlinks, f.Walk.FollowSymlinks)
	setBool(&cfg.Walk.SkipBinary, f.Walk.SkipBinary)
	if f.Walk.MaxFileSize != nil {
		size, err := tomlSize("walk.max_filesize", f.Walk.MaxFileSize)
		if err != nil {
			return err
		}
		cfg.Walk.MaxFileSize = size
	}
	cfg.Walk.Globs = appendUnique(cfg.Walk.Globs, f.Walk.Globs...)
	cfg.Walk.IgnoreFiles = appendUnique(cfg.Walk.IgnoreFiles, f.Walk.IgnoreFiles...)

	if f.Export.ChunkBytes != nil {
		size, err := tomlSize("export.chunk_bytes", f.Export.ChunkBytes)
		if err != nil {
			return err
		}
		cfg.Export.ChunkBytes = size
	}

	setBool(&cfg.Accelerator.Enabled, f.Accelerator.Enabled)
	if f.Accelerator.Command != nil {
		cfg.Accelerator.Command = *f.Accelerator.Command
	}
	setInt(&cfg.Accelerator.ProbeTimeoutMs, f.Accelerator.ProbeTimeoutMs)

	if f.Output.Format != nil {
		cfg.Output.Format = strings.ToLower(*f.Output.Format)
	}
	setBool(&cfg.Output.WithFilename, f.Output.WithFilename)

	setInt(&cfg.Watch.DebounceMs, f.Watch.DebounceMs)
	return nil
}

// tomlSize accepts integers and "64MB"-style strings.
func tomlSize(field string, v any) (int64, error) {
	switch s := v.(type) {
	case int64:
		return s, nil
	case string:
		size, err := parseSize(s)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q for %s: %w", s, field, err)
		}
		return size, nil
	default:
		return 0, fmt.Errorf("invalid size for %s: expected integer or string, got %T", field, v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
