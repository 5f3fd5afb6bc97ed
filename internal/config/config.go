package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

// Config file names, looked up in the home directory and the search root.
const (
	KDLFileName  = ".tg.kdl"
	TOMLFileName = ".tg.toml"
)

const (
	DefaultMaxFileSize    = 0 // unlimited
	DefaultChunkBytes     = 64 * 1024 * 1024
	DefaultProbeTimeoutMs = 2000
	DefaultDebounceMs     = 300
	DefaultAccelCommand   = "tg-accel"
)

// ValidFormats lists the output formats understood by the CLI.
var ValidFormats = []string{"rg", "json", "csv", "table"}

type Config struct {
	Version     int
	Search      Search
	Walk        Walk
	Export      Export
	Accelerator Accelerator
	Output      Output
	Watch       Watch

	// Sources lists the config files that were applied, in order.
	Sources []string
}

type Search struct {
	IgnoreCase bool
	SmartCase  bool
	MaxCount   int // 0 = unlimited
	Threads    int // 0 = GOMAXPROCS
}

type Walk struct {
	Hidden         bool
	MaxDepth       int // 0 = unbounded
	RespectIgnore  bool
	FollowSymlinks bool
	SkipBinary     bool
	MaxFileSize    int64    // 0 = unlimited
	Globs          []string // doublestar patterns, "!" prefix excludes
	IgnoreFiles    []string // extra ignore-file names honored per directory
}

type Export struct {
	ChunkBytes int64
}

type Accelerator struct {
	Enabled        bool
	Command        string
	ProbeTimeoutMs int
}

type Output struct {
	Format       string
	WithFilename bool
}

type Watch struct {
	DebounceMs int
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Walk: Walk{
			RespectIgnore: true,
			SkipBinary:    true,
			MaxFileSize:   DefaultMaxFileSize,
		},
		Export: Export{ChunkBytes: DefaultChunkBytes},
		Accelerator: Accelerator{
			Enabled:        true,
			Command:        DefaultAccelCommand,
			ProbeTimeoutMs: DefaultProbeTimeoutMs,
		},
		Output: Output{Format: "rg"},
		Watch:  Watch{DebounceMs: DefaultDebounceMs},
	}
}

// Load builds the configuration for a search rooted at rootDir: defaults,
// then ~/.tg.kdl (or ~/.tg.toml), then the project file in rootDir.
// Scalars in later files override earlier ones; list values accumulate.
func Load(rootDir string) (*Config, error) {
	cfg := Default()

	homeDir, homeErr := os.UserHomeDir()
	if homeErr == nil {
		if err := applyDir(cfg, homeDir); err != nil {
			return nil, err
		}
	}

	if rootDir == "" {
		rootDir = "."
	}
	projectDir := configDir(rootDir)
	if homeErr != nil || !samePath(projectDir, homeDir) {
		if err := applyDir(cfg, projectDir); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configDir returns the directory whose config applies to target. A file
// target uses its parent directory.
func configDir(target string) string {
	info, err := os.Stat(target)
	if err == nil && !info.IsDir() {
		return filepath.Dir(target)
	}
	return target
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// applyDir applies the KDL config in dir, falling back to the TOML one.
func applyDir(cfg *Config, dir string) error {
	kdlPath := filepath.Join(dir, KDLFileName)
	if content, err := os.ReadFile(kdlPath); err == nil {
		if err := applyKDL(cfg, string(content)); err != nil {
			return fmt.Errorf("%s: %w", kdlPath, err)
		}
		cfg.Sources = append(cfg.Sources, kdlPath)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", kdlPath, err)
	}

	tomlPath := filepath.Join(dir, TOMLFileName)
	if content, err := os.ReadFile(tomlPath); err == nil {
		if err := applyTOML(cfg, content); err != nil {
			return fmt.Errorf("%s: %w", tomlPath, err)
		}
		cfg.Sources = append(cfg.Sources, tomlPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", tomlPath, err)
	}
	return nil
}

// Validate rejects values that cannot drive a search.
func (c *Config) Validate() error {
	if c.Walk.MaxDepth < 0 {
		return tgerrors.NewConfigError("walk.max_depth", fmt.Sprint(c.Walk.MaxDepth), fmt.Errorf("must not be negative"))
	}
	if c.Walk.MaxFileSize < 0 {
		return tgerrors.NewConfigError("walk.max_filesize", fmt.Sprint(c.Walk.MaxFileSize), fmt.Errorf("must not be negative"))
	}
	if c.Search.MaxCount < 0 {
		return tgerrors.NewConfigError("search.max_count", fmt.Sprint(c.Search.MaxCount), fmt.Errorf("must not be negative"))
	}
	if c.Search.Threads < 0 {
		return tgerrors.NewConfigError("search.threads", fmt.Sprint(c.Search.Threads), fmt.Errorf("must not be negative"))
	}
	if c.Export.ChunkBytes <= 0 {
		return tgerrors.NewConfigError("export.chunk_bytes", fmt.Sprint(c.Export.ChunkBytes), fmt.Errorf("must be positive"))
	}
	if c.Accelerator.ProbeTimeoutMs < 0 {
		return tgerrors.NewConfigError("accelerator.probe_timeout_ms", fmt.Sprint(c.Accelerator.ProbeTimeoutMs), fmt.Errorf("must not be negative"))
	}
	if !slices.Contains(ValidFormats, c.Output.Format) {
		return tgerrors.NewConfigError("output.format", c.Output.Format, fmt.Errorf("must be one of %v", ValidFormats))
	}
	if c.Watch.DebounceMs < 0 {
		return tgerrors.NewConfigError("watch.debounce_ms", fmt.Sprint(c.Watch.DebounceMs), fmt.Errorf("must not be negative"))
	}
	return nil
}

// appendUnique appends values not already present in dst.
func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
