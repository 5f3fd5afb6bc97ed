package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/tgrep/internal/ast"
	"github.com/standardbeagle/tgrep/internal/backend"
	"github.com/standardbeagle/tgrep/internal/columnar"
	"github.com/standardbeagle/tgrep/internal/debug"
	tgmcp "github.com/standardbeagle/tgrep/internal/mcp"
	"github.com/standardbeagle/tgrep/internal/output"
	"github.com/standardbeagle/tgrep/internal/walk"
)

func runCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "lang",
			Usage: "Grammar to parse with (python, go, javascript, typescript, tsx, rust, java, csharp, cpp, php, zig)",
			Value: "python",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Fail on files with syntax errors instead of querying the recovered tree",
		},
		&cli.BoolFlag{
			Name:  "langs",
			Usage: "List the supported grammars and exit",
		},
	}
	flags = append(flags, walkFlags()...)
	flags = append(flags, outputFlags()...)

	return &cli.Command{
		Name:      "run",
		Usage:     "Structural search with a tree-sitter query",
		ArgsUsage: "<pattern> [path]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			engine := ast.NewEngine(nil)
			if c.Bool("langs") {
				for _, id := range engine.Registry().IDs() {
					fmt.Fprintln(c.App.Writer, id)
				}
				return nil
			}

			pattern, target, err := patternAndPath(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c, target)
			if err != nil {
				return fatal(err)
			}
			formatter, err := output.New(output.Options{Format: cfg.Output.Format, WithFilename: cfg.Output.WithFilename})
			if err != nil {
				return fatal(err)
			}

			engine.Strict = c.Bool("strict")
			ms, err := engine.RunTarget(c.Context, c.String("lang"), pattern, target, walkOptions(c, cfg))
			if err != nil {
				return fatal(err)
			}

			out := bufio.NewWriter(c.App.Writer)
			defer out.Flush()
			if err := formatter.AST(out, ms); err != nil {
				return fatal(err)
			}
			if cfg.Output.Format == output.FormatRG {
				fmt.Fprintf(out, "Found %d structural matches.\n", len(ms))
			}
			return matched(len(ms))
		},
	}
}

// patternAndPath reads "<pattern> [path]" arguments.
func patternAndPath(c *cli.Context) (pattern, target string, err error) {
	args := c.Args().Slice()
	switch len(args) {
	case 0:
		return "", "", cli.Exit("tg: a pattern is required", 2)
	case 1:
		return args[0], ".", nil
	case 2:
		return args[0], args[1], nil
	default:
		return "", "", cli.Exit(fmt.Sprintf("tg: expected a pattern and at most one path, got %d arguments", len(args)), 2)
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Map a file as a zero-copy column of lines and report its chunking",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "chunk-bytes",
				Usage: "Value-byte budget per chunk (default from config, 64MB)",
			},
			&cli.IntFlag{
				Name:  "head",
				Usage: "Also print the first `N` values",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("tg: export takes exactly one file", 2)
			}
			path := c.Args().First()
			cfg, err := loadConfig(c, path)
			if err != nil {
				return fatal(err)
			}
			chunkBytes := cfg.Export.ChunkBytes
			if c.IsSet("chunk-bytes") {
				chunkBytes = c.Int64("chunk-bytes")
			}
			if chunkBytes <= 0 {
				return cli.Exit(fmt.Sprintf("tg: --chunk-bytes must be positive, got %d", chunkBytes), 2)
			}

			arr, err := columnar.Export(path)
			if err != nil {
				return fatal(err)
			}
			defer arr.Release()

			out := bufio.NewWriter(c.App.Writer)
			defer out.Flush()

			st := arr.Stats()
			fmt.Fprintf(out, "%s: %d values, %d value bytes (%d empty, %d invalid UTF-8, longest %d)\n",
				path, st.Values, st.ValueBytes, st.EmptyValues, st.InvalidUTF8, st.MaxValueLen)
			for i := 0; i < c.Int("head") && i < arr.Len(); i++ {
				fmt.Fprintf(out, "%d\t%s\n", i, arr.String(i))
			}

			chunks := columnar.NewChunks(arr, chunkBytes)
			defer chunks.Close()
			n, start := 0, 0
			for chunk := range chunks.All() {
				fmt.Fprintf(out, "chunk %d: values [%d, %d) %d bytes\n", n, start, start+chunk.Len(), chunk.ValueBytes())
				start += chunk.Len()
				n++
				chunk.Release()
			}
			return nil
		},
	}
}

func classifyCommand(state *backend.State) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify log lines with the accelerator's model",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("tg: classify takes exactly one file", 2)
			}
			file := c.Args().First()
			cfg, err := loadConfig(c, file)
			if err != nil {
				return fatal(err)
			}
			if err := state.Init(cfg, engineOptions(c, cfg)); err != nil {
				return fatal(err)
			}
			defer state.Shutdown()

			accel := state.Accelerator()
			if accel == nil {
				return cli.Exit("tg: classify requires the accelerator, which is disabled in config", 2)
			}
			if !accel.Available(c.Context) {
				return cli.Exit(fmt.Sprintf("tg: classify requires the accelerator (%s), which is not available", accel.Command()), 2)
			}
			out, err := accel.Classify(c.Context, file)
			if err != nil {
				return fatal(err)
			}
			fmt.Fprint(c.App.Writer, out)
			return nil
		},
	}
}

func mcpCommand(state *backend.State) *cli.Command {
	return &cli.Command{
		Name:      "mcp",
		Usage:     "Start an MCP (Model Context Protocol) server on stdio",
		ArgsUsage: "[root]",
		Flags:     walkFlags(),
		Action: func(c *cli.Context) error {
			// stdout carries the protocol
			debug.SetMCPMode(true)

			root := "."
			if c.NArg() > 0 {
				root = c.Args().First()
			}
			cfg, err := loadConfig(c, root)
			if err != nil {
				return fatal(err)
			}
			if err := state.Init(cfg, engineOptions(c, cfg)); err != nil {
				return fatal(err)
			}
			defer state.Shutdown()

			local, err := state.Local()
			if err != nil {
				return fatal(err)
			}
			srv, err := tgmcp.NewServer(local, state.Accelerator(), nil, walkOptions(c, cfg))
			if err != nil {
				return fatal(err)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fatal(err)
			}
			return nil
		},
	}
}

func filesCommand() *cli.Command {
	flags := append(walkFlags(), &cli.BoolFlag{
		Name:  "type-list",
		Usage: "Print the known file types and their globs",
	})
	return &cli.Command{
		Name:      "files",
		Usage:     "Print the files a search would visit",
		ArgsUsage: "[path...]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if c.Bool("type-list") {
				for _, name := range walk.TypeNames() {
					globs, _ := walk.TypeGlobs(name)
					fmt.Fprintf(c.App.Writer, "%s: %s\n", name, strings.Join(globs, ", "))
				}
				return nil
			}
			return listFiles(c, c.Args().Slice())
		},
	}
}

// listFiles prints every file the walk yields for each path.
func listFiles(c *cli.Context, paths []string) error {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	out := bufio.NewWriter(c.App.Writer)
	defer out.Flush()

	n := 0
	for _, p := range paths {
		cfg, err := loadConfig(c, p)
		if err != nil {
			return fatal(err)
		}
		opts := walkOptions(c, cfg)
		if walk.IsDir(p) {
			err = walk.ListFiles(p, opts, func(path string) error {
				n++
				_, err := fmt.Fprintln(out, path)
				return err
			})
		} else {
			var files []string
			files, err = walk.Resolve(p, opts)
			for _, f := range files {
				fmt.Fprintln(out, f)
			}
			n += len(files)
		}
		if err != nil {
			return fatal(err)
		}
	}
	return matched(n)
}
