package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/standardbeagle/tgrep/internal/backend"
	"github.com/standardbeagle/tgrep/internal/config"
	"github.com/standardbeagle/tgrep/internal/output"
	"github.com/standardbeagle/tgrep/internal/search"
	"github.com/standardbeagle/tgrep/internal/watch"
)

// invocation is one resolved root-command search.
type invocation struct {
	query            search.Query
	target           string
	cfg              *config.Config
	formatter        output.Formatter
	count            bool
	filesWithMatches bool
	replace          *string
	forceCPU         bool
	progress         bool

	stdout io.Writer
	stderr io.Writer
	logger *log.Logger
}

func searchAction(state *backend.State) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("files") {
			return listFiles(c, c.Args().Slice())
		}

		inv, err := newInvocation(c)
		if err != nil {
			return err
		}
		if err := state.Init(inv.cfg, engineOptions(c, inv.cfg)); err != nil {
			return fatal(err)
		}
		defer func() {
			if err := state.Shutdown(); err != nil {
				inv.logger.Printf("WARNING: shutdown: %v", err)
			}
		}()

		if c.Bool("watch") {
			return inv.watch(c, state)
		}
		return inv.run(c.Context, state)
	}
}

func newInvocation(c *cli.Context) (*invocation, error) {
	args := c.Args().Slice()
	var pattern string
	if c.IsSet("regexp") {
		pattern = c.String("regexp")
	} else {
		if len(args) == 0 {
			_ = cli.ShowAppHelp(c)
			return nil, cli.Exit("tg: a pattern is required", 2)
		}
		pattern, args = args[0], args[1:]
	}

	target := "."
	switch len(args) {
	case 0:
	case 1:
		target = args[0]
	default:
		return nil, cli.Exit(fmt.Sprintf("tg: expected a single path, got %d", len(args)), 2)
	}

	cfg, err := loadConfig(c, target)
	if err != nil {
		return nil, fatal(err)
	}
	query := buildQuery(c, cfg, pattern)
	formatter, err := output.New(output.Options{
		Format:       cfg.Output.Format,
		WithFilename: cfg.Output.WithFilename,
		Context:      query.HasContext(),
	})
	if err != nil {
		return nil, fatal(err)
	}

	inv := &invocation{
		query:            query,
		target:           target,
		cfg:              cfg,
		formatter:        formatter,
		count:            c.Bool("count"),
		filesWithMatches: c.Bool("files-with-matches"),
		forceCPU:         c.Bool("force-cpu"),
		progress:         c.Bool("progress"),
		stdout:           c.App.Writer,
		stderr:           c.App.ErrWriter,
		logger:           log.New(c.App.ErrWriter, "tg: ", 0),
	}
	if c.IsSet("replace") {
		text := c.String("replace")
		inv.replace = &text
		if c.Bool("watch") {
			return nil, cli.Exit("tg: --replace cannot be combined with --watch", 2)
		}
	}
	// fail on a bad pattern before any file is touched
	if _, err := search.Compile(inv.query); err != nil {
		return nil, fatal(err)
	}
	return inv, nil
}

// run executes the invocation once. It returns errNoMatch when nothing was
// selected.
func (inv *invocation) run(ctx context.Context, state *backend.State) error {
	local, err := state.Local()
	if err != nil {
		return fatal(err)
	}

	out := bufio.NewWriter(inv.stdout)
	defer out.Flush()

	if inv.replace != nil {
		return inv.runReplace(ctx, local, out)
	}
	if inv.filesWithMatches {
		files, err := local.Engine().FilesWithMatches(ctx, inv.query, inv.target)
		if err != nil {
			return fatal(err)
		}
		for _, f := range files {
			fmt.Fprintln(out, f)
		}
		return matched(len(files))
	}

	req := backend.Request{Query: inv.query, Target: inv.target}
	d := backend.Select(ctx, local, state.Accelerator(), backend.SelectOptions{ForceCPU: inv.forceCPU}, req)
	if d.QueryType == backend.QueryAST {
		inv.logger.Printf("WARNING: %q looks like a structural query; use 'tg run --lang <lang>' to match it against syntax trees", inv.query.Pattern)
	}

	if d.Accelerated() {
		n, err := d.Backend.Count(ctx, req)
		if err == nil {
			if inv.count {
				fmt.Fprintln(out, output.FormatCount(n))
			} else {
				fmt.Fprintln(out, output.FormatFound(n))
			}
			return matched(n)
		}
		inv.logger.Printf("WARNING: accelerator failed, searching locally: %v", err)
	}

	engine := local.Engine()
	if inv.count {
		if inv.cfg.Output.Format == output.FormatRG && !inv.cfg.Output.WithFilename {
			n, err := local.Count(ctx, req)
			if err != nil {
				return fatal(err)
			}
			fmt.Fprintln(out, output.FormatCount(n))
			return matched(n)
		}
		counts, err := engine.CountPerFile(ctx, inv.query, inv.target)
		if err != nil {
			return fatal(err)
		}
		if err := inv.formatter.Counts(out, counts); err != nil {
			return fatal(err)
		}
		return matched(len(counts))
	}

	ms, err := engine.Search(ctx, inv.query, inv.target)
	if err != nil {
		return fatal(err)
	}
	if err := inv.formatter.Matches(out, ms); err != nil {
		return fatal(err)
	}
	return matched(search.Selected(ms))
}

func (inv *invocation) runReplace(ctx context.Context, local *backend.Local, out io.Writer) error {
	req := backend.Request{Query: inv.query, Target: inv.target}
	backend.Select(ctx, local, nil, backend.SelectOptions{ForceCPU: inv.forceCPU, Replace: true}, req)

	bar := newProgressBar(inv.stderr, inv.progress)
	stats, err := local.Engine().Replace(ctx, inv.query, *inv.replace, inv.target, search.ReplaceOptions{
		OnFile: func(string, int) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fatal(err)
	}

	fmt.Fprintf(out, "Replaced %d matches with %q in %d of %d files\n",
		stats.Replacements, *inv.replace, stats.FilesChanged, stats.FilesScanned)
	return matched(stats.Replacements)
}

// watch runs the search, then re-runs it after every batch of changes
// until interrupted.
func (inv *invocation) watch(c *cli.Context, state *backend.State) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := inv.run(ctx, state); err != nil && !errors.Is(err, errNoMatch) {
		return err
	}

	w, err := watch.New(inv.target, watch.Options{
		Debounce: watchDebounce(inv.cfg),
		Walk:     walkOptions(c, inv.cfg),
	}, func(b watch.Batch) {
		fmt.Fprintf(inv.stderr, "\n[%s] %d changed, searching again\n", time.Now().Format("15:04:05"), len(b.Events))
		if err := inv.run(ctx, state); err != nil && !errors.Is(err, errNoMatch) {
			inv.logger.Printf("WARNING: %s", errorMessage(err))
		}
	})
	if err != nil {
		return fatal(err)
	}
	if err := w.Run(ctx); err != nil {
		return fatal(err)
	}
	return nil
}

func matched(n int) error {
	if n == 0 {
		return errNoMatch
	}
	return nil
}

// newProgressBar returns a spinner on w, or nil when progress is off or w
// is not a terminal.
func newProgressBar(w io.Writer, enabled bool) *progressbar.ProgressBar {
	if !enabled {
		return nil
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Replacing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}
