package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/tgrep/internal/backend"
	"github.com/standardbeagle/tgrep/internal/debug"
	"github.com/standardbeagle/tgrep/internal/version"
)

// errNoMatch exits 1 without a message, like grep and rg.
var errNoMatch = cli.Exit("", 1)

func init() {
	// -v is invert-match, as in grep
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, version.Current())
	}
}

func main() {
	app := newApp(backend.Process(), os.Stdout, os.Stderr)
	err := app.Run(interspersed(app, os.Args))
	if msg := errorMessage(err); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(exitCode(err))
}

// exitCode maps an action's error to the process status: 0 on success, 1
// when nothing matched, 2 for anything fatal.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 2
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return strings.TrimSpace(fmt.Sprint(ec))
	}
	return "tg: " + err.Error()
}

// fatal wraps an invocation-fatal error for exit status 2.
func fatal(err error) error {
	return cli.Exit("tg: "+err.Error(), 2)
}

func newApp(state *backend.State, stdout, stderr io.Writer) *cli.App {
	var cpuProfile *os.File

	return &cli.App{
		Name:                   "tg",
		Usage:                  "Fast line search, structural code search and columnar export",
		UsageText:              "tg [flags] <pattern> [path]\n   tg [flags] -e <pattern> [path]\n   tg <command> [flags] [args]",
		Version:                version.Current().Short(),
		UseShortOptionHandling: true,
		Writer:                 stdout,
		ErrWriter:              stderr,
		// exit codes are mapped by main so tests can run the app in-process
		ExitErrHandler: func(*cli.Context, error) {},
		Flags:          searchFlags(),
		Action:         searchAction(state),
		Commands: []*cli.Command{
			runCommand(),
			exportCommand(),
			classifyCommand(state),
			mcpCommand(state),
			filesCommand(),
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return fatal(err)
				}
				fmt.Fprintf(c.App.ErrWriter, "debug log: %s\n", path)
			}
			if path := c.String("profile-cpu"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fatal(fmt.Errorf("failed to create CPU profile: %w", err))
				}
				if err := pprof.StartCPUProfile(f); err != nil {
					f.Close()
					return fatal(fmt.Errorf("failed to start CPU profile: %w", err))
				}
				cpuProfile = f
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if cpuProfile != nil {
				pprof.StopCPUProfile()
				cpuProfile.Close()
			}
			return debug.CloseDebugLog()
		},
	}
}

// interspersed moves flags written after positional arguments in front of
// them, so "tg ERROR app.log -c" parses like "tg -c -- ERROR app.log".
// Subcommand invocations are left alone; anything after "--" stays
// positional.
func interspersed(app *cli.App, args []string) []string {
	if len(args) < 2 {
		return args
	}

	valueFlags := make(map[string]bool)
	for _, f := range app.Flags {
		if _, ok := f.(*cli.BoolFlag); ok {
			continue
		}
		for _, name := range f.Names() {
			if len(name) == 1 {
				valueFlags["-"+name] = true
			} else {
				valueFlags["--"+name] = true
			}
		}
	}

	var flags, positional []string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "--":
			positional = append(positional, rest[i+1:]...)
			i = len(rest)
		case len(arg) > 1 && arg[0] == '-':
			flags = append(flags, arg)
			if valueFlags[arg] && i+1 < len(rest) {
				i++
				flags = append(flags, rest[i])
			}
		default:
			if len(positional) == 0 && app.Command(arg) != nil {
				return args
			}
			positional = append(positional, arg)
		}
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	out = append(out, flags...)
	if len(positional) > 0 {
		out = append(out, "--")
	}
	return append(out, positional...)
}
