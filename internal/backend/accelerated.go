package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/tgrep/internal/debug"
	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
	"github.com/standardbeagle/tgrep/internal/search"
)

const defaultProbeTimeout = 2 * time.Second

// Accelerated hands whole requests to an external command:
//
//	<cmd> --probe                 exit status 0 means available
//	<cmd> count --json <request>  prints the aggregate match count
//	<cmd> classify <file>         prints the classification report
type Accelerated struct {
	command      string
	probeTimeout time.Duration

	probeOnce sync.Once
	available bool
}

// NewAccelerated returns a backend for command. The probe is not run until
// Available is first called; a non-positive timeout means 2s.
func NewAccelerated(command string, probeTimeout time.Duration) *Accelerated {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Accelerated{command: command, probeTimeout: probeTimeout}
}

func (a *Accelerated) Name() string { return "accelerated" }

// Command returns the external command name or path.
func (a *Accelerated) Command() string { return a.command }

// Available runs the capability probe the first time it is called and
// caches the answer for the rest of the invocation.
func (a *Accelerated) Available(ctx context.Context) bool {
	a.probeOnce.Do(func() {
		a.available = a.probe(ctx)
	})
	return a.available
}

func (a *Accelerated) probe(ctx context.Context) bool {
	if a.command == "" {
		return false
	}
	path, err := exec.LookPath(a.command)
	if err != nil {
		debug.LogBackend("accelerator %q not found: %v\n", a.command, err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()
	if err := exec.CommandContext(ctx, path, "--probe").Run(); err != nil {
		debug.LogBackend("accelerator probe failed: %v\n", err)
		return false
	}
	return true
}

// wireRequest is the JSON handed to the accelerator.
type wireRequest struct {
	Pattern      string `json:"pattern"`
	Path         string `json:"path"`
	Count        bool   `json:"count"`
	FixedStrings bool   `json:"fixed_strings"`
	Invert       bool   `json:"invert"`
	IgnoreCase   bool   `json:"ignore_case"`
}

func (a *Accelerated) Count(ctx context.Context, req Request) (int, error) {
	payload, err := json.Marshal(wireRequest{
		Pattern:      req.Query.Pattern,
		Path:         req.Target,
		Count:        true,
		FixedStrings: req.Query.Mode == search.ModeLiteral,
		Invert:       req.Query.Invert,
		IgnoreCase:   req.Query.IgnoreCase,
	})
	if err != nil {
		return 0, tgerrors.NewBackendError(a.Name(), "count", err)
	}

	out, err := a.run(ctx, "count", "--json", string(payload))
	if err != nil {
		return 0, tgerrors.NewBackendError(a.Name(), "count", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, tgerrors.NewBackendError(a.Name(), "count", fmt.Errorf("unexpected output %q: %w", strings.TrimSpace(string(out)), err))
	}
	return n, nil
}

// Classify delegates file classification, which has no local implementation.
func (a *Accelerated) Classify(ctx context.Context, file string) (string, error) {
	out, err := a.run(ctx, "classify", file)
	if err != nil {
		return "", tgerrors.NewBackendError(a.Name(), "classify", err)
	}
	return string(out), nil
}

func (a *Accelerated) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
