// Package backend chooses between the in-process search engine and an
// external accelerated pipeline.
package backend

import (
	"context"

	"github.com/standardbeagle/tgrep/internal/debug"
	"github.com/standardbeagle/tgrep/internal/search"
	"github.com/standardbeagle/tgrep/internal/walk"
)

// Request is everything a backend needs to count matches for one invocation.
type Request struct {
	Query  search.Query
	Target string
}

// Backend counts matching lines for a request.
type Backend interface {
	Name() string
	Available(ctx context.Context) bool
	Count(ctx context.Context, req Request) (int, error)
}

// Local runs requests on the in-process engine. It is always available.
type Local struct {
	engine *search.Engine
}

// NewLocal wraps engine as a backend.
func NewLocal(engine *search.Engine) *Local {
	return &Local{engine: engine}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Available(context.Context) bool { return true }

func (l *Local) Count(ctx context.Context, req Request) (int, error) {
	return l.engine.Count(ctx, req.Query, req.Target)
}

// Engine exposes the wrapped engine for operations only the local backend
// supports (ordered search, replace).
func (l *Local) Engine() *search.Engine {
	return l.engine
}

// SelectOptions are the per-invocation inputs to Select.
type SelectOptions struct {
	ForceCPU bool
	Replace  bool // in-place replace never leaves the local engine
}

// Decision records which backend Select picked and why.
type Decision struct {
	Backend   Backend
	QueryType QueryType
	Reason    string
}

// Accelerated reports whether the accelerated backend was chosen.
func (d Decision) Accelerated() bool {
	_, ok := d.Backend.(*Accelerated)
	return ok
}

// Select picks the backend for one invocation. accel may be nil when the
// accelerator is disabled; it is probed at most once.
func Select(ctx context.Context, local *Local, accel *Accelerated, opts SelectOptions, req Request) Decision {
	qt := NewQueryAnalyzer().Analyze(req.Query.Pattern)
	d := Decision{Backend: local, QueryType: qt}

	switch {
	case opts.ForceCPU:
		d.Reason = "forced cpu"
	case opts.Replace:
		d.Reason = "replace runs locally"
	case accel == nil:
		d.Reason = "accelerator disabled"
	case localOnly(req.Query, local.Engine().WalkOptions()):
		d.Reason = "query uses local-only options"
	case !accel.Available(ctx):
		d.Reason = "accelerator unavailable"
	default:
		d.Backend = accel
		d.Reason = "accelerator available"
	}

	debug.LogBackend("selected %s for %q (%s, query type %s)\n", d.Backend.Name(), req.Query.Pattern, d.Reason, qt)
	return d
}

// localOnly reports whether q or w asks for something the accelerator
// request cannot express. The accelerator receives only the pattern, the
// path and the fixed-strings, invert and ignore-case flags, and walks
// directories with the default filters. Size and binary limits are left to
// the accelerator's own defaults.
func localOnly(q search.Query, w walk.Options) bool {
	if q.SmartCase || q.WordRegexp || q.LineRegexp || q.MaxCount > 0 || q.HasContext() {
		return true
	}
	return w.Hidden || w.MaxDepth > 0 || w.FollowSymlinks || !w.RespectIgnore ||
		len(w.Globs) > 0 || len(w.IgnoreFiles) > 0 || len(w.Types) > 0 || len(w.TypesNot) > 0
}
