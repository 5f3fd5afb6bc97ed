// Package search implements line-oriented search, count and replace over
// memory-mapped files.
package search

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/standardbeagle/tgrep/internal/debug"
	"github.com/standardbeagle/tgrep/internal/mmap"
	"github.com/standardbeagle/tgrep/internal/walk"
)

// Match is one selected line.
type Match struct {
	Path string
	Line int    // 1-based
	Text string // terminator excluded, invalid UTF-8 replaced by U+FFFD
	// Context marks a line reported only as context around a selected line.
	Context bool
}

// Selected returns how many of ms are selected lines rather than context.
func Selected(ms []Match) int {
	n := 0
	for _, m := range ms {
		if !m.Context {
			n++
		}
	}
	return n
}

// FileCount is the number of selected lines in one file.
type FileCount struct {
	Path  string
	Count int
}

// Options configure an Engine.
type Options struct {
	Threads int          // worker count; 0 = GOMAXPROCS
	Walk    walk.Options // used when a target is a directory
}

// Engine runs queries against files and directory trees. Multi-file work is
// spread over a worker pool; results are always assembled in walk order.
type Engine struct {
	threads  int
	walkOpts walk.Options
	pool     *ants.Pool
}

// NewEngine creates an engine and its worker pool. Call Close when done.
func NewEngine(opts Options) (*Engine, error) {
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(threads)
	if err != nil {
		return nil, err
	}
	return &Engine{threads: threads, walkOpts: opts.Walk, pool: pool}, nil
}

// Close releases the worker pool, waiting briefly for workers to exit.
func (e *Engine) Close() error {
	if e.pool == nil {
		return nil
	}
	err := e.pool.ReleaseTimeout(3 * time.Second)
	e.pool = nil
	return err
}

// Threads returns the configured worker count.
func (e *Engine) Threads() int {
	return e.threads
}

// WalkOptions returns the options directory targets are walked with.
func (e *Engine) WalkOptions() walk.Options {
	return e.walkOpts
}

// resolve expands target. dirMode is true when target is a directory, in
// which case per-file failures are skipped rather than returned.
func (e *Engine) resolve(target string) (files []string, dirMode bool, err error) {
	files, err = walk.Resolve(target, e.walkOpts)
	if err != nil {
		return nil, false, err
	}
	return files, walk.IsDir(target), nil
}

// Search returns the selected lines of target, file by file in walk order
// and line by line within a file. Context lines requested by the query are
// interleaved in line order.
func (e *Engine) Search(ctx context.Context, q Query, target string) ([]Match, error) {
	m, err := Compile(q)
	if err != nil {
		return nil, err
	}
	files, dirMode, err := e.resolve(target)
	if err != nil {
		return nil, err
	}
	return e.searchFiles(ctx, m, files, dirMode)
}

// SearchFiles searches an already resolved file list. Unreadable files are
// skipped.
func (e *Engine) SearchFiles(ctx context.Context, q Query, files []string) ([]Match, error) {
	m, err := Compile(q)
	if err != nil {
		return nil, err
	}
	return e.searchFiles(ctx, m, files, true)
}

func (e *Engine) searchFiles(ctx context.Context, m *Matcher, files []string, dirMode bool) ([]Match, error) {
	if len(files) == 1 && !dirMode {
		return searchFile(m, files[0])
	}

	slots := make([][]Match, len(files))
	err := e.forEachFile(ctx, files, func(i int, path string) error {
		matches, err := searchFile(m, path)
		if err != nil {
			debug.LogSearch("skip %s: %v\n", path, err)
			return nil
		}
		slots[i] = matches
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}

func searchFile(m *Matcher, path string) ([]Match, error) {
	mf, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer mf.Release()

	var out []Match
	q := m.query
	if q.HasContext() {
		scanContext(m, mf.Bytes(), q.MaxCount, q.Before, q.After, func(l Line, selected bool) bool {
			out = append(out, Match{Path: path, Line: l.Number, Text: decodeLine(l.Text), Context: !selected})
			return true
		})
		return out, nil
	}
	scanLines(m, mf.Bytes(), q.MaxCount, func(l Line) bool {
		out = append(out, Match{Path: path, Line: l.Number, Text: decodeLine(l.Text)})
		return true
	})
	return out, nil
}

// FilesWithMatches returns, in walk order, the files with at least one
// selected line.
func (e *Engine) FilesWithMatches(ctx context.Context, q Query, target string) ([]string, error) {
	m, err := Compile(q)
	if err != nil {
		return nil, err
	}
	files, dirMode, err := e.resolve(target)
	if err != nil {
		return nil, err
	}

	hits := make([]bool, len(files))
	err = e.forEachFile(ctx, files, func(i int, path string) error {
		mf, err := mmap.Open(path)
		if err != nil {
			if dirMode {
				return nil
			}
			return err
		}
		defer mf.Release()
		hits[i] = countLines(m, mf.Bytes(), 1) > 0
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []string
	for i, hit := range hits {
		if hit {
			out = append(out, files[i])
		}
	}
	return out, nil
}

// forEachFile runs fn for every file on the pool and waits for all of them.
// The first error returned by fn, or the context's error, is reported.
func (e *Engine) forEachFile(ctx context.Context, files []string, fn func(i int, path string) error) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			record(err)
			break
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := fn(i, path); err != nil {
				record(err)
			}
		}
		if err := e.pool.Submit(task); err != nil {
			// pool closed or overloaded: run inline
			task()
		}
	}
	wg.Wait()
	return firstErr
}
