// Package watch re-runs work when files under a search target change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/tgrep/internal/debug"
	"github.com/standardbeagle/tgrep/internal/walk"
)

const (
	defaultDebounce = 300 * time.Millisecond
	maxDigestSize   = 8 << 20 // larger files are never checked for no-op writes
)

// EventType is the kind of change recorded for a path.
type EventType int

const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Batch is the set of changes collected during one debounce window. Only
// the latest event per path is kept.
type Batch struct {
	Events map[string]EventType
}

// Paths returns the changed paths, sorted.
func (b Batch) Paths() []string {
	paths := make([]string, 0, len(b.Events))
	for p := range b.Events {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration // 0 = 300ms
	Walk     walk.Options  // selects the directories to watch
}

// Stats summarises a watcher's activity.
type Stats struct {
	EventsProcessed int64
	Batches         int64
	ErrorCount      int64
	LastEventTime   time.Time
}

// Watcher watches a file, or a directory tree, and calls onChange once per
// debounced batch of changes. Callbacks run on the watcher's goroutine, one
// at a time. A write that leaves a file's contents as they were when the
// watcher last read it is dropped from its batch, and a batch left empty is
// not delivered.
type Watcher struct {
	target   string
	file     string // set when target is a single file
	opts     Options
	onChange func(Batch)
	fsw      *fsnotify.Watcher
	ready    chan struct{}
	digests  map[string]uint64 // owned by the Run goroutine

	statsMu sync.RWMutex
	stats   Stats
}

// New prepares a watcher for target. Nothing is watched until Run.
func New(target string, opts Options, onChange func(Batch)) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: nil change callback")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		target:   target,
		opts:     opts,
		onChange: onChange,
		ready:    make(chan struct{}),
		digests:  make(map[string]uint64),
	}
	if !info.IsDir() {
		w.file = filepath.Clean(target)
	}
	return w, nil
}

// Run watches until ctx is cancelled and returns nil on cancellation. It
// must be called at most once.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	defer fsw.Close()

	if err := w.addWatches(); err != nil {
		return err
	}
	debug.LogWatch("watching %s (debounce %s)\n", w.target, w.opts.Debounce)
	close(w.ready)

	pending := make(map[string]EventType)
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// pending events are dropped; the caller is shutting down
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event, pending) {
				continue
			}
			timer.Reset(w.opts.Debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.incrementStats(0, 1)
			debug.LogWatch("watcher error: %v\n", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := Batch{Events: pending}
			pending = make(map[string]EventType)
			w.flush(batch)
		}
	}
}

func (w *Watcher) addWatches() error {
	if w.file != "" {
		if sum, ok := digest(w.file); ok {
			w.digests[w.file] = sum
		}
		// watch the parent so replace-by-rename editors are seen
		return w.fsw.Add(filepath.Dir(w.file))
	}

	dirs, err := walk.Dirs(w.target, w.opts.Walk)
	if err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", w.target, err)
	}
	for _, d := range dirs {
		if err := w.fsw.Add(d); err != nil {
			debug.LogWatch("failed to watch %s: %v\n", d, err)
		}
	}
	return nil
}

// handleEvent records event in pending and reports whether it counts
// toward the next batch.
func (w *Watcher) handleEvent(event fsnotify.Event, pending map[string]EventType) bool {
	path := filepath.Clean(event.Name)

	if w.file != "" {
		if path != w.file {
			return false
		}
	} else if w.skipped(path) {
		return false
	}

	var et EventType
	switch {
	case event.Op&fsnotify.Create != 0:
		et = EventCreate
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.watchNewDir(path)
			return false
		}
	case event.Op&fsnotify.Write != 0:
		et = EventWrite
	case event.Op&fsnotify.Remove != 0:
		et = EventRemove
	case event.Op&fsnotify.Rename != 0:
		et = EventRename
	default:
		return false
	}

	debug.LogWatch("%s %s\n", et, path)
	pending[path] = et
	return true
}

// skipped filters paths the walk would never yield by name alone.
func (w *Watcher) skipped(path string) bool {
	rel, err := filepath.Rel(w.target, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".git" {
			return true
		}
		if !w.opts.Walk.Hidden && strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func (w *Watcher) watchNewDir(path string) {
	dirs, err := walk.Dirs(path, w.opts.Walk)
	if err != nil {
		return
	}
	for _, d := range dirs {
		if err := w.fsw.Add(d); err != nil {
			debug.LogWatch("failed to watch new directory %s: %v\n", d, err)
		}
	}
}

func (w *Watcher) flush(batch Batch) {
	w.incrementStats(int64(len(batch.Events)), 0)
	w.dropUnchanged(batch)
	if len(batch.Events) == 0 {
		return
	}
	w.statsMu.Lock()
	w.stats.Batches++
	w.statsMu.Unlock()
	w.onChange(batch)
}

// dropUnchanged removes write events for files whose contents hash the same
// as at the previous flush, and records the current digests. Files seen for
// the first time in directory mode have no digest yet and always count.
func (w *Watcher) dropUnchanged(batch Batch) {
	for path, et := range batch.Events {
		if et == EventRemove || et == EventRename {
			delete(w.digests, path)
			continue
		}
		sum, ok := digest(path)
		if !ok {
			delete(w.digests, path)
			continue
		}
		prev, seen := w.digests[path]
		w.digests[path] = sum
		if et == EventWrite && seen && prev == sum {
			debug.LogWatch("%s unchanged, dropped\n", path)
			delete(batch.Events, path)
		}
	}
}

// digest hashes the contents of a regular file no larger than
// maxDigestSize.
func digest(path string) (uint64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() || info.Size() > maxDigestSize {
		return 0, false
	}
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, false
	}
	return h.Sum64(), true
}

func (w *Watcher) incrementStats(events, errs int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.EventsProcessed += events
	w.stats.ErrorCount += errs
	if events > 0 {
		w.stats.LastEventTime = time.Now()
	}
}

// Ready is closed once every watch is in place.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Stats returns the watcher's counters.
func (w *Watcher) Stats() Stats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.stats
}
