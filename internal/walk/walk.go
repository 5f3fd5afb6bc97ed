// Package walk enumerates the regular files under a search root, honoring
// hidden-entry, depth, ignore-file, glob, type, size and binary filters.
package walk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/tgrep/internal/debug"
	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

// ErrNotRegular is returned by Resolve for targets that are neither a
// regular file nor a directory.
var ErrNotRegular = errors.New("not a regular file or directory")

// Options control which files a walk yields.
type Options struct {
	Hidden         bool     // include dot-files and dot-directories
	MaxDepth       int      // 0 = unbounded; 1 = direct children of root only
	FollowSymlinks bool     // descend into symlinked directories and yield symlinked files
	RespectIgnore  bool     // honor .gitignore/.ignore/.rgignore and global excludes
	Globs          []string // doublestar globs; "!" prefix excludes
	IgnoreFiles    []string // extra per-directory ignore-file names
	Types          []string // only files of these types
	TypesNot       []string // never files of these types
	MaxFileSize    int64    // 0 = unlimited
	SkipBinary     bool
}

// DefaultOptions matches the default command-line behavior.
func DefaultOptions() Options {
	return Options{RespectIgnore: true, SkipBinary: true}
}

// walker carries the per-walk state derived from Options.
type walker struct {
	root     string
	opts     Options
	include  []string
	exclude  []string
	types    *typeFilter
	binary   *BinaryDetector
	visited  map[string]bool         // real paths of directories, for symlink cycles
	fileFunc func(path string) error // nil when only directories are wanted
	dirFunc  func(path string) error // optional, called before a directory is read
}

// Walk returns every file under root that passes opts, in traversal order:
// directory entries are visited in lexical order, depth first.
func Walk(root string, opts Options) ([]string, error) {
	var files []string
	err := ListFiles(root, opts, func(path string) error {
		files = append(files, path)
		return nil
	})
	return files, err
}

// ListFiles streams the files Walk would return to fn. Returning an error
// from fn stops the walk and returns that error.
func ListFiles(root string, opts Options, fn func(path string) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return tgerrors.NewFileError("walk", root, err)
	}
	if !info.IsDir() {
		return tgerrors.NewFileError("walk", root, fmt.Errorf("not a directory"))
	}

	w, err := newWalker(root, opts, fn)
	if err != nil {
		return err
	}
	return w.run()
}

// Dirs returns root and every directory under it that a walk with opts
// would descend into, in traversal order.
func Dirs(root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, tgerrors.NewFileError("walk", root, err)
	}
	if !info.IsDir() {
		return nil, tgerrors.NewFileError("walk", root, fmt.Errorf("not a directory"))
	}

	w, err := newWalker(root, opts, nil)
	if err != nil {
		return nil, err
	}
	var dirs []string
	w.dirFunc = func(path string) error {
		dirs = append(dirs, path)
		return nil
	}
	if err := w.run(); err != nil {
		return nil, err
	}
	return dirs, nil
}

func (w *walker) run() error {
	root, opts := w.root, w.opts
	var stack ignoreStack
	if opts.RespectIgnore {
		if global := globalIgnoreRules(root); len(global) > 0 {
			stack = ignoreStack{{base: "", rules: global}}
		}
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		w.visited[real] = true
	}
	return w.walkDir(root, "", 1, stack)
}

// Resolve turns a target into the list of files to process: a regular file
// yields itself unfiltered, a directory is walked.
func Resolve(target string, opts Options) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, tgerrors.NewFileError("stat", target, err)
	}
	switch {
	case info.Mode().IsRegular():
		return []string{target}, nil
	case info.IsDir():
		return Walk(target, opts)
	default:
		return nil, tgerrors.NewFileError("stat", target, ErrNotRegular)
	}
}

// IsDir reports whether target names a directory.
func IsDir(target string) bool {
	info, err := os.Stat(target)
	return err == nil && info.IsDir()
}

func newWalker(root string, opts Options, fn func(string) error) (*walker, error) {
	w := &walker{
		root:     root,
		opts:     opts,
		binary:   NewBinaryDetector(),
		visited:  make(map[string]bool),
		fileFunc: fn,
	}
	for _, g := range opts.Globs {
		if neg, ok := strings.CutPrefix(g, "!"); ok {
			if !doublestar.ValidatePattern(neg) {
				return nil, fmt.Errorf("invalid glob: %s", g)
			}
			w.exclude = append(w.exclude, neg)
			continue
		}
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid glob: %s", g)
		}
		w.include = append(w.include, g)
	}
	tf, err := newTypeFilter(opts.Types, opts.TypesNot)
	if err != nil {
		return nil, err
	}
	w.types = tf
	return w, nil
}

func (w *walker) ignoreNames() []string {
	if len(w.opts.IgnoreFiles) == 0 {
		return defaultIgnoreFiles
	}
	names := make([]string, 0, len(defaultIgnoreFiles)+len(w.opts.IgnoreFiles))
	names = append(names, defaultIgnoreFiles...)
	return append(names, w.opts.IgnoreFiles...)
}

// walkDir visits the entries of dir. rel is dir relative to the root and
// depth is the depth of dir's children.
func (w *walker) walkDir(dir, rel string, depth int, stack ignoreStack) error {
	if w.dirFunc != nil {
		if err := w.dirFunc(dir); err != nil {
			return err
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		debug.LogWalk("skip unreadable directory %s: %v\n", dir, err)
		return nil
	}
	if w.opts.RespectIgnore {
		stack = stack.push(dir, rel, w.ignoreNames())
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)
		entryRel := name
		if rel != "" {
			entryRel = rel + "/" + name
		}

		if !w.opts.Hidden && strings.HasPrefix(name, ".") {
			continue
		}

		mode := entry.Type()
		if mode&os.ModeSymlink != 0 {
			if !w.opts.FollowSymlinks {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				debug.LogWalk("skip broken link %s: %v\n", path, err)
				continue
			}
			mode = info.Mode().Type()
		}

		if mode.IsDir() {
			if name == ".git" {
				continue
			}
			if w.opts.RespectIgnore && stack.ignored(entryRel, true) {
				debug.LogWalk("ignored directory %s\n", entryRel)
				continue
			}
			if w.excludedByGlob(entryRel, name) {
				continue
			}
			if w.opts.MaxDepth > 0 && depth >= w.opts.MaxDepth {
				continue
			}
			if w.opts.FollowSymlinks {
				real, err := filepath.EvalSymlinks(path)
				if err != nil || w.visited[real] {
					continue
				}
				w.visited[real] = true
			}
			if err := w.walkDir(path, entryRel, depth+1, stack); err != nil {
				return err
			}
			continue
		}

		if !mode.IsRegular() || w.fileFunc == nil {
			continue
		}
		if w.opts.RespectIgnore && stack.ignored(entryRel, false) {
			continue
		}
		if !w.acceptFile(path, entryRel, name) {
			continue
		}
		if err := w.fileFunc(path); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) excludedByGlob(rel, base string) bool {
	for _, g := range w.exclude {
		if matchGlob(g, rel) || matchGlob(g, base) {
			return true
		}
	}
	return false
}

func (w *walker) acceptFile(path, rel, base string) bool {
	if w.excludedByGlob(rel, base) {
		return false
	}
	if len(w.include) > 0 {
		matched := false
		for _, g := range w.include {
			if matchGlob(g, rel) || matchGlob(g, base) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if !w.types.allows(base) {
		return false
	}
	if w.opts.MaxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil || info.Size() > w.opts.MaxFileSize {
			return false
		}
	}
	if w.opts.SkipBinary && w.binary.IsBinaryFile(path) {
		debug.LogWalk("skip binary %s\n", rel)
		return false
	}
	return true
}
