package search

import (
	"bytes"
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/tgrep/internal/debug"
	"github.com/standardbeagle/tgrep/internal/mmap"
)

// minSegmentBytes is the smallest range handed to a count worker. Smaller
// files are counted on the calling goroutine.
var minSegmentBytes = 1 << 20

// Count returns the number of selected lines in target. It always equals
// Selected(Search(...)) for the same query and target; context lines are
// never counted.
func (e *Engine) Count(ctx context.Context, q Query, target string) (int, error) {
	m, err := Compile(q)
	if err != nil {
		return 0, err
	}
	files, dirMode, err := e.resolve(target)
	if err != nil {
		return 0, err
	}
	if len(files) == 1 && !dirMode {
		return e.countFile(ctx, m, files[0])
	}

	counts, err := e.countFiles(ctx, m, files)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// CountPerFile returns the selected-line count of every file in target that
// has at least one selected line, in walk order.
func (e *Engine) CountPerFile(ctx context.Context, q Query, target string) ([]FileCount, error) {
	m, err := Compile(q)
	if err != nil {
		return nil, err
	}
	files, dirMode, err := e.resolve(target)
	if err != nil {
		return nil, err
	}

	var counts []int
	if len(files) == 1 && !dirMode {
		n, err := e.countFile(ctx, m, files[0])
		if err != nil {
			return nil, err
		}
		counts = []int{n}
	} else {
		counts, err = e.countFiles(ctx, m, files)
		if err != nil {
			return nil, err
		}
	}

	var out []FileCount
	for i, n := range counts {
		if n > 0 {
			out = append(out, FileCount{Path: files[i], Count: n})
		}
	}
	return out, nil
}

// CountFiles counts an already resolved file list, returning files with at
// least one selected line. Unreadable files are skipped.
func (e *Engine) CountFiles(ctx context.Context, q Query, files []string) ([]FileCount, error) {
	m, err := Compile(q)
	if err != nil {
		return nil, err
	}
	counts, err := e.countFiles(ctx, m, files)
	if err != nil {
		return nil, err
	}
	var out []FileCount
	for i, n := range counts {
		if n > 0 {
			out = append(out, FileCount{Path: files[i], Count: n})
		}
	}
	return out, nil
}

// countFiles counts each file on the pool; unreadable files count zero.
func (e *Engine) countFiles(ctx context.Context, m *Matcher, files []string) ([]int, error) {
	counts := make([]int, len(files))
	err := e.forEachFile(ctx, files, func(i int, path string) error {
		mf, err := mmap.Open(path)
		if err != nil {
			debug.LogSearch("skip %s: %v\n", path, err)
			return nil
		}
		defer mf.Release()
		counts[i] = countLines(m, mf.Bytes(), m.query.MaxCount)
		return nil
	})
	return counts, err
}

// countFile maps one file and counts its selected lines in parallel
// newline-aligned segments.
func (e *Engine) countFile(ctx context.Context, m *Matcher, path string) (int, error) {
	mf, err := mmap.Open(path)
	if err != nil {
		return 0, err
	}
	defer mf.Release()
	return parallelCount(ctx, m, mf.Bytes(), e.threads)
}

// parallelCount splits data into up to workers segments that each end just
// after a newline, counts every segment independently and sums the results.
func parallelCount(ctx context.Context, m *Matcher, data []byte, workers int) (int, error) {
	limit := m.query.MaxCount
	segments := splitSegments(data, workers, minSegmentBytes)
	if len(segments) == 1 {
		return countLines(m, data, limit), nil
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, seg := range segments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			total.Add(int64(countLines(m, data[seg[0]:seg[1]], 0)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := int(total.Load())
	if limit > 0 && n > limit {
		n = limit
	}
	debug.LogSearch("counted %d lines over %d segments\n", n, len(segments))
	return n, nil
}

// splitSegments returns [start, end) ranges covering data. Every range but
// the last ends immediately after a newline, so no line is split.
func splitSegments(data []byte, workers, minBytes int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	size := len(data) / workers
	if size < minBytes {
		size = minBytes
	}
	if size < 1 {
		size = 1
	}

	var segs [][2]int
	for start := 0; start < len(data); {
		end := start + size
		if end >= len(data) {
			segs = append(segs, [2]int{start, len(data)})
			break
		}
		nl := bytes.IndexByte(data[end:], '\n')
		if nl < 0 {
			segs = append(segs, [2]int{start, len(data)})
			break
		}
		end += nl + 1
		segs = append(segs, [2]int{start, end})
		start = end
	}
	if len(segs) == 0 {
		segs = append(segs, [2]int{0, 0})
	}
	return segs
}
