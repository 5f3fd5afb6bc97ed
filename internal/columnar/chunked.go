package columnar

import (
	"fmt"
	"iter"

	"github.com/standardbeagle/tgrep/internal/debug"
	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

// Chunks lazily partitions an exported array into consecutive slices whose
// value bytes stay within a budget. A single value larger than the budget
// is emitted alone.
type Chunks struct {
	base     *TextArray
	maxBytes int64
	next     int
}

// ExportChunked exports path and returns a lazy chunk sequence over it.
// Close must be called once the sequence is no longer needed; slices already
// handed out stay valid until they are released themselves.
func ExportChunked(path string, maxBytes int64) (*Chunks, error) {
	if maxBytes <= 0 {
		return nil, tgerrors.NewUsageError(path, fmt.Errorf("chunk budget must be positive, got %d", maxBytes))
	}
	base, err := Export(path)
	if err != nil {
		return nil, err
	}
	chunks := NewChunks(base, maxBytes)
	base.Release()
	return chunks, nil
}

// NewChunks chunks an existing array. The Chunks takes its own reference.
func NewChunks(base *TextArray, maxBytes int64) *Chunks {
	return &Chunks{base: base.Slice(0, base.Len()), maxBytes: maxBytes}
}

// Next returns the next slice, or false when every value has been emitted.
func (c *Chunks) Next() (*TextArray, bool) {
	total := c.base.Len()
	if c.next >= total {
		return nil, false
	}

	start := c.next
	end := start
	var size int64
	for end < total {
		vlen := int64(len(c.base.Value(end)))
		if end > start && size+vlen > c.maxBytes {
			break
		}
		size += vlen
		end++
		if size > c.maxBytes {
			break // oversized single value
		}
	}
	c.next = end
	debug.LogExport("chunk [%d:%d) %d bytes\n", start, end, size)
	return c.base.Slice(start, end-start), true
}

// All yields the remaining slices in order. Each yielded slice must be
// released by the consumer.
func (c *Chunks) All() iter.Seq[*TextArray] {
	return func(yield func(*TextArray) bool) {
		for {
			chunk, ok := c.Next()
			if !ok {
				return
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// Close releases the sequence's reference to the mapping.
func (c *Chunks) Close() error {
	return c.base.Release()
}
