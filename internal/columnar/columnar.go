// Package columnar exposes a mapped file as an offset-indexed array of line
// values without copying the file's bytes.
package columnar

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/standardbeagle/tgrep/internal/debug"
	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
	"github.com/standardbeagle/tgrep/internal/mmap"
)

// maxRegion is the largest mapped region addressable with int32 offsets.
var maxRegion int64 = math.MaxInt32

// TextArray is an ordered sequence of line values backed directly by a
// mapped file. offsets[i] is the start of value i and offsets[Len()] is the
// end of the last value's region; a value excludes its trailing newline.
// Values are not validated as UTF-8.
//
// Every TextArray, including slices, holds its own reference to the mapping
// and must be released.
type TextArray struct {
	file     *mmap.MappedFile
	data     []byte
	offsets  []int32
	released atomic.Bool
}

// Export maps path and builds its line array in one forward scan.
// An empty file yields an array with zero values.
func Export(path string) (*TextArray, error) {
	mf, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	if int64(mf.Len()) > maxRegion {
		size := int64(mf.Len())
		mf.Release()
		return nil, tgerrors.NewSizeLimitError(path, size, maxRegion)
	}

	data := mf.Bytes()
	arr := &TextArray{file: mf, data: data, offsets: buildOffsets(data)}
	debug.LogExport("exported %s: %d values over %d bytes\n", path, arr.Len(), len(data))
	return arr, nil
}

// buildOffsets returns the start of every line followed by len(data).
func buildOffsets(data []byte) []int32 {
	if len(data) == 0 {
		return []int32{0}
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	offsets := make([]int32, 0, n+1)
	offsets = append(offsets, 0)
	for pos := 0; pos < len(data); {
		nl := bytes.IndexByte(data[pos:], '\n')
		if nl < 0 {
			break
		}
		pos += nl + 1
		offsets = append(offsets, int32(pos))
	}
	if data[len(data)-1] != '\n' {
		offsets = append(offsets, int32(len(data)))
	}
	return offsets
}

// Len returns the number of values.
func (a *TextArray) Len() int {
	return len(a.offsets) - 1
}

// Offsets returns the offset table of this array: Len()+1 entries into the
// mapped region. For a slice the first entry is the slice's start, not zero.
func (a *TextArray) Offsets() []int32 {
	return a.offsets
}

// Value returns value i without copying. The slice is valid until the
// array is released.
func (a *TextArray) Value(i int) []byte {
	v := a.data[a.offsets[i]:a.offsets[i+1]]
	if len(v) > 0 && v[len(v)-1] == '\n' {
		v = v[:len(v)-1]
	}
	return v
}

// String returns a copy of value i with invalid UTF-8 replaced by U+FFFD.
func (a *TextArray) String(i int) string {
	return strings.ToValidUTF8(string(a.Value(i)), "\uFFFD")
}

// ValueBytes returns the total size of all values, delimiters excluded.
func (a *TextArray) ValueBytes() int64 {
	return valueBytes(a.data, a.offsets)
}

func valueBytes(data []byte, offsets []int32) int64 {
	if len(offsets) < 2 {
		return 0
	}
	first, last := offsets[0], offsets[len(offsets)-1]
	span := int64(last - first)
	span -= int64(bytes.Count(data[first:last], []byte{'\n'}))
	return span
}

// Slice returns values [off, off+n) as a new array over the same mapping.
// No value bytes are copied; the slice takes its own mapping reference.
func (a *TextArray) Slice(off, n int) *TextArray {
	if off < 0 || n < 0 || off+n > a.Len() {
		panic(fmt.Sprintf("columnar: slice [%d:%d] out of range for %d values", off, off+n, a.Len()))
	}
	return &TextArray{
		file:    a.file.Retain(),
		data:    a.data,
		offsets: a.offsets[off : off+n+1],
	}
}

// Release drops this array's mapping reference. Releasing twice is a no-op.
func (a *TextArray) Release() error {
	if !a.released.CompareAndSwap(false, true) {
		return nil
	}
	a.data = nil
	return a.file.Release()
}

// Stats summarizes an array's values.
type Stats struct {
	Values      int
	ValueBytes  int64
	EmptyValues int
	MaxValueLen int
	InvalidUTF8 int
}

// Stats scans every value once.
func (a *TextArray) Stats() Stats {
	s := Stats{Values: a.Len(), ValueBytes: a.ValueBytes()}
	for i := 0; i < a.Len(); i++ {
		v := a.Value(i)
		switch {
		case len(v) == 0:
			s.EmptyValues++
		case !utf8.Valid(v):
			s.InvalidUTF8++
		}
		if len(v) > s.MaxValueLen {
			s.MaxValueLen = len(v)
		}
	}
	return s
}
