// Package mmap provides read-only, reference-counted memory mappings of
// regular files. A MappedFile is shared by every consumer that retained it
// and the OS mapping is released exactly once, when the last reference is
// dropped.
package mmap

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	mmapgo "github.com/blevesearch/mmap-go"

	"github.com/standardbeagle/tgrep/internal/debug"
	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

// ErrNotRegular is returned by Open for directories, devices, pipes and sockets.
var ErrNotRegular = errors.New("not a regular file")

// ErrOverRelease is returned by Release when the reference count is already zero.
var ErrOverRelease = errors.New("mapped file released more times than retained")

// MappedFile is an immutable view over a file's bytes. The bytes must never
// be written through; writers open their own handle.
type MappedFile struct {
	path   string
	data   []byte
	region mmapgo.MMap // nil for empty files
	refs   atomic.Int32
}

// Open maps path read-only. The returned MappedFile holds one reference.
// Zero-length files are not mapped; they yield an empty view.
func Open(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tgerrors.NewFileError("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, tgerrors.NewFileError("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, tgerrors.NewFileError("open", path, ErrNotRegular)
	}

	m := &MappedFile{path: path}
	m.refs.Store(1)

	if info.Size() == 0 {
		m.data = []byte{}
		return m, nil
	}

	region, err := mmapgo.Map(f, mmapgo.RDONLY, 0)
	if err != nil {
		return nil, tgerrors.NewFileError("mmap", path, err)
	}
	m.region = region
	m.data = []byte(region)
	debug.Printf("mapped %s (%d bytes)\n", path, len(m.data))
	return m, nil
}

// Bytes returns the mapped bytes. The slice is only valid while a reference
// is held.
func (m *MappedFile) Bytes() []byte {
	return m.data
}

// Len returns the size of the mapped region in bytes.
func (m *MappedFile) Len() int {
	return len(m.data)
}

// Path returns the path the file was opened from.
func (m *MappedFile) Path() string {
	return m.path
}

// Refs returns the current reference count.
func (m *MappedFile) Refs() int32 {
	return m.refs.Load()
}

// Retain takes an additional reference and returns m for chaining.
// Retaining a fully released file is a programming error and panics.
func (m *MappedFile) Retain() *MappedFile {
	for {
		n := m.refs.Load()
		if n <= 0 {
			panic(fmt.Sprintf("mmap: Retain on released file %s", m.path))
		}
		if m.refs.CompareAndSwap(n, n+1) {
			return m
		}
	}
}

// Release drops one reference. The mapping is unmapped when the count
// reaches zero; releasing past zero returns ErrOverRelease and never
// unmaps twice.
func (m *MappedFile) Release() error {
	for {
		n := m.refs.Load()
		if n <= 0 {
			return ErrOverRelease
		}
		if m.refs.CompareAndSwap(n, n-1) {
			if n-1 > 0 {
				return nil
			}
			break
		}
	}

	m.data = nil
	if m.region == nil {
		return nil
	}
	region := m.region
	m.region = nil
	if err := region.Unmap(); err != nil {
		return tgerrors.NewFileError("munmap", m.path, err)
	}
	debug.Printf("unmapped %s\n", m.path)
	return nil
}
