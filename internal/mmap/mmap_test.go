package mmap

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgerrors "github.com/standardbeagle/tgrep/internal/errors"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestOpenMapsContent(t *testing.T) {
	path := writeTemp(t, "INFO ok\nERROR failed\n")

	m, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO ok\nERROR failed\n", string(m.Bytes()))
	assert.Equal(t, 21, m.Len())
	assert.Equal(t, path, m.Path())
	assert.Equal(t, int32(1), m.Refs())

	require.NoError(t, m.Release())
	assert.Equal(t, int32(0), m.Refs())
	assert.Nil(t, m.Bytes())
}

func TestOpenEmptyFile(t *testing.T) {
	path := writeTemp(t, "")

	m, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.NotNil(t, m.Bytes())
	require.NoError(t, m.Release())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	var fe *tgerrors.FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, tgerrors.ErrorTypeFileNotFound, fe.Type)

	_, err = Open(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRegular)
}

func TestRetainReleaseLifecycle(t *testing.T) {
	path := writeTemp(t, "abc\n")
	m, err := Open(path)
	require.NoError(t, err)

	shared := m.Retain()
	assert.Same(t, m, shared)
	assert.Equal(t, int32(2), m.Refs())

	require.NoError(t, m.Release())
	assert.Equal(t, "abc\n", string(shared.Bytes()), "mapping outlives the first release")

	require.NoError(t, shared.Release())
	assert.ErrorIs(t, m.Release(), ErrOverRelease)
	assert.Equal(t, int32(0), m.Refs())

	assert.Panics(t, func() { m.Retain() })
}

func TestConcurrentRetainRelease(t *testing.T) {
	path := writeTemp(t, "line\n")
	m, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		m.Retain()
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, byte('l'), m.Bytes()[0])
			assert.NoError(t, m.Release())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), m.Refs())
	require.NoError(t, m.Release())
}

func TestIndependentMappingsOfSamePath(t *testing.T) {
	path := writeTemp(t, "shared\n")
	a, err := Open(path)
	require.NoError(t, err)
	b, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, a.Release())
	assert.Equal(t, "shared\n", string(b.Bytes()))
	require.NoError(t, b.Release())
}
