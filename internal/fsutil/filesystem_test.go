package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}
	assert.True(t, fsys.Exists("filesystem.go"))
	assert.False(t, fsys.Exists("nonexistent_file_xyz.json"))
}

func TestOSFileSystem_CreateAndOpen(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "out", "nested")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))

	name := filepath.Join(dir, "points.json")
	w, err := fsys.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte("[]\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := fsys.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	info, err := fsys.Stat(name)
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.Size())
}

func TestMemoryFileSystem_OpenStreams(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/exports/Records.json", []byte(`{"locations": []}`))

	f, err := mfs.Open("/exports/../exports/Records.json")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 5)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, `{"loc`, string(buf[:n]))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "Records.json", info.Name())
	assert.EqualValues(t, 17, info.Size())
}

func TestMemoryFileSystem_NotExist(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.Open("/missing.json")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = mfs.ReadFile("/missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = mfs.Stat("/missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.False(t, mfs.Exists("/missing.json"))
}

func TestMemoryFileSystem_CreateNeedsParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.Create("/out/points.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, mfs.MkdirAll("/out", 0o755))
	w, err := mfs.Create("/out/points.json")
	require.NoError(t, err)
	_, err = w.Write([]byte("created content"))
	require.NoError(t, err)

	data, err := mfs.ReadFile("/out/points.json")
	require.NoError(t, err)
	assert.Empty(t, data, "contents appear on Close")

	require.NoError(t, w.Close())
	data, err = mfs.ReadFile("/out/points.json")
	require.NoError(t, err)
	assert.Equal(t, "created content", string(data))
	assert.Equal(t, []string{"/out/points.json"}, mfs.Files())
}

func TestMemoryFileSystem_Dirs(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/a/b/c", 0o755))

	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		assert.True(t, mfs.Exists(p), p)
		info, err := mfs.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.True(t, info.Mode().IsDir())
	}
}

func TestMemoryFileSystem_ReadFileReturnsCopy(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/f", []byte("abc"))

	data, err := mfs.ReadFile("/f")
	require.NoError(t, err)
	data[0] = 'z'

	again, err := mfs.ReadFile("/f")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}
