package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	assert.True(t, fs.Exists("filesystem.go"))
	assert.False(t, fs.Exists("nonexistent_file_xyz.go"))
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/out", 0755))

	require.NoError(t, mfs.WriteFile("/out/pose.json", []byte("{}"), 0644))

	data, err := mfs.ReadFile("/out/pose.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestMemoryFileSystem_WriteRequiresParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	err := mfs.WriteFile("/missing/pose.json", []byte("{}"), 0644)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, mfs.Exists("/missing/pose.json"))
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()
	src := []byte("abc")
	require.NoError(t, mfs.WriteFile("/a.txt", src, 0644))
	src[0] = 'z'

	data, err := mfs.ReadFile("/a.txt")
	require.NoError(t, err)
	data[1] = 'z'

	again, err := mfs.ReadFile("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryFileSystem_StatAndRemove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/runs/abc", 0755))
	require.NoError(t, mfs.WriteFile("/runs/abc/stats.json", []byte("12345"), 0644))

	info, err := mfs.Stat("/runs/abc/stats.json")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	assert.False(t, info.IsDir())

	dirInfo, err := mfs.Stat("/runs")
	require.NoError(t, err)
	assert.True(t, dirInfo.IsDir())

	require.NoError(t, mfs.Remove("/runs/abc/stats.json"))
	assert.False(t, mfs.Exists("/runs/abc/stats.json"))
	assert.Error(t, mfs.Remove("/runs/abc/stats.json"))
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		mfs := NewMemoryFileSystem()
		require.NoError(t, mfs.MkdirAll("/out", 0755))

		require.NoError(t, WriteFileAtomic(mfs, "/out/data.csv", []byte("a,b\n"), 0644))

		assert.Equal(t, []string{"/out/data.csv"}, mfs.Files("/out"))
	})

	t.Run("replaces existing file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "data.csv")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

		require.NoError(t, WriteFileAtomic(OSFileSystem{}, path, []byte("new"), 0644))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("missing directory leaves nothing behind", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nope", "data.csv")

		err := WriteFileAtomic(OSFileSystem{}, path, []byte("x"), 0644)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "write temp file"))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
