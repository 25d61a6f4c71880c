package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, CreateFile(file, "x"))

	tests := []struct {
		name                      string
		path                      string
		wantFile, wantDir, wantAny bool
	}{
		{name: "file", path: file, wantFile: true, wantAny: true},
		{name: "directory", path: dir, wantDir: true, wantAny: true},
		{name: "missing", path: filepath.Join(dir, "missing")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantFile, FileExists(tt.path))
			assert.Equal(t, tt.wantDir, DirExists(tt.path))
			assert.Equal(t, tt.wantAny, FileOrDirExists(tt.path))
		})
	}
}

func TestWriteFileWithModeNarrowsExisting(t *testing.T) {
	p := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(p, []byte("a much longer previous content"), 0o644))

	require.NoError(t, WriteFileWithMode(p, "new", 0o600))

	fi, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	b, err := ReadFileContent(p)
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
}

func TestCreateDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	created, err := CreateDirectory(dir, 0o755)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = CreateDirectory(dir, 0o755)
	require.NoError(t, err)
	assert.False(t, created)

	file := filepath.Join(dir, "file")
	require.NoError(t, CreateFile(file, ""))
	_, err = CreateDirectory(file, 0o755)
	assert.Error(t, err)
}

func TestRemoveFileIfExists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file")
	assert.NoError(t, RemoveFileIfExists(p))

	require.NoError(t, CreateFile(p, "x"))
	assert.NoError(t, RemoveFileIfExists(p))
	assert.False(t, FileExists(p))
}

func TestReadFileContentMissing(t *testing.T) {
	_, err := ReadFileContent(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
