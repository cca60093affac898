package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string
	Terms []string
}

func TestSaveAndLoadGob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "sample.gob")

	in := sample{Name: "docs", Terms: []string{"array", "svd"}}
	require.NoError(t, SaveGob(path, in))

	var out sample
	require.NoError(t, LoadGob(path, &out))
	assert.Equal(t, in, out)

	// Overwrite replaces the file and leaves no temporary files behind
	require.NoError(t, SaveGob(path, sample{Name: "docs-v2"}))
	require.NoError(t, LoadGob(path, &out))
	assert.Equal(t, "docs-v2", out.Name)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadGob_Missing(t *testing.T) {
	var out sample
	err := LoadGob(filepath.Join(t.TempDir(), "missing.gob"), &out)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadGob_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.gob")
	require.NoError(t, os.WriteFile(path, []byte("not gob"), 0600))

	var out sample
	err := LoadGob(path, &out)
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}

func TestLayout(t *testing.T) {
	layout := Layout{DataDir: t.TempDir()}

	names, err := layout.IndexNames()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, SaveGob(layout.SettingsPath("docs"), sample{Name: "docs"}))
	require.NoError(t, os.MkdirAll(layout.IndexDir("no-settings"), 0750))

	names, err = layout.IndexNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, names)
	assert.Equal(t, filepath.Join(layout.DataDir, "docs", "snapshot.gob"), layout.SnapshotPath("docs"))

	require.NoError(t, layout.RemoveIndex("docs"))
	names, err = layout.IndexNames()
	require.NoError(t, err)
	assert.Empty(t, names)

	missing := Layout{DataDir: filepath.Join(layout.DataDir, "absent")}
	names, err = missing.IndexNames()
	require.NoError(t, err)
	assert.Nil(t, names)
}
