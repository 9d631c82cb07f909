package compiler

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewArtifactStore(fs, "/shared/dags", ".py")

	path, err := store.Write("workflow_1", []byte("v1"))
	require.NoError(t, err)
	assert.Equal(t, "/shared/dags/workflow_1.py", path)

	_, err = store.Write("workflow_1", []byte("v2"))
	require.NoError(t, err)
	data, err := store.Read("workflow_1")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := afero.ReadDir(fs, "/shared/dags")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "workflow_1.py", entries[0].Name())

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "-rw-r--r--", info.Mode().Perm().String())

	removed, err := store.Remove("workflow_1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.Remove("workflow_1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestArtifactStoreReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	store := NewArtifactStore(fs, "/dags", ".py")
	_, err := store.Write("workflow_1", []byte("v1"))
	require.Error(t, err)
}
