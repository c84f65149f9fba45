package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/dialogic/pkg/adapters/file"
	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/aretw0/dialogic/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.NewStore(t.TempDir()))
}

func TestStore_AtomicOverwrite(t *testing.T) {
	dir := t.TempDir()
	store := file.NewStore(dir)
	ctx := context.Background()

	s := domain.NewSession("abc")
	s.Context["turn"] = 1
	require.NoError(t, store.Save(ctx, s))
	s.Context["turn"] = 2
	require.NoError(t, store.Save(ctx, s))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "abc.json", entries[0].Name())

	loaded, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.EqualValues(t, 2, loaded.Context["turn"])
}

func TestStore_RejectsPathIDs(t *testing.T) {
	store := file.NewStore(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, domain.NewSession("")))
	assert.Error(t, store.Save(ctx, domain.NewSession(filepath.Join("..", "escape"))))
	_, err := store.Load(ctx, "..")
	assert.Error(t, err)
}
