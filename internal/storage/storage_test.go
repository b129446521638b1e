package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/config"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.UploadObject(ctx, "inputs/week1.csv", []byte("Periodo,Demanda\n1,10\n")))
	require.NoError(t, store.UploadObject(ctx, "inputs/week2.csv", []byte("Periodo,Demanda\n1,20\n")))
	require.NoError(t, store.UploadObject(ctx, "exports/run.csv", []byte("x")))

	objects, err := store.ListObjects(ctx, "inputs")
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"inputs/week1.csv", "inputs/week2.csv"}, keys)

	dest := filepath.Join(t.TempDir(), "nested", "week1.csv")
	require.NoError(t, store.DownloadObject(ctx, keys[0], dest))
	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "Periodo,Demanda\n1,10\n", string(raw))
}

func TestLocalStore_DownloadMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.DownloadObject(context.Background(), "nope.csv", filepath.Join(t.TempDir(), "out.csv"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.StorageConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = New(ctx, config.StorageConfig{Enabled: true, Backend: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &BackendStore{}, store)

	_, err = New(ctx, config.StorageConfig{Enabled: true, Backend: "ftp"})
	assert.Error(t, err)

	_, err = New(ctx, config.StorageConfig{Enabled: true, Backend: "s3", Endpoint: "s3.local"})
	assert.Error(t, err, "missing credentials")

	_, err = New(ctx, config.StorageConfig{Enabled: true, Backend: "minio"})
	assert.Error(t, err, "missing endpoint")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a/b.CSV"))
	assert.Equal(t, "application/json", contentType("run.json"))
	assert.Equal(t, "application/yaml", contentType("run.yml"))
	assert.Equal(t, "text/plain", contentType("run.txt"))
}
