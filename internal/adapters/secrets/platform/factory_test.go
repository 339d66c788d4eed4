package platform

import (
	"context"
	"runtime"
	"testing"

	filestore "github.com/bnema/stampkit/internal/adapters/secrets/file"
	memorystore "github.com/bnema/stampkit/internal/adapters/secrets/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListBackendsIncludesPortableBackends(t *testing.T) {
	names := ListBackends()

	for _, want := range []string{BackendFile, BackendPass, BackendChain, BackendRedis, BackendMemory} {
		assert.Contains(t, names, want)
	}

	switch runtime.GOOS {
	case "darwin", "linux", "windows":
		assert.Contains(t, names, BackendKeyring)
	}
}

func TestOpenFileBackend(t *testing.T) {
	store, err := Open(context.Background(), BackendFile, Options{Dir: t.TempDir(), Passphrase: "pw"})
	require.NoError(t, err)

	fileStore, ok := store.(*filestore.Store)
	require.True(t, ok)
	assert.True(t, fileStore.Encrypted())
}

func TestOpenFileBackendRequiresDirectory(t *testing.T) {
	_, err := Open(context.Background(), BackendFile, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secrets directory is empty")
}

func TestOpenMemoryBackend(t *testing.T) {
	store, err := Open(context.Background(), BackendMemory, Options{})
	require.NoError(t, err)
	assert.IsType(t, &memorystore.Store{}, store)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "vault", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no secret backend registered as "vault"`)
}
