package toml

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bnema/stampkit/internal/adapters/sessionstore/storetest"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	config := viper.New()
	config.Set(SessionsPathKey, filepath.Join(t.TempDir(), "sessions.toml"))

	store, err := NewStore(config)
	require.NoError(t, err)

	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.SessionStore {
		return newTestStore(t)
	})
}

func TestStoreWritesVersionedFileWithRestrictedMode(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	session := domain.Session{
		Type:           domain.SessionTypeReadWrite,
		UserID:         "user-1",
		OrganizationID: "org-1",
		PublicKey:      "02abcd",
		Expiry:         1893456000,
	}
	require.NoError(t, store.StoreSession(context.Background(), session, "work"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "version = 1")
	assert.Contains(t, content, "active = 'work'")
	assert.Contains(t, content, "[[sessions]]")
	assert.Contains(t, content, "public_key = '02abcd'")

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(sessionsFileMode), info.Mode().Perm())
}

func TestStoreReadsHandWrittenFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(strings.Join([]string{
		"version = 1",
		"active = \"@turnkey/session/v3\"",
		"",
		"[[sessions]]",
		"key = \"@turnkey/session/v3\"",
		"type = \"SESSION_TYPE_READ_ONLY\"",
		"user_id = \"u1\"",
		"organization_id = \"o1\"",
		"expiry = 42",
	}, "\n")), 0o600))

	session, err := store.GetActiveSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionTypeReadOnly, session.Type)
	assert.Equal(t, int64(42), session.Expiry)
}

func TestStoreRejectsFutureSchemaVersion(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("version = 9\n"), 0o600))

	_, err := store.ListSessionKeys(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sessions schema version 9")
}

func TestStoresSharingPathShareLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	first := viper.New()
	first.Set(SessionsPathKey, path)
	second := viper.New()
	second.Set(SessionsPathKey, path)

	a, err := NewStore(first)
	require.NoError(t, err)
	b, err := NewStore(second)
	require.NoError(t, err)

	assert.Same(t, a.mu, b.mu)
}
