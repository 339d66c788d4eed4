// Package storetest holds behaviour tests shared by every SessionStore.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(user string) domain.Session {
	return domain.Session{
		Type:           domain.SessionTypeReadWrite,
		UserID:         user,
		OrganizationID: "org-" + user,
		Token:          "jwt-" + user,
		PublicKey:      "02" + user,
		Expiry:         1893456000,
	}
}

// Run exercises newStore against the SessionStore contract.
func Run(t *testing.T, newStore func(t *testing.T) ports.SessionStore) {
	t.Helper()

	t.Run("store sets active and indexes key", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.StoreSession(ctx, sampleSession("alice"), "work"))

		active, err := store.GetActiveSessionKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "work", active)

		keys, err := store.ListSessionKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"work"}, keys)

		got, err := store.GetActiveSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, sampleSession("alice"), got)
	})

	t.Run("empty key uses default session key", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.StoreSession(ctx, sampleSession("alice"), ""))

		active, err := store.GetActiveSessionKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultSessionKey, active)

		got, err := store.GetSession(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.UserID)
	})

	t.Run("index has set semantics", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.StoreSession(ctx, sampleSession("alice"), "work"))
		require.NoError(t, store.StoreSession(ctx, sampleSession("bob"), "home"))
		require.NoError(t, store.StoreSession(ctx, sampleSession("carol"), "work"))

		keys, err := store.ListSessionKeys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"work", "home"}, keys)

		got, err := store.GetSession(ctx, "work")
		require.NoError(t, err)
		assert.Equal(t, "carol", got.UserID)
	})

	t.Run("clearing active session leaves no active session", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.StoreSession(ctx, sampleSession("alice"), "k1"))
		require.NoError(t, store.StoreSession(ctx, sampleSession("bob"), "k2"))
		require.NoError(t, store.SetActiveSession(ctx, "k1"))
		require.NoError(t, store.ClearSession(ctx, "k1"))

		active, err := store.GetActiveSessionKey(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)

		_, err = store.GetActiveSession(ctx)
		assert.ErrorIs(t, err, domain.ErrNoActiveSession)

		keys, err := store.ListSessionKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"k2"}, keys)
	})

	t.Run("clearing inactive session keeps active pointer", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.StoreSession(ctx, sampleSession("alice"), "k1"))
		require.NoError(t, store.StoreSession(ctx, sampleSession("bob"), "k2"))
		require.NoError(t, store.ClearSession(ctx, "k1"))

		active, err := store.GetActiveSessionKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "k2", active)

		_, err = store.GetSession(ctx, "k1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("set active requires known key", func(t *testing.T) {
		store := newStore(t)

		err := store.SetActiveSession(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("no active session when empty", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		active, err := store.GetActiveSessionKey(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)

		_, err = store.GetActiveSession(ctx)
		assert.ErrorIs(t, err, domain.ErrNoActiveSession)

		keys, err := store.ListSessionKeys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("clear all removes everything", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.StoreSession(ctx, sampleSession("alice"), "k1"))
		require.NoError(t, store.StoreSession(ctx, sampleSession("bob"), "k2"))
		require.NoError(t, store.ClearAllSessions(ctx))

		keys, err := store.ListSessionKeys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		active, err := store.GetActiveSessionKey(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)

		_, err = store.GetSession(ctx, "k2")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("concurrent stores keep index and active consistent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		var wg sync.WaitGroup
		for _, key := range keys {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				assert.NoError(t, store.StoreSession(ctx, sampleSession(key), key))
			}(key)
		}
		wg.Wait()

		listed, err := store.ListSessionKeys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, keys, listed)

		active, err := store.GetActiveSessionKey(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, active)

		session, err := store.GetActiveSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, active, session.UserID)
	})
}
