package kv

import (
	"context"
	"errors"
	"testing"

	memorystore "github.com/bnema/stampkit/internal/adapters/secrets/memory"
	"github.com/bnema/stampkit/internal/adapters/sessionstore/storetest"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	portmocks "github.com/bnema/stampkit/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.SessionStore {
		return NewStore(memorystore.NewStore())
	})
}

func TestStoreUsesReservedKeys(t *testing.T) {
	t.Parallel()

	secrets := memorystore.NewStore()
	store := NewStore(secrets)
	ctx := context.Background()

	require.NoError(t, store.StoreSession(ctx, domain.Session{UserID: "u1", Expiry: 10}, ""))

	index, err := secrets.Get(ctx, domain.SessionKeysKey)
	require.NoError(t, err)
	assert.JSONEq(t, `["@turnkey/session/v3"]`, index)

	active, err := secrets.Get(ctx, domain.ActiveSessionKey)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSessionKey, active)

	raw, err := secrets.Get(ctx, domain.DefaultSessionKey)
	require.NoError(t, err)
	assert.Contains(t, raw, `"userId":"u1"`)
}

func TestStoreSessionSurfacesBackendErrors(t *testing.T) {
	t.Parallel()

	secrets := portmocks.NewMockSecretStore(t)
	store := NewStore(secrets)

	secrets.EXPECT().Put(mock.Anything, "work", mock.Anything).Return(errors.New("keyring locked")).Once()

	err := store.StoreSession(context.Background(), domain.Session{UserID: "u1"}, "work")
	require.Error(t, err)
	assert.ErrorContains(t, err, "keyring locked")
}
