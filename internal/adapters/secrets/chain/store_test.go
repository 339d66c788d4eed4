package chain

import (
	"context"
	"errors"
	"testing"

	memorystore "github.com/bnema/stampkit/internal/adapters/secrets/memory"
	"github.com/bnema/stampkit/internal/domain"
	portmocks "github.com/bnema/stampkit/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("from-primary", nil).Once()

	value, err := store.Get(context.Background(), "stampkit/keyset")
	require.NoError(t, err)
	assert.Equal(t, "from-primary", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("", errors.New("pass unavailable")).Once()
	fallback.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("from-fallback", nil).Once()

	value, err := store.Get(context.Background(), "stampkit/keyset")
	require.NoError(t, err)
	assert.Equal(t, "from-fallback", value)
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("", errors.New("file failed")).Once()

	_, err := store.Get(context.Background(), "stampkit/keyset")
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend")
	assert.ErrorContains(t, err, "fallback backend")
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "file failed")
}

func TestStorePutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Put(mock.Anything, "stampkit/keyset", "keyset-json").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Put(mock.Anything, "stampkit/keyset", "keyset-json").Return(nil).Once()

	err := store.Put(context.Background(), "stampkit/keyset", "keyset-json")
	require.NoError(t, err)
}

func TestStorePutDropsFallbackCopyWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Put(mock.Anything, "stampkit/keyset", "keyset-json").Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, "stampkit/keyset").Return(errors.New("file busy")).Once()

	err := store.Put(context.Background(), "stampkit/keyset", "keyset-json")
	require.NoError(t, err)
}

func TestStoreDeleteFailsWhenPrimaryStillHoldsSecret(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Delete(mock.Anything, "stampkit/keyset").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Delete(mock.Anything, "stampkit/keyset").Return(nil).Once()

	err := store.Delete(context.Background(), "stampkit/keyset")
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend delete failed")
	assert.ErrorContains(t, err, "pass failed")
}

func TestStoreDeleteRemovesBothCopies(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Delete(mock.Anything, "stampkit/keyset").Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, "stampkit/keyset").Return(nil).Once()

	err := store.Delete(context.Background(), "stampkit/keyset")
	require.NoError(t, err)
}

func TestStoreGetPromotesSecretHeldOnlyByFallback(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("", domain.ErrSecretNotFound).Once()
	fallback.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("keyset-json", nil).Once()
	primary.EXPECT().Put(mock.Anything, "stampkit/keyset", "keyset-json").Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, "stampkit/keyset").Return(nil).Once()

	value, err := store.Get(context.Background(), "stampkit/keyset")
	require.NoError(t, err)
	assert.Equal(t, "keyset-json", value)
}

func TestStoreGetKeepsFallbackCopyWhenPromotionFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("", domain.ErrSecretNotFound).Once()
	fallback.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("keyset-json", nil).Once()
	primary.EXPECT().Put(mock.Anything, "stampkit/keyset", "keyset-json").Return(errors.New("gpg locked")).Once()

	value, err := store.Get(context.Background(), "stampkit/keyset")
	require.NoError(t, err)
	assert.Equal(t, "keyset-json", value)
}

func TestDeletedSecretIsNotServedFromStaleFallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := memorystore.NewStore()
	fallback := memorystore.NewStore()
	store := NewStore(primary, fallback)

	require.NoError(t, fallback.Put(ctx, "@turnkey/session-keys", `["default"]`))

	value, err := store.Get(ctx, "@turnkey/session-keys")
	require.NoError(t, err)
	assert.Equal(t, `["default"]`, value)

	promoted, err := primary.Get(ctx, "@turnkey/session-keys")
	require.NoError(t, err)
	assert.Equal(t, value, promoted)
	_, err = fallback.Get(ctx, "@turnkey/session-keys")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	require.NoError(t, fallback.Put(ctx, "@turnkey/session-keys", `["stale"]`))
	require.NoError(t, store.Delete(ctx, "@turnkey/session-keys"))

	_, err = store.Get(ctx, "@turnkey/session-keys")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.NotContains(t, err.Error(), "primary backend")
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "stampkit/keyset").Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), "stampkit/keyset")
	require.ErrorIs(t, err, context.Canceled)
}

func TestStoreGetReportsSecretNotFoundWhenBothBackendsMiss(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "@turnkey/active-session").Return("", domain.ErrSecretNotFound).Once()
	fallback.EXPECT().Get(mock.Anything, "@turnkey/active-session").Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), "@turnkey/active-session")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestNewStoreCheckedRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStoreChecked(nil, portmocks.NewMockSecretStore(t))
	require.ErrorIs(t, err, errNilPrimaryStore)

	_, err = NewStoreChecked(portmocks.NewMockSecretStore(t), nil)
	require.ErrorIs(t, err, errNilFallbackStore)
}
