package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutUsesPassInsert(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		prefix: "stampkit",
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, context.Background(), ctx)
			assert.Equal(t, []string{"insert", "-m", "-f", "stampkit/@turnkey/session/v3"}, args)
			assert.Equal(t, "{\"expiry\":1}\n", input)
			return "", "", nil
		},
	}

	err := store.Put(context.Background(), "@turnkey/session/v3", `{"expiry":1}`)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStoreGetUsesPassShowAndTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "stampkit/keyset"}, args)
			assert.Empty(t, input)
			return "keyset-json\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), "stampkit/keyset")
	require.NoError(t, err)
	assert.Equal(t, "keyset-json", value)
}

func TestStoreDeleteUsesPassRemove(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "-f", "stampkit/keyset"}, args)
			assert.Empty(t, input)
			return "", "", nil
		},
	}

	err := store.Delete(context.Background(), "stampkit/keyset")
	require.NoError(t, err)
}

func TestStoreGetMapsMissingEntryToSecretNotFound(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: stampkit/keyset is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), "stampkit/keyset")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "gpg: decryption failed: No secret key", errors.New("exit status 2")
		},
	}

	_, err := store.Get(context.Background(), "stampkit/keyset")
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, "stampkit/keyset")
	assert.ErrorContains(t, err, "decryption failed")
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
}
