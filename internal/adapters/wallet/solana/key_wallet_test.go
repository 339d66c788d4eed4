package solana

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyWalletSignsAndExposesBase58Address(t *testing.T) {
	t.Parallel()

	wallet, err := GenerateKeyWallet()
	require.NoError(t, err)

	pub, err := wallet.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(pub), wallet.Address())

	provider := wallet.Provider()
	assert.Equal(t, domain.ChainSolana, provider.ChainNamespace)
	assert.Equal(t, []string{wallet.Address()}, provider.ConnectedAddresses)

	sig, err := wallet.SignMessage(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte("payload"), sig))
}

func TestKeyWalletFromBase58(t *testing.T) {
	t.Parallel()

	seed := make([]byte, ed25519.SeedSize)
	key := ed25519.NewKeyFromSeed(seed)

	wallet, err := KeyWalletFromBase58(base58.Encode(key))
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(key.Public().(ed25519.PublicKey)), wallet.Address())

	_, err = KeyWalletFromBase58(base58.Encode(seed))
	assert.ErrorContains(t, err, "invalid solana secret key length")
}
