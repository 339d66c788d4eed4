// Package solana provides a Solana wallet backed by an in-process Ed25519 key.
package solana

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

type KeyWallet struct {
	key ed25519.PrivateKey
}

var _ ports.SolanaWallet = (*KeyWallet)(nil)

func NewKeyWallet(key ed25519.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key}
}

func GenerateKeyWallet() (*KeyWallet, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate ed25519 key")
	}

	return NewKeyWallet(key), nil
}

// KeyWalletFromBase58 loads a 64 byte secret key in the Solana CLI base58 form.
func KeyWalletFromBase58(secret string) (*KeyWallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, errors.Wrap(err, "decode solana secret key")
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid solana secret key length: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	return NewKeyWallet(ed25519.PrivateKey(raw)), nil
}

// Address is the base58 encoded public key.
func (w *KeyWallet) Address() string {
	return base58.Encode(w.key.Public().(ed25519.PublicKey))
}

func (w *KeyWallet) Provider() domain.WalletProvider {
	return domain.WalletProvider{
		InterfaceType:      domain.WalletInterfaceSolana,
		ChainNamespace:     domain.ChainSolana,
		ConnectedAddresses: []string{w.Address()},
	}
}

func (w *KeyWallet) PublicKey(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return append([]byte(nil), w.key.Public().(ed25519.PublicKey)...), nil
}

func (w *KeyWallet) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return ed25519.Sign(w.key, message), nil
}
