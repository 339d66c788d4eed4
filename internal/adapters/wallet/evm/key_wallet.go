// Package evm provides Ethereum wallets that sign EIP-191 personal messages.
package evm

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// KeyWallet signs with a secp256k1 key held in process memory.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ ports.EthereumWallet = (*KeyWallet)(nil)

func NewKeyWallet(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func GenerateKeyWallet() (*KeyWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate secp256k1 key")
	}

	return NewKeyWallet(key), nil
}

// KeyWalletFromHex loads a wallet from a hex private key, with or without 0x.
func KeyWalletFromHex(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse secp256k1 key")
	}

	return NewKeyWallet(key), nil
}

func (w *KeyWallet) Address() common.Address {
	return w.address
}

func (w *KeyWallet) Provider() domain.WalletProvider {
	return domain.WalletProvider{
		InterfaceType:      domain.WalletInterfaceEthereum,
		ChainNamespace:     domain.ChainEthereum,
		ConnectedAddresses: []string{w.address.Hex()},
	}
}

// PersonalSign returns r||s||v with v in {27, 28}, as browser wallets do.
func (w *KeyWallet) PersonalSign(ctx context.Context, address string, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(address) || common.HexToAddress(address) != w.address {
		return nil, errors.Errorf("unknown account %s", address)
	}

	sig, err := crypto.Sign(accounts.TextHash(message), w.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign personal message")
	}
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}
