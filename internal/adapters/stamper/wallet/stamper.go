// Package wallet stamps requests with a signature from a connected chain wallet.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/stampkit/internal/adapters/stamper"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/bnema/stampkit/internal/sigcodec"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

const ethereumSignatureLength = 65

type Stamper struct {
	ethereum ports.EthereumWallet
	solana   ports.SolanaWallet
	chain    domain.ChainContext
}

var _ ports.Stamper = (*Stamper)(nil)

// New returns a stamper over the given wallets. Either may be nil.
func New(ethereum ports.EthereumWallet, solana ports.SolanaWallet) *Stamper {
	return &Stamper{ethereum: ethereum, solana: solana}
}

// ForChain returns a copy bound to chainCtx instead of the default chain.
func (s *Stamper) ForChain(chainCtx domain.ChainContext) *Stamper {
	bound := *s
	bound.chain = chainCtx
	return &bound
}

func (s *Stamper) Providers() []domain.WalletProvider {
	var providers []domain.WalletProvider
	if s.ethereum != nil {
		providers = append(providers, s.ethereum.Provider())
	}
	if s.solana != nil {
		providers = append(providers, s.solana.Provider())
	}

	return providers
}

// HasCredential reports whether any wallet has a connected address.
func (s *Stamper) HasCredential(context.Context) bool {
	_, ok := domain.DefaultChain(s.Providers())
	return ok
}

func (s *Stamper) Stamp(ctx context.Context, payload []byte) (domain.Stamp, error) {
	chain := s.chain.Chain
	if chain == "" {
		var ok bool
		chain, ok = domain.DefaultChain(s.Providers())
		if !ok {
			return domain.Stamp{}, &domain.CredentialError{Op: "select wallet chain", Err: domain.ErrNoProviderForChain}
		}
	}

	switch chain {
	case domain.ChainEthereum:
		return s.stampEthereum(ctx, payload)
	case domain.ChainSolana:
		return s.stampSolana(ctx, payload)
	default:
		return domain.Stamp{}, &domain.CredentialError{
			Op:  "select wallet chain",
			Err: fmt.Errorf("%w: %s", domain.ErrNoProviderForChain, chain),
		}
	}
}

func (s *Stamper) stampEthereum(ctx context.Context, payload []byte) (domain.Stamp, error) {
	if s.ethereum == nil {
		return domain.Stamp{}, noProvider(domain.ChainEthereum)
	}
	address, err := s.address(s.ethereum.Provider(), domain.ChainEthereum)
	if err != nil {
		return domain.Stamp{}, err
	}

	sig, err := s.ethereum.PersonalSign(ctx, address, payload)
	if err != nil {
		return domain.Stamp{}, &domain.SigningError{Op: "ethereum personal_sign", Err: err}
	}

	recovered, err := recoverSigner(payload, sig)
	if err != nil {
		return domain.Stamp{}, err
	}
	if signer := crypto.PubkeyToAddress(*recovered); signer != common.HexToAddress(address) {
		return domain.Stamp{}, &domain.SigningError{
			Op:  "ethereum personal_sign",
			Err: fmt.Errorf("signature recovers to %s, want %s", signer.Hex(), address),
		}
	}
	publicKey := crypto.CompressPubkey(recovered)

	der, err := sigcodec.IEEE1363ToDER(sig[:64])
	if err != nil {
		return domain.Stamp{}, err
	}

	return stamper.Encode(hex.EncodeToString(publicKey), domain.SchemeSecp256k1EIP191, der)
}

// RecoverCompressedPublicKey recovers the signer of an EIP-191 personal
// message from its 65 byte r||s||v signature. v may be 0/1 or 27/28.
func RecoverCompressedPublicKey(message, sig []byte) ([]byte, error) {
	pub, err := recoverSigner(message, sig)
	if err != nil {
		return nil, err
	}

	return crypto.CompressPubkey(pub), nil
}

func recoverSigner(message, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != ethereumSignatureLength {
		return nil, &domain.SigningError{
			Op:  "recover ethereum signer",
			Err: fmt.Errorf("%w: got %d bytes, want %d", domain.ErrInvalidSignatureLength, len(sig), ethereumSignatureLength),
		}
	}

	normalized := make([]byte, ethereumSignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), normalized)
	if err != nil {
		return nil, &domain.EncodingError{Op: "recover ethereum signer", Err: err}
	}

	return pub, nil
}

func (s *Stamper) stampSolana(ctx context.Context, payload []byte) (domain.Stamp, error) {
	if s.solana == nil {
		return domain.Stamp{}, noProvider(domain.ChainSolana)
	}
	address, err := s.address(s.solana.Provider(), domain.ChainSolana)
	if err != nil {
		return domain.Stamp{}, err
	}

	publicKey, err := s.solana.PublicKey(ctx)
	if err != nil {
		return domain.Stamp{}, &domain.SigningError{Op: "read solana public key", Err: err}
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return domain.Stamp{}, &domain.EncodingError{
			Op:  "read solana public key",
			Err: fmt.Errorf("%w: got %d bytes", domain.ErrUnsupportedKey, len(publicKey)),
		}
	}
	if base58.Encode(publicKey) != address {
		return domain.Stamp{}, &domain.SigningError{
			Op:  "read solana public key",
			Err: fmt.Errorf("wallet key %s does not match connected address %s", base58.Encode(publicKey), address),
		}
	}

	sig, err := s.solana.SignMessage(ctx, payload)
	if err != nil {
		return domain.Stamp{}, &domain.SigningError{Op: "solana signMessage", Err: err}
	}
	if !ed25519.Verify(publicKey, payload, sig) {
		return domain.Stamp{}, &domain.SigningError{Op: "solana signMessage", Err: errors.New("signature does not verify")}
	}

	return stamper.Encode(hex.EncodeToString(publicKey), domain.SchemeAPIEd25519, sig)
}

func (s *Stamper) address(provider domain.WalletProvider, chain domain.Chain) (string, error) {
	if provider.ChainNamespace != chain || !provider.Connected() {
		return "", noProvider(chain)
	}
	if s.chain.Address == "" {
		return provider.ConnectedAddresses[0], nil
	}

	for _, connected := range provider.ConnectedAddresses {
		if connected == s.chain.Address || (chain == domain.ChainEthereum && strings.EqualFold(connected, s.chain.Address)) {
			return connected, nil
		}
	}

	return "", &domain.CredentialError{
		Op:  "select wallet address",
		Err: fmt.Errorf("%w: %s is not connected on %s", domain.ErrNoProviderForChain, s.chain.Address, chain),
	}
}

func noProvider(chain domain.Chain) error {
	return &domain.CredentialError{
		Op:  "select wallet chain",
		Err: fmt.Errorf("%w: %s", domain.ErrNoProviderForChain, chain),
	}
}
