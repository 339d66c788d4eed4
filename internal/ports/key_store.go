package ports

import (
	"context"
	"crypto"
)

// KeyStore owns P-256 key pairs addressed by their compressed public key hex.
// Private key material never leaves an implementation.
type KeyStore interface {
	// CreateKeyPair generates a key when external is nil, otherwise it adopts
	// the external signer, which must not expose its private key.
	CreateKeyPair(ctx context.Context, external crypto.Signer) (string, error)
	// Sign returns the raw r||s signature of SHA-256(payload).
	Sign(ctx context.Context, payload []byte, publicKeyHex string) ([]byte, error)
	DeleteKeyPair(ctx context.Context, publicKeyHex string) error
	ClearAll(ctx context.Context) error
	ListPublicKeys(ctx context.Context) ([]string, error)
}
