package ports

import (
	"context"

	"github.com/bnema/stampkit/internal/domain"
)

type Stamper interface {
	Stamp(ctx context.Context, payload []byte) (domain.Stamp, error)
}

type PasskeyAssertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        []byte
}

type PasskeyAttestation struct {
	CredentialID      []byte
	ClientDataJSON    []byte
	AttestationObject []byte
	Transports        []string
}

type PasskeyUser struct {
	ID          []byte
	Name        string
	DisplayName string
}

// PasskeyAuthenticator performs the platform WebAuthn ceremonies.
type PasskeyAuthenticator interface {
	GetAssertion(ctx context.Context, challenge []byte, allowCredentials [][]byte) (PasskeyAssertion, error)
	CreateAttestation(ctx context.Context, challenge []byte, user PasskeyUser) (PasskeyAttestation, error)
}

type EthereumWallet interface {
	Provider() domain.WalletProvider
	// PersonalSign signs message with EIP-191 and returns r||s||v.
	PersonalSign(ctx context.Context, address string, message []byte) ([]byte, error)
}

type SolanaWallet interface {
	Provider() domain.WalletProvider
	PublicKey(ctx context.Context) ([]byte, error)
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// CredentialProbe is implemented by stampers that can report whether a
// usable credential is currently available without prompting the user.
type CredentialProbe interface {
	HasCredential(ctx context.Context) bool
}
