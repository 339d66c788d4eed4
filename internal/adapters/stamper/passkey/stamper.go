// Package passkey stamps requests with a WebAuthn assertion over the request digest.
package passkey

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/go-webauthn/webauthn/protocol"
)

const DefaultCeremonyTimeout = 5 * time.Minute

type Stamper struct {
	authenticator    ports.PasskeyAuthenticator
	allowCredentials [][]byte
	timeout          time.Duration
}

var _ ports.Stamper = (*Stamper)(nil)

type Option func(*Stamper)

func WithAllowCredentials(ids ...[]byte) Option {
	return func(s *Stamper) {
		s.allowCredentials = ids
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Stamper) {
		s.timeout = timeout
	}
}

func New(authenticator ports.PasskeyAuthenticator, opts ...Option) *Stamper {
	s := &Stamper{authenticator: authenticator, timeout: DefaultCeremonyTimeout}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

type webAuthnStamp struct {
	AuthenticatorData string `json:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJson"`
	CredentialID      string `json:"credentialId"`
	Signature         string `json:"signature"`
}

// Challenge is the value the authenticator signs for payload: the hex SHA-256 digest.
func Challenge(payload []byte) []byte {
	digest := sha256.Sum256(payload)
	return []byte(hex.EncodeToString(digest[:]))
}

func (s *Stamper) Stamp(ctx context.Context, payload []byte) (domain.Stamp, error) {
	challenge := Challenge(payload)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	assertion, err := s.authenticator.GetAssertion(ctx, challenge, s.allowCredentials)
	if err != nil {
		return domain.Stamp{}, ceremonyError(err)
	}

	if err := validateAssertion(assertion, challenge); err != nil {
		return domain.Stamp{}, ceremonyError(err)
	}

	raw, err := json.Marshal(webAuthnStamp{
		AuthenticatorData: base64.RawURLEncoding.EncodeToString(assertion.AuthenticatorData),
		ClientDataJSON:    base64.RawURLEncoding.EncodeToString(assertion.ClientDataJSON),
		CredentialID:      base64.RawURLEncoding.EncodeToString(assertion.CredentialID),
		Signature:         base64.RawURLEncoding.EncodeToString(assertion.Signature),
	})
	if err != nil {
		return domain.Stamp{}, &domain.EncodingError{Op: "encode webauthn stamp", Err: err}
	}

	return domain.Stamp{
		HeaderName:  domain.WebAuthnStampHeaderName,
		HeaderValue: string(raw),
		Scheme:      domain.SchemeWebAuthn,
		PublicKey:   base64.RawURLEncoding.EncodeToString(assertion.CredentialID),
	}, nil
}

func validateAssertion(assertion ports.PasskeyAssertion, challenge []byte) error {
	if len(assertion.Signature) == 0 || len(assertion.CredentialID) == 0 {
		return errors.New("assertion is missing signature or credential id")
	}

	var clientData protocol.CollectedClientData
	if err := json.Unmarshal(assertion.ClientDataJSON, &clientData); err != nil {
		return fmt.Errorf("parse client data: %w", err)
	}
	if clientData.Type != protocol.AssertCeremony {
		return fmt.Errorf("unexpected ceremony type %q", clientData.Type)
	}

	want := base64.RawURLEncoding.EncodeToString(challenge)
	if strings.TrimRight(clientData.Challenge, "=") != want {
		return errors.New("challenge mismatch")
	}

	var authData protocol.AuthenticatorData
	if err := authData.Unmarshal(assertion.AuthenticatorData); err != nil {
		return fmt.Errorf("parse authenticator data: %w", err)
	}
	if !authData.Flags.UserPresent() {
		return errors.New("user not present")
	}

	return nil
}

func ceremonyError(err error) error {
	return &domain.SigningError{
		Op:  "passkey assertion",
		Err: fmt.Errorf("%w: %w", domain.ErrPasskeyCeremonyFailed, err),
	}
}
