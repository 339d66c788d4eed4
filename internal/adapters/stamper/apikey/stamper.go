// Package apikey stamps requests with a P-256 key held in the key store.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/stampkit/internal/adapters/stamper"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/bnema/stampkit/internal/sigcodec"
)

type Stamper struct {
	keys     ports.KeyStore
	sessions ports.SessionStore
	clock    ports.Clock

	mu       sync.RWMutex
	override string
}

var _ ports.Stamper = (*Stamper)(nil)

func New(keys ports.KeyStore, sessions ports.SessionStore, clock ports.Clock) *Stamper {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Stamper{keys: keys, sessions: sessions, clock: clock}
}

// SetPublicKeyOverride pins the signing key until ClearPublicKeyOverride.
func (s *Stamper) SetPublicKeyOverride(publicKeyHex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = publicKeyHex
}

func (s *Stamper) ClearPublicKeyOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = ""
}

func (s *Stamper) PublicKeyOverride() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.override
}

// HasCredential reports whether an override or an active session exists.
// An expired session still counts so that callers get the expiry error.
func (s *Stamper) HasCredential(ctx context.Context) bool {
	if s.PublicKeyOverride() != "" {
		return true
	}

	key, err := s.sessions.GetActiveSessionKey(ctx)
	return err == nil && key != ""
}

func (s *Stamper) Stamp(ctx context.Context, payload []byte) (domain.Stamp, error) {
	publicKey, err := s.resolvePublicKey(ctx)
	if err != nil {
		return domain.Stamp{}, err
	}

	raw, err := s.keys.Sign(ctx, payload, publicKey)
	if err != nil {
		return domain.Stamp{}, fmt.Errorf("sign with api key: %w", err)
	}

	der, err := sigcodec.IEEE1363ToDER(raw)
	if err != nil {
		return domain.Stamp{}, err
	}

	return stamper.Encode(publicKey, domain.SchemeAPIP256, der)
}

func (s *Stamper) resolvePublicKey(ctx context.Context) (string, error) {
	if override := s.PublicKeyOverride(); override != "" {
		return override, nil
	}

	key, err := s.sessions.GetActiveSessionKey(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve active session: %w", err)
	}
	if key == "" {
		return "", &domain.CredentialError{Op: "resolve api key", Err: domain.ErrNoActiveCredential}
	}

	session, err := s.sessions.GetSession(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return "", &domain.CredentialError{Op: "resolve api key", Err: domain.ErrNoActiveCredential}
		}
		return "", fmt.Errorf("load active session: %w", err)
	}

	if !domain.IsValidSession(&session, s.clock.Now()) {
		return "", &domain.SessionExpiredError{SessionKey: key, Expiry: session.Expiry}
	}
	if session.PublicKey == "" {
		return "", &domain.CredentialError{
			Op:  "resolve api key",
			Err: fmt.Errorf("%w: session %q has no bound key", domain.ErrNoActiveCredential, key),
		}
	}

	return session.PublicKey, nil
}
