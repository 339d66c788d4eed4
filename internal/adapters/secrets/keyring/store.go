package keyring

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
)

const DefaultServiceName = "stampkit"

// Store keeps secrets in the operating system credential store (Keychain,
// Secret Service, KWallet, Windows Credential Manager) through 99designs/keyring.
type Store struct {
	ring keyring.Keyring
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the platform keyring for serviceName.
func Open(serviceName string) (*Store, error) {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		KeychainTrustApplication: true,
		KeychainSynchronizable:   false,
		LibSecretCollectionName:  serviceName,
		KWalletAppID:             serviceName,
		KWalletFolder:            serviceName,
		WinCredPrefix:            serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	return NewStore(ring), nil
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: key,
	})
	if err != nil {
		return fmt.Errorf("keyring put %q: %w", key, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("keyring get %q: %w", key, domain.ErrSecretNotFound)
		}
		return "", fmt.Errorf("keyring get %q: %w", key, err)
	}

	return string(item.Data), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("keyring delete %q: %w", key, err)
	}

	return nil
}
