package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
)

// Store is a process-local secret store, used for ephemeral sessions and tests.
type Store struct {
	mu      sync.RWMutex
	secrets map[string]string
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{secrets: map[string]string{}}
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets[key] = value
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.secrets[key]
	if !ok {
		return "", fmt.Errorf("memory secret %q: %w", key, domain.ErrSecretNotFound)
	}

	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.secrets, key)
	return nil
}
