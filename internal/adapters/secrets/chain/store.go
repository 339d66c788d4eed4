package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/stampkit/internal/adapters/secrets/file"
	passstore "github.com/bnema/stampkit/internal/adapters/secrets/pass"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/rs/zerolog"
)

// Store reads and writes through primary and keeps fallback for the times
// primary is unavailable. A value that only fallback holds is moved into
// primary on first read. Deletes reach both backends so that a removed key
// pair or session cannot be served again from a stale copy.
type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
	logger   zerolog.Logger
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(primary ports.SecretStore, fallback ports.SecretStore, opts ...Option) *Store {
	store, err := NewStoreChecked(primary, fallback, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.SecretStore, fallback ports.SecretStore, opts ...Option) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	store := &Store{primary: primary, fallback: fallback, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

func NewPassFirstWithFileFallback(passPrefix string, fileRoot string, logger zerolog.Logger, opts ...filestore.Option) (*Store, error) {
	return NewStoreChecked(passstore.NewStore(passPrefix), filestore.NewStore(fileRoot, opts...), WithLogger(logger))
}

// Put writes to primary and drops any fallback copy, or writes to fallback
// when primary fails.
func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil {
		if dropErr := s.fallback.Delete(ctx, key); dropErr != nil {
			s.logger.Warn().Err(dropErr).Str("key", key).Msg("drop fallback secret copy")
		}
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	s.logger.Warn().Err(err).Str("key", key).Msg("primary secret backend put failed, using fallback")
	fallbackErr := s.fallback.Put(ctx, key, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackValue, fallbackErr := s.fallback.Get(ctx, key)
	switch {
	case fallbackErr == nil:
		if errors.Is(err, domain.ErrSecretNotFound) {
			s.promote(ctx, key, fallbackValue)
		}
		return fallbackValue, nil
	case errors.Is(err, domain.ErrSecretNotFound) && errors.Is(fallbackErr, domain.ErrSecretNotFound):
		return "", fmt.Errorf("get secret %q: %w", key, domain.ErrSecretNotFound)
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// promote copies a value held only by fallback into primary. Failures leave
// the fallback copy in place.
func (s *Store) promote(ctx context.Context, key string, value string) {
	if err := s.primary.Put(ctx, key, value); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("promote fallback secret")
		return
	}
	if err := s.fallback.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("drop promoted fallback secret")
		return
	}
	s.logger.Debug().Str("key", key).Msg("fallback secret promoted")
}

// Delete removes key from both backends and fails if either still holds it.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.primary.Delete(ctx, key)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Delete(ctx, key)
	switch {
	case err == nil && fallbackErr == nil:
		return nil
	case err == nil:
		return fmt.Errorf("fallback backend delete failed: %w", fallbackErr)
	case fallbackErr == nil:
		return fmt.Errorf("primary backend delete failed: %w", err)
	}

	return fmt.Errorf("primary backend delete failed: %w; fallback backend delete failed: %w", err, fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
