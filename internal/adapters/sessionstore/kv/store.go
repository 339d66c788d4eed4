// Package kv stores sessions in any secret store, one entry per session plus
// an index entry and an active-session pointer.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
)

type Store struct {
	secrets ports.SecretStore
	mu      sync.RWMutex
}

var _ ports.SessionStore = (*Store)(nil)

func NewStore(secrets ports.SecretStore) *Store {
	return &Store{secrets: secrets}
}

func (s *Store) StoreSession(ctx context.Context, session domain.Session, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = domain.NormalizeSessionKey(key)

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.secrets.Put(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("store session %q: %w", key, err)
	}

	keys, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(keys, key) {
		if err := s.writeIndex(ctx, append(keys, key)); err != nil {
			return err
		}
	}

	if err := s.secrets.Put(ctx, domain.ActiveSessionKey, key); err != nil {
		return fmt.Errorf("set active session: %w", err)
	}

	return nil
}

func (s *Store) GetSession(ctx context.Context, key string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readSession(ctx, domain.NormalizeSessionKey(key))
}

func (s *Store) GetActiveSession(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key, err := s.readActiveKey(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if key == "" {
		return domain.Session{}, domain.ErrNoActiveSession
	}

	session, err := s.readSession(ctx, key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, domain.ErrNoActiveSession
	}

	return session, err
}

func (s *Store) GetActiveSessionKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readActiveKey(ctx)
}

func (s *Store) SetActiveSession(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = domain.NormalizeSessionKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(keys, key) {
		return fmt.Errorf("activate session %q: %w", key, domain.ErrSessionNotFound)
	}

	if err := s.secrets.Put(ctx, domain.ActiveSessionKey, key); err != nil {
		return fmt.Errorf("set active session: %w", err)
	}

	return nil
}

func (s *Store) ListSessionKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readIndex(ctx)
}

func (s *Store) ClearSession(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = domain.NormalizeSessionKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clearLocked(ctx, key)
}

func (s *Store) ClearAllSessions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.readIndex(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		if err := s.clearLocked(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.secrets.Delete(ctx, domain.SessionKeysKey); err != nil {
		errs = append(errs, fmt.Errorf("delete session index: %w", err))
	}
	if err := s.secrets.Delete(ctx, domain.ActiveSessionKey); err != nil {
		errs = append(errs, fmt.Errorf("delete active session: %w", err))
	}

	return errors.Join(errs...)
}

func (s *Store) clearLocked(ctx context.Context, key string) error {
	if err := s.secrets.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete session %q: %w", key, err)
	}

	keys, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	if remaining := slices.DeleteFunc(slices.Clone(keys), func(k string) bool { return k == key }); len(remaining) != len(keys) {
		if err := s.writeIndex(ctx, remaining); err != nil {
			return err
		}
	}

	active, err := s.readActiveKey(ctx)
	if err != nil {
		return err
	}
	if active == key {
		if err := s.secrets.Delete(ctx, domain.ActiveSessionKey); err != nil {
			return fmt.Errorf("clear active session: %w", err)
		}
	}

	return nil
}

func (s *Store) readSession(ctx context.Context, key string) (domain.Session, error) {
	raw, err := s.secrets.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return domain.Session{}, fmt.Errorf("session %q: %w", key, domain.ErrSessionNotFound)
		}
		return domain.Session{}, fmt.Errorf("read session %q: %w", key, err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %q: %w", key, err)
	}

	return session, nil
}

func (s *Store) readActiveKey(ctx context.Context) (string, error) {
	key, err := s.secrets.Get(ctx, domain.ActiveSessionKey)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read active session: %w", err)
	}

	return key, nil
}

func (s *Store) readIndex(ctx context.Context) ([]string, error) {
	raw, err := s.secrets.Get(ctx, domain.SessionKeysKey)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read session index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("decode session index: %w", err)
	}

	return keys, nil
}

func (s *Store) writeIndex(ctx context.Context, keys []string) error {
	raw, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("encode session index: %w", err)
	}

	if err := s.secrets.Put(ctx, domain.SessionKeysKey, string(raw)); err != nil {
		return fmt.Errorf("write session index: %w", err)
	}

	return nil
}
