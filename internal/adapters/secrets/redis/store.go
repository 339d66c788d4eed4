package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "stampkit:"

// Store keeps secrets in redis so several processes can share one session set.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(client goredis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Dial connects to addr and checks the connection with a ping.
func Dial(ctx context.Context, addr string, db int, prefix string) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is not configured")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewStore(client, prefix), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis put %q: %w", key, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", fmt.Errorf("redis get %q: %w", key, domain.ErrSecretNotFound)
		}
		return "", fmt.Errorf("redis get %q: %w", key, err)
	}

	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}

	return nil
}
