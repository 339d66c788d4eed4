package platform

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	chainstore "github.com/bnema/stampkit/internal/adapters/secrets/chain"
	filestore "github.com/bnema/stampkit/internal/adapters/secrets/file"
	memorystore "github.com/bnema/stampkit/internal/adapters/secrets/memory"
	passstore "github.com/bnema/stampkit/internal/adapters/secrets/pass"
	redisstore "github.com/bnema/stampkit/internal/adapters/secrets/redis"
	"github.com/bnema/stampkit/internal/ports"
)

const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendPass    = "pass"
	BackendChain   = "chain"
	BackendRedis   = "redis"
	BackendMemory  = "memory"
)

func init() {
	RegisterBackend(BackendFile, openFile)
	RegisterBackend(BackendPass, openPass)
	RegisterBackend(BackendChain, openChain)
	RegisterBackend(BackendRedis, openRedis)
	RegisterBackend(BackendMemory, func(context.Context, Options) (ports.SecretStore, error) {
		return memorystore.NewStore(), nil
	})
}

// Open returns the backend registered as name. "auto" prefers the operating
// system keyring when this build supports one and falls back to files.
func Open(ctx context.Context, name string, opts Options) (ports.SecretStore, error) {
	if name == "" || name == BackendAuto {
		name = BackendFile
		if _, err := getFactory(BackendKeyring); err == nil {
			name = BackendKeyring
		}
	}

	factory, err := getFactory(name)
	if err != nil {
		return nil, err
	}

	store, err := factory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s secret backend: %w", name, err)
	}

	return store, nil
}

func openFile(_ context.Context, opts Options) (ports.SecretStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("secrets directory is empty")
	}

	return filestore.NewStore(filepath.Clean(opts.Dir), filestore.WithPassphrase(opts.Passphrase)), nil
}

func openPass(_ context.Context, opts Options) (ports.SecretStore, error) {
	return passstore.NewStore(opts.PassPrefix), nil
}

func openChain(_ context.Context, opts Options) (ports.SecretStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("secrets directory is empty")
	}

	return chainstore.NewPassFirstWithFileFallback(opts.PassPrefix, opts.Dir, opts.Logger, filestore.WithPassphrase(opts.Passphrase))
}

func openRedis(ctx context.Context, opts Options) (ports.SecretStore, error) {
	prefix := opts.RedisPrefix
	if prefix == "" {
		prefix = redisstore.DefaultKeyPrefix
	}

	return redisstore.Dial(ctx, opts.RedisAddr, opts.RedisDB, prefix)
}
