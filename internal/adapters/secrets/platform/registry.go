// Package platform selects and opens a secret store backend by name.
package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/stampkit/internal/ports"
	"github.com/rs/zerolog"
)

// Options carries the settings every backend factory may read.
type Options struct {
	Dir         string
	Passphrase  string
	ServiceName string
	PassPrefix  string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
	Logger      zerolog.Logger
}

// Factory opens a secret store backend.
type Factory func(ctx context.Context, opts Options) (ports.SecretStore, error)

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

// RegisterBackend makes a backend available under name. Called from init().
func RegisterBackend(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

func getFactory(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("no secret backend registered as %q", name)
	}

	return factory, nil
}

func ListBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
