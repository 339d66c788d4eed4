// Package sessionstore picks the SessionStore implementation named in config.
package sessionstore

import (
	"fmt"

	"github.com/bnema/stampkit/internal/adapters/sessionstore/kv"
	tomlstore "github.com/bnema/stampkit/internal/adapters/sessionstore/toml"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/spf13/viper"
)

const (
	BackendKV   = "kv"
	BackendTOML = "toml"
)

// Open returns the kv store over secrets, or the toml file store configured by cfg.
func Open(backend string, cfg *viper.Viper, secrets ports.SecretStore) (ports.SessionStore, error) {
	switch backend {
	case "", BackendKV:
		if secrets == nil {
			return nil, fmt.Errorf("kv session store needs a secret store")
		}
		return kv.NewStore(secrets), nil
	case BackendTOML:
		return tomlstore.NewStore(cfg)
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}
