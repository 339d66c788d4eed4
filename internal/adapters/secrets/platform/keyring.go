//go:build darwin || linux || windows

package platform

import (
	"context"

	keyringstore "github.com/bnema/stampkit/internal/adapters/secrets/keyring"
	"github.com/bnema/stampkit/internal/ports"
)

func init() {
	RegisterBackend(BackendKeyring, func(_ context.Context, opts Options) (ports.SecretStore, error) {
		return keyringstore.Open(opts.ServiceName)
	})
}
