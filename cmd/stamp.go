package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/spf13/cobra"
)

var errWalletNotConfigured = errors.New("no wallet configured (set wallet.ethereum_key, wallet.ethereum_rpc or wallet.solana_key)")

func newStampCmd(deps *lazyApp) *cobra.Command {
	var (
		body       string
		credential string
		publicKey  string
		chain      string
		address    string
	)

	cmd := &cobra.Command{
		Use:   "stamp",
		Short: "Sign a request body and print the stamp header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			payload, err := readBody(cmd.InOrStdin(), body)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var stamp domain.Stamp
			switch {
			case chain != "":
				if app.wallet == nil {
					return errWalletNotConfigured
				}
				bound := app.wallet.ForChain(domain.ChainContext{Chain: domain.Chain(chain), Address: address})
				stamp, err = bound.Stamp(ctx, payload)
			case publicKey != "":
				app.apiKey.SetPublicKeyOverride(publicKey)
				defer app.apiKey.ClearPublicKeyOverride()
				stamp, err = app.client.StampAs(ctx, domain.CredentialAPIKey, payload)
			default:
				if err := app.client.UseCredential(domain.CredentialType(credential)); err != nil {
					return err
				}
				stamp, err = app.client.Stamp(ctx, payload)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", stamp.HeaderName, stamp.HeaderValue)
			return err
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "Request body to sign, or - to read stdin")
	cmd.Flags().StringVar(&credential, "credential", "", "Credential type (api_key|wallet), default: automatic")
	cmd.Flags().StringVar(&publicKey, "key", "", "Sign with this stored API public key instead of the session key")
	cmd.Flags().StringVar(&chain, "chain", "", "Sign with the wallet on this chain (eip155|solana)")
	cmd.Flags().StringVar(&address, "address", "", "Wallet address to sign with (with --chain)")
	_ = cmd.MarkFlagRequired("body")
	cmd.MarkFlagsMutuallyExclusive("credential", "key", "chain")

	return cmd
}

func readBody(stdin io.Reader, body string) ([]byte, error) {
	if body != "-" {
		return []byte(body), nil
	}

	payload, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read body from stdin: %w", err)
	}

	return payload, nil
}
