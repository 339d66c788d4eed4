package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errClearNeedsConfirmation = errors.New("refusing to clear without --yes")

func newKeysCmd(deps *lazyApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage local API key pairs",
	}

	cmd.AddCommand(
		newKeysCreateCmd(deps),
		newKeysListCmd(deps),
		newKeysDeleteCmd(deps),
		newKeysClearCmd(deps),
	)

	return cmd
}

func newKeysCreateCmd(deps *lazyApp) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Generate a P-256 key pair and print its public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			publicKey, err := app.keys.CreateKeyPair(cmd.Context(), nil)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), publicKey)
			return err
		},
	}
}

func newKeysListCmd(deps *lazyApp) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored public keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			publicKeys, err := app.keys.ListPublicKeys(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(publicKeys) == 0 {
				_, err = fmt.Fprintln(out, "no key pairs")
				return err
			}
			for _, publicKey := range publicKeys {
				if _, err := fmt.Fprintln(out, publicKey); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func newKeysDeleteCmd(deps *lazyApp) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <public-key>",
		Short: "Delete one key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			if err := app.keys.DeleteKeyPair(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}

func newKeysClearCmd(deps *lazyApp) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errClearNeedsConfirmation
			}

			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			if err := app.keys.ClearAll(cmd.Context()); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "cleared all key pairs")
			return err
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm deletion")

	return cmd
}
