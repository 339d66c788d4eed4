package cmd

import (
	"encoding/json"
	"errors"

	"github.com/bnema/stampkit/internal/application"
	"github.com/spf13/cobra"
)

func newQueryCmd(deps *lazyApp) *cobra.Command {
	var body string

	cmd := &cobra.Command{
		Use:   "query <path>",
		Short: "Send a stamped read-only query and print the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			raw, err := readBody(cmd.InOrStdin(), body)
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return errors.New("--body must be valid JSON")
			}

			var result json.RawMessage
			if err := app.client.Query(cmd.Context(), args[0], json.RawMessage(raw), &result); err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&body, "body", "{}", "Query body as JSON, or - to read stdin")

	return cmd
}

func newWhoamiCmd(deps *lazyApp) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user and organization behind the active credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			var result json.RawMessage
			if err := app.client.Query(cmd.Context(), application.PathWhoami, nil, &result); err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}
