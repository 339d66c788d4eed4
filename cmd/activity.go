package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/spf13/cobra"
)

func newActivityCmd(deps *lazyApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Submit, inspect and resume activities",
	}

	cmd.AddCommand(
		newActivityGetCmd(deps),
		newActivityWaitCmd(deps),
		newActivitySubmitCmd(deps),
	)

	return cmd
}

func newActivityGetCmd(deps *lazyApp) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get <activity-id>",
		Short: "Fetch an activity once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			activity, err := app.client.GetActivity(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return writeActivity(cmd.OutOrStdout(), activity, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newActivityWaitCmd(deps *lazyApp) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "wait <activity-id>",
		Short: "Poll an activity until it settles or needs consensus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			var activity domain.Activity
			err = runActivitySpinner(cmd.Context(), cmd.ErrOrStderr(), "Waiting for activity "+args[0]+"...", func(ctx context.Context) error {
				var runErr error
				activity, runErr = app.client.ResumeActivity(ctx, args[0])
				return runErr
			})
			if err != nil {
				return withConsensusHint(cmd.ErrOrStderr(), err)
			}

			return writeActivity(cmd.OutOrStdout(), activity, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newActivitySubmitCmd(deps *lazyApp) *cobra.Command {
	var (
		path         string
		activityType string
		params       string
		credential   string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an activity and poll it until it settles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			raw, err := readBody(cmd.InOrStdin(), params)
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return errors.New("--parameters must be valid JSON")
			}
			if err := app.client.UseCredential(domain.CredentialType(credential)); err != nil {
				return err
			}

			var activity domain.Activity
			err = runActivitySpinner(cmd.Context(), cmd.ErrOrStderr(), "Submitting "+activityType+"...", func(ctx context.Context) error {
				var runErr error
				activity, runErr = app.client.SubmitActivity(ctx, path, activityType, json.RawMessage(raw))
				return runErr
			})
			if err != nil {
				return withConsensusHint(cmd.ErrOrStderr(), err)
			}

			return writeActivity(cmd.OutOrStdout(), activity, asJSON)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Submit endpoint path, e.g. /public/v1/submit/create_wallet")
	cmd.Flags().StringVar(&activityType, "type", "", "Activity type, e.g. ACTIVITY_TYPE_CREATE_WALLET")
	cmd.Flags().StringVar(&params, "parameters", "{}", "Activity parameters as JSON, or - to read stdin")
	cmd.Flags().StringVar(&credential, "credential", "", "Credential type (api_key|wallet), default: automatic")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

// withConsensusHint tells the user how to resume an activity that ran out of
// poll attempts.
func withConsensusHint(w io.Writer, err error) error {
	var consensus *domain.ConsensusNeededError
	if errors.As(err, &consensus) {
		_, _ = fmt.Fprintf(w, "activity %s still needs consensus; resume with: stk activity wait %s\n", consensus.ActivityID, consensus.ActivityID)
	}

	return err
}

func writeActivity(w io.Writer, activity domain.Activity, asJSON bool) error {
	if asJSON {
		return writeJSON(w, activity)
	}

	if _, err := fmt.Fprintf(w, "%s  %s  %s\n", activity.ID, activity.Status, activity.Type); err != nil {
		return err
	}
	if activity.Failure != nil && activity.Failure.Message != "" {
		if _, err := fmt.Fprintf(w, "failure: %s\n", activity.Failure.Message); err != nil {
			return err
		}
	}

	return nil
}
