package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	sessionsrender "github.com/bnema/stampkit/internal/adapters/render/sessions"
	"github.com/bnema/stampkit/internal/application"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(deps *lazyApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage stored sessions",
	}

	cmd.AddCommand(
		newSessionListCmd(deps),
		newSessionShowCmd(deps),
		newSessionUseCmd(deps),
		newSessionClearCmd(deps),
		newSessionImportCmd(deps),
		newSessionRefreshCmd(deps),
		newSessionLoginCmd(deps),
		newSessionLogoutCmd(deps),
		newSessionReadOnlyCmd(deps),
	)

	return cmd
}

type sessionView struct {
	Key            string             `json:"key"`
	Active         bool               `json:"active"`
	Type           domain.SessionType `json:"sessionType"`
	UserID         string             `json:"userId"`
	OrganizationID string             `json:"organizationId"`
	PublicKey      string             `json:"publicKey,omitempty"`
	ExpiresAt      time.Time          `json:"expiresAt"`
	Expired        bool               `json:"expired"`
}

func newSessionView(row sessionsrender.Row, now time.Time) sessionView {
	return sessionView{
		Key:            row.Key,
		Active:         row.Active,
		Type:           row.Session.Type,
		UserID:         row.Session.UserID,
		OrganizationID: row.Session.OrganizationID,
		PublicKey:      row.Session.PublicKey,
		ExpiresAt:      row.Session.ExpiresAt().UTC(),
		Expired:        !domain.IsValidSession(&row.Session, now),
	}
}

func newSessionListCmd(deps *lazyApp) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			rows, err := loadSessionRows(cmd.Context(), app)
			if err != nil {
				return err
			}

			if asJSON {
				views := make([]sessionView, 0, len(rows))
				for _, row := range rows {
					views = append(views, newSessionView(row, app.now()))
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}

			output, err := app.sessionsRender(rows, sessionsrender.RenderOptions{Now: app.now()})
			if err != nil {
				return err
			}

			_, err = io.WriteString(cmd.OutOrStdout(), output)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func loadSessionRows(ctx context.Context, app *app) ([]sessionsrender.Row, error) {
	keys, err := app.sessions.ListSessionKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	active, err := app.sessions.GetActiveSessionKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active session key: %w", err)
	}

	rows := make([]sessionsrender.Row, 0, len(keys))
	for _, key := range keys {
		session, err := app.sessions.GetSession(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load session %q: %w", key, err)
		}
		rows = append(rows, sessionsrender.Row{Key: key, Session: session, Active: key == active})
	}

	return rows, nil
}

func newSessionShowCmd(deps *lazyApp) *cobra.Command {
	return &cobra.Command{
		Use:   "show [key]",
		Short: "Print one session as JSON (default: the active session)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			active, err := app.sessions.GetActiveSessionKey(ctx)
			if err != nil {
				return err
			}

			key := active
			if len(args) == 1 {
				key = args[0]
			}
			if key == "" {
				return domain.ErrNoActiveSession
			}

			session, err := app.sessions.GetSession(ctx, key)
			if err != nil {
				return err
			}

			row := sessionsrender.Row{Key: key, Session: session, Active: key == active}
			return writeJSON(cmd.OutOrStdout(), newSessionView(row, app.now()))
		},
	}
}

func newSessionUseCmd(deps *lazyApp) *cobra.Command {
	return &cobra.Command{
		Use:   "use <key>",
		Short: "Make a stored session active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			if err := app.sessions.SetActiveSession(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "active session: %s\n", args[0])
			return err
		},
	}
}

func newSessionClearCmd(deps *lazyApp) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [key]",
		Short: "Remove one stored session, or all with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			if all {
				if err := app.sessions.ClearAllSessions(cmd.Context()); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "cleared all sessions")
				return err
			}

			key := domain.DefaultSessionKey
			if len(args) == 1 {
				key = args[0]
			}
			if err := app.sessions.ClearSession(cmd.Context(), key); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared session %s\n", key)
			return err
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every stored session")

	return cmd
}

func newSessionImportCmd(deps *lazyApp) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "import <session-jwt>",
		Short: "Store a session token issued by the API and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			session, err := app.service.ImportSession(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}

			return writeSessionStored(cmd.OutOrStdout(), domain.NormalizeSessionKey(key), session)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Session key (default "+domain.DefaultSessionKey+")")

	return cmd
}

func newSessionRefreshCmd(deps *lazyApp) *cobra.Command {
	var expiration int

	cmd := &cobra.Command{
		Use:   "refresh [key]",
		Short: "Replace a session with a fresh one approved by its current key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			key := ""
			if len(args) == 1 {
				key = args[0]
			}

			session, err := app.service.RefreshSession(cmd.Context(), key, expiration)
			if err != nil {
				return err
			}

			return writeSessionStored(cmd.OutOrStdout(), domain.NormalizeSessionKey(key), session)
		},
	}

	cmd.Flags().IntVar(&expiration, "expiration", 0, "Session lifetime in seconds (default 900)")

	return cmd
}

func newSessionLoginCmd(deps *lazyApp) *cobra.Command {
	var (
		key        string
		credential string
		expiration int
		invalidate bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Create a key pair and a session approved by the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			session, err := app.service.Login(cmd.Context(), application.LoginRequest{
				SessionKey:         key,
				Credential:         domain.CredentialType(credential),
				ExpirationSeconds:  expiration,
				InvalidateExisting: invalidate,
			})
			if err != nil {
				return err
			}

			return writeSessionStored(cmd.OutOrStdout(), domain.NormalizeSessionKey(key), session)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Session key (default "+domain.DefaultSessionKey+")")
	cmd.Flags().StringVar(&credential, "credential", "", "Credential approving the login (passkey|wallet)")
	cmd.Flags().IntVar(&expiration, "expiration", 0, "Session lifetime in seconds (default 900)")
	cmd.Flags().BoolVar(&invalidate, "invalidate-existing", false, "Invalidate other sessions of the user")

	return cmd
}

func newSessionLogoutCmd(deps *lazyApp) *cobra.Command {
	return &cobra.Command{
		Use:   "logout [key]",
		Short: "Remove a session and delete its key pair",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			if err := app.service.Logout(cmd.Context(), key); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "logged out of %s\n", domain.NormalizeSessionKey(key))
			return err
		},
	}
}

func newSessionReadOnlyCmd(deps *lazyApp) *cobra.Command {
	return &cobra.Command{
		Use:   "read-only <key>",
		Short: "Create a read-only session without changing the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := deps.get(cmd.Context())
			if err != nil {
				return err
			}

			session, err := app.service.CreateReadOnlySession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return writeSessionStored(cmd.OutOrStdout(), args[0], session)
		},
	}
}

func writeSessionStored(w io.Writer, key string, session domain.Session) error {
	_, err := fmt.Fprintf(w, "stored session %s (%s, expires %s)\n",
		key, session.Type, session.ExpiresAt().UTC().Format(time.RFC3339))
	return err
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
