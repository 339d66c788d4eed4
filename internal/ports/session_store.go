package ports

import (
	"context"

	"github.com/bnema/stampkit/internal/domain"
)

// SessionStore persists sessions under caller-chosen keys and tracks the
// active one. An empty key means domain.DefaultSessionKey.
type SessionStore interface {
	// StoreSession upserts the session and makes it active.
	StoreSession(ctx context.Context, session domain.Session, key string) error
	GetSession(ctx context.Context, key string) (domain.Session, error)
	GetActiveSession(ctx context.Context) (domain.Session, error)
	// GetActiveSessionKey returns "" when no session is active.
	GetActiveSessionKey(ctx context.Context) (string, error)
	SetActiveSession(ctx context.Context, key string) error
	ListSessionKeys(ctx context.Context) ([]string, error)
	ClearSession(ctx context.Context, key string) error
	ClearAllSessions(ctx context.Context) error
}
