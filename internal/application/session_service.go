package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const DefaultSessionExpirationSeconds = 900

// KeyStamperFunc returns a stamper bound to one key pair in the key store.
type KeyStamperFunc func(publicKeyHex string) ports.Stamper

// SessionService creates, renews and discards sessions and their key pairs.
type SessionService struct {
	client     *Client
	keys       ports.KeyStore
	sessions   ports.SessionStore
	keyStamper KeyStamperFunc
	logger     zerolog.Logger
}

func NewSessionService(client *Client, keys ports.KeyStore, sessions ports.SessionStore, keyStamper KeyStamperFunc, logger zerolog.Logger) *SessionService {
	return &SessionService{
		client:     client,
		keys:       keys,
		sessions:   sessions,
		keyStamper: keyStamper,
		logger:     logger,
	}
}

type LoginRequest struct {
	SessionKey string
	// Credential is the stamper used for the login activity. Empty picks the
	// passkey, else the wallet.
	Credential         domain.CredentialType
	ExpirationSeconds  int
	InvalidateExisting bool
}

type stampLoginParams struct {
	PublicKey          string `json:"publicKey"`
	ExpirationSeconds  string `json:"expirationSeconds"`
	InvalidateExisting bool   `json:"invalidateExisting"`
}

type stampLoginResult struct {
	StampLoginResult *struct {
		Session string `json:"session"`
	} `json:"stampLoginResult"`
}

type readOnlySessionResult struct {
	CreateReadOnlySessionResult *struct {
		OrganizationID string `json:"organizationId"`
		UserID         string `json:"userId"`
		Session        string `json:"session"`
		SessionExpiry  string `json:"sessionExpiry"`
	} `json:"createReadOnlySessionResult"`
}

// sessionClaims are the claims carried by a session JWT.
type sessionClaims struct {
	PublicKey      string `json:"public_key"`
	SessionType    string `json:"session_type"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	jwt.RegisteredClaims
}

// ParseSessionToken decodes a session JWT into a Session. The signature is not
// checked: the token is issued by the custody API and only read locally.
func ParseSessionToken(token string) (domain.Session, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return domain.Session{}, fmt.Errorf("parse session token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return domain.Session{}, errors.New("session token has no expiry")
	}

	sessionType := domain.SessionType(claims.SessionType)
	if sessionType == "" {
		sessionType = domain.SessionTypeReadWrite
	}

	return domain.Session{
		Type:           sessionType,
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Token:          token,
		PublicKey:      claims.PublicKey,
		Expiry:         claims.ExpiresAt.Unix(),
	}, nil
}

// ImportSession stores the session described by token under key and makes it
// active. Read-write sessions must be bound to a key pair held locally.
func (s *SessionService) ImportSession(ctx context.Context, token, key string) (domain.Session, error) {
	session, err := ParseSessionToken(token)
	if err != nil {
		return domain.Session{}, err
	}

	if session.PublicKey != "" {
		known, err := s.keys.ListPublicKeys(ctx)
		if err != nil {
			return domain.Session{}, fmt.Errorf("list key pairs: %w", err)
		}
		if !slices.Contains(known, session.PublicKey) {
			return domain.Session{}, &domain.CredentialError{
				Op:  "import session",
				Err: fmt.Errorf("%w: %s", domain.ErrKeyNotFound, session.PublicKey),
			}
		}
	}

	key = domain.NormalizeSessionKey(key)
	if err := s.sessions.StoreSession(ctx, session, key); err != nil {
		return domain.Session{}, fmt.Errorf("store session %q: %w", key, err)
	}
	s.logger.Info().Str("session_key", key).Time("expires_at", session.ExpiresAt()).Msg("session stored")

	return session, nil
}

// Login creates a key pair, has the passkey or wallet approve a STAMP_LOGIN
// for it and stores the returned session. The key pair is removed on failure.
func (s *SessionService) Login(ctx context.Context, req LoginRequest) (domain.Session, error) {
	credential := req.Credential
	if credential == "" {
		var ok bool
		credential, ok = s.client.InteractiveCredential(ctx)
		if !ok {
			return domain.Session{}, &domain.CredentialError{Op: "login", Err: domain.ErrNoActiveCredential}
		}
	}

	return s.stampLogin(ctx, req, func(ctx context.Context, params stampLoginParams) (domain.Activity, error) {
		return s.client.SubmitActivityAs(ctx, credential, PathStampLogin, domain.ActivityTypeStampLogin, params)
	})
}

// RefreshSession replaces the session under key with a new one approved by
// its current key pair, then deletes the old key pair.
func (s *SessionService) RefreshSession(ctx context.Context, key string, expirationSeconds int) (domain.Session, error) {
	key = domain.NormalizeSessionKey(key)
	current, err := s.sessions.GetSession(ctx, key)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session %q: %w", key, err)
	}
	if current.PublicKey == "" {
		return domain.Session{}, &domain.CredentialError{
			Op:  "refresh session",
			Err: fmt.Errorf("%w: session %q has no bound key", domain.ErrNoActiveCredential, key),
		}
	}

	stamper := s.keyStamper(current.PublicKey)
	refreshed, err := s.stampLogin(ctx, LoginRequest{SessionKey: key, ExpirationSeconds: expirationSeconds}, func(ctx context.Context, params stampLoginParams) (domain.Activity, error) {
		return s.client.SubmitActivityWith(ctx, stamper, PathStampLogin, domain.ActivityTypeStampLogin, params)
	})
	if err != nil {
		return domain.Session{}, err
	}

	if refreshed.PublicKey != current.PublicKey {
		if err := s.keys.DeleteKeyPair(ctx, current.PublicKey); err != nil {
			return refreshed, fmt.Errorf("delete replaced key pair: %w", err)
		}
	}

	return refreshed, nil
}

func (s *SessionService) stampLogin(ctx context.Context, req LoginRequest, submit func(context.Context, stampLoginParams) (domain.Activity, error)) (domain.Session, error) {
	expiration := req.ExpirationSeconds
	if expiration <= 0 {
		expiration = DefaultSessionExpirationSeconds
	}

	publicKey, err := s.keys.CreateKeyPair(ctx, nil)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session key pair: %w", err)
	}

	session, err := func() (domain.Session, error) {
		activity, err := submit(ctx, stampLoginParams{
			PublicKey:          publicKey,
			ExpirationSeconds:  strconv.Itoa(expiration),
			InvalidateExisting: req.InvalidateExisting,
		})
		if err != nil {
			return domain.Session{}, fmt.Errorf("stamp login: %w", err)
		}

		var result stampLoginResult
		if err := json.Unmarshal(activity.Result, &result); err != nil || result.StampLoginResult == nil {
			return domain.Session{}, fmt.Errorf("activity %s has no stamp login result", activity.ID)
		}

		return s.ImportSession(ctx, result.StampLoginResult.Session, req.SessionKey)
	}()
	if err != nil {
		if rollbackErr := s.keys.DeleteKeyPair(context.WithoutCancel(ctx), publicKey); rollbackErr != nil {
			return domain.Session{}, fmt.Errorf("login and rollback session key pair: %w", errors.Join(err, rollbackErr))
		}
		return domain.Session{}, err
	}

	return session, nil
}

// CreateReadOnlySession stores a read-only session under key without changing
// which session is active.
func (s *SessionService) CreateReadOnlySession(ctx context.Context, key string) (domain.Session, error) {
	if key == "" {
		return domain.Session{}, errors.New("read-only session key is required")
	}

	activity, err := s.client.SubmitActivity(ctx, PathCreateReadOnlySession, domain.ActivityTypeCreateReadOnlySession, nil)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create read-only session: %w", err)
	}

	var result readOnlySessionResult
	if err := json.Unmarshal(activity.Result, &result); err != nil || result.CreateReadOnlySessionResult == nil {
		return domain.Session{}, fmt.Errorf("activity %s has no read-only session result", activity.ID)
	}
	payload := result.CreateReadOnlySessionResult

	expiry, err := strconv.ParseInt(payload.SessionExpiry, 10, 64)
	if err != nil {
		return domain.Session{}, fmt.Errorf("parse read-only session expiry: %w", err)
	}

	session := domain.Session{
		Type:           domain.SessionTypeReadOnly,
		UserID:         payload.UserID,
		OrganizationID: payload.OrganizationID,
		Token:          payload.Session,
		Expiry:         expiry,
	}

	previous, err := s.sessions.GetActiveSessionKey(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load active session key: %w", err)
	}
	if err := s.sessions.StoreSession(ctx, session, key); err != nil {
		return domain.Session{}, fmt.Errorf("store read-only session %q: %w", key, err)
	}
	if previous != "" && previous != key {
		if err := s.sessions.SetActiveSession(ctx, previous); err != nil {
			return domain.Session{}, fmt.Errorf("restore active session %q: %w", previous, err)
		}
	}

	return session, nil
}

// Logout clears the session under key and deletes its key pair.
func (s *SessionService) Logout(ctx context.Context, key string) error {
	key = domain.NormalizeSessionKey(key)
	session, err := s.sessions.GetSession(ctx, key)
	if err != nil {
		return fmt.Errorf("load session %q: %w", key, err)
	}

	if err := s.sessions.ClearSession(ctx, key); err != nil {
		return fmt.Errorf("clear session %q: %w", key, err)
	}

	if session.PublicKey != "" {
		if err := s.keys.DeleteKeyPair(ctx, session.PublicKey); err != nil {
			return fmt.Errorf("delete session key pair: %w", err)
		}
	}
	s.logger.Info().Str("session_key", key).Msg("logged out")

	return nil
}

// Reauthenticate is a RefreshHook: it logs in again with the passkey or
// wallet and stores the new session under the expired session's key.
func (s *SessionService) Reauthenticate(ctx context.Context, expired *domain.SessionExpiredError) error {
	previous, err := s.sessions.GetSession(ctx, expired.SessionKey)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("load expired session: %w", err)
	}

	if _, err := s.Login(ctx, LoginRequest{SessionKey: expired.SessionKey}); err != nil {
		return err
	}

	if previous.PublicKey != "" {
		if err := s.keys.DeleteKeyPair(ctx, previous.PublicKey); err != nil {
			s.logger.Warn().Err(err).Str("session_key", expired.SessionKey).Msg("delete expired session key pair")
		}
	}

	return nil
}
