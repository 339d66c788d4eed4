package domain

import "time"

type SessionType string

const (
	SessionTypeReadOnly  SessionType = "SESSION_TYPE_READ_ONLY"
	SessionTypeReadWrite SessionType = "SESSION_TYPE_READ_WRITE"
)

const (
	DefaultSessionKey = "@turnkey/session/v3"
	SessionKeysKey    = "@turnkey/session-keys"
	ActiveSessionKey  = "@turnkey/active-session"
)

type Session struct {
	Type           SessionType `json:"sessionType"`
	UserID         string      `json:"userId"`
	OrganizationID string      `json:"organizationId"`
	Token          string      `json:"token,omitempty"`
	PublicKey      string      `json:"publicKey,omitempty"`
	// Expiry is in seconds since the epoch.
	Expiry int64 `json:"expiry"`
}

func (s Session) ExpiresAt() time.Time {
	return time.Unix(s.Expiry, 0)
}

// IsValidSession reports whether s has not yet expired at now. A session whose
// expiry equals now is already invalid.
func IsValidSession(s *Session, now time.Time) bool {
	if s == nil {
		return false
	}

	return s.Expiry*1000 > now.UnixMilli()
}

// NormalizeSessionKey maps the empty key to DefaultSessionKey.
func NormalizeSessionKey(key string) string {
	if key == "" {
		return DefaultSessionKey
	}

	return key
}
