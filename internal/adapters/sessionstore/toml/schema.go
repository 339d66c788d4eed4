package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Active   string          `toml:"active,omitempty"`
	Sessions []sessionSchema `toml:"sessions"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported sessions schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

func (s fileSchema) indexOf(key string) int {
	for i := range s.Sessions {
		if s.Sessions[i].Key == key {
			return i
		}
	}

	return -1
}

type sessionSchema struct {
	Key            string `toml:"key"`
	Type           string `toml:"type"`
	UserID         string `toml:"user_id"`
	OrganizationID string `toml:"organization_id"`
	Token          string `toml:"token,omitempty"`
	PublicKey      string `toml:"public_key,omitempty"`
	Expiry         int64  `toml:"expiry"`
}
