// Package toml keeps every session, the key index and the active pointer in
// one TOML document that is replaced atomically on each change.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	SessionsPathKey    = "sessions.path"
	sessionsFileMode   = 0o600
	sessionsDirMode    = 0o700
	sessionsConfigDir  = ".stampkit"
	sessionsConfigFile = "sessions.toml"
	tempFilePattern    = ".sessions-*.toml.tmp"
)

type Store struct {
	sessionsPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SessionStore = (*Store)(nil)

// NewStore resolves the sessions file from cfg, defaulting to
// ~/.stampkit/sessions.toml.
func NewStore(cfg *viper.Viper) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(SessionsPathKey, filepath.Join(homeDir, sessionsConfigDir, sessionsConfigFile))

	sessionsPath := cfg.GetString(SessionsPathKey)
	if sessionsPath == "" {
		return nil, errors.New("sessions path is empty")
	}
	sessionsPath, err = normalizeSessionsPath(sessionsPath)
	if err != nil {
		return nil, err
	}

	return &Store{sessionsPath: sessionsPath, mu: lockForPath(sessionsPath)}, nil
}

func (s *Store) Path() string {
	return s.sessionsPath
}

func (s *Store) StoreSession(ctx context.Context, session domain.Session, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = domain.NormalizeSessionKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(key, session)
	if i := file.indexOf(key); i >= 0 {
		file.Sessions[i] = encoded
	} else {
		file.Sessions = append(file.Sessions, encoded)
	}
	file.Active = key

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.writeSchema(file)
}

func (s *Store) GetSession(ctx context.Context, key string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	key = domain.NormalizeSessionKey(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Session{}, err
	}

	i := file.indexOf(key)
	if i < 0 {
		return domain.Session{}, fmt.Errorf("session %q: %w", key, domain.ErrSessionNotFound)
	}

	return fromSchema(file.Sessions[i]), nil
}

func (s *Store) GetActiveSession(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Session{}, err
	}

	i := file.indexOf(file.Active)
	if file.Active == "" || i < 0 {
		return domain.Session{}, domain.ErrNoActiveSession
	}

	return fromSchema(file.Sessions[i]), nil
}

func (s *Store) GetActiveSessionKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return "", err
	}

	return file.Active, nil
}

func (s *Store) SetActiveSession(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = domain.NormalizeSessionKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}
	if file.indexOf(key) < 0 {
		return fmt.Errorf("activate session %q: %w", key, domain.ErrSessionNotFound)
	}
	file.Active = key

	return s.writeSchema(file)
}

func (s *Store) ListSessionKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(file.Sessions))
	for _, entry := range file.Sessions {
		keys = append(keys, entry.Key)
	}

	return keys, nil
}

func (s *Store) ClearSession(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = domain.NormalizeSessionKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	i := file.indexOf(key)
	if i < 0 {
		return nil
	}
	file.Sessions = append(file.Sessions[:i], file.Sessions[i+1:]...)
	if file.Active == key {
		file.Active = ""
	}

	return s.writeSchema(file)
}

func (s *Store) ClearAllSessions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeSchema(fileSchema{})
}

func (s *Store) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.sessionsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read sessions file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode sessions file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeSessionsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve sessions path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (s *Store) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.sessionsPath), sessionsDirMode); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode sessions file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.sessionsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp sessions file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp sessions file: %w", err)
	}

	if err := tempFile.Chmod(sessionsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp sessions file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp sessions file: %w", err)
	}

	if err := os.Rename(tempName, s.sessionsPath); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(key string, session domain.Session) sessionSchema {
	return sessionSchema{
		Key:            key,
		Type:           string(session.Type),
		UserID:         session.UserID,
		OrganizationID: session.OrganizationID,
		Token:          session.Token,
		PublicKey:      session.PublicKey,
		Expiry:         session.Expiry,
	}
}

func fromSchema(entry sessionSchema) domain.Session {
	return domain.Session{
		Type:           domain.SessionType(entry.Type),
		UserID:         entry.UserID,
		OrganizationID: entry.OrganizationID,
		Token:          entry.Token,
		PublicKey:      entry.PublicKey,
		Expiry:         entry.Expiry,
	}
}
