package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/bnema/stampkit/internal/sigcodec"
	"github.com/rs/zerolog"
)

const (
	DefaultSecretKey      = "stampkit/keyset"
	currentKeysetVersion  = 1
	p256ComponentSize     = 32
	rawP256SignatureBytes = 2 * p256ComponentSize
)

// Store keeps generated P-256 keys as one keyset document in a secret store,
// so every create or delete is a single write. Adopted external signers are
// held for the life of the process only.
type Store struct {
	secrets   ports.SecretStore
	secretKey string
	logger    zerolog.Logger
	now       func() time.Time

	mu            sync.Mutex
	external      map[string]crypto.Signer
	externalOrder []string
}

var _ ports.KeyStore = (*Store)(nil)

type Option func(*Store)

func WithSecretKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.secretKey = key
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(secrets ports.SecretStore, opts ...Option) *Store {
	s := &Store{
		secrets:   secrets,
		secretKey: DefaultSecretKey,
		logger:    zerolog.Nop(),
		now:       time.Now,
		external:  map[string]crypto.Signer{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

type keysetDocument struct {
	Version int         `json:"version"`
	Keys    []keyRecord `json:"keys"`
}

type keyRecord struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	CreatedAt  int64  `json:"createdAt"`
}

// extractable is implemented by signers that can report whether their
// private material can be exported.
type extractable interface {
	Extractable() bool
}

func (s *Store) CreateKeyPair(ctx context.Context, external crypto.Signer) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if external != nil {
		return s.adoptExternal(external)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", &domain.SigningError{Op: "generate p256 key", Err: err}
	}

	publicKey, err := compressedPublicKeyHex(&priv.PublicKey)
	if err != nil {
		return "", err
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("encode private key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return "", err
	}

	doc.Keys = append(doc.Keys, keyRecord{
		PublicKey:  publicKey,
		PrivateKey: base64.StdEncoding.EncodeToString(der),
		CreatedAt:  s.now().Unix(),
	})

	if err := s.save(ctx, doc); err != nil {
		return "", err
	}

	s.logger.Debug().Str("public_key", publicKey).Msg("created key pair")
	return publicKey, nil
}

func (s *Store) adoptExternal(signer crypto.Signer) (string, error) {
	switch signer.(type) {
	case *ecdsa.PrivateKey, ed25519.PrivateKey, *ed25519.PrivateKey:
		return "", &domain.CredentialError{Op: "adopt external key", Err: domain.ErrNonExtractableKeyRequired}
	}
	if e, ok := signer.(extractable); ok && e.Extractable() {
		return "", &domain.CredentialError{Op: "adopt external key", Err: domain.ErrNonExtractableKeyRequired}
	}

	pub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return "", &domain.CredentialError{
			Op:  "adopt external key",
			Err: fmt.Errorf("%w: external key must be p256", domain.ErrUnsupportedKey),
		}
	}

	publicKey, err := compressedPublicKeyHex(pub)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.external[publicKey]; !exists {
		s.externalOrder = append(s.externalOrder, publicKey)
	}
	s.external[publicKey] = signer

	s.logger.Debug().Str("public_key", publicKey).Msg("adopted external key")
	return publicKey, nil
}

func (s *Store) Sign(ctx context.Context, payload []byte, publicKeyHex string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest := sha256.Sum256(payload)

	s.mu.Lock()
	signer, isExternal := s.external[publicKeyHex]
	var record keyRecord
	var found bool
	if !isExternal {
		doc, err := s.load(ctx)
		if err != nil {
			s.mu.Unlock()
			return nil, &domain.SigningError{Op: "load keyset", Err: err}
		}
		record, found = findRecord(doc, publicKeyHex)
	}
	s.mu.Unlock()

	if isExternal {
		return signExternal(signer, digest[:])
	}
	if !found {
		return nil, &domain.SigningError{
			Op:  "sign payload",
			Err: fmt.Errorf("%w: %s", domain.ErrKeyNotFound, publicKeyHex),
		}
	}

	priv, err := decodePrivateKey(record)
	if err != nil {
		return nil, &domain.SigningError{Op: "decode private key", Err: err}
	}

	r, sigS, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, &domain.SigningError{Op: "sign payload", Err: err}
	}

	out := make([]byte, rawP256SignatureBytes)
	r.FillBytes(out[:p256ComponentSize])
	sigS.FillBytes(out[p256ComponentSize:])

	return out, nil
}

func (s *Store) DeleteKeyPair(ctx context.Context, publicKeyHex string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.external[publicKeyHex]; ok {
		delete(s.external, publicKeyHex)
		s.externalOrder = slices.DeleteFunc(s.externalOrder, func(k string) bool { return k == publicKeyHex })
		return nil
	}

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	before := len(doc.Keys)
	doc.Keys = slices.DeleteFunc(doc.Keys, func(r keyRecord) bool { return r.PublicKey == publicKeyHex })
	if len(doc.Keys) == before {
		return nil
	}

	if err := s.save(ctx, doc); err != nil {
		return err
	}

	s.logger.Debug().Str("public_key", publicKeyHex).Msg("deleted key pair")
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.secrets.Delete(ctx, s.secretKey); err != nil {
		return fmt.Errorf("clear keyset: %w", err)
	}
	s.external = map[string]crypto.Signer{}
	s.externalOrder = nil

	return nil
}

func (s *Store) ListPublicKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(doc.Keys)+len(s.externalOrder))
	for _, record := range doc.Keys {
		keys = append(keys, record.PublicKey)
	}
	keys = append(keys, s.externalOrder...)

	return keys, nil
}

func (s *Store) load(ctx context.Context) (keysetDocument, error) {
	raw, err := s.secrets.Get(ctx, s.secretKey)
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return keysetDocument{Version: currentKeysetVersion}, nil
		}
		return keysetDocument{}, fmt.Errorf("read keyset: %w", err)
	}

	var doc keysetDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return keysetDocument{}, fmt.Errorf("decode keyset: %w", err)
	}
	if doc.Version > currentKeysetVersion {
		return keysetDocument{}, fmt.Errorf("unsupported keyset version %d (current %d)", doc.Version, currentKeysetVersion)
	}

	return doc, nil
}

func (s *Store) save(ctx context.Context, doc keysetDocument) error {
	doc.Version = currentKeysetVersion

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode keyset: %w", err)
	}

	if err := s.secrets.Put(ctx, s.secretKey, string(raw)); err != nil {
		return fmt.Errorf("write keyset: %w", err)
	}

	return nil
}

func findRecord(doc keysetDocument, publicKeyHex string) (keyRecord, bool) {
	for _, record := range doc.Keys {
		if record.PublicKey == publicKeyHex {
			return record, true
		}
	}

	return keyRecord{}, false
}

func decodePrivateKey(record keyRecord) (*ecdsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(record.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse pkcs8 key: %w", err)
	}

	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", domain.ErrUnsupportedKey, key)
	}

	return priv, nil
}

func signExternal(signer crypto.Signer, digest []byte) ([]byte, error) {
	sig, err := signer.Sign(rand.Reader, digest, crypto.SHA256)
	if err != nil {
		return nil, &domain.SigningError{Op: "sign with external key", Err: err}
	}

	raw, err := sigcodec.DERToIEEE1363(sig, p256ComponentSize)
	if err != nil {
		if len(sig) == rawP256SignatureBytes {
			return sig, nil
		}
		return nil, &domain.SigningError{Op: "sign with external key", Err: err}
	}

	return raw, nil
}

func compressedPublicKeyHex(pub *ecdsa.PublicKey) (string, error) {
	ecdhKey, err := pub.ECDH()
	if err != nil {
		return "", &domain.EncodingError{Op: "encode public key", Err: err}
	}

	compressed, err := sigcodec.CompressPoint(ecdhKey.Bytes())
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(compressed), nil
}
