package file

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	envelopeKDF     = "argon2id"
	envelopePrefix  = "STKENC1\n"
	saltSize        = 16
)

var (
	ErrDecryptFailed   = errors.New("file secret authentication failed")
	ErrInvalidEnvelope = errors.New("file secret envelope is invalid")
)

// KDFParams tunes argon2id. Zero values fall back to DefaultKDFParams.
type KDFParams struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

var DefaultKDFParams = KDFParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

type envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func seal(passphrase string, params KDFParams, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	key := deriveKey(passphrase, salt, params)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	raw, err := json.Marshal(envelope{
		Version:     envelopeVersion,
		KDF:         envelopeKDF,
		KDFTime:     params.Time,
		KDFMemoryKB: params.MemoryKB,
		KDFThreads:  params.Threads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	return append([]byte(envelopePrefix), raw...), nil
}

func open(passphrase string, data []byte) ([]byte, error) {
	if !strings.HasPrefix(string(data), envelopePrefix) {
		return nil, ErrInvalidEnvelope
	}

	var env envelope
	if err := json.Unmarshal(data[len(envelopePrefix):], &env); err != nil {
		return nil, ErrInvalidEnvelope
	}
	if env.Version != envelopeVersion || env.KDF != envelopeKDF {
		return nil, ErrInvalidEnvelope
	}

	key := deriveKey(passphrase, env.Salt, KDFParams{Time: env.KDFTime, MemoryKB: env.KDFMemoryKB, Threads: env.KDFThreads})
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte, params KDFParams) []byte {
	if params.Time == 0 || params.MemoryKB == 0 || params.Threads == 0 {
		params = DefaultKDFParams
	}

	return argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKB, params.Threads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
