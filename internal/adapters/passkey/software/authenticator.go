// Package software is an in-process WebAuthn authenticator for headless use
// and tests. It produces "none" attestations and ES256 assertions.
package software

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/stampkit/internal/ports"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol"
)

const (
	flagUserPresent  = 0x01
	flagUserVerified = 0x04
	flagAttestedData = 0x40

	coseKeyTypeEC2  = 2
	coseAlgES256    = -7
	coseCurveP256   = 1
	credentialIDLen = 16
)

var ErrUnknownCredential = errors.New("no matching credential on authenticator")

type credential struct {
	id      []byte
	key     *ecdsa.PrivateKey
	user    ports.PasskeyUser
	counter uint32
}

type Authenticator struct {
	rpID   string
	origin string

	mu          sync.Mutex
	credentials []*credential
}

var _ ports.PasskeyAuthenticator = (*Authenticator)(nil)

func New(rpID, origin string) *Authenticator {
	return &Authenticator{rpID: rpID, origin: origin}
}

type clientData struct {
	Type      protocol.CeremonyType `json:"type"`
	Challenge string                `json:"challenge"`
	Origin    string                `json:"origin"`
}

func (a *Authenticator) CreateAttestation(ctx context.Context, challenge []byte, user ports.PasskeyUser) (ports.PasskeyAttestation, error) {
	if err := ctx.Err(); err != nil {
		return ports.PasskeyAttestation{}, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return ports.PasskeyAttestation{}, fmt.Errorf("generate credential key: %w", err)
	}
	id := make([]byte, credentialIDLen)
	if _, err := rand.Read(id); err != nil {
		return ports.PasskeyAttestation{}, fmt.Errorf("generate credential id: %w", err)
	}

	clientDataJSON, err := a.clientDataJSON(protocol.CreateCeremony, challenge)
	if err != nil {
		return ports.PasskeyAttestation{}, err
	}

	coseKey, err := encodeCOSEKey(&key.PublicKey)
	if err != nil {
		return ports.PasskeyAttestation{}, err
	}

	authData := a.authenticatorData(flagUserPresent|flagUserVerified|flagAttestedData, 0)
	authData = append(authData, make([]byte, 16)...)
	authData = binary.BigEndian.AppendUint16(authData, uint16(len(id)))
	authData = append(authData, id...)
	authData = append(authData, coseKey...)

	attestationObject, err := cbor.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": authData,
	})
	if err != nil {
		return ports.PasskeyAttestation{}, fmt.Errorf("encode attestation object: %w", err)
	}

	a.mu.Lock()
	a.credentials = append(a.credentials, &credential{id: id, key: key, user: user})
	a.mu.Unlock()

	return ports.PasskeyAttestation{
		CredentialID:      id,
		ClientDataJSON:    clientDataJSON,
		AttestationObject: attestationObject,
		Transports:        []string{"internal"},
	}, nil
}

func (a *Authenticator) GetAssertion(ctx context.Context, challenge []byte, allowCredentials [][]byte) (ports.PasskeyAssertion, error) {
	if err := ctx.Err(); err != nil {
		return ports.PasskeyAssertion{}, err
	}

	a.mu.Lock()
	cred := a.find(allowCredentials)
	if cred == nil {
		a.mu.Unlock()
		return ports.PasskeyAssertion{}, ErrUnknownCredential
	}
	cred.counter++
	counter := cred.counter
	a.mu.Unlock()

	clientDataJSON, err := a.clientDataJSON(protocol.AssertCeremony, challenge)
	if err != nil {
		return ports.PasskeyAssertion{}, err
	}

	authData := a.authenticatorData(flagUserPresent|flagUserVerified, counter)
	clientDataHash := sha256.Sum256(clientDataJSON)
	signed := sha256.Sum256(append(append([]byte{}, authData...), clientDataHash[:]...))

	signature, err := ecdsa.SignASN1(rand.Reader, cred.key, signed[:])
	if err != nil {
		return ports.PasskeyAssertion{}, fmt.Errorf("sign assertion: %w", err)
	}

	return ports.PasskeyAssertion{
		CredentialID:      cred.id,
		AuthenticatorData: authData,
		ClientDataJSON:    clientDataJSON,
		Signature:         signature,
		UserHandle:        cred.user.ID,
	}, nil
}

// PublicKey returns the COSE encoded public key of a registered credential.
func (a *Authenticator) PublicKey(credentialID []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cred := a.find([][]byte{credentialID})
	if cred == nil {
		return nil, ErrUnknownCredential
	}

	return encodeCOSEKey(&cred.key.PublicKey)
}

func (a *Authenticator) find(allow [][]byte) *credential {
	if len(a.credentials) == 0 {
		return nil
	}
	if len(allow) == 0 {
		return a.credentials[0]
	}

	for _, id := range allow {
		for _, cred := range a.credentials {
			if string(cred.id) == string(id) {
				return cred
			}
		}
	}

	return nil
}

func (a *Authenticator) clientDataJSON(ceremony protocol.CeremonyType, challenge []byte) ([]byte, error) {
	raw, err := json.Marshal(clientData{
		Type:      ceremony,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    a.origin,
	})
	if err != nil {
		return nil, fmt.Errorf("encode client data: %w", err)
	}

	return raw, nil
}

func (a *Authenticator) authenticatorData(flags byte, counter uint32) []byte {
	rpIDHash := sha256.Sum256([]byte(a.rpID))

	out := make([]byte, 0, 37)
	out = append(out, rpIDHash[:]...)
	out = append(out, flags)
	return binary.BigEndian.AppendUint32(out, counter)
}

func encodeCOSEKey(pub *ecdsa.PublicKey) ([]byte, error) {
	ecdhKey, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("encode credential key: %w", err)
	}
	raw := ecdhKey.Bytes()

	encoded, err := cbor.Marshal(map[int]any{
		1:  coseKeyTypeEC2,
		3:  coseAlgES256,
		-1: coseCurveP256,
		-2: raw[1:33],
		-3: raw[33:65],
	})
	if err != nil {
		return nil, fmt.Errorf("encode cose key: %w", err)
	}

	return encoded, nil
}
