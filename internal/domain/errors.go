package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSecretNotFound            = errors.New("secret not found")
	ErrSessionNotFound           = errors.New("session not found")
	ErrNoActiveSession           = errors.New("no active session")
	ErrKeyNotFound               = errors.New("key pair not found")
	ErrNoActiveCredential        = errors.New("no active credential")
	ErrNonExtractableKeyRequired = errors.New("external key must be non-extractable")
	ErrUnsupportedKey            = errors.New("unsupported key type")
	ErrInvalidSignatureLength    = errors.New("invalid signature length")
	ErrInvalidPointEncoding      = errors.New("invalid point encoding")
	ErrNoProviderForChain        = errors.New("no wallet provider for chain")
	ErrWalletSignRejected        = errors.New("wallet rejected signature request")
	ErrPasskeyCeremonyFailed     = errors.New("passkey ceremony failed")
	ErrMissingRefreshHook        = errors.New("api key stamper configured without a session refresh hook")
)

// CredentialError reports that no usable credential could be resolved.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// SigningError reports that a key store or external signer failed to sign, or
// produced a signature of the wrong length.
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// EncodingError reports malformed ASN.1, point or stamp input.
type EncodingError struct {
	Op  string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// NetworkError is a transport failure or a structured non-2xx reply.
type NetworkError struct {
	StatusCode int
	Code       int
	Message    string
	Details    []any
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("network error: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("server error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("server error: status %d", e.StatusCode)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConsensusNeededError means the activity is still pending after the poll
// budget. It can be resumed later with the same activity id.
type ConsensusNeededError struct {
	ActivityID      string
	LastKnownStatus ActivityStatus
}

func (e *ConsensusNeededError) Error() string {
	return fmt.Sprintf("activity %s requires consensus (last status %s)", e.ActivityID, e.LastKnownStatus)
}

type ActivityFailedError struct {
	ActivityID string
	Status     ActivityStatus
	Reason     string
}

func (e *ActivityFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("activity %s ended with %s", e.ActivityID, e.Status)
	}

	return fmt.Sprintf("activity %s ended with %s: %s", e.ActivityID, e.Status, e.Reason)
}

type SessionExpiredError struct {
	SessionKey string
	Expiry     int64
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session %q expired at %s", e.SessionKey, time.Unix(e.Expiry, 0).UTC().Format(time.RFC3339))
}
