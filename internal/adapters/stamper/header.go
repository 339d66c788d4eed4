// Package stamper encodes and decodes the X-Stamp request header.
package stamper

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/bnema/stampkit/internal/domain"
)

// Encode builds an X-Stamp header carrying publicKey, scheme and the hex signature.
func Encode(publicKey string, scheme domain.Scheme, signature []byte) (domain.Stamp, error) {
	raw, err := json.Marshal(domain.StampPayload{
		PublicKey: publicKey,
		Scheme:    scheme,
		Signature: hex.EncodeToString(signature),
	})
	if err != nil {
		return domain.Stamp{}, &domain.EncodingError{Op: "encode stamp", Err: err}
	}

	return domain.Stamp{
		HeaderName:  domain.StampHeaderName,
		HeaderValue: base64.RawURLEncoding.EncodeToString(raw),
		Scheme:      scheme,
		PublicKey:   publicKey,
	}, nil
}

// Decode parses an X-Stamp header value.
func Decode(value string) (domain.StampPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return domain.StampPayload{}, &domain.EncodingError{Op: "decode stamp", Err: err}
	}

	var payload domain.StampPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.StampPayload{}, &domain.EncodingError{Op: "decode stamp", Err: err}
	}
	if payload.PublicKey == "" || payload.Scheme == "" || payload.Signature == "" {
		return domain.StampPayload{}, &domain.EncodingError{Op: "decode stamp", Err: fmt.Errorf("missing stamp fields")}
	}

	return payload, nil
}
