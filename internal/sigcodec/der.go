// Package sigcodec converts ECDSA signatures and public points between the
// encodings used by key stores, wallets and the custody service.
package sigcodec

import (
	"fmt"
	"math/big"

	"github.com/bnema/stampkit/internal/domain"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// MaxSignatureLength covers r||s for curves up to P-521.
const MaxSignatureLength = 132

// IEEE1363ToDER encodes a raw r||s signature as an ASN.1 SEQUENCE of two
// INTEGERs.
func IEEE1363ToDER(sig []byte) ([]byte, error) {
	if len(sig) == 0 || len(sig)%2 != 0 || len(sig) > MaxSignatureLength {
		return nil, &domain.SigningError{
			Op:  "encode der signature",
			Err: fmt.Errorf("%w: %d bytes", domain.ErrInvalidSignatureLength, len(sig)),
		}
	}

	half := len(sig) / 2
	r := new(big.Int).SetBytes(sig[:half])
	s := new(big.Int).SetBytes(sig[half:])

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})

	der, err := b.Bytes()
	if err != nil {
		return nil, &domain.EncodingError{Op: "encode der signature", Err: err}
	}

	return der, nil
}

// ParseDER decodes an ASN.1 ECDSA signature into its components.
func ParseDER(der []byte) (*big.Int, *big.Int, error) {
	r, s := new(big.Int), new(big.Int)
	input := cryptobyte.String(der)

	var inner cryptobyte.String
	if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() ||
		!inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
		return nil, nil, &domain.EncodingError{Op: "decode der signature", Err: fmt.Errorf("malformed asn.1 sequence")}
	}
	if r.Sign() < 0 || s.Sign() < 0 {
		return nil, nil, &domain.EncodingError{Op: "decode der signature", Err: fmt.Errorf("negative signature component")}
	}

	return r, s, nil
}

// DERToIEEE1363 decodes an ASN.1 signature into r||s, each left padded to size bytes.
func DERToIEEE1363(der []byte, size int) ([]byte, error) {
	if size <= 0 || size*2 > MaxSignatureLength {
		return nil, &domain.SigningError{
			Op:  "decode der signature",
			Err: fmt.Errorf("%w: component size %d", domain.ErrInvalidSignatureLength, size),
		}
	}

	r, s, err := ParseDER(der)
	if err != nil {
		return nil, err
	}
	if len(r.Bytes()) > size || len(s.Bytes()) > size {
		return nil, &domain.SigningError{
			Op:  "decode der signature",
			Err: fmt.Errorf("%w: component exceeds %d bytes", domain.ErrInvalidSignatureLength, size),
		}
	}

	out := make([]byte, size*2)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])

	return out, nil
}
