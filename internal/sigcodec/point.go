package sigcodec

import (
	"crypto/elliptic"
	"fmt"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/btcsuite/btcd/btcec/v2"
)

type Curve string

const (
	CurveP256      Curve = "p256"
	CurveSecp256k1 Curve = "secp256k1"
)

const (
	coordinateSize    = 32
	uncompressedSize  = 1 + 2*coordinateSize
	compressedSize    = 1 + coordinateSize
	uncompressedPoint = 0x04
)

// CompressPoint turns 0x04||X||Y into the 33 byte SEC1 compressed form.
func CompressPoint(raw []byte) ([]byte, error) {
	if len(raw) != uncompressedSize || raw[0] != uncompressedPoint {
		return nil, &domain.EncodingError{
			Op:  "compress point",
			Err: fmt.Errorf("%w: expected %d byte uncompressed point", domain.ErrInvalidPointEncoding, uncompressedSize),
		}
	}
	if isZero(raw[1:]) {
		return nil, &domain.EncodingError{
			Op:  "compress point",
			Err: fmt.Errorf("%w: point at infinity", domain.ErrInvalidPointEncoding),
		}
	}

	out := make([]byte, compressedSize)
	out[0] = 0x02 | (raw[uncompressedSize-1] & 1)
	copy(out[1:], raw[1:1+coordinateSize])

	return out, nil
}

// DecompressPoint recovers 0x04||X||Y from a compressed point on curve.
func DecompressPoint(curve Curve, compressed []byte) ([]byte, error) {
	if len(compressed) != compressedSize || (compressed[0] != 0x02 && compressed[0] != 0x03) {
		return nil, &domain.EncodingError{
			Op:  "decompress point",
			Err: fmt.Errorf("%w: expected %d byte compressed point", domain.ErrInvalidPointEncoding, compressedSize),
		}
	}

	switch curve {
	case CurveP256:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), compressed)
		if x == nil {
			return nil, &domain.EncodingError{
				Op:  "decompress point",
				Err: fmt.Errorf("%w: not on p256", domain.ErrInvalidPointEncoding),
			}
		}
		out := make([]byte, uncompressedSize)
		out[0] = uncompressedPoint
		x.FillBytes(out[1 : 1+coordinateSize])
		y.FillBytes(out[1+coordinateSize:])
		return out, nil
	case CurveSecp256k1:
		key, err := btcec.ParsePubKey(compressed)
		if err != nil {
			return nil, &domain.EncodingError{
				Op:  "decompress point",
				Err: fmt.Errorf("%w: %v", domain.ErrInvalidPointEncoding, err),
			}
		}
		return key.SerializeUncompressed(), nil
	default:
		return nil, &domain.EncodingError{Op: "decompress point", Err: fmt.Errorf("unsupported curve %q", curve)}
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}

	return true
}
