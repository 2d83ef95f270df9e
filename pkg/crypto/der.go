package crypto

import (
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// derSignature is the ASN.1 layout of an ECDSA signature
type derSignature struct {
	R, S *big.Int
}

var (
	secp256k1N     = btcec.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

func inScalarRange(v *big.Int) bool {
	return v != nil && v.Sign() > 0 && v.Cmp(secp256k1N) < 0
}

// parseDER decodes a DER ECDSA signature and checks both scalars are in [1, N-1]
func parseDER(der []byte) (*derSignature, error) {
	var sig derSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after DER signature", len(rest))
	}
	if !inScalarRange(sig.R) || !inScalarRange(sig.S) {
		return nil, fmt.Errorf("signature scalar out of range")
	}
	return &sig, nil
}

// lowS returns s or N - s, whichever is in the lower half of the order
func lowS(s *big.Int) *big.Int {
	if s.Cmp(secp256k1HalfN) > 0 {
		return new(big.Int).Sub(secp256k1N, s)
	}
	return s
}

// DERToCompact returns r||s with s normalized to low S
func DERToCompact(der []byte) ([]byte, error) {
	sig, err := parseDER(der)
	if err != nil {
		return nil, err
	}
	rs := make([]byte, 64)
	sig.R.FillBytes(rs[:32])
	lowS(sig.S).FillBytes(rs[32:])
	return rs, nil
}

// CompactToDER encodes r||s as a DER signature
func CompactToDER(rs []byte) ([]byte, error) {
	if len(rs) != 64 {
		return nil, fmt.Errorf("r||s must be 64 bytes, got %d", len(rs))
	}
	der, err := asn1.Marshal(derSignature{
		R: new(big.Int).SetBytes(rs[:32]),
		S: new(big.Int).SetBytes(rs[32:]),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode DER signature: %w", err)
	}
	return der, nil
}

// NormalizeDER re-encodes a DER signature with low S
func NormalizeDER(der []byte) ([]byte, error) {
	rs, err := DERToCompact(der)
	if err != nil {
		return nil, err
	}
	return CompactToDER(rs)
}
