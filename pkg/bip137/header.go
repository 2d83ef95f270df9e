// Package bip137 implements the header byte arithmetic of legacy
// BIP-137 message signatures.
package bip137

import (
	"fmt"

	"github.com/samber/lo"
)

const (
	// SignatureLength is header || r || s
	SignatureLength = 65

	MinHeader byte = 27
	MaxHeader byte = 42
)

// Hint is the address family a signer declares in the header byte. Verifiers
// never rely on it.
type Hint byte

const (
	HintP2PKHUncompressed Hint = iota
	HintP2PKHCompressed
	HintP2SHP2WPKH
	HintP2WPKH
)

func (h Hint) String() string {
	switch h {
	case HintP2PKHUncompressed:
		return "p2pkh-uncompressed"
	case HintP2PKHCompressed:
		return "p2pkh-compressed"
	case HintP2SHP2WPKH:
		return "p2sh-p2wpkh"
	case HintP2WPKH:
		return "p2wpkh"
	default:
		return fmt.Sprintf("hint(%d)", byte(h))
	}
}

// Compressed reports whether the hint implies a compressed public key
func (h Hint) Compressed() bool {
	return h != HintP2PKHUncompressed
}

var allHeaders = lo.RangeFrom(MinHeader, int(MaxHeader-MinHeader)+1)

// ValidHeader reports whether header is in [27, 42]
func ValidHeader(header byte) bool {
	return header >= MinHeader && header <= MaxHeader
}

// RecoveryID returns (header - 27) mod 4
func RecoveryID(header byte) (byte, error) {
	if !ValidHeader(header) {
		return 0, fmt.Errorf("header %d out of range [%d, %d]", header, MinHeader, MaxHeader)
	}
	return (header - MinHeader) % 4, nil
}

// HintOf returns the declared address family, (header - 27) div 4
func HintOf(header byte) (Hint, error) {
	if !ValidHeader(header) {
		return 0, fmt.Errorf("header %d out of range [%d, %d]", header, MinHeader, MaxHeader)
	}
	return Hint((header - MinHeader) / 4), nil
}

// HeaderFor encodes a hint and recovery id into a header byte
func HeaderFor(hint Hint, recoveryID byte) (byte, error) {
	if hint > HintP2WPKH {
		return 0, fmt.Errorf("unknown hint %d", byte(hint))
	}
	if recoveryID > 3 {
		return 0, fmt.Errorf("recovery id must be in [0,3], got %d", recoveryID)
	}
	return MinHeader + byte(hint)*4 + recoveryID, nil
}

// CompatibleHeaders lists every header in [27, 42] sharing header's recovery
// id. All of them verify identically against the same key.
func CompatibleHeaders(header byte) []byte {
	if !ValidHeader(header) {
		return nil
	}
	return lo.Filter(allHeaders, func(h byte, _ int) bool {
		return (h-header)%4 == 0
	})
}

// WithHeader returns a copy of sig with its header byte replaced
func WithHeader(sig []byte, header byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if len(out) > 0 {
		out[0] = header
	}
	return out
}
