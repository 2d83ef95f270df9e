// Package verifier checks BIP-322 simple signatures and legacy BIP-137
// signatures against Bitcoin addresses.
//
// Structural problems (bad address, unsupported script type, malformed
// witness, disallowed sighash, bad signature length) are returned as
// *types.Error. A well formed signature that does not match the address and
// message yields false with a nil error.
package verifier

import (
	"encoding/base64"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/bip137"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"go.uber.org/zap"
)

type Verifier struct {
	provider crypto.ICurveProvider
	deriver  *address.Deriver
	logger   *zap.Logger
}

// NewVerifier creates a Verifier. A nil logger disables logging.
func NewVerifier(provider crypto.ICurveProvider, logger *zap.Logger) *Verifier {
	if provider == nil {
		provider = crypto.DefaultProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		provider: provider,
		deriver:  address.NewDeriver(provider),
		logger:   logger,
	}
}

var defaultVerifier = NewVerifier(crypto.DefaultProvider(), nil)

// VerifySignature verifies signature over message for addr with the btcec provider
func VerifySignature(addr string, message []byte, signature string) (bool, error) {
	return defaultVerifier.VerifySignature(addr, message, signature)
}

// Provider returns the curve provider backing v
func (v *Verifier) Provider() crypto.ICurveProvider {
	return v.provider
}

// VerifySignature dispatches on the address type. P2PKH addresses and
// signatures that decode to exactly 65 bytes led by a header in [27, 42] take
// the legacy path; every other supported type takes the BIP-322 path.
func (v *Verifier) VerifySignature(addr string, message []byte, signature string) (bool, error) {
	desc, err := address.Classify(addr)
	if err != nil {
		return false, err
	}

	switch desc.Type {
	case address.P2WSH:
		return false, types.NewError(types.KindUnsupportedAddress, "P2WSH addresses are unsupported")

	case address.Unsupported:
		return false, types.NewError(types.KindUnsupportedAddress, "address '%s' is not a supported P2PKH, P2SH-P2WPKH, P2WPKH or P2TR address", addr)

	case address.P2PKH:
		raw, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return false, types.WrapError(types.KindInvalidSignature, err, "legacy signature is not valid base64")
		}
		return v.verifyLegacy(desc, message, raw)

	case address.P2SH, address.P2WPKH, address.P2TR:
		raw, err := witness.DecodeBase64(signature)
		if err != nil {
			return false, err
		}
		// a witness here starts with an item count of 1 or 2, never a header byte
		if len(raw) == bip137.SignatureLength && bip137.ValidHeader(raw[0]) {
			return v.verifyLegacy(desc, message, raw)
		}
		return v.verifyBIP322(desc, message, raw)

	default:
		return false, types.NewError(types.KindUnsupportedAddress, "unknown address type %d", int(desc.Type))
	}
}

// logOutcome records the result of a completed cryptographic check
func (v *Verifier) logOutcome(desc *address.Descriptor, scheme string, valid bool) {
	v.logger.Sugar().Debugw("Verified message signature",
		"address", desc.Address,
		"type", desc.Type.String(),
		"network", desc.Network.String(),
		"scheme", scheme,
		"valid", valid,
	)
}
