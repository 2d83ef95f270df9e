package verifier

import (
	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/bip137"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/samber/lo"
)

// derivableTypes are the address families a compressed key can own
var derivableTypes = []address.Type{address.P2PKH, address.P2SH, address.P2WPKH, address.P2TR}

// verifyLegacy checks a BIP-137 signature. The header's address hint is
// ignored: the recovered key owns every address it can derive.
func (v *Verifier) verifyLegacy(desc *address.Descriptor, message []byte, sig []byte) (bool, error) {
	if len(sig) != bip137.SignatureLength {
		return false, types.NewError(types.KindInvalidSignature, "legacy signature must be %d bytes, got %d", bip137.SignatureLength, len(sig))
	}
	recoveryID, err := bip137.RecoveryID(sig[0])
	if err != nil {
		return false, types.WrapError(types.KindInvalidSignature, err, "invalid legacy signature header")
	}

	hash := crypto.LegacyMessageHash(message)
	pub, err := v.provider.RecoverPublicKey(hash[:], sig[1:], recoveryID)
	if err != nil {
		return false, types.WrapError(types.KindRecoveryFailed, err, "failed to recover public key")
	}

	candidates, err := v.legacyCandidates(pub)
	if err != nil {
		return false, err
	}

	valid := lo.Contains(candidates, desc.Address)
	v.logOutcome(desc, "bip137", valid)
	return valid, nil
}

// legacyCandidates derives P2PKH for both key encodings and the segwit types
// for the compressed key, on mainnet and testnet
func (v *Verifier) legacyCandidates(compressed []byte) ([]string, error) {
	uncompressed, err := v.deriver.DecompressPublicKey(compressed)
	if err != nil {
		return nil, types.WrapError(types.KindRecoveryFailed, err, "recovered public key is invalid")
	}

	candidates := make([]string, 0, 2*(len(derivableTypes)+1))
	for _, t := range derivableTypes {
		derived, err := v.deriver.FromPublicKey(compressed, t)
		if err != nil {
			return nil, types.WrapError(types.KindRecoveryFailed, err, "failed to derive %s address", t)
		}
		candidates = append(candidates, derived.Mainnet, derived.Testnet)
	}

	derived, err := v.deriver.FromPublicKey(uncompressed, address.P2PKH)
	if err != nil {
		return nil, types.WrapError(types.KindRecoveryFailed, err, "failed to derive uncompressed P2PKH address")
	}
	return append(candidates, derived.Mainnet, derived.Testnet), nil
}
