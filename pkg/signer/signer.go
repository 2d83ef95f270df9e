// Package signer produces BIP-322 simple signatures and legacy BIP-137
// signatures, either from a local private key or through a remote digest
// signer.
package signer

import (
	"context"
	"encoding/base64"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/bip137"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/transaction"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"go.uber.org/zap"
)

// IDigestSigner signs 32-byte digests with a key the caller cannot read,
// such as an HSM or cloud KMS key
type IDigestSigner interface {
	// PublicKey returns the compressed secp256k1 public key
	PublicKey(ctx context.Context) ([]byte, error)

	// SignDigest returns a DER encoded ECDSA signature over digest
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

type Signer struct {
	provider crypto.ICurveProvider
	deriver  *address.Deriver
	logger   *zap.Logger
}

// NewSigner creates a Signer. A nil logger disables logging.
func NewSigner(provider crypto.ICurveProvider, logger *zap.Logger) *Signer {
	if provider == nil {
		provider = crypto.DefaultProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signer{
		provider: provider,
		deriver:  address.NewDeriver(provider),
		logger:   logger,
	}
}

var defaultSigner = NewSigner(crypto.DefaultProvider(), nil)

// Sign signs message for the address of type t owned by privateKey
func Sign(privateKey []byte, message []byte, t address.Type) (string, error) {
	return defaultSigner.Sign(privateKey, message, t)
}

// SignWIF signs message for addr with a WIF encoded key
func SignWIF(wif string, addr string, message []byte) (string, error) {
	return defaultSigner.SignWIF(wif, addr, message)
}

// Sign produces a legacy signature for P2PKH, a [signature, pubkey] witness
// for P2SH-P2WPKH and P2WPKH, and a SIGHASH_DEFAULT key-path witness for P2TR
func (s *Signer) Sign(privateKey []byte, message []byte, t address.Type) (string, error) {
	switch t {
	case address.P2PKH:
		return s.SignLegacy(privateKey, message, bip137.HintP2PKHCompressed)

	case address.P2SH, address.P2WPKH:
		pub, err := s.provider.PublicKey(privateKey)
		if err != nil {
			return "", types.WrapError(types.KindInvalidPublicKey, err, "invalid private key")
		}
		return s.signWitnessV0(pub, message, t, func(digest []byte) ([]byte, error) {
			return s.provider.SignECDSA(privateKey, digest)
		})

	case address.P2TR:
		return s.SignP2TRWithSighash(privateKey, message, txscript.SigHashDefault)

	case address.P2WSH, address.Unsupported:
		return "", types.NewError(types.KindUnsupportedAddress, "cannot sign for %s addresses", t)

	default:
		return "", types.NewError(types.KindUnsupportedAddress, "unknown address type %d", int(t))
	}
}

// SignLegacy produces a BIP-137 signature whose header declares hint
func (s *Signer) SignLegacy(privateKey []byte, message []byte, hint bip137.Hint) (string, error) {
	hash := crypto.LegacyMessageHash(message)
	recoveryID, rs, err := s.provider.SignCompact(privateKey, hash[:])
	if err != nil {
		return "", types.WrapError(types.KindInvalidSignature, err, "failed to sign legacy message")
	}
	return encodeLegacy(hint, recoveryID, rs)
}

func encodeLegacy(hint bip137.Hint, recoveryID byte, rs []byte) (string, error) {
	header, err := bip137.HeaderFor(hint, recoveryID)
	if err != nil {
		return "", types.WrapError(types.KindInvalidSignature, err, "failed to encode header")
	}
	sig := make([]byte, 0, bip137.SignatureLength)
	sig = append(sig, header)
	sig = append(sig, rs...)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// SignP2TRWithSighash signs a key-path witness under an explicit hash type.
// SIGHASH_DEFAULT yields a 64-byte signature, any other type appends the
// hash type byte.
func (s *Signer) SignP2TRWithSighash(privateKey []byte, message []byte, hashType txscript.SigHashType) (string, error) {
	internalKey, err := s.provider.PublicKey(privateKey)
	if err != nil {
		return "", types.WrapError(types.KindInvalidPublicKey, err, "invalid private key")
	}
	tweaked, err := s.provider.TweakTaprootPrivateKey(privateKey)
	if err != nil {
		return "", types.WrapError(types.KindInvalidPublicKey, err, "failed to tweak private key")
	}

	packet, err := s.buildToSign(internalKey, message, address.P2TR)
	if err != nil {
		return "", err
	}
	sigHash, err := transaction.TaprootSigHash(packet, hashType)
	if err != nil {
		return "", types.WrapError(types.KindInvalidSighash, err, "failed to compute sighash")
	}

	sig, err := s.provider.SignSchnorr(tweaked, sigHash)
	if err != nil {
		return "", types.WrapError(types.KindInvalidSchnorrSignature, err, "failed to sign")
	}
	if hashType != txscript.SigHashDefault {
		sig = append(sig, byte(hashType))
	}
	return witness.Serialize([][]byte{sig}), nil
}

// SignRemote signs with a key held by ds. Taproot is not supported because
// the key-path tweak needs the private key.
func (s *Signer) SignRemote(ctx context.Context, ds IDigestSigner, message []byte, t address.Type) (string, error) {
	pub, err := ds.PublicKey(ctx)
	if err != nil {
		return "", err
	}
	pub, err = s.deriver.CompressPublicKey(pub)
	if err != nil {
		return "", err
	}

	sign := func(digest []byte) ([]byte, error) {
		der, err := ds.SignDigest(ctx, digest)
		if err != nil {
			return nil, err
		}
		return crypto.NormalizeDER(der)
	}

	switch t {
	case address.P2PKH:
		return s.signLegacyRemote(pub, message, sign)
	case address.P2SH, address.P2WPKH:
		return s.signWitnessV0(pub, message, t, sign)
	case address.P2TR:
		return "", types.NewError(types.KindUnsupportedAddress, "remote signing cannot apply the taproot tweak")
	case address.P2WSH, address.Unsupported:
		return "", types.NewError(types.KindUnsupportedAddress, "cannot sign for %s addresses", t)
	default:
		return "", types.NewError(types.KindUnsupportedAddress, "unknown address type %d", int(t))
	}
}

// signLegacyRemote finds the recovery id by trying each candidate against pub
func (s *Signer) signLegacyRemote(pub []byte, message []byte, sign func([]byte) ([]byte, error)) (string, error) {
	hash := crypto.LegacyMessageHash(message)
	der, err := sign(hash[:])
	if err != nil {
		return "", err
	}
	rs, err := crypto.DERToCompact(der)
	if err != nil {
		return "", types.WrapError(types.KindInvalidSignature, err, "remote signer returned an invalid signature")
	}

	for recoveryID := byte(0); recoveryID < 4; recoveryID++ {
		recovered, err := s.provider.RecoverPublicKey(hash[:], rs, recoveryID)
		if err != nil {
			continue
		}
		if string(recovered) == string(pub) {
			return encodeLegacy(bip137.HintP2PKHCompressed, recoveryID, rs)
		}
	}
	return "", types.NewError(types.KindRecoveryFailed, "no recovery id reproduces the signer's public key")
}

// signWitnessV0 builds the virtual transactions for a P2WPKH or P2SH-P2WPKH
// address of pub and signs the BIP-143 digest
func (s *Signer) signWitnessV0(pub []byte, message []byte, t address.Type, sign func([]byte) ([]byte, error)) (string, error) {
	packet, err := s.buildToSign(pub, message, t)
	if err != nil {
		return "", err
	}
	sigHash, err := transaction.WitnessV0SigHash(packet, pub)
	if err != nil {
		return "", err
	}
	der, err := sign(sigHash)
	if err != nil {
		return "", types.WrapError(types.KindInvalidSignature, err, "failed to sign")
	}

	sigWithHashType := append(der, byte(txscript.SigHashAll))
	return witness.Serialize([][]byte{sigWithHashType, pub}), nil
}

// buildToSign derives the address script of pub for t and builds the
// toSpend/toSign pair over it
func (s *Signer) buildToSign(pub []byte, message []byte, t address.Type) (*psbt.Packet, error) {
	addr, err := s.deriver.FromPublicKeyForNetwork(pub, t, address.Mainnet)
	if err != nil {
		return nil, err
	}
	script, err := address.ToScriptPubKey(addr)
	if err != nil {
		return nil, err
	}
	toSpend, err := transaction.BuildToSpendTx(message, script)
	if err != nil {
		return nil, err
	}

	switch t {
	case address.P2SH:
		return transaction.BuildToSignTx(toSpend.TxHash(), address.P2WPKHScript(pub), true, nil)
	case address.P2TR:
		return transaction.BuildToSignTx(toSpend.TxHash(), script, false, pub)
	default:
		return transaction.BuildToSignTx(toSpend.TxHash(), script, false, nil)
	}
}

// SignWIF signs for addr after checking the WIF key owns it
func (s *Signer) SignWIF(wif string, addr string, message []byte) (string, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return "", types.WrapError(types.KindInvalidPublicKey, err, "invalid WIF")
	}
	desc, err := address.Classify(addr)
	if err != nil {
		return "", err
	}

	privateKey := decoded.PrivKey.Serialize()
	pub := decoded.SerializePubKey()

	owned, err := s.deriver.FromPublicKeyForNetwork(pub, desc.Type, desc.Network)
	if err != nil {
		return "", err
	}
	if owned != desc.Address {
		return "", types.NewError(types.KindKeyMismatch, "key derives %s, not %s", owned, desc.Address)
	}

	s.logger.Sugar().Debugw("Signing message", "address", desc.Address, "type", desc.Type.String())

	if desc.Type == address.P2PKH && !decoded.CompressPubKey {
		return s.SignLegacy(privateKey, message, bip137.HintP2PKHUncompressed)
	}
	return s.Sign(privateKey, message, desc.Type)
}
