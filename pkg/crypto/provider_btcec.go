package crypto

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// compactSigMagicOffset and compactSigCompPubKey mirror the btcec compact
	// signature header: 27 + 4 marks a compressed key, + recovery id
	compactSigMagicOffset = 27
	compactSigCompPubKey  = 4
)

// BtcecProvider implements ICurveProvider on btcec/v2
type BtcecProvider struct{}

var _ ICurveProvider = (*BtcecProvider)(nil)

// NewBtcecProvider creates a btcec-backed provider
func NewBtcecProvider() *BtcecProvider {
	return &BtcecProvider{}
}

func (p *BtcecProvider) Name() string {
	return ProviderBtcec
}

// parsePrivateKey rejects secrets that are zero or not below the curve order
// instead of silently reducing them
func parsePrivateKey(privateKey []byte) (*btcec.PrivateKey, error) {
	if len(privateKey) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(privateKey))
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(privateKey); overflow {
		return nil, fmt.Errorf("private key is not below the curve order")
	}
	if scalar.IsZero() {
		return nil, fmt.Errorf("private key is zero")
	}
	priv, _ := btcec.PrivKeyFromBytes(privateKey)
	return priv, nil
}

func parseHash(hash []byte) error {
	if len(hash) != 32 {
		return fmt.Errorf("digest must be 32 bytes, got %d", len(hash))
	}
	return nil
}

// parseTaprootInternalKey accepts a compressed, uncompressed or x-only key
func parseTaprootInternalKey(internalKey []byte) (*btcec.PublicKey, error) {
	if len(internalKey) == schnorr.PubKeyBytesLen {
		return schnorr.ParsePubKey(internalKey)
	}
	return btcec.ParsePubKey(internalKey)
}

func (p *BtcecProvider) PublicKey(privateKey []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return priv.PubKey().SerializeCompressed(), nil
}

func (p *BtcecProvider) SignECDSA(privateKey []byte, hash []byte) ([]byte, error) {
	if err := parseHash(hash); err != nil {
		return nil, err
	}
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return ecdsa.Sign(priv, hash).Serialize(), nil
}

func (p *BtcecProvider) SignCompact(privateKey []byte, hash []byte) (byte, []byte, error) {
	if err := parseHash(hash); err != nil {
		return 0, nil, err
	}
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return 0, nil, err
	}
	sig := ecdsa.SignCompact(priv, hash, true)
	recoveryID := sig[0] - compactSigMagicOffset - compactSigCompPubKey
	return recoveryID, sig[1:], nil
}

func (p *BtcecProvider) VerifyECDSA(publicKey []byte, hash []byte, derSignature []byte) bool {
	if parseHash(hash) != nil {
		return false
	}
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(derSignature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pub)
}

func (p *BtcecProvider) RecoverPublicKey(hash []byte, rs []byte, recoveryID byte) ([]byte, error) {
	if err := parseHash(hash); err != nil {
		return nil, err
	}
	if len(rs) != 64 {
		return nil, fmt.Errorf("r||s must be 64 bytes, got %d", len(rs))
	}
	if recoveryID > 3 {
		return nil, fmt.Errorf("recovery id must be in [0,3], got %d", recoveryID)
	}
	compact := make([]byte, 0, 65)
	compact = append(compact, compactSigMagicOffset+compactSigCompPubKey+recoveryID)
	compact = append(compact, rs...)

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, fmt.Errorf("could not recover pubkey: %w", err)
	}
	return pub.SerializeCompressed(), nil
}

func (p *BtcecProvider) SignSchnorr(privateKey []byte, hash []byte) ([]byte, error) {
	if err := parseHash(hash); err != nil {
		return nil, err
	}
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	sig, err := schnorr.Sign(priv, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign schnorr: %w", err)
	}
	return sig.Serialize(), nil
}

func (p *BtcecProvider) VerifySchnorr(xOnlyPublicKey []byte, hash []byte, signature []byte) bool {
	if parseHash(hash) != nil {
		return false
	}
	pub, err := schnorr.ParsePubKey(xOnlyPublicKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pub)
}

func (p *BtcecProvider) TaprootOutputKey(internalKey []byte) ([]byte, error) {
	pub, err := parseTaprootInternalKey(internalKey)
	if err != nil {
		return nil, fmt.Errorf("invalid taproot internal key: %w", err)
	}
	return schnorr.SerializePubKey(txscript.ComputeTaprootKeyNoScript(pub)), nil
}

// TweakTaprootPrivateKey computes d' = d + H_TapTweak(P) where d is negated
// first when P = dG has an odd y coordinate
func (p *BtcecProvider) TweakTaprootPrivateKey(privateKey []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	pub := priv.PubKey()

	d := priv.Key
	if pub.SerializeCompressed()[0] == 0x03 {
		d.Negate()
	}

	tweak := chainhash.TaggedHash(chainhash.TagTapTweak, schnorr.SerializePubKey(pub))
	var t btcec.ModNScalar
	if overflow := t.SetByteSlice(tweak[:]); overflow {
		return nil, fmt.Errorf("taproot tweak is not below the curve order")
	}
	d.Add(&t)
	if d.IsZero() {
		return nil, fmt.Errorf("tweaked private key is zero")
	}

	tweaked := d.Bytes()
	return tweaked[:], nil
}

func (p *BtcecProvider) CompressPublicKey(publicKey []byte) ([]byte, error) {
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return pub.SerializeCompressed(), nil
}

func (p *BtcecProvider) DecompressPublicKey(publicKey []byte) ([]byte, error) {
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return pub.SerializeUncompressed(), nil
}
