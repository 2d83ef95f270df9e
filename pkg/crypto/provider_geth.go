package crypto

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// GethProvider implements the ECDSA half of ICurveProvider with go-ethereum's
// secp256k1 bindings. Schnorr and taproot operations have no go-ethereum
// counterpart and are served by the embedded btcec provider.
type GethProvider struct {
	*BtcecProvider
}

var _ ICurveProvider = (*GethProvider)(nil)

// NewGethProvider creates a go-ethereum backed provider
func NewGethProvider() *GethProvider {
	return &GethProvider{BtcecProvider: NewBtcecProvider()}
}

func (p *GethProvider) Name() string {
	return ProviderGeth
}

func (p *GethProvider) PublicKey(privateKey []byte) ([]byte, error) {
	priv, err := ethcrypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return ethcrypto.CompressPubkey(&priv.PublicKey), nil
}

// sign returns r||s||v with s normalized to the lower half of the order
func (p *GethProvider) sign(privateKey []byte, hash []byte) ([]byte, error) {
	if err := parseHash(hash); err != nil {
		return nil, err
	}
	priv, err := ethcrypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	sig, err := ethcrypto.Sign(hash, priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

func (p *GethProvider) SignECDSA(privateKey []byte, hash []byte) ([]byte, error) {
	sig, err := p.sign(privateKey, hash)
	if err != nil {
		return nil, err
	}
	return CompactToDER(sig[:64])
}

func (p *GethProvider) SignCompact(privateKey []byte, hash []byte) (byte, []byte, error) {
	sig, err := p.sign(privateKey, hash)
	if err != nil {
		return 0, nil, err
	}
	return sig[64], sig[:64], nil
}

// VerifyECDSA accepts high-S signatures by normalizing them first, since
// go-ethereum only verifies the low-S form
func (p *GethProvider) VerifyECDSA(publicKey []byte, hash []byte, derSig []byte) bool {
	if parseHash(hash) != nil {
		return false
	}
	rs, err := DERToCompact(derSig)
	if err != nil {
		return false
	}
	return ethcrypto.VerifySignature(publicKey, hash, rs)
}

func (p *GethProvider) RecoverPublicKey(hash []byte, rs []byte, recoveryID byte) ([]byte, error) {
	if err := parseHash(hash); err != nil {
		return nil, err
	}
	if len(rs) != 64 {
		return nil, fmt.Errorf("r||s must be 64 bytes, got %d", len(rs))
	}
	if recoveryID > 3 {
		return nil, fmt.Errorf("recovery id must be in [0,3], got %d", recoveryID)
	}
	sig := make([]byte, 65)
	copy(sig, rs)
	sig[64] = recoveryID

	uncompressed, err := ethcrypto.Ecrecover(hash, sig)
	if err != nil {
		return nil, fmt.Errorf("could not recover pubkey: %w", err)
	}
	pub, err := ethcrypto.UnmarshalPubkey(uncompressed)
	if err != nil {
		return nil, fmt.Errorf("recovered pubkey is invalid: %w", err)
	}
	return ethcrypto.CompressPubkey(pub), nil
}

func (p *GethProvider) CompressPublicKey(publicKey []byte) ([]byte, error) {
	switch len(publicKey) {
	case 33:
		pub, err := ethcrypto.DecompressPubkey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return ethcrypto.CompressPubkey(pub), nil
	case 65:
		pub, err := ethcrypto.UnmarshalPubkey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return ethcrypto.CompressPubkey(pub), nil
	default:
		return nil, fmt.Errorf("invalid public key length %d", len(publicKey))
	}
}

func (p *GethProvider) DecompressPublicKey(publicKey []byte) ([]byte, error) {
	switch len(publicKey) {
	case 33:
		pub, err := ethcrypto.DecompressPubkey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return ethcrypto.FromECDSAPub(pub), nil
	case 65:
		pub, err := ethcrypto.UnmarshalPubkey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return ethcrypto.FromECDSAPub(pub), nil
	default:
		return nil, fmt.Errorf("invalid public key length %d", len(publicKey))
	}
}
