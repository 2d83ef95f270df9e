package address

import (
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// DerivedAddresses holds the mainnet and testnet encodings of one key
type DerivedAddresses struct {
	Mainnet string
	Testnet string
}

// Deriver turns public keys into addresses using a curve provider for point
// validation and the taproot tweak
type Deriver struct {
	provider crypto.ICurveProvider
}

// NewDeriver creates a Deriver backed by provider
func NewDeriver(provider crypto.ICurveProvider) *Deriver {
	return &Deriver{provider: provider}
}

var defaultDeriver = NewDeriver(crypto.DefaultProvider())

// FromPublicKey derives the mainnet and testnet addresses of pub for t
func FromPublicKey(pub []byte, t Type) (*DerivedAddresses, error) {
	return defaultDeriver.FromPublicKey(pub, t)
}

// FromPublicKeyForNetwork derives the address of pub for t on network
func FromPublicKeyForNetwork(pub []byte, t Type, network Network) (string, error) {
	return defaultDeriver.FromPublicKeyForNetwork(pub, t, network)
}

// CompressPublicKey returns the 33-byte encoding of pub
func CompressPublicKey(pub []byte) ([]byte, error) {
	return defaultDeriver.CompressPublicKey(pub)
}

// DecompressPublicKey returns the 65-byte encoding of pub
func DecompressPublicKey(pub []byte) ([]byte, error) {
	return defaultDeriver.DecompressPublicKey(pub)
}

func (d *Deriver) FromPublicKey(pub []byte, t Type) (*DerivedAddresses, error) {
	mainnet, err := d.FromPublicKeyForNetwork(pub, t, Mainnet)
	if err != nil {
		return nil, err
	}
	testnet, err := d.FromPublicKeyForNetwork(pub, t, Testnet)
	if err != nil {
		return nil, err
	}
	return &DerivedAddresses{Mainnet: mainnet, Testnet: testnet}, nil
}

// FromPublicKeyForNetwork accepts compressed or uncompressed keys for P2PKH,
// compressed keys for the segwit types, and additionally x-only keys for P2TR.
func (d *Deriver) FromPublicKeyForNetwork(pub []byte, t Type, network Network) (string, error) {
	params := network.Params()

	var (
		addr btcutil.Address
		err  error
	)
	switch t {
	case P2PKH:
		if _, err := d.provider.CompressPublicKey(pub); err != nil {
			return "", types.WrapError(types.KindInvalidPublicKey, err, "invalid public key")
		}
		addr, err = btcutil.NewAddressPubKeyHash(crypto.Hash160(pub), params)

	case P2SH:
		if err := d.requireCompressed(pub); err != nil {
			return "", err
		}
		addr, err = btcutil.NewAddressScriptHash(P2WPKHScript(pub), params)

	case P2WPKH:
		if err := d.requireCompressed(pub); err != nil {
			return "", err
		}
		addr, err = btcutil.NewAddressWitnessPubKeyHash(crypto.Hash160(pub), params)

	case P2TR:
		if len(pub) != 32 {
			if err := d.requireCompressed(pub); err != nil {
				return "", err
			}
			pub = pub[1:]
		}
		outputKey, tweakErr := d.provider.TaprootOutputKey(pub)
		if tweakErr != nil {
			return "", types.WrapError(types.KindInvalidPublicKey, tweakErr, "invalid taproot internal key")
		}
		addr, err = btcutil.NewAddressTaproot(outputKey, params)

	case P2WSH, Unsupported:
		return "", types.NewError(types.KindUnsupportedAddress, "cannot derive a %s address from a public key", t)

	default:
		return "", types.NewError(types.KindUnsupportedAddress, "unknown address type %d", int(t))
	}
	if err != nil {
		return "", types.WrapError(types.KindInvalidPublicKey, err, "failed to encode %s address", t)
	}
	return addr.EncodeAddress(), nil
}

func (d *Deriver) requireCompressed(pub []byte) error {
	if len(pub) != 33 {
		return types.NewError(types.KindInvalidPublicKey, "segwit addresses require a 33-byte compressed key, got %d bytes", len(pub))
	}
	if _, err := d.provider.CompressPublicKey(pub); err != nil {
		return types.WrapError(types.KindInvalidPublicKey, err, "invalid public key")
	}
	return nil
}

func (d *Deriver) CompressPublicKey(pub []byte) ([]byte, error) {
	compressed, err := d.provider.CompressPublicKey(pub)
	if err != nil {
		return nil, types.WrapError(types.KindInvalidPublicKey, err, "failed to compress public key")
	}
	return compressed, nil
}

func (d *Deriver) DecompressPublicKey(pub []byte) ([]byte, error) {
	uncompressed, err := d.provider.DecompressPublicKey(pub)
	if err != nil {
		return nil, types.WrapError(types.KindInvalidPublicKey, err, "failed to decompress public key")
	}
	return uncompressed, nil
}

// P2WPKHScript returns OP_0 <hash160(pub)>, the witness program of a P2WPKH
// output and the redeem script of its P2SH-wrapped form
func P2WPKHScript(pub []byte) []byte {
	// a 20-byte push never exceeds script limits
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(crypto.Hash160(pub)).
		Script()
	return script
}
