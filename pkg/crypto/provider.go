package crypto

import (
	"fmt"
	"sort"
)

const (
	ProviderBtcec = "btcec"
	ProviderGeth  = "geth"
)

// ICurveProvider is the secp256k1 capability the protocol code depends on.
// Keys and signatures cross the interface as byte encodings so backends can be
// swapped without touching message hashing, transaction building or dispatch.
//
// Implementations must be stateless (or immutable after construction) and
// safe for concurrent use.
type ICurveProvider interface {
	// Name returns the registry identifier of the backend
	Name() string

	// PublicKey returns the 33-byte compressed public key of a 32-byte secret
	PublicKey(privateKey []byte) ([]byte, error)

	// SignECDSA signs a 32-byte digest and returns a strict DER signature with low S
	SignECDSA(privateKey []byte, hash []byte) ([]byte, error)

	// SignCompact signs a 32-byte digest and returns r||s (64 bytes) plus the
	// recovery id (0-3) of the compressed public key
	SignCompact(privateKey []byte, hash []byte) (recoveryID byte, rs []byte, err error)

	// VerifyECDSA verifies a DER signature over a 32-byte digest
	VerifyECDSA(publicKey []byte, hash []byte, derSignature []byte) bool

	// RecoverPublicKey recovers the compressed public key from r||s and a recovery id
	RecoverPublicKey(hash []byte, rs []byte, recoveryID byte) ([]byte, error)

	// SignSchnorr produces a 64-byte BIP-340 signature over a 32-byte digest
	SignSchnorr(privateKey []byte, hash []byte) ([]byte, error)

	// VerifySchnorr verifies a 64-byte BIP-340 signature against an x-only key
	VerifySchnorr(xOnlyPublicKey []byte, hash []byte, signature []byte) bool

	// TaprootOutputKey applies the BIP-86 (no script tree) tweak to an internal
	// key given in compressed or x-only form and returns the x-only output key
	TaprootOutputKey(internalKey []byte) ([]byte, error)

	// TweakTaprootPrivateKey returns the secret matching TaprootOutputKey
	TweakTaprootPrivateKey(privateKey []byte) ([]byte, error)

	// CompressPublicKey converts any valid point encoding to 33 bytes
	CompressPublicKey(publicKey []byte) ([]byte, error)

	// DecompressPublicKey converts any valid point encoding to 65 bytes
	DecompressPublicKey(publicKey []byte) ([]byte, error)
}

var providerFactories = map[string]func() ICurveProvider{
	ProviderBtcec: func() ICurveProvider { return NewBtcecProvider() },
	ProviderGeth:  func() ICurveProvider { return NewGethProvider() },
}

// NewCurveProvider returns the provider registered under name
func NewCurveProvider(name string) (ICurveProvider, error) {
	factory, ok := providerFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown curve provider '%s'. Available providers: %v", name, ListProviders())
	}
	return factory(), nil
}

// DefaultProvider returns the btcec-backed provider
func DefaultProvider() ICurveProvider {
	return NewBtcecProvider()
}

// ListProviders returns the registered provider names in sorted order
func ListProviders() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
