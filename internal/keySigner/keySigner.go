package keySigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/bip322-go/pkg/signer"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SigningKey describes a secp256k1 key held by an IKeySigner
type SigningKey struct {
	// PublicKey is the 33-byte compressed public key
	PublicKey []byte
	KeyId     string
}

func (sk *SigningKey) GetPublicKeyHex() (string, error) {
	if len(sk.PublicKey) == 0 {
		return "", fmt.Errorf("public key is empty")
	}
	return hexutil.Encode(sk.PublicKey), nil
}

// IKeySigner manages keys whose secret never leaves the signer
type IKeySigner interface {
	GenerateKey(ctx context.Context, keyName string, aliasName string) (*SigningKey, error)
	GetKeyById(ctx context.Context, keyId string) (*SigningKey, error)
	// SignDigest returns a DER encoded low-S ECDSA signature over a 32-byte digest
	SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error)
}

// keyHandle binds one key of an IKeySigner to signer.IDigestSigner
type keyHandle struct {
	ks    IKeySigner
	keyId string
}

var _ signer.IDigestSigner = (*keyHandle)(nil)

// ForKey returns a digest signer for keyId, usable with (*signer.Signer).SignRemote
func ForKey(ks IKeySigner, keyId string) signer.IDigestSigner {
	return &keyHandle{ks: ks, keyId: keyId}
}

func (h *keyHandle) PublicKey(ctx context.Context) ([]byte, error) {
	key, err := h.ks.GetKeyById(ctx, h.keyId)
	if err != nil {
		return nil, err
	}
	return key.PublicKey, nil
}

func (h *keyHandle) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	return h.ks.SignDigest(ctx, h.keyId, digest)
}
