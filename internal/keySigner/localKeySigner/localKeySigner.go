package localKeySigner

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/Layr-Labs/bip322-go/internal/keySigner"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// keyEntry stores the private key and metadata for a key
type keyEntry struct {
	privateKey []byte
	publicKey  []byte
	keyName    string
	aliasName  string
}

// LocalKeySigner keeps secp256k1 keys in process memory. It stands in for a
// KMS in tests and local tooling.
type LocalKeySigner struct {
	logger   *zap.Logger
	provider crypto.ICurveProvider
	keyStore map[string]*keyEntry // keyId -> keyEntry
	mu       sync.RWMutex
}

var _ keySigner.IKeySigner = (*LocalKeySigner)(nil)

func NewLocalKeySigner(provider crypto.ICurveProvider, logger *zap.Logger) *LocalKeySigner {
	if provider == nil {
		provider = crypto.DefaultProvider()
	}
	return &LocalKeySigner{
		logger:   logger,
		provider: provider,
		keyStore: make(map[string]*keyEntry),
	}
}

func newKeyId() string {
	return fmt.Sprintf("local-key-%s", uuid.New().String())
}

func (l *LocalKeySigner) GenerateKey(ctx context.Context, keyName string, aliasName string) (*keySigner.SigningKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}

	keyId := newKeyId()
	if err := l.LoadPrivateKey(keyId, priv.Serialize(), keyName, aliasName); err != nil {
		return nil, err
	}
	return l.GetKeyById(ctx, keyId)
}

func (l *LocalKeySigner) GetKeyById(ctx context.Context, keyId string) (*keySigner.SigningKey, error) {
	l.mu.RLock()
	entry, exists := l.keyStore[keyId]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}

	return &keySigner.SigningKey{
		PublicKey: append([]byte{}, entry.publicKey...),
		KeyId:     keyId,
	}, nil
}

func (l *LocalKeySigner) SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error) {
	l.mu.RLock()
	entry, exists := l.keyStore[keyId]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}

	sig, err := l.provider.SignECDSA(entry.privateKey, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest with key %s: %w", keyId, err)
	}

	l.logger.Debug("Signed digest with local key",
		zap.String("keyId", keyId),
		zap.Int("signatureLen", len(sig)),
	)

	return sig, nil
}

// LoadPrivateKey loads a 32-byte secret into the key store under keyId
func (l *LocalKeySigner) LoadPrivateKey(keyId string, privateKey []byte, keyName string, aliasName string) error {
	pub, err := l.provider.PublicKey(privateKey)
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.keyStore[keyId]; exists {
		return fmt.Errorf("key with ID %s already exists", keyId)
	}

	l.keyStore[keyId] = &keyEntry{
		privateKey: append([]byte{}, privateKey...),
		publicKey:  pub,
		keyName:    keyName,
		aliasName:  aliasName,
	}

	l.logger.Info("Loaded private key into store",
		zap.String("keyId", keyId),
		zap.String("keyName", keyName),
		zap.String("aliasName", aliasName),
		zap.String("publicKey", hex.EncodeToString(pub)),
	)

	return nil
}

// LoadPrivateKeyFromHex loads a hex secret, optionally 0x-prefixed, and returns its key id
func (l *LocalKeySigner) LoadPrivateKeyFromHex(privateKeyHex string, keyName string, aliasName string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key from hex: %w", err)
	}

	keyId := newKeyId()
	return keyId, l.LoadPrivateKey(keyId, raw, keyName, aliasName)
}

// LoadWIF loads a wallet import format key and returns its key id
func (l *LocalKeySigner) LoadWIF(wif string, keyName string, aliasName string) (string, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return "", fmt.Errorf("failed to decode WIF: %w", err)
	}

	keyId := newKeyId()
	return keyId, l.LoadPrivateKey(keyId, decoded.PrivKey.Serialize(), keyName, aliasName)
}

// GetKeyCount returns the number of keys in the store.
func (l *LocalKeySigner) GetKeyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keyStore)
}

// KeyExists checks if a key with the given ID exists in the store.
func (l *LocalKeySigner) KeyExists(keyId string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.keyStore[keyId]
	return exists
}

// GetKeyIdByAlias returns the id of the key registered under alias, or "" if none
func (l *LocalKeySigner) GetKeyIdByAlias(alias string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for keyId, entry := range l.keyStore {
		if entry.aliasName == alias {
			return keyId
		}
	}
	return ""
}
