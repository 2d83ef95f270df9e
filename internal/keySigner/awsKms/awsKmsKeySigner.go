package awsKms

import (
	"context"
	"encoding/asn1"
	"fmt"

	"github.com/Layr-Labs/bip322-go/internal/keySigner"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1      = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// kmsAPI is the subset of *kms.Client used here
type kmsAPI interface {
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

type AWSKMSKeySigner struct {
	logger    *zap.Logger
	kmsClient kmsAPI
	provider  crypto.ICurveProvider
	awsRegion string
}

var _ keySigner.IKeySigner = (*AWSKMSKeySigner)(nil)

func NewAWSKMSKeySigner(awsCfg aws.Config, awsRegion string, provider crypto.ICurveProvider, logger *zap.Logger) *AWSKMSKeySigner {
	return newAWSKMSKeySigner(kms.NewFromConfig(awsCfg), awsRegion, provider, logger)
}

func newAWSKMSKeySigner(client kmsAPI, awsRegion string, provider crypto.ICurveProvider, logger *zap.Logger) *AWSKMSKeySigner {
	if provider == nil {
		provider = crypto.DefaultProvider()
	}
	return &AWSKMSKeySigner{
		logger:    logger,
		kmsClient: client,
		provider:  provider,
		awsRegion: awsRegion,
	}
}

func (a *AWSKMSKeySigner) GenerateKey(ctx context.Context, keyName string, aliasName string) (*keySigner.SigningKey, error) {
	keyRes, err := a.createBitcoinSigningKey(ctx, keyName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create secp256k1 key %s in region %s", keyName, a.awsRegion)
	}

	if aliasName != "" {
		err = a.createKeyAlias(ctx, *keyRes.KeyMetadata.KeyId, aliasName)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create alias %s for key %s in region %s", aliasName, *keyRes.KeyMetadata.KeyId, a.awsRegion)
		}
	}

	return a.GetKeyById(ctx, *keyRes.KeyMetadata.KeyId)
}

func (a *AWSKMSKeySigner) GetKeyById(ctx context.Context, keyId string) (*keySigner.SigningKey, error) {
	pub, err := a.getPublicKey(ctx, keyId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s in region %s", keyId, a.awsRegion)
	}

	return &keySigner.SigningKey{
		PublicKey: pub,
		KeyId:     keyId,
	}, nil
}

// SignDigest signs a 32-byte digest with KMS and returns the signature in
// low-S DER form after checking it against the key's public key
func (a *AWSKMSKeySigner) SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}

	pub, err := a.getPublicKey(ctx, keyId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyId),
		Message:          digest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign digest with key %s in region %s", keyId, a.awsRegion)
	}

	sig, err := crypto.NormalizeDER(signOutput.Signature)
	if err != nil {
		return nil, errors.Wrap(err, "KMS returned an invalid DER signature")
	}

	if !a.provider.VerifyECDSA(pub, digest, sig) {
		return nil, fmt.Errorf("KMS signature does not verify against key %s", keyId)
	}

	a.logger.Debug("Signed digest with KMS key",
		zap.String("keyId", keyId),
		zap.Int("signatureLen", len(sig)),
	)

	return sig, nil
}

// createBitcoinSigningKey creates a secp256k1 sign/verify key
func (a *AWSKMSKeySigner) createBitcoinSigningKey(ctx context.Context, keyName string) (*kms.CreateKeyOutput, error) {
	input := &kms.CreateKeyInput{
		KeyUsage:    types.KeyUsageTypeSignVerify,
		KeySpec:     types.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("secp256k1 key for BIP-322 message signing - %s", keyName)),
		Tags: []types.Tag{
			{
				TagKey:   aws.String("Name"),
				TagValue: aws.String(keyName),
			},
			{
				TagKey:   aws.String("Purpose"),
				TagValue: aws.String("bip322-signing-key"),
			},
			{
				TagKey:   aws.String("Curve"),
				TagValue: aws.String("secp256k1"),
			},
		},
	}

	result, err := a.kmsClient.CreateKey(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS key: %w", err)
	}

	return result, nil
}

// createKeyAlias creates an alias for the KMS key for easier reference
func (a *AWSKMSKeySigner) createKeyAlias(ctx context.Context, keyId, aliasName string) error {
	input := &kms.CreateAliasInput{
		AliasName:   aws.String(fmt.Sprintf("alias/%s", aliasName)),
		TargetKeyId: aws.String(keyId),
	}

	if _, err := a.kmsClient.CreateAlias(ctx, input); err != nil {
		return fmt.Errorf("failed to create key alias: %w", err)
	}

	a.logger.Sugar().Infow("Created KMS key alias", "alias", aliasName, "keyId", keyId)
	return nil
}

// getPublicKey fetches the key's SubjectPublicKeyInfo and returns it compressed
func (a *AWSKMSKeySigner) getPublicKey(ctx context.Context, keyId string) ([]byte, error) {
	result, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}

	return a.parsePublicKey(result.PublicKey)
}

// ASN.1 structures of a DER SubjectPublicKeyInfo for an EC key
type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// parsePublicKey parses the DER-encoded public key from KMS
func (a *AWSKMSKeySigner) parsePublicKey(derBytes []byte) ([]byte, error) {
	var spki asn1EcPublicKey
	rest, err := asn1.Unmarshal(derBytes, &spki)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing data after ASN.1 public key")
	}
	if !spki.EcPublicKeyInfo.Algorithm.Equal(oidPublicKeyECDSA) {
		return nil, fmt.Errorf("not an EC public key: %v", spki.EcPublicKeyInfo.Algorithm)
	}
	if !spki.EcPublicKeyInfo.Parameters.Equal(oidSecp256k1) {
		return nil, fmt.Errorf("key is not on secp256k1: %v", spki.EcPublicKeyInfo.Parameters)
	}

	return a.provider.CompressPublicKey(spki.PublicKey.Bytes)
}
