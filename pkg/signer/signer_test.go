package signer

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"testing"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/bip137"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/Layr-Labs/bip322-go/pkg/verifier"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWIF       = "L3VFeEujGtevx9w18HD1fhRbCH67Az2dpCymeRE1SoPK6XQtaN2k"
	p2wpkhAddress = "bc1q9vza2e8x573nczrlzms0wvx3gsqjx7vavgkx0l"
	p2trAddress   = "bc1ppv609nr0vr25u07u95waq5lucwfm6tde4nydujnu8npg4q75mr5sxq8lt3"
	p2shAddress   = "37qyp7jQAzqb2rCBpMvVtLDuuzKAUCVnJb"
	p2pkhAddress  = "14vV3aCHBeStb5bkenkNHbe2YAFinYdXgc"
	p2wshAddress  = "bc1qrp33g0q5c5txsp9arysrx4k6zdkfs4nce4xj0gdcccefvpysxf3qccfmv3"
)

var signableTypes = []address.Type{address.P2PKH, address.P2SH, address.P2WPKH, address.P2TR}

func providers(t *testing.T) []crypto.ICurveProvider {
	t.Helper()
	out := make([]crypto.ICurveProvider, 0)
	for _, name := range crypto.ListProviders() {
		p, err := crypto.NewCurveProvider(name)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

// TestSign_SelfVerifies signs every supported type with every provider and
// verifies the result on every provider
func TestSign_SelfVerifies(t *testing.T) {
	priv := sha256.Sum256([]byte("signer self verification"))
	messages := [][]byte{[]byte(""), []byte("Hello World"), make([]byte, 300)}

	for _, signingProvider := range providers(t) {
		s := NewSigner(signingProvider, nil)
		pub, err := signingProvider.PublicKey(priv[:])
		require.NoError(t, err)

		for _, typ := range signableTypes {
			derived, err := address.FromPublicKey(pub, typ)
			require.NoError(t, err)

			for _, msg := range messages {
				sig, err := s.Sign(priv[:], msg, typ)
				require.NoError(t, err, "%s/%s", signingProvider.Name(), typ)

				for _, verifyingProvider := range providers(t) {
					v := verifier.NewVerifier(verifyingProvider, nil)
					for _, addr := range []string{derived.Mainnet, derived.Testnet} {
						valid, err := v.VerifySignature(addr, msg, sig)
						require.NoError(t, err, "%s -> %s %s", signingProvider.Name(), verifyingProvider.Name(), addr)
						assert.True(t, valid, "%s -> %s %s", signingProvider.Name(), verifyingProvider.Name(), addr)
					}

					valid, err := v.VerifySignature(derived.Mainnet, append(msg, '!'), sig)
					require.NoError(t, err)
					assert.False(t, valid, "tampered message must not verify")
				}
			}
		}
	}
}

func TestSign_Shapes(t *testing.T) {
	priv := sha256.Sum256([]byte("signature shapes"))

	legacy, err := Sign(priv[:], []byte("msg"), address.P2PKH)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(legacy)
	require.NoError(t, err)
	require.Len(t, raw, bip137.SignatureLength)
	hint, err := bip137.HintOf(raw[0])
	require.NoError(t, err)
	assert.Equal(t, bip137.HintP2PKHCompressed, hint)

	segwit, err := Sign(priv[:], []byte("msg"), address.P2WPKH)
	require.NoError(t, err)
	items, err := witness.Deserialize(segwit)
	require.NoError(t, err)
	require.True(t, address.IsP2WPKHWitness(items))
	assert.Equal(t, byte(txscript.SigHashAll), items[0][len(items[0])-1])

	taproot, err := Sign(priv[:], []byte("msg"), address.P2TR)
	require.NoError(t, err)
	items, err = witness.Deserialize(taproot)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Len(t, items[0], 64)
}

func TestSign_Unsupported(t *testing.T) {
	priv := sha256.Sum256([]byte("unsupported"))
	for _, typ := range []address.Type{address.P2WSH, address.Unsupported} {
		_, err := Sign(priv[:], []byte("msg"), typ)
		assert.True(t, errors.Is(err, types.ErrUnsupportedAddress), typ.String())
	}
}

func TestSignLegacy_UncompressedHint(t *testing.T) {
	priv := sha256.Sum256([]byte("uncompressed legacy"))
	s := NewSigner(nil, nil)

	sig, err := s.SignLegacy(priv[:], []byte("msg"), bip137.HintP2PKHUncompressed)
	require.NoError(t, err)

	pub, err := crypto.DefaultProvider().PublicKey(priv[:])
	require.NoError(t, err)
	uncompressed, err := address.DecompressPublicKey(pub)
	require.NoError(t, err)
	derived, err := address.FromPublicKey(uncompressed, address.P2PKH)
	require.NoError(t, err)

	valid, err := verifier.VerifySignature(derived.Mainnet, []byte("msg"), sig)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSignP2TRWithSighash(t *testing.T) {
	priv := sha256.Sum256([]byte("explicit sighash"))
	pub, err := crypto.DefaultProvider().PublicKey(priv[:])
	require.NoError(t, err)
	derived, err := address.FromPublicKey(pub, address.P2TR)
	require.NoError(t, err)

	sig, err := NewSigner(nil, nil).SignP2TRWithSighash(priv[:], []byte("msg"), txscript.SigHashAll)
	require.NoError(t, err)
	items, err := witness.Deserialize(sig)
	require.NoError(t, err)
	require.Len(t, items[0], 65)
	assert.Equal(t, byte(txscript.SigHashAll), items[0][64])

	valid, err := verifier.VerifySignature(derived.Mainnet, []byte("msg"), sig)
	require.NoError(t, err)
	assert.True(t, valid)
}

// TestSignWIF_Vector signs with the published test key and checks it against the published address
func TestSignWIF_Vector(t *testing.T) {
	for _, addr := range []string{p2wpkhAddress, p2trAddress, p2shAddress, p2pkhAddress} {
		t.Run(addr, func(t *testing.T) {
			sig, err := SignWIF(testWIF, addr, []byte("Hello World"))
			require.NoError(t, err)

			valid, err := verifier.VerifySignature(addr, []byte("Hello World"), sig)
			require.NoError(t, err)
			assert.True(t, valid)

			valid, err = verifier.VerifySignature(addr, []byte(""), sig)
			require.NoError(t, err)
			assert.False(t, valid)
		})
	}
}

func TestSignWIF_Errors(t *testing.T) {
	_, err := SignWIF(testWIF, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", []byte("msg"))
	assert.True(t, errors.Is(err, types.ErrKeyMismatch))

	_, err = SignWIF(testWIF, p2wshAddress, []byte("msg"))
	assert.True(t, errors.Is(err, types.ErrUnsupportedAddress))

	_, err = SignWIF("not-a-wif", p2wpkhAddress, []byte("msg"))
	assert.Error(t, err)

	_, err = SignWIF(testWIF, p2wpkhAddress+"x", []byte("msg"))
	assert.True(t, errors.Is(err, types.ErrInvalidAddress))
}

// fakeDigestSigner signs locally and optionally returns high-S signatures
type fakeDigestSigner struct {
	priv  *btcec.PrivateKey
	highS bool
}

func (f *fakeDigestSigner) PublicKey(ctx context.Context) ([]byte, error) {
	return f.priv.PubKey().SerializeUncompressed(), nil
}

func (f *fakeDigestSigner) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	der, err := crypto.DefaultProvider().SignECDSA(f.priv.Serialize(), digest)
	if err != nil {
		return nil, err
	}
	if !f.highS {
		return der, nil
	}
	rs, err := crypto.DERToCompact(der)
	if err != nil {
		return nil, err
	}
	s := new(big.Int).Sub(btcec.S256().Params().N, new(big.Int).SetBytes(rs[32:]))
	s.FillBytes(rs[32:])
	return crypto.CompactToDER(rs)
}

func TestSignRemote(t *testing.T) {
	seed := sha256.Sum256([]byte("remote signer"))
	priv, _ := btcec.PrivKeyFromBytes(seed[:])
	pub := priv.PubKey().SerializeCompressed()

	for _, highS := range []bool{false, true} {
		ds := &fakeDigestSigner{priv: priv, highS: highS}
		s := NewSigner(nil, nil)

		for _, typ := range []address.Type{address.P2PKH, address.P2SH, address.P2WPKH} {
			sig, err := s.SignRemote(context.Background(), ds, []byte("remote"), typ)
			require.NoError(t, err, typ.String())

			derived, err := address.FromPublicKey(pub, typ)
			require.NoError(t, err)

			valid, err := verifier.VerifySignature(derived.Mainnet, []byte("remote"), sig)
			require.NoError(t, err)
			assert.True(t, valid, "%s highS=%v", typ, highS)
		}

		_, err := s.SignRemote(context.Background(), ds, []byte("remote"), address.P2TR)
		assert.True(t, errors.Is(err, types.ErrUnsupportedAddress))
	}
}
