package crypto

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD-160 is fixed by the Bitcoin address format
)

const (
	// BIP322Tag is the domain separation tag for BIP-322 message commitments
	BIP322Tag = "BIP0322-signed-message"

	// legacyMagicPrefix is prepended to every BIP-137 signed message
	legacyMagicPrefix = "\x18Bitcoin Signed Message:\n"

	// varIntProtoVer is the protocol version used when writing a CompactSize
	varIntProtoVer uint32 = 0
)

// TaggedHash computes SHA256(SHA256(tag) || SHA256(tag) || msgs...)
func TaggedHash(tag string, msgs ...[]byte) [32]byte {
	return *chainhash.TaggedHash([]byte(tag), msgs...)
}

// BIP322MessageHash returns the message commitment embedded in the toSpend
// transaction's scriptSig. The message is never pre-hashed.
func BIP322MessageHash(message []byte) [32]byte {
	return TaggedHash(BIP322Tag, message)
}

// LegacyMessageHash returns the BIP-137 digest:
// SHA256d("\x18Bitcoin Signed Message:\n" || CompactSize(len(message)) || message)
func LegacyMessageHash(message []byte) [32]byte {
	var buf bytes.Buffer
	buf.Grow(len(legacyMagicPrefix) + wire.VarIntSerializeSize(uint64(len(message))) + len(message))
	buf.WriteString(legacyMagicPrefix)
	// Writes to a bytes.Buffer cannot fail
	_ = wire.WriteVarInt(&buf, varIntProtoVer, uint64(len(message)))
	buf.Write(message)

	return chainhash.DoubleHashH(buf.Bytes())
}

// Hash160 computes RIPEMD160(SHA256(data)), the hash committed to by P2PKH,
// P2WPKH and P2SH outputs
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	h := ripemd160.New()
	_, _ = h.Write(sha[:])
	return h.Sum(nil)
}
