// Package witness implements the BIP-322 witness stack transport encoding:
// CompactSize(count) followed by CompactSize(len(item)) || item per item,
// wrapped in standard padded base64.
package witness

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/btcsuite/btcd/wire"
)

const protoVer uint32 = 0

// Encode serializes items into their raw binary form
func Encode(items [][]byte) []byte {
	size := wire.VarIntSerializeSize(uint64(len(items)))
	for _, item := range items {
		size += wire.VarIntSerializeSize(uint64(len(item))) + len(item)
	}

	var buf bytes.Buffer
	buf.Grow(size)
	// Writes to a bytes.Buffer cannot fail
	_ = wire.WriteVarInt(&buf, protoVer, uint64(len(items)))
	for _, item := range items {
		_ = wire.WriteVarBytes(&buf, protoVer, item)
	}
	return buf.Bytes()
}

// Decode parses a raw witness stack. The whole buffer must be consumed.
func Decode(raw []byte) ([][]byte, error) {
	r := bytes.NewReader(raw)

	count, err := wire.ReadVarInt(r, protoVer)
	if err != nil {
		return nil, types.WrapError(types.KindMalformedWitness, err, "failed to read item count")
	}
	// every item costs at least one length byte
	if count > uint64(r.Len()) {
		return nil, types.NewError(types.KindMalformedWitness, "item count %d exceeds remaining %d bytes", count, r.Len())
	}

	items := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		length, err := wire.ReadVarInt(r, protoVer)
		if err != nil {
			return nil, types.WrapError(types.KindMalformedWitness, err, "failed to read length of item %d", i)
		}
		if length > uint64(r.Len()) {
			return nil, types.NewError(types.KindMalformedWitness, "item %d declares %d bytes but only %d remain", i, length, r.Len())
		}
		item := make([]byte, length)
		// the length check above guarantees a full read
		_, _ = r.Read(item)
		items = append(items, item)
	}

	if r.Len() != 0 {
		return nil, types.NewError(types.KindMalformedWitness, "%d trailing bytes after %d items", r.Len(), count)
	}
	return items, nil
}

// Serialize encodes items into the base64 transport string
func Serialize(items [][]byte) string {
	return base64.StdEncoding.EncodeToString(Encode(items))
}

// Deserialize decodes a base64 transport string into its witness items
func Deserialize(encoded string) ([][]byte, error) {
	raw, err := DecodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// DecodeBase64 decodes the transport string without parsing it
func DecodeBase64(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, types.WrapError(types.KindMalformedWitness, err, "signature is not valid base64")
	}
	return raw, nil
}

// String renders items as hex for logs and tooling
func String(items [][]byte) string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%x", item)
	}
	buf.WriteByte(']')
	return buf.String()
}
