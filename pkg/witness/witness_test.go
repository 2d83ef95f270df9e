package witness

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const p2wpkhEmptyMessageWitness = "AkcwRAIgM2gBAQqvZX15ZiysmKmQpDrG83avLIT492QBzLnQIxYCIBaTpOaD20qRlEylyxFSeEA2ba9YOixpX8z46TSDtS40ASECx/EgAxlkQpQ9hYjgGu6EBCPMVPwVIVJqO4XCsMvViHI="

func TestDeserialize_P2WPKHVector(t *testing.T) {
	items, err := Deserialize(p2wpkhEmptyMessageWitness)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Len(t, items[0], 71)
	assert.Equal(t, byte(0x01), items[0][len(items[0])-1], "signature carries SIGHASH_ALL")
	assert.Equal(t, "02c7f12003196442943d8588e01aee840423cc54fc1521526a3b85c2b0cbd58872", hex.EncodeToString(items[1]))

	assert.Equal(t, p2wpkhEmptyMessageWitness, Serialize(items))
}

func TestSerialize_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		items [][]byte
	}{
		{"empty stack", [][]byte{}},
		{"single empty item", [][]byte{{}}},
		{"mixed items", [][]byte{{0x01}, {}, bytes.Repeat([]byte{0xab}, 64)}},
		{"item needing three byte length", [][]byte{bytes.Repeat([]byte{0x42}, 300)}},
		{"many items", func() [][]byte {
			out := make([][]byte, 260)
			for i := range out {
				out[i] = []byte{byte(i)}
			}
			return out
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Deserialize(Serialize(tt.items))
			require.NoError(t, err)
			assert.Equal(t, tt.items, decoded)
		})
	}
}

func TestEncode_Layout(t *testing.T) {
	raw := Encode([][]byte{{0xaa}, {}})
	assert.Equal(t, []byte{0x02, 0x01, 0xaa, 0x00}, raw)
	assert.Equal(t, "AgGqAA==", Serialize([][]byte{{0xaa}, {}}))
	assert.Equal(t, "AA==", Serialize(nil))
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty buffer", []byte{}},
		{"count without items", []byte{0x01}},
		{"short item", []byte{0x01, 0x05, 0x01, 0x02}},
		{"trailing bytes", []byte{0x01, 0x01, 0xaa, 0xbb}},
		{"non-canonical count", []byte{0xfd, 0x01, 0x00, 0x00}},
		{"non-canonical length", []byte{0x01, 0xfd, 0x01, 0x00, 0xaa}},
		{"count larger than buffer", []byte{0xfe, 0xff, 0xff, 0xff, 0x7f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrMalformedWitness), err.Error())
		})
	}
}

func TestDeserialize_InvalidBase64(t *testing.T) {
	_, err := Deserialize("not base64!")
	require.Error(t, err)
	assert.Equal(t, types.KindMalformedWitness, types.KindOf(err))
}

func TestString(t *testing.T) {
	assert.Equal(t, "[aa  0102]", String([][]byte{{0xaa}, {}, {0x01, 0x02}}))
}
