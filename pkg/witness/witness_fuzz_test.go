package witness

import (
	"errors"
	"testing"

	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/stretchr/testify/require"
)

func FuzzDecodeRoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte{0x01, 0x01, 0x01, 0x01})
	f.Add([]byte{0x02, 0x01, 0xaa, 0x00})
	f.Add([]byte{0xfd, 0x00, 0x01})

	f.Fuzz(func(t *testing.T, raw []byte) {
		items, err := Decode(raw)
		if err != nil {
			require.True(t, errors.Is(err, types.ErrMalformedWitness), "unexpected error kind: %v", err)
			return
		}
		// canonical CompactSize is enforced, so a successful decode re-encodes exactly
		require.Equal(t, raw, Encode(items))
	})
}

func FuzzEncodeDecode(f *testing.F) {
	f.Add([]byte("first"), []byte{}, []byte("third"))

	f.Fuzz(func(t *testing.T, a, b, c []byte) {
		items := [][]byte{a, b, c}
		got, err := Deserialize(Serialize(items))
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := range items {
			require.Equal(t, len(items[i]), len(got[i]))
			if len(items[i]) > 0 {
				require.Equal(t, items[i], got[i])
			}
		}
	})
}
