package btree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInt32Codec_EncodeDecodeRoundTrips(t *testing.T) {
	var codec Int32Codec
	buf := make([]byte, codec.Size())
	codec.Encode(buf, -17)
	require.Equal(t, int32(-17), codec.Decode(buf))
}

func TestInt32Codec_CompareOrdersCorrectly(t *testing.T) {
	var codec Int32Codec
	require.Negative(t, codec.Compare(1, 2))
	require.Zero(t, codec.Compare(5, 5))
	require.Positive(t, codec.Compare(9, 3))
}

func TestBytes16Codec_CompareIsLexicographic(t *testing.T) {
	var codec Bytes16Codec
	a := Bytes16{1, 2, 3}
	b := Bytes16{1, 2, 4}
	require.Negative(t, codec.Compare(a, b))
	require.Zero(t, codec.Compare(a, a))
}

func TestGetPutU32_RoundTrips(t *testing.T) {
	buf := make([]byte, 4)
	putU32(buf, 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), getU32(buf))
}
