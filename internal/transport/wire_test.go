package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	f := &Frame{
		Version:  ProtocolVersion,
		MsgType:  MsgPlayerCommand,
		Sequence: 100,
		Ack:      99,
		Flags:    FlagReliable,
		Blocks: []Block{
			{Type: 1, Data: []byte("hello")},
			{Type: 2, Data: []byte{}},
		},
	}

	raw := Encode(f)
	got, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, f.Version, got.Version)
	assert.Equal(t, f.MsgType, got.MsgType)
	assert.Equal(t, f.Sequence, got.Sequence)
	assert.Equal(t, f.Ack, got.Ack)
	assert.Equal(t, f.Flags, got.Flags)
	require.Len(t, got.Blocks, 2)
	assert.Equal(t, []byte("hello"), got.Blocks[0].Data)
	assert.Equal(t, []byte{}, got.Blocks[1].Data)
}

func TestDecode_BadMagic(t *testing.T) {
	raw := Encode(&Frame{Version: ProtocolVersion, MsgType: MsgPing})
	raw[0] = 0xFF
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecode_TruncatedHeader(t *testing.T) {
	_, err := Decode([]byte{Magic, ProtocolVersion})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecode_LengthMismatch(t *testing.T) {
	raw := Encode(&Frame{Version: ProtocolVersion, MsgType: MsgPing})
	raw = append(raw, 0xFF) // trailing garbage byte invalidates the length field
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecode_BlockLengthOverrunsBuffer(t *testing.T) {
	raw := Encode(&Frame{
		Version: ProtocolVersion,
		MsgType: MsgPing,
		Blocks:  []Block{{Type: 1, Data: []byte("abc")}},
	})
	// Corrupt the block's declared length (first byte after 8+6 header bytes
	// of the length-block is its type, then the 2-byte length field).
	lenOffset := commonHeaderSize + gameHeaderSize + 2
	raw[lenOffset] = 0xFF
	raw[lenOffset+1] = 0xFF
	_, err := Decode(raw)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestFlags_Has(t *testing.T) {
	f := FlagReliable | FlagEncrypted
	assert.True(t, f.Has(FlagReliable))
	assert.True(t, f.Has(FlagEncrypted))
	assert.False(t, f.Has(FlagCompressed))
	assert.True(t, f.Has(FlagReliable|FlagEncrypted))
}
