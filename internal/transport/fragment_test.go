package transport

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAndReassemble_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, MaxFragmentPayload()*3+17)
	frags := Split(42, payload)
	require.Greater(t, len(frags), 1)

	reassembler := NewReassembler()
	now := time.Now()

	var got []byte
	var done bool
	for i, f := range frags {
		block := EncodeFragmentBlock(f)
		decoded, ok := DecodeFragmentBlock(block)
		require.True(t, ok)

		got, done = reassembler.Add(decoded, now)
		if i < len(frags)-1 {
			assert.False(t, done)
		}
	}
	require.True(t, done)
	assert.Equal(t, payload, got)
}

func TestReassembler_OutOfOrderFragments(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01, 0x02}, MaxFragmentPayload())
	frags := Split(7, payload)
	require.GreaterOrEqual(t, len(frags), 2)

	reassembler := NewReassembler()
	now := time.Now()

	// Feed fragments in reverse order.
	var got []byte
	var done bool
	for i := len(frags) - 1; i >= 0; i-- {
		got, done = reassembler.Add(frags[i], now)
	}
	require.True(t, done)
	assert.Equal(t, payload, got)
}

func TestReassembler_ExpireStale(t *testing.T) {
	reassembler := NewReassembler()
	now := time.Now()

	reassembler.Add(Fragment{FragID: 1, Index: 0, Count: 2, Data: []byte("a")}, now)

	expired := reassembler.ExpireStale(now.Add(ReassemblyTimeout+time.Second), ReassemblyTimeout)
	require.Len(t, expired, 1)
	assert.Equal(t, uint16(1), expired[0])
}

func TestSplit_SingleFragmentForSmallPayload(t *testing.T) {
	frags := Split(1, []byte("small"))
	require.Len(t, frags, 1)
	assert.Equal(t, uint8(1), frags[0].Count)
	assert.Equal(t, uint8(0), frags[0].Index)
}
