package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotTable_SendAndAck(t *testing.T) {
	tbl := NewSlotTable()
	now := time.Now()

	require.NoError(t, tbl.Send(1, []byte("a"), now))
	require.NoError(t, tbl.Send(2, []byte("b"), now))
	assert.Equal(t, 2, tbl.Len())

	tbl.Ack(1)
	assert.Equal(t, 1, tbl.Len())

	tbl.Ack(2)
	assert.Equal(t, 0, tbl.Len())
}

func TestSlotTable_WindowFull(t *testing.T) {
	tbl := NewSlotTable()
	now := time.Now()

	for i := 0; i < WindowSize; i++ {
		require.NoError(t, tbl.Send(uint16(i), []byte("x"), now))
	}
	err := tbl.Send(uint16(WindowSize), []byte("overflow"), now)
	assert.ErrorIs(t, err, ErrWindowFull)
}

func TestSlotTable_DueRetransmits(t *testing.T) {
	tbl := NewSlotTable()
	base := time.Now()

	require.NoError(t, tbl.Send(1, []byte("payload"), base))

	resend, expired := tbl.DueRetransmits(base.Add(100 * time.Millisecond))
	assert.Empty(t, resend)
	assert.Empty(t, expired)

	resend, expired = tbl.DueRetransmits(base.Add(ResendInterval + time.Millisecond))
	require.Len(t, resend, 1)
	assert.Equal(t, []byte("payload"), resend[0])
	assert.Empty(t, expired)
}

func TestSlotTable_ExpiresAfterMaxAttempts(t *testing.T) {
	tbl := NewSlotTable()
	base := time.Now()
	require.NoError(t, tbl.Send(1, []byte("payload"), base))

	now := base
	for i := 1; i < MaxAttempts; i++ {
		now = now.Add(ResendInterval + time.Millisecond)
		resend, expired := tbl.DueRetransmits(now)
		require.Len(t, resend, 1)
		assert.Empty(t, expired)
	}

	now = now.Add(ResendInterval + time.Millisecond)
	resend, expired := tbl.DueRetransmits(now)
	assert.Empty(t, resend)
	require.Len(t, expired, 1)
	assert.Equal(t, uint16(1), expired[0].Seq)
	assert.Equal(t, 0, tbl.Len())
}
