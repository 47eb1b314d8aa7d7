package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReorderBuffer_InOrderDelivery(t *testing.T) {
	r := NewReorderBuffer(0)

	out := r.Accept(0, []byte("a"))
	assert.Equal(t, OutcomeDeliverable, out)
	delivered := r.Drain(0, []byte("a"))
	assert.Equal(t, [][]byte{[]byte("a")}, delivered)
	assert.Equal(t, uint16(1), r.Expected())
}

func TestReorderBuffer_BufferAheadThenChainDeliver(t *testing.T) {
	r := NewReorderBuffer(0)

	assert.Equal(t, OutcomeBuffered, r.Accept(2, []byte("c")))
	assert.Equal(t, OutcomeBuffered, r.Accept(1, []byte("b")))
	assert.Equal(t, 2, r.Pending())

	assert.Equal(t, OutcomeDeliverable, r.Accept(0, []byte("a")))
	delivered := r.Drain(0, []byte("a"))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, delivered)
	assert.Equal(t, uint16(3), r.Expected())
	assert.Equal(t, 0, r.Pending())
}

func TestReorderBuffer_DuplicateDropped(t *testing.T) {
	r := NewReorderBuffer(0)
	r.Drain(0, []byte("a"))

	assert.Equal(t, OutcomeDuplicate, r.Accept(0, []byte("a-again")))
}

func TestReorderBuffer_DuplicateWhilePending(t *testing.T) {
	r := NewReorderBuffer(0)
	r.Accept(5, []byte("x"))
	assert.Equal(t, OutcomeDuplicate, r.Accept(5, []byte("x-again")))
}

func TestReorderBuffer_OutOfWindowDropped(t *testing.T) {
	r := NewReorderBuffer(0)
	assert.Equal(t, OutcomeOutOfWindow, r.Accept(WindowSize+1, []byte("too-far")))
}

func TestReorderBuffer_BehindWithinWindowIsDuplicate(t *testing.T) {
	r := NewReorderBuffer(uint16(WindowSize))
	assert.Equal(t, OutcomeDuplicate, r.Accept(0, []byte("replay")))
}

func TestReorderBuffer_BehindPastWindowIsOutOfWindow(t *testing.T) {
	r := NewReorderBuffer(uint16(2 * WindowSize))
	assert.Equal(t, OutcomeOutOfWindow, r.Accept(0, []byte("stale-replay")))
}

func TestReorderBuffer_WrapBoundary(t *testing.T) {
	r := NewReorderBuffer(65535)

	assert.Equal(t, OutcomeDeliverable, r.Accept(65535, []byte("last")))
	delivered := r.Drain(65535, []byte("last"))
	assert.Equal(t, [][]byte{[]byte("last")}, delivered)
	assert.Equal(t, uint16(0), r.Expected())

	assert.Equal(t, OutcomeDeliverable, r.Accept(0, []byte("wrapped")))
}
