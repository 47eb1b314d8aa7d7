package transport

// ReorderBuffer enforces in-order, exactly-once delivery of reliable
// frames over an unreliable, reordering transport. It tracks the next
// sequence it expects to deliver, holds frames that arrived ahead of that
// point (as long as they fall within one window), and rejects anything it
// has already delivered or that falls too far behind to be trusted.
type ReorderBuffer struct {
	expected uint16
	pending  map[uint16][]byte
}

// NewReorderBuffer builds a buffer that expects the given starting
// sequence next (normally the sequence named in the handshake ack).
func NewReorderBuffer(start uint16) *ReorderBuffer {
	return &ReorderBuffer{
		expected: start,
		pending:  make(map[uint16][]byte),
	}
}

// Outcome classifies what Accept did with an inbound frame.
type Outcome int

const (
	// OutcomeDeliverable means seq (and possibly buffered frames after it)
	// are ready for in-order delivery via Drain.
	OutcomeDeliverable Outcome = iota
	// OutcomeBuffered means seq arrived ahead of schedule and was held.
	OutcomeBuffered
	// OutcomeDuplicate means seq was already delivered or already buffered.
	OutcomeDuplicate
	// OutcomeOutOfWindow means seq falls further behind expected than the
	// window tolerates and must be dropped without disturbing state.
	OutcomeOutOfWindow
)

// Accept classifies and, for in-window frames, records payload for seq.
func (r *ReorderBuffer) Accept(seq uint16, payload []byte) Outcome {
	if _, buffered := r.pending[seq]; buffered {
		return OutcomeDuplicate
	}

	dist := SeqDistance(r.expected, seq) // seq - expected, modular
	if seq == r.expected {
		return OutcomeDeliverable
	}
	if SeqGreater(seq, r.expected) {
		if int(dist) >= WindowSize {
			return OutcomeOutOfWindow
		}
		r.pending[seq] = payload
		return OutcomeBuffered
	}

	// seq is behind expected: within W it's a replay of something already
	// delivered (still ack it so the sender's slot clears); further back
	// than that it's an out-of-window replay the sender has likely already
	// given up retransmitting, and must not be acked (§4.4).
	behind := SeqDistance(seq, r.expected) // expected - seq, modular
	if int(behind) > WindowSize {
		return OutcomeOutOfWindow
	}
	return OutcomeDuplicate
}

// Drain returns, in order, every consecutive payload starting at the
// sequence just accepted through however far the pending buffer chains,
// advancing the expected sequence past them. The caller must have already
// confirmed Accept returned OutcomeDeliverable for the seq/payload pair
// passed here.
func (r *ReorderBuffer) Drain(seq uint16, payload []byte) [][]byte {
	out := [][]byte{payload}
	next := seq + 1

	for {
		p, ok := r.pending[next]
		if !ok {
			break
		}
		out = append(out, p)
		delete(r.pending, next)
		next++
	}
	r.expected = next
	return out
}

// Expected reports the next sequence this buffer wants to deliver.
func (r *ReorderBuffer) Expected() uint16 { return r.expected }

// Pending reports how many frames are currently buffered ahead of expected.
func (r *ReorderBuffer) Pending() int { return len(r.pending) }
