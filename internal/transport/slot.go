package transport

import (
	"errors"
	"sync"
	"time"
)

// WindowSize is the maximum number of in-flight reliable frames per peer
// before Send starts refusing new ones (§4.4 "reliable send window").
const WindowSize = 64

// ResendInterval is how long an unacknowledged slot waits before it is
// retransmitted.
const ResendInterval = 500 * time.Millisecond

// MaxAttempts is the number of sends (including the first) a slot may
// receive before the owning session gives up and moves to disconnecting.
const MaxAttempts = 10

// ErrWindowFull is returned by SlotTable.Send when the caller is holding
// WindowSize unacknowledged frames already.
var ErrWindowFull = errors.New("transport: reliable send window full")

// slot tracks one outstanding reliable frame awaiting acknowledgement.
type slot struct {
	seq       uint16
	payload   []byte
	firstSent time.Time
	lastSent  time.Time
	attempts  int
}

// SlotTable is the per-peer table of unacknowledged reliable sends. It is
// owned by a single Session and guarded by its own mutex because retransmit
// scanning happens off a timer goroutine while Send/Ack happen off the
// session's receive path.
type SlotTable struct {
	mu    sync.Mutex
	slots map[uint16]*slot
}

// NewSlotTable builds an empty slot table.
func NewSlotTable() *SlotTable {
	return &SlotTable{slots: make(map[uint16]*slot, WindowSize)}
}

// Len reports the number of unacknowledged slots currently held.
func (t *SlotTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Send records seq/payload as newly sent. It fails with ErrWindowFull once
// WindowSize frames are outstanding; the caller must not transmit the
// datagram in that case.
func (t *SlotTable) Send(seq uint16, payload []byte, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.slots) >= WindowSize {
		return ErrWindowFull
	}
	t.slots[seq] = &slot{
		seq:       seq,
		payload:   payload,
		firstSent: now,
		lastSent:  now,
		attempts:  1,
	}
	return nil
}

// Ack removes every slot whose sequence is <= ack in modular order,
// treating ack as a cumulative acknowledgement per §4.4's ack semantics.
func (t *SlotTable) Ack(ack uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for seq := range t.slots {
		if SeqLessOrEqual(seq, ack) {
			delete(t.slots, seq)
		}
	}
}

// Expired describes a slot that has crossed MaxAttempts and will no longer
// be retransmitted; the caller must disconnect the session.
type Expired struct {
	Seq      uint16
	Attempts int
}

// DueRetransmits scans the table for slots whose resend interval has
// elapsed, bumps their attempt counters, and returns their payloads to
// resend. Slots that have exhausted MaxAttempts are removed from the table
// and reported in expired instead.
func (t *SlotTable) DueRetransmits(now time.Time) (resend [][]byte, expired []Expired) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for seq, s := range t.slots {
		if now.Sub(s.lastSent) < ResendInterval {
			continue
		}
		if s.attempts >= MaxAttempts {
			expired = append(expired, Expired{Seq: seq, Attempts: s.attempts})
			delete(t.slots, seq)
			continue
		}
		s.attempts++
		s.lastSent = now
		resend = append(resend, s.payload)
	}
	return resend, expired
}

// Clear drops every tracked slot, used when a session is torn down.
func (t *SlotTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots = make(map[uint16]*slot, WindowSize)
}
