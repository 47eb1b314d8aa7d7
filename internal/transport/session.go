package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mxocore/worldcore/internal/cryptoenv"
)

// PingInterval is the default cadence at which the server sends a MsgPing
// keepalive to each peer.
const PingInterval = 5 * time.Second

// ConnectionTimeout is how long a peer may go without any traffic before
// its session is considered dead.
const ConnectionTimeout = 30 * time.Second

// SendFunc hands a fully framed datagram to the underlying socket.
type SendFunc func(payload []byte) error

// Delivered is one logical frame handed up to the caller after ordering,
// dedup, reassembly, and decryption have all been applied.
type Delivered struct {
	MsgType uint16
	Blocks  []Block
	WasFragmented bool
}

// Session is the reliable/ordered/encrypted/fragmented channel to a single
// peer, addressed by its UDP endpoint. It owns no goroutines of its own;
// Server drives HandleInbound off its receive loop, and its housekeeping
// loop drives ExpireFragments, Retransmit, TimedOut, MaybeSendAck and
// MaybeSendPing across every session it tracks.
type Session struct {
	Addr *net.UDPAddr
	send SendFunc

	mu          sync.Mutex
	outSeq      uint16
	fragCounter uint16
	sessionKey  [cryptoenv.SessionKeySize]byte
	encrypted   bool
	lastActivity time.Time

	ackDirty      bool
	ackDirtySince time.Time
	lastAckSent   time.Time
	lastPingSent time.Time

	slots       *SlotTable
	reorder     *ReorderBuffer
	reassembler *Reassembler

	metrics *Metrics
}

// NewSession builds a session addressed at addr. Sequence numbering starts
// at 0 on both sides per the handshake contract.
func NewSession(addr *net.UDPAddr, send SendFunc, metrics *Metrics) *Session {
	now := time.Now()
	return &Session{
		Addr:         addr,
		send:         send,
		slots:        NewSlotTable(),
		reorder:      NewReorderBuffer(0),
		reassembler:  NewReassembler(),
		lastActivity: now,
		lastPingSent: now,
		metrics:      metrics,
	}
}

// EnableEncryption switches the session into STATE_CONNECTED's encrypted
// mode: every subsequent send/receive wraps its blocks in a secretbox
// envelope keyed by sessionKey (§4.4 "encryption gate").
func (s *Session) EnableEncryption(sessionKey [cryptoenv.SessionKeySize]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionKey = sessionKey
	s.encrypted = true
}

// Touch records activity for connection-timeout purposes.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

// TimedOut reports whether the session has gone silent past ConnectionTimeout.
func (s *Session) TimedOut(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity) > ConnectionTimeout
}

// Send transmits msgType/blocks to the peer. reliable requests retransmit
// tracking; the frame is transparently fragmented if it doesn't fit under
// DefaultMTU once framed.
func (s *Session) Send(msgType uint16, blocks []Block, reliable bool) error {
	s.mu.Lock()
	ack := s.reorder.Expected() - 1
	s.ackDirty = false
	flags := Flags(0)
	if reliable {
		flags |= FlagReliable
	}
	if s.encrypted {
		plain := encodeBlockList(blocks)
		cipher, err := cryptoenv.EncryptSession(s.sessionKey, plain)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("transport: encrypt: %w", err)
		}
		blocks = []Block{{Type: encryptedBlockType, Data: cipher}}
		flags |= FlagEncrypted
	}
	seq := s.outSeq
	s.outSeq++
	inner := &Frame{Version: ProtocolVersion, MsgType: msgType, Sequence: seq, Ack: ack, Flags: flags, Blocks: blocks}
	encoded := Encode(inner)

	if len(encoded) <= DefaultMTU {
		s.mu.Unlock()
		return s.transmit(seq, encoded, reliable)
	}

	fragID := s.fragCounter
	s.fragCounter++
	// Only the fragment carriers go on the wire, so the inner frame's
	// sequence number is handed back for the first carrier to use.
	s.outSeq = seq
	frags := Split(fragID, encoded)
	s.mu.Unlock()

	for _, frag := range frags {
		if err := s.sendFragment(frag, msgType, reliable, ack); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) sendFragment(frag Fragment, msgType uint16, reliable bool, ack uint16) error {
	s.mu.Lock()
	seq := s.outSeq
	s.outSeq++
	s.mu.Unlock()

	flags := FlagFragment
	if reliable {
		flags |= FlagReliable
	}
	outer := &Frame{
		Version:  ProtocolVersion,
		MsgType:  msgType,
		Sequence: seq,
		Ack:      ack,
		Flags:    flags,
		Blocks:   []Block{{Type: fragmentBlockType, Data: EncodeFragmentBlock(frag)}},
	}
	return s.transmit(seq, Encode(outer), reliable)
}

func (s *Session) transmit(seq uint16, payload []byte, reliable bool) error {
	if reliable {
		now := time.Now()
		if err := s.slots.Send(seq, payload, now); err != nil {
			if s.metrics != nil {
				s.metrics.WindowFullEvents.Inc()
			}
			return err
		}
	}
	if err := s.send(payload); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	if s.metrics != nil {
		s.metrics.FramesSent.Inc()
	}
	return nil
}

// HandleInbound decodes and processes one raw datagram from this peer,
// returning any logical frames it completed (in delivery order). A single
// datagram can complete zero frames (buffered/duplicate/still-fragmenting),
// exactly one (the common case), or several (a burst of buffered frames
// unblocked by the arrival of the missing one).
func (s *Session) HandleInbound(raw []byte, now time.Time) ([]Delivered, error) {
	s.Touch(now)

	outer, err := Decode(raw)
	if err != nil {
		if s.metrics != nil {
			s.metrics.FramesMalformed.Inc()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.FramesReceived.Inc()
	}

	s.mu.Lock()
	s.slots.Ack(outer.Ack)
	outcome := s.reorder.Accept(outer.Sequence, raw)
	if outer.Flags.Has(FlagReliable) && outcome != OutcomeOutOfWindow {
		if !s.ackDirty {
			s.ackDirtySince = now
		}
		s.ackDirty = true
	}
	var readyRaw [][]byte
	switch outcome {
	case OutcomeDeliverable:
		readyRaw = s.reorder.Drain(outer.Sequence, raw)
	case OutcomeBuffered, OutcomeDuplicate, OutcomeOutOfWindow:
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	var out []Delivered
	for _, r := range readyRaw {
		f, err := Decode(r)
		if err != nil {
			continue
		}
		d, err := s.resolve(f, now)
		if err != nil {
			continue
		}
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

// resolve turns a decoded, ordering-cleared Frame into a logical Delivered
// value, transparently reassembling fragments and decrypting envelopes.
func (s *Session) resolve(f *Frame, now time.Time) (*Delivered, error) {
	if f.Flags.Has(FlagFragment) {
		if len(f.Blocks) != 1 {
			return nil, ErrMalformedFrame
		}
		frag, ok := DecodeFragmentBlock(f.Blocks[0].Data)
		if !ok {
			return nil, ErrMalformedFrame
		}
		s.mu.Lock()
		full, done := s.reassembler.Add(frag, now)
		s.mu.Unlock()
		if !done {
			return nil, nil
		}
		inner, err := Decode(full)
		if err != nil {
			return nil, err
		}
		return s.resolveDecrypted(inner, true)
	}
	return s.resolveDecrypted(f, false)
}

func (s *Session) resolveDecrypted(f *Frame, wasFragmented bool) (*Delivered, error) {
	blocks := f.Blocks
	if f.Flags.Has(FlagEncrypted) {
		if len(blocks) != 1 {
			return nil, ErrMalformedFrame
		}
		s.mu.Lock()
		key := s.sessionKey
		s.mu.Unlock()
		plain, err := cryptoenv.DecryptSession(key, blocks[0].Data)
		if err != nil {
			return nil, err
		}
		blocks, err = decodeBlockList(plain)
		if err != nil {
			return nil, err
		}
	}
	return &Delivered{MsgType: f.MsgType, Blocks: blocks, WasFragmented: wasFragmented}, nil
}

// MaybeSendAck emits a bare MsgAck datagram carrying the current cumulative
// ack if an inbound reliable frame is still unacknowledged and coalesce has
// elapsed since the first such frame arrived (§4.4 "standalone ack emission
// within one tick bounded by ack_coalesce_ms"). Any other outbound frame
// already piggybacks the same ack value and clears the dirty flag itself,
// so this only fires when a peer's reliable traffic went otherwise
// unanswered for a whole coalesce window.
func (s *Session) MaybeSendAck(now time.Time, coalesce time.Duration) error {
	s.mu.Lock()
	due := s.ackDirty && now.Sub(s.ackDirtySince) >= coalesce
	s.mu.Unlock()
	if !due {
		return nil
	}
	if err := s.Send(MsgAck, nil, false); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastAckSent = now
	s.mu.Unlock()
	return nil
}

// MaybeSendPing emits an unreliable MsgPing keepalive once interval has
// elapsed since the last one, per §4.4's ping_interval keepalive contract.
func (s *Session) MaybeSendPing(now time.Time, interval time.Duration) error {
	s.mu.Lock()
	due := now.Sub(s.lastPingSent) >= interval
	s.mu.Unlock()
	if !due {
		return nil
	}
	if err := s.Send(MsgPing, nil, false); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastPingSent = now
	s.mu.Unlock()
	return nil
}

// Retransmit resends anything overdue and reports whether the session has
// exhausted its retransmit budget and must be torn down.
func (s *Session) Retransmit(now time.Time) (shouldDisconnect bool) {
	resend, expired := s.slots.DueRetransmits(now)
	for _, payload := range resend {
		_ = s.send(payload)
		if s.metrics != nil {
			s.metrics.Retransmits.Inc()
		}
	}
	if len(expired) > 0 {
		if s.metrics != nil {
			s.metrics.SessionsExpired.Inc()
		}
		return true
	}
	return false
}

// ExpireFragments drops fragment sets abandoned past ReassemblyTimeout.
func (s *Session) ExpireFragments(now time.Time) []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := s.reassembler.ExpireStale(now, ReassemblyTimeout)
	if len(dropped) > 0 && s.metrics != nil {
		s.metrics.FragmentsDropped.Add(float64(len(dropped)))
	}
	return dropped
}

// Close releases the session's retransmit state.
func (s *Session) Close() {
	s.slots.Clear()
}
