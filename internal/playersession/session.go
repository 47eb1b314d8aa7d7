package playersession

import (
	"net"
	"sync"
	"time"

	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/transport"
	"github.com/mxocore/worldcore/internal/worldgraph"
)

// cryptoFailureWindow and cryptoFailureLimit implement §7's CryptoError
// policy: 16 failures within 60s forces DISCONNECTING.
const (
	cryptoFailureWindow = 60 * time.Second
	cryptoFailureLimit  = 16
)

// jackoutGrace is how long a player object stays in the world after a
// client-initiated jackout before the session actually tears down.
const jackoutGrace = 30 * time.Second

// PlayerSession is one bound peer-address/character pair, holding both the
// transport channel (C4) and the game-visible player state (§3 "Player
// session"). It implements worldgraph.Sender so the object graph can
// broadcast to it without importing this package.
type PlayerSession struct {
	Transport *transport.Session

	mu sync.Mutex

	characterID uint32
	accountID   uint32
	handle      string
	firstName   string
	lastName    string
	background  string
	experience  uint32
	information uint32
	district    worldgraph.District
	position    spatial.Position
	healthCur   int32
	healthMax   int32
	innerCur    int32
	innerMax    int32
	profession  uint8
	level       uint8
	alignment   int8
	pvp         bool
	anim        uint16
	mood        uint16
	appearance  []byte
	protocolVer uint8

	playerObjectID uint32

	state State

	events []Event

	cryptoFailures   []time.Time
	dirty            bool
}

// New creates a session in StateInitial for the given peer.
func New(t *transport.Session) *PlayerSession {
	return &PlayerSession{
		Transport: t,
		state:     StateInitial,
		healthMax: 100, healthCur: 100,
		innerMax: 100, innerCur: 100,
	}
}

// CharacterID satisfies worldgraph.Sender.
func (p *PlayerSession) CharacterID() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.characterID
}

// Send satisfies worldgraph.Sender by delegating to the transport session.
func (p *PlayerSession) Send(msgType uint16, blocks []transport.Block, reliable bool) error {
	return p.Transport.Send(msgType, blocks, reliable)
}

// Addr reports the peer's UDP endpoint.
func (p *PlayerSession) Addr() *net.UDPAddr { return p.Transport.Addr }

// State reports the current lifecycle state.
func (p *PlayerSession) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Bind completes the HANDSHAKE step: attaches the character/account
// identity carried by an A-minted ticket and advances INITIAL->HANDSHAKE.
func (p *PlayerSession) Bind(characterID, accountID uint32, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, err := advance(p.state)
	if err != nil {
		return err
	}
	p.characterID = characterID
	p.accountID = accountID
	p.handle = handle
	p.state = next
	return nil
}

// Advance moves the session to its next legal forward state.
func (p *PlayerSession) Advance() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, err := advance(p.state)
	if err != nil {
		return err
	}
	p.state = next
	return nil
}

// ForceDisconnect jumps directly to DISCONNECTING regardless of current
// state, per §4.5 "any state may be forced to DISCONNECTING".
func (p *PlayerSession) ForceDisconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateClosed {
		p.state = StateDisconnecting
	}
}

// Close marks the session terminal.
func (p *PlayerSession) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateClosed
}

// RecordCryptoFailure logs a decrypt failure and reports whether the
// session has now exceeded the failure budget and must be disconnected.
func (p *PlayerSession) RecordCryptoFailure(now time.Time) (shouldDisconnect bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := now.Add(-cryptoFailureWindow)
	kept := p.cryptoFailures[:0]
	for _, t := range p.cryptoFailures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	p.cryptoFailures = kept

	return len(p.cryptoFailures) >= cryptoFailureLimit
}

// SetPlayerObject records the object-graph id backing this session's
// avatar (a non-owning back-reference, §9).
func (p *PlayerSession) SetPlayerObject(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playerObjectID = id
}

// PlayerObjectID returns the object-graph id backing this session, or 0
// if none has been assigned yet.
func (p *PlayerSession) PlayerObjectID() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playerObjectID
}

// District reports the session's current district.
func (p *PlayerSession) District() worldgraph.District {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.district
}

// SetDistrict updates the session's district (mirrors the player object's
// district after a district-crossing move).
func (p *PlayerSession) SetDistrict(d worldgraph.District) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.district = d
}

// Position reports the session's last known position.
func (p *PlayerSession) Position() spatial.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetPosition updates the session's position and marks it dirty for the
// next self-state broadcast.
func (p *PlayerSession) SetPosition(pos spatial.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pos
	p.dirty = true
}

// Handle returns the player-visible unique character name.
func (p *PlayerSession) Handle() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

// TakeDirty reports and clears whether self-state has changed since the
// last check, per C7 step 2's "if changed since last tick" rule.
func (p *PlayerSession) TakeDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	was := p.dirty
	p.dirty = false
	return was
}
