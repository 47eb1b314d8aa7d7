// Package sessionindex implements C8: the thread-safe maps from peer
// address, character handle, and character id to a bound player session,
// plus the A -> G ticket handoff.
package sessionindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/mxocore/worldcore/internal/eventbus"
	"github.com/mxocore/worldcore/internal/logging"
	"github.com/mxocore/worldcore/internal/playersession"
	"github.com/mxocore/worldcore/internal/ticket"
	"github.com/mxocore/worldcore/internal/worldgraph"
)

// TicketEventType is the eventbus subject A publishes minted tickets under
// for G to consume during handshake.
const TicketEventType = "AuthTicketIssued"

// ErrAlreadyLoggedIn is returned by Bind when the character id already has
// a live session (§4.8).
var ErrAlreadyLoggedIn = fmt.Errorf("sessionindex: already logged in")

// ErrDuplicateAddress is returned when a peer address is already bound to
// a different session than the one being registered.
var ErrDuplicateAddress = fmt.Errorf("sessionindex: duplicate peer address")

// ticketRecord is what A publishes on the ticket topic: the raw ticket plus
// its character and account ids. It has no separate session-key field.
type ticketRecord struct {
	Ticket      string `json:"ticket"`
	CharacterID uint32 `json:"character_id"`
	AccountID   uint32 `json:"account_id"`
}

// Index is the process-wide session directory. It also implements
// worldgraph.Directory so C5 can resolve interest sets without importing
// this package's concrete type.
type Index struct {
	mu        sync.RWMutex
	byAddr    map[string]*playersession.PlayerSession
	byHandle  map[string]*playersession.PlayerSession
	byCharID  map[uint32]*playersession.PlayerSession
	verifier  *ticket.Verifier
	logger    *logging.Logger
}

// New builds an empty index.
func New(verifier *ticket.Verifier) *Index {
	return &Index{
		byAddr:   make(map[string]*playersession.PlayerSession),
		byHandle: make(map[string]*playersession.PlayerSession),
		byCharID: make(map[uint32]*playersession.PlayerSession),
		verifier: verifier,
		logger:   logging.GetSessionIndexLogger(),
	}
}

// Bind registers sess under its peer address and, once it carries a
// character id, under the character-id and handle indices too. It rejects
// a second session for a character id that already has one, checking that
// before touching any map so a rejected session is left entirely unbound
// rather than half-registered under its address.
func (idx *Index) Bind(sess *playersession.PlayerSession) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	charID := sess.CharacterID()
	if charID != 0 {
		if existing, ok := idx.byCharID[charID]; ok && existing != sess {
			return ErrAlreadyLoggedIn
		}
	}

	addrKey := sess.Addr().String()
	if existing, ok := idx.byAddr[addrKey]; ok && existing != sess {
		return ErrDuplicateAddress
	}
	idx.byAddr[addrKey] = sess

	if charID == 0 {
		return nil
	}
	idx.byCharID[charID] = sess
	if handle := sess.Handle(); handle != "" {
		idx.byHandle[handle] = sess
	}
	return nil
}

// Unbind removes sess from every index, typically called on STATE_CLOSED.
func (idx *Index) Unbind(sess *playersession.PlayerSession) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.byAddr, sess.Addr().String())
	delete(idx.byCharID, sess.CharacterID())
	if handle := sess.Handle(); handle != "" {
		delete(idx.byHandle, handle)
	}
}

// ByAddr resolves a session by peer address, used to route ingress datagrams.
func (idx *Index) ByAddr(addr *net.UDPAddr) (*playersession.PlayerSession, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.byAddr[addr.String()]
	return s, ok
}

// ByHandle resolves a session by its player-visible handle.
func (idx *Index) ByHandle(handle string) (*playersession.PlayerSession, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.byHandle[handle]
	return s, ok
}

// ByCharacterID resolves a session by character id.
func (idx *Index) ByCharacterID(id uint32) (*playersession.PlayerSession, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.byCharID[id]
	return s, ok
}

// Count reports the number of bound sessions, for admin/metrics surfaces.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byAddr)
}

// SessionsInDistrict satisfies worldgraph.Directory.
func (idx *Index) SessionsInDistrict(d worldgraph.District) []worldgraph.Sender {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []worldgraph.Sender
	for _, s := range idx.byCharID {
		if s.District() == d {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot returns every bound session as its concrete type, for callers
// (the world tick's persistence sweep) that need more than worldgraph.Sender
// exposes.
func (idx *Index) Snapshot() []*playersession.PlayerSession {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*playersession.PlayerSession, 0, len(idx.byCharID))
	for _, s := range idx.byCharID {
		out = append(out, s)
	}
	return out
}

// AllSessions satisfies worldgraph.Directory.
func (idx *Index) AllSessions() []worldgraph.Sender {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]worldgraph.Sender, 0, len(idx.byCharID))
	for _, s := range idx.byCharID {
		out = append(out, s)
	}
	return out
}

// VerifyTicket checks a raw ticket string presented during handshake.
func (idx *Index) VerifyTicket(raw string) (*ticket.Claims, error) {
	return idx.verifier.Verify(raw)
}

// SubscribeTickets wires the A -> G handoff: A publishes minted tickets on
// bus, and this just keeps the eventbus subscription alive for observability;
// the actual verification happens synchronously off the JWT itself during
// handshake, so this subscription only logs issuance for audit purposes.
func (idx *Index) SubscribeTickets(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	return bus.Subscribe(ctx, eventbus.Filter{Types: []string{TicketEventType}}, func(ctx context.Context, ev *eventbus.Envelope) {
		var rec ticketRecord
		if err := json.Unmarshal(ev.Payload, &rec); err != nil {
			idx.logger.Warn("sessionindex: malformed ticket event: %v", err)
			return
		}
		idx.logger.Debug("sessionindex: ticket issued for character %d account %d", rec.CharacterID, rec.AccountID)
	})
}
