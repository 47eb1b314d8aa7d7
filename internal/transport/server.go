package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/mxocore/worldcore/internal/logging"
)

// housekeepInterval is how often the server scans every session for due
// retransmits, standalone acks, keepalive pings, and stale fragment sets.
// It runs finer than the default ack_coalesce_ms so the coalesce window
// itself, not this loop's own cadence, bounds standalone-ack latency.
const housekeepInterval = 10 * time.Millisecond

// defaultAckCoalesce and defaultPingInterval back ServerConfig fields left
// at their zero value, matching config.Defaults().
const (
	defaultAckCoalesce  = 20 * time.Millisecond
	defaultPingInterval = PingInterval
)

// ServerConfig carries the per-peer timing knobs every Session under this
// Server is housekept against (§4.4).
type ServerConfig struct {
	// AckCoalesce bounds how long an inbound reliable frame may go without
	// a standalone ack when nothing else piggybacks one.
	AckCoalesce time.Duration
	// PingInterval is the keepalive cadence; every session is pinged at
	// this interval whether or not it carries other traffic.
	PingInterval time.Duration
}

// Handler receives frames as they clear ordering, dedup, and decryption
// for a given peer. Implementations live in the session/world layer above
// this package; the transport itself has no notion of game semantics.
type Handler interface {
	OnFrame(addr *net.UDPAddr, d Delivered)
	OnSessionLost(addr *net.UDPAddr)
}

// Server multiplexes a single UDP socket across every connected peer,
// maintaining one Session per remote address (§4.4). It mirrors the
// receive-loop/housekeeping-loop split used elsewhere in this codebase for
// UDP-facing components.
type Server struct {
	conn    *net.UDPConn
	handler Handler
	metrics *Metrics
	logger  *logging.Logger

	ackCoalesce  time.Duration
	pingInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds a UDP socket at address and prepares (without starting)
// the session table. A zero cfg falls back to this package's defaults.
func NewServer(address string, handler Handler, metrics *Metrics, logger *logging.Logger, cfg ServerConfig) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	if cfg.AckCoalesce <= 0 {
		cfg.AckCoalesce = defaultAckCoalesce
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		conn:         conn,
		handler:      handler,
		metrics:      metrics,
		logger:       logger,
		ackCoalesce:  cfg.AckCoalesce,
		pingInterval: cfg.PingInterval,
		sessions:     make(map[string]*Session),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches the receive and housekeeping loops.
func (s *Server) Start() {
	s.wg.Add(2)
	go s.receiveLoop()
	go s.housekeepLoop()
}

// Stop tears down every session and closes the socket.
func (s *Server) Stop() {
	s.cancel()
	s.conn.Close()
	s.wg.Wait()
}

// LocalAddr reports the bound socket address.
func (s *Server) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// SessionFor returns the session for addr, creating one if this is the
// first datagram seen from that peer.
func (s *Server) SessionFor(addr *net.UDPAddr) *Session {
	key := addr.String()

	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[key]; ok {
		return sess
	}
	sess = NewSession(addr, func(payload []byte) error {
		_, err := s.conn.WriteToUDP(payload, addr)
		return err
	}, s.metrics)
	s.sessions[key] = sess
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
	return sess
}

// dropSession removes a session and notifies the handler.
func (s *Server) dropSession(addr *net.UDPAddr) {
	key := addr.String()
	s.mu.Lock()
	sess, ok := s.sessions[key]
	if ok {
		delete(s.sessions, key)
		if s.metrics != nil {
			s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
		}
	}
	s.mu.Unlock()
	if ok {
		sess.Close()
		s.handler.OnSessionLost(addr)
	}
}

func (s *Server) receiveLoop() {
	defer s.wg.Done()
	buf := make([]byte, 65535)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.ctx.Done():
				return
			default:
				if s.logger != nil {
					s.logger.Warn("transport: read error: %v", err)
				}
				continue
			}
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])

		sess := s.SessionFor(addr)
		delivered, err := sess.HandleInbound(raw, time.Now())
		if err != nil {
			if s.logger != nil {
				s.logger.Debug("transport: dropped malformed datagram from %s: %v", addr, err)
			}
			continue
		}
		for _, d := range delivered {
			s.handler.OnFrame(addr, d)
		}
	}
}

func (s *Server) housekeepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(housekeepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.RLock()
			snapshot := make(map[string]*Session, len(s.sessions))
			for k, v := range s.sessions {
				snapshot[k] = v
			}
			s.mu.RUnlock()

			for _, sess := range snapshot {
				sess.ExpireFragments(now)
				if sess.Retransmit(now) || sess.TimedOut(now) {
					s.dropSession(sess.Addr)
					continue
				}
				if err := sess.MaybeSendAck(now, s.ackCoalesce); err != nil && s.logger != nil {
					s.logger.Debug("transport: standalone ack to %s: %v", sess.Addr, err)
				}
				if err := sess.MaybeSendPing(now, s.pingInterval); err != nil && s.logger != nil {
					s.logger.Debug("transport: keepalive ping to %s: %v", sess.Addr, err)
				}
			}
		}
	}
}
