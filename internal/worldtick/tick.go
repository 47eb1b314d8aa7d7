// Package worldtick implements C7: the fixed-cadence single-threaded loop
// that drives session servicing, object-graph housekeeping, outbound
// emission and periodic persistence (§4.7). Grounded on the
// WorldManager.Run ticker/goroutine split in internal/world/world.go.
package worldtick

import (
	"context"
	"encoding/base64"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mxocore/worldcore/internal/cryptoenv"
	"github.com/mxocore/worldcore/internal/logging"
	"github.com/mxocore/worldcore/internal/playersession"
	"github.com/mxocore/worldcore/internal/sessionindex"
	"github.com/mxocore/worldcore/internal/store"
	"github.com/mxocore/worldcore/internal/transport"
	"github.com/mxocore/worldcore/internal/worldgraph"
	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultInterval is tick_ms's default value (§4.7).
const DefaultInterval = 50 * time.Millisecond

// DefaultSnapshotInterval is how often (in wall time) step 6 persists
// session positions, "every N ticks (default every 60s)".
const DefaultSnapshotInterval = 60 * time.Second

// ingressBudget bounds how many queued frames step 1 drains in one tick,
// so a burst of datagrams cannot make a single tick unboundedly long.
const ingressBudget = 512

// ingressQueueSize is the channel depth between C4's receive thread and
// this tick loop's step 1, matching §5's "lock-free queue" description.
const ingressQueueSize = 4096

// highLoadCPUPercent is the process CPU threshold gopsutil sampling uses,
// alongside a tick's own elapsed time, to decide a tick is over budget.
const highLoadCPUPercent = 90.0

// cpuSampleInterval throttles how often the host CPU sample is refreshed;
// sampling every tick would itself be a meaningful cost at tick_ms=50ms.
const cpuSampleInterval = 5 * time.Second

type ingressItem struct {
	addr *net.UDPAddr
	d    transport.Delivered
}

// Config parameterizes a WorldTick's cadence and budgets.
type Config struct {
	Interval         time.Duration
	SnapshotInterval time.Duration
}

// WorldTick owns the object graph, session index and dispatch table for
// one world, and drives them through the six-step tick described in
// §4.7. It implements transport.Handler so C4's receive thread can hand
// it frames directly.
type WorldTick struct {
	graph      *worldgraph.Graph
	index      *sessionindex.Index
	dispatcher *playersession.Dispatcher
	backing    store.Store
	logger     *logging.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	server *transport.Server

	interval         time.Duration
	snapshotInterval time.Duration
	ticksPerSnapshot uint64

	ingress chan ingressItem

	despawnMu sync.Mutex
	despawns  []uint32

	proc         *process.Process
	lastCPUCheck time.Time
	lastCPUPct   float64

	tickCount uint64
}

// New builds a world tick loop over an already-wired graph/index/dispatcher.
func New(graph *worldgraph.Graph, index *sessionindex.Index, dispatcher *playersession.Dispatcher, backing store.Store, metrics *Metrics, cfg Config) *WorldTick {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	snapshotInterval := cfg.SnapshotInterval
	if snapshotInterval <= 0 {
		snapshotInterval = DefaultSnapshotInterval
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	ticksPerSnapshot := uint64(snapshotInterval / interval)
	if ticksPerSnapshot == 0 {
		ticksPerSnapshot = 1
	}

	return &WorldTick{
		graph:            graph,
		index:            index,
		dispatcher:       dispatcher,
		backing:          backing,
		logger:           logging.GetWorldTickLogger(),
		metrics:          metrics,
		tracer:           otel.Tracer("worldtick"),
		interval:         interval,
		snapshotInterval: snapshotInterval,
		ticksPerSnapshot: ticksPerSnapshot,
		ingress:          make(chan ingressItem, ingressQueueSize),
		proc:             proc,
	}
}

// SetServer wires the transport server this tick loop rides on top of, so
// step 1 can resolve the underlying transport.Session for a handshake
// (which by definition arrives before any playersession is bound). Call
// this once, after transport.NewServer and before Run.
func (w *WorldTick) SetServer(s *transport.Server) {
	w.server = s
}

// OnFrame satisfies transport.Handler. It never blocks: a full queue means
// the tick loop is falling behind, and the frame is dropped rather than
// stalling C4's receive thread (§5 "queue consumed by C7").
func (w *WorldTick) OnFrame(addr *net.UDPAddr, d transport.Delivered) {
	select {
	case w.ingress <- ingressItem{addr: addr, d: d}:
	default:
		if w.metrics != nil {
			w.metrics.IngressDropped.Inc()
		}
		w.logger.Warn("worldtick: ingress queue full, dropping frame from %s", addr)
	}
}

// OnSessionLost satisfies transport.Handler: C4 has given up on the peer
// (timeout or retransmit exhaustion), so tear the session down here too.
func (w *WorldTick) OnSessionLost(addr *net.UDPAddr) {
	sess, ok := w.index.ByAddr(addr)
	if !ok {
		return
	}
	sess.ForceDisconnect()
	sess.Close()
	w.index.Unbind(sess)
	if id := sess.PlayerObjectID(); id != 0 {
		w.QueueDespawn(id)
	}
}

// QueueDespawn defers an object destroy to step 3 of the current or next
// tick, per §4.7 step 3 "despawns queued during step 2".
func (w *WorldTick) QueueDespawn(objectID uint32) {
	w.despawnMu.Lock()
	w.despawns = append(w.despawns, objectID)
	w.despawnMu.Unlock()
}

// Run drives the tick loop until ctx is canceled.
func (w *WorldTick) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.step(ctx, now)
		}
	}
}

// step runs the six ordered phases of one world tick (§4.7).
func (w *WorldTick) step(ctx context.Context, now time.Time) {
	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "worldtick.step")
	defer span.End()

	w.tickCount++

	w.stepDrainIngress(ctx)
	w.stepServiceSessions(ctx, now)
	w.stepGraphHousekeeping(ctx)
	// Ack coalescing and retransmit/timeout checks (§4.7 steps 4-5) run on
	// C4's own housekeeping loop against the same Session objects this tick
	// reads and writes; nothing here needs to duplicate that scan.

	elapsed := time.Since(start)
	if w.metrics != nil {
		w.metrics.TickDuration.Observe(elapsed.Seconds())
	}
	overBudget := elapsed > w.interval
	if overBudget {
		if w.metrics != nil {
			w.metrics.TicksOverBudget.Inc()
		}
		w.logger.Warn("worldtick: tick %d took %s, over budget %s", w.tickCount, elapsed, w.interval)
	}

	w.stepMaybeSnapshot(ctx, now, overBudget)
}

// stepDrainIngress is step 1: drain queued datagrams up to a per-tick
// budget, dispatching PLAYER_COMMAND blocks against the sender's session.
func (w *WorldTick) stepDrainIngress(ctx context.Context) {
	_, span := w.tracer.Start(ctx, "worldtick.ingress")
	defer span.End()

	for i := 0; i < ingressBudget; i++ {
		select {
		case item := <-w.ingress:
			w.handleDelivered(item.addr, item.d)
		default:
			return
		}
	}
}

func (w *WorldTick) handleDelivered(addr *net.UDPAddr, d transport.Delivered) {
	sess, ok := w.index.ByAddr(addr)
	if !ok {
		if d.MsgType == transport.MsgHandshake {
			w.handleHandshake(addr, d)
		}
		return
	}
	if d.MsgType != transport.MsgPlayerCommand {
		return
	}
	for _, blk := range d.Blocks {
		if err := w.dispatcher.DispatchRaw(sess, blk.Data); err != nil {
			if w.metrics != nil {
				w.metrics.CommandErrors.Inc()
			}
			w.logger.Debug("worldtick: command from %s dropped: %v", addr, err)
			continue
		}
		if w.metrics != nil {
			w.metrics.CommandsDispatched.Inc()
		}
	}
}

// handleHandshake completes the INITIAL->HANDSHAKE->CONNECTED transition
// (§4.5): it verifies the ticket A minted for this character, binds the
// session's identity and symmetric key, registers it in the index, and
// acks. Any failure here is a silent drop, never a teardown of a session
// that was never bound in the first place.
func (w *WorldTick) handleHandshake(addr *net.UDPAddr, d transport.Delivered) {
	if w.server == nil || len(d.Blocks) == 0 {
		return
	}

	claims, err := w.index.VerifyTicket(string(d.Blocks[0].Data))
	if err != nil {
		w.logger.Warn("worldtick: handshake from %s rejected: %v", addr, err)
		return
	}

	rawKey, err := base64.StdEncoding.DecodeString(claims.SessionKey)
	if err != nil || len(rawKey) != cryptoenv.SessionKeySize {
		w.logger.Warn("worldtick: handshake from %s carries a malformed session key", addr)
		return
	}
	var key [cryptoenv.SessionKeySize]byte
	copy(key[:], rawKey)

	tSess := w.server.SessionFor(addr)
	p := playersession.New(tSess)
	if err := p.Bind(claims.CharacterID, claims.AccountID, ""); err != nil {
		w.logger.Warn("worldtick: handshake from %s failed to bind: %v", addr, err)
		return
	}
	if err := w.index.Bind(p); err != nil {
		w.logger.Warn("worldtick: handshake from %s rejected: %v", addr, err)
		return
	}

	tSess.EnableEncryption(key)
	if err := p.Advance(); err != nil {
		w.logger.Warn("worldtick: handshake from %s failed to advance to CONNECTED: %v", addr, err)
		return
	}

	if err := p.Send(transport.MsgHandshakeAck, []transport.Block{{Type: transport.MsgHandshakeAck}}, true); err != nil {
		w.logger.Warn("worldtick: failed to ack handshake for %s: %v", addr, err)
	}
}

// stepServiceSessions is step 2: service timed events, then emit a
// PLAYER_STATE delta for any session whose visible state changed.
func (w *WorldTick) stepServiceSessions(ctx context.Context, now time.Time) {
	_, span := w.tracer.Start(ctx, "worldtick.sessions")
	defer span.End()

	for _, sess := range w.index.Snapshot() {
		sess.ServiceEvents(now)

		if !sess.TakeDirty() {
			continue
		}
		id := sess.PlayerObjectID()
		if id == 0 {
			continue
		}
		payload := worldgraph.EncodeUpdate(id, encodeSelfState(sess))
		_ = sess.Send(transport.MsgPlayerState, []transport.Block{{Type: transport.MsgPlayerState, Data: payload}}, true)
	}
}

// encodeSelfState builds the position-delta payload broadcast for a dirty
// session; richer self-state fields compose onto this the same way.
func encodeSelfState(sess *playersession.PlayerSession) []byte {
	pos := sess.Position()
	return worldgraph.EncodePositionDelta(pos)
}

// stepGraphHousekeeping is step 3: apply despawns queued during step 2
// (or by OnSessionLost between ticks).
func (w *WorldTick) stepGraphHousekeeping(ctx context.Context) {
	_, span := w.tracer.Start(ctx, "worldtick.housekeeping")
	defer span.End()

	w.despawnMu.Lock()
	pending := w.despawns
	w.despawns = nil
	w.despawnMu.Unlock()

	for _, id := range pending {
		w.graph.Destroy(id)
	}
}

// stepMaybeSnapshot is step 6: every snapshotInterval, persist via C9 the
// position of every session bound to a character. Sessions are not
// filtered by whether they changed. It is the one step an over-budget tick may skip
// (§4.7 "over-budget ticks ... skip non-critical steps (step 6 only)").
func (w *WorldTick) stepMaybeSnapshot(ctx context.Context, now time.Time, overBudget bool) {
	if w.tickCount%w.ticksPerSnapshot != 0 {
		return
	}
	if overBudget {
		if w.metrics != nil {
			w.metrics.SnapshotsSkipped.Inc()
		}
		w.logger.Warn("worldtick: skipping persistence snapshot, tick %d over budget", w.tickCount)
		return
	}
	if w.hostOverloaded(now) {
		if w.metrics != nil {
			w.metrics.SnapshotsSkipped.Inc()
		}
		w.logger.Warn("worldtick: skipping persistence snapshot, process CPU over %.0f%%", highLoadCPUPercent)
		return
	}

	_, span := w.tracer.Start(ctx, "worldtick.snapshot")
	defer span.End()

	for _, sess := range w.index.Snapshot() {
		id := sess.CharacterID()
		if id == 0 {
			continue
		}
		pos := sess.Position()
		w.backing.SavePosition(id, pos, sess.District())
	}
}

// hostOverloaded reports whether the process's sampled CPU usage exceeds
// highLoadCPUPercent, refreshing the sample at most every cpuSampleInterval.
func (w *WorldTick) hostOverloaded(now time.Time) bool {
	if w.proc == nil {
		return false
	}
	if now.Sub(w.lastCPUCheck) < cpuSampleInterval {
		return w.lastCPUPct > highLoadCPUPercent
	}
	pct, err := w.proc.CPUPercent()
	if err != nil {
		return false
	}
	w.lastCPUCheck = now
	w.lastCPUPct = pct
	return pct > highLoadCPUPercent
}
