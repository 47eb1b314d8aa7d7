// Command server is the composition root for the world/transport core: it
// wires C1-C9 together, starts the UDP transport and admin HTTP surface,
// and drives graceful shutdown on SIGINT/SIGTERM (§5).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mxocore/worldcore/internal/api"
	"github.com/mxocore/worldcore/internal/codec"
	"github.com/mxocore/worldcore/internal/config"
	"github.com/mxocore/worldcore/internal/eventbus"
	"github.com/mxocore/worldcore/internal/logging"
	"github.com/mxocore/worldcore/internal/observability"
	"github.com/mxocore/worldcore/internal/playersession"
	"github.com/mxocore/worldcore/internal/sessionindex"
	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/store"
	"github.com/mxocore/worldcore/internal/ticket"
	"github.com/mxocore/worldcore/internal/transport"
	"github.com/mxocore/worldcore/internal/worldgraph"
	"github.com/mxocore/worldcore/internal/worldtick"
)

// shutdownDeadline bounds how long the world tick gets to let every
// session reach CLOSED before the process tears down anyway (§5).
const shutdownDeadline = 10 * time.Second

func main() {
	logger := logging.GetServerLogger()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("server: load config: %v", err)
	}

	shutdownTelemetry, err := observability.InitTelemetry(context.Background(), "mmo-world-core")
	if err != nil {
		logger.Warn("server: tracing disabled: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer shutdownTelemetry(context.Background())

	bus := newEventBus(cfg.EventBus, logger)

	backing, err := store.New(store.Config{
		MySQLDSN: cfg.Store.MySQLDSN,
		Mongo:    store.MongoConfig{URI: cfg.Store.MongoURI, Database: cfg.Store.MongoDB},
		Redis: store.RedisConfig{
			Addr: cfg.Store.RedisAddr, Password: cfg.Store.RedisPass,
			DB: cfg.Store.RedisDB, KeyPrefix: "char:", TTL: cfg.Store.RedisTTL,
		},
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		log.Fatalf("server: connect store: %v", err)
	}
	defer backing.Close()

	graph := worldgraph.New()
	verifier := ticket.NewVerifier([]byte(cfg.EventBus.TicketSecret))
	index := sessionindex.New(verifier)
	graph.SetDirectory(index)

	ticketSub, err := index.SubscribeTickets(context.Background(), bus)
	if err != nil {
		logger.Warn("server: ticket subscription unavailable: %v", err)
	} else {
		defer ticketSub.Unsubscribe()
	}

	dispatcher := playersession.NewDispatcher()
	registerCommandHandlers(dispatcher, graph, cfg.World)

	metrics := worldtick.NewMetrics()
	tick := worldtick.New(graph, index, dispatcher, backing, metrics, worldtick.Config{
		Interval:         time.Duration(cfg.World.TickMs) * time.Millisecond,
		SnapshotInterval: time.Duration(cfg.World.SnapshotSeconds) * time.Second,
	})

	transportMetrics := transport.NewMetrics()
	transportLogger := logging.GetTransportLogger()
	server, err := transport.NewServer(cfg.Transport.ListenAddr, tick, transportMetrics, transportLogger, transport.ServerConfig{
		AckCoalesce:  time.Duration(cfg.Transport.AckCoalesceMs) * time.Millisecond,
		PingInterval: cfg.Transport.PingInterval,
	})
	if err != nil {
		log.Fatalf("server: bind transport listener on %s: %v", cfg.Transport.ListenAddr, err)
	}
	tick.SetServer(server)

	admin := api.NewAdminServer(cfg.Admin.ListenAddr, index, graph)

	tickCtx, cancelTick := context.WithCancel(context.Background())
	go tick.Run(tickCtx)

	server.Start()
	admin.Start()

	logger.Info("server: world core listening on %s, admin on %s", cfg.Transport.ListenAddr, cfg.Admin.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("server: received %v, shutting down", sig)

	shutdown(server, admin, cancelTick, index, logger)
}

// shutdown implements §5's stop sequence: refuse new sessions (Stop closes
// the socket first), give the tick loop a bounded window to let every
// session reach CLOSED, then drain C9's write queue via backing.Close
// (called by the caller's defer) and join every thread.
func shutdown(server *transport.Server, admin *api.AdminServer, cancelTick context.CancelFunc, index *sessionindex.Index, logger *logging.Logger) {
	server.Stop()

	deadline := time.Now().Add(shutdownDeadline)
	for index.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if n := index.Count(); n > 0 {
		logger.Warn("server: shutdown deadline reached with %d sessions still bound", n)
	}

	cancelTick()
	if err := admin.Stop(); err != nil {
		logger.Warn("server: admin server shutdown error: %v", err)
	}
	logger.Info("server: shutdown complete")
}

// newEventBus connects to NATS JetStream for the A/M boundary, falling
// back to the in-memory bus (single-process runs, tests) if the URL is
// unset or unreachable.
func newEventBus(cfg config.EventBusConfig, logger *logging.Logger) eventbus.EventBus {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(1024)
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.RetentionHours)*time.Hour)
	if err != nil {
		logger.Warn("server: NATS unavailable (%v), falling back to in-memory bus", err)
		return eventbus.NewMemoryBus(1024)
	}
	return bus
}

// registerCommandHandlers binds the byte-keyed PLAYER_COMMAND table (§6):
// world-loading progression, spawn, chat, movement, and jackout. Short-keyed
// commands (ability use, trade, group) are registered the same way once
// those systems exist; they are out of this core's scope (Non-goals).
// READY_FOR_WORLD_CHANGE (mid-session world transfer) and the content-query
// commands (background text, static/dynamic object detail, player detail
// sheets) are left unregistered rather than answered with fabricated data
// or a state transition this core's forward-only chain doesn't model.
func registerCommandHandlers(d *playersession.Dispatcher, graph *worldgraph.Graph, world config.WorldConfig) {
	spawn := spatial.Position{X: world.StartX, Y: world.StartY, Z: world.StartZ}
	district := worldgraph.District(world.StartDistrict)
	tickMs := world.TickMs

	// CONNECTED -> (ready-for-spawn command) -> WORLD_LOADING (spec.md
	// §4.5): advance state, create the player's graph object, then send
	// the one WORLD_INIT block the client waits on before REGION_LOADED.
	d.RegisterByte(playersession.CmdReadyForSpawn, func(p *playersession.PlayerSession, body []byte) error {
		if p.PlayerObjectID() != 0 {
			return nil
		}
		if err := p.Advance(); err != nil {
			return err
		}

		obj := graph.Create(worldgraph.TypePlayer, spawn, district, p.Handle())
		p.SetPlayerObject(obj.ID)
		p.SetDistrict(district)
		p.SetPosition(spawn)

		init := worldgraph.EncodeWorldInit(spawn, district, tickMs)
		return p.Send(transport.MsgWorldInit, []transport.Block{{Type: transport.MsgWorldInit, Data: init}}, true)
	})
	d.RegisterByte(playersession.CmdRegionLoaded, func(p *playersession.PlayerSession, body []byte) error {
		if p.State() == playersession.StateWorldLoading {
			return p.Advance()
		}
		return nil
	})
	d.RegisterByte(playersession.CmdChat, func(p *playersession.PlayerSession, body []byte) error {
		return dispatchChat(p, graph, playersession.ChatSay, body)
	})
	d.RegisterByte(playersession.CmdWhisper, func(p *playersession.PlayerSession, body []byte) error {
		return dispatchChat(p, graph, playersession.ChatWhisper, body)
	})
	d.RegisterByte(playersession.CmdHardlineTeleport, func(p *playersession.PlayerSession, body []byte) error {
		return handleHardlineTeleport(p, graph, body)
	})
	d.RegisterByte(playersession.CmdJackoutRequest, func(p *playersession.PlayerSession, body []byte) error {
		p.ScheduleJackout(time.Now())
		return nil
	})
}

// handleHardlineTeleport decodes HARDLINE_TELEPORT's target district and
// position, relocates the player's graph object, and syncs the session's
// own copy of that state before broadcasting the move (§3 Position/District
// fields).
func handleHardlineTeleport(p *playersession.PlayerSession, graph *worldgraph.Graph, body []byte) error {
	b := codec.Wrap(body)
	districtByte, err := b.ReadUint8()
	if err != nil {
		return fmt.Errorf("hardline teleport: %w", err)
	}
	x, err := b.ReadFloat64()
	if err != nil {
		return fmt.Errorf("hardline teleport: %w", err)
	}
	y, err := b.ReadFloat64()
	if err != nil {
		return fmt.Errorf("hardline teleport: %w", err)
	}
	z, err := b.ReadFloat64()
	if err != nil {
		return fmt.Errorf("hardline teleport: %w", err)
	}
	o, err := b.ReadFloat64()
	if err != nil {
		return fmt.Errorf("hardline teleport: %w", err)
	}

	objID := p.PlayerObjectID()
	if objID == 0 {
		return nil
	}

	district := worldgraph.District(districtByte)
	pos := spatial.Position{X: x, Y: y, Z: z, O: o}

	if !graph.Move(objID, pos, district) {
		return nil
	}
	p.SetPosition(pos)
	p.SetDistrict(district)

	payload := worldgraph.EncodeUpdate(objID, worldgraph.EncodePositionDelta(pos))
	graph.BroadcastDistrict(district, transport.MsgObjectUpdate, payload, 0)
	return nil
}

// dispatchChat routes a chat command body to the delivery scope its type
// implies (§6 Chat types; see internal/playersession/chat.go).
func dispatchChat(p *playersession.PlayerSession, graph *worldgraph.Graph, t playersession.ChatType, body []byte) error {
	route := playersession.RouteFor(t)
	payload := worldgraph.EncodeUpdate(p.PlayerObjectID(), body)
	switch {
	case route.Global:
		graph.BroadcastAll(transport.MsgSystem, payload, 0)
	case route.District:
		graph.BroadcastDistrict(p.District(), transport.MsgSystem, payload, 0)
	default:
		// Named routes (whisper/group/faction) resolve a specific
		// recipient set; left to the messaging layer above this core.
	}
	return nil
}
