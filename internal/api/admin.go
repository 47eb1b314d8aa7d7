package api

import (
	"net/http"
	"time"

	"github.com/mxocore/worldcore/internal/logging"
	"github.com/mxocore/worldcore/internal/middleware"
	"github.com/mxocore/worldcore/internal/sessionindex"
	"github.com/mxocore/worldcore/internal/worldgraph"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// AdminServer is the ops-facing HTTP surface: liveness, Prometheus metrics,
// and a read-only session/object-graph snapshot for debugging. It carries no
// gameplay traffic.
type AdminServer struct {
	router *gin.Engine
	http   *http.Server
	logger *logging.Logger

	index *sessionindex.Index
	graph *worldgraph.Graph

	startedAt time.Time
}

// NewAdminServer wires the router the same way rest_server.go does: no
// default gin middleware, explicit recovery/otel/prometheus, one dedicated
// metrics registration call.
func NewAdminServer(addr string, index *sessionindex.Index, graph *worldgraph.Graph) *AdminServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("admin_api"))

	promMw := middleware.NewPrometheusMiddleware("admin_api")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	s := &AdminServer{
		router:    router,
		logger:    logging.GetComponentLogger("admin"),
		index:     index,
		graph:     graph,
		startedAt: time.Now(),
	}
	s.http = &http.Server{Addr: addr, Handler: router}
	s.setupRoutes()
	return s
}

func (s *AdminServer) setupRoutes() {
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/debug/sessions", s.handleDebugSessions)
	s.router.GET("/debug/objects", s.handleDebugObjects)
}

func (s *AdminServer) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

type sessionSummary struct {
	CharacterID uint32 `json:"character_id"`
	Handle      string `json:"handle"`
	District    uint8  `json:"district"`
	Addr        string `json:"addr"`
}

// handleDebugSessions dumps a snapshot of every bound session; it never
// touches the object graph or session index locks for longer than the
// snapshot copy itself takes.
func (s *AdminServer) handleDebugSessions(c *gin.Context) {
	sessions := s.index.Snapshot()
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionSummary{
			CharacterID: sess.CharacterID(),
			Handle:      sess.Handle(),
			District:    uint8(sess.District()),
			Addr:        sess.Addr().String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(out),
		"sessions": out,
	})
}

type objectSummary struct {
	ID       uint32  `json:"id"`
	Type     uint8   `json:"type"`
	Name     string  `json:"name"`
	District uint8   `json:"district"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
}

// handleDebugObjects dumps a snapshot of every object in the world graph.
func (s *AdminServer) handleDebugObjects(c *gin.Context) {
	objects := s.graph.All()
	out := make([]objectSummary, 0, len(objects))
	for _, obj := range objects {
		out = append(out, objectSummary{
			ID:       obj.ID,
			Type:     uint8(obj.Type),
			Name:     obj.Name,
			District: uint8(obj.District),
			X:        obj.Position.X,
			Y:        obj.Position.Y,
			Z:        obj.Position.Z,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(out),
		"objects": out,
	})
}

// Start launches the HTTP listener in a background goroutine.
func (s *AdminServer) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin: server error: %v", err)
		}
	}()
	s.logger.Info("admin: listening on %s", s.http.Addr)
}

// Stop gracefully shuts the HTTP listener down.
func (s *AdminServer) Stop() error {
	return s.http.Close()
}
