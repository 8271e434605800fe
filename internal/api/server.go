package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/entity"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/infrastructure/config"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
	"github.com/hearth-home/hearth/internal/integration"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Security     config.SecurityConfig
	Logger       *logging.Logger
	Entities     *entity.Registry
	Writer       *entity.Writer
	Entries      *configentry.Store
	Integrations *integration.Registry
	Manager      *integration.Manager
	Flows        *flow.Manager
	Version      string
}

// Server is the HTTP API server for the hub.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket
// hub that streams entity events. The server is created with New()
// and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	logger       *logging.Logger
	entities     *entity.Registry
	writer       *entity.Writer
	entries      *configentry.Store
	integrations *integration.Registry
	manager      *integration.Manager
	flows        *flow.Manager
	version      string

	server      *http.Server
	hub         *Hub
	tickets     *ticketStore
	unsubscribe func()             // detaches the entity event listener
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if deps.Writer == nil {
		return nil, fmt.Errorf("entity writer is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("config entry store is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("integration manager is required")
	}
	if deps.Flows == nil {
		return nil, fmt.Errorf("flow manager is required")
	}

	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		logger:       deps.Logger,
		entities:     deps.Entities,
		writer:       deps.Writer,
		entries:      deps.Entries,
		integrations: deps.Integrations,
		manager:      deps.Manager,
		flows:        deps.Flows,
		version:      deps.Version,
		tickets:      newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to the
// entity event stream for real-time broadcast, and launches the HTTP
// listener in a background goroutine. The server is stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Expired single-use WebSocket tickets are swept periodically.
	go s.tickets.cleanLoop(srvCtx)

	// Entity state and availability changes stream to subscribed
	// WebSocket clients.
	s.unsubscribe = s.writer.Subscribe(s.broadcastEntityEvent)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// broadcastEntityEvent relays an entity event to WebSocket clients.
func (s *Server) broadcastEntityEvent(ev entity.Event) {
	if s.hub == nil {
		return
	}

	channel := "entity.state_changed"
	if ev.Type == entity.EventAvailabilityChanged {
		channel = "entity.availability_changed"
	}
	s.hub.Broadcast(channel, ev.Entity)
}
