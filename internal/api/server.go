package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-galaxie/internal/device"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/coordinator"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/model"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Source is the polling coordinator as seen by the API.
// *coordinator.Coordinator satisfies it.
type Source interface {
	Snapshot() *model.Snapshot
	Refresh()
	Stats() []coordinator.FeedStats
	StreamConnected() bool
	Subscribe(fn coordinator.Subscriber) (unsubscribe func())
}

// MQTTClient is the subset of the MQTT client used to relay entity state.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Source   Source
	MQTT     MQTTClient // optional
	Version  string
}

// Server is the HTTP API server of the Galaxie bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	registry  *device.Registry
	source    Source
	mqtt      MQTTClient
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub

	mu          sync.Mutex
	cancel      context.CancelFunc // cancels background goroutines on Close()
	unsubscribe func()             // detaches from the coordinator
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger, Registry and Source are required
//
// Returns:
//   - *Server: Server with its hub created
//   - error: If a required dependency is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		registry:  deps.Registry,
		source:    deps.Source,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, attaches to coordinator snapshots and MQTT
// state topics for event broadcast, and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	unsubscribe := s.source.Subscribe(s.broadcastSnapshot)

	if err := s.subscribeStateUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to state updates for WebSocket", "error", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.cancel = cancel
	s.unsubscribe = unsubscribe
	s.server = server
	s.mu.Unlock()

	go func() {
		s.logger.Info("API server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	server, cancel, unsubscribe := s.server, s.cancel, s.unsubscribe
	s.server, s.cancel, s.unsubscribe = nil, nil, nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	if unsubscribe != nil {
		unsubscribe()
	}
	if s.mqtt != nil && s.mqtt.IsConnected() {
		if err := s.mqtt.Unsubscribe(stateTopicPattern); err != nil {
			s.logger.Debug("failed to unsubscribe from state updates", "error", err)
		}
	}
	// Cancel background goroutines (hub)
	if cancel != nil {
		cancel()
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelShutdown()

	s.logger.Info("API server shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
