package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/bridges/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/discovery"
	"github.com/nerrad567/gray-logic-androidtv/internal/entry"
	"github.com/nerrad567/gray-logic-androidtv/internal/flow"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-androidtv/internal/player"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EntryStore is the subset of *entry.Registry the server uses.
type EntryStore interface {
	List() []*entry.Entry
	Get(id string) (*entry.Entry, error)
	Delete(ctx context.Context, id string) (*entry.Entry, error)
}

// Players is the subset of *androidtv.Bridge the server uses.
type Players interface {
	Player(id string) (*player.Player, error)
	State(id string) (player.State, error)
	States() []player.State
	Describe(id string) (androidtv.DiscoveredPlayer, error)
	Players() []androidtv.DiscoveredPlayer
	Dispatch(cmd androidtv.CommandMessage) androidtv.AckMessage
	ReloadEntry(id string) error
	RemoveEntry(id string) error
	SetStateListener(fn func(player.State))
	PlayerStats() androidtv.PlayerStatistics
	Statistics() androidtv.BridgeStatistics
}

// Discoverer finds devices on the LAN. *discovery.Scanner satisfies it.
type Discoverer interface {
	Enabled() bool
	Discover(ctx context.Context) ([]discovery.Device, error)
}

// Connectivity reports broker connectivity. *mqtt.Client satisfies it.
type Connectivity interface {
	IsConnected() bool
}

// TelemetryStatter reports telemetry counters. *influxdb.Client satisfies it.
type TelemetryStatter interface {
	Stats() influxdb.Stats
}

// DBStatter reports connection pool statistics. *database.DB satisfies it.
type DBStatter interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Entries  EntryStore
	Players  Players
	Flows    *flow.Manager

	// Optional.
	Discovery Discoverer
	MQTT      Connectivity
	DB        DBStatter
	Telemetry TelemetryStatter

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	entries   EntryStore
	players   Players
	flows     *flow.Manager
	discovery Discoverer
	mqtt      Connectivity
	db        DBStatter
	telemetry TelemetryStatter
	version   string
	startTime time.Time
	tickets   *ticketStore
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("entry store is required")
	}
	if deps.Players == nil {
		return nil, fmt.Errorf("players are required")
	}
	if deps.Flows == nil {
		return nil, fmt.Errorf("flow manager is required")
	}

	hub := NewHub(deps.WS, deps.Logger)
	hub.states = deps.Players.States

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger.Component("api"),
		entries:   deps.Entries,
		players:   deps.Players,
		flows:     deps.Flows,
		discovery: deps.Discovery,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		telemetry: deps.Telemetry,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
		hub:       hub,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays player state changes to WebSocket
// clients, and launches the HTTP listener in a background goroutine. The
// server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)
	go s.flows.CleanupLoop(srvCtx)

	s.players.SetStateListener(s.broadcastState)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if s.server == nil {
		return nil
	}

	s.players.SetStateListener(nil)
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

// HealthCheck verifies the API server is running and responsive.
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
