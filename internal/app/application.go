// Package app assembles the server from configuration and owns its
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"campus/internal/api"
	"campus/internal/callroom"
	"campus/internal/classroom"
	"campus/internal/config"
	"campus/internal/database"
	"campus/internal/hub"
	"campus/internal/ice"
	"campus/internal/metrics"
	"campus/internal/presence"
	"campus/internal/router"
	"campus/internal/websocket"
	pkgdatabase "campus/pkg/database"
	"campus/pkg/interfaces"
)

// Application holds every component. Construction order follows
// dependencies: metrics, audit store, state components, router, hub,
// transport, API.
type Application struct {
	config     *config.Config
	log        zerolog.Logger
	metrics    *metrics.Metrics
	auditStore *database.Manager
	registry   *websocket.Registry
	hub        *hub.Hub
	httpServer *http.Server

	listener net.Listener
	serveErr chan error
}

func NewApplication(cfg *config.Config, log zerolog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	iceServers, err := ice.Servers(cfg.WebRTC.ICEServers)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var (
		auditStore *database.Manager
		audit      interfaces.AuditStore
	)
	if cfg.Audit.Enabled {
		dbConfig := pkgdatabase.DefaultConfig()
		dbConfig.DatabasePath = cfg.Audit.Path

		opts := database.DefaultOptions()
		opts.BufferSize = cfg.Audit.BufferSize
		opts.Timeout = cfg.Audit.Timeout

		auditStore, err = database.NewManager(dbConfig, opts, m, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit store: %w", err)
		}
		audit = auditStore
	}

	presences := presence.NewRegistry(log)
	classrooms := classroom.NewManager(audit, log)
	calls := callroom.NewRelay(log)
	registry := websocket.NewRegistry()

	eventRouter := router.NewRouter(presences, classrooms, calls, router.NewRateLimiter(cfg.WebSocket.RateLimit), log)
	eventHub := hub.NewHub(hub.Deps{
		Registry:   registry,
		Router:     eventRouter,
		Presence:   presences,
		Classrooms: classrooms,
		Calls:      calls,
		Metrics:    m,
		Log:        log,
	})

	wsHandler := websocket.NewHandler(registry, eventHub, websocket.Options{
		PingInterval:    cfg.WebSocket.PingInterval,
		PongWait:        cfg.WebSocket.ReadTimeout,
		WriteWait:       cfg.WebSocket.WriteTimeout,
		BufferSize:      cfg.WebSocket.BufferSize,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
	}, m, log)

	apiOpts := api.Options{
		StaticDir:  cfg.HTTP.StaticDir,
		ICEServers: iceServers,
		Log:        log,
	}
	if m != nil {
		apiOpts.Metrics = m.Handler()
		apiOpts.MetricsPath = cfg.Metrics.Path
	}
	apiServer := api.NewServer(eventHub, audit, registry, apiOpts)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.Handle("/", apiServer)

	return &Application{
		config:     cfg,
		log:        log.With().Str("component", "app").Logger(),
		metrics:    m,
		auditStore: auditStore,
		registry:   registry,
		hub:        eventHub,
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port)),
			Handler:      mux,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
		serveErr: make(chan error, 1),
	}, nil
}

// Start runs the hub, then binds the listener and serves in the
// background. It returns once the port is bound.
func (app *Application) Start(ctx context.Context) error {
	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.hub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = ln

	go func() {
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.serveErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	app.log.Info().Str("addr", ln.Addr().String()).Msg("campus server started")
	return nil
}

// ServeErrors reports a listener failure after Start.
func (app *Application) ServeErrors() <-chan error {
	return app.serveErr
}

// Stop shuts down in reverse order: HTTP, live sockets, hub, audit store.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info().Msg("shutting down")
	var errs []error

	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	// Hijacked websocket connections survive Shutdown.
	app.registry.CloseAll()

	if err := app.hub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}

	if app.auditStore != nil {
		if err := app.auditStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audit shutdown: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		app.log.Error().Err(err).Msg("shutdown finished with errors")
	} else {
		app.log.Info().Msg("shutdown complete")
	}
	return err
}

// Addr is the bound address once started, else the configured one.
func (app *Application) Addr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}
