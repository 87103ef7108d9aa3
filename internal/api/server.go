// Package api provides the HTTP REST API and the admin WebSocket event
// stream for demo-security.
//
// It exposes the credential lifecycle (login, renew, logout, register,
// validate), the caller's profile, and account administration endpoints.
// Every request passes through the authentication gate, which attaches the
// caller's identity when a valid bearer token is presented.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ngocmanh2004/demo-security/internal/audit"
	"github.com/ngocmanh2004/demo-security/internal/auth"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/config"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/database"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Service *auth.Service
	Gate    *auth.PathMatcher // public path patterns; nil means every path is protected
	Audit   audit.Repository  // optional: /admin/audit returns 503 without it
	DB      *database.DB      // optional: health and metrics report on it when set
	Hub     *Hub              // optional: created internally when nil
	Version string
}

// Server is the HTTP API server for demo-security.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	service   *auth.Service
	gate      *auth.PathMatcher
	auditRepo audit.Repository
	db        *database.DB
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	tickets   *ticketStore
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("auth service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		service:   deps.Service,
		gate:      deps.Gate,
		auditRepo: deps.Audit,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.Hub,
		tickets:   newTicketStore(ticketTTL),
	}

	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Hub returns the event stream hub. It implements auth.EventSink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wired router, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, then launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

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

	// Cancel background goroutines (hub, ticket cleanup)
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
