package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gatekeeper/internal/activity"
	"github.com/nerrad567/gatekeeper/internal/audit"
	"github.com/nerrad567/gatekeeper/internal/auth"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/config"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultRealm is used when the configuration leaves api.realm empty.
const defaultRealm = "gatekeeper"

// Authenticator checks one set of Basic credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*auth.Identity, error)
}

// HealthChecker is a dependency reported by /api/v1/health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Auth     config.AuthConfig
	Metrics  config.MetricsConfig
	Logger   *logging.Logger
	Verifier Authenticator
	Accounts auth.AccountStore

	// Audit serves GET /api/v1/audit. Optional.
	Audit audit.Repository

	// Recorder receives login and admin events. Optional.
	Recorder *activity.Recorder

	// MetricsHandler is mounted at Metrics.Path when metrics are enabled.
	MetricsHandler http.Handler

	// Health lists named dependencies checked by the health endpoint.
	Health map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for Gatekeeper.
// It is created with New() and started with Start().
type Server struct {
	cfg            config.APIConfig
	authCfg        config.AuthConfig
	metricsCfg     config.MetricsConfig
	logger         *logging.Logger
	verifier       Authenticator
	accounts       auth.AccountStore
	auditRepo      audit.Repository
	recorder       *activity.Recorder
	metricsHandler http.Handler
	health         map[string]HealthChecker
	version        string
	startTime      time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}

	s := &Server{
		cfg:            deps.Config,
		authCfg:        deps.Auth,
		metricsCfg:     deps.Metrics,
		logger:         deps.Logger,
		verifier:       deps.Verifier,
		accounts:       deps.Accounts,
		auditRepo:      deps.Audit,
		recorder:       deps.Recorder,
		metricsHandler: deps.MetricsHandler,
		health:         deps.Health,
		version:        deps.Version,
		startTime:      time.Now(),
	}
	if s.cfg.Realm == "" {
		s.cfg.Realm = defaultRealm
	}

	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
// Bind errors (port in use, bad address) are returned directly.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln

	s.server = &http.Server{
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
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
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
