package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/pizza-service/internal/audit"
	"github.com/nerrad567/pizza-service/internal/auth"
	"github.com/nerrad567/pizza-service/internal/infrastructure/config"
	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
	"github.com/nerrad567/pizza-service/internal/infrastructure/logging"
	"github.com/nerrad567/pizza-service/internal/pizza"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// OrderPublisher announces placed orders and menu changes to downstream
// consumers such as the kitchen. Failures are logged and never fail the
// request.
type OrderPublisher interface {
	PublishOrder(order *pizza.Order) error
	PublishMenu(items []pizza.MenuItem) error
}

// MetricsRecorder records business metrics. Calls must not block.
type MetricsRecorder interface {
	RecordOrder(order *pizza.Order)
	RecordAuthAttempt(outcome string)
}

// Auth attempt outcomes passed to MetricsRecorder.
const (
	AuthSuccess  = "success"
	AuthFailure  = "failure"
	AuthRegister = "register"
	AuthLogout   = "logout"
)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Repo     *pizza.Repository
	Sessions *auth.SessionStore
	Tokens   *auth.TokenIssuer
	Pool     *database.Pool
	Events   OrderPublisher   // optional
	Metrics  MetricsRecorder  // optional
	Audit    audit.Repository // optional
	Version  string
}

// Server is the HTTP API server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	repo     *pizza.Repository
	sessions *auth.SessionStore
	tokens   *auth.TokenIssuer
	pool     *database.Pool
	events   OrderPublisher
	metrics  MetricsRecorder
	version  string
	server   *http.Server

	auditRepo   audit.Repository
	auditCh     chan *audit.Entry
	auditCancel context.CancelFunc
	auditDone   chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if deps.Sessions == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("session store and token issuer are required")
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		repo:      deps.Repo,
		sessions:  deps.Sessions,
		tokens:    deps.Tokens,
		pool:      deps.Pool,
		events:    deps.Events,
		metrics:   deps.Metrics,
		version:   deps.Version,
		auditRepo: deps.Audit,
	}
	if deps.Audit != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	return s, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine,
// along with the audit writer when auditing is configured. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	if s.auditCh != nil {
		auditCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.auditCancel = cancel
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.drainAuditLog(auditCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
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

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests, then flushes pending audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	shutdownErr := s.server.Shutdown(ctx)

	// Handlers have returned, so nothing else is sent on auditCh.
	if s.auditCancel != nil {
		s.auditCancel()
		<-s.auditDone
		s.auditCancel = nil
	}

	if shutdownErr != nil {
		return fmt.Errorf("shutting down API server: %w", shutdownErr)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
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
