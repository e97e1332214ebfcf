package diagnostics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/hostkit/errors"
	"github.com/kbukum/hostkit/logger"
)

// Config holds the listener settings.
type Config struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig listens on all interfaces on an ephemeral port.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server is the diagnostics HTTP server.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
}

// NewServer creates a server with the standard middleware and no routes.
func NewServer(cfg Config, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log = logger.OrGlobal(log)

	engine := gin.New()
	engine.Use(recovery(log), requestID(), requestLogger(log))

	mux := http.NewServeMux()
	mux.Handle("/", engine)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          cfg.IdleTimeout,
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:      h2c.NewHandler(mux, h2s),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		engine: engine,
		mux:    mux,
		config: cfg,
		log:    log,
	}
}

// Engine returns the gin engine for additional routes.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Handler returns the root handler, h2c included.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Handle mounts a plain http.Handler beside the gin routes.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("Handler mounted", logger.Fields("pattern", pattern))
}

// Start binds the listener and serves in the background. It returns once the
// port is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.InvalidState("start diagnostics server", "stopped")
	}
	if s.listener != nil {
		return nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("diagnostics server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Diagnostics server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("Diagnostics server started", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Stop shuts the server down gracefully. It is safe to call repeatedly.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.listener != nil
	s.mu.Unlock()

	if !started {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Diagnostics server shutdown error", logger.Fields(logger.FieldError, err.Error()))
		return fmt.Errorf("diagnostics server shutdown: %w", err)
	}
	s.log.Info("Diagnostics server stopped")
	return nil
}

// Dispose stops the server.
func (s *Server) Dispose(ctx context.Context) error { return s.Stop(ctx) }
