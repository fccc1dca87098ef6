package api

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Config controls the HTTP listener serving the REST/WebSocket surface.
type Config struct {
	ListenAddr           string        `yaml:"listen_addr"`
	MetricsBroadcastTick time.Duration `yaml:"metrics_broadcast_interval"`
}

// RegisterFlagsAndApplyDefaults wires flags under prefix.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.ListenAddr, prefix+"listen-addr", ":8080", "Address the REST/WebSocket API listens on.")
	f.DurationVar(&c.MetricsBroadcastTick, prefix+"metrics-broadcast-interval", 5*time.Second, "How often a Metrics message is published to WebSocket subscribers.")
}

// Server wraps an http.Server serving the router built by NewRouter.
type Server struct {
	httpServer *http.Server
	logger     log.Logger
}

// NewServer builds a Server bound to cfg.ListenAddr serving deps' routes.
func NewServer(cfg Config, deps Dependencies) *Server {
	return &Server{
		httpServer: &http.Server{Addr: cfg.ListenAddr, Handler: NewRouter(deps)},
		logger:     deps.Logger,
	}
}

// Run serves until ctx is cancelled, then gracefully shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "api server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
