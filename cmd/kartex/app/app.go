package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/kartexhq/kartex/pkg/alert"
	"github.com/kartexhq/kartex/pkg/api"
	"github.com/kartexhq/kartex/pkg/batch"
	"github.com/kartexhq/kartex/pkg/broadcast"
	"github.com/kartexhq/kartex/pkg/ingest/appudp"
	"github.com/kartexhq/kartex/pkg/ingest/gelf"
	"github.com/kartexhq/kartex/pkg/ingest/syslog"
	"github.com/kartexhq/kartex/pkg/kartexauth"
	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/metrics"
	"github.com/kartexhq/kartex/pkg/store"
)

// App is the root datastructure holding every component kartex supervises.
type App struct {
	cfg Config

	logger     log.Logger
	registerer prometheus.Registerer

	ctx    context.Context
	cancel context.CancelFunc

	store       store.Gateway
	tracker     *metrics.Tracker
	broadcaster *broadcast.Broadcaster
	auth        *kartexauth.Authenticator

	logBatcher  *batch.Batcher[kartexmodel.LogRecord]
	spanBatcher *batch.Batcher[kartexmodel.Span]

	appUDPServer   *appudp.Server
	gelfServer     *gelf.Server
	syslogUDP      *syslog.UDPServer
	syslogTCP      *syslog.TCPServer
	otlpGRPCServer *grpc.Server
	otlpHTTPServer *http.Server

	alertEngine *alert.Engine
	apiServer   *api.Server

	ModuleManager *modules.Manager
	serviceMap    map[string]services.Service
}

// New builds an App from cfg. It wires the module dependency graph but
// starts nothing; call Run to bring the process up.
func New(cfg Config, logger log.Logger, registerer prometheus.Registerer) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:        cfg,
		logger:     logger,
		registerer: registerer,
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := a.setupModuleManager(); err != nil {
		cancel()
		return nil, fmt.Errorf("setting up module manager: %w", err)
	}

	return a, nil
}

// Run initializes every module's service, starts them all, and blocks until
// an OS signal arrives or a service fails, mirroring the teacher's own
// service-manager-plus-signal-handler shutdown sequence.
func (a *App) Run() error {
	serviceMap, err := a.ModuleManager.InitModuleServices(All)
	if err != nil {
		a.cancel()
		return fmt.Errorf("failed to init module services: %w", err)
	}
	a.serviceMap = serviceMap

	var servs []services.Service
	for _, s := range serviceMap {
		servs = append(servs, s)
	}

	sm, err := services.NewManager(servs...)
	if err != nil {
		a.cancel()
		return fmt.Errorf("failed to build service manager: %w", err)
	}

	healthy := func() { level.Info(a.logger).Log("msg", "kartex started") }
	stopped := func() { level.Info(a.logger).Log("msg", "kartex stopped") }
	serviceFailed := func(service services.Service) {
		sm.StopAsync()
		for name, s := range serviceMap {
			if s != service {
				continue
			}
			cause := service.FailureCase()
			if errors.Is(cause, context.Canceled) {
				return
			}
			level.Error(a.logger).Log("msg", "module failed", "module", name, "err", cause)
			return
		}
		level.Error(a.logger).Log("msg", "module failed", "module", "unknown", "err", service.FailureCase())
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	handler := signals.NewHandler(a.logger)
	go func() {
		handler.Loop()
		sm.StopAsync()
	}()

	if err := sm.StartAsync(context.Background()); err != nil {
		a.cancel()
		return fmt.Errorf("failed to start service manager: %w", err)
	}

	err = sm.AwaitStopped(context.Background())
	a.cancel()
	return err
}
