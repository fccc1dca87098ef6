package app

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
	"google.golang.org/grpc"

	"github.com/kartexhq/kartex/pkg/alert"
	"github.com/kartexhq/kartex/pkg/api"
	"github.com/kartexhq/kartex/pkg/batch"
	"github.com/kartexhq/kartex/pkg/broadcast"
	"github.com/kartexhq/kartex/pkg/ingest/appudp"
	"github.com/kartexhq/kartex/pkg/ingest/gelf"
	"github.com/kartexhq/kartex/pkg/ingest/otlp"
	"github.com/kartexhq/kartex/pkg/ingest/syslog"
	"github.com/kartexhq/kartex/pkg/kartexauth"
	"github.com/kartexhq/kartex/pkg/kartexmodel"
	"github.com/kartexhq/kartex/pkg/metrics"
	"github.com/kartexhq/kartex/pkg/notify"
	"github.com/kartexhq/kartex/pkg/store"
	"github.com/kartexhq/kartex/pkg/store/inmemstore"
	"github.com/kartexhq/kartex/pkg/store/mongostore"
)

// The modules that make up kartex. Unlike tempo's distributor/ingester/
// querier split, kartex runs every module in one process: the graph below
// exists to give each component a well-defined construction order and a
// services.Service lifecycle, not to support selecting a subset of targets.
const (
	Store     string = "store"
	Metrics   string = "metrics"
	Broadcast string = "broadcast"
	Auth      string = "auth"
	Batchers  string = "batchers"

	AppUDP     string = "appudp"
	GELF       string = "gelf"
	SyslogUDP  string = "syslog-udp"
	SyslogTCP  string = "syslog-tcp"
	OTLPGRPC   string = "otlp-grpc"
	OTLPHTTP   string = "otlp-http"
	AlertEngine string = "alert"
	API        string = "api"

	All string = "all"
)

func (a *App) initStore() (services.Service, error) {
	switch a.cfg.Store.Backend {
	case store.BackendMongo:
		s, err := mongostore.Connect(a.ctx, a.cfg.Store.Mongo.URI, a.cfg.Store.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo store: %w", err)
		}
		a.store = s
	default:
		a.store = inmemstore.New()
	}
	return services.NewIdleService(nil, nil), nil
}

func (a *App) initMetrics() (services.Service, error) {
	a.tracker = metrics.New(a.registerer)
	return services.NewIdleService(nil, nil), nil
}

func (a *App) initBroadcast() (services.Service, error) {
	a.broadcaster = broadcast.New(1000)
	return services.NewIdleService(nil, nil), nil
}

func (a *App) initAuth() (services.Service, error) {
	a.auth = kartexauth.New(a.cfg.Auth)
	return services.NewIdleService(nil, nil), nil
}

// initBatchers constructs both batchers synchronously against the app-wide
// context: dependent modules (the ingestion adapters) run their own init
// functions immediately afterwards in the same InitModuleServices pass and
// need a.logBatcher/a.spanBatcher populated by the time they run, well
// before any service's running phase begins.
func (a *App) initBatchers() (services.Service, error) {
	a.logBatcher = batch.New(a.ctx, a.cfg.LogBatch, a.flushLogs, a.logger)
	a.spanBatcher = batch.New(a.ctx, a.cfg.SpanBatch, a.flushSpans, a.logger)
	return services.NewIdleService(nil, nil), nil
}

func (a *App) flushLogs(ctx context.Context, logs []kartexmodel.LogRecord) error {
	_, err := a.store.InsertLogs(ctx, logs)
	return err
}

func (a *App) flushSpans(ctx context.Context, spans []kartexmodel.Span) error {
	_, err := a.store.InsertSpans(ctx, spans)
	return err
}

func (a *App) initAppUDP() (services.Service, error) {
	srv, err := appudp.Listen(a.cfg.AppUDP.ListenAddr, a.cfg.AppUDP.Secret, a.logBatcher, a.tracker, a.broadcaster, a.logger)
	if err != nil {
		return nil, fmt.Errorf("starting appudp listener: %w", err)
	}
	a.appUDPServer = srv
	return runningService(srv.Run), nil
}

func (a *App) initGELF() (services.Service, error) {
	srv, err := gelf.Listen(a.cfg.GELF.ListenAddr, a.logBatcher, a.tracker, a.broadcaster, a.logger)
	if err != nil {
		return nil, fmt.Errorf("starting gelf listener: %w", err)
	}
	a.gelfServer = srv
	return runningService(srv.Run), nil
}

func (a *App) initSyslogUDP() (services.Service, error) {
	srv, err := syslog.ListenUDP(a.cfg.Syslog.UDPListenAddr, a.cfg.Syslog.MaxMessageSize, a.logBatcher, a.tracker, a.broadcaster, a.logger)
	if err != nil {
		return nil, fmt.Errorf("starting syslog udp listener: %w", err)
	}
	a.syslogUDP = srv
	return runningService(srv.Run), nil
}

func (a *App) initSyslogTCP() (services.Service, error) {
	srv, err := syslog.ListenTCP(a.cfg.Syslog.TCPListenAddr, a.cfg.Syslog.MaxMessageSize, a.logBatcher, a.tracker, a.broadcaster, a.logger)
	if err != nil {
		return nil, fmt.Errorf("starting syslog tcp listener: %w", err)
	}
	a.syslogTCP = srv
	return runningService(srv.Run), nil
}

func (a *App) initOTLPGRPC() (services.Service, error) {
	lis, err := net.Listen("tcp", a.cfg.OTLP.GRPCListenAddr)
	if err != nil {
		return nil, fmt.Errorf("binding otlp grpc listener: %w", err)
	}

	svc := otlp.NewGRPCService(a.spanBatcher, a.logBatcher, a.tracker, a.broadcaster, a.logger)
	srv := grpc.NewServer()
	otlp.RegisterGRPCServer(srv, svc)
	a.otlpGRPCServer = srv

	running := func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(lis) }()
		select {
		case <-ctx.Done():
			srv.GracefulStop()
			return nil
		case err := <-errCh:
			return err
		}
	}
	return services.NewBasicService(nil, running, nil), nil
}

func (a *App) initOTLPHTTP() (services.Service, error) {
	handler := otlp.NewHTTPHandler(a.spanBatcher, a.logBatcher, a.tracker, a.broadcaster, a.logger)
	r := mux.NewRouter()
	handler.Register(r)

	srv := &http.Server{Addr: a.cfg.OTLP.HTTPListenAddr, Handler: r}
	a.otlpHTTPServer = srv

	running := func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			level.Info(a.logger).Log("msg", "otlp http listener starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
				return
			}
			errCh <- nil
		}()
		select {
		case <-ctx.Done():
			return srv.Close()
		case err := <-errCh:
			return err
		}
	}
	return services.NewBasicService(nil, running, nil), nil
}

func (a *App) initAlertEngine() (services.Service, error) {
	dispatch := notify.New(a.logger, 0)
	a.alertEngine = alert.New(a.cfg.Alert, a.store, a.store, a.tracker, dispatch, a.logger)

	running := func(ctx context.Context) error {
		a.alertEngine.Run(ctx)
		return nil
	}
	return services.NewBasicService(nil, running, nil), nil
}

func (a *App) initAPI() (services.Service, error) {
	deps := api.Dependencies{
		Store:       a.store,
		Tracker:     a.tracker,
		Broadcaster: a.broadcaster,
		Auth:        a.auth,
		Logger:      a.logger,
	}
	a.apiServer = api.NewServer(a.cfg.API, deps)

	running := func(ctx context.Context) error {
		go api.RunMetricsBroadcaster(ctx, a.broadcaster, a.tracker, a.cfg.API.MetricsBroadcastTick)
		return a.apiServer.Run(ctx)
	}
	return services.NewBasicService(nil, running, nil), nil
}

// runningService adapts a Run(ctx) error method into a services.Service
// whose running phase is that call directly, mirroring how tempo wraps its
// own long-running module loops (see server_service.go's NewServerService).
func runningService(run func(context.Context) error) services.Service {
	return services.NewBasicService(nil, run, nil)
}

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(a.logger)

	mm.RegisterModule(Store, a.initStore)
	mm.RegisterModule(Metrics, a.initMetrics)
	mm.RegisterModule(Broadcast, a.initBroadcast)
	mm.RegisterModule(Auth, a.initAuth)
	mm.RegisterModule(Batchers, a.initBatchers)
	mm.RegisterModule(AppUDP, a.initAppUDP)
	mm.RegisterModule(GELF, a.initGELF)
	mm.RegisterModule(SyslogUDP, a.initSyslogUDP)
	mm.RegisterModule(SyslogTCP, a.initSyslogTCP)
	mm.RegisterModule(OTLPGRPC, a.initOTLPGRPC)
	mm.RegisterModule(OTLPHTTP, a.initOTLPHTTP)
	mm.RegisterModule(AlertEngine, a.initAlertEngine)
	mm.RegisterModule(API, a.initAPI)
	mm.RegisterModule(All, nil, modules.UserInvisibleModule)

	deps := map[string][]string{
		Batchers:    {Store},
		AppUDP:      {Batchers, Metrics, Broadcast},
		GELF:        {Batchers, Metrics, Broadcast},
		SyslogUDP:   {Batchers, Metrics, Broadcast},
		SyslogTCP:   {Batchers, Metrics, Broadcast},
		OTLPGRPC:    {Batchers, Metrics, Broadcast},
		OTLPHTTP:    {Batchers, Metrics, Broadcast},
		AlertEngine: {Store, Metrics},
		API:         {Store, Metrics, Broadcast, Auth},
		All:         {AppUDP, GELF, SyslogUDP, SyslogTCP, OTLPGRPC, OTLPHTTP, AlertEngine, API},
	}

	for mod, ds := range deps {
		if err := mm.AddDependency(mod, ds...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm
	return nil
}
