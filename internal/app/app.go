package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/email"
	natsadapter "github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/app/config"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/clock"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/tracer"
	grpcserver "github.com/Abdurahmanit/GroupProject/storefront-service/internal/port/grpc"
	httpserver "github.com/Abdurahmanit/GroupProject/storefront-service/internal/port/http"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/service"
)

const shutdownSlack = 5 * time.Second

type App struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.MetricsManager

	httpServer *httpserver.Server
	grpcServer *grpcserver.Server
	sessions   *service.SessionService
	alerts     service.AlertService
	catalog    httpserver.Catalog

	resources *resources
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	appLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info("Logger initialized")
	appLogger.Infof("Configuration loaded: Env=%s, HTTP Port: %s, GRPC Port: %s, Catalog: %s, Storage: %s",
		cfg.Env, cfg.HTTPServer.Port, cfg.GRPCServer.Port, cfg.Catalog.Source, cfg.Storage.Driver)

	res := &resources{log: appLogger}
	fail := func(err error) (*App, error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownSlack)
		defer cancel()
		res.close(shutdownCtx)
		return nil, err
	}

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize tracer: %w", err))
	}
	res.add("tracer", shutdownTracer)

	metricsManager := metrics.NewMetricsManager(cfg.ServiceName)
	appLogger.Info("Metrics registry initialized")

	stateStore, err := res.stateStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	appLogger.Infof("Client state store initialized (%s)", cfg.Storage.Driver)

	cat, err := res.catalog(ctx, cfg, metricsManager)
	if err != nil {
		return fail(err)
	}
	appLogger.Infof("Product catalog initialized (%s)", cfg.Catalog.Source)

	publisher := natsadapter.NewNoopPublisher()
	if cfg.NATS.URL != "" {
		appLogger.Info("Initializing NATS connection...")
		conn, err := natsadapter.NewConnection(cfg.NATS, appLogger)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to NATS: %w", err))
		}
		res.add("nats", func(context.Context) error { return conn.Drain() })
		publisher, err = natsadapter.NewNATSPublisher(conn)
		if err != nil {
			return fail(fmt.Errorf("failed to create NATS publisher: %w", err))
		}
		appLogger.Info("NATS publisher initialized")
	} else {
		appLogger.Warn("NATS URL not configured, domain events will not be published")
	}

	notifier := email.NewNoopSender(appLogger)
	if cfg.SMTP.Host != "" {
		notifier, err = email.NewSMTPSender(cfg.SMTP, appLogger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize SMTP sender: %w", err))
		}
		appLogger.Infof("SMTP sender initialized for %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	} else {
		appLogger.Warn("SMTP host not configured, price alert emails will only be logged")
	}

	clk := clock.NewRealClock()

	sessions := service.NewSessionService(stateStore, cat.favorites, publisher, appLogger.Named("sessions"), metricsManager, clk,
		service.SessionServiceConfig{
			IdleTTL:      cfg.Session.IdleTTL,
			WriteTimeout: cfg.Storage.WriteTimeout,
		})
	prices := service.NewPriceHistoryService(cat.history, rand.Float64, clk, appLogger.Named("prices"))
	alerts := service.NewAlertService(cat.alerts, notifier, publisher, appLogger.Named("alerts"), metricsManager, clk)

	handler := httpserver.NewHandler(
		cat.source,
		cat.catalog,
		sessions,
		prices,
		alerts,
		service.QueryCoordinatorConfig{
			Debounce:     cfg.Search.Debounce,
			FetchTimeout: cfg.Search.FetchTimeout,
		},
		appLogger.Named("http"),
		metricsManager,
	)
	router := httpserver.NewRouter(handler, httpserver.RouterConfig{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		MetricsHandler: metricsManager.Handler(),
	})
	if cfg.Auth.JWTSecret == "" {
		appLogger.Warn("JWT secret not configured, every request is served as a guest")
	}

	httpSrv := httpserver.NewServer(appLogger, httpserver.ServerConfig{
		Port:         cfg.HTTPServer.Port,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}, router)
	appLogger.Info("HTTP server instance created")

	grpcSrv := grpcserver.NewServer(
		appLogger,
		cfg.GRPCServer.Port,
		cfg.GRPCServer.TimeoutGraceful,
		cfg.GRPCServer.MaxConnectionIdle,
	)
	appLogger.Info("gRPC server instance created")

	return &App{
		cfg:        cfg,
		log:        appLogger,
		metrics:    metricsManager,
		httpServer: httpSrv,
		grpcServer: grpcSrv,
		sessions:   sessions,
		alerts:     alerts,
		catalog:    cat.catalog,
		resources:  res,
	}, nil
}

func (a *App) Run() {
	a.log.Info("Starting application components...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.httpServer.Start)
	g.Go(a.grpcServer.Start)
	g.Go(func() error { return a.sessions.Run(gctx, a.cfg.Session.SweepInterval) })
	g.Go(func() error { return a.runAlertEvaluation(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down application...")
		a.shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		a.log.Errorf("Application stopped with error: %v", err)
	} else {
		a.log.Info("Application shut down successfully")
	}
	_ = a.log.Sync()
}

func (a *App) shutdown() {
	grace := a.cfg.HTTPServer.TimeoutGraceful
	if a.cfg.GRPCServer.TimeoutGraceful > grace {
		grace = a.cfg.GRPCServer.TimeoutGraceful
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace+shutdownSlack)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Errorf("Error during HTTP server graceful shutdown: %v", err)
	}
	if err := a.grpcServer.Stop(shutdownCtx); err != nil {
		a.log.Errorf("Error during gRPC server graceful shutdown: %v", err)
	}

	a.log.Info("Flushing client sessions...")
	if err := a.sessions.Close(shutdownCtx); err != nil {
		a.log.Errorf("Error flushing sessions: %v", err)
	} else {
		a.log.Info("Client sessions flushed")
	}

	a.resources.close(shutdownCtx)
}

// runAlertEvaluation re-checks active price alerts against the catalog on every tick.
func (a *App) runAlertEvaluation(ctx context.Context) error {
	interval := a.cfg.Alerts.EvaluateInterval
	if interval <= 0 {
		a.log.Warn("Alert evaluation disabled")
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			products, err := a.catalog.ListAll(ctx)
			if err != nil {
				a.log.Errorf("Alert evaluation skipped, catalog unavailable: %v", err)
				continue
			}
			triggered, err := a.alerts.Evaluate(ctx, products)
			if err != nil {
				a.log.Errorf("Alert evaluation failed: %v", err)
				continue
			}
			if triggered > 0 {
				a.log.Infof("Alert evaluation triggered %d alerts", triggered)
			}
		}
	}
}
