package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Flopsa/digital-doc/common/logger"
	"github.com/Flopsa/digital-doc/common/telemetry"
	"github.com/Flopsa/digital-doc/internal/association"
	"github.com/Flopsa/digital-doc/internal/auth"
	"github.com/Flopsa/digital-doc/internal/changefeed"
	"github.com/Flopsa/digital-doc/internal/config"
	"github.com/Flopsa/digital-doc/internal/db"
	"github.com/Flopsa/digital-doc/internal/doctor"
	"github.com/Flopsa/digital-doc/internal/health"
	"github.com/Flopsa/digital-doc/internal/kafka"
	"github.com/Flopsa/digital-doc/internal/messaging"
	"github.com/Flopsa/digital-doc/internal/metrics"
	"github.com/Flopsa/digital-doc/internal/middleware"
	"github.com/Flopsa/digital-doc/internal/patient"
	"github.com/Flopsa/digital-doc/internal/search"
	"github.com/Flopsa/digital-doc/internal/unitofwork"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const indexerQueue = "search-indexer"

type App struct {
	config    *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Telemetry

	db    *bun.DB
	uow   *unitofwork.UnitOfWork
	index search.Index
	mongo *search.MongoIndex
	nats  *nats.Conn
	kafka *kafka.Producer

	patients    *patient.SearchSource
	authService *auth.Service

	router       chi.Router
	server       *http.Server
	grpcServer   *grpc.Server
	healthServer *grpchealth.Server
}

// New loads configuration from the environment and builds the application.
func New(ctx context.Context) (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "git_commit", GitCommit, "build_time", BuildTime)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env, "indexing", cfg.Search.Indexing)

	return Build(ctx, cfg, slogLogger)
}

// Build wires every component from cfg. On error, whatever was opened is closed again.
func Build(ctx context.Context, cfg *config.Config, slogLogger *slog.Logger) (_ *App, err error) {
	app := &App{
		config: cfg,
		logger: slogLogger,
		router: chi.NewRouter(),
	}
	defer func() {
		if err != nil {
			app.close(context.Background())
		}
	}()

	app.telemetry, err = telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ExportInterval: time.Duration(cfg.Telemetry.ExportIntervalSeconds) * time.Second,
	}, ServiceName, Version, cfg.Env, slogLogger)
	if err != nil {
		return nil, err
	}
	infra := app.telemetry.Metrics
	meter := otel.Meter(ServiceName)

	domain, err := metrics.New(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize domain metrics: %w", err)
	}

	if err := db.RunMigrations(cfg.Database.DSN()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	app.db, err = db.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := infra.Database.RegisterDB(app.db.DB, meter); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}

	app.uow = unitofwork.New(app.db, slogLogger, infra)

	if err := app.initSearch(ctx); err != nil {
		return nil, err
	}

	if cfg.NATS.URL != "" {
		app.nats, err = messaging.Connect(cfg.NATS.URL, ServiceName, slogLogger)
		if err != nil {
			if cfg.Search.Indexing == config.IndexingAsync {
				return nil, fmt.Errorf("failed to connect to NATS: %w", err)
			}
			slogLogger.Warn("failed to connect to NATS, change feed and reset notifications disabled", "error", err)
			app.nats, err = nil, nil
		}
	}

	switch cfg.Search.Indexing {
	case config.IndexingAsync:
		producer := messaging.NewProducer(app.nats, cfg.NATS.Subject, slogLogger, infra)
		app.uow.Register(changefeed.NewPublisher(producer, slogLogger))
		slogLogger.Info("search index maintained by change feed", "subject", cfg.NATS.Subject)

		if len(cfg.Kafka.Brokers) > 0 {
			app.kafka, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, slogLogger, infra)
			if err != nil {
				slogLogger.Warn("failed to initialize kafka producer", "error", err)
				app.kafka, err = nil, nil
			} else {
				app.uow.Register(changefeed.NewPublisher(app.kafka, slogLogger))
			}
		}
	default:
		app.uow.Register(search.NewIndexer(app.index, slogLogger))
		slogLogger.Info("search index maintained in process")
	}

	var notifier auth.ResetNotifier
	if app.nats != nil {
		notifier = auth.NewPublishingNotifier(messaging.NewProducer(app.nats, cfg.NATS.ResetSubject, slogLogger, infra))
	}

	doctorRepo := doctor.NewRepository(app.uow, infra)
	patientRepo := patient.NewRepository(app.uow, infra)
	associationRepo := association.NewRepository(app.uow, infra)
	authRepo := auth.NewRepository(app.db, infra)
	app.patients = patient.NewSearchSource(patientRepo)

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	app.authService = auth.NewService(authRepo, doctorRepo, tokens, notifier, auth.Options{
		RefreshTTL: cfg.Auth.RefreshTokenTTL(),
		ResetTTL:   cfg.Auth.ResetTokenTTL(),
	}, slogLogger, domain)

	app.router.Use(chimw.RequestID)
	app.router.Use(chimw.Recoverer)
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints (no auth required)
	healthHandler := health.NewHandler(slogLogger, infra)
	healthHandler.AddCheck("postgres", app.db.PingContext)
	healthHandler.AddCheck("search", app.index.Ping)
	if app.nats != nil {
		nc := app.nats
		healthHandler.AddCheck("nats", func(context.Context) error { return messaging.HealthCheck(nc) })
	}
	if err := infra.Health.RegisterDependencies(meter, healthHandler.Dependencies()); err != nil {
		slogLogger.Warn("failed to register dependency metrics", "error", err)
	}
	healthHandler.RegisterRoutes(app.router)

	authHandler := auth.NewHandler(app.authService, auth.CookiePolicy{Env: cfg.Env}, slogLogger)
	authHandler.RegisterRoutes(app.router)

	doctorHandler := doctor.NewHandler(doctor.NewService(doctorRepo), slogLogger)
	patientHandler := patient.NewHandler(patient.NewService(patientRepo, app.index), slogLogger, domain)
	associationHandler := association.NewHandler(
		association.NewManager(associationRepo, doctorRepo, patientRepo, domain),
		slogLogger,
	)

	// Protected routes under /api
	app.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(tokens, slogLogger))
		authHandler.RegisterProtectedRoutes(r)
		doctorHandler.RegisterRoutes(r)
		patientHandler.RegisterRoutes(r)
		associationHandler.RegisterRoutes(r)
	})

	// gRPC health service
	app.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	app.healthServer = grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(app.grpcServer, app.healthServer)
	app.healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	app.healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	slogLogger.Info("application initialized successfully")

	return app, nil
}

func (a *App) initSearch(ctx context.Context) error {
	cfg := a.config.Search
	if cfg.MongoURI == "" {
		a.logger.Warn("search backend not configured, patient search returns no results")
		a.index = search.Disabled{}
		return nil
	}

	mongoIndex, err := search.Connect(ctx, cfg.MongoURI, cfg.Database, a.logger, a.telemetry.Metrics)
	if err != nil {
		return err
	}
	a.mongo = mongoIndex
	a.index = mongoIndex

	return mongoIndex.EnsureTextIndex(ctx, patient.TableName, patient.IndexedFields)
}

// Handler exposes the HTTP router.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves HTTP and gRPC until one of them fails or Shutdown is called.
func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", a.config.Grpc.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}

	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("gRPC server starting", "port", a.config.Grpc.Port)
		errCh <- a.grpcServer.Serve(lis)
	}()

	go func() {
		a.logger.Info("server starting", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	return <-errCh
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.healthServer.Shutdown()

	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.grpcServer.GracefulStop()

	a.close(ctx)
	return err
}

// Close releases connections without starting servers; used by one-shot commands.
func (a *App) Close(ctx context.Context) {
	a.close(ctx)
}

func (a *App) close(ctx context.Context) {
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			a.logger.Error("NATS drain error", "error", err)
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error("kafka producer close error", "error", err)
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			a.logger.Error("search index close error", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("database close error", "error", err)
		}
	}
	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		a.logger.Error("telemetry shutdown error", "error", err)
	}
}

// Reindex rebuilds the patients index from Postgres.
func (a *App) Reindex(ctx context.Context) (int, error) {
	if a.mongo != nil {
		if err := a.mongo.DropTable(ctx, patient.TableName); err != nil {
			return 0, fmt.Errorf("failed to drop patients index: %w", err)
		}
		if err := a.mongo.EnsureTextIndex(ctx, patient.TableName, patient.IndexedFields); err != nil {
			return 0, err
		}
	}

	n, err := search.Reindex(ctx, a.index, a.patients)
	if err != nil {
		return n, err
	}
	a.logger.InfoContext(ctx, "reindex finished", "table", patient.TableName, "documents", n)
	return n, nil
}

// Change feed sources accepted by RunIndexer.
const (
	FeedNATS  = "nats"
	FeedKafka = "kafka"
)

// RunIndexer consumes the change feed from source and applies it to the index until ctx is
// cancelled.
func (a *App) RunIndexer(ctx context.Context, source string) error {
	applier := changefeed.NewApplier(a.index, a.logger, a.patients)

	var (
		consumer interface {
			Start(ctx context.Context) error
			Close() error
		}
		err error
	)
	switch source {
	case FeedNATS:
		if a.nats == nil {
			return errors.New("indexer requires nats.url")
		}
		consumer = messaging.NewConsumer(a.nats, a.config.NATS.Subject, indexerQueue, applier.Handle, a.logger, a.telemetry.Metrics)
	case FeedKafka:
		if len(a.config.Kafka.Brokers) == 0 {
			return errors.New("indexer requires kafka.brokers")
		}
		consumer, err = kafka.NewConsumer(a.config.Kafka.Brokers, a.config.Kafka.Topic, indexerQueue, applier.Handle, a.logger, a.telemetry.Metrics)
		if err != nil {
			return fmt.Errorf("failed to create kafka consumer: %w", err)
		}
	default:
		return fmt.Errorf("unknown change feed source %q", source)
	}

	defer func() {
		if err := consumer.Close(); err != nil {
			a.logger.Error("change feed consumer close error", "source", source, "error", err)
		}
	}()

	a.logger.InfoContext(ctx, "indexer started", "source", source)
	err = consumer.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// PurgeExpiredTokens deletes refresh tokens that can no longer be used.
func (a *App) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return a.authService.PurgeExpiredTokens(ctx)
}
