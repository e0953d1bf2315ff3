// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package studio assembles the AQAL Studio HTTP service.
//
// The service coordinates:
//   - a BadgerDB-backed key-value store with TTL expiry and size eviction
//   - the demo-user session service and its websocket event stream
//   - the rule-based insight engine, optionally hot-reloading its
//     knowledge base from disk
//   - analytics, error tracking and health checks
//   - Prometheus metrics and OpenTelemetry tracing
//
// # Usage
//
//	svc, err := studio.New(ctx, studio.Config{Port: 12310, DataDir: "./data"}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//	if err := svc.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Passing extensions.ServiceOptions replaces the session service as the
// token validator and the in-memory audit logger.
package studio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/pkg/extensions"
	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/insight_engine"
	aqalbadger "github.com/topherchris420/aqal/services/storage/badger"
	"github.com/topherchris420/aqal/services/storage/kvstore"
	"github.com/topherchris420/aqal/services/studio/auth"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/handlers"
	"github.com/topherchris420/aqal/services/studio/middleware"
	"github.com/topherchris420/aqal/services/studio/monitoring"
	"github.com/topherchris420/aqal/services/studio/observability"
	"github.com/topherchris420/aqal/services/studio/packs"
	"github.com/topherchris420/aqal/services/studio/progress"
	"github.com/topherchris420/aqal/services/studio/routes"
	"github.com/topherchris420/aqal/services/studio/ttl"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName identifies the service in traces and logs.
const ServiceName = "aqal-studio"

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the studio's lifecycle.
//
// # Thread Safety
//
// Run should be called once. Router may be used concurrently with Run.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the server fails, then
	// shuts down gracefully.
	Run(ctx context.Context) error

	// Router returns the configured gin engine, for tests.
	Router() *gin.Engine

	// Close releases the store, background workers and tracer.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds studio configuration. Every field is optional.
//
// # Examples
//
//	// In-memory store, defaults for everything else
//	cfg := Config{}
//
//	// Persistent store with an OTLP collector and InfluxDB analytics
//	cfg := Config{
//	    DataDir:      "/var/lib/aqal",
//	    OTelEndpoint: "otel-collector:4317",
//	    Influx:       monitoring.InfluxConfig{URL: "http://influx:8086", Org: "aqal", Bucket: "studio"},
//	}
type Config struct {
	// Port is the HTTP port. Default: 12310
	Port int

	// Environment is reported by /health and selects memory thresholds.
	// Default: "development"
	Environment string

	Version   string
	BuildID   string
	BuildTime string

	// GinMode is "debug", "release" or "test". Default: gin's own.
	GinMode string

	// DataDir holds the Badger files. Empty keeps everything in memory.
	DataDir string

	// StoreMaxSize bounds the key-value store in bytes. Default: 50 MiB
	StoreMaxSize int64

	// StoreDefaultTTL applies to user data. Default: 7 days
	StoreDefaultTTL time.Duration

	// SessionTTL is the sign-in lifetime. Default: 24 hours
	SessionTTL time.Duration

	// DemoPassword is shared by the demo accounts. Default: "demo123"
	DemoPassword string

	// SweepInterval is how often expired entries are removed.
	// Default: 1 hour
	SweepInterval time.Duration

	// SweepLogPath enables the hash-chained sweep audit log.
	SweepLogPath string

	// KnowledgeBasePath replaces the embedded knowledge base and is
	// reloaded when the file changes.
	KnowledgeBasePath string

	// Influx forwards analytics events when URL is set.
	Influx monitoring.InfluxConfig

	// OTelEndpoint sends traces to an OTLP/gRPC collector.
	OTelEndpoint string

	// TraceStdout prints spans to stdout when no endpoint is set.
	TraceStdout bool

	// SignInRate and SignInBurst limit sign-in attempts per client IP.
	// Defaults: 1 per second, burst 5
	SignInRate  float64
	SignInBurst int

	// Logger defaults to a JSON logger on stderr.
	Logger *logging.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = ttl.DefaultInterval
	}
	if cfg.SignInRate <= 0 {
		cfg.SignInRate = 1
	}
	if cfg.SignInBurst <= 0 {
		cfg.SignInBurst = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(logging.Config{Service: ServiceName, JSON: true, Level: logging.LevelInfo})
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config Config
	opts   extensions.ServiceOptions
	logger *logging.Logger

	db         *aqalbadger.DB
	store      *kvstore.Store
	auth       *auth.Service
	catalog    *catalog.Catalog
	engine     *insight_engine.Engine
	metrics    *observability.Metrics
	errTracker *monitoring.ErrorTracker
	analytics  *monitoring.Analytics
	health     *monitoring.HealthChecker
	scheduler  *ttl.Scheduler
	sweepLog   *ttl.SweepLog
	watcher    *insight_engine.KnowledgeWatcher
	sink       monitoring.Sink
	router     *gin.Engine

	tracerCleanup func(context.Context)
}

// New builds the service. opts may be nil.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Store, catalog, knowledge base or tracer setup failure. All
//     resources opened so far are released.
func New(ctx context.Context, cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	cfg = applyConfigDefaults(cfg)
	s := &service{config: cfg, logger: cfg.Logger}
	if opts != nil {
		s.opts = *opts
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	steps := []func(context.Context) error{
		s.initTracer,
		s.initSink,
		s.initStore,
		s.initDomain,
		s.initMonitoring,
		s.initScheduler,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	s.initRouter()
	return s, nil
}

// initTracer sets up OpenTelemetry tracing.
//
// # Description
//
// With OTelEndpoint set, spans go to the collector over insecure gRPC.
// With TraceStdout, they are printed. Otherwise no provider is installed
// and otelgin records nothing.
func (s *service) initTracer(ctx context.Context) error {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch {
	case s.config.OTelEndpoint != "":
		conn, cerr := grpc.NewClient(s.config.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if cerr != nil {
			return fmt.Errorf("failed to create gRPC connection: %w", cerr)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	case s.config.TraceStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(s.config.Version),
			semconv.DeploymentEnvironmentKey.String(s.config.Environment),
		))
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter))

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	s.tracerCleanup = func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}
	return nil
}

// initSink connects the optional InfluxDB analytics sink and routes
// warnings and errors to it. It must run before any component copies
// s.logger.
func (s *service) initSink(ctx context.Context) error {
	if s.config.Influx.URL == "" {
		return nil
	}
	sink, err := monitoring.NewInfluxSink(s.config.Influx)
	if err != nil {
		return err
	}
	s.sink = sink
	s.logger = s.logger.WithExporter(monitoring.NewSinkExporter(sink, logging.LevelWarn))
	s.logger.Info("analytics sink enabled", "url", s.config.Influx.URL, "bucket", s.config.Influx.Bucket)
	return nil
}

func (s *service) initStore(ctx context.Context) error {
	s.metrics = observability.New()

	dbCfg := aqalbadger.InMemoryConfig()
	if s.config.DataDir != "" {
		dbCfg = aqalbadger.DefaultConfig()
		dbCfg.Path = filepath.Join(s.config.DataDir, "badger")
	}
	dbCfg.Logger = s.logger.Module(logging.ModuleStorage).Slog()

	db, err := aqalbadger.OpenDB(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to open badger: %w", err)
	}
	s.db = db

	store, err := kvstore.Open(ctx, db, kvstore.Config{
		DefaultTTL: s.config.StoreDefaultTTL,
		MaxSize:    s.config.StoreMaxSize,
		Clock:      s.config.Clock,
		Logger:     s.logger,
		Metrics:    s.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.store = store
	s.logger.Info("key-value store ready", "in_memory", db.InMemory(), "path", db.Path())
	return nil
}

func (s *service) initDomain(ctx context.Context) error {
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	s.catalog = cat

	engine, err := insight_engine.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	engine.SetClock(s.config.Clock)
	s.engine = engine

	if s.config.KnowledgeBasePath != "" {
		w, err := insight_engine.NewKnowledgeWatcher(s.config.KnowledgeBasePath, engine, s.logger)
		if err != nil {
			return err
		}
		s.watcher = w
	}

	if s.opts.AuditLogger == nil {
		s.opts.AuditLogger = extensions.NewMemoryAuditLogger(1000, s.logger.Module(logging.ModuleSecurity).Slog())
	}
	s.auth = auth.NewService(s.store, auth.Config{
		SessionTTL:   s.config.SessionTTL,
		DemoPassword: s.config.DemoPassword,
		Clock:        s.config.Clock,
		Logger:       s.logger,
		Audit:        s.opts.AuditLogger,
		Metrics:      s.metrics,
	})
	if s.opts.AuthProvider == nil {
		s.opts.AuthProvider = s.auth
	}
	return nil
}

func (s *service) initMonitoring(ctx context.Context) error {
	s.errTracker = monitoring.NewErrorTracker(monitoring.ErrorTrackerConfig{
		Environment: s.config.Environment,
		Clock:       s.config.Clock,
		Logger:      s.logger,
	})

	s.analytics = monitoring.NewAnalytics(s.errTracker, monitoring.AnalyticsConfig{
		Sink:   s.sink,
		Clock:  s.config.Clock,
		Logger: s.logger,
	})

	s.health = monitoring.NewHealthChecker(monitoring.HealthConfig{
		Version:     s.config.Version,
		Environment: s.config.Environment,
		BuildID:     s.config.BuildID,
		BuildTime:   s.config.BuildTime,
		DataDir:     s.config.DataDir,
		Components: func() map[string]bool {
			return map[string]bool{
				"insights": s.engine != nil,
				"catalog":  s.catalog != nil,
				"auth":     s.auth != nil,
			}
		},
		Clock:     s.config.Clock,
		Logger:    s.logger,
		Tracker:   s.errTracker,
		Analytics: s.analytics,
	})
	s.health.Register("storage", true, func(ctx context.Context) (bool, error) {
		if err := s.db.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	})
	s.health.Register("sessions", false, func(ctx context.Context) (bool, error) {
		_, err := s.auth.ActiveSessions(ctx)
		return err == nil, err
	})
	if s.sink != nil {
		s.health.Register("analytics_sink", false, func(ctx context.Context) (bool, error) {
			return s.sink.Ping(ctx) == nil, nil
		})
	}
	return nil
}

func (s *service) initScheduler(ctx context.Context) error {
	if s.config.SweepLogPath != "" {
		l, err := ttl.OpenSweepLog(s.config.SweepLogPath)
		if err != nil {
			return err
		}
		s.sweepLog = l
	}
	s.scheduler = ttl.NewScheduler(s.store, ttl.Config{
		Interval: s.config.SweepInterval,
		Sessions: s.auth,
		Metrics:  s.metrics,
		Log:      s.sweepLog,
		Logger:   s.logger,
		Clock:    s.config.Clock,
	})
	return nil
}

// initRouter creates the gin engine, applies middleware and registers
// every route.
func (s *service) initRouter() {
	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		otelgin.Middleware(ServiceName),
		middleware.RequestLogger(s.logger),
		middleware.Metrics(s.metrics),
	)

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:      rate.Limit(s.config.SignInRate),
		Burst:     s.config.SignInBurst,
		OnLimited: s.metrics.RecordRateLimited,
	})

	routes.SetupRoutes(s.router, routes.Deps{
		Store:         s.store,
		Users:         handlers.NewUsers(s.store, s.config.Clock),
		Auth:          s.auth,
		Provider:      s.opts.AuthProvider,
		Audit:         s.opts.AuditLogger,
		Catalog:       s.catalog,
		Engine:        s.engine,
		Tracker:       progress.NewTracker(s.catalog, s.config.Clock),
		Packs:         packs.NewManager(s.catalog, s.config.Clock),
		Errors:        s.errTracker,
		Analytics:     s.analytics,
		Health:        s.health,
		Logger:        s.logger,
		Metrics:       s.metrics,
		SignInLimiter: limiter,
	})
}

// Router returns the gin engine.
func (s *service) Router() *gin.Engine { return s.router }

// Run starts the background workers and serves HTTP.
//
// # Description
//
// The TTL scheduler and knowledge watcher run for the lifetime of the
// call. When ctx is cancelled the server gets 10 seconds to drain.
func (s *service) Run(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}
	defer s.scheduler.Stop()

	if s.watcher != nil {
		s.watcher.Start(ctx)
		defer s.watcher.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("AQAL Studio listening", "port", s.config.Port, "environment", s.config.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close releases every resource. Safe to call on a partially built
// service.
func (s *service) Close() error {
	var errs []error
	if s.scheduler != nil {
		errs = append(errs, s.scheduler.Stop())
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.sweepLog != nil {
		errs = append(errs, s.sweepLog.Close())
	}
	if s.sink != nil {
		s.sink.Close()
	}
	if s.opts.AuditLogger != nil {
		errs = append(errs, s.opts.AuditLogger.Flush(context.Background()))
	}
	if s.db != nil && !s.db.IsClosed() {
		errs = append(errs, s.db.Close())
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
	return errors.Join(errs...)
}
