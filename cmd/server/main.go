package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcAdapter "github.com/quentinrf/geiger-monitor/internal/adapters/grpc"
	"github.com/quentinrf/geiger-monitor/internal/adapters/memory"
	"github.com/quentinrf/geiger-monitor/internal/adapters/mock"
	"github.com/quentinrf/geiger-monitor/internal/adapters/postgres"
	"github.com/quentinrf/geiger-monitor/internal/adapters/serial"
	"github.com/quentinrf/geiger-monitor/internal/adapters/sqlite"
	"github.com/quentinrf/geiger-monitor/internal/analytics"
	"github.com/quentinrf/geiger-monitor/internal/auth"
	"github.com/quentinrf/geiger-monitor/internal/config"
	"github.com/quentinrf/geiger-monitor/internal/domain"
	"github.com/quentinrf/geiger-monitor/internal/ingestion"
	"github.com/quentinrf/geiger-monitor/internal/observability/metrics"
	"github.com/quentinrf/geiger-monitor/internal/poller"
	"github.com/quentinrf/geiger-monitor/pkg/rpc"
	"github.com/quentinrf/geiger-monitor/pkg/tlsconfig"
)

// simulatedPort names the device when SERIAL_SIMULATE is on and no port is set.
const simulatedPort = "simulated"

func main() {
	// Read configuration from defaults, CONFIG_FILE and environment
	cfg, err := config.Load()

	// Initialize logger
	setupLogger(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().Msg("starting geiger service")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Initialize repository
	repo, closeRepo := openRepository(ctx, cfg)
	defer closeRepo()

	// Initialize ingestion and live analytics
	engine, err := analytics.NewEngine(cfg.WindowMinutes)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create analytics engine")
	}
	ingest := ingestion.NewService(repo, ingestion.Options{
		Threshold: cfg.Threshold,
		Metrics:   m,
	})
	ingest.AddObserver(engine)

	// Initialize poller
	pollerCfg := cfg.Poller
	var opener poller.PortOpener = serial.NewOpener()
	if cfg.SerialSimulate {
		opener = mock.NewFakeGeiger(0.5, 0.3) // ~0.5 CPS background
		if pollerCfg.SerialPort == "" {
			pollerCfg.SerialPort = simulatedPort
		}
		log.Info().Msg("serial port simulation enabled")
	}
	p := poller.New(pollerCfg, ingest, poller.Options{
		Opener:  opener,
		Metrics: m,
	})

	runner := poller.NewRunner(p, poller.RunnerOptions{
		Interval:  cfg.PollInterval,
		Cleaner:   repo,
		Retention: cfg.Retention,
		Pruner:    engine,
		Metrics:   m,
	})

	// Initialize gRPC handler
	handler := grpcAdapter.NewGeigerServiceHandler(grpcAdapter.Deps{
		Repo:          repo,
		Ingest:        ingest,
		Engine:        engine,
		Poller:        p,
		Runner:        runner,
		Metrics:       m,
		RunnerContext: ctx,
		ListPorts:     serial.ListPorts,
	})

	interceptors := []grpc.UnaryServerInterceptor{grpcAdapter.UnaryRequestID()}
	if cfg.AuthSecret != "" {
		interceptors = append(interceptors, auth.UnaryInterceptor([]byte(cfg.AuthSecret), operatorPolicy()))
		log.Info().Msg("bearer token authentication enabled")
	}

	// Configure TLS if certificates are provided
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	if cfg.TLS.Cert != "" {
		tlsCfg, err := tlsconfig.LoadServerTLS(cfg.TLS.Cert, cfg.TLS.Key, cfg.TLS.CA)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load TLS config")
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
		log.Info().Msg("mTLS enabled")
	} else {
		log.Warn().Msg("TLS_CERT not set, starting without TLS (dev mode only)")
	}

	// Create gRPC server
	grpcServer := grpc.NewServer(serverOpts...)
	rpc.RegisterGeigerServiceServer(grpcServer, handler)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Enable gRPC reflection for grpcurl testing
	reflection.Register(grpcServer)

	// Start gRPC server
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Port))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}

	log.Info().Str("port", cfg.Port).Msg("gRPC server listening")

	// Start server in goroutine
	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("failed to serve")
		}
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr, reg)

	// Start background poller
	switch {
	case cfg.ShouldStartPoller():
		if err := runner.Start(ctx); err != nil {
			log.Error().Err(err).Msg("failed to start background poller")
		}
	case cfg.StartPoller && cfg.DockerBuild:
		log.Info().Msg("DOCKER_BUILD=1, background poller not started")
	default:
		log.Info().Msg("background poller not started; set START_POLLER=true or call StartPoller")
	}

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	healthServer.Shutdown()
	runner.Stop(shutdownCtx)
	grpcServer.GracefulStop()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to stop metrics server")
		}
	}

	log.Info().Msg("server stopped")
}

// operatorPolicy requires the operator role for calls that write readings
// or drive the poller.
func operatorPolicy() auth.Policy {
	return auth.NewPolicy(
		rpc.FullMethod("IngestReadings"),
		rpc.FullMethod("PollOnce"),
		rpc.FullMethod("StartPoller"),
		rpc.FullMethod("StopPoller"),
	)
}

// setupLogger configures the global logger from LOG_LEVEL and LOG_FORMAT.
func setupLogger(cfg config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogFormat != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// openRepository selects the storage backend. The returned func releases it.
func openRepository(ctx context.Context, cfg config.Config) (domain.ReadingRepository, func()) {
	switch cfg.RepoType {
	case config.RepoSQLite:
		r, err := sqlite.NewReadingRepository(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open SQLite database")
		}
		log.Info().Str("db_path", cfg.DBPath).Msg("initialized SQLite repository")
		return r, func() { r.Close() }

	case config.RepoPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
		}
		if err := pool.Migrate(connectCtx); err != nil {
			pool.Close()
			log.Fatal().Err(err).Msg("failed to apply PostgreSQL schema")
		}
		log.Info().Msg("initialized PostgreSQL repository")
		return postgres.NewReadingRepository(pool), pool.Close
	}

	log.Info().Msg("initialized in-memory repository")
	return memory.NewReadingRepository(), func() {}
}

// startMetricsServer serves /metrics on addr. Empty addr disables it.
func startMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	if addr == "" {
		log.Info().Msg("metrics endpoint disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	return srv
}
