package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Drivers
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	// Instrumentation
	"github.com/exaring/otelpgx"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Interne
	"github.com/jupiterclapton/cenackle/feed-service/config"
	"github.com/jupiterclapton/cenackle/feed-service/internal/adapters/primary/rest"
	"github.com/jupiterclapton/cenackle/feed-service/internal/adapters/secondary/cache"
	"github.com/jupiterclapton/cenackle/feed-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/feed-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/feed-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/services"
)

func main() {
	// 1. Config & Logger
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	initLogger(cfg)
	slog.Info("🚀 Starting Feed Service", "env", cfg.Env, "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 3. Infrastructure: Base de données (Postgres)
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		slog.Error("Unable to parse DB config", "error", err)
		os.Exit(1)
	}
	// Instrumentation SQL (pour voir les requêtes dans Jaeger)
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	slog.Info("✅ Connected to Postgres")

	if cfg.DBMigrate {
		version, err := repository.Migrate(dbPool)
		if err != nil {
			slog.Error("Migrations failed", "error", err)
			os.Exit(1)
		}
		slog.Info("✅ Schema up to date", "version", version)
	}

	// 4. Infrastructure: Cache (Redis, sinon mémoire)
	pageCache, closeCache := initCache(ctx, cfg)
	defer closeCache()

	// 5. Infrastructure: Event Broker (NATS, optionnel)
	var eventPub ports.EventPublisher
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl, nats.Name("feed-service"))
		if err != nil {
			slog.Error("Unable to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		eventPub = eventbroker.NewNatsPublisher(nc)
		slog.Info("✅ Connected to NATS")
	} else {
		slog.Warn("NATS_URL not set, post.created events are disabled")
	}

	// 6. Identity (vérification locale du JWT)
	var resolver ports.IdentityResolver
	if cfg.JWTPublicKeyPath != "" {
		verifier, err := security.LoadJWTVerifier(cfg.JWTPublicKeyPath, cfg.JWTIssuer)
		if err != nil {
			slog.Error("Unable to load JWT public key", "error", err)
			os.Exit(1)
		}
		resolver = verifier
	} else {
		slog.Warn("JWT_PUBLIC_KEY_PATH not set, every request is anonymous")
	}

	// 7. Core
	repo := repository.NewPostgresRepo(dbPool)
	feedService := services.NewFeedService(repo, repo, pageCache, services.WithCachePolicy(services.CachePolicy{
		ListTTL:   cfg.CacheListTTL,
		DetailTTL: cfg.CacheDetailTTL,
	}))
	postService := services.NewPostService(repo, eventPub)

	// 8. Primary adapters: HTTP + gRPC health
	srvHTTP := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           rest.NewHandler(feedService, postService, resolver, rest.Options{AllowedOrigins: cfg.CORSAllowedOrigins}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen", "error", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("📡 Health (gRPC) listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC server error", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		slog.Info("📡 Feed API listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// 9. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("🛑 Shutting down server...")

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()

	slog.Info("👋 Server exited")
}

// --- Helpers ---

func initCache(ctx context.Context, cfg config.Config) (ports.PageCache, func()) {
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR not set, using in-process cache", "max_entries", cfg.CacheMaxEntries)
		return cache.NewMemoryCache(
			cache.WithMaxEntries(cfg.CacheMaxEntries),
			cache.WithMaxTTL(max(cfg.CacheListTTL, cfg.CacheDetailTTL)),
		), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		slog.Error("Failed to instrument Redis", "error", err)
	}
	// Le cache est fail-open : Redis absent au démarrage n'empêche pas de servir.
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unreachable, reads will fall back to Postgres", "addr", cfg.RedisAddr, "error", err)
	} else {
		slog.Info("✅ Connected to Redis")
	}
	return cache.NewRedisCache(rdb), func() { _ = rdb.Close() }
}

func initLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsLocal() {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.IsLocal() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("feed-service"),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
