package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlekbai/sqlcraft/internal/config"
	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/engine"
	"github.com/atlekbai/sqlcraft/internal/handler"
	"github.com/atlekbai/sqlcraft/internal/middleware"
	"github.com/atlekbai/sqlcraft/internal/schema"
	"github.com/atlekbai/sqlcraft/internal/server"
	"github.com/atlekbai/sqlcraft/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./sqlcraft.yaml if present)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	level, err := cfg.Level()
	if err != nil {
		log.Fatalf("invalid log level: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	catalog := schema.NewCatalog()
	if cfg.CatalogFile != "" {
		if err := catalog.LoadFile(cfg.CatalogFile); err != nil {
			log.Fatalf("failed to load catalog file: %v", err)
		}
	}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer pool.Close()
		if err := catalog.LoadPostgres(ctx, pool, cfg.CatalogSchemas...); err != nil {
			log.Fatalf("failed to load catalog from database: %v", err)
		}
	}
	logger.Info("catalog loaded", "objects", catalog.ObjectCount())

	engines := make(map[string]*engine.Engine)
	for _, name := range dialect.Names() {
		opts, err := cfg.DialectOptionsFor(name)
		if err != nil {
			log.Fatalf("dialect %s: %v", name, err)
		}
		engines[name] = engine.New(
			engine.WithDialect(opts),
			engine.WithCatalog(catalog),
			engine.WithLogger(logger),
		)
	}

	interceptors := []connect.Interceptor{
		server.LoggingInterceptor(logger),
	}

	services := []server.ConnectService{
		service.NewCompileService(engines, cfg.Dialect, logger),
	}

	mux := http.NewServeMux()
	for _, path := range server.Mount(mux, services, interceptors...) {
		logger.Info("service mounted", "path", path)
	}
	mux.Handle("/", handler.New(engines).Router())

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: middleware.Chain(mux, middleware.Recovery(logger), middleware.Logging(logger)),
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.Shutdown(context.Background())
	}()

	logger.Info("listening", "addr", cfg.Addr(), "default_dialect", cfg.Dialect)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
