// Package main initializes and starts the box catalog web server,
// setting up configuration, logging, the database, repositories,
// services, handlers and, optionally, TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/boxcatalog/internal/config"
	"github.com/atinyakov/boxcatalog/internal/db"
	"github.com/atinyakov/boxcatalog/internal/logger"
	"github.com/atinyakov/boxcatalog/internal/middleware"
	"github.com/atinyakov/boxcatalog/internal/repository"
	"github.com/atinyakov/boxcatalog/internal/server/handler/http"
	"github.com/atinyakov/boxcatalog/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse flags, environment and config file.
	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(2)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the store and apply migrations.
	conn, err := db.Init(options.DatabaseDriver, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer conn.Close()

	// Initialize repositories and services.
	authRepo := repository.NewAuthRepository(conn)
	catalogRepo := repository.NewCatalogRepository(conn)

	authService := service.NewAuthService(authRepo, options.IdleTimeout, zapLogger)
	catalogService := service.NewCatalogService(catalogRepo, zapLogger)

	// Databases written by older versions carry codes the counter has not seen.
	if err := catalogService.SyncSequence(ctx); err != nil {
		zapLogger.Fatal("cannot synchronise triple sequence", zap.Error(err))
	}

	// Optionally sweep sessions abandoned without logout.
	if options.SessionSweepInterval > 0 {
		db.StartSessionCleaner(ctx, conn, options.SessionSweepInterval, authService.IdleTimeout(), zapLogger)
	}

	// Session cookies.
	hashKey, blockKey, generated := middleware.SessionKeys(options.SessionKey)
	if generated {
		zapLogger.Warn("SESSION_KEY not set, using a random key; sessions will not survive a restart")
	}
	store := middleware.NewCookieStore(hashKey, blockKey, options.TLSEnabled())
	sessions := middleware.NewSessions(store, authService, zapLogger)

	// Create HTTP handlers.
	views, err := http.NewViews(zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot parse templates", zap.Error(err))
	}
	authHandler := &http.AuthHandler{AuthService: authService, Sessions: sessions, Views: views, Log: zapLogger}
	catalogHandler := &http.CatalogHandler{CatalogService: catalogService, Views: views, Log: zapLogger}
	healthHandler := &http.HealthHandler{DB: conn}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, catalogHandler, healthHandler, sessions, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if options.TLSEnabled() {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSEnabled() {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Addr))
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
