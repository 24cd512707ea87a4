package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	internalhttp "github.com/fleetware/registrar/internal/api/http"
	"github.com/fleetware/registrar/internal/credentials"
	"github.com/fleetware/registrar/internal/db"
	"github.com/fleetware/registrar/internal/dedup"
	"github.com/fleetware/registrar/internal/hosts"
	"github.com/fleetware/registrar/internal/ratelimit"
	"github.com/fleetware/registrar/internal/registration"
)

var AppVersion string

const compactionInterval = time.Minute

func main() {
	InitConfig()

	slog.Info("Fleet Registrar Server", "version", AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.RunMigrations(config.Db.Url, config.Db.Schema); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.InitDB(ctx, config.Db)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	clk := clock.New()

	credentialStore := credentials.NewPostgresStore(pool)
	hostRegistry := hosts.NewPostgresRegistry(pool)

	validator := credentials.NewValidator(credentialStore,
		time.Duration(config.Credentials.CacheTTLSeconds)*time.Second, clk)
	limiter := ratelimit.NewLimiter(config.Ratelimit.PerMinute, clk)
	suppressor := dedup.NewSuppressor(
		time.Duration(config.Dedup.WindowSeconds)*time.Second, clk)

	go validator.StartCleanup(ctx, compactionInterval)
	go limiter.StartCleanup(ctx, compactionInterval)
	go suppressor.StartCleanup(ctx, compactionInterval)

	stats := registration.NewStats()
	pipeline := registration.NewPipeline(validator, limiter, suppressor, hostRegistry, stats, clk)

	services := &internalhttp.Services{
		Pipeline: pipeline,
		Stats:    stats,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}
