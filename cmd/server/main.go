// Package main is the entry point for the document journal API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"docjournal/internal/app"
	"docjournal/internal/config"
	v1 "docjournal/internal/infrastructure/http/v1"
	"docjournal/internal/infrastructure/metrics"
	"docjournal/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting docjournal server", "version", version)

	jwtService, err := app.NewJWTService(cfg)
	if err != nil {
		log.Fatalw("failed to configure auth", "error", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Reservations: a.Reservations(),
		Registry:     a.Registry(),
		Format:       cfg.Format(),
		DB:           a.Pool,
		Version:      version,
	}
	if a.Metrics != nil {
		routerCfg.HTTPMetrics = metrics.NewHTTP(a.Metrics)
		routerCfg.Gatherer = a.Metrics
	}
	router := v1.NewRouter(routerCfg)

	// --- Background sweeper ---
	var wg sync.WaitGroup
	if cfg.Sweeper.Enabled {
		sweeper := a.Sweeper()
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port, "sweeper", cfg.Sweeper.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	cancel()
	wg.Wait()

	a.Pool.LogStats(logger.WithLogger(context.Background(), log))
	log.Info("server stopped")
}
