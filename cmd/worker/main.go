// Package main runs the expiry sweeper as a standalone process, for deployments
// that disable the in-process sweeper of the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docjournal/internal/app"
	"docjournal/internal/config"
	"docjournal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address, e.g. :9102")
	once := flag.Bool("once", false, "sweep once and exit")
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	sweeper := a.Sweeper()

	if *once {
		res, err := sweeper.SweepOnce(ctx)
		if err != nil {
			log.Errorw("sweep failed", "error", err)
			os.Exit(1)
		}
		log.Infow("sweep finished",
			"sessions_expired", res.SessionsExpired,
			"numbers_released", res.NumbersReleased,
			"skipped", res.Skipped)
		return
	}

	if *metricsAddr != "" && a.Metrics != nil {
		server := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(a.Metrics, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
		defer server.Close()
	}

	log.Infow("starting docjournal worker", "interval", cfg.Sweeper.Interval)
	sweeper.Run(ctx)
	a.Pool.LogStats(logger.WithLogger(context.Background(), log))
	log.Info("worker stopped")
}
