// Package app assembles the journal's storage, metrics and services from
// configuration. Each binary under cmd/ builds one App and uses the parts it needs.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"docjournal/internal/config"
	"docjournal/internal/core/security"
	"docjournal/internal/domain/auth"
	"docjournal/internal/domain/ledger"
	"docjournal/internal/domain/registry"
	"docjournal/internal/domain/reservation"
	"docjournal/internal/infrastructure/metrics"
	"docjournal/internal/infrastructure/storage/postgres"
	"docjournal/internal/infrastructure/storage/postgres/document_repo"
	"docjournal/internal/infrastructure/storage/postgres/ledger_repo"
	"docjournal/pkg/logger"
)

// App holds process-wide dependencies.
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Repos     ledger.Repositories

	// Metrics is nil when metrics are disabled.
	Metrics  *prometheus.Registry
	Observer ledger.Observer
}

// NewLogger builds the configured logger and installs it as the default.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Logger())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	return log, nil
}

// NewJWTService builds the token validator with the configured admin policy.
func NewJWTService(cfg *config.Config) (*auth.JWTService, error) {
	if err := cfg.RequireJWT(); err != nil {
		return nil, err
	}
	policy, err := security.NewAdminPolicy(cfg.Admin.Policy, cfg.Admin.Users)
	if err != nil {
		return nil, err
	}
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	if cfg.JWT.Issuer != "" {
		jwtCfg.Issuer = cfg.JWT.Issuer
	}
	return auth.NewJWTService(jwtCfg, policy), nil
}

// New connects to the database and wires the repositories.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	pool, err := postgres.NewPoolWithRetry(logger.WithLogger(ctx, log), cfg.Pool())
	if err != nil {
		return nil, err
	}
	log.Infow("database connection established", "max_conns", cfg.Database.MaxConns)

	if cfg.Database.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("schema applied")
	}

	txm := postgres.NewTxManager(pool, cfg.Tx())

	a := &App{
		Config:    cfg,
		Log:       log,
		Pool:      pool,
		TxManager: txm,
		Repos: ledger.Repositories{
			Counter:   ledger_repo.NewCounterRepo(txm),
			Numbers:   ledger_repo.NewNumberRepo(txm),
			Sessions:  ledger_repo.NewSessionRepo(txm),
			Documents: document_repo.NewDocumentRepo(txm),
			Equipment: document_repo.NewEquipmentRepo(txm),
		},
		Observer: ledger.NopObserver{},
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics.RegisterPool(reg, pool.Stats)
		a.Metrics = reg
		a.Observer = metrics.NewLedger(reg)
	}

	return a, nil
}

// Reservations builds the reservation engine.
func (a *App) Reservations() *reservation.Service {
	return reservation.NewService(a.TxManager, a.Repos, a.Config.Reservation(),
		reservation.WithObserver(a.Observer))
}

// Registry builds the document registry.
func (a *App) Registry() *registry.Service {
	return registry.NewService(a.TxManager, a.Repos, a.Observer)
}

// Sweeper builds the expiry sweeper.
func (a *App) Sweeper() *reservation.Sweeper {
	s := reservation.NewSweeper(a.TxManager, a.Repos, a.Config.Sweeper.Interval, a.Observer)
	s.SetLogger(a.Log)
	return s
}

// Close releases the pool and flushes the logger.
func (a *App) Close() {
	a.Pool.Close()
	_ = a.Log.Sync()
}
