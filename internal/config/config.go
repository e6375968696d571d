// Package config loads the journal configuration from an optional YAML file
// with DOCJOURNAL_* environment overrides, e.g. DOCJOURNAL_DATABASE_URL.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"docjournal/internal/core/numerator"
	"docjournal/internal/core/security"
	"docjournal/internal/domain/reservation"
	"docjournal/internal/infrastructure/storage/postgres"
	"docjournal/pkg/logger"
)

const envPrefix = "DOCJOURNAL"

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	ConnectAttempts  uint64        `mapstructure:"connect_attempts"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	// AutoMigrate applies the schema on startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type AdminConfig struct {
	// Users are usernames granted admin by the default policy.
	Users []string `mapstructure:"users"`
	// Policy is a CEL expression over username, roles and admins.
	Policy string `mapstructure:"policy"`
}

type NumberingConfig struct {
	Prefix     string        `mapstructure:"prefix"`
	PadWidth   int           `mapstructure:"pad_width"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	MaxTTL     time.Duration `mapstructure:"max_ttl"`
	MaxBatch   int           `mapstructure:"max_batch"`
}

type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Numbering NumberingConfig `mapstructure:"numbering"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.connect_attempts", 10)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "docjournal")

	v.SetDefault("admin.users", []string{"vgrubtsov", "yuaalekseeva", "lrshlyogin", "pyagavrilov"})
	v.SetDefault("admin.policy", security.DefaultAdminExpression)

	v.SetDefault("numbering.prefix", "")
	v.SetDefault("numbering.pad_width", 6)
	v.SetDefault("numbering.default_ttl", 30*time.Minute)
	v.SetDefault("numbering.max_ttl", 24*time.Hour)
	v.SetDefault("numbering.max_batch", 1000)

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", reservation.DefaultSweepInterval)

	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration. An empty path looks for an optional config.yaml in
// the working directory; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// environment overrides, e.g. DOCJOURNAL_SERVER_PORT=9000
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values no default can repair.
func (c *Config) Validate() error {
	if c.Numbering.PadWidth < 1 || c.Numbering.PadWidth > 18 {
		return fmt.Errorf("numbering.pad_width must be in 1..18, got %d", c.Numbering.PadWidth)
	}
	if c.Numbering.DefaultTTL <= 0 || c.Numbering.MaxTTL < c.Numbering.DefaultTTL {
		return fmt.Errorf("numbering ttl: default %s must be positive and not exceed max %s",
			c.Numbering.DefaultTTL, c.Numbering.MaxTTL)
	}
	if c.Numbering.MaxBatch < 1 {
		return fmt.Errorf("numbering.max_batch must be positive")
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be positive")
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set %s_DATABASE_URL)", envPrefix)
	}
	return nil
}

// RequireJWT fails when no signing secret is configured.
func (c *Config) RequireJWT() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (set %s_JWT_SECRET)", envPrefix)
	}
	return nil
}

// Logger returns the logger configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Development: c.Log.Development,
		File:        c.Log.File,
		MaxSizeMB:   c.Log.MaxSizeMB,
		MaxBackups:  c.Log.MaxBackups,
		MaxAgeDays:  c.Log.MaxAgeDays,
	}
}

// Pool returns the connection pool configuration.
func (c *Config) Pool() postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig(c.Database.URL)
	pc.MaxConns = c.Database.MaxConns
	pc.MinConns = c.Database.MinConns
	pc.ConnectAttempts = c.Database.ConnectAttempts
	return pc
}

// Tx returns the default transaction options.
func (c *Config) Tx() postgres.TxOptions {
	opts := postgres.DefaultTxOptions()
	opts.StatementTimeout = c.Database.StatementTimeout
	return opts
}

// Format returns the document number format.
func (c *Config) Format() numerator.Config {
	return numerator.Config{Prefix: c.Numbering.Prefix, PadWidth: c.Numbering.PadWidth}
}

// Reservation returns the engine configuration. The largest numeric is the
// largest value that still fits the pad width.
func (c *Config) Reservation() reservation.Config {
	return reservation.Config{
		DefaultTTL: c.Numbering.DefaultTTL,
		MaxTTL:     c.Numbering.MaxTTL,
		MaxBatch:   c.Numbering.MaxBatch,
		MaxNumeric: c.Format().MaxNumeric(),
	}
}
