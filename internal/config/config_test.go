package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Numbering.DefaultTTL)
	assert.Equal(t, 1000, cfg.Numbering.MaxBatch)
	assert.Equal(t, []string{"vgrubtsov", "yuaalekseeva", "lrshlyogin", "pyagavrilov"}, cfg.Admin.Users)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.True(t, cfg.Sweeper.Enabled)

	assert.Equal(t, int64(999999), cfg.Reservation().MaxNumeric)
	assert.Error(t, cfg.RequireDatabase())
	assert.Error(t, cfg.RequireJWT())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docjournal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
numbering:
  prefix: UTZ
  pad_width: 4
  default_ttl: 10m
admin:
  users: [alice]
`), 0o600))

	t.Setenv("DOCJOURNAL_SERVER_PORT", "7070")
	t.Setenv("DOCJOURNAL_DATABASE_URL", "postgres://localhost/docjournal")
	t.Setenv("DOCJOURNAL_SWEEPER_INTERVAL", "15s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/docjournal", cfg.Pool().DSN)
	assert.Equal(t, 15*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Reservation().DefaultTTL)
	assert.Equal(t, []string{"alice"}, cfg.Admin.Users)
	assert.Equal(t, "UTZ-0042", cfg.Format().Format(42))
	assert.Equal(t, int64(9999), cfg.Reservation().MaxNumeric)
	assert.NoError(t, cfg.RequireDatabase())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DOCJOURNAL_NUMBERING_MAX_TTL", "1m")

	_, err := Load("")
	assert.ErrorContains(t, err, "numbering ttl")
}
