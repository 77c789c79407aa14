package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestMustLoadPathAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
env: "dev"
database:
  driver: "sqlite"
auth:
  jwt_secret: "s3cret"
`)

	cfg := MustLoadPath(path)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.NotEmpty(t, cfg.Database.DSN)
	assert.False(t, cfg.Database.EnforceRLS)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 64, cfg.Realtime.Buffer)
	assert.Equal(t, 25*time.Second, cfg.Realtime.PingInterval)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.Initial)
	assert.Equal(t, "counsel", cfg.Video.Namespace)
}

func TestMustLoadPathReadsSections(t *testing.T) {
	path := writeConfig(t, `
env: "prod"
http:
  address: ":9000"
  allowed_origins: ["https://portal.example.org"]
database:
  driver: "postgres"
  dsn: "postgres://app@db/counsel"
  enforce_rls: true
video:
  provider_host: "video.example.org"
retry:
  attempts: 5
  max: 5s
`)

	cfg := MustLoadPath(path)
	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, []string{"https://portal.example.org"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "postgres://app@db/counsel", cfg.Database.DSN)
	assert.True(t, cfg.Database.EnforceRLS)
	assert.Equal(t, "video.example.org", cfg.Video.ProviderHost)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.Max)
}

func TestMustLoadPathPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadPath(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
