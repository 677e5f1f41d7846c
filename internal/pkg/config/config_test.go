package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
database:
  host: db.internal
  user: storefront
  dbname: storefront
  port: "5432"
  sslmode: disable
gateway:
  base_url: https://gateway.test/v1
  webhook_secret: whsec_file
jwt:
  secret: "0123456789abcdef0123456789abcdef"
reconcile:
  max_workers: 3
  worker_delay: 50ms
`

func writeConfig(t *testing.T, name, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", name), []byte(content), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig(t *testing.T) {
	writeConfig(t, "config.yaml", testConfig)
	t.Setenv("APP_ENV", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3, cfg.Reconcile.MaxWorkers)
	assert.Equal(t, 50*time.Millisecond, cfg.Reconcile.WorkerDelay)
	// 默认值
	assert.Equal(t, 2, cfg.Reconcile.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconcile.RetryBaseDelay)
	assert.Equal(t, "X-Razorpay-Signature", cfg.Gateway.SignatureHeader)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	writeConfig(t, "config.yaml", testConfig)
	t.Setenv("APP_ENV", "")
	t.Setenv("GATEWAY_WEBHOOK_SECRET", "whsec_env")
	t.Setenv("DB_HOST", "db.override")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "whsec_env", cfg.Gateway.WebhookSecret)
	assert.Equal(t, "db.override", cfg.Database.Host)
}

func TestLoadConfig_PerEnvFile(t *testing.T) {
	writeConfig(t, "config.prod.yaml", testConfig)
	t.Setenv("APP_ENV", "prod")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "whsec_file", cfg.Gateway.WebhookSecret)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:  DatabaseConfig{Host: "h", User: "u", DBName: "d"},
			Redis:     RedisConfig{Addr: "localhost:6379"},
			JWT:       JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
			Gateway:   GatewayConfig{BaseURL: "https://gateway.test", WebhookSecret: "s"},
			Reconcile: ReconcileConfig{MaxWorkers: 5, MaxRetries: 2},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "database", mutate: func(c *Config) { c.Database.Host = "" }},
		{name: "redis", mutate: func(c *Config) { c.Redis.Addr = "" }},
		{name: "gateway url", mutate: func(c *Config) { c.Gateway.BaseURL = "" }},
		{name: "webhook secret", mutate: func(c *Config) { c.Gateway.WebhookSecret = "" }},
		{name: "short jwt secret", mutate: func(c *Config) { c.JWT.Secret = "short" }},
		{name: "workers", mutate: func(c *Config) { c.Reconcile.MaxWorkers = 0 }},
		{name: "retries", mutate: func(c *Config) { c.Reconcile.MaxRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", User: "u", Password: "p", DBName: "orders", Port: "5432", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/orders?sslmode=disable", c.DSN())
}
