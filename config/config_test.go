package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, "default", cfg.Payroll.DefaultTenant)
	assert.Equal(t, 4, cfg.Payroll.BatchConcurrency)
	assert.Equal(t, time.Hour, cfg.Warmer.Interval)
	assert.Equal(t, time.UTC, cfg.Payroll.Location())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payroll.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
cache:
  driver: redis
redis:
  addr: cache:6379
payroll:
  timezone: Africa/Cairo
  batch_concurrency: 8
warmer:
  enabled: true
  interval: 15m
`), 0o600))
	t.Setenv("PAYROLL_SERVER_PORT", "9191")
	t.Setenv("PAYROLL_PAYROLL_DEFAULT_TENANT", "academy")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "academy", cfg.Payroll.DefaultTenant)
	assert.Equal(t, 8, cfg.Payroll.BatchConcurrency)
	assert.Equal(t, "Africa/Cairo", cfg.Payroll.Location().String())
	assert.True(t, cfg.Warmer.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Warmer.Interval)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080},
			Cache:   CacheConfig{Driver: "memory"},
			Payroll: PayrollConfig{Timezone: "UTC", DefaultTenant: "default", BatchConcurrency: 1},
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"port":        func(c *Config) { c.Server.Port = 70000 },
		"driver":      func(c *Config) { c.Cache.Driver = "memcached" },
		"redis addr":  func(c *Config) { c.Cache.Driver = "redis"; c.Redis.Addr = "" },
		"timezone":    func(c *Config) { c.Payroll.Timezone = "Mars/Olympus" },
		"tenant":      func(c *Config) { c.Payroll.DefaultTenant = " " },
		"concurrency": func(c *Config) { c.Payroll.BatchConcurrency = 0 },
		"warmer":      func(c *Config) { c.Warmer.Enabled = true; c.Warmer.Interval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
