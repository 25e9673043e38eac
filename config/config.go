// Package config loads server configuration from defaults, an optional
// YAML file, a .env file and PAYROLL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
	Payroll PayrollConfig `mapstructure:"payroll"`
	Warmer  WarmerConfig  `mapstructure:"warmer"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORS            CORSConfig    `mapstructure:"cors"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableScenarios bool          `mapstructure:"enable_scenarios"` // POST /api/scenarios/{name}
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig selects the salary result cache.
type CacheConfig struct {
	Driver    string        `mapstructure:"driver"` // memory | redis | none
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

// PayrollConfig holds engine settings.
type PayrollConfig struct {
	Timezone         string `mapstructure:"timezone"`
	DefaultTenant    string `mapstructure:"default_tenant"`
	BatchConcurrency int    `mapstructure:"batch_concurrency"`
}

// Location returns the tenant wall-clock zone. Validate has already
// checked the name.
func (p PayrollConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WarmerConfig drives the background cache warmer.
type WarmerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration. Priority: environment > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_scenarios", false)

	v.SetDefault("db.path", "./data/payroll.db")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.key_prefix", "payroll:salary:")
	v.SetDefault("cache.ttl", "0s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("payroll.timezone", "UTC")
	v.SetDefault("payroll.default_tenant", "default")
	v.SetDefault("payroll.batch_concurrency", 4)

	v.SetDefault("warmer.enabled", false)
	v.SetDefault("warmer.interval", "1h")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PAYROLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("invalid config: cache.driver %q (use memory, redis or none)", c.Cache.Driver)
	}
	if c.Cache.Driver == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("invalid config: redis.addr is required for the redis cache")
	}
	if _, err := time.LoadLocation(c.Payroll.Timezone); err != nil {
		return fmt.Errorf("invalid config: payroll.timezone %q: %w", c.Payroll.Timezone, err)
	}
	if strings.TrimSpace(c.Payroll.DefaultTenant) == "" {
		return fmt.Errorf("invalid config: payroll.default_tenant must not be empty")
	}
	if c.Payroll.BatchConcurrency < 1 {
		return fmt.Errorf("invalid config: payroll.batch_concurrency must be at least 1")
	}
	if c.Warmer.Enabled && c.Warmer.Interval <= 0 {
		return fmt.Errorf("invalid config: warmer.interval must be positive")
	}
	return nil
}
