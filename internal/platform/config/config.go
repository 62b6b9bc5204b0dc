// Package config carga la configuración del servicio: YAML opcional + overrides por env.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Log          LogConfig          `yaml:"log"`
	Auth         AuthConfig         `yaml:"auth"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Autosave     AutosaveConfig     `yaml:"autosave"`
	Presence     PresenceConfig     `yaml:"presence"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// DSN vacío = storage in-memory (modo dev)
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	// Addr vacío = hub realtime in-memory (una sola instancia)
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	App    string `yaml:"app"`
}

type AuthConfig struct {
	IAMBaseURL   string        `yaml:"iam_base_url"`
	APIKey       string        `yaml:"api_key"`
	APIKeyHeader string        `yaml:"api_key_header"`
	Timeout      time.Duration `yaml:"timeout"`
}

type CapabilitiesConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	AllowAll bool          `yaml:"allow_all"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type AutosaveConfig struct {
	Quiet   time.Duration `yaml:"quiet"`
	MaxWait time.Duration `yaml:"max_wait"`
}

type PresenceConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			Namespace: "inspections",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			App:    "dental-inspections",
		},
		Auth: AuthConfig{
			APIKeyHeader: "X-Api-Key",
			Timeout:      5 * time.Second,
		},
		Capabilities: CapabilitiesConfig{
			CacheTTL: time.Minute,
		},
		Autosave: AutosaveConfig{
			Quiet:   2 * time.Second,
			MaxWait: 10 * time.Second,
		},
		Presence: PresenceConfig{
			TTL: 45 * time.Second,
		},
	}
}

// LoadFromFile parte de DefaultConfig y pisa con lo que venga en el YAML.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Load: archivo opcional (path vacío = solo defaults) + env + validación.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv aplica overrides por variables de entorno. getenv se inyecta para tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		c.Server.Addr = ":" + v
	}
	str("DB_DSN", &c.Database.DSN)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	if v := strings.TrimSpace(getenv("REDIS_DB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	str("IAM_BASE_URL", &c.Auth.IAMBaseURL)
	str("IAM_API_KEY", &c.Auth.APIKey)
	str("CAPABILITIES_BASE_URL", &c.Capabilities.BaseURL)
	str("CAPABILITIES_API_KEY", &c.Capabilities.APIKey)
	if strings.EqualFold(strings.TrimSpace(getenv("ALLOW_ALL_CAPABILITIES")), "true") {
		c.Capabilities.AllowAll = true
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("APP_NAME", &c.Log.App)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Autosave.Quiet <= 0 {
		return fmt.Errorf("autosave.quiet must be positive")
	}
	if c.Autosave.MaxWait < c.Autosave.Quiet {
		return fmt.Errorf("autosave.max_wait must be >= autosave.quiet")
	}
	if c.Presence.TTL <= 0 {
		return fmt.Errorf("presence.ttl must be positive")
	}
	if c.Redis.Namespace == "" {
		return fmt.Errorf("redis.namespace is required")
	}
	return nil
}
