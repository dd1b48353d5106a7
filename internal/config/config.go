package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pkgconfig "github.com/2Raz/mnam-backend-sub001/pkg/config"
)

// EnvPrefix prefixes every environment override, e.g. CHANNEL_SYNC_DATABASE_PASSWORD.
const EnvPrefix = "CHANNEL_SYNC"

type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	JWT        JWTConfig        `yaml:"jwt"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Channex    ChannexConfig    `yaml:"channex"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Replay     ReplayConfig     `yaml:"replay"`
	Booking    BookingConfig    `yaml:"booking"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	FilePath    string `yaml:"file_path"`
	Development bool   `yaml:"development"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	// Roles lists the token roles admitted to the admin API; empty admits all.
	Roles []string `yaml:"roles"`
}

// EncryptionConfig holds the hex encoded AES-256 key for stored credentials.
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoadConfig reads the YAML file at CONFIG_PATH (default
// ./configs/channel-sync.yaml), applies environment overrides and defaults.
func LoadConfig() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/channel-sync.yaml"
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv(pkgconfig.FromEnv(EnvPrefix))
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML config without touching the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides secrets and endpoints that are usually injected by the
// deployment rather than committed to the YAML file.
func (c *Config) ApplyEnv(env pkgconfig.Config) {
	overrideString(env, "database.host", &c.Database.Host)
	overrideInt(env, "database.port", &c.Database.Port)
	overrideString(env, "database.name", &c.Database.Name)
	overrideString(env, "database.user", &c.Database.User)
	overrideString(env, "database.password", &c.Database.Password)
	overrideString(env, "database.sslmode", &c.Database.SSLMode)
	overrideString(env, "redis.addr", &c.Redis.Addr)
	overrideString(env, "redis.password", &c.Redis.Password)
	if env.IsSet("redis.enabled") {
		c.Redis.Enabled = env.GetBool("redis.enabled")
	}
	overrideString(env, "jwt.secret", &c.JWT.Secret)
	overrideString(env, "encryption.key", &c.Encryption.Key)
	overrideString(env, "channex.base_url", &c.Channex.BaseURL)
	overrideString(env, "log.level", &c.Log.Level)
	overrideString(env, "service.environment", &c.Service.Environment)
}

func overrideString(env pkgconfig.Config, key string, dst *string) {
	if env.IsSet(key) {
		*dst = env.GetString(key)
	}
}

func overrideInt(env pkgconfig.Config, key string, dst *int) {
	if env.IsSet(key) {
		*dst = env.GetInt(key)
	}
}

// Validate reports settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Encryption.Key == "" {
		return fmt.Errorf("encryption.key is required")
	}
	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("dispatcher.workers must be positive")
	}
	if c.RateLimit.Capacity <= 0 || c.RateLimit.RefillPerSecond <= 0 {
		return fmt.Errorf("rate_limit.capacity and rate_limit.refill_per_second must be positive")
	}
	return nil
}
