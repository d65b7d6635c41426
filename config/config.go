// Package config loads service settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an explicit config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Predictor PredictorConfig `koanf:"predictor"`
	Cache     CacheConfig     `koanf:"cache"`
	Safety    SafetyConfig    `koanf:"safety"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required,numeric"`
	GinMode      string        `koanf:"gin_mode" validate:"omitempty,oneof=debug release test"`
	FrontendURLs []string      `koanf:"frontend_urls" validate:"dive,url"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"`
	Driver   string `koanf:"driver" validate:"oneof=postgres pgx"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

// DSN returns URL when set, otherwise a key/value DSN from the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type PredictorConfig struct {
	URL             string        `koanf:"url" validate:"omitempty,url"`
	APIKey          string        `koanf:"api_key"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RatePerSecond   float64       `koanf:"rate_per_second" validate:"gt=0"`
	Burst           int           `koanf:"burst" validate:"gte=1"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type CacheConfig struct {
	RedisURL string        `koanf:"redis_url"`
	TTL      time.Duration `koanf:"ttl" validate:"gt=0"`
}

type SafetyConfig struct {
	RulesPath            string   `koanf:"rules_path"`
	HighRiskDestinations []string `koanf:"high_risk_destinations"`
}

type OptimizerConfig struct {
	DefaultDailyBudget float64 `koanf:"default_daily_budget" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:  true,
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "safar",
			SSLMode:  "disable",
		},
		Predictor: PredictorConfig{
			Timeout:         10 * time.Second,
			RatePerSecond:   5,
			Burst:           5,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 6 * time.Hour,
		},
		Optimizer: OptimizerConfig{
			DefaultDailyBudget: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env (when present), then layers defaults, the config file and
// environment variables.
func Load() (*Config, error) {
	// .env is optional; production sets variables directly.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma separated strings.
var sliceConfigPaths = []string{
	"server.frontend_urls",
	"safety.high_risk_destinations",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		if err := k.Set(path, splitList(s)); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var envMappings = map[string]string{
	"port":          "server.port",
	"gin_mode":      "server.gin_mode",
	"frontend_url":  "server.frontend_urls",
	"read_timeout":  "server.read_timeout",
	"write_timeout": "server.write_timeout",

	"db_enabled":   "database.enabled",
	"database_url": "database.url",
	"db_driver":    "database.driver",
	"db_host":      "database.host",
	"db_port":      "database.port",
	"db_user":      "database.user",
	"db_password":  "database.password",
	"db_name":      "database.name",
	"db_sslmode":   "database.sslmode",

	"predictor_url":              "predictor.url",
	"predictor_api_key":          "predictor.api_key",
	"predictor_timeout":          "predictor.timeout",
	"predictor_rate_per_second":  "predictor.rate_per_second",
	"predictor_burst":            "predictor.burst",
	"predictor_breaker_failures": "predictor.breaker_failures",
	"predictor_breaker_timeout":  "predictor.breaker_timeout",

	"redis_url": "cache.redis_url",
	"cache_ttl": "cache.ttl",

	"safety_rules_path":      "safety.rules_path",
	"high_risk_destinations": "safety.high_risk_destinations",

	"default_daily_budget": "optimizer.default_daily_budget",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps known variables to config paths and drops the rest.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
