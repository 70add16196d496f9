package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "salesforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SALESFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "SALESFORGE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SALESFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SALESFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SALESFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SALESFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SALESFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "SALESFORGE_NATS_ENABLED")
	setString(&cfg.LLM.URL, "SALESFORGE_LLM_URL")
	setString(&cfg.LLM.APIKey, "SALESFORGE_LLM_API_KEY")
	setString(&cfg.LLM.DefaultModel, "SALESFORGE_LLM_MODEL")
	setDuration(&cfg.LLM.Timeout, "SALESFORGE_LLM_TIMEOUT")
	setInt(&cfg.LLM.HistoryLimit, "SALESFORGE_LLM_HISTORY_LIMIT")
	setBool(&cfg.Tenancy.MultiTenant, "SALESFORGE_MULTI_TENANT")
	setString(&cfg.Tenancy.DefaultTenantSlug, "SALESFORGE_DEFAULT_TENANT")
	setString(&cfg.Tenancy.TenantHeader, "SALESFORGE_TENANT_HEADER")
	setString(&cfg.Tenancy.APIKeyHeader, "SALESFORGE_API_KEY_HEADER")
	setDuration(&cfg.Tenancy.ResolveCacheTTL, "SALESFORGE_RESOLVE_CACHE_TTL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "SALESFORGE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.PromptTTL, "SALESFORGE_CACHE_PROMPT_TTL")
	setDuration(&cfg.Cache.KnowledgeTTL, "SALESFORGE_CACHE_KNOWLEDGE_TTL")
	setString(&cfg.Logging.Level, "SALESFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SALESFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SALESFORGE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "SALESFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SALESFORGE_BREAKER_TIMEOUT")
	setInt(&cfg.Retry.MaxAttempts, "SALESFORGE_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Retry.BaseDelay, "SALESFORGE_RETRY_BASE_DELAY")
	setDuration(&cfg.Retry.MaxDelay, "SALESFORGE_RETRY_MAX_DELAY")
	setInt(&cfg.Chat.MaxMessageLength, "SALESFORGE_CHAT_MAX_MESSAGE_LENGTH")
	setBool(&cfg.Otel.Enabled, "SALESFORGE_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if !cfg.Tenancy.MultiTenant && cfg.Tenancy.DefaultTenantSlug == "" {
		return errors.New("tenancy.default_tenant_slug is required in single-tenant mode")
	}
	if cfg.Tenancy.TenantHeader == "" || cfg.Tenancy.APIKeyHeader == "" {
		return errors.New("tenancy headers must not be empty")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if cfg.LLM.HistoryLimit < 1 {
		return errors.New("llm.history_limit must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
