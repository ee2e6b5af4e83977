package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
	Enabled  bool
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

type ObservabilityConfig struct {
	ServiceName     string
	OTLPEndpoint    string
	MetricsAddr     string
	PprofAddr       string
	LogLevel        string
	TracingDisabled bool
}

type Config struct {
	Repositories    RepositoriesConfig
	Observability   ObservabilityConfig
	ServerPort      string
	JWTSecret       string
	RabbitMQURL     string
	DefaultLanguage string
	PageSize        int
	// WriteRateLimit caps booking and review writes per client per minute.
	WriteRateLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "tourbook"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: int32(getEnvInt("POSTGRES_MAX_CONNS", 30)),
				MinConns: int32(getEnvInt("POSTGRES_MIN_CONNS", 5)),
			},
			Redis: RedisConfig{
				Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
				Password: getEnvOrDefault("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
				CacheTTL: time.Duration(getEnvInt("REDIS_CACHE_TTL_SECONDS", 60)) * time.Second,
				Enabled:  getEnvBool("REDIS_CACHE_ENABLED", true),
			},
		},
		Observability: ObservabilityConfig{
			ServiceName:     getEnvOrDefault("OTEL_SERVICE_NAME", "tourbook"),
			OTLPEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318"),
			MetricsAddr:     getEnvOrDefault("METRICS_ADDR", ":9092"),
			PprofAddr:       getEnvOrDefault("PPROF_ADDR", ":6060"),
			LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
			TracingDisabled: getEnvBool("OTEL_TRACING_DISABLED", false),
		},
		ServerPort:      getEnvOrDefault("SERVER_PORT", "8091"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET_KEY", ""),
		RabbitMQURL:     getEnvOrDefault("RABBITMQ_URL", ""),
		DefaultLanguage: getEnvOrDefault("DEFAULT_LANGUAGE", "en"),
		PageSize:        getEnvInt("PAGE_SIZE", 10),
		WriteRateLimit:  getEnvInt("WRITE_RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.WriteRateLimit <= 0 {
		cfg.WriteRateLimit = 30
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}
