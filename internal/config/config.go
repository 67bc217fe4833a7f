package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Gateway  GatewayConfig
	Tickets  TicketConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how inbound interaction webhooks are verified.
type AuthConfig struct {
	JWTSecret string
}

// GatewayConfig points at the chat platform API used for channel
// provisioning and message delivery.
type GatewayConfig struct {
	BaseURL        string
	BotToken       string
	BotPrincipalID string
	TimeoutSeconds int
}

// TicketConfig tunes the ticket workflow.
type TicketConfig struct {
	ChannelPrefix        string
	ConfirmWindowSeconds int
	DeleteDelaySeconds   int
	ConfigCacheTTLSec    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("GATEWAY_BASE_URL", "http://127.0.0.1:9090"),
			BotToken:       os.Getenv("GATEWAY_BOT_TOKEN"),
			BotPrincipalID: getEnv("GATEWAY_BOT_PRINCIPAL_ID", "bot"),
			TimeoutSeconds: getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 10),
		},
		Tickets: TicketConfig{
			ChannelPrefix:        getEnv("TICKET_CHANNEL_PREFIX", "ticket"),
			ConfirmWindowSeconds: getEnvAsInt("TICKET_CONFIRM_WINDOW_SECONDS", 30),
			DeleteDelaySeconds:   getEnvAsInt("TICKET_DELETE_DELAY_SECONDS", 3),
			ConfigCacheTTLSec:    getEnvAsInt("TICKET_CONFIG_CACHE_TTL_SECONDS", 60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the gateway HTTP client timeout.
func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// ConfirmWindow returns the confirmation gate expiry window.
func (t TicketConfig) ConfirmWindow() time.Duration {
	if t.ConfirmWindowSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.ConfirmWindowSeconds) * time.Second
}

// DeleteDelay returns the grace period before channel removal so that
// delivered notifications can land.
func (t TicketConfig) DeleteDelay() time.Duration {
	if t.DeleteDelaySeconds < 0 {
		return 0
	}
	return time.Duration(t.DeleteDelaySeconds) * time.Second
}

// ConfigCacheTTL returns how long workspace configuration may be served
// from cache.
func (t TicketConfig) ConfigCacheTTL() time.Duration {
	if t.ConfigCacheTTLSec <= 0 {
		return time.Minute
	}
	return time.Duration(t.ConfigCacheTTLSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
