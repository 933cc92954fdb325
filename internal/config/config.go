package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the gateway.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Provider    ProviderConfig
	Chat        ChatConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	LocalStore  LocalStoreConfig
	JWT         JWTConfig
	Session     SessionConfig
	Guard       GuardConfig
	Readiness   ReadinessConfig
	Patches     PatchesConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ProviderConfig points at the hosted auth provider.
type ProviderConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// ChatConfig points at the chat backend endpoint.
type ChatConfig struct {
	URL     string
	Timeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	SlugTTL  time.Duration
}

type LocalStoreConfig struct {
	Path string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

// SessionConfig tunes the session store and role repair.
type SessionConfig struct {
	RefreshThrottle time.Duration
	RepairAttempts  int
	RepairDelay     time.Duration
}

// GuardConfig tunes the route protection window.
type GuardConfig struct {
	Window         time.Duration
	SensitiveRoute string
	LoginRoute     string
}

// ReadinessConfig tunes the readiness aggregator.
type ReadinessConfig struct {
	StallAfter time.Duration
}

// PatchesConfig controls the metadata patch queue drain.
type PatchesConfig struct {
	SyncInterval time.Duration
	BatchSize    int
	MaxRetry     int
	Retention    time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the gateway can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "sage-gateway"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Provider: ProviderConfig{
			URL:     getString("AUTH_PROVIDER_URL", "http://localhost:9999"),
			APIKey:  os.Getenv("AUTH_PROVIDER_KEY"),
			Timeout: getDuration("AUTH_PROVIDER_TIMEOUT", 10*time.Second),
		},
		Chat: ChatConfig{
			URL:     getString("CHAT_BACKEND_URL", "http://localhost:9100/api/chat"),
			Timeout: getDuration("CHAT_BACKEND_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "sagebright"),
			User:            getString("DB_USER", "sagebright"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			SlugTTL:  getDuration("REDIS_SLUG_TTL", 24*time.Hour),
		},
		LocalStore: LocalStoreConfig{
			Path: getString("LOCALSTORE_PATH", "./data/localstate.db"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "sage-gateway"),
		},
		Session: SessionConfig{
			RefreshThrottle: getDuration("SESSION_REFRESH_THROTTLE", 5*time.Second),
			RepairAttempts:  getInt("ROLE_REPAIR_ATTEMPTS", 3),
			RepairDelay:     getDuration("ROLE_REPAIR_DELAY", 500*time.Millisecond),
		},
		Guard: GuardConfig{
			Window:         getDuration("GUARD_WINDOW", 8*time.Second),
			SensitiveRoute: getString("GUARD_SENSITIVE_ROUTE", "/ask-sage"),
			LoginRoute:     getString("GUARD_LOGIN_ROUTE", "/login"),
		},
		Readiness: ReadinessConfig{
			StallAfter: getDuration("READINESS_STALL_AFTER", 12*time.Second),
		},
		Patches: PatchesConfig{
			SyncInterval: getDuration("PATCH_SYNC_INTERVAL", 30*time.Second),
			BatchSize:    getInt("PATCH_BATCH_SIZE", 50),
			MaxRetry:     getInt("PATCH_MAX_RETRY", 3),
			Retention:    getDuration("PATCH_RETENTION", 24*time.Hour),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
