package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultCookieHashKey is the development signing key. Production refuses it.
const DefaultCookieHashKey = "dev_cookie_hash_key_change_me_32b"

// ErrDefaultCookieKey is returned by Validate when production runs on the development signing key.
var ErrDefaultCookieKey = errors.New("SESSION_COOKIE_HASH_KEY must be set in production")

// Supported storage backends.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	Session       SessionConfig
	Queue         QueueConfig
	Notifications NotificationConfig
	CORS          CORSConfig
	Log           LogConfig
	Admin         AdminConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	SQLitePath   string
	AutoMigrate  bool
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig controls token lifetime and the cookie that carries it.
type SessionConfig struct {
	Store          string
	TTL            time.Duration
	SingleSession  bool
	CookieName     string
	CookieHashKey  string
	CookieBlockKey string
	CookieSecure   bool
}

// QueueConfig tunes wait-time estimates and stats caching.
type QueueConfig struct {
	UnitServiceTime   time.Duration
	StatsCacheEnabled bool
	StatsCacheTTL     time.Duration
}

// NotificationConfig sizes the status-change notification worker pool.
type NotificationConfig struct {
	Enabled bool
	Workers int
	Retries int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// AdminConfig seeds an ADMIN account at startup when Password is set.
type AdminConfig struct {
	Identity string
	Email    string
	Password string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that are unsafe for the configured environment.
func (c *Config) Validate() error {
	if c.Env == EnvProduction && (c.Session.CookieHashKey == "" || c.Session.CookieHashKey == DefaultCookieHashKey) {
		return ErrDefaultCookieKey
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		SQLitePath:   v.GetString("DB_SQLITE_PATH"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		Store:          strings.ToLower(v.GetString("SESSION_STORE")),
		TTL:            parseDuration(v.GetString("SESSION_TTL"), 5*time.Minute),
		SingleSession:  v.GetBool("SESSION_SINGLE"),
		CookieName:     v.GetString("SESSION_COOKIE_NAME"),
		CookieHashKey:  v.GetString("SESSION_COOKIE_HASH_KEY"),
		CookieBlockKey: v.GetString("SESSION_COOKIE_BLOCK_KEY"),
		CookieSecure:   v.GetBool("SESSION_COOKIE_SECURE"),
	}

	cfg.Queue = QueueConfig{
		UnitServiceTime:   parseDuration(v.GetString("QUEUE_UNIT_SERVICE_TIME"), 15*time.Minute),
		StatsCacheEnabled: v.GetBool("QUEUE_STATS_CACHE_ENABLED"),
		StatsCacheTTL:     parseDuration(v.GetString("QUEUE_STATS_CACHE_TTL"), 30*time.Second),
	}

	cfg.Notifications = NotificationConfig{
		Enabled: v.GetBool("NOTIFY_ENABLED"),
		Workers: v.GetInt("NOTIFY_WORKERS"),
		Retries: v.GetInt("NOTIFY_RETRIES"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admin = AdminConfig{
		Identity: v.GetString("ADMIN_IDENTITY"),
		Email:    v.GetString("ADMIN_EMAIL"),
		Password: v.GetString("ADMIN_PASSWORD"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverMemory)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "cms_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "./cms.db")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SESSION_STORE", DriverMemory)
	v.SetDefault("SESSION_TTL", "5m")
	v.SetDefault("SESSION_SINGLE", false)
	v.SetDefault("SESSION_COOKIE_NAME", "CMS_Session")
	v.SetDefault("SESSION_COOKIE_HASH_KEY", DefaultCookieHashKey)
	v.SetDefault("SESSION_COOKIE_BLOCK_KEY", "")
	v.SetDefault("SESSION_COOKIE_SECURE", false)

	v.SetDefault("QUEUE_UNIT_SERVICE_TIME", "15m")
	v.SetDefault("QUEUE_STATS_CACHE_ENABLED", false)
	v.SetDefault("QUEUE_STATS_CACHE_TTL", "30s")

	v.SetDefault("NOTIFY_ENABLED", true)
	v.SetDefault("NOTIFY_WORKERS", 1)
	v.SetDefault("NOTIFY_RETRIES", 3)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADMIN_IDENTITY", "admin")
	v.SetDefault("ADMIN_EMAIL", "admin@campus.local")
	v.SetDefault("ADMIN_PASSWORD", "")
}

// viper reports a missing explicit config file as a plain fs error.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
