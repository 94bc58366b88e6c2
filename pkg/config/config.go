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

const (
	DraftStoreRedis  = "redis"
	DraftStoreMemory = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Upstream  UpstreamConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Drafts    DraftConfig
	Reference ReferenceConfig
	Journal   JournalConfig
	Exports   ExportsConfig
}

// UpstreamConfig points the gateway at the school REST backend.
type UpstreamConfig struct {
	BaseURL             string
	Timeout             time.Duration
	MaxConcurrentWrites int
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DraftConfig controls where authoring sessions live and how long they survive.
type DraftConfig struct {
	Store            string
	TTL              time.Duration
	SubmitLockTTL    time.Duration
	EditLockWait     time.Duration
	EnforceDateOrder bool
}

// ReferenceConfig toggles caching of subject/teacher lookups per school.
type ReferenceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// JournalConfig governs the submission journal writer.
type JournalConfig struct {
	Enabled bool
	Workers int
	Retries int
}

// ExportsConfig configures timetable export storage and signed download links.
type ExportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Upstream = UpstreamConfig{
		BaseURL:             strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
		Timeout:             parseDuration(v.GetString("UPSTREAM_TIMEOUT"), 15*time.Second),
		MaxConcurrentWrites: v.GetInt("UPSTREAM_MAX_CONCURRENT_WRITES"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	store := strings.ToLower(strings.TrimSpace(v.GetString("DRAFT_STORE")))
	if store != DraftStoreMemory {
		store = DraftStoreRedis
	}
	cfg.Drafts = DraftConfig{
		Store:            store,
		TTL:              parseDuration(v.GetString("DRAFT_TTL"), 2*time.Hour),
		SubmitLockTTL:    parseDuration(v.GetString("DRAFT_SUBMIT_LOCK_TTL"), time.Minute),
		EditLockWait:     parseDuration(v.GetString("DRAFT_EDIT_LOCK_WAIT"), 500*time.Millisecond),
		EnforceDateOrder: v.GetBool("DRAFT_ENFORCE_DATE_ORDER"),
	}

	cfg.Reference = ReferenceConfig{
		CacheEnabled: v.GetBool("ENABLE_REFERENCE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("REFERENCE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Journal = JournalConfig{
		Enabled: v.GetBool("ENABLE_JOURNAL"),
		Workers: v.GetInt("JOURNAL_WORKERS"),
		Retries: v.GetInt("JOURNAL_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:         v.GetBool("ENABLE_EXPORTS"),
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8081)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:8080/api")
	v.SetDefault("UPSTREAM_TIMEOUT", "15s")
	v.SetDefault("UPSTREAM_MAX_CONCURRENT_WRITES", 0)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "class_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DRAFT_STORE", DraftStoreRedis)
	v.SetDefault("DRAFT_TTL", "2h")
	v.SetDefault("DRAFT_SUBMIT_LOCK_TTL", "1m")
	v.SetDefault("DRAFT_EDIT_LOCK_WAIT", "500ms")
	v.SetDefault("DRAFT_ENFORCE_DATE_ORDER", false)

	v.SetDefault("ENABLE_REFERENCE_CACHE", false)
	v.SetDefault("REFERENCE_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_JOURNAL", false)
	v.SetDefault("JOURNAL_WORKERS", 1)
	v.SetDefault("JOURNAL_RETRIES", 3)

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
}

// isMissingFile reports a missing explicit .env file, which viper surfaces as a
// plain fs error rather than ConfigFileNotFoundError when SetConfigFile is used.
func isMissingFile(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
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
