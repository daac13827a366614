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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Schedules SchedulesConfig
	Runner    RunnerConfig
	Artifacts ArtifactsConfig
	SMTP      SMTPConfig
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

// SchedulesConfig governs schedule defaults and the preview surface.
type SchedulesConfig struct {
	DefaultTimezone string
	PreviewCount    int
	ListCacheTTL    time.Duration
}

// RunnerConfig controls the due-schedule scan and delivery workers.
type RunnerConfig struct {
	Enabled           bool
	TickSpec          string
	ClaimBatchSize    int
	WorkerConcurrency int
	WorkerRetries     int
	RunLockTTL        time.Duration
}

// ArtifactsConfig controls rendered-report storage and signed downloads.
type ArtifactsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// SMTPConfig configures outbound report delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.Schedules = SchedulesConfig{
		DefaultTimezone: v.GetString("SCHEDULES_DEFAULT_TIMEZONE"),
		PreviewCount:    v.GetInt("SCHEDULES_PREVIEW_COUNT"),
		ListCacheTTL:    parseDuration(v.GetString("SCHEDULES_LIST_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Runner = RunnerConfig{
		Enabled:           v.GetBool("ENABLE_RUNNER"),
		TickSpec:          v.GetString("RUNNER_TICK_SPEC"),
		ClaimBatchSize:    v.GetInt("RUNNER_CLAIM_BATCH_SIZE"),
		WorkerConcurrency: v.GetInt("RUNNER_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("RUNNER_WORKER_RETRIES"),
		RunLockTTL:        parseDuration(v.GetString("RUNNER_RUN_LOCK_TTL"), 10*time.Minute),
	}

	cfg.Artifacts = ArtifactsConfig{
		StorageDir:      v.GetString("ARTIFACTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("ARTIFACTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("ARTIFACTS_SIGNED_URL_TTL"), 72*time.Hour),
		ResultTTL:       parseDuration(v.GetString("ARTIFACTS_RESULT_TTL"), 30*24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("ARTIFACTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		From:     v.GetString("SMTP_FROM"),
		Password: v.GetString("SMTP_PASSWORD"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "reports_company")
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

	v.SetDefault("SCHEDULES_DEFAULT_TIMEZONE", "America/Los_Angeles")
	v.SetDefault("SCHEDULES_PREVIEW_COUNT", 3)
	v.SetDefault("SCHEDULES_LIST_CACHE_TTL", "2m")

	v.SetDefault("ENABLE_RUNNER", true)
	v.SetDefault("RUNNER_TICK_SPEC", "@every 1m")
	v.SetDefault("RUNNER_CLAIM_BATCH_SIZE", 50)
	v.SetDefault("RUNNER_WORKER_CONCURRENCY", 2)
	v.SetDefault("RUNNER_WORKER_RETRIES", 3)
	v.SetDefault("RUNNER_RUN_LOCK_TTL", "10m")

	v.SetDefault("ARTIFACTS_STORAGE_DIR", "./artifacts")
	v.SetDefault("ARTIFACTS_SIGNED_URL_SECRET", "dev_artifacts_secret")
	v.SetDefault("ARTIFACTS_SIGNED_URL_TTL", "72h")
	v.SetDefault("ARTIFACTS_RESULT_TTL", "720h")
	v.SetDefault("ARTIFACTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "reports@example.com")
	v.SetDefault("SMTP_PASSWORD", "")
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
