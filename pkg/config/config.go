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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Model      ModelConfig
	Extraction ExtractionConfig
	Planner    PlannerConfig
	Export     ExportConfig
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
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ModelConfig points the adapter at an OpenAI-compatible chat gateway.
type ModelConfig struct {
	BaseURL         string
	APIKey          string
	Name            string
	Timeout         time.Duration
	MaxOutputTokens int
}

// ExtractionConfig tunes the topic-extraction pipeline.
type ExtractionConfig struct {
	StaleJobThreshold time.Duration
	MaxTopicsPerRun   int
	UserTopicQuota    int
	InputCharBudget   int
	MaxRunsPerHour    int
}

// PlannerConfig tunes the study-plan generator.
type PlannerConfig struct {
	HorizonCapDays    int
	DefaultDailyHours float64
	RepairAttempts    int
	PlanCacheTTL      time.Duration
}

// ExportConfig gates the plan export endpoint.
type ExportConfig struct {
	Enabled bool
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

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Model = ModelConfig{
		BaseURL:         v.GetString("MODEL_BASE_URL"),
		APIKey:          v.GetString("MODEL_API_KEY"),
		Name:            v.GetString("MODEL_NAME"),
		Timeout:         parseDuration(v.GetString("MODEL_TIMEOUT"), 60*time.Second),
		MaxOutputTokens: v.GetInt("MODEL_MAX_OUTPUT_TOKENS"),
	}

	cfg.Extraction = ExtractionConfig{
		StaleJobThreshold: parseDuration(v.GetString("EXTRACTION_STALE_THRESHOLD"), 5*time.Minute),
		MaxTopicsPerRun:   v.GetInt("EXTRACTION_MAX_TOPICS_PER_RUN"),
		UserTopicQuota:    v.GetInt("EXTRACTION_USER_TOPIC_QUOTA"),
		InputCharBudget:   v.GetInt("EXTRACTION_INPUT_CHAR_BUDGET"),
		MaxRunsPerHour:    v.GetInt("EXTRACTION_MAX_RUNS_PER_HOUR"),
	}

	cfg.Planner = PlannerConfig{
		HorizonCapDays:    v.GetInt("PLANNER_HORIZON_CAP_DAYS"),
		DefaultDailyHours: v.GetFloat64("PLANNER_DEFAULT_DAILY_HOURS"),
		RepairAttempts:    v.GetInt("PLANNER_REPAIR_ATTEMPTS"),
		PlanCacheTTL:      parseDuration(v.GetString("PLANNER_PLAN_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Export = ExportConfig{
		Enabled: v.GetBool("ENABLE_PLAN_EXPORT"),
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
	v.SetDefault("DB_NAME", "studyplan")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MODEL_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("MODEL_API_KEY", "")
	v.SetDefault("MODEL_NAME", "gpt-4o-mini")
	v.SetDefault("MODEL_TIMEOUT", "60s")
	v.SetDefault("MODEL_MAX_OUTPUT_TOKENS", 4096)

	v.SetDefault("EXTRACTION_STALE_THRESHOLD", "5m")
	v.SetDefault("EXTRACTION_MAX_TOPICS_PER_RUN", 50)
	v.SetDefault("EXTRACTION_USER_TOPIC_QUOTA", 300)
	v.SetDefault("EXTRACTION_INPUT_CHAR_BUDGET", 30000)
	v.SetDefault("EXTRACTION_MAX_RUNS_PER_HOUR", 10)

	v.SetDefault("PLANNER_HORIZON_CAP_DAYS", 90)
	v.SetDefault("PLANNER_DEFAULT_DAILY_HOURS", 3)
	v.SetDefault("PLANNER_REPAIR_ATTEMPTS", 1)
	v.SetDefault("PLANNER_PLAN_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_PLAN_EXPORT", true)
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
