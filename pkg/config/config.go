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
	Warehouse WarehouseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Hydra     HydraConfig
	Exports   ExportsConfig
	Scheduler SchedulerConfig
}

// DatabaseConfig is the Postgres store holding report definitions.
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

// WarehouseConfig is the connection used only for materialization checks
// against information_schema.
type WarehouseConfig struct {
	DSN    string
	Schema string
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

// HydraConfig points at the metadata/identity service.
type HydraConfig struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ExportsConfig caps compiled result sets and locates schedule artifacts.
type ExportsConfig struct {
	RowLimit        int
	PreviewRowLimit int
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// SchedulerConfig governs the planned-report compile loop.
type SchedulerConfig struct {
	Enabled       bool
	CronSpec      string
	Dialect       string
	Workers       int
	Retries       int
	QueueCapacity int
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

	cfg.Warehouse = WarehouseConfig{
		DSN:    v.GetString("WAREHOUSE_DSN"),
		Schema: v.GetString("WAREHOUSE_SCHEMA"),
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

	cfg.Hydra = HydraConfig{
		BaseURL:  v.GetString("HYDRA_BASE_URL"),
		Token:    v.GetString("HYDRA_TOKEN"),
		Timeout:  parseDuration(v.GetString("HYDRA_TIMEOUT"), 10*time.Second),
		CacheTTL: parseDuration(v.GetString("HYDRA_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		RowLimit:        v.GetInt("EXPORT_ROW_LIMIT"),
		PreviewRowLimit: v.GetInt("PREVIEW_ROW_LIMIT"),
		StorageDir:      v.GetString("EXPORT_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORT_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORT_SIGNED_URL_TTL"), 24*time.Hour),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:       v.GetBool("ENABLE_SCHEDULER"),
		CronSpec:      v.GetString("SCHEDULER_CRON"),
		Dialect:       v.GetString("SCHEDULER_DIALECT"),
		Workers:       v.GetInt("SCHEDULER_WORKERS"),
		Retries:       v.GetInt("SCHEDULER_RETRIES"),
		QueueCapacity: v.GetInt("SCHEDULER_QUEUE_CAPACITY"),
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
	v.SetDefault("DB_NAME", "report_engine")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("WAREHOUSE_DSN", "")
	v.SetDefault("WAREHOUSE_SCHEMA", "public")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("HYDRA_BASE_URL", "http://localhost:8081")
	v.SetDefault("HYDRA_TOKEN", "")
	v.SetDefault("HYDRA_TIMEOUT", "10s")
	v.SetDefault("HYDRA_CACHE_TTL", "5m")

	v.SetDefault("EXPORT_ROW_LIMIT", 100000)
	v.SetDefault("PREVIEW_ROW_LIMIT", 10)
	v.SetDefault("EXPORT_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORT_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORT_SIGNED_URL_TTL", "24h")

	v.SetDefault("ENABLE_SCHEDULER", false)
	v.SetDefault("SCHEDULER_CRON", "0 * * * *")
	v.SetDefault("SCHEDULER_DIALECT", "athena")
	v.SetDefault("SCHEDULER_WORKERS", 2)
	v.SetDefault("SCHEDULER_RETRIES", 3)
	v.SetDefault("SCHEDULER_QUEUE_CAPACITY", 64)
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
