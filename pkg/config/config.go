package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultHolidays is the holiday calendar used when SCHEDULING_HOLIDAYS is unset.
var DefaultHolidays = []string{
	"2025-12-08", "2025-12-09", "2025-12-24", "2025-12-25", "2025-12-31",
	"2026-01-01", "2026-04-02", "2026-04-03", "2026-04-05", "2026-05-01",
	"2026-06-29", "2026-07-28", "2026-07-29", "2026-08-30", "2026-10-08",
	"2026-11-01", "2026-12-08", "2026-12-25",
}

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Scheduling   SchedulingConfig
	Cache        CacheConfig
	ChangeFeed   ChangeFeedConfig
	StateRefresh StateRefreshConfig
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
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig anchors the calendar engine.
type SchedulingConfig struct {
	UTCOffsetHours int
	HorizonDays    int
	Holidays       []string
	ProgramsFile   string
	Catalog        CatalogConfig
}

// CatalogConfig is the optional program catalog loaded from ProgramsFile.
type CatalogConfig struct {
	Frequencies []FrequencyConfig `mapstructure:"frequencies"`
	Programs    []ProgramConfig   `mapstructure:"programs"`
}

// FrequencyConfig maps a label to weekday numbers, Sunday being 0.
type FrequencyConfig struct {
	Label    string   `mapstructure:"label"`
	Aliases  []string `mapstructure:"aliases"`
	Weekdays []int    `mapstructure:"weekdays"`
}

// ProgramConfig declares one program of the catalog.
type ProgramConfig struct {
	Name        string                   `mapstructure:"name"`
	Cycles      []int                    `mapstructure:"cycles"`
	Frequencies []ProgramFrequencyConfig `mapstructure:"frequencies"`
}

// ProgramFrequencyConfig is the session count of a program at one frequency.
type ProgramFrequencyConfig struct {
	Frequency string `mapstructure:"frequency"`
	Sessions  int    `mapstructure:"sessions"`
	Duration  string `mapstructure:"duration"`
}

// CacheConfig governs the redis read cache for aulas.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ChangeFeedConfig governs the redis pub/sub change feed.
type ChangeFeedConfig struct {
	Enabled bool
	Channel string
}

// StateRefreshConfig tunes the background state refresher.
type StateRefreshConfig struct {
	Interval time.Duration
	Workers  int
	Retries  int
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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET"), Issuer: v.GetString("JWT_ISSUER")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	holidays := splitAndTrim(v.GetString("SCHEDULING_HOLIDAYS"))
	if len(holidays) == 0 {
		holidays = append([]string(nil), DefaultHolidays...)
	}
	horizon := v.GetInt("SCHEDULING_HORIZON_DAYS")
	if horizon <= 0 {
		horizon = 365
	}
	cfg.Scheduling = SchedulingConfig{
		UTCOffsetHours: v.GetInt("SCHEDULING_UTC_OFFSET_HOURS"),
		HorizonDays:    horizon,
		Holidays:       holidays,
		ProgramsFile:   v.GetString("SCHEDULING_PROGRAMS_FILE"),
	}
	if cfg.Scheduling.ProgramsFile != "" {
		catalog, err := LoadCatalog(cfg.Scheduling.ProgramsFile)
		if err != nil {
			return nil, err
		}
		cfg.Scheduling.Catalog = catalog
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.ChangeFeed = ChangeFeedConfig{
		Enabled: v.GetBool("ENABLE_CHANGE_FEED"),
		Channel: v.GetString("CHANGE_FEED_CHANNEL"),
	}

	workers := v.GetInt("STATE_REFRESH_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.StateRefresh = StateRefreshConfig{
		Interval: parseDuration(v.GetString("STATE_REFRESH_INTERVAL"), 10*time.Minute),
		Workers:  workers,
		Retries:  v.GetInt("STATE_REFRESH_RETRIES"),
	}

	return cfg, nil
}

// LoadCatalog reads a YAML or JSON program catalog.
func LoadCatalog(path string) (CatalogConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return CatalogConfig{}, fmt.Errorf("read programs file: %w", err)
	}
	var catalog CatalogConfig
	if err := v.Unmarshal(&catalog); err != nil {
		return CatalogConfig{}, fmt.Errorf("decode programs file: %w", err)
	}
	return catalog, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sfd_aulas")
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

	v.SetDefault("SCHEDULING_UTC_OFFSET_HOURS", -5)
	v.SetDefault("SCHEDULING_HORIZON_DAYS", 365)
	v.SetDefault("SCHEDULING_HOLIDAYS", "")
	v.SetDefault("SCHEDULING_PROGRAMS_FILE", "")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("ENABLE_CHANGE_FEED", true)
	v.SetDefault("CHANGE_FEED_CHANNEL", "aulas:changes")

	v.SetDefault("STATE_REFRESH_INTERVAL", "10m")
	v.SetDefault("STATE_REFRESH_WORKERS", 2)
	v.SetDefault("STATE_REFRESH_RETRIES", 2)
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
