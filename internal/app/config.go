package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/lessonbank-backend/internal/data/db"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Search     SearchConfig     `mapstructure:"search"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Embed      EmbedConfig      `mapstructure:"embed"`
	Aggregates AggregatesConfig `mapstructure:"aggregates"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port          string   `mapstructure:"port"`
	Mode          string   `mapstructure:"mode"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
	RatePerSecond float64  `mapstructure:"rate_per_second"`
	RateBurst     int      `mapstructure:"rate_burst"`
}

type PostgresConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Name         string        `mapstructure:"name"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	SlowQuery    time.Duration `mapstructure:"slow_query"`
	Migrate      bool          `mapstructure:"migrate"`
}

func (c PostgresConfig) ServiceConfig() db.PostgresConfig {
	return db.PostgresConfig{
		Host:         c.Host,
		Port:         c.Port,
		User:         c.User,
		Password:     c.Password,
		Name:         c.Name,
		SSLMode:      c.SSLMode,
		MaxOpenConns: c.MaxOpenConns,
		MaxIdleConns: c.MaxIdleConns,
		SlowQuery:    c.SlowQuery,
	}
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	EmbedTTL time.Duration `mapstructure:"embed_ttl"`
}

type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"jwt_secret_key"`
	Issuer       string        `mapstructure:"issuer"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
}

type SearchConfig struct {
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	VocabularyTTL   time.Duration `mapstructure:"vocabulary_ttl"`
}

type DedupConfig struct {
	EmbeddingThreshold float64 `mapstructure:"embedding_threshold"`
	EmbeddingLimit     int     `mapstructure:"embedding_limit"`
	TitleThreshold     float64 `mapstructure:"title_threshold"`
	TitleLimit         int     `mapstructure:"title_limit"`
	MaxCandidates      int     `mapstructure:"max_candidates"`
}

type EmbedConfig struct {
	CacheSize  int `mapstructure:"cache_size"`
	MaxTokens  int `mapstructure:"max_tokens"`
	Dimensions int `mapstructure:"dimensions"`
}

type AggregatesConfig struct {
	TxAttempts int           `mapstructure:"tx_attempts"`
	TxBackoff  time.Duration `mapstructure:"tx_backoff"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	Tracing     bool   `mapstructure:"tracing"`
}

var envBindings = map[string]string{
	"server.port":               "PORT",
	"server.mode":               "LOG_MODE",
	"server.cors_origins":       "CORS_ORIGINS",
	"server.rate_per_second":    "RATE_LIMIT_PER_SECOND",
	"server.rate_burst":         "RATE_LIMIT_BURST",
	"postgres.host":             "POSTGRES_HOST",
	"postgres.port":             "POSTGRES_PORT",
	"postgres.user":             "POSTGRES_USER",
	"postgres.password":         "POSTGRES_PASSWORD",
	"postgres.name":             "POSTGRES_NAME",
	"postgres.sslmode":          "POSTGRES_SSLMODE",
	"postgres.max_open_conns":   "POSTGRES_MAX_OPEN_CONNS",
	"postgres.max_idle_conns":   "POSTGRES_MAX_IDLE_CONNS",
	"postgres.slow_query":       "POSTGRES_SLOW_QUERY",
	"postgres.migrate":          "POSTGRES_MIGRATE",
	"redis.addr":                "REDIS_ADDR",
	"redis.password":            "REDIS_PASSWORD",
	"redis.db":                  "REDIS_DB",
	"redis.embed_ttl":           "REDIS_EMBED_TTL",
	"auth.jwt_secret_key":       "JWT_SECRET_KEY",
	"auth.issuer":               "JWT_ISSUER",
	"auth.access_ttl":           "ACCESS_TOKEN_TTL",
	"search.default_page_size":  "SEARCH_DEFAULT_PAGE_SIZE",
	"search.max_page_size":      "SEARCH_MAX_PAGE_SIZE",
	"search.vocabulary_ttl":     "SEARCH_VOCABULARY_TTL",
	"dedup.embedding_threshold": "DEDUP_EMBEDDING_THRESHOLD",
	"dedup.embedding_limit":     "DEDUP_EMBEDDING_LIMIT",
	"dedup.title_threshold":     "DEDUP_TITLE_THRESHOLD",
	"dedup.title_limit":         "DEDUP_TITLE_LIMIT",
	"dedup.max_candidates":      "DEDUP_MAX_CANDIDATES",
	"embed.cache_size":          "EMBED_CACHE_SIZE",
	"embed.max_tokens":          "EMBED_MAX_TOKENS",
	"embed.dimensions":          "OPENAI_EMBED_DIMENSIONS",
	"aggregates.tx_attempts":    "AGGREGATE_TX_ATTEMPTS",
	"aggregates.tx_backoff":     "AGGREGATE_TX_BACKOFF",
	"telemetry.service_name":    "OTEL_SERVICE_NAME",
	"telemetry.environment":     "DEPLOY_ENV",
	"telemetry.version":         "APP_VERSION",
	"telemetry.metrics_addr":    "METRICS_ADDR",
	"telemetry.tracing":         "OTEL_ENABLED",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_per_second", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.name", "lessonbank")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.slow_query", time.Second)
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("redis.embed_ttl", 7*24*time.Hour)
	v.SetDefault("auth.issuer", "lessonbank")
	v.SetDefault("auth.access_ttl", time.Hour)
	v.SetDefault("search.default_page_size", 20)
	v.SetDefault("search.max_page_size", 100)
	v.SetDefault("search.vocabulary_ttl", 5*time.Minute)
	v.SetDefault("dedup.embedding_threshold", 0.5)
	v.SetDefault("dedup.embedding_limit", 10)
	v.SetDefault("dedup.title_threshold", 0.3)
	v.SetDefault("dedup.title_limit", 10)
	v.SetDefault("dedup.max_candidates", 20)
	v.SetDefault("embed.cache_size", 1000)
	v.SetDefault("embed.max_tokens", 8000)
	v.SetDefault("embed.dimensions", 1536)
	v.SetDefault("aggregates.tx_attempts", 3)
	v.SetDefault("aggregates.tx_backoff", 50*time.Millisecond)
	v.SetDefault("telemetry.service_name", "lessonbank")
	v.SetDefault("telemetry.environment", "development")
}

// LoadConfig reads config.yaml from the given dirs when present; environment
// variables override file values.
func LoadConfig(paths ...string) (Config, error) {
	cfg, err := ReadConfig(paths...)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

// ReadConfig is LoadConfig without the server checks, for offline tools.
func ReadConfig(paths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(strings.Join(cfg.Server.CORSOrigins, ","))
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecretKey) == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.default_page_size %d exceeds max_page_size %d", c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	if c.Dedup.EmbeddingThreshold < 0 || c.Dedup.EmbeddingThreshold > 1 {
		return fmt.Errorf("dedup.embedding_threshold %v outside [0,1]", c.Dedup.EmbeddingThreshold)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
