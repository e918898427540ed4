package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	LLMProviderGemini = "gemini"
	LLMProviderOpenAI = "openai"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	DB            DBConfig
	Query         QueryConfig
	LLM           LLMConfig
	Session       SessionConfig
	ObjectStore   ObjectStoreConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DBConfig describes the transit store. DSN wins over the discrete
// host/port/user/password/name parameters when both are set.
type DBConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type QueryConfig struct {
	Timeout time.Duration
	Guard   bool
}

type LLMConfig struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float64
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// retryJitterCeiling bounds one backoff wait as a multiple of the base delay:
// the interval is capped at ten base delays and jittered by up to half.
const retryJitterCeiling = 15

// CallBudget is the longest one model call can take with every retry and
// backoff wait used.
func (c LLMConfig) CallBudget() time.Duration {
	retries := time.Duration(max(c.MaxRetries, 0))
	return (retries+1)*c.Timeout + retries*retryJitterCeiling*c.RetryBaseDelay
}

type SessionConfig struct {
	WindowSize      int
	IdleTimeout     time.Duration
	JanitorInterval time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ArchiveConfig struct {
	BatchSize int
	Interval  time.Duration
	// Retention is how long archived chat log rows stay in the relational
	// store. Zero keeps them forever.
	Retention time.Duration
	// SettleLag holds back rows younger than this so that turns still
	// committing below the archive cursor are not skipped. It must exceed
	// the longest chat request.
	SettleLag time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// LoadFromEnv reads an optional .env file in the working directory before
// resolving the process environment. Variables already set are not overridden.
func LoadFromEnv(serviceName string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("BUSASSIST_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid BUSASSIST_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "BUSASSIST_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "BUSASSIST_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "BUSASSIST_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "BUSASSIST_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "BUSASSIST_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },

		// Unprefixed names match the deployment .env files of the original service.
		func() error { return applyString(lookup, "DB_HOST", &cfg.DB.Host) },
		func() error { return applyInt(lookup, "DB_PORT", &cfg.DB.Port) },
		func() error { return applyString(lookup, "DB_USER", &cfg.DB.User) },
		func() error { return applyString(lookup, "DB_PASSWORD", &cfg.DB.Password) },
		func() error { return applyString(lookup, "DB_NAME", &cfg.DB.Name) },
		func() error { return applyString(lookup, "BUSASSIST_DB_DRIVER", &cfg.DB.Driver) },
		func() error { return applyString(lookup, "BUSASSIST_DB_DSN", &cfg.DB.DSN) },
		func() error { return applyInt(lookup, "BUSASSIST_DB_MAX_OPEN_CONNS", &cfg.DB.MaxOpenConns) },
		func() error { return applyInt(lookup, "BUSASSIST_DB_MAX_IDLE_CONNS", &cfg.DB.MaxIdleConns) },
		func() error { return applyDuration(lookup, "BUSASSIST_DB_CONN_MAX_IDLE_TIME", &cfg.DB.ConnMaxIdleTime) },
		func() error { return applyDuration(lookup, "BUSASSIST_DB_CONN_MAX_LIFETIME", &cfg.DB.ConnMaxLifetime) },

		func() error { return applyDuration(lookup, "BUSASSIST_QUERY_TIMEOUT", &cfg.Query.Timeout) },
		func() error { return applyBool(lookup, "BUSASSIST_SQL_GUARD", &cfg.Query.Guard) },

		func() error { return applyString(lookup, "BUSASSIST_LLM_PROVIDER", &cfg.LLM.Provider) },
		func() error { return applyString(lookup, "BUSASSIST_LLM_BASE_URL", &cfg.LLM.BaseURL) },
		func() error { return applyString(lookup, "GEMINI_API_KEY", &cfg.LLM.APIKey) },
		func() error { return applyString(lookup, "BUSASSIST_LLM_API_KEY", &cfg.LLM.APIKey) },
		func() error { return applyString(lookup, "BUSASSIST_LLM_MODEL", &cfg.LLM.Model) },
		func() error { return applyFloat(lookup, "BUSASSIST_LLM_TEMPERATURE", &cfg.LLM.Temperature) },
		func() error { return applyDuration(lookup, "BUSASSIST_LLM_TIMEOUT", &cfg.LLM.Timeout) },
		func() error { return applyInt(lookup, "BUSASSIST_LLM_MAX_RETRIES", &cfg.LLM.MaxRetries) },
		func() error { return applyDuration(lookup, "BUSASSIST_LLM_RETRY_BASE_DELAY", &cfg.LLM.RetryBaseDelay) },

		func() error { return applyInt(lookup, "BUSASSIST_SESSION_WINDOW_SIZE", &cfg.Session.WindowSize) },
		func() error { return applyDuration(lookup, "BUSASSIST_SESSION_IDLE_TIMEOUT", &cfg.Session.IdleTimeout) },
		func() error { return applyDuration(lookup, "BUSASSIST_SESSION_JANITOR_INTERVAL", &cfg.Session.JanitorInterval) },

		func() error { return applyString(lookup, "BUSASSIST_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "BUSASSIST_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "BUSASSIST_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "BUSASSIST_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error { return applyString(lookup, "BUSASSIST_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey) },
		func() error { return applyBool(lookup, "BUSASSIST_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "BUSASSIST_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "BUSASSIST_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyInt(lookup, "BUSASSIST_ARCHIVE_BATCH_SIZE", &cfg.Archive.BatchSize) },
		func() error { return applyDuration(lookup, "BUSASSIST_ARCHIVE_INTERVAL", &cfg.Archive.Interval) },
		func() error { return applyDuration(lookup, "BUSASSIST_ARCHIVE_RETENTION", &cfg.Archive.Retention) },
		func() error { return applyDuration(lookup, "BUSASSIST_ARCHIVE_SETTLE_LAG", &cfg.Archive.SettleLag) },

		func() error { return applyBool(lookup, "BUSASSIST_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "BUSASSIST_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "BUSASSIST_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "BUSASSIST_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.DB.Driver = strings.ToLower(cfg.DB.Driver)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = cfg.ChatBudget() + chatWriteMargin
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if !isValidDriver(cfg.DB.Driver) {
		return Config{}, fmt.Errorf("invalid BUSASSIST_DB_DRIVER: %q", cfg.DB.Driver)
	}
	if !isValidProvider(cfg.LLM.Provider) {
		return Config{}, fmt.Errorf("invalid BUSASSIST_LLM_PROVIDER: %q", cfg.LLM.Provider)
	}
	if cfg.Session.WindowSize <= 0 {
		return Config{}, fmt.Errorf("session window size must be > 0")
	}
	if cfg.LLM.MaxRetries < 0 {
		return Config{}, fmt.Errorf("llm max retries must be >= 0")
	}
	if cfg.Archive.Retention < 0 {
		return Config{}, fmt.Errorf("archive retention must be >= 0")
	}
	if cfg.Archive.SettleLag < 0 {
		return Config{}, fmt.Errorf("archive settle lag must be >= 0")
	}
	return cfg, nil
}

const chatWriteMargin = 5 * time.Second

// ChatBudget is the worst case for one /chat request: SQL generation and
// reply formatting each spend a full model CallBudget around one query.
// An unset BUSASSIST_HTTP_WRITE_TIMEOUT is derived from it.
func (c Config) ChatBudget() time.Duration {
	return 2*c.LLM.CallBudget() + c.Query.Timeout
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "busassist-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		DB: DBConfig{
			Driver:          "mysql",
			MaxOpenConns:    20,
			MaxIdleConns:    20,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Query: QueryConfig{
			Timeout: 10 * time.Second,
			Guard:   true,
		},
		LLM: LLMConfig{
			Provider:       LLMProviderGemini,
			BaseURL:        "https://api.openai.com",
			Model:          "gemini-1.5-flash",
			Temperature:    0.1,
			Timeout:        20 * time.Second,
			MaxRetries:     2,
			RetryBaseDelay: 500 * time.Millisecond,
		},
		Session: SessionConfig{
			WindowSize:      5,
			IdleTimeout:     30 * time.Minute,
			JanitorInterval: time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "busassist",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Archive: ArchiveConfig{
			BatchSize: 1000,
			Interval:  5 * time.Minute,
			SettleLag: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
		cfg.LLM.MaxRetries = 0
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidDriver(driver string) bool {
	switch driver {
	case "postgres", "mysql", "duckdb":
		return true
	default:
		return false
	}
}

func isValidProvider(provider string) bool {
	switch provider {
	case LLMProviderGemini, LLMProviderOpenAI:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
