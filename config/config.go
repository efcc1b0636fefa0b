// Package config provides configuration management for the application.
//
// Values are resolved in three layers: built-in defaults, an optional
// config.yaml (with ${VAR} and ${VAR:-default} expansion) and finally
// environment variables. A .env file in the working directory is loaded
// into the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Files     FilesConfig     `yaml:"files"`
	Providers ProvidersConfig `yaml:"providers"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Usage     UsageConfig     `yaml:"usage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`

	// MasterKey protects /api routes with a bearer token when non-empty.
	MasterKey string `yaml:"master_key"`

	// BodySizeLimit caps request bodies, e.g. "32M". Uploads count against it.
	BodySizeLimit string `yaml:"body_size_limit"`

	// CORSOrigins lists allowed origins. Empty allows every origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// FilesConfig locates the gateway's file-backed state.
type FilesConfig struct {
	// DataDir holds uploaded documents under spaces/.
	DataDir string `yaml:"data_dir"`

	// CredentialsFile is the dotenv file API keys are saved to.
	CredentialsFile string `yaml:"credentials_file"`

	// ProvidersFile is the JSON file custom providers are saved to.
	ProvidersFile string `yaml:"providers_file"`
}

// ProvidersConfig tunes how upstream providers are reached.
type ProvidersConfig struct {
	GoogleBaseURL string `yaml:"google_base_url"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	GroqBaseURL   string `yaml:"groq_base_url"`

	// MaxRetries applies to model listing only. Chat streams never retry.
	MaxRetries int `yaml:"max_retries"`
}

// CacheConfig configures the model list cache.
type CacheConfig struct {
	// Type is "none", "local" or "redis". Listings go upstream on every
	// call unless a cache is chosen.
	Type string `yaml:"type"`

	// TTL in seconds.
	TTL int `yaml:"ttl"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// StorageConfig selects the database used by the usage log.
type StorageConfig struct {
	// Type is "sqlite" or "postgresql".
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL settings.
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// UsageConfig configures the chat usage log.
type UsageConfig struct {
	Enabled bool `yaml:"enabled"`

	// BufferSize is the number of entries buffered before they are dropped.
	BufferSize int `yaml:"buffer_size"`

	// FlushInterval in seconds.
	FlushInterval int `yaml:"flush_interval"`

	// RetentionDays deletes older entries; 0 keeps them forever.
	RetentionDays int `yaml:"retention_days"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Format is "json", "pretty" or "auto" (pretty on a terminal, json otherwise).
	Format string `yaml:"format"`

	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
}

// LoadResult is returned by Load.
type LoadResult struct {
	Config *Config

	// ConfigFile is the YAML file that was read, empty if none.
	ConfigFile string
}

// configPaths are searched in order for a YAML config file.
var configPaths = []string{"config.yaml", "config/config.yaml"}

// Load builds the configuration from defaults, config.yaml and the environment.
func Load() (*LoadResult, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()
	result := &LoadResult{Config: cfg}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		result.ConfigFile = path
		break
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// buildDefaultConfig returns the configuration used when nothing is set.
// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return buildDefaultConfig()
}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			BodySizeLimit: "32M",
		},
		Files: FilesConfig{
			DataDir:         "data",
			CredentialsFile: ".env",
			ProvidersFile:   "providers.json",
		},
		Cache: CacheConfig{
			Type: "none",
			TTL:  600,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: "data/ragchat.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
		},
		Usage: UsageConfig{
			BufferSize:    1000,
			FlushInterval: 5,
			RetentionDays: 90,
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if err := ValidateBodySizeLimit(c.Server.BodySizeLimit); err != nil {
		return err
	}
	switch c.Cache.Type {
	case "", "none", "local":
	case "redis":
		if c.Cache.Redis.URL == "" {
			return fmt.Errorf("cache.redis.url is required when cache.type is redis")
		}
	default:
		return fmt.Errorf("invalid cache.type %q (valid: none, local, redis)", c.Cache.Type)
	}
	switch c.Storage.Type {
	case "", "sqlite", "postgresql":
	default:
		return fmt.Errorf("invalid storage.type %q (valid: sqlite, postgresql)", c.Storage.Type)
	}
	switch c.Log.Format {
	case "", "json", "pretty", "auto":
	default:
		return fmt.Errorf("invalid log.format %q (valid: json, pretty, auto)", c.Log.Format)
	}
	return nil
}

// applyEnvOverrides applies environment variables on top of cfg.
func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.MasterKey, "RAGCHAT_MASTER_KEY")
	setString(&cfg.Server.BodySizeLimit, "BODY_SIZE_LIMIT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	setString(&cfg.Files.DataDir, "DATA_DIR")
	setString(&cfg.Files.CredentialsFile, "CREDENTIALS_FILE")
	setString(&cfg.Files.ProvidersFile, "PROVIDERS_FILE")

	setString(&cfg.Providers.GoogleBaseURL, "GOOGLE_BASE_URL")
	setString(&cfg.Providers.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Providers.GroqBaseURL, "GROQ_BASE_URL")

	setString(&cfg.Cache.Type, "CACHE_TYPE")
	setString(&cfg.Cache.Redis.URL, "REDIS_URL")
	setString(&cfg.Cache.Redis.Prefix, "REDIS_PREFIX")

	setString(&cfg.Storage.Type, "STORAGE_TYPE")
	setString(&cfg.Storage.SQLite.Path, "SQLITE_PATH")
	setString(&cfg.Storage.PostgreSQL.URL, "POSTGRES_URL")

	setString(&cfg.Metrics.Endpoint, "METRICS_ENDPOINT")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Providers.MaxRetries, "PROVIDER_MAX_RETRIES"},
		{&cfg.Cache.TTL, "CACHE_TTL"},
		{&cfg.Storage.PostgreSQL.MaxConns, "POSTGRES_MAX_CONNS"},
		{&cfg.Usage.BufferSize, "USAGE_BUFFER_SIZE"},
		{&cfg.Usage.FlushInterval, "USAGE_FLUSH_INTERVAL"},
		{&cfg.Usage.RetentionDays, "USAGE_RETENTION_DAYS"},
	}
	for _, i := range ints {
		if err := setInt(i.dst, i.key); err != nil {
			return err
		}
	}

	bools := []struct {
		dst *bool
		key string
	}{
		{&cfg.Usage.Enabled, "USAGE_ENABLED"},
		{&cfg.Metrics.Enabled, "METRICS_ENABLED"},
	}
	for _, b := range bools {
		if err := setBool(b.dst, b.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: must be an integer", key, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: must be a boolean", key, v)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. Unset variables
// without a default are left as written.
func expandString(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		parts := placeholder.FindStringSubmatch(m)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return m
	})
}

const (
	minBodySizeLimit = 1 << 10
	maxBodySizeLimit = 100 << 20
)

var bodySizePattern = regexp.MustCompile(`^(\d+)([KkMm][Bb]?)?$`)

// ValidateBodySizeLimit accepts "" or a byte count with an optional K or M
// suffix between 1KB and 100MB.
func ValidateBodySizeLimit(limit string) error {
	_, err := ParseBodySizeLimit(limit)
	return err
}

// ParseBodySizeLimit returns the limit in bytes; "" yields 0.
func ParseBodySizeLimit(limit string) (int64, error) {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return 0, nil
	}
	m := bodySizePattern.FindStringSubmatch(limit)
	if m == nil {
		return 0, fmt.Errorf("invalid body size limit %q: use a number with optional K or M suffix", limit)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid body size limit %q: %w", limit, err)
	}
	switch strings.ToUpper(strings.TrimSuffix(strings.ToUpper(m[2]), "B")) {
	case "K":
		n <<= 10
	case "M":
		n <<= 20
	}
	if n < minBodySizeLimit || n > maxBodySizeLimit {
		return 0, fmt.Errorf("body size limit %q out of range (1K to 100M)", limit)
	}
	return n, nil
}
