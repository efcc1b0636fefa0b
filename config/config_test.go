package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir runs the test inside a fresh directory so no stray config.yaml or
// .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{"empty string", "", nil, ""},
		{"no placeholders", "simple-string", nil, "simple-string"},
		{"simple variable", "${API_KEY}", map[string]string{"API_KEY": "sk-12345"}, "sk-12345"},
		{"variable in middle", "prefix-${API_KEY}-suffix", map[string]string{"API_KEY": "sk-1"}, "prefix-sk-1-suffix"},
		{"default used when missing", "${API_KEY:-default-key}", nil, "default-key"},
		{"default used when empty", "${API_KEY:-default-key}", map[string]string{"API_KEY": ""}, "default-key"},
		{"env wins over default", "${API_KEY:-default-key}", map[string]string{"API_KEY": "real"}, "real"},
		{"unresolved kept", "${MISSING_VAR}", nil, "${MISSING_VAR}"},
		{"default with colon", "${URL:-http://localhost:8080}", nil, "http://localhost:8080"},
		{"empty default", "${OPTIONAL_VAR:-}", nil, ""},
		{"mixed", "${RESOLVED}:${UNRESOLVED:-fallback}:${MISSING}", map[string]string{"RESOLVED": "v"}, "v:fallback:${MISSING}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"API_KEY", "MISSING_VAR", "URL", "OPTIONAL_VAR", "RESOLVED", "UNRESOLVED", "MISSING"} {
				t.Setenv(k, "")
				_ = os.Unsetenv(k)
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, expandString(tt.input))
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "server",
			envVars: map[string]string{"PORT": "3000", "RAGCHAT_MASTER_KEY": "secret", "CORS_ORIGINS": "http://a, http://b,"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "3000", cfg.Server.Port)
				assert.Equal(t, "secret", cfg.Server.MasterKey)
				assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CORSOrigins)
			},
		},
		{
			name:    "files and providers",
			envVars: map[string]string{"DATA_DIR": "/srv/data", "PROVIDERS_FILE": "/srv/p.json", "OPENAI_BASE_URL": "http://proxy/v1", "PROVIDER_MAX_RETRIES": "2"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/srv/data", cfg.Files.DataDir)
				assert.Equal(t, "/srv/p.json", cfg.Files.ProvidersFile)
				assert.Equal(t, ".env", cfg.Files.CredentialsFile)
				assert.Equal(t, "http://proxy/v1", cfg.Providers.OpenAIBaseURL)
				assert.Equal(t, 2, cfg.Providers.MaxRetries)
			},
		},
		{
			name:    "storage and usage",
			envVars: map[string]string{"STORAGE_TYPE": "postgresql", "POSTGRES_URL": "postgres://localhost/test", "POSTGRES_MAX_CONNS": "20", "USAGE_ENABLED": "true"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgresql", cfg.Storage.Type)
				assert.Equal(t, "postgres://localhost/test", cfg.Storage.PostgreSQL.URL)
				assert.Equal(t, 20, cfg.Storage.PostgreSQL.MaxConns)
				assert.True(t, cfg.Usage.Enabled)
			},
		},
		{
			name:    "no env vars set preserves defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "8080", cfg.Server.Port)
				assert.Equal(t, "none", cfg.Cache.Type)
				assert.Equal(t, 600, cfg.Cache.TTL)
				assert.False(t, cfg.Usage.Enabled)
				assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	t.Setenv("CACHE_TTL", "ten")
	assert.ErrorContains(t, applyEnvOverrides(buildDefaultConfig()), "CACHE_TTL")

	t.Setenv("CACHE_TTL", "")
	t.Setenv("METRICS_ENABLED", "maybe")
	assert.ErrorContains(t, applyEnvOverrides(buildDefaultConfig()), "METRICS_ENABLED")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := chdir(t)
	yamlContent := `
server:
  port: "${TEST_RAGCHAT_PORT:-9999}"
  cors_origins: ["http://localhost:5173"]
cache:
  type: redis
  ttl: 60
  redis:
    url: redis://localhost:6379
log:
  format: pretty
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0o644))
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("CACHE_TYPE", "")

	result, err := Load()
	require.NoError(t, err)
	cfg := result.Config

	assert.Equal(t, "config.yaml", result.ConfigFile)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, 60, cfg.Cache.TTL)
	assert.Equal(t, "pretty", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "data", cfg.Files.DataDir, "unset sections keep defaults")
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TEST_RAGCHAT_DOTENV=1\nMETRICS_ENDPOINT=/prom\n"), 0o644))
	t.Setenv("METRICS_ENDPOINT", "")
	_ = os.Unsetenv("METRICS_ENDPOINT")
	t.Cleanup(func() { _ = os.Unsetenv("TEST_RAGCHAT_DOTENV") })

	result, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/prom", result.Config.Metrics.Endpoint)
	assert.Empty(t, result.ConfigFile)
}

func TestLoad_InvalidConfig(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cache:\n  type: memcached\n"), 0o644))

	_, err := Load()
	assert.ErrorContains(t, err, "cache.type")
}

func TestValidate(t *testing.T) {
	cfg := buildDefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Cache.Type = "redis"
	assert.ErrorContains(t, cfg.Validate(), "cache.redis.url")

	cfg = buildDefaultConfig()
	cfg.Storage.Type = "mongodb"
	assert.Error(t, cfg.Validate())

	cfg = buildDefaultConfig()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateBodySizeLimit(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"empty string is valid", "", false},
		{"plain number", "1048576", false},
		{"kilobytes lowercase", "100k", false},
		{"kilobytes with B suffix", "100KB", false},
		{"megabytes uppercase", "10M", false},
		{"megabytes with B suffix", "10MB", false},
		{"whitespace trimmed", "  10M  ", false},
		{"minimum valid (1KB)", "1K", false},
		{"maximum valid (100MB)", "100M", false},
		{"invalid format with letters", "abc", true},
		{"invalid unit", "10X", true},
		{"negative number", "-10M", true},
		{"decimal number", "10.5M", true},
		{"empty unit with B", "10B", true},
		{"below minimum (100 bytes)", "100", true},
		{"above maximum (200MB)", "200M", true},
		{"above maximum (1GB)", "1G", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBodySizeLimit(tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseBodySizeLimit(t *testing.T) {
	n, err := ParseBodySizeLimit("32M")
	require.NoError(t, err)
	assert.Equal(t, int64(32<<20), n)

	n, err = ParseBodySizeLimit("")
	require.NoError(t, err)
	assert.Zero(t, n)
}
