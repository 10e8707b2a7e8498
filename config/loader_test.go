// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "content", cfg.Pipeline.Mode)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "structstream.yaml")

	yamlContent := `
pipeline:
  mode: tools
  aggregation: keep_all
  max_attempts: 5
  tool_name: extract_person

redis:
  enabled: true
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1
  ttl: 1h

archive:
  enabled: true
  driver: postgres
  host: db.internal
  port: 5432
  name: structstream

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "tools", cfg.Pipeline.Mode)
	assert.Equal(t, "keep_all", cfg.Pipeline.Aggregation)
	assert.Equal(t, 5, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, "extract_person", cfg.Pipeline.ToolName)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	// 未出现在 YAML 中的字段保留默认值
	assert.Equal(t, "structstream:events", cfg.Redis.KeyPrefix)

	assert.Equal(t, "postgres", cfg.Archive.Driver)
	assert.Equal(t, "db.internal", cfg.Archive.Host)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).
		Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("pipeline: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("STRUCTSTREAM_PIPELINE_MODE", "tools")
	t.Setenv("STRUCTSTREAM_PIPELINE_MAX_ATTEMPTS", "7")
	t.Setenv("STRUCTSTREAM_REDIS_TTL", "90s")
	t.Setenv("STRUCTSTREAM_REDIS_TLS", "true")
	t.Setenv("STRUCTSTREAM_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("STRUCTSTREAM_LOG_OUTPUT_PATHS", "stdout, /var/log/structstream.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "tools", cfg.Pipeline.Mode)
	assert.Equal(t, 7, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Redis.TTL)
	assert.True(t, cfg.Redis.TLS)
	assert.InDelta(t, 0.5, cfg.Telemetry.SampleRate, 0.001)
	assert.Equal(t, []string{"stdout", "/var/log/structstream.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "structstream.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("pipeline:\n  max_attempts: 4\n"), 0644))
	t.Setenv("STRUCTSTREAM_PIPELINE_MAX_ATTEMPTS", "9")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Pipeline.MaxAttempts)
}

func TestLoader_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_PIPELINE_TOOL_NAME", "person")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "person", cfg.Pipeline.ToolName)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("STRUCTSTREAM_PIPELINE_MAX_ATTEMPTS", "many")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRUCTSTREAM_PIPELINE_MAX_ATTEMPTS")
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		WithValidator(func(c *Config) error {
			if c.Pipeline.ToolName == "" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMustLoad_Panics(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("::"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults"},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Pipeline.Mode = "json" },
			wantErr: "unknown pipeline mode",
		},
		{
			name:    "unknown aggregation",
			mutate:  func(c *Config) { c.Pipeline.Aggregation = "all" },
			wantErr: "unknown aggregation mode",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Pipeline.MaxAttempts = 0 },
			wantErr: "max_attempts must be positive",
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.OTLPEndpoint = ""
			},
			wantErr: "otlp_endpoint",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Addr = ""
			},
			wantErr: "redis.addr",
		},
		{
			name: "archive with unknown driver",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Driver = "oracle"
			},
			wantErr: "unsupported archive driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestArchiveConfig_DSN(t *testing.T) {
	pg := ArchiveConfig{Driver: "postgres", Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", pg.DSN())

	my := ArchiveConfig{Driver: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "u:p@tcp(h:3306)/n?parseTime=true&multiStatements=true", my.DSN())

	lite := ArchiveConfig{Driver: "sqlite", Name: "/tmp/a.db"}
	assert.Equal(t, "/tmp/a.db", lite.DSN())

	assert.Empty(t, (&ArchiveConfig{Driver: "oracle"}).DSN())
}
