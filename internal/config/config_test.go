package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultsResolveThroughViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg := Load(v)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10*time.Second, cfg.TaskTimeout)
	assert.Equal(t, "csi", cfg.StripMode)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchman.yaml")
	content := `log_group: /app/web
log_stream: from-file
workers: 8
task_timeout: 3s
strip_mode: all
echo: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("WATCHMAN_LOG_STREAM", "from-env")

	v := viper.New()
	Setup(v, path)
	require.NoError(t, Read(v))

	cfg := Load(v)
	assert.Equal(t, "/app/web", cfg.LogGroup)
	assert.Equal(t, "from-env", cfg.LogStream, "environment overrides the file")
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 3*time.Second, cfg.TaskTimeout)
	assert.Equal(t, "all", cfg.StripMode)
	assert.False(t, cfg.Echo)
	assert.True(t, cfg.StripPrefix, "unset keys keep their default")
	require.NoError(t, cfg.Validate())
}

func TestReadMissingSearchedFileIsNotAnError(t *testing.T) {
	v := viper.New()
	v.AddConfigPath(t.TempDir())
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")

	assert.NoError(t, Read(v))
}

func TestReadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_group: [unterminated"), 0o600))

	v := viper.New()
	Setup(v, path)
	assert.ErrorContains(t, Read(v), "error reading config file")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.LogGroup = "/app/web"
	valid.LogStream = "web-1"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing group", func(c *Config) { c.LogGroup = "" }, "--group"},
		{"missing stream", func(c *Config) { c.LogStream = "" }, "WATCHMAN_LOG_STREAM"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers must be at least 1"},
		{"negative queue", func(c *Config) { c.QueueSize = -1 }, "queue_size"},
		{"negative timeout", func(c *Config) { c.TaskTimeout = -time.Second }, "task_timeout"},
		{"bad strip mode", func(c *Config) { c.StripMode = "csj" }, "csi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.Options(), 5)

	cfg.Endpoint = "http://localhost:4566"
	cfg.Echo = false
	assert.Len(t, cfg.Options(), 7)
}

func TestMarshalRoundTripsThroughViper(t *testing.T) {
	cfg := Default()
	cfg.LogGroup = "/app/web"
	cfg.LogStream = "web-1"
	cfg.TaskTimeout = 2500 * time.Millisecond

	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# watchman configuration"))

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Equal(t, "2.5s", raw["task_timeout"])
	assert.NotContains(t, raw, "profile", "empty optional keys are omitted")

	path := filepath.Join(t.TempDir(), "watchman.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	v := viper.New()
	Setup(v, path)
	require.NoError(t, Read(v))
	assert.Equal(t, cfg, Load(v))
}
