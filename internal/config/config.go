// Package config loads watchman CLI settings from flags, environment and
// ~/.watchman.yaml through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmurray2011/watchman/internal/ansi"
	"github.com/jmurray2011/watchman/internal/dispatch"
	wmerrors "github.com/jmurray2011/watchman/internal/errors"
	"github.com/jmurray2011/watchman/pkg/watchman"
)

// EnvPrefix is prepended to every environment variable, e.g. WATCHMAN_LOG_GROUP.
const EnvPrefix = "WATCHMAN"

// FileName is the config file name looked up in the home and working directories.
const FileName = ".watchman"

// Config holds the resolved CLI settings.
type Config struct {
	Profile  string `mapstructure:"profile" yaml:"profile,omitempty"`
	Region   string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	LogGroup  string `mapstructure:"log_group" yaml:"log_group"`
	LogStream string `mapstructure:"log_stream" yaml:"log_stream"`

	Workers     int           `mapstructure:"workers" yaml:"workers"`
	QueueSize   int           `mapstructure:"queue_size" yaml:"queue_size"`
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"-"`

	StripPrefix bool   `mapstructure:"strip_prefix" yaml:"strip_prefix"`
	StripMode   string `mapstructure:"strip_mode" yaml:"strip_mode"`
	Echo        bool   `mapstructure:"echo" yaml:"echo"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Workers:     dispatch.DefaultWorkers,
		QueueSize:   dispatch.DefaultQueueSize,
		TaskTimeout: dispatch.DefaultTaskTimeout,
		StripPrefix: true,
		StripMode:   string(ansi.ModeCSI),
		Echo:        true,
	}
}

// SetDefaults registers Default() with v so unset keys resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("workers", d.Workers)
	v.SetDefault("queue_size", d.QueueSize)
	v.SetDefault("task_timeout", d.TaskTimeout)
	v.SetDefault("strip_prefix", d.StripPrefix)
	v.SetDefault("strip_mode", d.StripMode)
	v.SetDefault("echo", d.Echo)
}

// Setup points v at the config file and environment. An explicit file
// wins; otherwise ~/.watchman.yaml and ./.watchman.yaml are searched.
func Setup(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	SetDefaults(v)
}

// Read loads the config file into v. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Load resolves every setting from v.
func Load(v *viper.Viper) Config {
	return Config{
		Profile:     v.GetString("profile"),
		Region:      v.GetString("region"),
		Endpoint:    v.GetString("endpoint"),
		LogGroup:    v.GetString("log_group"),
		LogStream:   v.GetString("log_stream"),
		Workers:     v.GetInt("workers"),
		QueueSize:   v.GetInt("queue_size"),
		TaskTimeout: v.GetDuration("task_timeout"),
		StripPrefix: v.GetBool("strip_prefix"),
		StripMode:   v.GetString("strip_mode"),
		Echo:        v.GetBool("echo"),
	}
}

// Validate checks that a sink can be built from c.
func (c Config) Validate() error {
	if c.LogGroup == "" {
		return wmerrors.MissingSettingError("log_group", "--group", EnvPrefix+"_LOG_GROUP")
	}
	if c.LogStream == "" {
		return wmerrors.MissingSettingError("log_stream", "--stream", EnvPrefix+"_LOG_STREAM")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", c.QueueSize)
	}
	if c.TaskTimeout < 0 {
		return fmt.Errorf("task_timeout must not be negative, got %s", c.TaskTimeout)
	}
	if _, err := ansi.ParseMode(c.StripMode); err != nil {
		return err
	}
	return nil
}

// Options converts c into sink options. Call Validate first.
func (c Config) Options() []watchman.Option {
	mode, _ := ansi.ParseMode(c.StripMode)

	opts := []watchman.Option{
		watchman.WithWorkers(c.Workers),
		watchman.WithQueueSize(c.QueueSize),
		watchman.WithTaskTimeout(c.TaskTimeout),
		watchman.WithStripPrefix(c.StripPrefix),
		watchman.WithStripMode(mode),
	}
	if c.Endpoint != "" {
		opts = append(opts, watchman.WithEndpoint(c.Endpoint))
	}
	if !c.Echo {
		opts = append(opts, watchman.WithEcho(nil))
	}
	return opts
}

// fileConfig is the on-disk shape; durations are written as "10s".
type fileConfig struct {
	Config      `yaml:",inline"`
	TaskTimeout string `yaml:"task_timeout"`
}

// Marshal renders c as YAML suitable for ~/.watchman.yaml.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(fileConfig{Config: c, TaskTimeout: c.TaskTimeout.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	header := []byte("# watchman configuration\n# Every key can also be set as " + EnvPrefix + "_<KEY>.\n\n")
	return append(header, data...), nil
}

// DefaultPath returns ~/.watchman.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, FileName+".yaml"), nil
}
