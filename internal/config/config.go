// Package config loads runtime configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/atmolab/atmocast/pkg/errors"
)

// Config is the full runtime configuration.
type Config struct {
	Environment string          `mapstructure:"environment"`
	Log         LogConfig       `mapstructure:"log"`
	Server      ServerConfig    `mapstructure:"server"`
	Store       StoreConfig     `mapstructure:"store"`
	Queue       QueueConfig     `mapstructure:"queue"`
	Provision   ProvisionConfig `mapstructure:"provision"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig contains object store settings
type StoreConfig struct {
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// QueueConfig contains ingestion queue settings
type QueueConfig struct {
	Region      string        `mapstructure:"region"`
	URL         string        `mapstructure:"url"`
	MaxMessages int64         `mapstructure:"max_messages"`
	WaitTime    time.Duration `mapstructure:"wait_time"`
}

// ProvisionConfig contains provisioning service settings
type ProvisionConfig struct {
	Region               string `mapstructure:"region"`
	RoleARN              string `mapstructure:"role_arn"`
	TrainingImage        string `mapstructure:"training_image"`
	TrainingInstanceType string `mapstructure:"training_instance_type"`
	ServingInstanceType  string `mapstructure:"serving_instance_type"`
	OutputPath           string `mapstructure:"output_path"`
	SubmitDirectory      string `mapstructure:"submit_directory"`
	MaxRuntimeSeconds    int64  `mapstructure:"max_runtime_seconds"`
	VolumeSizeGB         int64  `mapstructure:"volume_size_gb"`
}

// Load reads configuration from the given file (optional) with ATMOCAST_*
// environment overrides and defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ATMOCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput,
				"failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput,
			"failed to decode configuration")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("store.region", "us-west-1")
	v.SetDefault("store.max_retries", 3)

	v.SetDefault("queue.region", "us-west-1")
	v.SetDefault("queue.max_messages", 10)
	v.SetDefault("queue.wait_time", 10*time.Second)

	v.SetDefault("provision.region", "us-west-1")
	v.SetDefault("provision.training_instance_type", "ml.m5.large")
	v.SetDefault("provision.serving_instance_type", "ml.m5.large")
	v.SetDefault("provision.max_runtime_seconds", 180)
	v.SetDefault("provision.volume_size_gb", 5)
}
