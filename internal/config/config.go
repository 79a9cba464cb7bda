// Package config loads the client configuration from SCENE_DATA_* variables.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/yourorg/scene-data/internal/rest"
)

const (
	DefaultEnvPrefix = "SCENE_DATA"

	DefaultServiceURL        = "https://novorender.com/api"
	DefaultAuthHeader        = "Authorization"
	DefaultTimeout           = 5 * time.Minute
	DefaultUploadConcurrency = 16
	DefaultBlockSize         = 1048576
	DefaultLogLevel          = "info"
)

var DefaultConfig = Config{
	ServiceURL:        DefaultServiceURL,
	AuthHeader:        DefaultAuthHeader,
	Timeout:           DefaultTimeout,
	UploadConcurrency: DefaultUploadConcurrency,
	BlockSize:         DefaultBlockSize,
	LogLevel:          DefaultLogLevel,
}

type Config struct {
	ServiceURL        string        `json:"service_url,omitempty"        mapstructure:"service_url"`
	AuthHeader        string        `json:"auth_header,omitempty"        mapstructure:"auth_header"`
	AuthToken         string        `json:"-"                            mapstructure:"auth_token"`
	Timeout           time.Duration `json:"timeout,omitempty"            mapstructure:"timeout"`
	UploadConcurrency int           `json:"upload_concurrency,omitempty" mapstructure:"upload_concurrency"`
	BlockSize         int64         `json:"block_size,omitempty"         mapstructure:"block_size"`
	MetricsAddr       string        `json:"metrics_addr,omitempty"       mapstructure:"metrics_addr"`
	LogLevel          string        `json:"log_level,omitempty"          mapstructure:"log_level"`
}

// LoadConfig reads the environment, applies defaults and normalises the
// service URL.
func LoadConfig() (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	_ = v.BindEnv("service_url")
	v.SetDefault("service_url", DefaultServiceURL)

	// auth header name and value; either empty disables decoration
	_ = v.BindEnv("auth_header")
	v.SetDefault("auth_header", DefaultAuthHeader)

	_ = v.BindEnv("auth_token")
	v.SetDefault("auth_token", "")

	_ = v.BindEnv("timeout")
	v.SetDefault("timeout", DefaultTimeout)

	_ = v.BindEnv("upload_concurrency")
	v.SetDefault("upload_concurrency", DefaultUploadConcurrency)

	_ = v.BindEnv("block_size")
	v.SetDefault("block_size", DefaultBlockSize)

	_ = v.BindEnv("metrics_addr")
	v.SetDefault("metrics_addr", "")

	_ = v.BindEnv("log_level")
	v.SetDefault("log_level", DefaultLogLevel)

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)

	config := &Config{}
	if err := v.Unmarshal(config, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	u, err := NormalizeServiceURL(config.ServiceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config.ServiceURL = u

	if config.UploadConcurrency <= 0 {
		return nil, fmt.Errorf("failed to load configuration: upload_concurrency must be positive, got %d", config.UploadConcurrency)
	}
	if config.BlockSize <= 0 {
		return nil, fmt.Errorf("failed to load configuration: block_size must be positive, got %d", config.BlockSize)
	}

	return config, nil
}

// AuthProvider returns the configured header as a rest.HeaderProvider.
func (c *Config) AuthProvider() rest.HeaderProvider {
	name, value := c.AuthHeader, c.AuthToken
	return func(context.Context) (string, string, error) {
		return name, value, nil
	}
}
