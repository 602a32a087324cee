package clusterapi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/restgraph/internal/constants"
)

// CacheSettings selects the GET response cache backend.
type CacheSettings struct {
	// Backend is "memory", "nats", or "none".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// MaxSize bounds the memory backend. Zero uses the default.
	MaxSize int `mapstructure:"max_size" yaml:"max_size,omitempty"`

	// TTL is how long a cached response stays fresh.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`

	// NATSURLs and NATSBucket configure the nats backend.
	NATSURLs   []string `mapstructure:"nats_urls" yaml:"nats_urls,omitempty"`
	NATSBucket string   `mapstructure:"nats_bucket" yaml:"nats_bucket,omitempty"`
}

// Config holds everything needed to reach a cluster-manager API.
type Config struct {
	// BaseURL is the API root, e.g. "http://manager.example.com:8080/api/v1".
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Identifier names this client in the User-Agent and X-Requested-By
	// headers the API requires on mutations.
	Identifier string `mapstructure:"identifier" yaml:"identifier,omitempty"`

	// Headers are stamped onto every request.
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`

	// RetryMax, RetryWaitMin, and RetryWaitMax tune transport retries.
	RetryMax     int           `mapstructure:"retry_max" yaml:"retry_max,omitempty"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min" yaml:"retry_wait_min,omitempty"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max" yaml:"retry_wait_max,omitempty"`

	// Debug enables request/response logging.
	Debug bool `mapstructure:"debug" yaml:"debug,omitempty"`

	// Cache configures GET response caching.
	Cache CacheSettings `mapstructure:"cache" yaml:"cache,omitempty"`
}

// Static errors for err113 compliance.
var (
	ErrBaseURLRequired = errors.New("base_url is required")
)

// DefaultConfig returns a config with working defaults for everything except
// the base URL.
func DefaultConfig() *Config {
	return &Config{
		Identifier:   "go-clusterapi",
		Timeout:      constants.DefaultHTTPTimeout,
		RetryMax:     constants.DefaultRetryMax,
		RetryWaitMin: constants.DefaultRetryWaitMin,
		RetryWaitMax: constants.DefaultRetryWaitMax,
		Cache: CacheSettings{
			Backend: "none",
			TTL:     constants.DefaultCacheTTL,
		},
	}
}

// LoadConfig reads configuration from a YAML file and the environment.
// Environment variables use the CLUSTERAPI_ prefix with underscores, e.g.
// CLUSTERAPI_BASE_URL. An empty path looks for clusterapi.yml in the working
// directory and ~/.clusterapi; a missing file is fine as long as the
// environment supplies a base URL.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Defaults double as key registrations so environment-only values
	// survive Unmarshal.
	v.SetDefault("base_url", "")
	v.SetDefault("debug", false)
	v.SetDefault("identifier", "go-clusterapi")
	v.SetDefault("timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("retry_max", constants.DefaultRetryMax)
	v.SetDefault("retry_wait_min", constants.DefaultRetryWaitMin)
	v.SetDefault("retry_wait_max", constants.DefaultRetryWaitMax)
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttl", constants.DefaultCacheTTL)

	v.SetEnvPrefix("CLUSTERAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("clusterapi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".clusterapi"))
		}

		err := v.ReadInConfig()
		if err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	config := &Config{}

	err := v.Unmarshal(config)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if config.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	return config, nil
}

// Save writes the config to path as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config to YAML: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
