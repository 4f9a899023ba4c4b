// Package config loads the pipeline configuration from YAML and ETL_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/raaihank/yt-etl/internal/decode"
)

// EnvPrefix prefixes every environment override, e.g. ETL_PIPELINE_BUCKET.
const EnvPrefix = "ETL"

var (
	mu     sync.Mutex
	active *viper.Viper
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/yt-etl/")
	v.AddConfigPath("$HOME/.yt-etl/")

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config, err := unmarshal(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	active = v
	mu.Unlock()
	return config, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	config := GetDefaults()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// bindEnvs registers every leaf key so environment variables apply even
// when the key is absent from the file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type.String() != "time.Time" {
			bindEnvs(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	switch config.Storage.Backend {
	case "minio", "s3":
		if config.Storage.Minio.Endpoint == "" {
			return fmt.Errorf("storage.minio.endpoint is required for backend %s", config.Storage.Backend)
		}
	case "local":
		if config.Storage.Local.Root == "" {
			return fmt.Errorf("storage.local.root is required for the local backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be minio, s3 or local)", config.Storage.Backend)
	}

	if config.Pipeline.Bucket == "" {
		return fmt.Errorf("pipeline.bucket is required")
	}

	if _, err := decode.Candidates(config.Pipeline.Encodings); err != nil {
		return fmt.Errorf("invalid pipeline.encodings: %w", err)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid server max body bytes: %d", config.Server.MaxBodyBytes)
	}

	if config.Server.RateLimit < 0 {
		return fmt.Errorf("invalid server rate limit: %v", config.Server.RateLimit)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required when the cache is enabled")
	}

	if config.Ledger.Enabled && config.Ledger.DatabaseURL == "" {
		return fmt.Errorf("ledger.database_url is required when the ledger is enabled")
	}

	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q", config.Metrics.Path)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch reloads the configuration file on change and hands every valid
// new configuration to callback. Invalid edits are reported to onError.
func Watch(callback func(*Config), onError func(error)) error {
	mu.Lock()
	v := active
	mu.Unlock()
	if v == nil {
		return errors.New("configuration not loaded")
	}
	if v.ConfigFileUsed() == "" {
		return errors.New("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := unmarshal(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("ignoring change to %s: %w", e.Name, err))
			}
			return
		}
		callback(config)
	})
	v.WatchConfig()
	return nil
}
