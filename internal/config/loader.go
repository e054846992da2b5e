package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/version"
)

// Load loads configuration from environment variables and pkgwatch.yml defaults.
// Environment variables win over the settings file, which wins over the
// hardcoded defaults. A missing settings file is not an error.
func Load() (*Config, error) {
	return LoadFrom(getEnv("PKGWATCH_CONFIG", "pkgwatch.yml"))
}

// LoadFrom is Load with an explicit settings file path.
func LoadFrom(settingsPath string) (*Config, error) {
	settings := &Settings{}
	if _, err := os.Stat(settingsPath); err == nil {
		parsed, err := ParseSettings(settingsPath)
		if err != nil {
			return nil, err
		}
		settings = parsed
	}
	d := settings.Defaults

	freshness := settings.intervalOr(d.Freshness, 6*time.Hour)
	retention := settings.intervalOr(d.Retention, 7*24*time.Hour)
	refreshInterval := settings.intervalOr(d.RefreshInterval, 6*time.Hour)
	pollInterval := settings.intervalOr(d.WorkerPollInterval, time.Minute)
	retryBackoff := settings.intervalOr(d.WorkerRetryBackoff, 10*time.Second)

	concurrency := d.WorkerConcurrency
	if concurrency == 0 {
		concurrency = 3
	}
	retryAttempts := d.WorkerRetryAttempts
	if retryAttempts == 0 {
		retryAttempts = 3
	}
	bufferSize := d.QueueBufferSize
	if bufferSize == 0 {
		bufferSize = 1000
	}
	versionCompare := d.VersionCompare
	if versionCompare == "" {
		versionCompare = version.ModeLexical
	}

	cfg := &Config{
		SettingsPath:   settingsPath,
		Settings:       settings,
		UserAgent:      getEnv("USER_AGENT", "pkgwatch/1.0 (+https://github.com/daimoniac/pkgwatch)"),
		VersionCompare: strings.ToLower(getEnv("VERSION_COMPARE", versionCompare)),
		Aggregator: AggregatorConfig{
			BaseURL:   strings.TrimRight(getEnv("AGGREGATOR_BASE_URL", "https://repology.org/api/v1"), "/"),
			Timeout:   getEnvDuration("AGGREGATOR_TIMEOUT", 30*time.Second),
			RateLimit: getEnvDuration("AGGREGATOR_RATE_LIMIT", time.Second),
		},
		Registry: RegistryConfig{
			BaseURL: strings.TrimRight(getEnv("REGISTRY_BASE_URL", "https://rdb.altlinux.org/api/site"), "/"),
			Timeout: getEnvDuration("REGISTRY_TIMEOUT", 30*time.Second),
			Branch:  getEnv("REGISTRY_BRANCH", "sisyphus"),
		},
		Cache: CacheConfig{
			SQLitePath: getEnv("SQLITE_PATH", "pkgwatch.db"),
			Freshness:  getEnvDuration("CACHE_FRESHNESS", freshness),
			Retention:  getEnvDuration("CACHE_RETENTION", retention),
		},
		Queue: QueueConfig{
			BufferSize: getEnvInt("QUEUE_BUFFER_SIZE", bufferSize),
		},
		Worker: WorkerConfig{
			PollInterval:    getEnvDuration("WORKER_POLL_INTERVAL", pollInterval),
			RefreshInterval: getEnvDuration("REFRESH_INTERVAL", refreshInterval),
			RetryAttempts:   getEnvInt("WORKER_RETRY_ATTEMPTS", retryAttempts),
			RetryBackoff:    getEnvDuration("WORKER_RETRY_BACKOFF", retryBackoff),
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", concurrency),
		},
		API: APIConfig{
			Enabled:  getEnvBool("API_ENABLED", true),
			Port:     getEnvInt("API_PORT", 8080),
			APIKey:   getEnv("PKGWATCH_API_KEY", ""),
			ReadOnly: getEnvBool("API_READ_ONLY", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			MetricsPort:     getEnvInt("METRICS_PORT", 9090),
			HealthCheckPort: getEnvInt("HEALTH_CHECK_PORT", 8081),
		},
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Aggregator.BaseURL == "" {
		return errors.NewPermanentf("AGGREGATOR_BASE_URL is required")
	}
	if c.Registry.BaseURL == "" {
		return errors.NewPermanentf("REGISTRY_BASE_URL is required")
	}
	if c.Registry.Branch == "" {
		return errors.NewPermanentf("REGISTRY_BRANCH is required")
	}
	if c.Cache.SQLitePath == "" {
		return errors.NewPermanentf("SQLITE_PATH is required")
	}
	if c.Cache.Freshness <= 0 {
		return errors.NewPermanentf("cache freshness must be positive, got %s", c.Cache.Freshness)
	}
	if c.Cache.Retention <= 0 {
		return errors.NewPermanentf("cache retention must be positive, got %s", c.Cache.Retention)
	}
	if c.Aggregator.RateLimit < 0 {
		return errors.NewPermanentf("aggregator rate limit cannot be negative")
	}
	if c.Worker.Concurrency < 1 {
		return errors.NewPermanentf("worker concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.RetryAttempts < 1 {
		return errors.NewPermanentf("worker retry attempts must be at least 1, got %d", c.Worker.RetryAttempts)
	}
	if c.Worker.PollInterval <= 0 {
		return errors.NewPermanentf("worker poll interval must be positive, got %s", c.Worker.PollInterval)
	}
	if c.Worker.RefreshInterval <= 0 {
		return errors.NewPermanentf("refresh interval must be positive, got %s", c.Worker.RefreshInterval)
	}
	if _, err := version.ForMode(c.VersionCompare); err != nil {
		return errors.NewPermanent(err)
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return errors.NewPermanentf("invalid API port: %d", c.API.Port)
	}
	if c.Settings != nil {
		if err := c.Settings.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration accepts the same notation as the settings file.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := ParseInterval(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
