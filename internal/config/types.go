package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	SettingsPath   string
	Settings       *Settings
	UserAgent      string
	VersionCompare string
	Aggregator     AggregatorConfig
	Registry       RegistryConfig
	Cache          CacheConfig
	Queue          QueueConfig
	Worker         WorkerConfig
	API            APIConfig
	Observability  ObservabilityConfig
}

// AggregatorConfig configures the aggregator client
type AggregatorConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit time.Duration
}

// RegistryConfig configures the registry client
type RegistryConfig struct {
	BaseURL string
	Timeout time.Duration
	Branch  string
}

// CacheConfig configures the package cache
type CacheConfig struct {
	SQLitePath string
	Freshness  time.Duration
	Retention  time.Duration
}

// QueueConfig configures the in-memory task queue
type QueueConfig struct {
	BufferSize int
}

// WorkerConfig configures the refresh workers and the watcher that feeds them
type WorkerConfig struct {
	PollInterval    time.Duration
	RefreshInterval time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
	Concurrency     int
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Enabled  bool
	Port     int
	APIKey   string
	ReadOnly bool
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel        string
	MetricsPort     int
	HealthCheckPort int
}

// Settings is the optional pkgwatch.yml settings file
type Settings struct {
	Defaults    Defaults          `yaml:"defaults"`
	Maintainers []MaintainerEntry `yaml:"maintainers"`
}

// Defaults contains default configuration values
type Defaults struct {
	Freshness           string            `yaml:"freshness,omitempty"`
	Retention           string            `yaml:"retention,omitempty"`
	RefreshInterval     string            `yaml:"refresh-interval,omitempty"`
	WorkerPollInterval  string            `yaml:"worker-poll-interval,omitempty"`
	WorkerConcurrency   int               `yaml:"worker-concurrency,omitempty"`
	WorkerRetryAttempts int               `yaml:"worker-retry-attempts,omitempty"`
	WorkerRetryBackoff  string            `yaml:"worker-retry-backoff,omitempty"`
	QueueBufferSize     int               `yaml:"queue-buffer-size,omitempty"`
	VersionCompare      string            `yaml:"version-compare,omitempty"`
	DistributionRepos   []string          `yaml:"distribution-repos,omitempty"`
	NicknameMapping     map[string]string `yaml:"nickname-mapping,omitempty"`
	Policy              *PolicyConfig     `yaml:"policy,omitempty"`
}

// MaintainerEntry is one maintainer watched by the refresh scheduler
type MaintainerEntry struct {
	Nickname        string        `yaml:"nickname"`
	Identifier      string        `yaml:"identifier,omitempty"` // defaults to nickname@altlinux.org
	Repo            string        `yaml:"repo,omitempty"`
	RefreshInterval string        `yaml:"refresh-interval,omitempty"`
	Policy          *PolicyConfig `yaml:"policy,omitempty"`
}

// PolicyConfig represents a CEL notification policy
type PolicyConfig struct {
	Expression string `yaml:"expression"`
}
