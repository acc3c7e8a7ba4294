package models

// Config holds the application configuration
type Config struct {
	Platform  PlatformConfig  `json:"platform"`
	Database  DatabaseConfig  `json:"database"`
	Media     MediaConfig     `json:"media"`
	Embedding EmbeddingConfig `json:"embedding"`
	Takeout   TakeoutConfig   `json:"takeout"`
	Queues    QueueConfig     `json:"queues"`
	Retry     RetryConfig     `json:"retry"`
	Tracing   TracingConfig   `json:"tracing"`
	Server    ServerConfig    `json:"server"`
	Feed      FeedConfig      `json:"feed"`
	LogLevel  string          `json:"log_level"`
	TenantID  string          `json:"tenant_id"`
}

// PlatformConfig holds messaging-platform client configuration
type PlatformConfig struct {
	Name           string `json:"name"`
	APIBaseURL     string `json:"api_base_url"`
	HTTPTimeoutSec int    `json:"http_timeout_sec"`
}

// DatabaseConfig holds database related configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// MediaConfig holds media storage configuration
type MediaConfig struct {
	StoreDir     string `json:"store_dir"`
	MaxSizeMB    int    `json:"max_size_mb"`
	RetentionDay int    `json:"retention_days"`
}

// EmbeddingConfig holds embedding/vision provider configuration
type EmbeddingConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	Dimension      int    `json:"dimension"`
	ChunkSize      int    `json:"chunk_size"`
	VisionBaseURL  string `json:"vision_base_url"`
	VisionModel    string `json:"vision_model"`
	PhotoEmbedding bool   `json:"photo_embedding"`
}

// TakeoutConfig holds bulk-export configuration
type TakeoutConfig struct {
	PageLimit      int `json:"page_limit"`
	RateIntervalMs int `json:"rate_interval_ms"`
}

// QueueConfig sizes the two bounded worker pools
type QueueConfig struct {
	BatchWorkers int `json:"batch_workers"`
	MediaWorkers int `json:"media_workers"`
}

// RetryConfig holds retry related configuration
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

// ServerConfig holds the operational HTTP server configuration
type ServerConfig struct {
	Port int `json:"port"`
}

// FeedConfig holds the realtime feed poller configuration
type FeedConfig struct {
	Enabled         bool `json:"enabled"`
	PollIntervalSec int  `json:"poll_interval_sec"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
