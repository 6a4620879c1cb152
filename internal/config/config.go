// Package config defines the application configuration and its loading.
//
// The configuration is constructed exactly once at startup and passed into
// component constructors. Nothing in this codebase reads configuration from
// process-wide mutable state.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all task-store database settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// StorageConfig contains object storage settings for source documents and
// rewritten results.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"   validate:"required"`
	AccessKey string `mapstructure:"access_key" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	Bucket    string `mapstructure:"bucket"     validate:"required"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// LLMConfig contains all settings for the content rewrite service.
type LLMConfig struct {
	GeminiAPIKey      string  `mapstructure:"gemini_api_key" validate:"required"`
	ModelName         string  `mapstructure:"model_name"     validate:"required"`
	Temperature       float32 `mapstructure:"temperature"        validate:"gte=0,lte=2"`
	MaxOutputTokens   int32   `mapstructure:"max_output_tokens"  validate:"gt=0"`
	MaxRetries        int     `mapstructure:"max_retries"        validate:"gte=0"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"gte=1"`
}

// PipelineConfig contains timing and sizing knobs for the task pipeline.
type PipelineConfig struct {
	// PollInterval is how often the runner checks the store for pending work.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`

	// TaskTimeout is the wall-clock bound the watchdog enforces per task.
	TaskTimeout time.Duration `mapstructure:"task_timeout" validate:"required"`

	// Retention is how long a task record is kept after creation.
	Retention time.Duration `mapstructure:"retention" validate:"required"`

	// SweepInterval is how often expired task records are deleted.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required"`

	// MaxDocumentBytes bounds the placeholder-encoded document handed to the
	// rewrite service.
	MaxDocumentBytes int `mapstructure:"max_document_bytes" validate:"gt=0"`
}
