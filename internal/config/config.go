package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Push      PushConfig      `mapstructure:"push"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  validate:"required"`
	Reminders RemindersConfig `mapstructure:"reminders" validate:"required"`
}

// ServerConfig contains process-level settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// PushConfig contains push-delivery provider settings.
type PushConfig struct {
	// CredentialsFile is the path to the service account credentials used
	// to authenticate against the delivery provider. When empty, the
	// provider falls back to application default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`
}

// PipelineConfig tunes the notification delivery pipeline. The batch cap
// and retry backoff are deliberately configurable rather than hard-coded:
// neither value is load-tested, so operators may need to adjust them.
type PipelineConfig struct {
	// IntervalMinutes is how often the delivery scan runs.
	IntervalMinutes int `mapstructure:"interval_minutes" validate:"required,gt=0"`

	// BatchSize caps how many due notifications one invocation processes.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0,lte=500"`

	// RetryBackoffMinutes is the fixed delay before a failed delivery is
	// attempted again.
	RetryBackoffMinutes int `mapstructure:"retry_backoff_minutes" validate:"required,gt=0"`

	// Concurrency bounds how many notifications are delivered in parallel
	// within one invocation.
	Concurrency int `mapstructure:"concurrency" validate:"required,gt=0,lte=64"`

	// SendTimeoutSeconds bounds each individual send call so one stuck
	// provider round-trip cannot stall the rest of the batch.
	SendTimeoutSeconds int `mapstructure:"send_timeout_seconds" validate:"required,gt=0"`
}

// RemindersConfig tunes deadline-reminder scheduling and occurrence generation.
type RemindersConfig struct {
	// OffsetsMinutes lists how far before a task's due time reminders are
	// scheduled, in minutes.
	OffsetsMinutes []int `mapstructure:"offsets_minutes" validate:"required,min=1,dive,gt=0"`

	// GenerationTime is the local HH:MM at which the daily occurrence
	// generation run is triggered.
	GenerationTime string `mapstructure:"generation_time" validate:"required"`
}
