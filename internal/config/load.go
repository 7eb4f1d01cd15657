package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults for every key; a default must exist for AutomaticEnv to
	// surface the corresponding environment variable during Unmarshal.
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.url", "")
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("pipeline.interval_minutes", 5)
	v.SetDefault("pipeline.batch_size", 100)
	v.SetDefault("pipeline.retry_backoff_minutes", 5)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.send_timeout_seconds", 30)
	v.SetDefault("reminders.offsets_minutes", []int{1440, 60, 15})
	v.SetDefault("reminders.generation_time", "00:05")

	// Optional config file next to the binary or in the working directory.
	v.SetConfigName("remindkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is a real error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with the REMINDKIT_ prefix override file values,
	// e.g. REMINDKIT_DATABASE_URL, REMINDKIT_PIPELINE_BATCH_SIZE.
	v.SetEnvPrefix("REMINDKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
