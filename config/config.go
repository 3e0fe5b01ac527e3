package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Postgres and Redis configuration
//   - services.go: Service mode, pipeline and reaper configuration
//   - integrations.go: Chat platform, cloud drive, staging and archive configuration
//   - observability.go: Metrics and operator notifications
type AppConfig struct {
	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"pipeline,intake"`

	// Upload pipeline configuration
	Pipeline PipelineConfig `envPrefix:"PIPELINE_"`

	// Attachment fetch and staging configuration
	Fetch FetchConfig `envPrefix:"FETCH_"`

	// Cloud drive configuration
	Drive DriveConfig `envPrefix:"DRIVE_"`

	// Chat platform configuration
	Line LineConfig `envPrefix:"LINE_"`

	// Re-drive archive configuration
	Archive ArchiveConfig `envPrefix:"ARCHIVE_"`

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Redis.Sanitize()
	c.Pipeline.Sanitize()
	c.Fetch.Sanitize()
	c.Drive.Sanitize()
	c.Line.Sanitize()
	c.Archive.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsPipelineEnabled returns true if the upload worker pool is enabled.
func (c *AppConfig) IsPipelineEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModePipeline]
}

// IsIntakeEnabled returns true if the Redis intake consumer is enabled.
func (c *AppConfig) IsIntakeEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeIntake]
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
