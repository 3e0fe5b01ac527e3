package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModePipeline runs the upload worker pool.
	ServiceModePipeline ServiceMode = "pipeline"
	// ServiceModeIntake runs the Redis intake consumer that feeds the pipeline.
	ServiceModeIntake ServiceMode = "intake"
	// ServiceModeReaper runs the ledger/staging/archive reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModePipeline,
		ServiceModeIntake,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModePipeline, ServiceModeIntake, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: pipeline, intake, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// PipelineConfig contains upload pipeline configuration.
type PipelineConfig struct {
	// Workers is the number of job workers pulling submitted jobs off the queue.
	Workers int `env:"WORKERS" envDefault:"4"`

	// QueueSize bounds the number of submitted jobs waiting for a worker.
	QueueSize int `env:"QUEUE_SIZE" envDefault:"256"`

	// TaskConcurrency caps concurrently running upload tasks across all jobs.
	TaskConcurrency int `env:"TASK_CONCURRENCY" envDefault:"16"`

	// TaskSoftLimit is the per-attempt deadline; exceeding it is a retryable timeout.
	TaskSoftLimit time.Duration `env:"TASK_SOFT_LIMIT" envDefault:"270s"`

	// TaskHardLimit is the per-attempt kill limit; exceeding it ends the task.
	TaskHardLimit time.Duration `env:"TASK_HARD_LIMIT" envDefault:"300s"`

	// MaxRetries is the maximum number of retries after the first attempt.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"3"`

	// RetryInitialDelay is the delay before the first retry.
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"10s"`

	// RetryMaxDelay caps the exponential retry delay.
	RetryMaxDelay time.Duration `env:"RETRY_MAX_DELAY" envDefault:"5m"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.QueueSize < 1 {
		p.QueueSize = 1
	}
	if p.TaskConcurrency < 1 {
		p.TaskConcurrency = 1
	}
	if p.TaskHardLimit < 10*time.Second {
		p.TaskHardLimit = 10 * time.Second
	}
	if p.TaskSoftLimit <= 0 || p.TaskSoftLimit > p.TaskHardLimit {
		p.TaskSoftLimit = p.TaskHardLimit * 9 / 10
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.RetryInitialDelay <= 0 {
		p.RetryInitialDelay = time.Second
	}
	if p.RetryMaxDelay < p.RetryInitialDelay {
		p.RetryMaxDelay = p.RetryInitialDelay
	}
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"24h"`

	// LedgerRetentionDays is how long upload attempt rows are kept.
	LedgerRetentionDays int `env:"REAPER_LEDGER_RETENTION_DAYS" envDefault:"7"`

	// StagingMaxAge is the age after which staged files are treated as orphans.
	// Staged files normally live only until their job's barrier fires.
	StagingMaxAge time.Duration `env:"REAPER_STAGING_MAX_AGE" envDefault:"1h"`

	// BatchSize is the maximum number of rows to delete per statement.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// LedgerRetention returns the ledger retention as a duration.
func (r ReaperConfig) LedgerRetention() time.Duration {
	return time.Duration(r.LedgerRetentionDays) * 24 * time.Hour
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.LedgerRetentionDays < 1 {
		r.LedgerRetentionDays = 1
	}
	// Must comfortably exceed the task hard limit times the retry budget.
	if r.StagingMaxAge < 30*time.Minute {
		r.StagingMaxAge = 30 * time.Minute
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
