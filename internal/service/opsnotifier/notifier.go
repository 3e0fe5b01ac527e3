// Package opsnotifier fans terminal upload failures out to operator sinks.
package opsnotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/driveline/driveline/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the notifier.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Timeout bounds each delivery, retries included. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
	// SkipStatuses lists ledger statuses that never reach operators.
	SkipStatuses []string
}

// Service dispatches upload failure events to all registered sinks.
type Service struct {
	logger  *slog.Logger
	sinks   []SinkRegistration
	timeout time.Duration
	skip    map[string]struct{}
}

// NewService constructs an ops notifier. Nil sinks are ignored.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}

	skip := make(map[string]struct{}, len(opts.SkipStatuses))
	for _, s := range opts.SkipStatuses {
		skip[s] = struct{}{}
	}

	return &Service{
		logger:  logger.With("component", "ops_notifier"),
		sinks:   sinks,
		timeout: opts.Timeout,
		skip:    skip,
	}
}

// NotifyUploadFailure delivers the payload to every sink concurrently and
// waits for all of them. Delivery errors are logged, never returned.
func (s *Service) NotifyUploadFailure(ctx context.Context, payload notify.UploadFailurePayload) {
	if s == nil || len(s.sinks) == 0 {
		return
	}
	if _, skipped := s.skip[payload.Status]; skipped {
		s.logger.DebugContext(ctx, "skipping ops notification",
			"recipient_id", payload.RecipientID,
			"status", payload.Status,
		)
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityError
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now().UTC()
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sendCtx, cancel := s.deliveryContext(ctx)
			defer cancel()
			if err := entry.Sink.SendUploadFailure(sendCtx, payload); err != nil {
				s.logger.ErrorContext(ctx, "ops notification delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"recipient_id", payload.RecipientID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

func (s *Service) deliveryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
