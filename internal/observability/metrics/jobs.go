// Package metrics emits the pipeline's standard metric shapes onto a statsd.Sink.
package metrics

import (
	"strconv"
	"time"

	"github.com/driveline/driveline/internal/domain/model"
	obserrors "github.com/driveline/driveline/internal/observability/errors"
	"github.com/driveline/driveline/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Job lifecycle transitions.
const (
	TransitionSubmitted = "submitted"
	TransitionRejected  = "rejected"
	TransitionFetched   = "fetched"
	TransitionCompleted = "completed"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	ContextKind model.ContextKind
	Transition  string
	Result      string
	Duration    time.Duration
	Err         error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"context_kind": string(in.ContextKind),
		"transition":   in.Transition,
		"result":       in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitTaskOutcome emits the per-recipient upload result: a counter tagged by
// result and policy class, the attempt count and the task duration.
func EmitTaskOutcome(sink statsd.Sink, kind model.ContextKind, out model.TaskOutcome) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	if !out.Succeeded() {
		result = ResultError
	}
	tags := map[string]string{
		"context_kind": string(kind),
		"result":       result,
		"status":       string(out.Status),
	}
	if out.Class != "" {
		tags["class"] = out.Class
	}
	if out.Err != nil {
		if tag := obserrors.Classify(out.Err); tag != "" {
			tags["error_class"] = tag
		}
	}

	sink.Count("upload.task", 1, tags)
	sink.Gauge("upload.task.attempts", float64(out.Attempts), CloneTags(tags))
	if out.Duration > 0 {
		sink.Timing("upload.task.duration", out.Duration, CloneTags(tags))
	}
}

// EmitRetry counts a scheduled retry of an upload attempt.
func EmitRetry(sink statsd.Sink, class string, attempt int) {
	if sink == nil {
		return
	}
	sink.Count("upload.retry", 1, map[string]string{
		"class":   class,
		"attempt": strconv.Itoa(attempt),
	})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
