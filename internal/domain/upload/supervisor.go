package upload

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/driveline/driveline/internal/domain/model"
)

// ErrInvalidPolicy indicates a retry policy with a non-positive delay.
var ErrInvalidPolicy = errors.New("retry policy delays must be positive")

// Action is what the pipeline does after a failed attempt.
type Action string

const (
	// ActionRetry schedules another attempt after Decision.Delay.
	ActionRetry Action = "retry"
	// ActionFail ends the task with the classified status.
	ActionFail Action = "fail"
	// ActionInvalidateAndFail drops the folder mapping, then ends the task.
	ActionInvalidateAndFail Action = "invalidate_and_fail"
)

// Policy configures the retry budget and exponential backoff.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy returns three retries starting at ten seconds and doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 10 * time.Second,
		MaxDelay:     5 * time.Minute,
		Multiplier:   2,
	}
}

// Supervisor classifies attempt failures and hands out per-task attempt counters.
type Supervisor struct {
	policy Policy
}

// NewSupervisor validates the policy and constructs a Supervisor.
func NewSupervisor(p Policy) (*Supervisor, error) {
	if p.InitialDelay <= 0 {
		return nil, ErrInvalidPolicy
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return &Supervisor{policy: p}, nil
}

// Policy returns the effective policy.
func (s *Supervisor) Policy() Policy { return s.policy }

// Classify maps an attempt error to its policy class.
func (s *Supervisor) Classify(err error) Class { return Classify(err) }

// Status maps a terminal class to its ledger status.
func (s *Supervisor) Status(class Class, err error) model.UploadStatus {
	return StatusFor(class, err)
}

// NewAttempts returns a fresh counter for one task.
func (s *Supervisor) NewAttempts() *Attempts {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     s.policy.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          s.policy.Multiplier,
		MaxInterval:         s.policy.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return &Attempts{maxRetries: s.policy.MaxRetries, backoff: b}
}

// Decision is the supervisor's verdict on one failed attempt.
type Decision struct {
	Class  Class
	Action Action
	Delay  time.Duration
	// Retry is the 1-based retry number when Action is ActionRetry.
	Retry int
}

// ShouldRetry reports whether another attempt follows.
func (d Decision) ShouldRetry() bool { return d.Action == ActionRetry }

// Attempts tracks the retries of one task. It is not safe for concurrent use;
// each task owns its own counter.
type Attempts struct {
	maxRetries int
	retries    int
	backoff    *backoff.ExponentialBackOff
	lastDelay  time.Duration
}

// Retries returns the number of retries granted so far.
func (a *Attempts) Retries() int { return a.retries }

// Next decides what follows a failed attempt of the given class.
func (a *Attempts) Next(class Class) Decision {
	d := Decision{Class: class, Action: ActionFail}

	switch class {
	case ClassResourceMissing:
		d.Action = ActionInvalidateAndFail
		return d
	case ClassTransientNetwork, ClassTimeout:
		if a.retries >= a.maxRetries {
			return d
		}
		delay := a.backoff.NextBackOff()
		if delay == backoff.Stop {
			return d
		}
		if delay < a.lastDelay {
			delay = a.lastDelay
		}
		a.lastDelay = delay
		a.retries++
		d.Action = ActionRetry
		d.Delay = delay
		d.Retry = a.retries
		return d
	default:
		return d
	}
}

// Observe classifies err and decides. An attempt abandoned at the hard limit
// is a terminal timeout regardless of the remaining budget.
func (a *Attempts) Observe(err error) Decision {
	class := Classify(err)
	if errors.Is(err, ErrHardLimitExceeded) {
		return Decision{Class: ClassTimeout, Action: ActionFail}
	}
	return a.Next(class)
}
