package upload

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T, p Policy) *Supervisor {
	t.Helper()
	s, err := NewSupervisor(p)
	require.NoError(t, err)
	return s
}

func TestNewSupervisor_RejectsNonPositiveDelay(t *testing.T) {
	_, err := NewSupervisor(Policy{MaxRetries: 3})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestAttempts_RetryBoundAndNonDecreasingBackoff(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 3, 6} {
		s := newTestSupervisor(t, Policy{
			MaxRetries:   maxRetries,
			InitialDelay: 10 * time.Second,
			MaxDelay:     40 * time.Second,
			Multiplier:   2,
		})
		a := s.NewAttempts()

		var delays []time.Duration
		for range 20 {
			d := a.Next(ClassTransientNetwork)
			if !d.ShouldRetry() {
				assert.Equal(t, ActionFail, d.Action)
				break
			}
			delays = append(delays, d.Delay)
		}

		assert.Len(t, delays, maxRetries)
		assert.Equal(t, maxRetries, a.Retries())
		for i := 1; i < len(delays); i++ {
			assert.GreaterOrEqual(t, delays[i], delays[i-1], "delay %d decreased", i)
		}
		for _, d := range delays {
			assert.LessOrEqual(t, d, 40*time.Second)
		}
	}
}

func TestAttempts_DefaultPolicyDelays(t *testing.T) {
	a := newTestSupervisor(t, DefaultPolicy()).NewAttempts()

	assert.Equal(t, 10*time.Second, a.Next(ClassTimeout).Delay)
	assert.Equal(t, 20*time.Second, a.Next(ClassTransientNetwork).Delay)
	assert.Equal(t, 40*time.Second, a.Next(ClassTimeout).Delay)
	assert.False(t, a.Next(ClassTimeout).ShouldRetry())
}

func TestAttempts_TerminalClasses(t *testing.T) {
	s := newTestSupervisor(t, DefaultPolicy())

	tests := []struct {
		class Class
		want  Action
	}{
		{ClassAuthInvalid, ActionFail},
		{ClassPermissionDenied, ActionFail},
		{ClassUnclassified, ActionFail},
		{ClassCanceled, ActionFail},
		{ClassResourceMissing, ActionInvalidateAndFail},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			a := s.NewAttempts()
			d := a.Next(tt.class)
			assert.Equal(t, tt.want, d.Action)
			assert.Zero(t, d.Delay)
			assert.Zero(t, a.Retries())
		})
	}
}

func TestAttempts_ObserveHardLimitIsTerminal(t *testing.T) {
	a := newTestSupervisor(t, DefaultPolicy()).NewAttempts()

	soft := a.Observe(fmt.Errorf("upload: %w", context.DeadlineExceeded))
	assert.Equal(t, ClassTimeout, soft.Class)
	assert.True(t, soft.ShouldRetry())

	hard := a.Observe(ErrHardLimitExceeded)
	assert.Equal(t, ClassTimeout, hard.Class)
	assert.Equal(t, ActionFail, hard.Action)
}

func TestAttempts_CountersAreIndependent(t *testing.T) {
	s := newTestSupervisor(t, DefaultPolicy())
	a, b := s.NewAttempts(), s.NewAttempts()

	a.Next(ClassTimeout)
	a.Next(ClassTimeout)

	d := b.Next(ClassTimeout)
	assert.Equal(t, 1, d.Retry)
	assert.Equal(t, 10*time.Second, d.Delay)
}
