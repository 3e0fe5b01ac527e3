package data

import "time"

// TimeProvider stamps rows. Repositories take one so tests can pin "now".
type TimeProvider interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

func timeProviderOrDefault(tp TimeProvider) TimeProvider {
	if tp == nil {
		return systemClock{}
	}
	return tp
}
