package worker

import (
	"math"
	"time"
)

// RetryPolicy schedules redelivery of failed notification tasks with
// exponential backoff.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy retries five times over roughly two minutes, enough to
// ride out webhook hiccups and short Sheets API outages.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}
}

// NextDelay returns the backoff before the given attempt (1-based), clamped
// to MaxDelay.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	if delay <= 0 {
		return initial
	}
	return delay
}
