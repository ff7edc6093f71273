package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffFactor: 2}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 8*time.Second, policy.NextDelay(4))
}

func TestRetryPolicyClampsToMaxDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, 5*time.Second, policy.NextDelay(10))
}

func TestRetryPolicyDefaults(t *testing.T) {
	var policy RetryPolicy
	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, time.Second, policy.NextDelay(0))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 5, policy.MaxRetries)
	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 32*time.Second, policy.NextDelay(5))
	assert.Equal(t, time.Minute, policy.NextDelay(8))
}
