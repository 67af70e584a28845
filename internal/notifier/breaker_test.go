package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.OnFailure()
	b.OnFailure()
	assert.True(t, b.Ready())
	assert.True(t, b.TryAcquire())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.OnFailure()
	b.OnFailure()
	b.OnFailure()
	assert.False(t, b.Ready())
	assert.False(t, b.TryAcquire())
}

func TestBreakerAllowsSingleProbeAfterOpenWindow(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.OnFailure()
	assert.False(t, b.TryAcquire())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.TryAcquire())
	// Only one probe at a time.
	assert.False(t, b.TryAcquire())
}

func TestProbeSuccessClosesBreaker(t *testing.T) {
	b := NewBreaker(1, 5*time.Millisecond)
	b.OnFailure()
	time.Sleep(10 * time.Millisecond)
	assert.True(t, b.TryAcquire())

	b.OnSuccess()
	assert.True(t, b.Ready())
	assert.True(t, b.TryAcquire())
}

func TestProbeFailureReopensBreaker(t *testing.T) {
	b := NewBreaker(1, 5*time.Millisecond)
	b.OnFailure()
	time.Sleep(10 * time.Millisecond)
	assert.True(t, b.TryAcquire())

	b.OnFailure()
	assert.False(t, b.TryAcquire())
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	b.OnFailure()
	assert.True(t, b.Ready())
}
