package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurstPerOwner(t *testing.T) {
	l := NewLimiter(100, 5)

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("alice") {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
	assert.Equal(t, 0, l.Remaining("alice"))

	// bob has his own bucket
	assert.True(t, l.Allow("bob"))
	assert.Equal(t, 4, l.Remaining("bob"))
	assert.Equal(t, 100, l.PerHour())
}

func TestLimiterZeroRateStillBuilds(t *testing.T) {
	l := NewLimiter(0, 1)
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
}
