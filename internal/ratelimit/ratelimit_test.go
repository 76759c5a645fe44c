package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestConfig implements the Config interface for testing
type TestConfig struct {
	DisableRateLimit bool
	RPS              float64
	Burst            int
}

func (c *TestConfig) GetDisableRateLimit() bool { return c.DisableRateLimit }
func (c *TestConfig) GetRateLimitRPS() float64  { return c.RPS }
func (c *TestConfig) GetRateLimitBurst() int    { return c.Burst }

// frozenLimiter returns a limiter whose clock only moves when the test advances it
func frozenLimiter(cfg Config) (*ClientLimiter, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewClientLimiter(cfg)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestClientLimiter_Disabled(t *testing.T) {
	limiter, _ := frozenLimiter(&TestConfig{DisableRateLimit: true, RPS: 1, Burst: 1})

	for i := 0; i < 10; i++ {
		result := limiter.Check("10.0.0.1")
		assert.False(t, result.ShouldBlock)
		assert.Equal(t, "rate_limiting_disabled", result.Reason)
	}
	assert.Equal(t, 0, limiter.Size())
}

func TestClientLimiter_Burst(t *testing.T) {
	limiter, _ := frozenLimiter(&TestConfig{RPS: 2, Burst: 3})

	for i := 0; i < 3; i++ {
		result := limiter.Check("10.0.0.1")
		assert.False(t, result.ShouldBlock, "request %d should pass", i+1)
		assert.Equal(t, "rate_limit_passed", result.Reason)
	}

	result := limiter.Check("10.0.0.1")
	assert.True(t, result.ShouldBlock)
	assert.Equal(t, "rate_limit_active", result.Reason)
	assert.Equal(t, 500*time.Millisecond, result.RemainingTime)
}

func TestClientLimiter_Refill(t *testing.T) {
	limiter, now := frozenLimiter(&TestConfig{RPS: 2, Burst: 1})

	assert.False(t, limiter.Check("client").ShouldBlock)
	assert.True(t, limiter.Check("client").ShouldBlock)

	*now = now.Add(500 * time.Millisecond)
	assert.False(t, limiter.Check("client").ShouldBlock)
}

func TestClientLimiter_BlockedCheckDoesNotConsume(t *testing.T) {
	limiter, now := frozenLimiter(&TestConfig{RPS: 1, Burst: 1})

	assert.False(t, limiter.Check("client").ShouldBlock)
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Check("client").ShouldBlock)
	}

	*now = now.Add(time.Second)
	assert.False(t, limiter.Check("client").ShouldBlock, "rejected requests must not push the window out")
}

func TestClientLimiter_IsolatesClients(t *testing.T) {
	limiter, _ := frozenLimiter(&TestConfig{RPS: 1, Burst: 1})

	assert.False(t, limiter.Check("10.0.0.1").ShouldBlock)
	assert.True(t, limiter.Check("10.0.0.1").ShouldBlock)
	assert.False(t, limiter.Check("10.0.0.2").ShouldBlock)
	assert.Equal(t, 2, limiter.Size())
}

func TestClientLimiter_ZeroBurstAlwaysBlocks(t *testing.T) {
	limiter, _ := frozenLimiter(&TestConfig{RPS: 1, Burst: 0})

	result := limiter.Check("client")
	assert.True(t, result.ShouldBlock)
	assert.Equal(t, "burst_exceeded", result.Reason)
}

func TestClientLimiter_Prune(t *testing.T) {
	limiter, now := frozenLimiter(&TestConfig{RPS: 1, Burst: 1})

	limiter.Check("old")
	*now = now.Add(10 * time.Minute)
	limiter.Check("recent")

	removed := limiter.Prune(5 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, limiter.Size())
}
