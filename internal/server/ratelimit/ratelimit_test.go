package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/load-examples", "GET")
		require.True(t, allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/load-examples", "GET")
	assert.False(t, allowed, "11th request should be denied")
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.True(t, info.ResetTime.After(time.Now()))
}

func TestLimiter_Refill(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  20,
		DefaultWindow: time.Second, // one token every 50ms
	})
	defer limiter.Stop()

	for i := 0; i < 20; i++ {
		limiter.Allow("c", "/x", "GET")
	}
	allowed, _ := limiter.Allow("c", "/x", "GET")
	require.False(t, allowed)

	time.Sleep(120 * time.Millisecond)
	allowed, _ = limiter.Allow("c", "/x", "GET")
	assert.True(t, allowed, "a token should have been refilled")
}

func TestLimiter_Whitelist(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
	})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/generate-image", "POST")
		require.True(t, allowed)
		assert.Equal(t, 0, info.Limit)
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Blacklist:     map[string]bool{"10.0.0.9": true},
	})
	defer limiter.Stop()

	allowed, _ := limiter.Allow("10.0.0.9", "/health", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Allow("c", "/generate-image", "POST")
		assert.True(t, allowed)
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})
	defer limiter.Stop()

	// Burst of 5 on generate-image
	for i := 0; i < 5; i++ {
		allowed, info := limiter.Allow("c", "/generate-image", "POST")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 60, info.Limit)
	}
	allowed, _ := limiter.Allow("c", "/generate-image", "POST")
	assert.False(t, allowed)

	// Other endpoints and other clients are unaffected
	allowed, info := limiter.Allow("c", "/load-examples", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
	allowed, _ = limiter.Allow("other", "/generate-image", "POST")
	assert.True(t, allowed)

	// Prefix match on delete
	_, info = limiter.Allow("c", "/delete-example/abc", "DELETE")
	assert.Equal(t, 60, info.Limit)
}

func TestLimiter_PrefixRouteSharesBucket(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})
	defer limiter.Stop()

	denied := 0
	for i := 0; i < 50; i++ {
		allowed, info := limiter.Allow("1.2.3.4", fmt.Sprintf("/delete-example/id-%d", i), "DELETE")
		assert.Equal(t, 60, info.Limit)
		if !allowed {
			denied++
		}
	}
	assert.Equal(t, 40, denied, "burst of 10 applies across ids")
	assert.Equal(t, 1, limiter.Len())

	for i := 0; i < 100; i++ {
		limiter.Allow("1.2.3.4", fmt.Sprintf("/image-status/req-%d", i), "GET")
	}
	assert.Equal(t, 2, limiter.Len(), "status polling uses one bucket per client")
	allowed, _ := limiter.Allow("1.2.3.4", "/image-status/req-final", "GET")
	assert.False(t, allowed)
}

func TestLimiter_UnlimitedRoutes(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
	})
	defer limiter.Stop()

	for i := 0; i < 50; i++ {
		allowed, _ := limiter.Allow("c", "/health", "GET")
		require.True(t, allowed)
		allowed, _ = limiter.Allow("c", "/files/examples/images/a.png", "GET")
		require.True(t, allowed)
	}
	assert.Equal(t, 0, limiter.Len(), "unlimited routes need no buckets")
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Hour,
	})
	defer limiter.Stop()

	var allowedCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("c", "/x", "GET"); ok {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), allowedCount.Load())
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		IdleTimeout:   time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), "/x", "GET")
	}
	require.Equal(t, 3, limiter.Len())

	limiter.cleanupBuckets(time.Now())
	assert.Equal(t, 3, limiter.Len(), "fresh buckets are kept")

	limiter.cleanupBuckets(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, limiter.Len())
}

func TestLimiter_StopTwice(t *testing.T) {
	limiter := NewLimiter(nil)
	assert.NotPanics(t, func() {
		limiter.Stop()
		limiter.Stop()
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "50")
	t.Setenv("RATE_LIMIT_WHITELIST", "127.0.0.1, 10.0.0.1")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.DefaultWindow)
	assert.True(t, cfg.Whitelist["10.0.0.1"])
	assert.NotEmpty(t, cfg.EndpointConfigs)

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}
