package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_New(t *testing.T) {
	assert.Equal(t, 5, NewLimiter(10, 5).defaultBurst)
	assert.Equal(t, 1, NewLimiter(10, -1).defaultBurst)
}

func TestLimiter_ZeroRateUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow("https://transparencia.sns.gov.pt/x"))
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "https://transparencia.sns.gov.pt/api/explore/v2.1/catalog/datasets/portal-base/records"))
	require.NoError(t, limiter.Wait(ctx, "https://dados.gov.pt/pt/datasets/"))
}

func TestLimiter_InvalidURL(t *testing.T) {
	limiter := NewLimiter(1, 1)
	assert.Error(t, limiter.Wait(context.Background(), "::invalid"))
	assert.Error(t, limiter.Wait(context.Background(), "/relative/path"))
	assert.False(t, limiter.Allow("::invalid"))
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)

	start := time.Now()
	require.NoError(t, limiter.WaitWithDelay(context.Background(), "http://example.com", 50*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_WaitWithDelayCanceled(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.WaitWithDelay(ctx, "http://example.com", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)
	url := "http://example.com"

	require.NoError(t, limiter.Wait(context.Background(), url))
	assert.False(t, limiter.Allow(url), "burst exhausted")
	assert.True(t, limiter.Allow("http://other.com"), "other host has its own bucket")
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetHostRate("slow.example", 0.1, 1)

	assert.True(t, limiter.Allow("http://slow.example/a"))
	assert.False(t, limiter.Allow("http://slow.example/b"))
	assert.True(t, limiter.Allow("http://fast.example"))
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("https://transparencia.sns.gov.pt:443/robots.txt")
	require.NoError(t, err)
	assert.Equal(t, "transparencia.sns.gov.pt:443", host)
}
