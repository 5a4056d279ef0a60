package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPClient_BearerAuth(t *testing.T) {
	var gotAuth, gotAgent, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotVersion = r.Header.Get("GoCardless-Version")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultHTTPConfig()
	cfg.Name = "test_bearer"
	cfg.TokenSource = BearerTokenSource("sandbox_token")
	client := NewHTTPClient(cfg, zap.NewNop())
	defer client.Close()

	resp, err := client.Get(context.Background(), server.URL, map[string]string{"GoCardless-Version": "2015-07-06"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer sandbox_token", gotAuth)
	assert.Equal(t, DefaultUserAgent, gotAgent)
	assert.Equal(t, "2015-07-06", gotVersion)
	assert.Equal(t, int64(1), client.GetStats().TotalRequests)
}

func TestHTTPClient_CircuitOpensOnServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := DefaultHTTPConfig()
	cfg.Name = "test_breaker"
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	client := NewHTTPClient(cfg, zap.NewNop())

	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		resp.Body.Close()
	}

	_, err := client.Get(context.Background(), server.URL, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "open", client.GetStats().CircuitState)
}

func TestBreakerConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  HTTPConfig
		want CircuitBreakerConfig
	}{
		{
			name: "zero values use defaults",
			cfg:  HTTPConfig{Name: "api"},
			want: DefaultCircuitBreakerConfig("api"),
		},
		{
			name: "client settings override defaults",
			cfg:  HTTPConfig{Name: "api", FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute},
			want: CircuitBreakerConfig{Name: "api", FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute, HalfOpenRequests: 1},
		},
		{
			name: "partial override",
			cfg:  HTTPConfig{Name: "api", Timeout: time.Second},
			want: CircuitBreakerConfig{Name: "api", FailureThreshold: 5, SuccessThreshold: 3, Timeout: time.Second, HalfOpenRequests: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, breakerConfig(&tt.cfg))
		})
	}
}

func TestHTTPClient_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	cfg := DefaultHTTPConfig()
	cfg.Name = "test_rate"
	cfg.RateLimit = 1
	cfg.RateBurst = 1
	client := NewHTTPClient(cfg, zap.NewNop())

	resp, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter wait")
}

func TestHTTPConfigFromBase(t *testing.T) {
	base := config.NewBaseConfig("gocardless", "gocardless")
	base.Reliability.RateLimitPerSec = 7
	base.Reliability.CircuitBreaker = false
	base.Timeouts.Request = 5 * time.Second

	cfg := HTTPConfigFromBase("gocardless", base)
	assert.Equal(t, float64(7), cfg.RateLimit)
	assert.False(t, cfg.CircuitBreakerEnabled)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "gocardless", cfg.Name)
}
