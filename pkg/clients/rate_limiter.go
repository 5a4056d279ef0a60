package clients

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is the subset of *rate.Limiter the client depends on.
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
}

// NewRateLimiter returns a token bucket allowing rps requests per second.
// A burst below one defaults to twice the rate. A non-positive rps yields
// an unlimited limiter.
func NewRateLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = int(rps * 2)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
