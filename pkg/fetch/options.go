// Copyright © 2018 One Concern

package fetch

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultUserAgent       = "darkpan/1.0"
	defaultMaxRetries      = 3
	defaultBaseDelay       = 500 * time.Millisecond
	defaultDNSRefresh      = 5 * time.Minute
	defaultTripThreshold   = 5
	defaultBreakerInterval = 30 * time.Second
)

// Option configures a fetcher client
type Option func(*Client)

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(f *Client) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxRetries sets the maximum number of retries on transient failures
func WithMaxRetries(n uint64) Option {
	return func(f *Client) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the initial delay of the exponential backoff
func WithBaseDelay(d time.Duration) Option {
	return func(f *Client) {
		if d > 0 {
			f.baseDelay = d
		}
	}
}

// WithCircuitBreaker sets the number of consecutive failures tripping the breaker of a host,
// and the initial interval before a tripped breaker lets a request through again
func WithCircuitBreaker(threshold int64, interval time.Duration) Option {
	return func(f *Client) {
		f.breakers = newBreakers(threshold, interval)
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(f *Client) {
		if l != nil {
			f.l = l
		}
	}
}
