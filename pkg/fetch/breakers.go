// Copyright © 2018 One Concern

package fetch

import (
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// breakers keeps one circuit breaker per upstream host
type breakers struct {
	mu        sync.RWMutex
	threshold int64
	interval  time.Duration
	byHost    map[string]*circuit.Breaker
}

func newBreakers(threshold int64, interval time.Duration) *breakers {
	if threshold <= 0 {
		threshold = defaultTripThreshold
	}
	if interval <= 0 {
		interval = defaultBreakerInterval
	}
	return &breakers{
		threshold: threshold,
		interval:  interval,
		byHost:    make(map[string]*circuit.Breaker),
	}
}

func (b *breakers) get(host string) *circuit.Breaker {
	b.mu.RLock()
	breaker, ok := b.byHost[host]
	b.mu.RUnlock()
	if ok {
		return breaker
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if breaker, ok = b.byHost[host]; ok {
		return breaker
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.interval
	policy.MaxInterval = 10 * b.interval
	policy.Multiplier = 2.0
	policy.MaxElapsedTime = 0
	policy.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    policy,
		ShouldTrip: circuit.ThresholdTripFunc(b.threshold),
	})
	b.byHost[host] = breaker
	return breaker
}
