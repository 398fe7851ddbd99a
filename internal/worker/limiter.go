package worker

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// minThrottledRate is the floor Throttle will not go below
const minThrottledRate = rate.Limit(0.2)

// Limiter paces outgoing API requests per host.
// Throttle halves a host's rate after a rate-limited response; Recover restores it gradually.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until a request to rawURL may be sent
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.get(host).Wait(ctx)
}

// Allow reports whether a request may be sent now without waiting
func (l *Limiter) Allow(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return l.get(host).Allow()
}

// WaitWithDelay waits for a token and then for an extra delay, e.g. a robots.txt crawl delay
func (l *Limiter) WaitWithDelay(ctx context.Context, rawURL string, extra time.Duration) error {
	if err := l.Wait(ctx, rawURL); err != nil {
		return err
	}
	if extra <= 0 {
		return nil
	}

	t := time.NewTimer(extra)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Throttle halves the request rate of rawURL's host
func (l *Limiter) Throttle(rawURL string) rate.Limit {
	host, err := hostOf(rawURL)
	if err != nil {
		return l.defaultRate
	}
	lim := l.get(host)
	next := lim.Limit() / 2
	if next < minThrottledRate {
		next = minThrottledRate
	}
	lim.SetLimit(next)
	return next
}

// Recover raises a throttled host's rate by a quarter of the default, capped at the default
func (l *Limiter) Recover(rawURL string) rate.Limit {
	host, err := hostOf(rawURL)
	if err != nil {
		return l.defaultRate
	}
	lim := l.get(host)
	cur := lim.Limit()
	if cur >= l.defaultRate {
		return cur
	}
	next := cur + l.defaultRate/4
	if next > l.defaultRate {
		next = l.defaultRate
	}
	lim.SetLimit(next)
	return next
}

// Rate returns the current rate of rawURL's host
func (l *Limiter) Rate(rawURL string) rate.Limit {
	host, err := hostOf(rawURL)
	if err != nil {
		return l.defaultRate
	}
	return l.get(host).Limit()
}

// SetDomainRate sets a custom rate limit for a specific host
func (l *Limiter) SetDomainRate(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.limiters[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func (l *Limiter) get(host string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if lim, ok := l.limiters[host]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[host] = lim
	return lim
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return parsed.Host, nil
}
