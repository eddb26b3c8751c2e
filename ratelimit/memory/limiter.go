package memorylimiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Limit is the number of requests allowed per window in one bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is an in-memory sliding-window rate limiter for single-node
// deployments without Redis.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string][]time.Time // request times, oldest first
	now     func() time.Time
}

func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{limits: limits, buckets: make(map[string][]time.Time), now: time.Now}
}

func (l *Limiter) get(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

// AllowNamed records one request for key in bucket and reports whether it
// fits the limit. Expired entries are pruned on each call and empty buckets
// dropped so memory stays bounded by active keys.
func (l *Limiter) AllowNamed(_ context.Context, bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, errors.New("bucket and key required")
	}
	lim := l.get(bucket)
	now := l.now()
	windowStart := now.Add(-lim.Window)
	limitKey := bucket + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.buckets[limitKey]
	i := 0
	for i < len(ts) && !ts[i].After(windowStart) {
		i++
	}
	ts = ts[i:]
	if len(ts) >= lim.Limit {
		l.buckets[limitKey] = ts
		return false, nil
	}
	ts = append(ts, now)
	l.buckets[limitKey] = ts
	return true, nil
}

// Sweep drops buckets with no requests inside their window.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, ts := range l.buckets {
		if len(ts) == 0 || now.Sub(ts[len(ts)-1]) > time.Hour {
			delete(l.buckets, k)
		}
	}
}
