package memorylimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

type bucketState struct {
	// timestamps holds request times in Unix ms, newest last.
	timestamps []int64
}

// Limiter is an in-memory sliding-window rate limiter for single-node
// deployments. Buckets are keyed by bucket name and caller key, e.g.
// "tenant_resolve" and a client IP.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string]*bucketState
	now     func() time.Time
}

// New constructs a limiter with the provided per-bucket limits. A "default"
// entry applies to buckets without their own limit.
func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{
		limits:  limits,
		buckets: make(map[string]*bucketState),
		now:     time.Now,
	}
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

// AllowNamed records one event for key in bucket and reports whether it is
// within the bucket's limit. Denied events are not recorded.
func (l *Limiter) AllowNamed(_ context.Context, bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}

	lim := l.get(bucket)
	nowMs := l.now().UnixMilli()
	windowStart := nowMs - lim.Window.Milliseconds()
	limitKey := bucket + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[limitKey]
	if !ok {
		b = &bucketState{}
		l.buckets[limitKey] = b
	}

	ts := b.timestamps
	pruneIdx := 0
	for pruneIdx < len(ts) && ts[pruneIdx] <= windowStart {
		pruneIdx++
	}
	ts = ts[pruneIdx:]

	if len(ts) >= lim.Limit {
		b.timestamps = ts
		return false, nil
	}
	b.timestamps = append(ts, nowMs)
	return true, nil
}

// Sweep drops buckets whose events all fell out of their window.
func (l *Limiter) Sweep() {
	nowMs := l.now().UnixMilli()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if n := len(b.timestamps); n == 0 || b.timestamps[n-1] <= nowMs-l.windowFor(k).Milliseconds() {
			delete(l.buckets, k)
		}
	}
}

func (l *Limiter) windowFor(limitKey string) time.Duration {
	for i := 0; i < len(limitKey); i++ {
		if limitKey[i] == ':' {
			return l.get(limitKey[:i]).Window
		}
	}
	return l.get("").Window
}
