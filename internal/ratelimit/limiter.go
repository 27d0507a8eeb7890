package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limiter manages one token bucket per source plus a single shared
// global bucket. Acquire waits (respecting ctx) for as long as the
// source-specific and global buckets say they need to spare a token,
// accounting for any backoff accrued by prior failures.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*TokenBucket
	sourceCfg   BucketConfig
	global      *TokenBucket
	logger      *slog.Logger
}

// NewLimiter builds a Limiter using sourceCfg as the default for any
// source that doesn't carry its own override, and globalCfg for the
// shared bucket.
func NewLimiter(sourceCfg, globalCfg BucketConfig, logger *slog.Logger) *Limiter {
	return &Limiter{
		buckets:   make(map[string]*TokenBucket),
		sourceCfg: sourceCfg,
		global:    NewTokenBucket(globalCfg),
		logger:    logger.With("component", "rate_limiter"),
	}
}

// bucketFor returns the bucket for source, creating it from cfg (or the
// limiter's default) on first use.
func (l *Limiter) bucketFor(source string, cfg *BucketConfig) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[source]; ok {
		return b
	}
	c := l.sourceCfg
	if cfg != nil {
		c = *cfg
	}
	b := NewTokenBucket(c)
	l.buckets[source] = b
	return b
}

// Acquire blocks until a token is available for source under both the
// per-source and global buckets, sleeping for the larger of the two
// buckets' wait time and backoff. It returns ctx.Err() if the context is
// cancelled while waiting, and reports whether the caller was actually
// made to wait (used to distinguish a rate-limiter hit from a normal
// token-available acquire). If either bucket still cannot spare a token
// once the wait is over, Acquire records a failure against both buckets
// and returns a nil error without having taken a token from that bucket.
func (l *Limiter) Acquire(ctx context.Context, source string, cfg *BucketConfig) (waited bool, err error) {
	bucket := l.bucketFor(source, cfg)

	sourceWait := bucket.WaitTime(1)
	globalWait := l.global.WaitTime(1)
	sourceBackoff := bucket.BackoffTime()
	globalBackoff := l.global.BackoffTime()

	wait := sourceWait
	if globalWait > wait {
		wait = globalWait
	}
	if sourceBackoff > wait {
		wait = sourceBackoff
	}
	if globalBackoff > wait {
		wait = globalBackoff
	}

	if wait > 0 {
		l.logger.Info("rate limiting", "source", source, "wait", wait)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case <-timer.C:
		}
	}

	sourceOK := bucket.Consume(1)
	globalOK := l.global.Consume(1)

	if sourceOK && globalOK {
		bucket.RecordSuccess()
		l.global.RecordSuccess()
		return wait > 0, nil
	}

	bucket.RecordFailure()
	l.global.RecordFailure()
	return wait > 0, nil
}

// RecordError marks a failure against source's bucket and the global
// bucket, growing future backoff even when the caller never went
// through Acquire (e.g. a fetch that failed after tokens were already
// spent).
func (l *Limiter) RecordError(source string) {
	bucket := l.bucketFor(source, nil)
	bucket.RecordFailure()
	l.global.RecordFailure()
	l.logger.Warn("recorded rate limit error", "source", source)
}

// RecordSuccess clears accrued backoff for source after a clean fetch.
func (l *Limiter) RecordSuccess(source string) {
	bucket := l.bucketFor(source, nil)
	bucket.RecordSuccess()
}
