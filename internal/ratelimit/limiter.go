package ratelimit

import (
	"context"
	"sync"
	"time"
)

// safetyMargin is added to each computed wait so that a request issued
// immediately after waking does not race the window boundary.
const safetyMargin = 100 * time.Millisecond

// SlidingWindow admits at most maxRequests calls per trailing window.
// Wait blocks the caller until one more call fits; admissions are FIFO
// for a single-threaded caller, with no fairness guarantee beyond that.
type SlidingWindow struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	calls       []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a sliding-window limiter. The DiVA API allows 300 requests
// per 5 minutes, which is the default used by the client.
func New(maxRequests int, window time.Duration) *SlidingWindow {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &SlidingWindow{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Wait blocks until issuing one more call stays within the limit, then
// records the call. Returns early only if ctx is cancelled.
func (l *SlidingWindow) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.calls) >= l.maxRequests {
		wait := l.window - now.Sub(l.calls[0])
		if wait > 0 {
			if err := l.sleep(ctx, wait+safetyMargin); err != nil {
				return err
			}
			now = l.now()
			l.prune(now)
		}
	}

	l.calls = append(l.calls, now)
	return nil
}

// Pending reports how many calls are currently inside the window.
func (l *SlidingWindow) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.calls)
}

// prune drops timestamps older than the trailing window. Caller holds mu.
func (l *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
