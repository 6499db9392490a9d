// Package rate throttles like submissions per sender with two fixed windows.
package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	minuteWindow = time.Minute
	burstWindow  = 10 * time.Second
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

type Limiter struct {
	store     WindowStore
	perMinute int
	per10Sec  int
}

func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	return &Limiter{
		store:     store,
		perMinute: max(perMinute, 0),
		per10Sec:  max(per10Sec, 0),
	}
}

type window struct {
	key   string
	size  time.Duration
	limit int
}

func (l *Limiter) windows(userID int64) []window {
	id := strconv.FormatInt(userID, 10)
	out := make([]window, 0, 2)
	if l.perMinute > 0 {
		out = append(out, window{key: "rate:likes:min:" + id, size: minuteWindow, limit: l.perMinute})
	}
	if l.per10Sec > 0 {
		out = append(out, window{key: "rate:likes:10s:" + id, size: burstWindow, limit: l.per10Sec})
	}
	return out
}

// RecordLike counts one accepted like against every window.
func (l *Limiter) RecordLike(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return fmt.Errorf("rate limiter store is nil")
	}

	for _, w := range l.windows(userID) {
		if _, _, err := l.store.IncrementWindow(ctx, w.key, w.size); err != nil {
			return err
		}
	}
	return nil
}

// RetryAfterLike reports, in seconds, how long userID must wait before the
// next like is accepted. Zero means a like may go through now. Nothing is
// counted.
func (l *Limiter) RetryAfterLike(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	var retryAfter int64
	for _, w := range l.windows(userID) {
		count, ttl, err := l.store.WindowState(ctx, w.key)
		if err != nil {
			return 0, err
		}
		if count >= int64(w.limit) {
			retryAfter = max(retryAfter, ceilSeconds(ttl))
		}
	}
	return retryAfter, nil
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	return max(sec, 1)
}
