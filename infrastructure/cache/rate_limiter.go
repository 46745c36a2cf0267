package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "wellness-sync:strava-rate:"

// Window is one fixed-window request budget.
type Window struct {
	Name   string
	Length time.Duration
	Limit  int
}

// RateLimiter counts provider calls in fixed windows shared by every replica.
type RateLimiter struct {
	client  redis.Cmdable
	windows []Window
	now     func() time.Time
}

// NewRateLimiter mirrors Strava's default application quota: per15Min short-term and perDay
// daily. Non-positive limits disable that window; a nil client disables limiting.
func NewRateLimiter(client redis.Cmdable, per15Min, perDay int) *RateLimiter {
	var windows []Window
	if per15Min > 0 {
		windows = append(windows, Window{Name: "15m", Length: 15 * time.Minute, Limit: per15Min})
	}
	if perDay > 0 {
		windows = append(windows, Window{Name: "day", Length: 24 * time.Hour, Limit: perDay})
	}
	return &RateLimiter{client: client, windows: windows, now: time.Now}
}

// WindowKey names the counter for the window containing t.
func WindowKey(w Window, t time.Time) string {
	bucket := t.UTC().Truncate(w.Length).Unix()
	return fmt.Sprintf("%s%s:%d", rateKeyPrefix, w.Name, bucket)
}

// Allow records one call and reports whether every window is still within its limit.
func (r *RateLimiter) Allow(ctx context.Context) (bool, error) {
	if r.client == nil || len(r.windows) == 0 {
		return true, nil
	}
	now := r.now()
	counts := make([]*redis.IntCmd, len(r.windows))
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, w := range r.windows {
			key := WindowKey(w, now)
			counts[i] = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, w.Length)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	for i, w := range r.windows {
		if counts[i].Val() > int64(w.Limit) {
			return false, nil
		}
	}
	return true, nil
}
