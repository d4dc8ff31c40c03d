package myratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sweetoven/bakeshop/lib/mytime"
)

type windowLimiter struct {
	sync.Mutex
	nower  mytime.Nower
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

func New(nower mytime.Nower, limit int, window time.Duration) Limiter {
	return &windowLimiter{
		nower:  nower,
		limit:  limit,
		window: window,
		hits:   map[string][]time.Time{},
	}
}

func (l *windowLimiter) Allow(c context.Context, key string) bool {
	l.Lock()
	defer l.Unlock()

	now := l.nower.Now()
	cutoff := now.Add(-l.window)

	recent := []time.Time{}
	for _, hit := range l.hits[key] {
		if hit.After(cutoff) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}

	l.hits[key] = append(recent, now)

	return true
}
