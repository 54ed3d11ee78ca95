package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RemoteLimiter — token bucket на каждый удалённый адрес.
type RemoteLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	buckets map[string]*bucket
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRemoteLimiter разрешает perMinute запросов в минуту с адреса (с таким же запасом).
// perMinute <= 0 отключает ограничение.
func NewRemoteLimiter(perMinute int) *RemoteLimiter {
	l := &RemoteLimiter{
		limit:   rate.Inf,
		ttl:     time.Hour,
		buckets: make(map[string]*bucket),
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = perMinute
	}
	return l
}

// Allow расходует один токен адреса клиента.
func (l *RemoteLimiter) Allow(r *http.Request) bool {
	if l.limit == rate.Inf {
		return true
	}
	key := RemoteHost(r)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	for k, v := range l.buckets {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.buckets, k)
		}
	}
	return b.lim.AllowN(now, 1)
}
