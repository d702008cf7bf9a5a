package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"

	"github.com/ddevcap/movie-catalog/config"
)

// failures tracks failed logins from one IP.
type failures struct {
	attempts    int
	windowEnd   time.Time
	bannedUntil time.Time
}

// loginLimiter bans an IP for LoginBanDuration once it reaches
// LoginMaxAttempts failed logins within LoginWindow. Records expire from the
// cache on their own once neither the window nor the ban applies.
type loginLimiter struct {
	mu          sync.Mutex
	records     *ttlcache.Cache[string, *failures]
	maxAttempts int
	window      time.Duration
	ban         time.Duration
}

func newLoginLimiter(cfg config.Config) *loginLimiter {
	records := ttlcache.New[string, *failures](
		ttlcache.WithDisableTouchOnHit[string, *failures](),
	)
	go records.Start()
	return &loginLimiter{
		records:     records,
		maxAttempts: cfg.LoginMaxAttempts,
		window:      cfg.LoginWindow,
		ban:         cfg.LoginBanDuration,
	}
}

func (l *loginLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	item := l.records.Get(ip)
	if item == nil {
		return true
	}
	return !time.Now().Before(item.Value().bannedUntil)
}

func (l *loginLimiter) recordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	var f *failures
	if item := l.records.Get(ip); item != nil && !now.After(item.Value().windowEnd) {
		f = item.Value()
	} else {
		f = &failures{windowEnd: now.Add(l.window)}
	}
	f.attempts++
	ttl := f.windowEnd.Sub(now)
	if l.maxAttempts > 0 && f.attempts >= l.maxAttempts {
		f.bannedUntil = now.Add(l.ban)
		ttl = max(ttl, l.ban)
	}
	l.records.Set(ip, f, ttl)
}

func (l *loginLimiter) recordSuccess(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records.Delete(ip)
}

// LoginRateLimiter returns the middleware guarding the login route, the
// onFailure(ip) and onSuccess(ip) callbacks the login handler reports
// outcomes through, and a stop function for shutdown.
func LoginRateLimiter(cfg config.Config) (gin.HandlerFunc, func(string), func(string), func()) {
	limiter := newLoginLimiter(cfg)

	mw := func(c *gin.Context) {
		if cfg.LoginMaxAttempts <= 0 {
			c.Next()
			return
		}
		if !limiter.allow(ClientIP(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many failed login attempts. Please try again later.",
			})
			return
		}
		c.Next()
	}

	return mw, limiter.recordFailure, limiter.recordSuccess, limiter.records.Stop
}

// ClientIP returns the caller's address, honouring the engine's trusted
// proxy configuration.
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}
