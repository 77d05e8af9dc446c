// Package ratelimit, in-memory rate limiter'lar.
//
// İki limiter vardır:
// - IPLimiter: IP bazlı token bucket (golang.org/x/time/rate). WS connect
//   endpoint'ini reconnect fırtınalarına karşı korur.
// - MessageRateLimiter: Kullanıcı bazlı pencere + cooldown. Chat mesajı ve
//   yorum gönderimindeki spam'i keser.
//
// pkg/ratelimit hiçbir proje içi pakete bağımlı değildir (leaf dependency).
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterEntry, bir IP'nin token bucket'ı ve son görülme zamanı.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter, IP başına bağımsız bir token bucket tutar.
//
// Kullanım:
//
//	limiter := NewIPLimiter(2, 5, 10*time.Minute)
//	if !limiter.Allow(ratelimit.ExtractIP(r)) { return 429 }
type IPLimiter struct {
	mu          sync.Mutex
	entries     map[string]*limiterEntry
	rps         rate.Limit
	burst       int
	ttl         time.Duration
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewIPLimiter, yeni bir IP limiter oluşturur ve arka plan temizleme goroutine'ini başlatır.
//
// rps: saniyede yenilenen token sayısı, burst: bucket kapasitesi,
// ttl: bu süre boyunca görülmeyen IP'lerin bucket'ı silinir.
func NewIPLimiter(rps float64, burst int, ttl time.Duration) *IPLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 5
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	l := &IPLimiter{
		entries:     make(map[string]*limiterEntry),
		rps:         rate.Limit(rps),
		burst:       burst,
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow, IP'nin bucket'ından bir token tüketmeye çalışır. Bloklamaz.
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// Len, takip edilen IP sayısını döner.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

// Close, temizleme goroutine'ini durdurur.
func (l *IPLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

func (l *IPLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Now())
		case <-l.stopCleanup:
			return
		}
	}
}

// evictIdle, ttl süresince görülmeyen entry'leri siler.
func (l *IPLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, ip)
		}
	}
}

// ExtractIP, HTTP request'ten client IP adresini çıkarır.
//
// Öncelik sırası:
// 1. X-Forwarded-For header (reverse proxy arkasındaysa, ilk IP)
// 2. X-Real-IP header (nginx gibi proxy'ler ekler)
// 3. RemoteAddr (doğrudan bağlantı)
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage, kalan süreyi okunabilir formata çevirir.
// Örn: "120" → "2 minute(s)", "45" → "45 second(s)"
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
