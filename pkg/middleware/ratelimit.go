package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-IP and per-session token buckets.
type RateLimitConfig struct {
	// RPS is the sustained request rate per session. Zero or less disables
	// limiting.
	RPS float64
	// Burst is the session bucket size. Defaults to 1 when RPS is set.
	Burst int
	// IPRPS and IPBurst size the bucket shared by every request from one
	// client IP. They default to four times RPS and Burst.
	IPRPS   float64
	IPBurst int
	// IdleTTL evicts clients not seen for this long. Defaults to 3 minutes.
	IdleTTL time.Duration
}

// ipLimitFactor sizes the IP bucket when IPRPS or IPBurst is unset.
const ipLimitFactor = 4

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore holds one limiter per client key. Idle visitors are evicted
// lazily, at most once per TTL.
type visitorStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newVisitorStore(rps float64, burst int, ttl time.Duration) *visitorStore {
	if burst < 1 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	return &visitorStore{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *visitorStore) retryAfter() string {
	return strconv.Itoa(max(1, int(1/float64(s.limit))))
}

func (s *visitorStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.ttl {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.ttl {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (s *visitorStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimit enforces a token bucket per client IP and, for requests carrying
// X-Session-ID, a second bucket per session. The IP bucket is checked first so
// that rotating session IDs cannot escape it or grow the session table faster
// than the IP rate. Rejected requests get 429 with a Retry-After hint.
func RateLimit(cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return newRateLimiter(cfg, logger).middleware
}

type rateLimiter struct {
	sessions *visitorStore
	ips      *visitorStore
	logger   *slog.Logger
}

func newRateLimiter(cfg RateLimitConfig, logger *slog.Logger) *rateLimiter {
	if cfg.IPRPS <= 0 {
		cfg.IPRPS = cfg.RPS * ipLimitFactor
	}
	if cfg.IPBurst < 1 {
		cfg.IPBurst = max(1, cfg.Burst) * ipLimitFactor
	}
	return &rateLimiter{
		sessions: newVisitorStore(cfg.RPS, cfg.Burst, cfg.IdleTTL),
		ips:      newVisitorStore(cfg.IPRPS, cfg.IPBurst, cfg.IdleTTL),
		logger:   logger,
	}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.ips.allow(ip) {
			rejectRateLimited(w, r, l.logger, l.ips, "ip:"+ip)
			return
		}
		if sid := strings.TrimSpace(r.Header.Get(SessionIDHeader)); sid != "" && !l.sessions.allow(sid) {
			rejectRateLimited(w, r, l.logger, l.sessions, "session:"+sid)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, logger *slog.Logger, s *visitorStore, client string) {
	logger.WarnContext(r.Context(), "rate limit exceeded",
		slog.String("client", client),
		slog.String("path", r.URL.Path),
	)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", s.retryAfter())
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "RATE_LIMITED",
			"message": "too many requests",
		},
	})
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
