package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/metrics"
)

// RateLimit defines a limit for an endpoint.
type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// RateLimiterConfig tunes the limiter.
type RateLimiterConfig struct {
	Whitelist        []string
	AutoBlockEnabled bool
	BlockThreshold   int
	BlockDuration    time.Duration
}

// RateLimiter enforces sliding-window rate limits backed by Redis.
// With a nil client it becomes a no-op passthrough.
type RateLimiter struct {
	client *redis.Client
	log    zerolog.Logger
	cfg    RateLimiterConfig
	limits map[string]RateLimit
}

func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = 10
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = time.Hour
	}

	return &RateLimiter{
		client: client,
		log:    logger,
		cfg:    cfg,
		limits: map[string]RateLimit{
			"/api/notifications": {Requests: 120, Window: time.Minute, KeyFunc: identityKey},
			"/api/chats":         {Requests: 120, Window: time.Minute, KeyFunc: identityKey},
			"/api/teachers":      {Requests: 60, Window: time.Minute, KeyFunc: identityKey},
			"/ws":                {Requests: 20, Window: time.Minute, KeyFunc: ipKey},
			"default":            {Requests: 300, Window: time.Minute, KeyFunc: ipKey},
		},
	}
}

// Middleware enforces rate limits and IP blocks.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.client == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()

		blocked, err := rl.isBlocked(ctx, ip)
		if err != nil {
			// Redis trouble must not take the API down.
			rl.log.Warn().Err(err).Msg("rate limiter block check failed")
			next.ServeHTTP(w, r)
			return
		}
		if blocked {
			metrics.BlockedRequests.WithLabelValues("ip_block").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":"access temporarily blocked"}`)
			return
		}

		limit := rl.limitFor(r.URL.Path)
		key := "rate:" + limit.KeyFunc(r) + ":" + routePrefix(r.URL.Path)

		allowed, remaining, err := rl.checkAndIncrement(ctx, key, limit)
		if err != nil {
			rl.log.Warn().Err(err).Msg("rate limiter check failed")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.RateLimitHits.WithLabelValues(routePrefix(r.URL.Path)).Inc()
			rl.trackViolation(ctx, ip)
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limit exceeded"}`)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limitFor(path string) RateLimit {
	for prefix, limit := range rl.limits {
		if prefix != "default" && strings.HasPrefix(path, prefix) {
			return limit
		}
	}
	return rl.limits["default"]
}

// checkAndIncrement runs the sliding window check in a single pipeline.
func (rl *RateLimiter) checkAndIncrement(ctx context.Context, key string, limit RateLimit) (bool, int, error) {
	now := time.Now().UnixMilli()
	windowStart := now - limit.Window.Milliseconds()

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(countCmd.Val())
	if count >= limit.Requests {
		return false, 0, nil
	}
	return true, limit.Requests - count - 1, nil
}

func (rl *RateLimiter) isBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := rl.client.Exists(ctx, "block:"+ip).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// trackViolation counts rate limit violations per IP and auto-blocks
// repeat offenders when enabled.
func (rl *RateLimiter) trackViolation(ctx context.Context, ip string) {
	if !rl.cfg.AutoBlockEnabled {
		return
	}

	key := "violations:" + ip
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		rl.log.Warn().Err(err).Msg("violation tracking failed")
		return
	}
	rl.client.Expire(ctx, key, time.Hour)

	if int(count) >= rl.cfg.BlockThreshold {
		if err := rl.client.Set(ctx, "block:"+ip, "1", rl.cfg.BlockDuration).Err(); err != nil {
			rl.log.Warn().Err(err).Str("ip", ip).Msg("failed to set block")
			return
		}
		rl.log.Warn().
			Str("ip", ip).
			Int64("violations", count).
			Dur("duration", rl.cfg.BlockDuration).
			Msg("ip auto-blocked after repeated rate limit violations")
	}
}

func (rl *RateLimiter) isWhitelisted(ip string) bool {
	for _, w := range rl.cfg.Whitelist {
		if ip == w {
			return true
		}
	}
	return false
}

// identityKey keys the limit by authenticated user when available,
// falling back to source IP for anonymous requests.
func identityKey(r *http.Request) string {
	if ident := GetIdentity(r.Context()); ident != nil && ident.ID != uuid.Nil {
		return "user:" + ident.ID.String()
	}
	return "ip:" + clientIP(r)
}

func ipKey(r *http.Request) string {
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routePrefix collapses a path to its first two segments so rate limit
// keys stay bounded.
func routePrefix(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
