package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/radarprecios/radarprecios-backend/api/responses"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	pkgredis "github.com/radarprecios/radarprecios-backend/pkg/redis"
)

// AuthRateLimitPolicy throttles one credential endpoint by client IP and by
// the submitted email. A zero limit turns that dimension off.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int64
	emailLimit int64
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:       name,
		window:     window,
		ipLimit:    int64(ipLimit),
		emailLimit: int64(emailLimit),
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// AuthRateLimit rejects a request with 429 once either counter passes its
// limit inside the window. Emails are hashed before they reach redis.
func AuthRateLimit(policy AuthRateLimitPolicy, store pkgredis.RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.ipLimit > 0 {
				if ip := clientIP(r); ip != "" {
					if !policy.admit(w, r, store, logg, "ip", ip, policy.ipLimit) {
						return
					}
				}
			}

			if policy.emailLimit > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if email := loginEmail(body); email != "" {
					if !policy.admit(w, r, store, logg, "email", hashEmail(email), policy.emailLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// admit records one hit and writes the rejection itself when over limit.
func (p AuthRateLimitPolicy) admit(w http.ResponseWriter, r *http.Request, store pkgredis.RateLimitStore, logg *logger.Logger, dimension, value string, limit int64) bool {
	ctx := r.Context()
	window, err := store.Hit(ctx, dimension+":"+p.name+":"+value, p.window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if window.Count <= limit {
		return true
	}

	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    p.name,
			"dimension": dimension,
			"attempts":  window.Count,
			"limit":     limit,
			"reset_in":  window.ResetIn.String(),
		}), "auth.rate_limited")
	}

	resetIn := window.ResetIn
	if resetIn <= 0 {
		resetIn = p.window
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(resetIn.Seconds()))))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
	return false
}

// clientIP prefers the first X-Forwarded-For hop, as the API runs behind a
// load balancer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func loginEmail(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
